// Package query executes batches of graph commands inside one store transaction.
//
// Commands chain through reference ids: a command may register the node set it
// produced and a later command of the same transaction may start from it. Node
// sets are held in NodeSequences, which memoize what the store yields so a set can
// be replayed, reset or sorted without querying the store again.
package query

import (
	"math"
	"sort"

	"github.com/dd0wney/cluso-graphquery/pkg/storage"
)

// Sequence is a positioned, pull-based cursor over nodes. A freshly built
// sequence is already positioned on its first element, if any.
type Sequence interface {
	// Valid reports whether the cursor is on an element
	Valid() bool
	// Current returns the element under the cursor, or ErrNullIterator
	Current() (*storage.Node, error)
	// Advance moves to the next element and reports whether there is one
	Advance() bool
	// Err returns the store error that ended the sequence early, if any
	Err() error
}

// NodeSequence is a replayable Sequence over a single-pass store iterator.
// Every node pulled from the store is appended to a memo list; the memo is only
// ever reordered by SortBy.
type NodeSequence struct {
	src  storage.NodeIterator // nil once drained
	memo []*storage.Node
	pos  int
	err  error
}

// NewNodeSequence wraps src and positions on its first node
func NewNodeSequence(src storage.NodeIterator) *NodeSequence {
	s := &NodeSequence{src: src}
	s.pull()
	return s
}

// NewSingletonSequence returns a drained sequence holding exactly n
func NewSingletonSequence(n *storage.Node) *NodeSequence {
	return &NodeSequence{memo: []*storage.Node{n}}
}

// pull fetches one node from the store into the memo
func (s *NodeSequence) pull() bool {
	if s.src == nil {
		return false
	}
	if s.src.Next() {
		s.memo = append(s.memo, s.src.Node())
		return true
	}
	s.err = s.src.Err()
	s.src = nil
	return false
}

func (s *NodeSequence) Valid() bool {
	return s.pos < len(s.memo)
}

func (s *NodeSequence) Current() (*storage.Node, error) {
	if !s.Valid() {
		return nil, &Error{Kind: KindNullIterator}
	}
	return s.memo[s.pos], nil
}

func (s *NodeSequence) Advance() bool {
	if s.pos >= len(s.memo) {
		return false
	}
	s.pos++
	if s.pos < len(s.memo) {
		return true
	}
	return s.pull()
}

func (s *NodeSequence) Err() error {
	return s.err
}

// Reset rewinds to the first memoized node. The store is not queried.
func (s *NodeSequence) Reset() {
	s.pos = 0
}

// MaterializeAll drains the store iterator into the memo
func (s *NodeSequence) MaterializeAll() error {
	for s.pull() {
	}
	return s.err
}

// Len returns the number of memoized nodes
func (s *NodeSequence) Len() int {
	return len(s.memo)
}

// Drained reports whether the store iterator has been exhausted
func (s *NodeSequence) Drained() bool {
	return s.src == nil
}

// SortBy materializes the sequence, stably orders it by the value of key and
// rewinds it. Nodes without the key go last; values of different, incomparable
// types are grouped by type.
func (s *NodeSequence) SortBy(key string) error {
	if err := s.MaterializeAll(); err != nil {
		return err
	}
	sort.SliceStable(s.memo, func(i, j int) bool {
		return lessByKey(s.memo[i], s.memo[j], key)
	})
	s.Reset()
	return nil
}

func lessByKey(a, b *storage.Node, key string) bool {
	va, okA := a.GetProperty(key)
	vb, okB := b.GetProperty(key)
	switch {
	case !okA:
		return false
	case !okB:
		return true
	}
	if c, ok := storage.CompareValues(va, vb); ok {
		return c < 0
	}
	return sortRank(va) < sortRank(vb)
}

// sortRank orders values of incomparable types. Ints and floats share a rank so
// they sort numerically together; NaN ranks after every number.
func sortRank(v storage.Value) int {
	switch v.Type {
	case storage.TypeBool:
		return 0
	case storage.TypeInt:
		return 1
	case storage.TypeFloat:
		if f, _ := v.AsFloat(); math.IsNaN(f) {
			return 2
		}
		return 1
	case storage.TypeString:
		return 3
	case storage.TypeBytes:
		return 4
	case storage.TypeTimestamp:
		return 5
	default:
		return 6
	}
}
