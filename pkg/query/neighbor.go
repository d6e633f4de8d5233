package query

import "github.com/dd0wney/cluso-graphquery/pkg/storage"

// NeighborSource evaluates neighbor predicates for one node
type NeighborSource interface {
	Neighbors(nodeID uint64, q storage.NeighborQuery) storage.NodeIterator
}

// NeighborIterator flattens the matching neighbors of every node of a start
// sequence, in start order. Start nodes without matches are skipped. Only one
// per-node neighbor iterator is open at a time.
//
// The start sequence is borrowed: the iterator advances it but does not reset it,
// and it must outlive the iterator. Once the iterator ends it stays ended.
type NeighborIterator struct {
	src   NeighborSource
	start *NodeSequence
	query storage.NeighborQuery

	live storage.NodeIterator
	cur  *storage.Node
	done bool
	err  error
}

// NewNeighborIterator positions on the first neighbor of the first start node
// that has one, starting from the start sequence's current position.
func NewNeighborIterator(src NeighborSource, start *NodeSequence, q storage.NeighborQuery) *NeighborIterator {
	it := &NeighborIterator{src: src, start: start, query: q}
	it.seek()
	return it
}

// seek moves to the next matching neighbor, opening neighbor iterators for
// successive start nodes as needed
func (it *NeighborIterator) seek() bool {
	for it.start.Valid() {
		if it.live == nil {
			node, err := it.start.Current()
			if err != nil {
				return it.finish(err)
			}
			it.live = it.src.Neighbors(node.ID, it.query)
		}
		if it.live.Next() {
			it.cur = it.live.Node()
			return true
		}
		if err := it.live.Err(); err != nil {
			return it.finish(err)
		}
		it.live = nil
		it.start.Advance()
	}
	return it.finish(it.start.Err())
}

func (it *NeighborIterator) finish(err error) bool {
	it.done = true
	it.live = nil
	it.cur = nil
	it.err = err
	return false
}

func (it *NeighborIterator) Valid() bool {
	return !it.done
}

func (it *NeighborIterator) Current() (*storage.Node, error) {
	if it.done {
		return nil, &Error{Kind: KindNullIterator}
	}
	return it.cur, nil
}

func (it *NeighborIterator) Advance() bool {
	if it.done {
		return false
	}
	return it.seek()
}

func (it *NeighborIterator) Err() error {
	return it.err
}
