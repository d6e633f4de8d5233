package storage

import (
	"fmt"
	"sync/atomic"
)

// NodeIterator is a single-pass, pull-based cursor over nodes.
//
//	it := gs.FindNodes(storage.NodeQuery{Label: "Person"})
//	for it.Next() {
//		use(it.Node())
//	}
//	if err := it.Err(); err != nil { ... }
type NodeIterator interface {
	// Next advances to the next node and reports whether one is available.
	Next() bool
	// Node returns the node at the cursor; nil before the first Next or after the end.
	Node() *Node
	// Err returns the error that ended iteration early, if any.
	Err() error
}

// Direction selects which edges of a node are followed
type Direction uint8

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
	DirectionAny
)

func (d Direction) String() string {
	switch d {
	case DirectionOutgoing:
		return "outgoing"
	case DirectionIncoming:
		return "incoming"
	case DirectionAny:
		return "any"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// NodeQuery selects nodes for a scan
type NodeQuery struct {
	Label      string // empty = any label
	Predicates []PropertyPredicate
	Or         bool // combine predicates with OR instead of AND
}

// NeighborQuery selects the neighbors of a node
type NeighborQuery struct {
	Direction  Direction
	EdgeType   string // empty = any edge type
	Label      string // label the neighbor must carry; empty = any
	Predicates []PropertyPredicate
	Or         bool
}

func (q NodeQuery) accepts(n *Node) bool {
	if q.Label != "" && !n.HasLabel(q.Label) {
		return false
	}
	return matchAll(q.Predicates, q.Or, n.Properties)
}

// FindNodes opens a lazy scan. The candidate set is fixed when the scan is opened;
// predicates are evaluated as nodes are pulled.
func (gs *GraphStorage) FindNodes(q NodeQuery) NodeIterator {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	if gs.closed {
		return &errIterator{err: ErrStorageClosed}
	}

	return &scanIterator{gs: gs, ids: gs.candidates(q), accept: q.accepts}
}

// candidates picks the narrowest id list for q. Expects gs.mu to be held.
func (gs *GraphStorage) candidates(q NodeQuery) []uint64 {
	var best []uint64
	found := false

	if !q.Or {
		for _, p := range q.Predicates {
			if p.Op != OpEq {
				continue
			}
			idx, ok := gs.propertyIndexes[p.Key]
			if !ok || idx.indexType != p.V1.Type {
				continue
			}
			ids, err := idx.Lookup(p.V1)
			if err != nil {
				continue
			}
			if !found || len(ids) < len(best) {
				best, found = ids, true
			}
		}
	}

	if q.Label != "" {
		labelIDs := gs.nodesByLabel[q.Label]
		if !found || len(labelIDs) < len(best) {
			best, found = labelIDs, true
		}
	}

	if !found {
		best = gs.nodeOrder
	}
	ids := make([]uint64, len(best))
	copy(ids, best)
	return ids
}

// Neighbors opens a lazy iterator over the neighbors of nodeID reachable through
// edges matching q, in adjacency order. A neighbor reachable through several edges
// is produced once per edge.
func (gs *GraphStorage) Neighbors(nodeID uint64, q NeighborQuery) NodeIterator {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	if gs.closed {
		return &errIterator{err: ErrStorageClosed}
	}
	if _, ok := gs.nodes[nodeID]; !ok {
		return &errIterator{err: NodeNotFoundError("Neighbors", nodeID)}
	}

	var steps []edgeStep
	if q.Direction == DirectionOutgoing || q.Direction == DirectionAny {
		for _, id := range gs.outgoingEdges[nodeID] {
			steps = append(steps, edgeStep{edgeID: id, outgoing: true})
		}
	}
	if q.Direction == DirectionIncoming || q.Direction == DirectionAny {
		for _, id := range gs.incomingEdges[nodeID] {
			steps = append(steps, edgeStep{edgeID: id})
		}
	}

	nodeFilter := NodeQuery{Label: q.Label, Predicates: q.Predicates, Or: q.Or}
	return &neighborIterator{gs: gs, steps: steps, edgeType: q.EdgeType, accept: nodeFilter.accepts}
}

type scanIterator struct {
	gs     *GraphStorage
	ids    []uint64
	pos    int
	accept func(*Node) bool
	cur    *Node
	err    error
}

func (it *scanIterator) Next() bool {
	it.cur = nil
	if it.err != nil {
		return false
	}

	it.gs.mu.RLock()
	defer it.gs.mu.RUnlock()

	if it.gs.closed {
		it.err = ErrStorageClosed
		return false
	}
	for it.pos < len(it.ids) {
		id := it.ids[it.pos]
		it.pos++
		node, ok := it.gs.nodes[id]
		if !ok {
			continue
		}
		atomic.AddUint64(&it.gs.stats.NodesScanned, 1)
		if it.accept(node) {
			it.cur = node.Clone()
			return true
		}
	}
	return false
}

func (it *scanIterator) Node() *Node { return it.cur }
func (it *scanIterator) Err() error  { return it.err }

type edgeStep struct {
	edgeID   uint64
	outgoing bool
}

type neighborIterator struct {
	gs       *GraphStorage
	steps    []edgeStep
	pos      int
	edgeType string
	accept   func(*Node) bool
	cur      *Node
	err      error
}

func (it *neighborIterator) Next() bool {
	it.cur = nil
	if it.err != nil {
		return false
	}

	it.gs.mu.RLock()
	defer it.gs.mu.RUnlock()

	if it.gs.closed {
		it.err = ErrStorageClosed
		return false
	}
	for it.pos < len(it.steps) {
		step := it.steps[it.pos]
		it.pos++
		edge, ok := it.gs.edges[step.edgeID]
		if !ok {
			continue
		}
		if it.edgeType != "" && edge.Type != it.edgeType {
			continue
		}
		otherID := edge.FromNodeID
		if step.outgoing {
			otherID = edge.ToNodeID
		}
		node, ok := it.gs.nodes[otherID]
		if !ok {
			continue
		}
		atomic.AddUint64(&it.gs.stats.NodesScanned, 1)
		if it.accept(node) {
			it.cur = node.Clone()
			return true
		}
	}
	return false
}

func (it *neighborIterator) Node() *Node { return it.cur }
func (it *neighborIterator) Err() error  { return it.err }

type errIterator struct {
	err error
}

func (it *errIterator) Next() bool  { return false }
func (it *errIterator) Node() *Node { return nil }
func (it *errIterator) Err() error  { return it.err }

// SliceIterator iterates over a fixed list of nodes
type SliceIterator struct {
	nodes []*Node
	pos   int
}

// NewSliceIterator wraps nodes in a NodeIterator
func NewSliceIterator(nodes ...*Node) *SliceIterator {
	return &SliceIterator{nodes: nodes}
}

func (it *SliceIterator) Next() bool {
	if it.pos >= len(it.nodes) {
		it.pos = len(it.nodes) + 1
		return false
	}
	it.pos++
	return true
}

func (it *SliceIterator) Node() *Node {
	if it.pos == 0 || it.pos > len(it.nodes) {
		return nil
	}
	return it.nodes[it.pos-1]
}

func (it *SliceIterator) Err() error { return nil }
