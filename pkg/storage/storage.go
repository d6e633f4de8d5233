// Package storage is an in-memory labeled property graph with label and property
// indexes, adjacency lists and single-writer transactions.
//
// Transactions apply their mutations immediately and keep an undo log, so reads
// issued later in the same transaction observe earlier writes. Rollback replays the
// undo log in reverse. Only one transaction may be active at a time; callers that
// need multi-command isolation serialize transactions above this layer.
package storage

import (
	"sync"
	"sync/atomic"
	"time"
)

// GraphStorage is the core in-memory graph storage engine
type GraphStorage struct {
	// Core data structures
	nodes map[uint64]*Node
	edges map[uint64]*Edge

	// nodeOrder keeps creation order so full scans are deterministic
	nodeOrder []uint64

	// Indexes for fast lookups
	nodesByLabel    map[string][]uint64       // label -> node IDs
	edgesByType     map[string][]uint64       // edge type -> edge IDs
	outgoingEdges   map[uint64][]uint64       // node ID -> outgoing edge IDs
	incomingEdges   map[uint64][]uint64       // node ID -> incoming edge IDs
	propertyIndexes map[string]*PropertyIndex // property key -> index

	// ID generators
	nextNodeID uint64
	nextEdgeID uint64

	mu     sync.RWMutex
	closed bool

	txMu     sync.Mutex
	activeTx *Transaction
	txIDSeq  uint64

	stats Statistics
}

// Statistics tracks storage counters
type Statistics struct {
	NodeCount    uint64
	EdgeCount    uint64
	Commits      uint64
	Rollbacks    uint64
	NodesScanned uint64
}

// NewGraphStorage creates an empty graph
func NewGraphStorage() *GraphStorage {
	return &GraphStorage{
		nodes:           make(map[uint64]*Node),
		edges:           make(map[uint64]*Edge),
		nodesByLabel:    make(map[string][]uint64),
		edgesByType:     make(map[string][]uint64),
		outgoingEdges:   make(map[uint64][]uint64),
		incomingEdges:   make(map[uint64][]uint64),
		propertyIndexes: make(map[string]*PropertyIndex),
		nextNodeID:      1,
		nextEdgeID:      1,
	}
}

// Close marks the storage closed; later operations fail with ErrStorageClosed
func (gs *GraphStorage) Close() error {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.closed = true
	return nil
}

// GetNode retrieves a copy of a node by ID
func (gs *GraphStorage) GetNode(nodeID uint64) (*Node, error) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	if gs.closed {
		return nil, ErrStorageClosed
	}
	node, exists := gs.nodes[nodeID]
	if !exists {
		return nil, NodeNotFoundError("GetNode", nodeID)
	}
	return node.Clone(), nil
}

// GetEdge retrieves a copy of an edge by ID
func (gs *GraphStorage) GetEdge(edgeID uint64) (*Edge, error) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	if gs.closed {
		return nil, ErrStorageClosed
	}
	edge, exists := gs.edges[edgeID]
	if !exists {
		return nil, EdgeNotFoundError("GetEdge", edgeID)
	}
	return edge.Clone(), nil
}

// GetOutgoingEdges returns copies of the edges leaving a node, in creation order
func (gs *GraphStorage) GetOutgoingEdges(nodeID uint64) ([]*Edge, error) {
	return gs.adjacentEdges(nodeID, gs.outgoingEdges)
}

// GetIncomingEdges returns copies of the edges entering a node, in creation order
func (gs *GraphStorage) GetIncomingEdges(nodeID uint64) ([]*Edge, error) {
	return gs.adjacentEdges(nodeID, gs.incomingEdges)
}

func (gs *GraphStorage) adjacentEdges(nodeID uint64, adjacency map[uint64][]uint64) ([]*Edge, error) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	if gs.closed {
		return nil, ErrStorageClosed
	}
	if _, ok := gs.nodes[nodeID]; !ok {
		return nil, NodeNotFoundError("GetEdges", nodeID)
	}
	ids := adjacency[nodeID]
	edges := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		if edge, ok := gs.edges[id]; ok {
			edges = append(edges, edge.Clone())
		}
	}
	return edges, nil
}

// CreatePropertyIndex builds an equality index for key over existing nodes.
// Nodes whose value for key has a different type are left out of the index.
func (gs *GraphStorage) CreatePropertyIndex(key string, valueType ValueType) error {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.closed {
		return ErrStorageClosed
	}
	if _, exists := gs.propertyIndexes[key]; exists {
		return nil
	}

	idx := NewPropertyIndex(key, valueType)
	for _, id := range gs.nodeOrder {
		if v, ok := gs.nodes[id].Properties[key]; ok && v.Type == valueType {
			if err := idx.Insert(id, v); err != nil {
				return indexError("CreatePropertyIndex", key, err)
			}
		}
	}
	gs.propertyIndexes[key] = idx
	return nil
}

// HasPropertyIndex reports whether key is indexed
func (gs *GraphStorage) HasPropertyIndex(key string) bool {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	_, ok := gs.propertyIndexes[key]
	return ok
}

// Labels returns every label with at least one node
func (gs *GraphStorage) Labels() []string {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	labels := make([]string, 0, len(gs.nodesByLabel))
	for label, ids := range gs.nodesByLabel {
		if len(ids) > 0 {
			labels = append(labels, label)
		}
	}
	return labels
}

// NodeCount returns the number of nodes, including uncommitted ones of the active transaction
func (gs *GraphStorage) NodeCount() uint64 {
	return atomic.LoadUint64(&gs.stats.NodeCount)
}

// EdgeCount returns the number of edges, including uncommitted ones of the active transaction
func (gs *GraphStorage) EdgeCount() uint64 {
	return atomic.LoadUint64(&gs.stats.EdgeCount)
}

// GetStatistics returns a snapshot of the storage counters
func (gs *GraphStorage) GetStatistics() Statistics {
	return Statistics{
		NodeCount:    atomic.LoadUint64(&gs.stats.NodeCount),
		EdgeCount:    atomic.LoadUint64(&gs.stats.EdgeCount),
		Commits:      atomic.LoadUint64(&gs.stats.Commits),
		Rollbacks:    atomic.LoadUint64(&gs.stats.Rollbacks),
		NodesScanned: atomic.LoadUint64(&gs.stats.NodesScanned),
	}
}

// Ping reports whether the storage is usable
func (gs *GraphStorage) Ping() error {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	if gs.closed {
		return ErrStorageClosed
	}
	return nil
}

// The helpers below expect gs.mu to be held for writing.

func (gs *GraphStorage) insertNode(node *Node) {
	gs.nodes[node.ID] = node
	gs.nodeOrder = append(gs.nodeOrder, node.ID)
	for _, label := range node.Labels {
		gs.nodesByLabel[label] = append(gs.nodesByLabel[label], node.ID)
	}
	for key, v := range node.Properties {
		gs.indexProperty(node.ID, key, v)
	}
	atomic.AddUint64(&gs.stats.NodeCount, 1)
}

func (gs *GraphStorage) removeNode(nodeID uint64) {
	node, ok := gs.nodes[nodeID]
	if !ok {
		return
	}
	for _, label := range node.Labels {
		gs.nodesByLabel[label] = removeID(gs.nodesByLabel[label], nodeID)
	}
	for key, v := range node.Properties {
		gs.unindexProperty(nodeID, key, v)
	}
	delete(gs.outgoingEdges, nodeID)
	delete(gs.incomingEdges, nodeID)
	gs.nodeOrder = removeID(gs.nodeOrder, nodeID)
	delete(gs.nodes, nodeID)
	atomicDecrement(&gs.stats.NodeCount)
}

func (gs *GraphStorage) insertEdge(edge *Edge) {
	gs.edges[edge.ID] = edge
	gs.edgesByType[edge.Type] = append(gs.edgesByType[edge.Type], edge.ID)
	gs.outgoingEdges[edge.FromNodeID] = append(gs.outgoingEdges[edge.FromNodeID], edge.ID)
	gs.incomingEdges[edge.ToNodeID] = append(gs.incomingEdges[edge.ToNodeID], edge.ID)
	atomic.AddUint64(&gs.stats.EdgeCount, 1)
}

func (gs *GraphStorage) removeEdge(edgeID uint64) {
	edge, ok := gs.edges[edgeID]
	if !ok {
		return
	}
	gs.edgesByType[edge.Type] = removeID(gs.edgesByType[edge.Type], edgeID)
	gs.outgoingEdges[edge.FromNodeID] = removeID(gs.outgoingEdges[edge.FromNodeID], edgeID)
	gs.incomingEdges[edge.ToNodeID] = removeID(gs.incomingEdges[edge.ToNodeID], edgeID)
	delete(gs.edges, edgeID)
	atomicDecrement(&gs.stats.EdgeCount)
}

func (gs *GraphStorage) indexProperty(nodeID uint64, key string, v Value) {
	if idx, ok := gs.propertyIndexes[key]; ok && v.Type == idx.indexType {
		_ = idx.Insert(nodeID, v)
	}
}

func (gs *GraphStorage) unindexProperty(nodeID uint64, key string, v Value) {
	if idx, ok := gs.propertyIndexes[key]; ok {
		idx.Remove(nodeID, v)
	}
}

func (gs *GraphStorage) allocateNodeID() (uint64, error) {
	if gs.nextNodeID == ^uint64(0) {
		return 0, ErrIDSpaceExhausted
	}
	id := gs.nextNodeID
	gs.nextNodeID++
	return id, nil
}

func (gs *GraphStorage) allocateEdgeID() (uint64, error) {
	if gs.nextEdgeID == ^uint64(0) {
		return 0, ErrIDSpaceExhausted
	}
	id := gs.nextEdgeID
	gs.nextEdgeID++
	return id, nil
}

// atomicDecrement decrements a counter without wrapping below zero
func atomicDecrement(counter *uint64) {
	for {
		current := atomic.LoadUint64(counter)
		if current == 0 {
			return
		}
		if atomic.CompareAndSwapUint64(counter, current, current-1) {
			return
		}
	}
}

func nowUnix() int64 {
	return time.Now().Unix()
}
