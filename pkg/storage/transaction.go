package storage

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Transaction is a single-writer unit of work over GraphStorage.
// Mutations are visible to every reader as soon as they are made; Rollback undoes them.
type Transaction struct {
	gs         *GraphStorage
	id         uint64
	active     bool
	committed  bool
	rolledBack bool
	mu         sync.Mutex

	undo []undoEntry
}

type undoKind uint8

const (
	undoCreateNode undoKind = iota
	undoCreateEdge
	undoSetNodeProperty
	undoSetEdgeProperty
)

type undoEntry struct {
	kind    undoKind
	id      uint64
	key     string
	prev    Value
	hadPrev bool
}

// Begin starts a transaction. Only one transaction may be active at a time.
func (gs *GraphStorage) Begin() (*Transaction, error) {
	gs.mu.RLock()
	closed := gs.closed
	gs.mu.RUnlock()
	if closed {
		return nil, ErrStorageClosed
	}

	gs.txMu.Lock()
	defer gs.txMu.Unlock()

	if gs.activeTx != nil {
		return nil, ErrTransactionInProgress
	}
	gs.txIDSeq++
	tx := &Transaction{
		gs:     gs,
		id:     gs.txIDSeq,
		active: true,
	}
	gs.activeTx = tx
	return tx, nil
}

// ID returns the storage-assigned transaction number
func (tx *Transaction) ID() uint64 {
	return tx.id
}

// Active reports whether the transaction can still be used
func (tx *Transaction) Active() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.active
}

// CreateNode creates a node within the transaction
func (tx *Transaction) CreateNode(labels []string, properties map[string]Value) (*Node, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if !tx.active {
		return nil, ErrTransactionNotActive
	}

	gs := tx.gs
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.closed {
		return nil, ErrStorageClosed
	}
	nodeID, err := gs.allocateNodeID()
	if err != nil {
		return nil, txError("CreateNode", tx.id, err)
	}

	now := nowUnix()
	node := &Node{
		ID:         nodeID,
		Labels:     append([]string(nil), labels...),
		Properties: make(map[string]Value, len(properties)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for k, v := range properties {
		node.Properties[k] = v
	}

	gs.insertNode(node)
	tx.undo = append(tx.undo, undoEntry{kind: undoCreateNode, id: nodeID})

	return node.Clone(), nil
}

// CreateEdge creates an edge between two existing nodes within the transaction
func (tx *Transaction) CreateEdge(fromID, toID uint64, edgeType string, properties map[string]Value) (*Edge, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if !tx.active {
		return nil, ErrTransactionNotActive
	}

	gs := tx.gs
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.closed {
		return nil, ErrStorageClosed
	}
	if _, ok := gs.nodes[fromID]; !ok {
		return nil, NodeNotFoundError("CreateEdge", fromID)
	}
	if _, ok := gs.nodes[toID]; !ok {
		return nil, NodeNotFoundError("CreateEdge", toID)
	}
	edgeID, err := gs.allocateEdgeID()
	if err != nil {
		return nil, txError("CreateEdge", tx.id, err)
	}

	edge := &Edge{
		ID:         edgeID,
		FromNodeID: fromID,
		ToNodeID:   toID,
		Type:       edgeType,
		Properties: make(map[string]Value, len(properties)),
		CreatedAt:  nowUnix(),
	}
	for k, v := range properties {
		edge.Properties[k] = v
	}

	gs.insertEdge(edge)
	tx.undo = append(tx.undo, undoEntry{kind: undoCreateEdge, id: edgeID})

	return edge.Clone(), nil
}

// SetNodeProperty sets or replaces one property of a node
func (tx *Transaction) SetNodeProperty(nodeID uint64, key string, value Value) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if !tx.active {
		return ErrTransactionNotActive
	}

	gs := tx.gs
	gs.mu.Lock()
	defer gs.mu.Unlock()

	node, ok := gs.nodes[nodeID]
	if !ok {
		return NodeNotFoundError("SetNodeProperty", nodeID)
	}
	prev, hadPrev := node.Properties[key]
	if hadPrev {
		gs.unindexProperty(nodeID, key, prev)
	}
	node.Properties[key] = value
	node.UpdatedAt = nowUnix()
	gs.indexProperty(nodeID, key, value)

	tx.undo = append(tx.undo, undoEntry{kind: undoSetNodeProperty, id: nodeID, key: key, prev: prev, hadPrev: hadPrev})
	return nil
}

// SetEdgeProperty sets or replaces one property of an edge
func (tx *Transaction) SetEdgeProperty(edgeID uint64, key string, value Value) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if !tx.active {
		return ErrTransactionNotActive
	}

	gs := tx.gs
	gs.mu.Lock()
	defer gs.mu.Unlock()

	edge, ok := gs.edges[edgeID]
	if !ok {
		return EdgeNotFoundError("SetEdgeProperty", edgeID)
	}
	prev, hadPrev := edge.Properties[key]
	edge.Properties[key] = value

	tx.undo = append(tx.undo, undoEntry{kind: undoSetEdgeProperty, id: edgeID, key: key, prev: prev, hadPrev: hadPrev})
	return nil
}

// Commit makes the transaction's mutations permanent
func (tx *Transaction) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed || tx.rolledBack {
		return ErrTransactionAlreadyEnded
	}
	if !tx.active {
		return ErrTransactionNotActive
	}

	tx.undo = nil
	tx.committed = true
	tx.active = false
	tx.release()
	atomic.AddUint64(&tx.gs.stats.Commits, 1)
	return nil
}

// Rollback undoes every mutation of the transaction in reverse order.
// Rollback is idempotent; rolling back a committed transaction is an error.
func (tx *Transaction) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed {
		return errors.New("cannot rollback a committed transaction")
	}
	if !tx.active {
		return nil
	}

	gs := tx.gs
	gs.mu.Lock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		gs.applyUndo(tx.undo[i])
	}
	gs.mu.Unlock()

	tx.undo = nil
	tx.rolledBack = true
	tx.active = false
	tx.release()
	atomic.AddUint64(&gs.stats.Rollbacks, 1)
	return nil
}

func (tx *Transaction) release() {
	tx.gs.txMu.Lock()
	if tx.gs.activeTx == tx {
		tx.gs.activeTx = nil
	}
	tx.gs.txMu.Unlock()
}

// applyUndo expects gs.mu to be held for writing
func (gs *GraphStorage) applyUndo(u undoEntry) {
	switch u.kind {
	case undoCreateNode:
		gs.removeNode(u.id)
	case undoCreateEdge:
		gs.removeEdge(u.id)
	case undoSetNodeProperty:
		node, ok := gs.nodes[u.id]
		if !ok {
			return
		}
		if cur, ok := node.Properties[u.key]; ok {
			gs.unindexProperty(u.id, u.key, cur)
		}
		if u.hadPrev {
			node.Properties[u.key] = u.prev
			gs.indexProperty(u.id, u.key, u.prev)
		} else {
			delete(node.Properties, u.key)
		}
	case undoSetEdgeProperty:
		edge, ok := gs.edges[u.id]
		if !ok {
			return
		}
		if u.hadPrev {
			edge.Properties[u.key] = u.prev
		} else {
			delete(edge.Properties, u.key)
		}
	}
}
