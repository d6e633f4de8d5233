package storage

import (
	"testing"
)

// testGraphStorage creates a GraphStorage that is closed when the test ends
func testGraphStorage(t *testing.T) *GraphStorage {
	t.Helper()

	gs := NewGraphStorage()
	t.Cleanup(func() {
		if err := gs.Close(); err != nil {
			t.Logf("Warning: Close() failed during cleanup: %v", err)
		}
	})
	return gs
}

// testTx begins a transaction or fails the test
func testTx(t *testing.T, gs *GraphStorage) *Transaction {
	t.Helper()

	tx, err := gs.Begin()
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	return tx
}

// testNode creates a node inside tx
func testNode(t *testing.T, tx *Transaction, labels []string, properties map[string]Value) *Node {
	t.Helper()

	node, err := tx.CreateNode(labels, properties)
	if err != nil {
		t.Fatalf("Failed to create test node: %v", err)
	}
	return node
}

// testEdge creates an edge inside tx
func testEdge(t *testing.T, tx *Transaction, fromID, toID uint64, edgeType string) *Edge {
	t.Helper()

	edge, err := tx.CreateEdge(fromID, toID, edgeType, nil)
	if err != nil {
		t.Fatalf("Failed to create test edge: %v", err)
	}
	return edge
}

// collectIDs drains an iterator into a list of node IDs
func collectIDs(t *testing.T, it NodeIterator) []uint64 {
	t.Helper()

	var ids []uint64
	for it.Next() {
		ids = append(ids, it.Node().ID)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iteration failed: %v", err)
	}
	return ids
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
