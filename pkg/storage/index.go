package storage

import (
	"fmt"
	"sync"
)

// PropertyIndex maintains an equality index on a specific node property
type PropertyIndex struct {
	propertyKey string
	indexType   ValueType

	// Index maps encoded property value -> node IDs in insertion order
	index map[string][]uint64

	mu sync.RWMutex
}

// IndexStatistics describes the contents of a property index
type IndexStatistics struct {
	PropertyKey  string
	Type         ValueType
	UniqueValues int
	TotalNodes   int64
}

// NewPropertyIndex creates a new property index
func NewPropertyIndex(propertyKey string, indexType ValueType) *PropertyIndex {
	return &PropertyIndex{
		propertyKey: propertyKey,
		indexType:   indexType,
		index:       make(map[string][]uint64),
	}
}

// Insert adds a node to the index
func (idx *PropertyIndex) Insert(nodeID uint64, value Value) error {
	if value.Type != idx.indexType {
		return fmt.Errorf("%w: expected %v, got %v", ErrIndexTypeMismatch, idx.indexType, value.Type)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := string(value.Data)
	idx.index[key] = append(idx.index[key], nodeID)
	return nil
}

// Remove removes a node from the index, preserving the order of the remaining IDs
func (idx *PropertyIndex) Remove(nodeID uint64, value Value) {
	if value.Type != idx.indexType {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := string(value.Data)
	remaining := removeID(idx.index[key], nodeID)
	if len(remaining) == 0 {
		delete(idx.index, key)
		return
	}
	idx.index[key] = remaining
}

// Lookup finds all nodes with a specific property value
func (idx *PropertyIndex) Lookup(value Value) ([]uint64, error) {
	if value.Type != idx.indexType {
		return nil, fmt.Errorf("%w: expected %v, got %v", ErrIndexTypeMismatch, idx.indexType, value.Type)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	nodeIDs := idx.index[string(value.Data)]
	result := make([]uint64, len(nodeIDs))
	copy(result, nodeIDs)
	return result, nil
}

// Statistics returns index statistics
func (idx *PropertyIndex) Statistics() IndexStatistics {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var total int64
	for _, ids := range idx.index {
		total += int64(len(ids))
	}
	return IndexStatistics{
		PropertyKey:  idx.propertyKey,
		Type:         idx.indexType,
		UniqueValues: len(idx.index),
		TotalNodes:   total,
	}
}

// removeID removes the first occurrence of id, keeping order
func removeID(ids []uint64, id uint64) []uint64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
