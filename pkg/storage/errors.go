package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNodeNotFound            = errors.New("node not found")
	ErrEdgeNotFound            = errors.New("edge not found")
	ErrStorageClosed           = errors.New("storage is closed")
	ErrIDSpaceExhausted        = errors.New("ID space exhausted")
	ErrIndexTypeMismatch       = errors.New("index type mismatch")
	ErrTransactionNotActive    = errors.New("transaction is not active")
	ErrTransactionAlreadyEnded = errors.New("transaction has already been committed or rolled back")
	ErrTransactionInProgress   = errors.New("another transaction is in progress")
)

// StorageError says which operation failed on which entity. Cause is one of
// the sentinels above or an error wrapping one.
type StorageError struct {
	Op     string
	Entity string // "node", "edge", "index" or "transaction"
	ID     uint64
	Field  string // property key, for index errors
	Cause  error
}

func (e *StorageError) Error() string {
	target := e.Entity
	if e.ID != 0 {
		target = fmt.Sprintf("%s %d", target, e.ID)
	}
	if e.Field != "" {
		target = fmt.Sprintf("%s %q", target, e.Field)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

func entityError(op, entity string, id uint64, cause error) error {
	return &StorageError{Op: op, Entity: entity, ID: id, Cause: cause}
}

func indexError(op, key string, cause error) error {
	return &StorageError{Op: op, Entity: "index", Field: key, Cause: cause}
}

func txError(op string, txID uint64, cause error) error {
	return entityError(op, "transaction", txID, cause)
}

// NodeNotFoundError reports a missing node
func NodeNotFoundError(op string, nodeID uint64) error {
	return entityError(op, "node", nodeID, ErrNodeNotFound)
}

// EdgeNotFoundError reports a missing edge
func EdgeNotFoundError(op string, edgeID uint64) error {
	return entityError(op, "edge", edgeID, ErrEdgeNotFound)
}

// IsNotFound reports whether err is a missing node or edge
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound) || errors.Is(err, ErrEdgeNotFound)
}

// IsClosed reports whether err comes from a closed store
func IsClosed(err error) bool {
	return errors.Is(err, ErrStorageClosed)
}
