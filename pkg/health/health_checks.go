package health

import (
	"runtime"

	"github.com/dd0wney/cluso-graphquery/pkg/storage"
)

// Store is the part of the graph store a health check needs
type Store interface {
	Ping() error
	GetStatistics() storage.Statistics
}

// StoreCheck reports whether the graph store is open, with its size
func StoreCheck(store Store) CheckFunc {
	return func() Check {
		check := Check{Name: "store"}
		if err := store.Ping(); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			return check
		}

		stats := store.GetStatistics()
		check.Status = StatusHealthy
		check.Message = "Open"
		check.Details = map[string]any{
			"nodes":     stats.NodeCount,
			"edges":     stats.EdgeCount,
			"commits":   stats.Commits,
			"rollbacks": stats.Rollbacks,
		}
		return check
	}
}

// ListenerCheck reports whether a transport is accepting requests
func ListenerCheck(name string, listening func() bool) CheckFunc {
	return func() Check {
		check := Check{Name: name}
		if listening() {
			check.Status = StatusHealthy
			check.Message = "Listening"
		} else {
			check.Status = StatusUnhealthy
			check.Message = "Not listening"
		}
		return check
	}
}

// MemoryCheck reports heap usage and degrades once the heap exceeds limitBytes.
// A zero limit only reports.
func MemoryCheck(limitBytes uint64) CheckFunc {
	return memoryCheck(limitBytes, func() (alloc, sys uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.HeapAlloc, m.Sys
	})
}

func memoryCheck(limitBytes uint64, usage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		alloc, sys := usage()
		check := Check{
			Name: "memory",
			Details: map[string]any{
				"heap_alloc_bytes": alloc,
				"sys_bytes":        sys,
			},
			Status:  StatusHealthy,
			Message: "Memory usage normal",
		}
		if limitBytes > 0 && alloc > limitBytes {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		}
		return check
	}
}
