package health

import (
	"sync"
	"time"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the result of one health check
type Check struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration_ns"`
}

// CheckFunc performs a health check
type CheckFunc func() Check

// probe selects which endpoint runs a registered check
type probe int

const (
	probeHealth probe = iota
	probeReady
)

type registration struct {
	name  string
	probe probe
	fn    CheckFunc
}

// HealthChecker runs the registered checks of a process. Checks run in
// registration order; registering a name twice for the same probe replaces it.
type HealthChecker struct {
	mu        sync.RWMutex
	regs      []registration
	startedAt time.Time
}

// Response is the aggregated result served over HTTP
type Response struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	Uptime    float64          `json:"uptime_seconds"`
}
