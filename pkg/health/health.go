// Package health runs liveness and readiness checks for the graphquery server.
package health

import (
	"fmt"
	"time"
)

// NewHealthChecker creates a checker with no checks registered
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{startedAt: time.Now()}
}

// RegisterCheck adds a check to the /health probe
func (hc *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	hc.register(registration{name: name, probe: probeHealth, fn: check})
}

// RegisterReadinessCheck adds a check to the /ready probe
func (hc *HealthChecker) RegisterReadinessCheck(name string, check CheckFunc) {
	hc.register(registration{name: name, probe: probeReady, fn: check})
}

func (hc *HealthChecker) register(reg registration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for i, r := range hc.regs {
		if r.name == reg.name && r.probe == reg.probe {
			hc.regs[i] = reg
			return
		}
	}
	hc.regs = append(hc.regs, reg)
}

// Check runs the health probe
func (hc *HealthChecker) Check() Response {
	return hc.run(probeHealth)
}

// CheckReadiness runs the readiness probe
func (hc *HealthChecker) CheckReadiness() Response {
	return hc.run(probeReady)
}

func (hc *HealthChecker) run(p probe) Response {
	hc.mu.RLock()
	regs := make([]registration, 0, len(hc.regs))
	for _, r := range hc.regs {
		if r.probe == p {
			regs = append(regs, r)
		}
	}
	hc.mu.RUnlock()

	resp := Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]Check, len(regs)),
		Uptime:    time.Since(hc.startedAt).Seconds(),
	}
	for _, r := range regs {
		c := runOne(r)
		resp.Checks[r.name] = c
		resp.Status = worse(resp.Status, c.Status)
	}
	return resp
}

// runOne times a check. A panicking check is reported unhealthy.
func runOne(r registration) (c Check) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			c = Check{Status: StatusUnhealthy, Message: fmt.Sprintf("check panicked: %v", p)}
		}
		if c.Name == "" {
			c.Name = r.name
		}
		c.LastChecked = start
		c.Duration = time.Since(start)
	}()
	return r.fn()
}

func worse(a, b Status) Status {
	rank := func(s Status) int {
		switch s {
		case StatusUnhealthy:
			return 2
		case StatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
