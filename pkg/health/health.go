// Package health serves liveness and readiness probes.
//
// Each check runs on its own ticker. A check turns unhealthy only after
// FailureThreshold consecutive failures and healthy again after
// SuccessThreshold consecutive passes, so a single slow ping does not flap
// the probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Thresholds controls how many consecutive results flip a check.
type Thresholds struct {
	Failure int
	Success int
}

// DefaultThresholds are used when a check is added without options.
var DefaultThresholds = Thresholds{Failure: 3, Success: 1}

type check struct {
	name       string
	timeout    time.Duration
	fn         CheckFunc
	thresholds Thresholds

	mu      sync.Mutex
	healthy bool
	lastErr error
	fails   int
	passes  int
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.fn(ctx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastErr = err
	if err != nil {
		c.passes = 0
		c.fails++
		if c.fails >= c.thresholds.Failure {
			c.healthy = false
		}
		return
	}
	c.fails = 0
	c.passes++
	if c.passes >= c.thresholds.Success {
		c.healthy = true
	}
}

// failure returns "" while healthy, otherwise the reason.
func (c *check) failure() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthy {
		return ""
	}
	if c.lastErr != nil {
		return c.lastErr.Error()
	}
	return "check is unhealthy"
}

// probe is a named set of checks.
type probe struct {
	mu     sync.RWMutex
	checks []*check
}

func (p *probe) add(c *check) {
	p.mu.Lock()
	p.checks = append(p.checks, c)
	p.mu.Unlock()
}

func (p *probe) snapshot() []*check {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*check(nil), p.checks...)
}

func (p *probe) failures() map[string]string {
	out := make(map[string]string)
	for _, c := range p.snapshot() {
		if reason := c.failure(); reason != "" {
			out[c.name] = reason
		}
	}
	return out
}

// Health owns the liveness and readiness probes of one process.
type Health struct {
	live  probe
	ready probe
	// serving gates readiness on top of the checks. It starts false and is
	// flipped once startup is done, and back during shutdown.
	serving atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

func newCheck(name string, timeout time.Duration, fn CheckFunc, t []Thresholds) *check {
	th := DefaultThresholds
	if len(t) > 0 {
		th = t[0]
	}
	// Checks start healthy so a fresh process is not killed before the
	// first tick.
	return &check{name: name, timeout: timeout, fn: fn, thresholds: th, healthy: true}
}

// AddLivenessCheck registers a check that decides whether the process should
// be restarted. Optional thresholds override DefaultThresholds.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc, t ...Thresholds) {
	h.live.add(newCheck(name, timeout, fn, t))
}

// AddReadinessCheck registers a check that decides whether the process
// should receive traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc, t ...Thresholds) {
	h.ready.add(newCheck(name, timeout, fn, t))
}

// Start runs every registered check now and then every interval until Stop
// or ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	h.mu.Unlock()

	for _, c := range append(h.live.snapshot(), h.ready.snapshot()...) {
		go func() {
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				c.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-t.C:
				}
			}
		}()
	}
}

// Stop ends the background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady opens or closes the readiness gate.
func (h *Health) SetReady(ready bool) {
	h.serving.Store(ready)
}

// IsReady reports whether the gate is open and every readiness check passes.
func (h *Health) IsReady() bool {
	return h.serving.Load() && len(h.ready.failures()) == 0
}

// Report is the JSON body of both probe endpoints.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, h.live.failures())
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.ready.failures()
	if !h.serving.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeReport(w, failures)
}

func writeReport(w http.ResponseWriter, failures map[string]string) {
	rep := Report{Status: "ok"}
	status := http.StatusOK
	if len(failures) > 0 {
		rep = Report{Status: "unhealthy", Checks: failures}
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rep)
}
