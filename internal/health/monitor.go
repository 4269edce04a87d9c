package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// State is the circuit breaker gate.
type State int

const (
	StateClosed State = iota // healthy, scheduling proceeds
	StateOpen                // unhealthy, scheduling paused
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Pinger is the slice of the backing store the monitor probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the monitor. Zero values fall back to the defaults the
// engine ships with.
type Options struct {
	FailureThreshold int           // consecutive failed probes before the gate opens
	SuccessThreshold int           // consecutive successful probes before it closes again
	ProbeInterval    time.Duration // at most one real probe per interval
	ProbeTimeout     time.Duration
	QueueHighWater   int
	ProbeURLs        []string

	// Reachability overrides the network reachability probe. Tests use it;
	// production leaves it nil and gets the HTTP probe against ProbeURLs.
	Reachability func(ctx context.Context) bool
}

func (o Options) withDefaults() Options {
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 3
	}
	if o.SuccessThreshold <= 0 {
		o.SuccessThreshold = 3
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = 2 * time.Minute
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 10 * time.Second
	}
	if o.QueueHighWater <= 0 {
		o.QueueHighWater = 1000
	}
	return o
}

// Status is a read-only snapshot for the introspection surface.
type Status struct {
	State                string    `json:"state"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastProbeAt          time.Time `json:"last_probe_at"`
	LastFailureReason    string    `json:"last_failure_reason,omitempty"`
}

// Monitor is the health monitor and circuit breaker for the whole engine.
// A probe checks backing-store connectivity and general network
// reachability; both must pass for the probe to count as a success. Probes
// are throttled, so callers inside the window get the cached verdict.
type Monitor struct {
	mutex sync.Mutex

	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	lastProbeAt          time.Time
	lastFailureReason    string
	probing              bool

	opts   Options
	pinger Pinger
	client *http.Client
	logger *slog.Logger
}

// NewMonitor creates a monitor with the gate closed.
func NewMonitor(opts Options, pinger Pinger, logger *slog.Logger) *Monitor {
	opts = opts.withDefaults()
	return &Monitor{
		state:  StateClosed,
		opts:   opts,
		pinger: pinger,
		client: &http.Client{Timeout: opts.ProbeTimeout},
		logger: logger,
	}
}

// CheckSystemHealth returns true while the gate is closed. At most one real
// probe runs per interval; every other call inside the window, and any call
// racing an in-flight probe, returns the cached verdict.
func (m *Monitor) CheckSystemHealth(ctx context.Context) bool {
	m.mutex.Lock()
	if m.probing || time.Since(m.lastProbeAt) < m.opts.ProbeInterval {
		healthy := m.state == StateClosed
		m.mutex.Unlock()
		return healthy
	}
	m.probing = true
	m.lastProbeAt = time.Now()
	m.mutex.Unlock()

	reason := m.runProbe(ctx)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.probing = false

	if reason == "" {
		m.recordSuccess()
	} else {
		m.recordFailure(reason)
	}
	return m.state == StateClosed
}

// ForceProbe bypasses the throttle window and runs a probe immediately. A
// probe already in flight is never doubled; the cached verdict is returned
// instead.
func (m *Monitor) ForceProbe(ctx context.Context) bool {
	m.mutex.Lock()
	if m.probing {
		healthy := m.state == StateClosed
		m.mutex.Unlock()
		return healthy
	}
	m.lastProbeAt = time.Time{}
	m.mutex.Unlock()
	return m.CheckSystemHealth(ctx)
}

// Gate returns the current breaker state.
func (m *Monitor) Gate() State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// QueueOverwhelmed reports whether the work queue depth has reached the
// high-water mark. It is a backpressure signal independent of the breaker:
// scheduling pauses for the tick even while the gate is closed.
func (m *Monitor) QueueOverwhelmed(depth int) bool {
	if depth >= m.opts.QueueHighWater {
		m.logger.Warn("work queue overwhelmed, pausing scheduling",
			slog.Int("depth", depth),
			slog.Int("high_water", m.opts.QueueHighWater))
		return true
	}
	return false
}

// Status returns a snapshot of the health state.
func (m *Monitor) Status() Status {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return Status{
		State:                m.state.String(),
		ConsecutiveFailures:  m.consecutiveFailures,
		ConsecutiveSuccesses: m.consecutiveSuccesses,
		LastProbeAt:          m.lastProbeAt,
		LastFailureReason:    m.lastFailureReason,
	}
}

// runProbe runs both checks and returns an empty string on success or a
// reason on failure. A probe that errors is a failed probe, never a panic.
func (m *Monitor) runProbe(ctx context.Context) string {
	probeCtx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()

	if err := m.pinger.Ping(probeCtx); err != nil {
		return "store: " + err.Error()
	}
	if !m.reachable(probeCtx) {
		return "network unreachable"
	}
	return ""
}

// reachable tries each probe URL in order; one good answer is enough.
func (m *Monitor) reachable(ctx context.Context) bool {
	if m.opts.Reachability != nil {
		return m.opts.Reachability(ctx)
	}

	for _, target := range m.opts.ProbeURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			continue
		}
		res, err := m.client.Do(req)
		if err != nil {
			continue
		}
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			return true
		}
	}
	return false
}

func (m *Monitor) recordSuccess() {
	m.consecutiveFailures = 0
	m.consecutiveSuccesses++
	m.lastFailureReason = ""

	if m.state == StateOpen && m.consecutiveSuccesses >= m.opts.SuccessThreshold {
		m.state = StateClosed
		m.consecutiveSuccesses = 0
		m.logger.Info("system health recovered, resuming scheduling")
	}
}

func (m *Monitor) recordFailure(reason string) {
	m.consecutiveSuccesses = 0
	m.consecutiveFailures++
	m.lastFailureReason = reason

	if m.state == StateClosed && m.consecutiveFailures >= m.opts.FailureThreshold {
		m.state = StateOpen
		m.logger.Error("system health degraded, pausing scheduling",
			slog.Int("consecutive_failures", m.consecutiveFailures),
			slog.String("reason", reason))
	} else {
		m.logger.Warn("health probe failed",
			slog.Int("consecutive_failures", m.consecutiveFailures),
			slog.String("reason", reason))
	}
}
