package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lookout-hq/lookout/internal/health"
	"github.com/lookout-hq/lookout/internal/metrics"
	"github.com/lookout-hq/lookout/internal/models"
	"github.com/lookout-hq/lookout/internal/notify"
	"github.com/lookout-hq/lookout/internal/queue"
	"github.com/lookout-hq/lookout/internal/registry"
	"github.com/lookout-hq/lookout/internal/storage"
	"github.com/lookout-hq/lookout/internal/worker"
	"github.com/lookout-hq/lookout/internal/writer"
)

// ErrNotInitialized is returned by Start when Initialize has not run.
var ErrNotInitialized = errors.New("engine must be initialized before starting")

// Options configures the engine.
type Options struct {
	ScanInterval  time.Duration // due-item scan period
	InitialDelay  time.Duration // first check delay for brand-new endpoints
	WorkerCount   int
	QueueCapacity int

	// Writer pass-through.
	DefaultNotifyThreshold int
	SettingsCacheTTL       time.Duration
}

func (o Options) withDefaults() Options {
	if o.ScanInterval <= 0 {
		o.ScanInterval = 30 * time.Second
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 10 * time.Second
	}
	if o.WorkerCount <= 0 {
		o.WorkerCount = 12
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 5000
	}
	return o
}

// Status is the read-only operational snapshot.
type Status struct {
	Running       bool          `json:"running"`
	Initialized   bool          `json:"initialized"`
	EndpointCount int           `json:"endpoint_count"`
	QueueDepth    int           `json:"queue_depth"`
	WorkerCount   int           `json:"worker_count"`
	Health        health.Status `json:"health"`
}

// Engine owns the whole scheduling pipeline: registry, scanner, queue,
// worker pool and result writer. All engine state is explicit instance
// state, so several independent engines can coexist in one process (which is
// also what makes it testable).
type Engine struct {
	opts Options

	store    storage.Store
	registry *registry.Registry
	queue    *queue.Queue
	monitor  *health.Monitor
	pool     *worker.Pool
	writer   *writer.Writer
	metrics  *metrics.Collector
	logger   *slog.Logger

	mutex       sync.Mutex
	running     bool
	initialized bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New assembles an engine. The checker is the shared prober; the monitor
// must be constructed against the same store.
func New(opts Options, store storage.Store, monitor *health.Monitor, checker worker.Checker, notifier notify.Notifier, collector *metrics.Collector, logger *slog.Logger) *Engine {
	opts = opts.withDefaults()

	reg := registry.New(opts.InitialDelay, logger.With(slog.String("component", "registry")))
	q := queue.New(opts.QueueCapacity)
	w := writer.New(store, reg, notifier, writer.Options{
		DefaultThreshold: opts.DefaultNotifyThreshold,
		SettingsTTL:      opts.SettingsCacheTTL,
	}, logger.With(slog.String("component", "writer")))

	e := &Engine{
		opts:     opts,
		store:    store,
		registry: reg,
		queue:    q,
		monitor:  monitor,
		writer:   w,
		metrics:  collector,
		logger:   logger,
	}
	e.pool = worker.NewPool(opts.WorkerCount, q, reg,
		&meteredChecker{checker: checker, collector: collector},
		w, logger.With(slog.String("component", "worker")))
	return e
}

// Initialize performs the single startup read of active endpoint
// configurations. Every later registry change arrives via the change feed.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.initialized {
		e.logger.Warn("engine already initialized")
		return nil
	}

	records, err := e.store.ListActiveEndpoints(ctx)
	if err != nil {
		return fmt.Errorf("failed to load endpoints: %w", err)
	}

	e.registry.Load(records)
	e.initialized = true

	e.logger.Info("engine initialized", slog.Int("endpoints", len(records)))
	return nil
}

// Start launches the worker pool and the scanner loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	if e.running {
		e.logger.Warn("engine already running")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true

	e.pool.Start(runCtx)

	e.wg.Add(1)
	go e.scanLoop(runCtx)

	e.logger.Info("engine started",
		slog.Int("workers", e.opts.WorkerCount),
		slog.Duration("scan_interval", e.opts.ScanInterval))
	return nil
}

// Stop halts the scanner at its next wake and the workers at their next
// dequeue timeout. In-flight probes finish within their own timeout.
func (e *Engine) Stop() {
	e.mutex.Lock()
	if !e.running {
		e.mutex.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mutex.Unlock()

	cancel()
	e.wg.Wait()
	e.pool.Wait()
	e.writer.Close()

	e.logger.Info("engine stopped")
}

// Status returns the operational snapshot for the introspection surface.
func (e *Engine) Status() Status {
	e.mutex.Lock()
	running, initialized := e.running, e.initialized
	e.mutex.Unlock()

	return Status{
		Running:       running,
		Initialized:   initialized,
		EndpointCount: e.registry.Size(),
		QueueDepth:    e.queue.Depth(),
		WorkerCount:   e.opts.WorkerCount,
		Health:        e.monitor.Status(),
	}
}

// OnEndpointCreated registers a just-created endpoint. Its first check runs
// after the short initial delay, not a full cadence.
func (e *Engine) OnEndpointCreated(rec models.EndpointRecord) {
	e.registry.Upsert(rec)
	e.logger.Info("endpoint registered",
		slog.String("endpoint_id", rec.ID),
		slog.String("name", rec.Name))
}

// OnEndpointUpdated replaces an endpoint's configuration in place.
func (e *Engine) OnEndpointUpdated(rec models.EndpointRecord) {
	e.registry.Upsert(rec)
	e.logger.Info("endpoint updated", slog.String("endpoint_id", rec.ID))
}

// OnEndpointDeleted drops an endpoint from the registry. Unknown IDs are a
// no-op; an item already queued for it executes as a no-op too.
func (e *Engine) OnEndpointDeleted(id string) {
	e.registry.Remove(id)
	e.logger.Info("endpoint removed", slog.String("endpoint_id", id))
}

func (e *Engine) scanLoop(ctx context.Context) {
	defer e.wg.Done()

	log := e.logger.With(slog.String("component", "scanner"))
	log.Info("scanner started")
	defer log.Info("scanner stopped")

	ticker := time.NewTicker(e.opts.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.scanOnce(ctx, log)
		}
	}
}

// scanOnce is one scheduling tick. Both gates are consulted before the
// registry is touched: the breaker pauses on downstream failure, the queue
// high-water check pauses on saturation.
func (e *Engine) scanOnce(ctx context.Context, log *slog.Logger) {
	healthy := e.monitor.CheckSystemHealth(ctx)
	e.metrics.Emit(metrics.Event{
		Type:        metrics.EventHealthChanged,
		Timestamp:   time.Now(),
		HealthState: e.monitor.Gate().String(),
	})
	if !healthy {
		log.Warn("system unhealthy, skipping scheduling cycle")
		return
	}

	if e.monitor.QueueOverwhelmed(e.queue.Depth()) {
		return
	}

	due := e.registry.SnapshotDue(time.Now())
	if len(due) == 0 {
		return
	}

	enqueued := 0
	for _, item := range due {
		if !e.queue.TryEnqueue(item) {
			// Queue filled mid-tick. Re-arm the item so the next tick
			// retries it instead of waiting out a full cadence.
			e.registry.Reschedule(item.EndpointID, item.ScheduledAt)
			continue
		}
		enqueued++
		e.metrics.Emit(metrics.Event{
			Type:       metrics.EventCheckQueued,
			Timestamp:  time.Now(),
			EndpointID: item.EndpointID,
		})
	}

	log.Info("scheduled endpoint checks",
		slog.Int("due", len(due)),
		slog.Int("enqueued", enqueued),
		slog.Int("queue_depth", e.queue.Depth()))
}

// meteredChecker emits a completion event for every probe without the
// prober or the pool knowing about metrics.
type meteredChecker struct {
	checker   worker.Checker
	collector *metrics.Collector
}

func (m *meteredChecker) Check(ctx context.Context, rec models.EndpointRecord) models.CheckResult {
	result := m.checker.Check(ctx, rec)

	event := metrics.Event{
		Type:       metrics.EventCheckCompleted,
		Timestamp:  result.CheckedAt,
		EndpointID: result.EndpointID,
		Duration:   time.Duration(result.LatencyMS) * time.Millisecond,
		Success:    result.Success,
	}
	if result.StatusCode != nil {
		event.StatusCode = *result.StatusCode
	}
	m.collector.Emit(event)

	return result
}
