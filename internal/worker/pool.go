package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lookout-hq/lookout/internal/models"
	"github.com/lookout-hq/lookout/internal/queue"
	"github.com/lookout-hq/lookout/internal/registry"
)

// dequeueTimeout bounds how long an idle worker waits before re-checking the
// shutdown signal.
const dequeueTimeout = time.Second

// Checker performs the HTTP probe for one endpoint.
type Checker interface {
	Check(ctx context.Context, rec models.EndpointRecord) models.CheckResult
}

// ResultWriter receives each probe outcome synchronously from the worker
// that produced it.
type ResultWriter interface {
	Write(ctx context.Context, rec models.EndpointRecord, result models.CheckResult)
}

// Pool is the fixed set of concurrent check executors. Workers share the
// queue and the prober's connection pool and nothing else; there is no
// coordination between them.
type Pool struct {
	count    int
	queue    *queue.Queue
	registry *registry.Registry
	checker  Checker
	writer   ResultWriter
	logger   *slog.Logger

	wg sync.WaitGroup
}

func NewPool(count int, q *queue.Queue, reg *registry.Registry, checker Checker, writer ResultWriter, logger *slog.Logger) *Pool {
	if count <= 0 {
		count = 12
	}
	return &Pool{
		count:    count,
		queue:    q,
		registry: reg,
		checker:  checker,
		writer:   writer,
		logger:   logger,
	}
}

// Count returns the number of workers.
func (p *Pool) Count() int { return p.count }

// Start launches the workers. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(p.count)
	for i := 0; i < p.count; i++ {
		go p.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited. In-flight probes finish (or hit
// their own timeout) rather than being killed, so shutdown latency is
// bounded by the probe timeout plus the dequeue timeout.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.logger.With(slog.Int("worker_id", id))
	log.Debug("worker started")
	defer log.Debug("worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		item, ok := p.queue.Dequeue(dequeueTimeout)
		if !ok {
			continue
		}

		p.process(ctx, log, item)
	}
}

// process runs one work item. Anything that panics inside a check is logged
// and swallowed; a bad item must never take a worker down.
func (p *Pool) process(ctx context.Context, log *slog.Logger, item models.WorkItem) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing check",
				slog.String("endpoint_id", item.EndpointID),
				slog.Any("panic", r))
		}
	}()

	rec, ok := p.registry.Get(item.EndpointID)
	if !ok {
		// Deleted between enqueue and execution.
		log.Debug("endpoint no longer registered, skipping",
			slog.String("endpoint_id", item.EndpointID))
		return
	}

	result := p.checker.Check(ctx, rec)
	p.writer.Write(ctx, rec, result)
}
