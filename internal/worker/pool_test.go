package worker_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lookout-hq/lookout/internal/models"
	"github.com/lookout-hq/lookout/internal/queue"
	"github.com/lookout-hq/lookout/internal/registry"
	"github.com/lookout-hq/lookout/internal/worker"
)

// fakeChecker returns a canned result and can be told to panic.
type fakeChecker struct {
	mutex    sync.Mutex
	checked  []string
	panicFor string
}

func (c *fakeChecker) Check(ctx context.Context, rec models.EndpointRecord) models.CheckResult {
	c.mutex.Lock()
	c.checked = append(c.checked, rec.ID)
	shouldPanic := rec.ID == c.panicFor
	c.mutex.Unlock()

	if shouldPanic {
		panic("checker blew up")
	}
	return models.CheckResult{EndpointID: rec.ID, Success: true, CheckedAt: time.Now()}
}

func (c *fakeChecker) ids() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]string(nil), c.checked...)
}

// fakeWriter records written results.
type fakeWriter struct {
	mutex   sync.Mutex
	written []models.CheckResult
}

func (w *fakeWriter) Write(ctx context.Context, rec models.EndpointRecord, result models.CheckResult) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.written = append(w.written, result)
}

func (w *fakeWriter) results() []models.CheckResult {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return append([]models.CheckResult(nil), w.written...)
}

var _ = Describe("Pool", func() {
	var (
		pool    *worker.Pool
		q       *queue.Queue
		reg     *registry.Registry
		checker *fakeChecker
		writer  *fakeWriter
		log     *slog.Logger
		ctx     context.Context
		cancel  context.CancelFunc
	)

	register := func(id string) {
		reg.Load([]models.EndpointRecord{{
			ID:               id,
			URL:              "https://example.com",
			UserID:           "user-1",
			FrequencySeconds: 60,
			IsActive:         true,
			NextCheckAt:      time.Now().Add(time.Minute),
		}})
	}

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError, // Suppress logs in tests
		}))
		q = queue.New(10)
		reg = registry.New(10*time.Second, log)
		checker = &fakeChecker{}
		writer = &fakeWriter{}
		pool = worker.NewPool(2, q, reg, checker, writer, log)
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
		pool.Wait()
	})

	Describe("NewPool", func() {
		It("should fall back to the default worker count", func() {
			p := worker.NewPool(0, q, reg, checker, writer, log)
			Expect(p.Count()).To(Equal(12))
		})
	})

	Describe("processing", func() {
		It("should check a registered endpoint and write the result", func() {
			register("ep-1")
			pool.Start(ctx)

			q.TryEnqueue(models.WorkItem{EndpointID: "ep-1", ScheduledAt: time.Now()})

			Eventually(writer.results, time.Second).Should(HaveLen(1))
			Expect(writer.results()[0].EndpointID).To(Equal("ep-1"))
		})

		It("should skip items whose endpoint was deleted after enqueue", func() {
			register("ep-1")
			pool.Start(ctx)

			q.TryEnqueue(models.WorkItem{EndpointID: "gone", ScheduledAt: time.Now()})
			q.TryEnqueue(models.WorkItem{EndpointID: "ep-1", ScheduledAt: time.Now()})

			Eventually(writer.results, time.Second).Should(HaveLen(1))
			Expect(checker.ids()).To(ConsistOf("ep-1"))
		})

		It("should survive a panicking check", func() {
			register("boom")
			checker.panicFor = "boom"
			pool.Start(ctx)

			q.TryEnqueue(models.WorkItem{EndpointID: "boom", ScheduledAt: time.Now()})
			Eventually(checker.ids, time.Second).Should(ContainElement("boom"))

			// The same workers must still process later items.
			register("ep-2")
			q.TryEnqueue(models.WorkItem{EndpointID: "ep-2", ScheduledAt: time.Now()})
			Eventually(writer.results, time.Second).Should(HaveLen(1))
		})

		It("should drain items concurrently across workers", func() {
			reg.Load([]models.EndpointRecord{
				{ID: "a", URL: "https://example.com", UserID: "u", FrequencySeconds: 60, IsActive: true, NextCheckAt: time.Now().Add(time.Minute)},
				{ID: "b", URL: "https://example.com", UserID: "u", FrequencySeconds: 60, IsActive: true, NextCheckAt: time.Now().Add(time.Minute)},
				{ID: "c", URL: "https://example.com", UserID: "u", FrequencySeconds: 60, IsActive: true, NextCheckAt: time.Now().Add(time.Minute)},
			})
			pool.Start(ctx)

			for _, id := range []string{"a", "b", "c"} {
				q.TryEnqueue(models.WorkItem{EndpointID: id, ScheduledAt: time.Now()})
			}

			Eventually(writer.results, time.Second).Should(HaveLen(3))
			Expect(q.Depth()).To(BeZero())
		})
	})

	Describe("shutdown", func() {
		It("should stop all workers on cancellation", func() {
			pool.Start(ctx)
			cancel()

			done := make(chan struct{})
			go func() {
				pool.Wait()
				close(done)
			}()

			Eventually(done, 3*time.Second).Should(BeClosed())
		})
	})
})
