package queue_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lookout-hq/lookout/internal/models"
	"github.com/lookout-hq/lookout/internal/queue"
)

var _ = Describe("Queue", func() {
	var q *queue.Queue

	item := func(id string) models.WorkItem {
		return models.WorkItem{EndpointID: id, ScheduledAt: time.Now()}
	}

	BeforeEach(func() {
		q = queue.New(3)
	})

	Describe("TryEnqueue", func() {
		It("should accept items up to capacity", func() {
			Expect(q.TryEnqueue(item("a"))).To(BeTrue())
			Expect(q.TryEnqueue(item("b"))).To(BeTrue())
			Expect(q.TryEnqueue(item("c"))).To(BeTrue())
			Expect(q.Depth()).To(Equal(3))
		})

		It("should reject items when full without blocking", func() {
			q.TryEnqueue(item("a"))
			q.TryEnqueue(item("b"))
			q.TryEnqueue(item("c"))

			Expect(q.TryEnqueue(item("overflow"))).To(BeFalse())
			Expect(q.Depth()).To(Equal(3))
		})

		It("should accept again after a dequeue frees a slot", func() {
			q.TryEnqueue(item("a"))
			q.TryEnqueue(item("b"))
			q.TryEnqueue(item("c"))

			q.Dequeue(time.Millisecond)
			Expect(q.TryEnqueue(item("d"))).To(BeTrue())
		})
	})

	Describe("Dequeue", func() {
		It("should return items in FIFO order", func() {
			q.TryEnqueue(item("first"))
			q.TryEnqueue(item("second"))

			got, ok := q.Dequeue(time.Millisecond)
			Expect(ok).To(BeTrue())
			Expect(got.EndpointID).To(Equal("first"))

			got, ok = q.Dequeue(time.Millisecond)
			Expect(ok).To(BeTrue())
			Expect(got.EndpointID).To(Equal("second"))
		})

		It("should time out on an empty queue", func() {
			start := time.Now()
			_, ok := q.Dequeue(20 * time.Millisecond)

			Expect(ok).To(BeFalse())
			Expect(time.Since(start)).To(BeNumerically(">=", 20*time.Millisecond))
		})

		It("should pick up an item enqueued while waiting", func() {
			go func() {
				time.Sleep(10 * time.Millisecond)
				q.TryEnqueue(item("late"))
			}()

			got, ok := q.Dequeue(200 * time.Millisecond)
			Expect(ok).To(BeTrue())
			Expect(got.EndpointID).To(Equal("late"))
		})
	})

	Describe("Depth and Capacity", func() {
		It("should track the number of queued items", func() {
			Expect(q.Depth()).To(BeZero())
			q.TryEnqueue(item("a"))
			Expect(q.Depth()).To(Equal(1))
		})

		It("should report the fixed capacity", func() {
			Expect(q.Capacity()).To(Equal(3))
		})
	})
})
