package writer_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lookout-hq/lookout/internal/models"
	"github.com/lookout-hq/lookout/internal/notify"
	"github.com/lookout-hq/lookout/internal/registry"
	"github.com/lookout-hq/lookout/internal/storage"
	"github.com/lookout-hq/lookout/internal/writer"
)

// statusUpdate captures one UpdateEndpointStatus call.
type statusUpdate struct {
	endpointID string
	count      int
}

// fakeStore records writer calls and lets tests inject failures.
type fakeStore struct {
	insertErr error
	updateErr error

	settings    map[string]models.NotificationSettings
	settingsErr error

	inserted []models.CheckResult
	updates  []statusUpdate
}

func newFakeStore() *fakeStore {
	return &fakeStore{settings: make(map[string]models.NotificationSettings)}
}

func (s *fakeStore) ListActiveEndpoints(ctx context.Context) ([]models.EndpointRecord, error) {
	return nil, nil
}

func (s *fakeStore) CreateEndpoint(ctx context.Context, rec models.EndpointRecord) error {
	return nil
}

func (s *fakeStore) DeleteEndpoint(ctx context.Context, id string) error { return nil }

func (s *fakeStore) InsertCheckResult(ctx context.Context, result *models.CheckResult) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, *result)
	return nil
}

func (s *fakeStore) UpdateEndpointStatus(ctx context.Context, id string, lastChecked time.Time, consecutiveFailures int) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, statusUpdate{endpointID: id, count: consecutiveFailures})
	return nil
}

func (s *fakeStore) ListCheckResults(ctx context.Context, endpointID string, limit int) ([]models.CheckResult, error) {
	return nil, nil
}

func (s *fakeStore) NotificationSettings(ctx context.Context, userID string) (models.NotificationSettings, error) {
	if s.settingsErr != nil {
		return models.NotificationSettings{}, s.settingsErr
	}
	settings, ok := s.settings[userID]
	if !ok {
		return models.NotificationSettings{}, storage.ErrNotFound
	}
	return settings, nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }

func (s *fakeStore) Close() error { return nil }

// fakeNotifier records outage notifications.
type fakeNotifier struct {
	outages []notify.Outage
	err     error
}

func (n *fakeNotifier) NotifyOutage(ctx context.Context, outage notify.Outage) error {
	if n.err != nil {
		return n.err
	}
	n.outages = append(n.outages, outage)
	return nil
}

var _ = Describe("Writer", func() {
	var (
		w        *writer.Writer
		store    *fakeStore
		reg      *registry.Registry
		notifier *fakeNotifier
		log      *slog.Logger
		ctx      context.Context
		rec      models.EndpointRecord
	)

	failure := func() models.CheckResult {
		msg := "unexpected status 500 Internal Server Error"
		code := 500
		return models.CheckResult{
			EndpointID: rec.ID,
			StatusCode: &code,
			Success:    false,
			Error:      &msg,
			CheckedAt:  time.Now(),
		}
	}

	success := func() models.CheckResult {
		code := 200
		return models.CheckResult{
			EndpointID: rec.ID,
			StatusCode: &code,
			Success:    true,
			CheckedAt:  time.Now(),
		}
	}

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError, // Suppress logs in tests
		}))
		store = newFakeStore()
		notifier = &fakeNotifier{}
		reg = registry.New(10*time.Second, log)
		ctx = context.Background()

		rec = models.EndpointRecord{
			ID:               "ep-1",
			Name:             "checkout service",
			URL:              "https://example.com/health",
			UserID:           "user-1",
			FrequencySeconds: 60,
			IsActive:         true,
			NextCheckAt:      time.Now().Add(time.Minute),
		}
		reg.Load([]models.EndpointRecord{rec})

		w = writer.New(store, reg, notifier, writer.Options{
			DefaultThreshold: 3,
			SettingsTTL:      time.Minute,
		}, log)
	})

	AfterEach(func() {
		w.Close()
	})

	Describe("Write", func() {
		It("should persist the raw result before anything else", func() {
			w.Write(ctx, rec, success())

			Expect(store.inserted).To(HaveLen(1))
			Expect(store.inserted[0].Success).To(BeTrue())
			Expect(store.updates).To(HaveLen(1))
		})

		It("should abort when the raw result write fails", func() {
			store.insertErr = errors.New("disk full")

			w.Write(ctx, rec, failure())

			Expect(store.updates).To(BeEmpty())
			Expect(notifier.outages).To(BeEmpty())
			count, _ := reg.ApplyResult(rec.ID, false, time.Now())
			Expect(count).To(Equal(1), "registry should not have been touched")
		})

		It("should reset the stored failure count on success", func() {
			w.Write(ctx, rec, failure())
			w.Write(ctx, rec, success())

			Expect(store.updates).To(HaveLen(2))
			Expect(store.updates[1].count).To(BeZero())
		})

		It("should accumulate failure counts across consecutive failures", func() {
			w.Write(ctx, rec, failure())
			w.Write(ctx, rec, failure())

			Expect(store.updates[0].count).To(Equal(1))
			Expect(store.updates[1].count).To(Equal(2))

			live, _ := reg.Get(rec.ID)
			Expect(live.ConsecutiveFailures).To(Equal(2))
		})

		It("should evict the endpoint when its row is gone", func() {
			store.updateErr = storage.ErrNotFound

			w.Write(ctx, rec, failure())

			// The raw result is durable even though the endpoint vanished.
			Expect(store.inserted).To(HaveLen(1))
			_, ok := reg.Get(rec.ID)
			Expect(ok).To(BeFalse())
			Expect(notifier.outages).To(BeEmpty())
		})

		It("should keep the registry entry on a transient update failure", func() {
			store.updateErr = errors.New("database is locked")

			w.Write(ctx, rec, failure())

			_, ok := reg.Get(rec.ID)
			Expect(ok).To(BeTrue())
			Expect(notifier.outages).To(BeEmpty())
		})
	})

	Describe("Notifications", func() {
		It("should fire exactly once, at the threshold crossing", func() {
			w.Write(ctx, rec, failure())
			w.Write(ctx, rec, failure())
			Expect(notifier.outages).To(BeEmpty())

			w.Write(ctx, rec, failure())
			Expect(notifier.outages).To(HaveLen(1))
			Expect(notifier.outages[0].ConsecutiveFailures).To(Equal(3))

			w.Write(ctx, rec, failure())
			Expect(notifier.outages).To(HaveLen(1), "past the threshold must stay silent")
		})

		It("should fire again after a recovery and a fresh streak", func() {
			for i := 0; i < 3; i++ {
				w.Write(ctx, rec, failure())
			}
			w.Write(ctx, rec, success())
			for i := 0; i < 3; i++ {
				w.Write(ctx, rec, failure())
			}

			Expect(notifier.outages).To(HaveLen(2))
		})

		It("should honor a user's stored threshold", func() {
			store.settings["user-1"] = models.NotificationSettings{
				UserID:           "user-1",
				Enabled:          true,
				FailureThreshold: 2,
			}

			w.Write(ctx, rec, failure())
			Expect(notifier.outages).To(BeEmpty())

			w.Write(ctx, rec, failure())
			Expect(notifier.outages).To(HaveLen(1))
		})

		It("should stay silent for a user who disabled notifications", func() {
			store.settings["user-1"] = models.NotificationSettings{
				UserID:           "user-1",
				Enabled:          false,
				FailureThreshold: 1,
			}

			for i := 0; i < 4; i++ {
				w.Write(ctx, rec, failure())
			}
			Expect(notifier.outages).To(BeEmpty())
		})

		It("should fall back to defaults when settings cannot be loaded", func() {
			store.settingsErr = errors.New("database is locked")

			w.Write(ctx, rec, failure())
			w.Write(ctx, rec, failure())
			w.Write(ctx, rec, failure())

			Expect(notifier.outages).To(HaveLen(1))
		})

		It("should describe the outage", func() {
			for i := 0; i < 3; i++ {
				w.Write(ctx, rec, failure())
			}

			outage := notifier.outages[0]
			Expect(outage.UserID).To(Equal("user-1"))
			Expect(outage.EndpointID).To(Equal("ep-1"))
			Expect(outage.EndpointName).To(Equal("checkout service"))
			Expect(outage.FailureThreshold).To(Equal(3))
		})

		It("should swallow notifier errors", func() {
			notifier.err = errors.New("smtp unavailable")

			Expect(func() {
				for i := 0; i < 3; i++ {
					w.Write(ctx, rec, failure())
				}
			}).NotTo(Panic())
		})
	})
})
