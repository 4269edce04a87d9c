package config_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lookout-hq/lookout/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:     ":8080",
			Environment: config.EnvDev,
		},
		Scheduler: config.SchedulerConfig{
			Interval:     "30s",
			InitialDelay: "10s",
		},
		Worker: config.WorkerConfig{
			Count:       12,
			HTTPTimeout: "20s",
			RetryDelay:  "10s",
			DNSCacheTTL: "5m",
		},
		Health: config.HealthConfig{
			ProbeInterval:    "2m",
			FailureThreshold: 3,
			SuccessThreshold: 3,
			ProbeURLs:        []string{"https://www.google.com"},
		},
		Queue: config.QueueConfig{
			Capacity:  5000,
			HighWater: 1000,
		},
		Storage: config.StorageConfig{
			Path: "lookout.db",
		},
		Notifications: config.NotificationsConfig{
			DefaultThreshold: 5,
			SettingsCacheTTL: "5m",
		},
		Logging: config.LoggingConfig{
			Level: config.LogLevelInfo,
		},
	}
}

var _ = Describe("Config", func() {
	Describe("Validate", func() {
		It("should accept a complete configuration", func() {
			Expect(validConfig().Validate()).To(Succeed())
		})

		It("should reject an unknown environment", func() {
			cfg := validConfig()
			cfg.Server.Environment = "production"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an address without a port", func() {
			cfg := validConfig()
			cfg.Server.Address = "localhost"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject a scan interval outside the allowed range", func() {
			cfg := validConfig()
			cfg.Scheduler.Interval = "1s"
			Expect(cfg.Validate()).NotTo(Succeed())

			cfg.Scheduler.Interval = "10m"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject a malformed duration", func() {
			cfg := validConfig()
			cfg.Worker.HTTPTimeout = "twenty seconds"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject a worker count outside the allowed range", func() {
			cfg := validConfig()
			cfg.Worker.Count = 0
			Expect(cfg.Validate()).NotTo(Succeed())

			cfg.Worker.Count = 100
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject a high-water mark above the queue capacity", func() {
			cfg := validConfig()
			cfg.Queue.HighWater = 6000
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an invalid probe URL", func() {
			cfg := validConfig()
			cfg.Health.ProbeURLs = []string{"not a url"}
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should require a storage path", func() {
			cfg := validConfig()
			cfg.Storage.Path = ""
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an unknown log level", func() {
			cfg := validConfig()
			cfg.Logging.Level = "verbose"
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})

	Describe("MustDuration", func() {
		It("should parse a validated duration", func() {
			Expect(config.MustDuration("30s")).To(Equal(30 * time.Second))
		})

		It("should panic on malformed input", func() {
			Expect(func() { config.MustDuration("nope") }).To(Panic())
		})
	})
})
