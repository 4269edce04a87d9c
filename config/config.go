package config

import (
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type SchedulerConfig struct {
	Interval     string `mapstructure:"interval"`
	InitialDelay string `mapstructure:"initial_delay"`
}

type WorkerConfig struct {
	Count       int    `mapstructure:"count"`
	HTTPTimeout string `mapstructure:"http_timeout"`
	RetryDelay  string `mapstructure:"retry_delay"`
	DNSCacheTTL string `mapstructure:"dns_cache_ttl"`
}

type HealthConfig struct {
	ProbeInterval    string   `mapstructure:"probe_interval"`
	FailureThreshold int      `mapstructure:"failure_threshold"`
	SuccessThreshold int      `mapstructure:"success_threshold"`
	ProbeURLs        []string `mapstructure:"probe_urls"`
}

type QueueConfig struct {
	Capacity  int `mapstructure:"capacity"`
	HighWater int `mapstructure:"high_water"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type NotificationsConfig struct {
	DefaultThreshold int    `mapstructure:"default_threshold"`
	SettingsCacheTTL string `mapstructure:"settings_cache_ttl"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Health        HealthConfig        `mapstructure:"health"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("scheduler.interval", "30s")
	viper.SetDefault("scheduler.initial_delay", "10s")
	viper.SetDefault("worker.count", 12)
	viper.SetDefault("worker.http_timeout", "20s")
	viper.SetDefault("worker.retry_delay", "10s")
	viper.SetDefault("worker.dns_cache_ttl", "5m")
	viper.SetDefault("health.probe_interval", "2m")
	viper.SetDefault("health.failure_threshold", 3)
	viper.SetDefault("health.success_threshold", 3)
	viper.SetDefault("health.probe_urls", []string{
		"https://www.google.com",
		"https://one.one.one.one",
	})
	viper.SetDefault("queue.capacity", 5000)
	viper.SetDefault("queue.high_water", 1000)
	viper.SetDefault("storage.path", "lookout.db")
	viper.SetDefault("notifications.default_threshold", 5)
	viper.SetDefault("notifications.settings_cache_ttl", "5m")
	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Scheduler,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(SchedulerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a SchedulerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Interval,
						validation.Required,
						validation.By(validateDurationBetween(10*time.Second, 300*time.Second)),
					),
					validation.Field(&sc.InitialDelay,
						validation.Required,
						validation.By(validateDurationBetween(time.Second, time.Hour)),
					),
				)
			}),
		),
		validation.Field(&c.Worker,
			validation.Required,
			validation.By(func(value interface{}) error {
				wc, ok := value.(WorkerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a WorkerConfig")
				}
				return validation.ValidateStruct(&wc,
					validation.Field(&wc.Count,
						validation.Required,
						validation.Min(1),
						validation.Max(50),
					),
					validation.Field(&wc.HTTPTimeout,
						validation.Required,
						validation.By(validateDurationBetween(5*time.Second, 120*time.Second)),
					),
					validation.Field(&wc.RetryDelay,
						validation.Required,
						validation.By(validateDurationBetween(0, time.Minute)),
					),
					validation.Field(&wc.DNSCacheTTL,
						validation.Required,
						validation.By(validateDurationBetween(time.Second, time.Hour)),
					),
				)
			}),
		),
		validation.Field(&c.Health,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.ProbeInterval,
						validation.Required,
						validation.By(validateDurationBetween(time.Second, time.Hour)),
					),
					validation.Field(&hc.FailureThreshold,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&hc.SuccessThreshold,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&hc.ProbeURLs,
						validation.Required,
						validation.Each(is.URL),
					),
				)
			}),
		),
		validation.Field(&c.Queue,
			validation.Required,
			validation.By(func(value interface{}) error {
				qc, ok := value.(QueueConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a QueueConfig")
				}
				if qc.Capacity < 1 {
					return validation.NewError("validation_invalid_capacity", "queue capacity must be at least 1")
				}
				if qc.HighWater < 1 || qc.HighWater > qc.Capacity {
					return validation.NewError("validation_invalid_high_water", "queue high water must be between 1 and the capacity")
				}
				return nil
			}),
		),
		validation.Field(&c.Storage,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StorageConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StorageConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Path, validation.Required),
				)
			}),
		),
		validation.Field(&c.Notifications,
			validation.Required,
			validation.By(func(value interface{}) error {
				nc, ok := value.(NotificationsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a NotificationsConfig")
				}
				return validation.ValidateStruct(&nc,
					validation.Field(&nc.DefaultThreshold,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&nc.SettingsCacheTTL,
						validation.Required,
						validation.By(validateDurationBetween(time.Second, time.Hour)),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDurationBetween(min, max time.Duration) validation.RuleFunc {
	return func(value interface{}) error {
		durationStr, ok := value.(string)
		if !ok {
			return validation.NewError("validation_invalid_type", "must be a string")
		}

		d, err := time.ParseDuration(durationStr)
		if err != nil {
			return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 30s, 2m)")
		}

		if d < min || d > max {
			return validation.NewError("validation_duration_out_of_range", "duration out of the allowed range")
		}

		return nil
	}
}

// MustDuration parses a duration field that Validate has already vetted.
// It panics on malformed input, which can only happen if validation was
// skipped.
func MustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}
