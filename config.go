package spanz

import (
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Reporter kinds accepted by Config.Reporter.
const (
	ReporterConsole   = "console"
	ReporterZipkin    = "zipkin"
	ReporterCollector = "collector"
	ReporterNone      = "none"
)

// Config holds the agent's environment configuration.
type Config struct {
	Reporter            string        `envconfig:"SPANZ_REPORTER" default:"console"`
	ZipkinEndpoint      string        `envconfig:"SPANZ_ZIPKIN_ENDPOINT" default:"http://127.0.0.1:9411/api/v2/spans"`
	ZipkinBatchSize     int           `envconfig:"SPANZ_ZIPKIN_BATCH_SIZE" default:"100"`
	ZipkinBatchInterval time.Duration `envconfig:"SPANZ_ZIPKIN_BATCH_INTERVAL" default:"1s"`
	CollectorBuffer     int           `envconfig:"SPANZ_COLLECTOR_BUFFER" default:"1024"`
	IDPoolSize          int           `envconfig:"SPANZ_ID_POOL_SIZE" default:"0"`
	LogLevel            string        `envconfig:"SPANZ_LOG_LEVEL" default:"info"`
	LogFormat           string        `envconfig:"SPANZ_LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration used when the environment is empty.
func DefaultConfig() *Config {
	return &Config{
		Reporter:            ReporterConsole,
		ZipkinEndpoint:      "http://127.0.0.1:9411/api/v2/spans",
		ZipkinBatchSize:     100,
		ZipkinBatchInterval: time.Second,
		CollectorBuffer:     1024,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Validate checks field values that envconfig cannot.
func (c *Config) Validate() error {
	switch c.Reporter {
	case ReporterConsole, ReporterZipkin, ReporterCollector, ReporterNone:
	default:
		return errors.Newf("unknown reporter %q", c.Reporter)
	}
	if c.Reporter == ReporterZipkin && c.ZipkinEndpoint == "" {
		return errors.New("zipkin reporter requires an endpoint")
	}
	if c.Reporter == ReporterCollector && c.CollectorBuffer <= 0 {
		return errors.Newf("collector buffer must be > 0, got %d", c.CollectorBuffer)
	}
	if c.IDPoolSize < 0 {
		return errors.Newf("id pool size must be >= 0, got %d", c.IDPoolSize)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log level")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return errors.Newf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Logger builds the logrus logger described by the config, writing to out.
func (c *Config) Logger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			DisableColors:   true,
			TimestampFormat: time.DateTime,
		})
	}
	return logger, nil
}

// NewFromConfig builds an agent from cfg. The returned shutdown function
// releases the reporter and id pool; it is never nil.
// With ReporterCollector the agent's reporter is a *Collector.
func NewFromConfig(cfg *Config, logger *logrus.Logger) (*Agent, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var (
		rep     Reporter
		closers []func() error
	)
	shutdown := func() error {
		var err error
		for i := len(closers) - 1; i >= 0; i-- {
			err = errors.CombineErrors(err, closers[i]())
		}
		return err
	}

	switch cfg.Reporter {
	case ReporterConsole:
		rep = NewConsoleReporter(logger)
	case ReporterZipkin:
		z := NewZipkinHTTPReporter(cfg.ZipkinEndpoint, cfg.ZipkinBatchSize, cfg.ZipkinBatchInterval, logger)
		closers = append(closers, z.Close)
		rep = z
	case ReporterCollector:
		c := NewCollector("spanz", cfg.CollectorBuffer)
		closers = append(closers, func() error { c.Close(); return nil })
		rep = c
	case ReporterNone:
		rep = NopReporter
	}

	agent := New(rep).WithLogger(logger)
	if cfg.IDPoolSize > 0 {
		pool := NewIDPool(cfg.IDPoolSize, nil)
		closers = append(closers, func() error { pool.Close(); return nil })
		agent = agent.WithIDSource(pool)
	}

	logger.WithField("reporter", cfg.Reporter).
		WithField("id_pool_size", cfg.IDPoolSize).
		Debug("spanz agent configured")

	return agent, shutdown, nil
}
