package archive

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "memory", "redis" or "badger"
	addrs    []string
	password string
	path     string

	embedder     Embedder
	modelVersion string
	dimensions   int
	embedTimeout time.Duration

	async   bool
	workers int

	limits Limits

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// Limits bounds pagination and semantic top-K. Zero fields take the defaults.
type Limits struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultTopK      int
	MaxTopK          int
	DefaultThreshold float64
}

// WithMemory keeps embeddings in process memory only (default).
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithRedis persists embeddings in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithBadger persists embeddings in an embedded BadgerDB at path.
func WithBadger(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "badger"
		c.path = path
	})
}

// WithEmbedder sets the embedding provider. modelVersion identifies the model
// and dimensions; vectors stored under any other version are re-embedded.
func WithEmbedder(e Embedder, modelVersion string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.modelVersion = modelVersion
		c.dimensions = dimensions
	})
}

// WithHashEmbedder uses the deterministic feature-hashing embedder.
// Suitable for development and tests; needs no network.
func WithHashEmbedder(dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = nil
		c.dimensions = dimensions
		c.modelVersion = fmt.Sprintf("hash::%d", dimensions)
	})
}

// WithEmbedTimeout bounds each embedding call. Exceeding it fails a
// semantic query with ErrUpstreamTimeout. Default: 5s.
func WithEmbedTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedTimeout = d
	})
}

// WithAsync computes entity embeddings on a pool of workers instead of
// inside OnEntityChanged.
func WithAsync(workers int) Option {
	return optionFunc(func(c *clientConfig) {
		c.async = true
		c.workers = workers
	})
}

// WithLimits overrides pagination and top-K bounds.
func WithLimits(l Limits) Option {
	return optionFunc(func(c *clientConfig) {
		c.limits = l
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
