package config

import "time"

// QueueConfig contains queue and worker pool configuration for asynchronous
// request processing.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines draining the queue.
	WorkerCount int `yaml:"worker_count"`

	// QueueSize bounds the pending request buffer; submits beyond it are
	// rejected synchronously.
	QueueSize int `yaml:"queue_size"`

	// RequestTimeout is the maximum time one queued request may process.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// GracefulShutdownTimeout is the max time to wait for active requests
	// to complete during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// ResultTTL is how long finished results stay fetchable before eviction.
	ResultTTL time.Duration `yaml:"result_ttl"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             4,
		QueueSize:               64,
		RequestTimeout:          3 * time.Minute,
		GracefulShutdownTimeout: 3 * time.Minute,
		ResultTTL:               30 * time.Minute,
	}
}
