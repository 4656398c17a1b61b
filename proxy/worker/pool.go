// Package worker provides an asynchronous worker pool that records decoded
// stream events with the provided storage.Driver and publishes them with the
// provided eventstream.Publisher.
//
// The pool decouples storage and publishing from the proxy's HTTP hot path so
// that the client-proxy-upstream interaction is fully transparent.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/wso2/copilotsse/pkg/eventstream"
	"github.com/wso2/copilotsse/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 10 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Event *eventstream.StreamEvent
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for recording events.
	Driver storage.Driver

	// Publisher is the optional event stream publisher. Events are published
	// only when Driver reports them as newly stored.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds storing and publishing a single job (defaults to 10s).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes recording jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	once   sync.Once
	logger *slog.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("worker pool requires a storage driver")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = defaultJobTimeout
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"stream_id", job.Event.StreamID,
			"seq", job.Event.Seq,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"stream_id", job.Event.StreamID,
			"seq", job.Event.Seq,
			"kind", job.Event.Kind,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the proxy HTTP server has stopped.
// Enqueue must not be called after Close.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()

	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob records the job's event and publishes it if it was new.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	ev := job.Event
	isNew, err := p.config.Driver.Put(ctx, ev)
	if err != nil {
		p.logger.Error("async event storage failed",
			"stream_id", ev.StreamID,
			"event_id", ev.EventID,
			"error", err,
		)
		return
	}

	p.logger.Debug("stored stream event",
		"stream_id", ev.StreamID,
		"seq", ev.Seq,
		"kind", ev.Kind,
		"is_new", isNew,
	)

	if !isNew || p.config.Publisher == nil {
		return
	}

	if err := p.config.Publisher.PublishEvent(ctx, ev); err != nil {
		p.logger.Warn("failed to publish stream event",
			"stream_id", ev.StreamID,
			"event_id", ev.EventID,
			"error", err,
		)
	}
}
