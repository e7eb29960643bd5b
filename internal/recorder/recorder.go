package recorder

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kdimtricp/repcam/internal/models"
)

const (
	DefaultQueueSize   = 64
	DefaultSinkTimeout = 10 * time.Second
)

// Sink persists finalized records and saved measurements somewhere.
type Sink interface {
	Name() string
	SaveRecord(ctx context.Context, rec *models.SessionRecord) error
	SaveMeasurement(ctx context.Context, m *models.Measurement) error
}

type Config struct {
	QueueSize   int
	SinkTimeout time.Duration
}

type Stats struct {
	Records      int64 `json:"records"`
	Measurements int64 `json:"measurements"`
	Dropped      int64 `json:"dropped"`
	Failures     int64 `json:"failures"`
}

type job struct {
	record      *models.SessionRecord
	measurement *models.Measurement
}

// Recorder hands records off to its sinks on a single background worker.
// Publish calls never block; when the queue is full the item is dropped and
// logged.
type Recorder struct {
	config Config
	sinks  []Sink
	queue  chan job

	mu     sync.Mutex
	stats  Stats
	closed bool

	startOnce sync.Once
	done      chan struct{}
}

func New(config Config, sinks ...Sink) *Recorder {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.SinkTimeout <= 0 {
		config.SinkTimeout = DefaultSinkTimeout
	}
	return &Recorder{
		config: config,
		sinks:  sinks,
		queue:  make(chan job, config.QueueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the worker. Cancelling ctx does not discard queued items;
// Close drains them.
func (r *Recorder) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		names := make([]string, 0, len(r.sinks))
		for _, s := range r.sinks {
			names = append(names, s.Name())
		}
		log.Printf("[RECORDER] Starting with sinks %v (queue %d)", names, r.config.QueueSize)
		go r.worker(ctx)
	})
}

func (r *Recorder) PublishRecord(rec *models.SessionRecord) {
	if rec == nil {
		return
	}
	r.enqueue(job{record: rec})
}

func (r *Recorder) PublishMeasurement(m *models.Measurement) {
	if m == nil {
		return
	}
	r.enqueue(job{measurement: m})
}

func (r *Recorder) enqueue(j job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.stats.Dropped++
		log.Printf("[RECORDER] Closed, dropping %s", j.describe())
		return
	}
	select {
	case r.queue <- j:
	default:
		r.stats.Dropped++
		log.Printf("[RECORDER] Queue full, dropping %s", j.describe())
	}
}

func (j job) describe() string {
	if j.record != nil {
		return "record " + j.record.ID
	}
	return "measurement " + j.measurement.ID
}

func (r *Recorder) worker(ctx context.Context) {
	defer close(r.done)
	for j := range r.queue {
		r.dispatch(ctx, j)
	}
}

func (r *Recorder) dispatch(parent context.Context, j job) {
	// Queued items outlive a cancelled parent so shutdown can still drain.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.config.SinkTimeout)
	defer cancel()

	failed := 0
	for _, sink := range r.sinks {
		var err error
		if j.record != nil {
			err = sink.SaveRecord(ctx, j.record)
		} else {
			err = sink.SaveMeasurement(ctx, j.measurement)
		}
		if err != nil {
			failed++
			log.Printf("[RECORDER] %s failed for %s: %v", sink.Name(), j.describe(), err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if j.record != nil {
		r.stats.Records++
	} else {
		r.stats.Measurements++
	}
	r.stats.Failures += int64(failed)
}

// Close stops accepting new items and waits for the queue to drain or ctx
// to expire.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	// Without a prior Start the worker runs here just to drain.
	r.startOnce.Do(func() { go r.worker(context.Background()) })

	select {
	case <-r.done:
		log.Printf("[RECORDER] Stopped: %+v", r.Stats())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
