package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/rulesengine/pkg/audit"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// AsyncBuffer is the size of the write queue.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds each storage write and how long Record waits
	// for space in a full queue.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Metrics receives the outcome of each audit write.
// *metrics.Collector implements this interface.
type Metrics interface {
	// RecordAuditWrite counts a write with status "success", "error" or "dropped".
	RecordAuditWrite(status string)
}

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("recorder closed")

// Recorder is an asynchronous audit.Sink backed by an audit.Storage.
type Recorder struct {
	storage    audit.Storage
	config     *Config
	recordChan chan *audit.Record
	done       chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.RWMutex
	closed  bool
	metrics Metrics
}

// NewRecorder creates a recorder and starts its worker.
func NewRecorder(storage audit.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = DefaultConfig().AsyncBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *audit.Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "audit.recorder"),
		now:        time.Now,
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// SetMetrics attaches a metrics recorder. Call before the first Record.
func (r *Recorder) SetMetrics(m Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// Record converts entry into an audit record and queues it for writing.
// It returns a RecorderError when the snapshots cannot be encoded, the
// queue stays full for WriteTimeout, or the recorder is closed.
func (r *Recorder) Record(ctx context.Context, entry *audit.Entry) error {
	record, err := r.newRecord(entry)
	if err != nil {
		return audit.NewRecorderError("", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.count("dropped")
		return audit.NewRecorderError(record.ID, ErrClosed)
	}

	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r.recordChan <- record:
		r.logger.Debug("audit record enqueued",
			"record_id", record.ID,
			"action", record.Action,
			"entity_id", record.EntityID,
		)
		return nil
	case <-timer.C:
		r.logger.Error("audit queue full, dropping record",
			"record_id", record.ID,
			"action", record.Action,
			"entity_id", record.EntityID,
			"queue_capacity", r.config.AsyncBuffer,
		)
		r.count("dropped")
		return audit.NewRecorderError(record.ID, context.DeadlineExceeded)
	case <-ctx.Done():
		r.count("dropped")
		return audit.NewRecorderError(record.ID, ctx.Err())
	}
}

// Close stops accepting entries, writes everything still queued and waits
// for the worker to exit. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("audit recorder shut down")
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			r.logger.Debug("draining audit queue", "pending_count", len(r.recordChan))
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *audit.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store audit record",
			"record_id", record.ID,
			"action", record.Action,
			"entity_id", record.EntityID,
			"error", err,
		)
		r.count("error")
		return
	}
	r.count("success")

	duration := time.Since(start)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow audit write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

func (r *Recorder) count(status string) {
	if m := r.metrics; m != nil {
		m.RecordAuditWrite(status)
	}
}

// newRecord builds the persisted form of entry.
func (r *Recorder) newRecord(entry *audit.Entry) (*audit.Record, error) {
	before, err := snapshot(entry.Before)
	if err != nil {
		return nil, err
	}
	after, err := snapshot(entry.After)
	if err != nil {
		return nil, err
	}

	actor := entry.Actor
	if actor == "" {
		actor = "system"
	}

	return &audit.Record{
		ID:          uuid.New().String(),
		Timestamp:   r.now().UTC(),
		TenantID:    entry.TenantID,
		Actor:       actor,
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Reason:      entry.Reason,
		Before:      before,
		After:       after,
		ContentHash: HashContent(before, after),
	}, nil
}

// snapshot JSON-encodes v. A nil value yields a nil snapshot.
func snapshot(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}
