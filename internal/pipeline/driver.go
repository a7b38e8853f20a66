package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"roadsense/go-hub-server/internal/model"
	"roadsense/go-hub-server/internal/source"
)

const (
	defaultBatchSize = 10
	defaultInterval  = time.Second
)

// Source yields aggregated readings for one vehicle. Implementations are
// not safe for concurrent use; every Driver owns exactly one Source.
type Source interface {
	Read() (model.AggregatedReading, error)
	Skip()
	Close() error
}

// RecordStore persists processed records in batches.
type RecordStore interface {
	CreateBatch(ctx context.Context, records []model.ProcessedRecord) ([]model.ProcessedRecord, error)
}

// Publisher fans out newly stored records to live listeners.
type Publisher interface {
	Publish(userID int64, record model.ProcessedRecord)
}

// WithBatchSize sets how many processed records are grouped into one
// store transaction.
func WithBatchSize(size int) func(*Driver) {
	return func(d *Driver) {
		if size > 0 {
			d.batchSize = size
		}
	}
}

// WithInterval sets the delay between source reads.
func WithInterval(interval time.Duration) func(*Driver) {
	return func(d *Driver) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// Driver runs the sequential read, classify, persist and fan-out loop
// for one vehicle. Batching is the driver's policy, not the pipeline's.
type Driver struct {
	source    Source
	store     RecordStore
	publisher Publisher
	logger    *slog.Logger

	batchSize int
	interval  time.Duration
	batch     []model.ProcessedRecord
}

// NewDriver wires a driver around its collaborators.
func NewDriver(src Source, store RecordStore, publisher Publisher, logger *slog.Logger, options ...func(*Driver)) *Driver {
	d := &Driver{
		source:    src,
		store:     store,
		publisher: publisher,
		logger:    logger,
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
	}

	for _, option := range options {
		option(d)
	}

	return d
}

// Run polls the source until the context is cancelled. The current cycle
// finishes before exit, any pending batch is flushed, and the source is
// closed on every exit path.
func (d *Driver) Run(ctx context.Context) error {
	defer func() {
		if err := d.source.Close(); err != nil {
			d.logger.Error("close source", "error", err)
		}
	}()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := d.flush(flushCtx); err != nil {
				// No later tick will retry; the batch is lost.
				d.logger.Error("final flush failed, dropping batch", "dropped", len(d.batch), "error", err)
			}
			return nil
		case <-ticker.C:
			if err := d.tick(ctx); err != nil {
				return err
			}
		}
	}
}

func (d *Driver) tick(ctx context.Context) error {
	reading, err := d.source.Read()
	if err != nil {
		var malformed *source.MalformedRecordError
		switch {
		case errors.As(err, &malformed):
			// Local to one row; skip it and keep the run alive.
			d.logger.Warn("skipping malformed record", "stream", malformed.Stream, "row", malformed.Row, "error", malformed.Err)
			d.source.Skip()
			return nil
		case errors.Is(err, source.ErrNotOpen):
			return err
		default:
			d.logger.Error("source read failed", "error", err)
			return nil
		}
	}

	d.batch = append(d.batch, Process(reading))
	if len(d.batch) >= d.batchSize {
		if err := d.flush(ctx); err != nil {
			d.logger.Error("create batch failed, retrying next flush", "size", len(d.batch), "error", err)
		}
	}
	return nil
}

// flush writes the pending batch and publishes each stored record. On
// store failure the batch is retained; callers decide whether a retry
// is still possible.
func (d *Driver) flush(ctx context.Context) error {
	if len(d.batch) == 0 {
		return nil
	}

	stored, err := d.store.CreateBatch(ctx, d.batch)
	if err != nil {
		return err
	}
	d.batch = d.batch[:0]

	for _, record := range stored {
		d.publisher.Publish(record.UserID, record)
	}
	return nil
}
