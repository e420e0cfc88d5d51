package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/orbs-data-etl/internal/domain"
	"github.com/couchcryptid/orbs-data-etl/internal/observability"
)

// StationSource reads the station-coordinate document.
type StationSource interface {
	Stations(ctx context.Context) (domain.StationSource, error)
}

// Transformer converts one station entry into its output record. ok is false
// when the entry is skipped. An error aborts the entry's sample type.
type Transformer interface {
	Transform(ctx context.Context, st domain.SampleType, entry domain.StationEntry) (rec domain.StationRecord, ok bool, err error)
}

// RecordSink receives the complete, ordered record collection of one sample type.
type RecordSink interface {
	Name() string
	WriteRecords(ctx context.Context, st domain.SampleType, records []domain.StationRecord) error
}

// Aggregator runs the station transformer over every sample type and hands
// each finished collection to the sinks.
type Aggregator struct {
	source      StationSource
	transformer Transformer
	sinks       []RecordSink
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	workers     int
	ready       atomic.Bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWorkers sets how many stations of a sample type are processed
// concurrently. Values below 1 are treated as 1.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n < 1 {
			n = 1
		}
		a.workers = n
	}
}

// WithClock replaces the clock used to time runs.
func WithClock(c clockwork.Clock) Option {
	return func(a *Aggregator) { a.clock = c }
}

// New creates an Aggregator with the given stages and observability.
func New(src StationSource, t Transformer, sinks []RecordSink, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:      src,
		transformer: t,
		sinks:       sinks,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		workers:     1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CheckReadiness returns nil once a run has completed without errors.
func (a *Aggregator) CheckReadiness(_ context.Context) error {
	if !a.ready.Load() {
		return errors.New("no processing run has completed yet")
	}
	return nil
}

// Run processes Seawater, Fish and Seaweed in that order. A sample type whose
// processing fails is logged and skipped; the others still run. Run returns
// the failures joined, or the context error when canceled.
func (a *Aggregator) Run(ctx context.Context) error {
	logger := a.logger.With("run_id", uuid.NewString())
	start := a.clock.Now()
	a.metrics.PipelineRunning.Set(1)
	defer a.metrics.PipelineRunning.Set(0)

	src, err := a.source.Stations(ctx)
	if err != nil {
		return fmt.Errorf("load stations: %w", err)
	}
	logger.Info("run started", "workers", a.workers)

	var errs []error
	for _, st := range domain.SampleTypes {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, ok := src[st]
		if !ok {
			logger.Warn("station document has no entries for sample type", "sample_type", st)
		}

		records, err := a.processType(ctx, st, entries)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Error("sample type aborted", "sample_type", st, "error", err)
			errs = append(errs, fmt.Errorf("process %s: %w", st, err))
			continue
		}

		if err := a.write(ctx, logger, st, records); err != nil {
			errs = append(errs, err)
		}
	}

	elapsed := a.clock.Since(start)
	a.metrics.RunDuration.Observe(elapsed.Seconds())
	if len(errs) == 0 {
		a.ready.Store(true)
	}
	logger.Info("run finished", "duration", elapsed, "failed_sample_types", len(errs))
	return errors.Join(errs...)
}

// processType transforms entries with at most a.workers in flight. Records
// keep the input order whatever the worker count.
func (a *Aggregator) processType(ctx context.Context, st domain.SampleType, entries []domain.StationEntry) ([]domain.StationRecord, error) {
	results := make([]domain.StationRecord, len(entries))
	emitted := make([]bool, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, ok, err := a.transformer.Transform(gctx, st, entry)
			if err != nil {
				return fmt.Errorf("station %d: %w", entry.ID, err)
			}
			results[i], emitted[i] = rec, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]domain.StationRecord, 0, len(entries))
	for i := range results {
		if emitted[i] {
			records = append(records, results[i])
		}
	}
	return records, nil
}

func (a *Aggregator) write(ctx context.Context, logger *slog.Logger, st domain.SampleType, records []domain.StationRecord) error {
	var errs []error
	for _, sink := range a.sinks {
		if err := sink.WriteRecords(ctx, st, records); err != nil {
			logger.Error("write records failed", "sink", sink.Name(), "sample_type", st, "error", err)
			errs = append(errs, fmt.Errorf("write %s records to %s: %w", st, sink.Name(), err))
			continue
		}
		a.metrics.RecordsWritten.WithLabelValues(sink.Name(), string(st)).Add(float64(len(records)))
		logger.Info("records written", "sink", sink.Name(), "sample_type", st, "records", len(records))
	}
	return errors.Join(errs...)
}
