package orbs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/orbs-data-etl/internal/domain"
	"github.com/couchcryptid/orbs-data-etl/internal/observability"
)

// Dataset is a numbered range of portal files of one category.
type Dataset struct {
	Category string
	Prefix   string
	Start    int
	End      int
}

// FileName returns the portal file name of id n, e.g. "Fishes_20_256.csv".
func (d Dataset) FileName(n int) string {
	return d.Prefix + strconv.Itoa(n) + ".csv"
}

// Datasets lists the portal ranges per sample type.
var Datasets = map[domain.SampleType]Dataset{
	domain.Seawater: {Category: "Seawater", Prefix: "Seawater_10_", Start: 1, End: 400},
	domain.Fish:     {Category: "Fishes", Prefix: "Fishes_20_", Start: 256, End: 400},
	domain.Seaweed:  {Category: "Seaweeds", Prefix: "Seaweeds_30_", Start: 359, End: 400},
}

// Saver stores a downloaded file under its category.
type Saver interface {
	Save(category, name string, data []byte) (string, error)
}

// Downloader walks a dataset's id range and saves every CSV the portal serves.
type Downloader struct {
	client   *Client
	store    Saver
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	limiter  *rate.Limiter
	minDelay time.Duration
	maxDelay time.Duration
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithClock replaces the clock used for the delay between requests.
func WithClock(c clockwork.Clock) Option {
	return func(d *Downloader) { d.clock = c }
}

// WithDelay sets the random pause range between requests. The limiter also
// enforces min as the spacing between requests.
func WithDelay(lo, hi time.Duration) Option {
	return func(d *Downloader) {
		d.minDelay, d.maxDelay = lo, max(lo, hi)
	}
}

func NewDownloader(client *Client, store Saver, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Downloader {
	d := &Downloader{
		client:   client,
		store:    store,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
		minDelay: time.Second,
		maxDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.limiter = rate.NewLimiter(rate.Every(d.minDelay), 1)
	return d
}

// Download fetches every id of the dataset in order and returns the ids that
// were not saved. Only cancellation and storage failures stop the walk.
func (d *Downloader) Download(ctx context.Context, ds Dataset) ([]int, error) {
	logger := d.logger.With("category", ds.Category)
	var skipped []int

	for n := ds.Start; n <= ds.End; n++ {
		if err := d.pause(ctx); err != nil {
			return skipped, err
		}

		start := d.clock.Now()
		data, err := d.client.Fetch(ctx, ds, n)
		d.metrics.DownloadDuration.Observe(d.clock.Since(start).Seconds())

		switch {
		case err == nil:
		case ctx.Err() != nil:
			return skipped, ctx.Err()
		case errors.Is(err, ErrNotFound):
			d.metrics.Downloads.WithLabelValues(ds.Category, "not_found").Inc()
			skipped = append(skipped, n)
			continue
		case errors.Is(err, ErrNotCSV):
			logger.Warn("skipping non-csv response", "id", n, "error", err)
			d.metrics.Downloads.WithLabelValues(ds.Category, "not_csv").Inc()
			skipped = append(skipped, n)
			continue
		default:
			logger.Error("download failed", "id", n, "error", err)
			d.metrics.Downloads.WithLabelValues(ds.Category, "error").Inc()
			skipped = append(skipped, n)
			continue
		}

		path, err := d.store.Save(ds.Category, ds.FileName(n), data)
		if err != nil {
			return skipped, fmt.Errorf("save %s: %w", ds.FileName(n), err)
		}
		d.metrics.Downloads.WithLabelValues(ds.Category, "saved").Inc()
		logger.Debug("file saved", "id", n, "path", path, "bytes", len(data))
	}

	if len(skipped) > 0 {
		logger.Warn("files skipped", "ids", skipped)
	}
	return skipped, nil
}

// DownloadAll downloads the datasets of every sample type and returns the
// skipped ids per type.
func (d *Downloader) DownloadAll(ctx context.Context) (map[domain.SampleType][]int, error) {
	skipped := make(map[domain.SampleType][]int, len(domain.SampleTypes))
	for _, st := range domain.SampleTypes {
		ids, err := d.Download(ctx, Datasets[st])
		skipped[st] = ids
		if err != nil {
			return skipped, fmt.Errorf("download %s: %w", st, err)
		}
	}
	return skipped, nil
}

func (d *Downloader) pause(ctx context.Context) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	delay := d.jitter()
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.clock.After(delay):
		return nil
	}
}

// jitter returns a random delay in [0, maxDelay-minDelay]; the limiter
// already accounts for minDelay.
func (d *Downloader) jitter() time.Duration {
	spread := d.maxDelay - d.minDelay
	if spread <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(spread) + 1))
}
