package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/orbs-data-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/orbs-data-etl/internal/adapter/jsonfile"
	kafkaadapter "github.com/couchcryptid/orbs-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/orbs-data-etl/internal/adapter/orbs"
	"github.com/couchcryptid/orbs-data-etl/internal/adapter/rawfs"
	"github.com/couchcryptid/orbs-data-etl/internal/adapter/reftable"
	"github.com/couchcryptid/orbs-data-etl/internal/config"
	"github.com/couchcryptid/orbs-data-etl/internal/domain"
	"github.com/couchcryptid/orbs-data-etl/internal/flatten"
	"github.com/couchcryptid/orbs-data-etl/internal/observability"
	"github.com/couchcryptid/orbs-data-etl/internal/pipeline"
)

// app carries the loaded configuration and shared observability into the
// subcommands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

type flagValues struct {
	downloadDir string
	jsonDir     string
	csvDir      string
	workers     int
	xlsx        bool
	logLevel    string
}

func rootCommand() *cobra.Command {
	a := &app{}
	var flags flagValues

	root := &cobra.Command{
		Use:           "orbs",
		Short:         "ORBS radiological monitoring data ETL",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.downloadDir, "download_dir", "d", "", "directory of the raw portal CSVs (default from DOWNLOAD_DIR)")
	pf.StringVarP(&flags.jsonDir, "json_dir", "j", "", "output directory of the station JSON documents (default from JSON_DIR)")
	pf.StringVarP(&flags.csvDir, "csv_dir", "c", "", "output directory of the flat CSV files (default from CSV_DIR)")
	pf.IntVar(&flags.workers, "workers", 0, "stations processed concurrently per sample type (default from WORKERS)")
	pf.BoolVar(&flags.xlsx, "xlsx", false, "also write XLSX workbooks (default from XLSX_ENABLED)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (default from LOG_LEVEL)")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := applyFlags(cmd, cfg, flags); err != nil {
			return err
		}
		a.cfg = cfg
		a.logger = sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
		a.metrics = observability.NewMetrics()
		return nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Download, process and flatten every sample type",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.runAll(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "download",
			Short: "Download the raw CSV files from the portal",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.download(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "process",
			Short: "Convert the raw CSV files into station JSON documents",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withServer(cmd.Context(), a.process)
			},
		},
		&cobra.Command{
			Use:   "flatten [sample-type...]",
			Short: "Flatten the station JSON documents into CSV",
			Long:  "Flatten the station JSON documents into CSV. With no arguments every sample type is flattened.",
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					return a.flatten(cmd.Context())
				}
				return a.flattenTypes(args)
			},
		},
	)
	return root
}

// applyFlags overrides configuration values with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f flagValues) error {
	changed := cmd.Flags().Changed
	if changed("download_dir") {
		cfg.DownloadDir = f.downloadDir
	}
	if changed("json_dir") {
		cfg.JSONDir = f.jsonDir
	}
	if changed("csv_dir") {
		cfg.CSVDir = f.csvDir
	}
	if changed("workers") {
		if f.workers < 1 {
			return fmt.Errorf("invalid --workers %d: must be at least 1", f.workers)
		}
		cfg.Workers = f.workers
	}
	if changed("xlsx") {
		cfg.XLSXEnabled = f.xlsx
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	return nil
}

func (a *app) runAll(ctx context.Context) error {
	if err := a.download(ctx); err != nil {
		return err
	}
	return a.withServer(ctx, func(ctx context.Context, agg *pipeline.Aggregator) error {
		processErr := a.process(ctx, agg)
		if ctx.Err() != nil {
			return processErr
		}
		// Sample types that were written still get their flat outputs.
		return errors.Join(processErr, a.flatten(ctx))
	})
}

func (a *app) download(ctx context.Context) error {
	client := orbs.NewClient(a.cfg.BaseURL, a.cfg.DownloadTimeout)
	store := rawfs.NewStore(a.cfg.DownloadDir, a.logger)
	d := orbs.NewDownloader(client, store, a.logger, a.metrics,
		orbs.WithDelay(a.cfg.DownloadMinDelay, a.cfg.DownloadMaxDelay))

	skipped, err := d.DownloadAll(ctx)
	for st, ids := range skipped {
		a.logger.Info("download finished", "sample_type", st, "skipped", len(ids))
	}
	return err
}

// withServer builds the aggregator and runs work with it, serving the
// health, readiness and metrics endpoints alongside when HTTP_ADDR is set.
func (a *app) withServer(ctx context.Context, work func(context.Context, *pipeline.Aggregator) error) error {
	agg, closeSinks := a.aggregator()
	defer closeSinks()

	if a.cfg.HTTPAddr == "" {
		return work(ctx, agg)
	}

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, agg, a.logger)
	srvCtx, stopServer := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(srvCtx, a.cfg.ShutdownTimeout) })
	g.Go(func() error {
		defer stopServer()
		return work(gctx, agg)
	})
	return g.Wait()
}

func (a *app) aggregator() (*pipeline.Aggregator, func()) {
	matcher := reftable.NewCachedMatcher(
		reftable.NewMatcher(a.logger, a.cfg.StationPointsFile, a.cfg.ALPSSeawaterFile),
		a.cfg.MatchCacheSize,
	)
	raw := rawfs.NewStore(a.cfg.DownloadDir, a.logger)
	transformer := pipeline.NewTransformer(matcher, raw, a.logger, a.metrics)

	sinks := []pipeline.RecordSink{jsonfile.NewSink(a.cfg.JSONDir)}
	closeSinks := func() {}
	if a.cfg.KafkaEnabled() {
		publisher := kafkaadapter.NewPublisher(a.cfg, a.logger)
		sinks = append(sinks, publisher)
		closeSinks = func() {
			if err := publisher.Close(); err != nil {
				a.logger.Error("kafka publisher close error", "error", err)
			}
		}
		a.logger.Info("kafka publishing enabled", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaTopic)
	}

	agg := pipeline.New(jsonfile.NewStationFile(a.cfg.StationsFile), transformer, sinks, a.logger, a.metrics,
		pipeline.WithWorkers(a.cfg.Workers))
	return agg, closeSinks
}

func (a *app) process(ctx context.Context, agg *pipeline.Aggregator) error {
	return agg.Run(ctx)
}

func (a *app) flattener() *flatten.Flattener {
	return flatten.New(a.cfg.JSONDir, a.cfg.CSVDir, a.logger, flatten.WithXLSX(a.cfg.XLSXEnabled))
}

func (a *app) flatten(ctx context.Context) error {
	return a.flattener().Run(ctx)
}

func (a *app) flattenTypes(names []string) error {
	f := a.flattener()
	for _, name := range names {
		st, err := domain.ParseSampleType(name)
		if err != nil {
			return err
		}
		if err := f.Flatten(st); err != nil {
			return err
		}
	}
	return nil
}
