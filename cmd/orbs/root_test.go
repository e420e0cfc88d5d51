package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/orbs-data-etl/internal/adapter/jsonfile"
	"github.com/couchcryptid/orbs-data-etl/internal/config"
	"github.com/couchcryptid/orbs-data-etl/internal/domain"
	"github.com/couchcryptid/orbs-data-etl/internal/flatten"
)

const fixtures = "../../internal/pipeline/testdata"

func TestApplyFlags(t *testing.T) {
	var flags flagValues
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVarP(&flags.downloadDir, "download_dir", "d", "", "")
	cmd.Flags().StringVarP(&flags.jsonDir, "json_dir", "j", "", "")
	cmd.Flags().StringVarP(&flags.csvDir, "csv_dir", "c", "", "")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "")
	cmd.Flags().BoolVar(&flags.xlsx, "xlsx", false, "")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "")
	require.NoError(t, cmd.ParseFlags([]string{"-d", "raw", "--workers", "4", "--xlsx"}))

	cfg := &config.Config{DownloadDir: "x", JSONDir: "json", CSVDir: "csv", Workers: 1, LogLevel: "info"}
	require.NoError(t, applyFlags(cmd, cfg, flags))

	assert.Equal(t, "raw", cfg.DownloadDir)
	assert.Equal(t, "json", cfg.JSONDir, "unset flags keep the configured value")
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.XLSXEnabled)
	assert.Equal(t, "info", cfg.LogLevel)

	require.NoError(t, cmd.ParseFlags([]string{"--workers", "0"}))
	assert.Error(t, applyFlags(cmd, cfg, flags))
}

func notFoundPortal(t *testing.T) *httptest.Server {
	t.Helper()
	portal := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(portal.Close)
	return portal
}

// A sample type that aborts does not keep the others from being flattened.
func TestRunCommand_FlattensSurvivingTypes(t *testing.T) {
	out := t.TempDir()
	jsonDir, csvDir := filepath.Join(out, "json"), filepath.Join(out, "csv")
	badTable := filepath.Join(out, "bad_points.csv")
	require.NoError(t, os.WriteFile(badTable, []byte("organization,latitude\nTEPCO,37.5\n"), 0o644))

	t.Setenv("ORBS_BASE_URL", notFoundPortal(t).URL)
	t.Setenv("DOWNLOAD_MIN_DELAY", "0s")
	t.Setenv("DOWNLOAD_MAX_DELAY", "0s")
	t.Setenv("STATIONS_FILE", filepath.Join(fixtures, "stations", "station_by_id.json"))
	t.Setenv("STATION_POINTS_FILE", badTable)
	t.Setenv("ALPS_SEAWATER_FILE", filepath.Join(fixtures, "stations", "alps_seawater_data.csv"))
	t.Setenv("LOG_LEVEL", "error")

	root := rootCommand()
	root.SetArgs([]string{"run", "-d", filepath.Join(fixtures, "raw"), "-j", jsonDir, "-c", csvDir})
	err := root.ExecuteContext(context.Background())
	require.ErrorIs(t, err, domain.ErrMissingColumns)

	assert.FileExists(t, jsonfile.Path(jsonDir, domain.Seaweed))
	assert.FileExists(t, flatten.CSVPath(csvDir, domain.Seaweed))
	assert.NoFileExists(t, flatten.CSVPath(csvDir, domain.Fish))
}

// TestRunCommand drives the whole CLI against the pipeline fixtures with a
// portal that has no files.
func TestRunCommand(t *testing.T) {
	var requests atomic.Int64
	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		http.NotFound(w, nil)
	}))
	defer portal.Close()

	out := t.TempDir()
	jsonDir, csvDir := filepath.Join(out, "json"), filepath.Join(out, "csv")
	t.Setenv("ORBS_BASE_URL", portal.URL)
	t.Setenv("DOWNLOAD_MIN_DELAY", "0s")
	t.Setenv("DOWNLOAD_MAX_DELAY", "0s")
	t.Setenv("STATIONS_FILE", filepath.Join(fixtures, "stations", "station_by_id.json"))
	t.Setenv("STATION_POINTS_FILE", filepath.Join(fixtures, "stations", "station_points.csv"))
	t.Setenv("ALPS_SEAWATER_FILE", filepath.Join(fixtures, "stations", "alps_seawater_data.csv"))
	t.Setenv("LOG_LEVEL", "error")

	root := rootCommand()
	root.SetArgs([]string{"run", "-d", filepath.Join(fixtures, "raw"), "-j", jsonDir, "-c", csvDir, "--workers", "3", "--xlsx"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.EqualValues(t, 400+145+42, requests.Load(), "every portal id is requested once")
	for _, st := range domain.SampleTypes {
		assert.FileExists(t, jsonfile.Path(jsonDir, st))
		assert.FileExists(t, flatten.CSVPath(csvDir, st))
		assert.FileExists(t, flatten.XLSXPath(csvDir, st))
	}
}

func TestFlattenCommand_SelectedTypes(t *testing.T) {
	jsonDir, csvDir := t.TempDir(), t.TempDir()
	require.NoError(t, jsonfile.NewSink(jsonDir).WriteRecords(context.Background(), domain.Fish, []domain.StationRecord{{ID: 256, Org: "TEPCO"}}))
	t.Setenv("LOG_LEVEL", "error")
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	root := rootCommand()
	root.SetArgs([]string{"flatten", "fish", "-j", jsonDir, "-c", csvDir})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelWarn), "LOG_LEVEL applies to the default logger")

	assert.FileExists(t, flatten.CSVPath(csvDir, domain.Fish))
	assert.NoFileExists(t, flatten.CSVPath(csvDir, domain.Seaweed))

	root = rootCommand()
	root.SetArgs([]string{"flatten", "plankton", "-j", jsonDir, "-c", csvDir})
	assert.ErrorContains(t, root.ExecuteContext(context.Background()), `unknown sample type "plankton"`)
}
