package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/johnayoung/go-quote-forecaster/internal/errors"
	"github.com/johnayoung/go-quote-forecaster/internal/models"
	"github.com/johnayoung/go-quote-forecaster/internal/series"
)

func TestParseHistoryFlags(t *testing.T) {
	flags, err := parseHistoryFlags([]string{"--asset", "bitcoin", "-n", "48", "--format", "json"})
	require.NoError(t, err)
	assert.Equal(t, &HistoryFlags{Asset: "bitcoin", Hours: 48, Format: "json"}, flags)

	flags, err = parseHistoryFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "table", flags.Format)

	tests := []struct {
		name string
		args []string
	}{
		{"missing value", []string{"--asset"}},
		{"negative hours", []string{"--hours", "-1"}},
		{"bad format", []string{"--format", "csv"}},
		{"unknown flag", []string{"--pair", "BTC-USD"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseHistoryFlags(tt.args)
			var usage *usageError
			assert.ErrorAs(t, err, &usage)
		})
	}
}

func TestParseForecastFlags(t *testing.T) {
	flags, err := parseForecastFlags([]string{"-a", "ethereum", "--horizon", "12"})
	require.NoError(t, err)
	assert.Equal(t, "ethereum", flags.Asset)
	assert.Equal(t, 12, flags.Horizon)
	assert.Equal(t, "table", flags.Format)

	_, err = parseForecastFlags([]string{"--horizon", "0"})
	assert.Error(t, err)

	_, err = parseForecastFlags([]string{"--model", "arima"})
	assert.Error(t, err)
}

func TestParseTransformFlags(t *testing.T) {
	flags, err := parseTransformFlags([]string{
		"-a", "bitcoin", "--rate", "0.92", "-w", "5", "--min-periods", "2",
		"--vol-window", "24", "--annualize", "--freq-hours", "4",
		"--start", "2024-06-01", "--end", "2024-06-02T12:00:00+02:00", "-f", "json",
	})
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", flags.Asset)
	assert.Equal(t, "json", flags.Format)
	assert.Equal(t, series.TransformOptions{
		Rate:          0.92,
		Window:        5,
		MinPeriods:    2,
		ReturnPeriods: 1,
		VolWindow:     24,
		Annualize:     true,
		FreqHours:     4,
		Start:         time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC),
	}, flags.Options)

	tests := []struct {
		name string
		args []string
	}{
		{"zero rate", []string{"--rate", "0"}},
		{"zero window", []string{"--window", "0"}},
		{"zero periods", []string{"--periods", "0"}},
		{"min periods above window", []string{"--window", "2", "--min-periods", "3"}},
		{"bad date", []string{"--start", "yesterday"}},
		{"end before start", []string{"--start", "2024-06-02", "--end", "2024-06-01"}},
		{"missing value", []string{"--end"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTransformFlags(tt.args)
			var usage *usageError
			assert.ErrorAs(t, err, &usage)
		})
	}
}

func TestParseScheduleAndInvalidateFlags(t *testing.T) {
	sf, err := parseScheduleFlags([]string{"--interval", "5m"})
	require.NoError(t, err)
	assert.Equal(t, "5m", sf.Interval)

	inv, err := parseInvalidateFlags([]string{"--asset", "solana"})
	require.NoError(t, err)
	assert.Equal(t, "solana", inv.Asset)

	inv, err = parseInvalidateFlags([]string{"--all"})
	require.NoError(t, err)
	assert.True(t, inv.All)

	_, err = parseStatusFlags([]string{"--format", "yaml"})
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	live := context.Background()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want int
	}{
		{"usage", live, usagef("--asset is required"), qerrors.ExitUsage},
		{"upstream", live, fmt.Errorf("ingest run x: %w", &qerrors.UpstreamError{URL: "u", Attempts: 3, Err: qerrors.ErrTransport}), qerrors.ExitConnection},
		{"store", live, qerrors.ErrStoreNotInitialized, qerrors.ExitData},
		{"interrupted", cancelled, errors.New("read partition: context canceled"), qerrors.ExitInterrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.ctx, tt.err))
		})
	}
}

func TestRun_UsageWithoutCommand(t *testing.T) {
	assert.Equal(t, qerrors.ExitUsage, run(nil))
	assert.Equal(t, qerrors.ExitUsage, run([]string{"collect"}))
	assert.Equal(t, qerrors.ExitSuccess, run([]string{"--version"}))
}

func TestRun_CommandHelpSkipsInitialization(t *testing.T) {
	// An unreadable config makes initialization fail with ExitConfig.
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	for _, command := range []string{"ingest", "history", "forecast", "transform", "invalidate", "schedule", "status"} {
		assert.Equal(t, qerrors.ExitSuccess, run([]string{command, "--help"}), command)
	}
	assert.Equal(t, qerrors.ExitSuccess, run([]string{"forecast", "--asset", "bitcoin", "-h"}))
	assert.Equal(t, qerrors.ExitConfig, run([]string{"status"}))
}

func TestRun_IngestFailureLogsOneError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "quotecast.log")
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("API_BASE_URL", srv.URL)
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("COINS", "bitcoin")
	t.Setenv("MAX_RETRIES", "1")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("FORECAST_MODEL", "fallback")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_OUTPUT", "file")
	t.Setenv("LOG_FILE_PATH", logPath)

	assert.Equal(t, qerrors.ExitConnection, run([]string{"ingest"}))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	logs := string(data)
	assert.Equal(t, 1, strings.Count(logs, `"level":"ERROR"`), logs)
	assert.Contains(t, logs, `"msg":"command failed"`)
}

func TestOutputTables(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, outputHistoryTable(&buf, []models.Quote{
		{Timestamp: ts, AssetID: "bitcoin", Price: 67000.5, ChangePct: null.FloatFrom(1.25)},
		{Timestamp: ts.Add(time.Minute), AssetID: "bitcoin", Price: 67001},
	}))
	out := buf.String()
	assert.Contains(t, out, "2024-06-01 12:00:00")
	assert.Contains(t, out, "67000.5")
	assert.Contains(t, out, "1.25")
	assert.Contains(t, out, "2 rows")

	buf.Reset()
	require.NoError(t, outputForecastTable(&buf, &models.ForecastResult{
		AssetID: "bitcoin",
		Horizon: 1,
		Model:   "damped_trend",
		Points:  []models.ForecastPoint{{Timestamp: ts.Add(time.Hour), Price: 67010}},
	}))
	assert.Contains(t, buf.String(), "Model: damped_trend")
	assert.Contains(t, buf.String(), "2024-06-01 13:00")

	buf.Reset()
	require.NoError(t, outputTransformTable(&buf, []series.TransformRow{
		{Timestamp: ts, Price: 100, Smooth: null.FloatFrom(99.5), Returns: null.FloatFrom(0.0123456789)},
	}))
	out = buf.String()
	assert.Contains(t, out, "99.5")
	assert.Contains(t, out, "0.012346")
	assert.Contains(t, out, "1 rows")
}
