// Quote Forecaster CLI
// This application ingests spot prices from CoinGecko into day-partitioned
// parquet files, serves the stored history and produces hourly price
// forecasts from it.
//
// Usage:
//
//	quotecast ingest
//	quotecast history --asset bitcoin --hours 48
//	quotecast forecast --asset ethereum --horizon 12 --format json
//	quotecast transform --asset bitcoin --window 5 --periods 1 --vol-window 24
//	quotecast schedule --interval 60s
//
// For detailed help on any command, use: quotecast <command> --help
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/guregu/null/v6"

	"github.com/johnayoung/go-quote-forecaster/internal/config"
	qerrors "github.com/johnayoung/go-quote-forecaster/internal/errors"
	"github.com/johnayoung/go-quote-forecaster/internal/logger"
	"github.com/johnayoung/go-quote-forecaster/internal/models"
	"github.com/johnayoung/go-quote-forecaster/internal/scheduler"
	"github.com/johnayoung/go-quote-forecaster/internal/series"
	"github.com/johnayoung/go-quote-forecaster/internal/service"
)

// CLI version information
const (
	Version = "1.0.0"
	AppName = "quotecast"
)

// stopTimeout bounds how long schedule waits for an in-flight run on shutdown.
const stopTimeout = 30 * time.Second

// CLI represents the main CLI application
type CLI struct {
	config *config.AppConfig
	logs   *logger.LoggerManager
	logger *slog.Logger
	svc    *service.Service
	out    io.Writer
}

// usageError marks bad command line input.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one command and returns the process exit code.
func run(argv []string) int {
	if len(argv) < 1 {
		printUsage()
		return qerrors.ExitUsage
	}

	command, args := argv[0], argv[1:]
	switch command {
	case "--version", "-v":
		fmt.Printf("%s version %s\n", AppName, Version)
		return qerrors.ExitSuccess
	case "--help", "-h", "help":
		printUsage()
		return qerrors.ExitSuccess
	case "ingest", "history", "forecast", "transform", "invalidate", "schedule", "status":
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		return qerrors.ExitUsage
	}

	// Command help needs neither config nor the store.
	if wantsHelp(args) {
		printCommandHelp(command)
		return qerrors.ExitSuccess
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := &CLI{out: os.Stdout}
	if err := cli.initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to initialize CLI: %v\n", err)
		return qerrors.ExitConfig
	}
	defer cli.close()

	var err error
	switch command {
	case "ingest":
		err = cli.handleIngest(ctx, args)
	case "history":
		err = cli.handleHistory(ctx, args)
	case "forecast":
		err = cli.handleForecast(ctx, args)
	case "transform":
		err = cli.handleTransform(ctx, args)
	case "invalidate":
		err = cli.handleInvalidate(ctx, args)
	case "schedule":
		err = cli.handleSchedule(ctx, args)
	case "status":
		err = cli.handleStatus(ctx, args)
	}

	if err == nil {
		return qerrors.ExitSuccess
	}
	cli.logger.Error("command failed", "command", command, "error", err)
	return exitCode(ctx, err)
}

func wantsHelp(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// exitCode maps a command error to the process exit code.
func exitCode(ctx context.Context, err error) int {
	var usage *usageError
	switch {
	case errors.As(err, &usage):
		return qerrors.ExitUsage
	case ctx.Err() != nil:
		return qerrors.ExitInterrupt
	default:
		return qerrors.ExitCode(err)
	}
}

// initialize loads configuration and wires the service.
func (cli *CLI) initialize(ctx context.Context) error {
	cm := config.NewConfigManager(os.Getenv("CONFIG_PATH"), nil)
	cfg, err := cm.LoadConfig(ctx)
	if err != nil {
		return err
	}
	cli.config = cfg

	logs, err := logger.NewLoggerManager(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	cli.logs = logs
	cli.logger = logs.GetComponentLogger("cli").Logger

	svc, err := service.New(ctx, cfg, logs)
	if err != nil {
		logs.Close()
		return err
	}
	cli.svc = svc
	return nil
}

func (cli *CLI) close() {
	if err := cli.svc.Close(); err != nil {
		cli.logger.Warn("failed to close service", "error", err)
	}
	cli.logs.Close()
}

// handleIngest handles the 'ingest' command
func (cli *CLI) handleIngest(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return usagef("unknown flag: %s", args[0])
	}

	rows, err := cli.svc.Ingest(ctx)
	if err != nil {
		if rows > 0 {
			fmt.Fprintf(cli.out, "Wrote %d rows with errors\n", rows)
		}
		return err
	}
	fmt.Fprintf(cli.out, "Wrote %d rows\n", rows)
	return nil
}

// handleHistory handles the 'history' command
func (cli *CLI) handleHistory(ctx context.Context, args []string) error {
	flags, err := parseHistoryFlags(args)
	if err != nil {
		return err
	}
	if flags.Asset == "" {
		return usagef("--asset is required")
	}

	quotes, err := cli.svc.History(ctx, flags.Asset, flags.Hours)
	if err != nil {
		return err
	}

	if flags.Format == "json" {
		return outputJSON(cli.out, quotes)
	}
	return outputHistoryTable(cli.out, quotes)
}

// handleForecast handles the 'forecast' command
func (cli *CLI) handleForecast(ctx context.Context, args []string) error {
	flags, err := parseForecastFlags(args)
	if err != nil {
		return err
	}

	result, err := cli.svc.Forecast(ctx, flags.Asset, flags.Horizon)
	if err != nil {
		return err
	}

	if flags.Format == "json" {
		return outputJSON(cli.out, result)
	}
	return outputForecastTable(cli.out, result)
}

// handleTransform handles the 'transform' command
func (cli *CLI) handleTransform(ctx context.Context, args []string) error {
	flags, err := parseTransformFlags(args)
	if err != nil {
		return err
	}
	if flags.Asset == "" {
		return usagef("--asset is required")
	}

	rows, err := cli.svc.Transform(ctx, flags.Asset, flags.Options)
	if err != nil {
		return err
	}

	if flags.Format == "json" {
		return outputJSON(cli.out, rows)
	}
	return outputTransformTable(cli.out, rows)
}

// handleInvalidate handles the 'invalidate' command
func (cli *CLI) handleInvalidate(ctx context.Context, args []string) error {
	flags, err := parseInvalidateFlags(args)
	if err != nil {
		return err
	}
	switch {
	case flags.All && flags.Asset != "":
		return usagef("--asset and --all are mutually exclusive")
	case flags.All:
		if err := cli.svc.InvalidateAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Invalidated all cached forecasts")
		return nil
	case flags.Asset == "":
		return usagef("--asset or --all is required")
	}

	if err := cli.svc.Invalidate(ctx, flags.Asset); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Invalidated cached forecasts for %s\n", flags.Asset)
	return nil
}

// handleSchedule handles the 'schedule' command. It blocks until the process
// is interrupted, then waits for the in-flight run before returning.
func (cli *CLI) handleSchedule(ctx context.Context, args []string) error {
	flags, err := parseScheduleFlags(args)
	if err != nil {
		return err
	}

	sc := cli.config.Scheduler
	if flags.Interval != "" {
		sc.Interval = flags.Interval
	}
	interval, err := sc.FetchInterval()
	if err != nil {
		return usagef("invalid interval: %v", err)
	}

	sched, err := scheduler.New(interval, cli.svc.Ingest, cli.logs.GetComponentLogger("scheduler"))
	if err != nil {
		return usagef("%v", err)
	}

	// Runs outlive the signal so shutdown can wait for them.
	runCtx := context.WithoutCancel(ctx)
	if err := sched.Start(runCtx); err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "Ingesting %s every %s\n", strings.Join(cli.config.Exchange.Coins, ","), interval)
	fmt.Fprintln(cli.out, "Press Ctrl+C to stop gracefully")

	// outcome is logged by the scheduler
	_, _ = sched.RunNow(runCtx)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}

	stats := sched.Stats()
	fmt.Fprintf(cli.out, "Stopped after %d runs (%d failed)\n", stats.Runs, stats.Failures)
	return nil
}

// handleStatus handles the 'status' command
func (cli *CLI) handleStatus(ctx context.Context, args []string) error {
	flags, err := parseStatusFlags(args)
	if err != nil {
		return err
	}

	st, err := cli.svc.Status(ctx)
	if err != nil {
		return err
	}

	if flags.Format == "json" {
		return outputJSON(cli.out, st)
	}
	return outputStatusTable(cli.out, st)
}

// Command line flag structures

// HistoryFlags represents flags for the history command
type HistoryFlags struct {
	Asset  string
	Hours  int
	Format string
}

// ForecastFlags represents flags for the forecast command
type ForecastFlags struct {
	Asset   string
	Horizon int
	Format  string
}

// TransformFlags represents flags for the transform command
type TransformFlags struct {
	Asset   string
	Format  string
	Options series.TransformOptions
}

// InvalidateFlags represents flags for the invalidate command
type InvalidateFlags struct {
	Asset string
	All   bool
}

// ScheduleFlags represents flags for the schedule command
type ScheduleFlags struct {
	Interval string
}

// StatusFlags represents flags for the status command
type StatusFlags struct {
	Format string
}

// Flag parsing functions

// parseHistoryFlags parses command line arguments for the history command
func parseHistoryFlags(args []string) (*HistoryFlags, error) {
	flags := &HistoryFlags{Format: "table"}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--asset", "-a":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			flags.Asset = val
			i++
		case "--hours", "-n":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			hours, err := strconv.Atoi(val)
			if err != nil || hours < 0 {
				return nil, usagef("invalid hours value: %s", val)
			}
			flags.Hours = hours
			i++
		case "--format", "-f":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			if flags.Format, err = parseFormat(val); err != nil {
				return nil, err
			}
			i++
		default:
			return nil, usagef("unknown flag: %s", args[i])
		}
	}

	return flags, nil
}

// parseForecastFlags parses command line arguments for the forecast command
func parseForecastFlags(args []string) (*ForecastFlags, error) {
	flags := &ForecastFlags{Format: "table"}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--asset", "-a":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			flags.Asset = val
			i++
		case "--horizon", "-n":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			horizon, err := strconv.Atoi(val)
			if err != nil || horizon < 1 {
				return nil, usagef("invalid horizon value: %s", val)
			}
			flags.Horizon = horizon
			i++
		case "--format", "-f":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			if flags.Format, err = parseFormat(val); err != nil {
				return nil, err
			}
			i++
		default:
			return nil, usagef("unknown flag: %s", args[i])
		}
	}

	return flags, nil
}

// parseTransformFlags parses command line arguments for the transform command
func parseTransformFlags(args []string) (*TransformFlags, error) {
	flags := &TransformFlags{Format: "table"}
	opts := &flags.Options

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--asset", "-a":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			flags.Asset = val
			i++
		case "--rate":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			rate, err := strconv.ParseFloat(val, 64)
			if err != nil || rate <= 0 {
				return nil, usagef("invalid rate value: %s", val)
			}
			opts.Rate = rate
			i++
		case "--window", "-w", "--min-periods", "--periods", "--vol-window", "--freq-hours":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return nil, usagef("invalid %s value: %s", args[i], val)
			}
			switch args[i] {
			case "--window", "-w":
				opts.Window = n
			case "--min-periods":
				opts.MinPeriods = n
			case "--periods":
				opts.ReturnPeriods = n
			case "--vol-window":
				opts.VolWindow = n
			case "--freq-hours":
				opts.FreqHours = n
			}
			i++
		case "--annualize":
			opts.Annualize = true
		case "--start", "--end":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			ts, err := parseTimeFlag(val)
			if err != nil {
				return nil, usagef("invalid %s value: %s", args[i], val)
			}
			if args[i] == "--start" {
				opts.Start = ts
			} else {
				opts.End = ts
			}
			i++
		case "--format", "-f":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			if flags.Format, err = parseFormat(val); err != nil {
				return nil, err
			}
			i++
		default:
			return nil, usagef("unknown flag: %s", args[i])
		}
	}

	if opts.VolWindow > 0 && opts.ReturnPeriods == 0 {
		opts.ReturnPeriods = 1
	}
	if err := opts.Validate(); err != nil {
		return nil, usagef("%v", err)
	}
	return flags, nil
}

// parseTimeFlag accepts RFC 3339 timestamps or bare dates, read as UTC.
func parseTimeFlag(val string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, val); err == nil {
		return ts.UTC(), nil
	}
	return time.ParseInLocation("2006-01-02", val, time.UTC)
}

// parseInvalidateFlags parses command line arguments for the invalidate command
func parseInvalidateFlags(args []string) (*InvalidateFlags, error) {
	flags := &InvalidateFlags{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--asset", "-a":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			flags.Asset = val
			i++
		case "--all":
			flags.All = true
		default:
			return nil, usagef("unknown flag: %s", args[i])
		}
	}

	return flags, nil
}

// parseScheduleFlags parses command line arguments for the schedule command
func parseScheduleFlags(args []string) (*ScheduleFlags, error) {
	flags := &ScheduleFlags{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--interval", "-i":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			flags.Interval = val
			i++
		default:
			return nil, usagef("unknown flag: %s", args[i])
		}
	}

	return flags, nil
}

// parseStatusFlags parses command line arguments for the status command
func parseStatusFlags(args []string) (*StatusFlags, error) {
	flags := &StatusFlags{Format: "table"}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--format", "-f":
			val, err := flagValue(args, i)
			if err != nil {
				return nil, err
			}
			if flags.Format, err = parseFormat(val); err != nil {
				return nil, err
			}
			i++
		default:
			return nil, usagef("unknown flag: %s", args[i])
		}
	}

	return flags, nil
}

func flagValue(args []string, i int) (string, error) {
	if i+1 >= len(args) {
		return "", usagef("%s requires a value", args[i])
	}
	return args[i+1], nil
}

func parseFormat(format string) (string, error) {
	if format != "json" && format != "table" {
		return "", usagef("invalid format, must be: json or table")
	}
	return format, nil
}

// Output formatting functions

// outputJSON writes v as indented JSON
func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// outputHistoryTable formats stored quotes as a table
func outputHistoryTable(w io.Writer, quotes []models.Quote) error {
	fmt.Fprintf(w, "%-22s %-12s %-16s %-10s\n", "Timestamp", "Asset", "Price", "Change %")
	fmt.Fprintln(w, strings.Repeat("-", 62))

	for _, q := range quotes {
		change := "-"
		if q.ChangePct.Valid {
			change = strconv.FormatFloat(q.ChangePct.Float64, 'f', 2, 64)
		}
		fmt.Fprintf(w, "%-22s %-12s %-16s %-10s\n",
			q.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			q.AssetID,
			formatPrice(q.Price),
			change)
	}

	fmt.Fprintf(w, "\n%d rows\n", len(quotes))
	return nil
}

// outputTransformTable formats transformed rows as a table, with "-" for
// null columns
func outputTransformTable(w io.Writer, rows []series.TransformRow) error {
	fmt.Fprintf(w, "%-22s %-14s %-14s %-14s %-12s %-12s\n",
		"Timestamp", "Price", "Converted", "Smooth", "Return", "Volatility")
	fmt.Fprintln(w, strings.Repeat("-", 92))

	for _, r := range rows {
		fmt.Fprintf(w, "%-22s %-14s %-14s %-14s %-12s %-12s\n",
			r.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			formatPrice(r.Price),
			formatNull(r.Converted, -1),
			formatNull(r.Smooth, -1),
			formatNull(r.Returns, 6),
			formatNull(r.Volatility, 6))
	}

	fmt.Fprintf(w, "\n%d rows\n", len(rows))
	return nil
}

// outputForecastTable formats a forecast as a table
func outputForecastTable(w io.Writer, result *models.ForecastResult) error {
	fmt.Fprintf(w, "Asset: %s  Model: %s  Horizon: %d\n\n", result.AssetID, result.Model, result.Horizon)
	fmt.Fprintf(w, "%-22s %-16s\n", "Hour", "Price")
	fmt.Fprintln(w, strings.Repeat("-", 40))

	for _, p := range result.Points {
		fmt.Fprintf(w, "%-22s %-16s\n", p.Timestamp.UTC().Format("2006-01-02 15:04"), formatPrice(p.Price))
	}
	return nil
}

// outputStatusTable formats service status as key/value lines
func outputStatusTable(w io.Writer, st *service.Status) error {
	fmt.Fprintln(w, "Store:")
	if st.Store != nil {
		fmt.Fprintf(w, "  Partitions:  %d\n", st.Store.Partitions)
		fmt.Fprintf(w, "  Rows:        %d\n", st.Store.Rows)
		fmt.Fprintf(w, "  Assets:      %s\n", strings.Join(st.Store.Assets, ", "))
		fmt.Fprintf(w, "  Range:       %s .. %s\n",
			st.Store.Earliest.UTC().Format(time.RFC3339),
			st.Store.Latest.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintf(w, "  %s\n", st.StoreErr)
	}

	fmt.Fprintf(w, "Audit log:     %s (%d rows)\n", st.AuditPath, st.AuditRows)
	fmt.Fprintf(w, "Model:         %s\n", st.Forecast.Strategy)
	fmt.Fprintf(w, "Cached:        %d forecasts\n", st.CacheSize)
	fmt.Fprintf(w, "Upstream:      %s\n", st.Upstream)
	return nil
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func formatNull(v null.Float, prec int) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatFloat(v.Float64, 'f', prec, 64)
}

// printUsage prints the main usage information
func printUsage() {
	fmt.Printf(`%s - Quote Forecaster CLI v%s

USAGE:
    %s <command> [options]

COMMANDS:
    ingest      Fetch current prices once and store them
    history     Show stored quotes for an asset
    forecast    Forecast hourly prices for an asset
    transform   Derive converted, smoothed, return and volatility columns
    invalidate  Drop cached forecasts for an asset or all assets
    schedule    Ingest on a fixed interval until interrupted
    status      Show store, cache and model status

GLOBAL OPTIONS:
    --help, -h     Show help information
    --version, -v  Show version information

EXAMPLES:
    # Ingest the configured coins once
    %s ingest

    # Show the last two days of bitcoin quotes
    %s history --asset bitcoin --hours 48

    # Forecast ethereum twelve hours ahead as JSON
    %s forecast --asset ethereum --horizon 12 --format json

CONFIGURATION:
    Configuration can be provided via:
    - Config file: path in CONFIG_PATH (JSON or YAML)
    - Environment variables: COINS, DATA_DIR, FETCH_INTERVAL, CACHE_BACKEND, ...

For detailed help on any command, use: %s <command> --help
`, AppName, Version, AppName, AppName, AppName, AppName, AppName)
}

// printCommandHelp prints detailed help for a specific command
func printCommandHelp(command string) {
	switch command {
	case "ingest":
		fmt.Printf(`%s ingest - Fetch and store current prices

USAGE:
    %s ingest

Fetches the configured coins in one batched request, appends the quotes to the
day partition and the audit log, and invalidates cached forecasts.
`, AppName, AppName)
	case "history":
		fmt.Printf(`%s history - Show stored quotes

USAGE:
    %s history --asset <id> [options]

OPTIONS:
    --asset, -a <id>      Asset identifier (required)
    --hours, -n <hours>   Only show the last N hours (default: all)
    --format, -f <fmt>    Output format: table, json (default: table)
`, AppName, AppName)
	case "forecast":
		fmt.Printf(`%s forecast - Forecast hourly prices

USAGE:
    %s forecast [options]

OPTIONS:
    --asset, -a <id>       Asset identifier (default: configured default asset)
    --horizon, -n <steps>  Hours to forecast (default: configured horizon)
    --format, -f <fmt>     Output format: table, json (default: table)
`, AppName, AppName)
	case "transform":
		fmt.Printf(`%s transform - Derive columns from stored quotes

USAGE:
    %s transform --asset <id> [options]

OPTIONS:
    --asset, -a <id>       Asset identifier (required)
    --rate <rate>          Add price_converted = price * rate
    --window, -w <n>       Add price_smooth, the rolling mean over n quotes
    --min-periods <n>      Quotes needed before smoothing starts (default: 1)
    --periods <n>          Add price_returns over n quotes
    --vol-window <n>       Add price_returns_vol, the rolling std of returns
    --annualize            Scale volatility by sqrt(8760 / freq-hours)
    --freq-hours <n>       Hours between quotes for annualizing (default: 1)
    --start <time>         Keep rows at or after time (RFC 3339 or YYYY-MM-DD)
    --end <time>           Keep rows at or before time
    --format, -f <fmt>     Output format: table, json (default: table)

Columns are computed over the full history before the range is applied.
`, AppName, AppName)
	case "invalidate":
		fmt.Printf(`%s invalidate - Drop cached forecasts

USAGE:
    %s invalidate --asset <id>
    %s invalidate --all

Only affects other processes when the redis cache backend is configured.
`, AppName, AppName, AppName)
	case "schedule":
		fmt.Printf(`%s schedule - Ingest on an interval

USAGE:
    %s schedule [options]

OPTIONS:
    --interval, -i <dur>  Interval between runs, e.g. 60s or 5m
                          (default: FETCH_INTERVAL)
`, AppName, AppName)
	case "status":
		fmt.Printf(`%s status - Show service status

USAGE:
    %s status [options]

OPTIONS:
    --format, -f <fmt>    Output format: table, json (default: table)
`, AppName, AppName)
	default:
		printUsage()
	}
}
