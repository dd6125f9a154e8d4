/*
main.go - Command-line administration for the leave engine

PURPOSE:
  Runs financial year operations against the configured store without the
  HTTP server: the manual award run, statistics and exports. Suitable for
  cron as well as one-off HR use.

USAGE:
  leavectl [flags] <command>

COMMANDS:
  seed     Load a demo scenario (-scenario, default small-office)
  start    Award annual leave for -year as -actor (manual method)
  auto     Run the automatic award check (acts only July 1-7)
  stats    Print ledger totals for -year
  years    List started financial years
  export   Write -year to -out (.xlsx workbook or .pdf report)

FLAGS:
  -config    Path to YAML config (same keys as the server)
  -year      Financial year key, YYYY-YYYY (default: current)
  -actor     Acting employee id for start
  -out       Output file for export
  -scenario  Scenario id for seed

EXAMPLES:
  leavectl -config leave.yaml -year 2024-2025 -actor hr-1 start
  leavectl -year 2024-2025 stats
  leavectl -year 2024-2025 -out awards.xlsx export

SEE ALSO:
  - cmd/server: HTTP server
  - api/scheduler.go: Automatic award check shared with "auto"
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/export"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/notify"
	"github.com/warp/leave-engine/store/backends"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "leavectl:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	year       string
	actor      string
	out        string
	scenario   string
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("leavectl", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to YAML config file")
	fs.StringVar(&opts.year, "year", "", "financial year (YYYY-YYYY), default current")
	fs.StringVar(&opts.actor, "actor", "", "acting employee id")
	fs.StringVar(&opts.out, "out", "", "output file for export (.xlsx or .pdf)")
	fs.StringVar(&opts.scenario, "scenario", "small-office", "scenario id for seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected exactly one command: seed, start, auto, stats, years or export")
	}
	command := fs.Arg(0)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	// stdout carries reports.
	if cfg.Logger.OutputPath == "" || cfg.Logger.OutputPath == "stdout" {
		cfg.Logger.OutputPath = "stderr"
	}
	logger, err := logging.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := backends.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	h := api.NewHandler(api.Deps{
		Store:    st,
		Notifier: notify.FromConfig(cfg.SMTP, logger),
		Logger:   logger,
		Award: leave.AwardConfig{
			EntitlementDays:   cfg.Award.EntitlementDays,
			AnnualLeaveTypeID: cfg.Award.AnnualLeaveTypeID,
		},
	})
	if opts.year == "" {
		opts.year = h.Registry.CurrentFinancialYear().String()
	}

	switch command {
	case "seed":
		fy, err := generic.ParseFinancialYear(opts.year)
		if err != nil {
			return err
		}
		if err := api.LoadScenario(ctx, st, opts.scenario, fy); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "loaded scenario %s\n", opts.scenario)
		return nil

	case "start":
		result, err := h.Awards.StartFinancialYear(ctx, opts.year, opts.actor)
		if result != nil {
			printAwardResult(stdout, result)
		}
		return err

	case "auto":
		scheduler := api.NewAwardScheduler(h.Awards, h.Registry, nil, logger)
		result, err := scheduler.RunNow(ctx)
		if result == nil && err == nil {
			fmt.Fprintln(stdout, "nothing to do")
			return nil
		}
		if result != nil {
			printAwardResult(stdout, result)
		}
		return err

	case "stats":
		stats, err := h.Registry.GetFinancialYearStats(ctx, opts.year)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Financial year\t%s\n", stats.FinancialYear)
		fmt.Fprintf(tw, "Employees with leave\t%d\n", stats.EmployeesWithLeave)
		fmt.Fprintf(tw, "Total entitled\t%d\n", stats.TotalEntitled)
		fmt.Fprintf(tw, "Total used\t%d\n", stats.TotalUsed)
		fmt.Fprintf(tw, "Total remaining\t%d\n", stats.TotalRemaining)
		fmt.Fprintf(tw, "Average remaining\t%s\n", stats.AverageRemaining.StringFixed(2))
		return tw.Flush()

	case "years":
		years, err := h.Registry.AvailableYears(ctx)
		if err != nil {
			return err
		}
		for _, y := range years {
			fmt.Fprintln(stdout, y)
		}
		return nil

	case "export":
		return exportYear(ctx, h, opts, stdout, logger)
	}
	return fmt.Errorf("unknown command %q", command)
}

func exportYear(ctx context.Context, h *api.Handler, opts options, stdout io.Writer, logger *zap.Logger) error {
	if opts.out == "" {
		return errors.New("export needs -out")
	}

	var render func(io.Writer, *export.YearData) error
	switch strings.ToLower(filepath.Ext(opts.out)) {
	case ".xlsx":
		render = export.WriteWorkbook
	case ".pdf":
		render = export.WriteReport
	default:
		return fmt.Errorf("unsupported export format %q (use .xlsx or .pdf)", filepath.Ext(opts.out))
	}

	data, err := export.Collect(ctx, h.Registry, h.Store, opts.year)
	if err != nil {
		return err
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", opts.out, err)
	}
	if err := render(f, data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("export written", zap.String("year", data.Year), zap.String("path", opts.out))
	fmt.Fprintf(stdout, "wrote %s\n", opts.out)
	return nil
}

func printAwardResult(w io.Writer, r *leave.AwardResult) {
	fmt.Fprintf(w, "Financial year %s (%s): %d awarded of %d processed\n",
		r.FinancialYear, r.Method, r.AwardedCount, r.TotalProcessed)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range r.Details {
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\n", d.EmployeeID, d.EmployeeName, d.DaysAwarded, d.Rationale)
	}
	tw.Flush()

	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  skipped %s: %s\n", s.EmployeeID, s.Reason)
	}
	for _, f := range r.Errors {
		fmt.Fprintf(w, "  error %s\n", f)
	}
}
