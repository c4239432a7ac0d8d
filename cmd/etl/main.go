// Command etl extracts ranked coin market data, derives volatility scores and
// loads them into Postgres, either once or on a fixed interval.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"cryptoetl/internal/cli"
	"cryptoetl/internal/config"
	"cryptoetl/internal/pipeline"
	"cryptoetl/internal/svc"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	configFile string
	once       bool
	schedule   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configFile, "f", "etc/etl.yaml", "the config file")
	fs.BoolVar(&opts.once, "once", false, "run a single extract-transform-load pass and exit")
	fs.BoolVar(&opts.schedule, "schedule", false, "run on the configured interval until interrupted")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.once == opts.schedule {
		fs.Usage()
		return opts, errors.New("exactly one of -once or -schedule is required")
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func run(args []string, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		return exitUsage
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitFailure
	}
	cli.SetupLogging(cfg.Log)
	defer logx.Close()
	cli.LogConfigSummary(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := initApp(cfg)
	if err != nil {
		logx.Errorf("init app err=%v", err)
		return exitFailure
	}
	defer cleanup()

	if err := app.Prepare(ctx); err != nil {
		logx.Errorf("prepare storage err=%v", err)
		return exitFailure
	}
	app.LogFreshness(ctx)

	if opts.once {
		report := app.Orchestrator.RunOnce(ctx)
		if report.Outcome != pipeline.Success {
			return exitFailure
		}
		return exitOK
	}
	return runScheduled(ctx, app)
}

func runScheduled(ctx context.Context, app *svc.ServiceContext) int {
	done := make(chan struct{})
	threading.GoSafe(func() {
		defer close(done)
		app.Scheduler.Run(ctx)
	})

	select {
	case <-done:
		return exitOK
	case <-ctx.Done():
	}

	timeout := app.Config.Pipeline.ShutdownTimeout
	logx.Infow("shutdown signal received, waiting for in-flight run", logx.Field("timeout", timeout.String()))
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		logx.Infow("scheduler stopped cleanly",
			logx.Field("runs", app.Scheduler.Runs()),
			logx.Field("skipped", app.Scheduler.Skipped()))
		return exitOK
	case <-timer.C:
		logx.Errorf("shutdown timeout %s exceeded with a run still in flight", timeout)
		return exitFailure
	}
}
