package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitbalance/internal/adapter/handler"
	"bitbalance/internal/application/service"
	"bitbalance/internal/domain/model"
	"bitbalance/internal/infrastructure/server"

	"github.com/google/subcommands"
)

// withApp loads config, wires the App and runs fn with it.
func withApp(ctx context.Context, fn func(ctx context.Context, app *App) error) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	app, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	if err := fn(ctx, app); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type serveCmd struct {
	port          int
	noPoll        bool
	evaluateEvery time.Duration
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API, the price poller and the event stream" }
func (*serveCmd) Usage() string {
	return `bitbalance serve [-port <N>] [-no-poll] [-evaluate-every <duration>]

  Serves the REST API and /ws, refreshes tracked symbols in the background
  and, when -evaluate-every is set, evaluates price alerts on that interval.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.port, "port", 0, "Port number. Overrides server.port.")
	f.BoolVar(&c.noPoll, "no-poll", false, "Do not start the background price poller.")
	f.DurationVar(&c.evaluateEvery, "evaluate-every", 0, "Evaluate alerts on this interval (0 disables).")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(ctx context.Context, app *App) error {
		cfg := app.config
		if c.port != 0 {
			cfg.Server.Port = c.port
		}

		srv := server.NewServer(cfg.Server.Port, handler.NewRouter(app.routes()), server.Options{
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}, app.logger)

		serveErr := make(chan error, 1)
		go func() { serveErr <- srv.Start() }()

		if !c.noPoll {
			app.poller.Start(ctx)
		}
		if c.evaluateEvery > 0 {
			go evaluateLoop(ctx, app, c.evaluateEvery)
		}

		select {
		case err := <-serveErr:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			app.logger.Info("shutting down gracefully")
		}

		app.poller.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		app.logger.Info("shutdown complete")
		return nil
	})
}

func evaluateLoop(ctx context.Context, app *App, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			triggered, err := app.alerts.EvaluateAlerts(ctx)
			if err != nil && ctx.Err() == nil {
				app.logger.Error("alert evaluation failed", "error", err)
			}
			if len(triggered) > 0 {
				app.logger.Info("alerts triggered", "count", len(triggered))
			}
		}
	}
}

type priceCmd struct {
	test bool
}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "print the current price of one or more symbols" }
func (*priceCmd) Usage() string {
	return `bitbalance price [-test] <SYMBOL>...

  Looks each symbol up through the configured chain and prints one JSON line
  per symbol. Falls back to the last stored snapshot, flagged stale.
`
}

func (c *priceCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.test, "test", false, "Use synthetic test-mode prices.")
}

func (c *priceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "price: at least one symbol is required")
		return subcommands.ExitUsageError
	}

	return withApp(ctx, func(ctx context.Context, app *App) error {
		if c.test {
			if _, err := app.modeService.SwitchMode(ctx, model.TestMode); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		for _, raw := range f.Args() {
			symbol, err := model.ParseCoinSymbol(raw)
			if err != nil {
				return err
			}
			price, err := app.prices.GetLatestPrice(ctx, symbol)
			if err != nil {
				return err
			}
			if price == nil {
				fmt.Fprintf(os.Stderr, "%s: no price available\n", symbol)
				continue
			}
			if err := enc.Encode(price); err != nil {
				return err
			}
		}
		return nil
	})
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create the database tables and exit" }
func (*migrateCmd) Usage() string {
	return `bitbalance migrate

  Creates the price_snapshots and alerts tables when missing.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	fmt.Printf("schema ready (%s)\n", cfg.Storage.Driver)
	return subcommands.ExitSuccess
}

type alertsAddCmd struct {
	portfolio string
	symbol    string
	target    string
	currency  string
	direction string
}

func (*alertsAddCmd) Name() string     { return "alerts-add" }
func (*alertsAddCmd) Synopsis() string { return "create a price alert" }
func (*alertsAddCmd) Usage() string {
	return `bitbalance alerts-add -portfolio <id> -symbol <SYM> -target <amount> [-currency USD] [-direction above|below]
`
}

func (c *alertsAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "portfolio", "", "Portfolio that owns the alert.")
	f.StringVar(&c.symbol, "symbol", "", "Coin symbol, e.g. BTC.")
	f.StringVar(&c.target, "target", "", "Target price amount.")
	f.StringVar(&c.currency, "currency", "USD", "Target price currency.")
	f.StringVar(&c.direction, "direction", "above", "Trigger when the price moves above or below the target.")
}

func (c *alertsAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, app *App) error {
		alert, err := app.alerts.CreateAlert(ctx, service.CreateAlertInput{
			PortfolioID:  c.portfolio,
			Symbol:       c.symbol,
			TargetAmount: c.target,
			Currency:     c.currency,
			Direction:    c.direction,
		})
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(alert)
	})
}

type alertsEvaluateCmd struct{}

func (*alertsEvaluateCmd) Name() string     { return "alerts-evaluate" }
func (*alertsEvaluateCmd) Synopsis() string { return "evaluate untriggered alerts once against current prices" }
func (*alertsEvaluateCmd) Usage() string {
	return `bitbalance alerts-evaluate
`
}
func (*alertsEvaluateCmd) SetFlags(*flag.FlagSet) {}

func (*alertsEvaluateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, app *App) error {
		triggered, err := app.alerts.EvaluateAlerts(ctx)
		enc := json.NewEncoder(os.Stdout)
		for _, a := range triggered {
			if encErr := enc.Encode(a); encErr != nil {
				return encErr
			}
		}
		fmt.Fprintf(os.Stderr, "%d alert(s) triggered\n", len(triggered))
		return err
	})
}
