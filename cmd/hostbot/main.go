// Package main is the entry point for the hosting bot.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/capitalize-ai/hostbot/internal/clock"
	"github.com/capitalize-ai/hostbot/internal/config"
	"github.com/capitalize-ai/hostbot/internal/presenter"
	"github.com/capitalize-ai/hostbot/internal/service"
	"github.com/capitalize-ai/hostbot/internal/store"
	"github.com/capitalize-ai/hostbot/pkg/logger"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "hostbot",
		Usage: "Telegram bot for hosting and finding parties.",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			cleanupCommand(),
			listCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Global().Error("application failed", zap.Error(err))
		os.Exit(1)
	}
}

// app holds what every command needs: configuration, logging and the store.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	clock clock.Clock
	store *store.EventStore
}

func bootstrap() (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobal(log)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clk := clock.Wall{Location: loc}

	db, err := store.Open(cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	}, log)
	if err != nil {
		return nil, err
	}

	st, err := store.New(db, clk)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, log: log, clock: clk, store: st}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the events table if it does not exist.",
		Action: func(c *cli.Context) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.Init(c.Context); err != nil {
				return fmt.Errorf("failed to initialize schema: %w", err)
			}
			a.log.Info("schema ready")
			return nil
		},
	}
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Delete events that have already ended.",
		Action: func(c *cli.Context) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			svc, err := service.NewEventService(a.store, nil, a.clock, a.log)
			if err != nil {
				return err
			}
			deleted, err := svc.Cleanup(c.Context)
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "deleted %d expired events\n", deleted)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print upcoming events as the bot would show them.",
		Action: func(c *cli.Context) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
			defer cancel()

			events, err := a.store.ListUpcoming(ctx)
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}
			for _, reply := range presenter.New(a.cfg.CostCurrency).Listing(events) {
				fmt.Fprintln(c.App.Writer, reply.Text)
				if reply.Link != nil {
					fmt.Fprintf(c.App.Writer, "%s: %s\n", reply.Link.Label, reply.Link.URL)
				}
				fmt.Fprintln(c.App.Writer)
			}
			return nil
		},
	}
}
