package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/capitalize-ai/hostbot/internal/bot"
	"github.com/capitalize-ai/hostbot/internal/conversation"
	"github.com/capitalize-ai/hostbot/internal/expiry"
	"github.com/capitalize-ai/hostbot/internal/handler"
	natsclient "github.com/capitalize-ai/hostbot/internal/nats"
	"github.com/capitalize-ai/hostbot/internal/presenter"
	"github.com/capitalize-ai/hostbot/internal/service"
	"github.com/capitalize-ai/hostbot/internal/transport/telegram"
	"github.com/capitalize-ai/hostbot/pkg/tracing"
)

const shutdownTimeout = 30 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the bot with its cleanup job and optional HTTP gateway.",
		Action: func(c *cli.Context) error { return serve(c.Context) },
	}
}

func serve(parent context.Context) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	cfg, log := a.cfg, a.log
	if cfg.BotToken == "" && !cfg.HTTPEnabled {
		return errors.New("nothing to serve: set BOT_TOKEN or HTTP_ENABLED")
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting hostbot",
		zap.Strings("areas", cfg.Areas),
		zap.String("timezone", cfg.Timezone),
	)

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "hostbot", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() {
				if err := tracing.Shutdown(context.Background(), tp); err != nil {
					log.Warn("failed to shut down tracing", zap.Error(err))
				}
			}()
		}
	}

	if err := a.store.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	checks := map[string]handler.Checker{"database": a.store.Ping}

	var notifier service.Notifier
	natsCfg := natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}
	if natsCfg.Enabled() {
		nc, err := natsclient.Connect(ctx, natsCfg, log)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()

		streams := natsclient.NewStreamManager(nc)
		if err := streams.EnsureStream(ctx); err != nil {
			return fmt.Errorf("failed to ensure stream: %w", err)
		}
		notifier = streams
		checks["nats"] = nc.Ping
	}

	svc, err := service.NewEventService(a.store, notifier, a.clock, log)
	if err != nil {
		return err
	}

	engine, err := conversation.NewEngine(svc, conversation.Options{
		Areas:    cfg.Areas,
		Currency: cfg.CostCurrency,
		Clock:    a.clock,
	}, log)
	if err != nil {
		return err
	}

	chat, err := bot.New(engine, svc, presenter.New(cfg.CostCurrency), bot.Options{Name: cfg.BotName}, log)
	if err != nil {
		return err
	}

	var (
		wg   sync.WaitGroup
		errc = make(chan error, 4)
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errc <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	cleanup, err := expiry.New("cleanup", cfg.CleanupInterval, expiry.SweeperFunc(func(ctx context.Context) error {
		_, err := svc.Cleanup(ctx)
		return err
	}), log)
	if err != nil {
		return err
	}
	run("cleanup", cleanup.Run)

	if cfg.SessionIdleTimeout > 0 {
		sessions, err := expiry.New("sessions", cfg.SessionIdleTimeout/2, expiry.SweeperFunc(func(context.Context) error {
			engine.PruneIdle(cfg.SessionIdleTimeout)
			return nil
		}), log)
		if err != nil {
			return err
		}
		run("sessions", sessions.Run)
	}

	var dispatcher *bot.Dispatcher
	if cfg.BotToken != "" {
		tg, err := telegram.New(telegram.Config{
			Token:       cfg.BotToken,
			Debug:       cfg.TelegramDebug,
			PollTimeout: cfg.TelegramPollTimeout,
		}, log)
		if err != nil {
			return err
		}
		dispatcher, err = bot.NewDispatcher(chat, tg, log, bot.WithTransport("telegram"))
		if err != nil {
			return err
		}
		run("telegram", func(ctx context.Context) error { return tg.Run(ctx, dispatcher) })
	}

	var server *http.Server
	if cfg.HTTPEnabled {
		server = &http.Server{
			Addr: ":" + cfg.ServerPort,
			Handler: handler.NewRouter(handler.RouterConfig{
				Logger:            log,
				JWTSecret:         cfg.GatewayJWTSecret,
				RateLimitRequests: cfg.RateLimitRequests,
				RateLimitWindow:   cfg.RateLimitWindow,
				Health:            handler.NewHealthHandler(checks),
				Messages:          handler.NewMessageHandler(chat, log),
				Events:            handler.NewEventHandler(svc, log),
			}),
			ReadTimeout:  cfg.ServerReadTimeout,
			WriteTimeout: cfg.ServerWriteTimeout,
			IdleTimeout:  120 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("server listening", zap.String("port", cfg.ServerPort))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("http: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errc:
		log.Error("component failed", zap.Error(runErr))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
	}
	if dispatcher != nil {
		dispatcher.Close()
		dispatcher.Wait()
	}
	wg.Wait()

	log.Info("hostbot stopped")
	return runErr
}
