package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"streamer-live-bot/internal/application"
	"streamer-live-bot/internal/config"
	"streamer-live-bot/internal/domain/ports/adapter"
	"streamer-live-bot/internal/domain/ports/repository"
	tele "streamer-live-bot/internal/infra/adapters/telegram"
	"streamer-live-bot/internal/infra/adapters/workflow"
	"streamer-live-bot/internal/infra/db/memory"
	pg "streamer-live-bot/internal/infra/db/postgres"
	httpapi "streamer-live-bot/internal/infra/http"
	"streamer-live-bot/internal/infra/i18n"
	"streamer-live-bot/internal/infra/inproc"
	"streamer-live-bot/internal/infra/logging"
	"streamer-live-bot/internal/infra/metrics"
	red "streamer-live-bot/internal/infra/redis"
	"streamer-live-bot/internal/infra/web"
	"streamer-live-bot/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

const lockWait = 2 * time.Second

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: in-memory workflow API when no token is set")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("bot stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Bool("dev", cfg.Runtime.Dev).Msg("starting")

	health := map[string]httpapi.HealthFunc{}

	// ---- Storage ----
	var (
		repo repository.SessionRepository
		tm   repository.TransactionManager
	)
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool, logger); err != nil {
			return err
		}
		if err := metrics.RegisterDBPool(func() (int32, int32, int32) {
			s := pool.Stat()
			return s.TotalConns(), s.IdleConns(), s.AcquiredConns()
		}); err != nil {
			logger.Warn().Err(err).Msg("db pool metrics not registered")
		}
		health["postgres"] = pool.Ping
		repo = pg.NewPostgresSessionRepo(pool)
		tm = pg.NewTxManager(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set; watch lists live in memory and are lost on restart")
		store := memory.NewStore()
		repo, tm = store, store
	}

	// ---- Coordination ----
	var (
		locker  repository.Locker
		states  repository.StateRepository
		limiter tele.RateLimiter
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		health["redis"] = rc.Ping
		locker = red.NewLocker(rc, lockWait)
		states = red.NewStateRepo(rc, 10*time.Minute)
		limiter = red.NewRateLimiter(rc)
	} else {
		locker = inproc.NewKeyLocker(lockWait)
		states = inproc.NewStateStore(10 * time.Minute)
		limiter = inproc.NewRateLimiter()
	}

	// ---- Remote workflow API ----
	var gateway adapter.WorkflowGateway
	if cfg.Automation.Token == "" && cfg.Runtime.Dev {
		logger.Warn().Msg("no automation token; using in-memory workflow gateway")
		gateway = workflow.NewInMemoryGateway()
	} else {
		gw, err := workflow.NewOtomatoGateway(cfg.Automation, logger)
		if err != nil {
			return fmt.Errorf("workflow gateway: %w", err)
		}
		gateway = gw
	}

	opts := usecase.DefaultWatchWorkflowOptions(cfg.Bot.Token)
	opts.TriggerBlockID = cfg.Automation.TriggerBlockID
	opts.ActionBlockID = cfg.Automation.ActionBlockID
	opts.StreamURLBase = cfg.Automation.StreamURLBase
	opts.GatewayTimeout = cfg.Automation.Timeout

	// ---- Use cases ----
	sessionUC := usecase.NewSessionUseCase(repo, tm, logger)
	watchUC := usecase.NewWatchUseCase(repo, tm, gateway, locker, states, opts, logger)

	tr, err := i18n.NewTranslator(i18n.LocalesFS, i18n.DefaultLang)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	facade := application.NewBotFacade(sessionUC, watchUC, tr, application.FacadeOptions{
		WelcomePhotoURL: cfg.Bot.WelcomePhotoURL,
		StreamURLBase:   cfg.Automation.StreamURLBase,
		SiteURL:         cfg.Bot.SiteURL,
	}, logger)

	// ---- Telegram ----
	bot, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, tr, logger)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	router := tele.NewRouter(&cfg.Bot, facade, bot, limiter, logger)

	errc := make(chan error, 2)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		if err := bot.StartPolling(ctx, router); err != nil && !errors.Is(err, context.Canceled) {
			errc <- fmt.Errorf("telegram polling: %w", err)
		}
	}()

	// ---- Admin HTTP ----
	var admin *httpapi.Server
	if cfg.Admin.Port > 0 {
		auth, err := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
		if err != nil {
			return fmt.Errorf("admin auth: %w", err)
		}
		admin = httpapi.NewServer(cfg.Admin.Port, auth, sessionUC, watchUC, health, logger)
		go func() {
			if err := admin.Start(); err != nil {
				errc <- fmt.Errorf("admin http: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		logger.Error().Err(err).Msg("component failed; shutting down")
	}

	bot.StopPolling()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// In-flight updates still use the pool and redis closed by the defers above.
	if !awaitDone(shutdownCtx, pollDone) {
		logger.Warn().Msg("telegram handlers did not drain before shutdown deadline")
	}
	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("admin http shutdown")
		}
	}
	return nil
}

// awaitDone blocks until done is closed or ctx ends and reports whether done
// closed first.
func awaitDone(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
