package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/immxrtalbeast/axenix_roulette/internal/api/http"
	"github.com/immxrtalbeast/axenix_roulette/internal/config"
	"github.com/immxrtalbeast/axenix_roulette/internal/metrics"
	"github.com/immxrtalbeast/axenix_roulette/internal/repository"
	"github.com/immxrtalbeast/axenix_roulette/internal/repository/model"
	"github.com/immxrtalbeast/axenix_roulette/internal/service"
	"github.com/immxrtalbeast/axenix_roulette/lib/logger/sl"
	"github.com/immxrtalbeast/axenix_roulette/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	matches, err := setupMatchRepository(cfg.Database, log)
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}

	m := metrics.New()
	callService := service.NewCallService(matches, m, log, service.CallConfig{
		ICEServers:       cfg.ICEServers(),
		SignalsPerSecond: cfg.Signaling.SignalsPerSecond,
		SignalBurst:      cfg.Signaling.SignalBurst,
		VerifyInterval:   cfg.Signaling.VerifyInterval,
	})

	runCtx, stopRun := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		callService.Run(runCtx)
		close(runDone)
	}()

	callController := httpapi.NewCallController(callService, cfg.Signaling, log)
	router := httpapi.SetupRouter(callController, cfg.HTTP.AllowedOrigins, metrics.PrometheusHandler(m))

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}
	// Push channels keep their requests open until the matchmaker closes them.
	srv.RegisterOnShutdown(callService.Shutdown)

	go func() {
		log.Info("starting application", slog.String("addr", cfg.HTTP.Address), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", sl.Err(err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info("shutting down", slog.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("http server shutdown failed", sl.Err(err))
	}
	callService.Shutdown()

	stopRun()
	<-runDone
	log.Info("application stopped")
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

// setupMatchRepository keeps match history in memory unless a database DSN
// is configured.
func setupMatchRepository(cfg config.DatabaseConfig, log *slog.Logger) (repository.MatchRepository, error) {
	if cfg.DSN == "" {
		log.Info("match history kept in memory")
		return repository.NewInMemoryMatchRepository(), nil
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("match history stored in postgres")
	return repository.NewPostgresMatchRepository(db), nil
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.Match{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
