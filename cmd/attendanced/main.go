package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapthttp "attendance/internal/adapter/http"
	"attendance/internal/adapter/memory"
	"attendance/internal/adapter/postgres"
	"attendance/internal/adapter/report"
	"attendance/internal/app"
	"attendance/internal/config"
	"attendance/internal/domain"
	"attendance/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// store is everything the service needs from a storage backend.
type store interface {
	domain.AttendanceRepository
	domain.HistoryRepository
	domain.BreakRepository
	domain.SchedulerMarkRepository
	domain.OperatorRepository
	domain.AuthSessionRepository
	io.Closer
}

func main() {
	cfg, err := config.Load(os.Getenv("ATTENDANCE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	var db store
	if cfg.Database.URL == "" {
		log.Warn("no database.url configured, using in-memory store; nothing survives a restart")
		db = memory.New()
	} else {
		pg, err := postgres.Open(cfg.Database.URL)
		if err != nil {
			log.Fatal("db open", zap.Error(err))
		}
		db = pg
	}
	defer func() { _ = db.Close() }()

	attSvc := app.NewAttendanceService(db, log)
	reportSvc := app.NewReportService(db)
	authSvc := app.NewAuthService(db, db, cfg.Auth.TokenTTL())

	if cfg.Auth.BootstrapUsername != "" && cfg.Auth.BootstrapPassword != "" {
		if err := authSvc.Bootstrap(context.Background(), cfg.Auth.BootstrapUsername, cfg.Auth.BootstrapPassword); err != nil {
			log.Debug("operator bootstrap skipped", zap.Error(err))
		}
	}

	weekStart, err := cfg.Scheduler.WeekStartDay()
	if err != nil {
		log.Fatal("scheduler config", zap.Error(err))
	}
	sched := app.NewScheduler(attSvc, db, db, db, reportSvc, report.NewLog(log), weekStart, log)
	sched.Start()
	defer sched.Stop()

	oidcCfg, err := buildOIDC(cfg.Auth.OIDC)
	if err != nil {
		log.Fatal("oidc setup", zap.Error(err))
	}

	srv := adapthttp.New(attSvc, reportSvc, db, db, authSvc, oidcCfg, log)
	if cfg.Auth.Disabled {
		log.Warn("operator authentication disabled")
		srv.DisableAuth()
	}

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	// Deferred stops run after this: scheduler first, then the store, so
	// no firing is left half-applied against a closed store.
}

func buildOIDC(cfg config.OIDCConfig) (adapthttp.OIDCConfig, error) {
	if cfg.Issuer == "" {
		return adapthttp.OIDCConfig{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return adapthttp.OIDCConfig{}, err
	}

	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}
