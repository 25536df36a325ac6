package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"propdesk.io/internal/audit"
	"propdesk.io/internal/auth"
	"propdesk.io/internal/cache"
	"propdesk.io/internal/config"
	"propdesk.io/internal/directory"
	"propdesk.io/internal/httpapi"
	"propdesk.io/internal/identity"
	"propdesk.io/internal/notify"
	"propdesk.io/internal/obs"
	"propdesk.io/internal/onboarding"
	"propdesk.io/internal/store/memory"
	"propdesk.io/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backend is implemented by both the Postgres and the in-memory store.
type backend interface {
	Directory() directory.Store
	Onboarding() onboarding.Store
	Identities() identity.Store
	Admins() auth.AdminStore
	Activity() audit.Store
}

func main() {
	log := obs.Logger()
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	obs.ConfigureLogger(cfg.Log.Level, nil)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		store backend
		db    *sql.DB
	)
	if cfg.Database.DSN != "" {
		pgStore, err := pg.Open(cfg.Database.DSN, pg.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			log.WithError(err).Fatal("open database")
		}
		store, db = pgStore, pgStore.DB()
	} else {
		log.Warn("PROPDESK_DATABASE_DSN not set, using in-memory store")
		store = memory.New()
	}

	redisClient := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	adminDirectory := cache.NewAdminDirectory(store.Admins(), redisClient, cfg.Redis.CacheTTL)

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		log.WithError(err).Fatal("token issuer")
	}

	identities := identity.NewService(store.Identities(), nil)
	services := httpapi.Services{
		Identity:  identities,
		Directory: directory.NewService(store.Directory(), nil),
		Invitations: onboarding.NewService(store.Onboarding(), identities,
			onboarding.WithMailer(mailer),
			onboarding.WithPublicBaseURL(cfg.Invitations.PublicBaseURL),
		),
		Gate:     auth.NewGate(adminDirectory),
		Admins:   auth.NewAdminService(store.Admins(), nil),
		Tokens:   tokens,
		Activity: audit.NewRecorder(store.Activity(), nil),
	}
	probe := httpapi.ReadyProbe{DB: db, Cache: adminDirectory}

	api := httpapi.New(services, probe, version,
		httpapi.WithRateLimit(cfg.RateLimit.Burst, cfg.RateLimit.PerSecond),
		httpapi.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		httpapi.WithAdminCache(adminDirectory),
		httpapi.WithForwardedFor(cfg.HTTP.TrustForwardedFor),
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := httpapi.NewGRPCServer(probe)
	grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.WithError(err).Fatal("grpc listen")
	}

	log.WithFields(logrus.Fields{
		"version":   version,
		"http_addr": srv.Addr,
		"grpc_addr": cfg.GRPC.Addr,
	}).Info("starting propdesk-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http listen")
		}
	}()
	go func() {
		if err := grpcSrv.Serve(grpcLis); err != nil {
			log.WithError(err).Error("grpc serve")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
	log.Info("stopped")
}
