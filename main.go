package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"touche/internal/config"
	"touche/internal/handlers"
	"touche/internal/metrics"
	"touche/internal/storage"
	"touche/internal/store"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"touche.yaml"`
	Verbose bool   `short:"v" help:"Enable debug logging"`
	Addr    string `help:"Listen address, overrides the configuration"`
	Backend string `help:"Storage backend (memory, sqlite, file, redis, nats, none)"`
	DSN     string `help:"Storage location for the selected backend"`
}

func main() {
	kong.Parse(&CLI, kong.Description("Boards, tasks and settings kept in sync across every client of a shared storage medium."))

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if CLI.Addr != "" {
		cfg.Addr = CLI.Addr
	}
	if CLI.Backend != "" {
		cfg.Storage.Backend = CLI.Backend
	}
	if CLI.DSN != "" {
		cfg.Storage.DSN = CLI.DSN
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cfg.Debug || CLI.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Ensure data directory exists
	if cfg.Storage.Backend == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DSN), 0755); err != nil {
			log.WithError(err).Fatal("failed to create data directory")
		}
	}

	medium, err := storage.Open(ctx, storage.Options{
		Backend:      cfg.Storage.Backend,
		DSN:          cfg.Storage.DSN,
		Namespace:    cfg.Storage.Namespace,
		PollInterval: cfg.Storage.PollInterval,
	})
	if err != nil {
		log.WithError(err).WithField("backend", cfg.Storage.Backend).Fatal("failed to open storage")
	}
	if medium != nil {
		defer medium.Close()
	}

	reg := prometheus.NewRegistry()
	stores := store.Open(medium,
		store.WithTimeout(cfg.Storage.Timeout),
		store.WithRecorder(metrics.NewPrometheusRecorder(reg)),
	)
	defer stores.Close()

	h := handlers.New(stores)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h.Routes(r)
	r.Handle("/metrics", metrics.HTTPHandler(reg))

	// Request contexts end with ctx so open event streams close on shutdown.
	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     r,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("server shutdown")
		}
	}()

	log.WithFields(log.Fields{
		"addr":    cfg.Addr,
		"backend": cfg.Storage.Backend,
	}).Info("starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("server failed")
	}
}
