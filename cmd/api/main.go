package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/userapi/internal/app"
	"github.com/geocoder89/userapi/internal/config"
	"github.com/geocoder89/userapi/internal/observability"
)

func main() {
	// Load the config set up
	cfg, err := config.Load(context.Background())
	if err != nil {
		observability.NewLogger("prod").Error("config invalid", "err", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	if cfg.OTel.Endpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), observability.TracerConfig{
			ServiceName: cfg.OTel.ServiceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OTel.Endpoint,
			SampleRatio: cfg.OTel.SampleRatio,
		})
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	startCtx, cancelStart := config.WithTimeout(30 * time.Second)
	application, err := app.New(startCtx, cfg, log, nil)
	cancelStart()
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer application.Close()

	// server set up
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           application.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "db_driver", cfg.DB.Driver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
