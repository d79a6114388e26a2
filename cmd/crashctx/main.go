package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/gyaneshwarpardhi/crashctx/internal/api"
	"github.com/gyaneshwarpardhi/crashctx/internal/config"
	"github.com/gyaneshwarpardhi/crashctx/internal/sdk"
)

// logHandler stands in for an out-of-process crash handler: it reports where
// minidumps would be uploaded and which context file accompanies them.
type logHandler struct{}

func (logHandler) Start(minidumpURL, eventPath string) error {
	slog.Info("crash handler started", "upload_url", minidumpURL, "event_path", eventPath)
	return nil
}

func main() {
	cfgPath := pflag.String("config", "", "Path to options YAML (empty: environment only)")
	addr := pflag.String("addr", "", "HTTP listen address (overrides http_addr)")
	pflag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load options ─────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load options", "err", err)
		os.Exit(1)
	}
	opts := loader.Options()
	setDebug(level, opts.Debug)

	// ── SDK ──────────────────────────────────────────────────────────────────
	client, err := sdk.Init(opts, logHandler{})
	if err != nil {
		slog.Warn("running with SDK disabled", "err", err)
	}

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	loader.OnChange(func(next *config.Options) {
		setDebug(level, next.Debug)
		client.ApplyOptions(next)
		slog.Info("options reloaded", "release", next.Release, "environment", next.Environment, "dist", next.Dist)
	})
	if stopWatch, err := loader.Watch(); err != nil {
		slog.Debug("options watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	listen := opts.HTTPAddr
	if *addr != "" {
		listen = *addr
	}
	srv := &http.Server{
		Addr:         listen,
		Handler:      api.New(client, loader),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	client.Store().Flush()
	slog.Info("goodbye")
}

func setDebug(level *slog.LevelVar, debug bool) {
	if debug {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}
