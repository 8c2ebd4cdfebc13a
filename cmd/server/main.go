package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"

	"mirage/internal/audit"
	"mirage/internal/console"
	"mirage/internal/decoy"
	"mirage/internal/gate"
	"mirage/internal/platform/config"
	"mirage/internal/platform/httpserver"
	"mirage/internal/platform/logger"
	"mirage/internal/platform/metrics"
	"mirage/internal/platform/middleware"
	"mirage/internal/session"
	"mirage/internal/shadow"
)

// consolePath is where the real console lives. The decoy never mentions it;
// only a successful login redirect reveals it.
const consolePath = "/real-console"

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogFile)

	if cfg.UsingDefaultSecrets() {
		log.Warn("running with development secrets; set MIRAGE_ADMIN_SECRET and MIRAGE_SESSION_SECRET")
	}

	store, err := audit.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("open audit store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	m := metrics.New()
	recorder := audit.NewRecorder(store, log, m)
	shadowMgr := shadow.NewManager()
	sessions := session.NewManager(cfg.SessionSecret)
	archive := decoy.NewArchiveConfig(cfg.ExpandedArchive, cfg.ArchiveChunks)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(sessions.Middleware)

	gate.New(log, sessions, m, cfg.AdminSecret, consolePath).Register(r)
	decoy.New(log, shadowMgr, recorder, m, archive, consolePath).Register(r)
	console.New(log, store).Register(r, consolePath)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/login", http.StatusFound)
	})

	srv := httpserver.New(cfg.Addr, r)

	log.Info("starting mirage", "addr", cfg.Addr,
		"expanded_archive", cfg.ExpandedArchive,
		"archive_bytes", archive.TotalBytes(),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
