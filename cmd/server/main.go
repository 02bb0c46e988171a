package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"formation-keyframes/internal/keyframe"
	"formation-keyframes/internal/platform/config"
	"formation-keyframes/internal/platform/logger"
	"formation-keyframes/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	store := keyframe.NewFileStore(cfg.DataPath)
	repo, err := keyframe.NewLockedRepository(store)
	if err != nil {
		// Without a valid timeline there is nothing to serve.
		log.Error("load timeline failed",
			"path", store.Path(),
			"parse_error", errors.Is(err, keyframe.ErrParse),
			"error", err)
		os.Exit(1)
	}

	svc := keyframe.NewService(repo, log)
	met := metrics.New()
	h := keyframe.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetFormations(svc.FormationCount()) }).ServeHTTP(w, r)
	})
	r.Get("/timeline", h.GetTimeline)
	r.Post("/formations", h.AddFormation)
	r.Get("/formations/at/{timestamp}", h.GetFormation)
	r.Put("/formations/at/{timestamp}", h.UpdateFormation)
	r.Post("/formations/{formation_id}/entities", h.AddEntity)
	r.Post("/formations/{formation_id}/entities/new", h.AddNewEntity)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"data_path", store.Path(),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
