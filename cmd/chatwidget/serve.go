package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lojasmm/chatwidget/internal/config"
	"github.com/lojasmm/chatwidget/internal/host"
	"github.com/lojasmm/chatwidget/internal/proxy"
	"github.com/lojasmm/chatwidget/internal/store"
)

const cleanupInterval = 10 * time.Minute

// sweeper is a backend that frees expired entries only when asked.
type sweeper interface {
	Sweep()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the widget page and the /api/chat proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func newRouter(cfg *config.Config, tabs *host.Tabs, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	proxy.NewHandler(proxy.NewWebhook(cfg.WebhookURL, nil), cfg.SessionIDField).Mount(r, cfg.CORSOrigins)
	host.NewHandler(tabs, cfg.Widget).Routes(r)
	return r
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	backend, err := store.Open(cfg.StoreOptions())
	if err != nil {
		return errors.Wrap(err, "opening storage")
	}
	defer backend.Close()

	tabs := host.NewTabs(host.Opener(cfg.Widget, backend, logger))
	defer tabs.Close()

	if cfg.WebhookURL == "" {
		logger.Warn().Msg("WEBHOOK_URL is not set, /api/chat will answer 500")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, tabs, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // /widget/send waits for the workflow
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Str("base_url", cfg.BaseURL).Str("storage", cfg.Storage).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	// Periodic eviction of idle tab widgets; their state stays in storage
	g.Go(func() error {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := tabs.Cleanup(cfg.SessionTTL); n > 0 {
					logger.Debug().Int("evicted", n).Msg("evicted idle tabs")
				}
				if s, ok := backend.(sweeper); ok {
					s.Sweep()
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		logger.Info().Msg("stopped")
		return nil
	})

	return g.Wait()
}
