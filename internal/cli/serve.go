package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/middleware"
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		port  int
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				opts.cfg.Server.Port = port
			}
			if watch {
				opts.cfg.Corpus.Watch = true
			}
			return serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rebuild when the corpus directory changes")
	return cmd
}

func serve(ctx context.Context, opts *options) error {
	cfg := opts.cfg
	slog.Info("starting search service", "port", cfg.Server.Port, "corpus", cfg.Corpus.Dir, "snapshot", cfg.Snapshot.Backend)

	rt, err := newRuntime(ctx, cfg, highlight.Wrap(cfg.Search.MarkerOpen, cfg.Search.MarkerClose))
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.Open(ctx); err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	st := rt.engine.Status()
	slog.Info("index ready", "generation", st.Generation, "origin", st.Origin, "lines", st.Stats.Lines, "terms", st.Stats.Terms)

	rt.watch(ctx)

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		st := rt.engine.Status()
		if !st.Ready {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no index installed"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %s, %d lines", st.Generation, st.Stats.Lines),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if rt.redis == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := rt.redis.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(rt.service, rt.engine, rt.cache, cfg.Search.PageSize)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Metrics.Enabled {
		chain = middleware.Metrics(rt.metrics, handler.Routes()...)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("search service stopped")
	return nil
}
