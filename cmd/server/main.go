package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/jw6ventures/powerchat/internal/auth"
	"github.com/jw6ventures/powerchat/internal/blob"
	"github.com/jw6ventures/powerchat/internal/chat"
	"github.com/jw6ventures/powerchat/internal/config"
	"github.com/jw6ventures/powerchat/internal/dashboard"
	httpserver "github.com/jw6ventures/powerchat/internal/http"
	"github.com/jw6ventures/powerchat/internal/logging"
	"github.com/jw6ventures/powerchat/internal/meeting"
	"github.com/jw6ventures/powerchat/internal/realtime"
	"github.com/jw6ventures/powerchat/internal/store"
	"github.com/jw6ventures/powerchat/internal/ui"
)

const sessionSweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	closer := logging.Setup(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer closer.Close()

	if err := run(cfg); err != nil {
		log.Printf("[ERROR] %v", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log.Println("Starting PowerChat server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("create db pool: %w", err)
	}
	defer pool.Close()

	stor := store.New(pool)
	if err := stor.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	hub := realtime.NewHub(realtime.DefaultBuffer)
	// The database listener publishes inserts when enabled; otherwise the
	// chat service does it itself.
	chatService := chat.NewService(stor.Messages, hub, !cfg.RealtimeListen)
	pipeline := meeting.NewPipeline(stor.Tasks, chatService, cfg.BaseURL)

	sessionManager, err := auth.NewSessionManager(cfg)
	if err != nil {
		return fmt.Errorf("initialize session cookies: %w", err)
	}
	provider, err := auth.NewOIDCProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize identity provider: %w", err)
	}
	authService := auth.NewService(stor.Users, stor.Sessions, sessionManager, provider)
	authService.OnLogout(pipeline.Forget)

	blobs, err := blob.NewFSStore(cfg.Storage.Dir, cfg.BaseURL, cfg.Storage.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("initialize blob store: %w", err)
	}
	calendar, err := dashboard.Load()
	if err != nil {
		return fmt.Errorf("load dashboard fixtures: %w", err)
	}

	limiters := httpserver.NewLimiters(cfg)
	defer limiters.Stop()

	uiHandler := ui.NewHandler(cfg, stor, chatService, pipeline, blobs, calendar)
	r := httpserver.NewRouter(cfg, stor, authService, uiHandler, limiters)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// No write timeout: /api/messages/stream responses stay open.
		IdleTimeout: 60 * time.Second,
	}
	srv.RegisterOnShutdown(hub.Close)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
		}
		return nil
	})

	if cfg.RealtimeListen {
		g.Go(func() error {
			listen(gctx, pool, stor.Messages, hub)
			return nil
		})
	}

	g.Go(func() error {
		sweepSessions(gctx, authService)
		return nil
	})

	return g.Wait()
}

// listen runs the notification listener on a connection taken out of the
// pool for good. A failure only disables live updates.
func listen(ctx context.Context, pool *pgxpool.Pool, messages store.MessageRepository, hub *realtime.Hub) {
	pooled, err := pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[ERROR] realtime: acquire listener connection: %v; live updates disabled", err)
		}
		return
	}
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if err := realtime.NewListener(conn, messages, hub).Run(ctx); err != nil {
		log.Printf("[ERROR] realtime: %v; live updates disabled", err)
	}
}

func sweepSessions(ctx context.Context, sessions *auth.Service) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.SweepExpired(ctx)
			if err != nil {
				log.Printf("[WARN] sweep expired sessions: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[INFO] removed %d expired sessions", n)
			}
		}
	}
}
