package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/jw6ventures/powerchat/internal/auth"
	"github.com/jw6ventures/powerchat/internal/config"
	"github.com/jw6ventures/powerchat/internal/http/csrf"
	"github.com/jw6ventures/powerchat/internal/http/ratelimit"
	"github.com/jw6ventures/powerchat/internal/metrics"
	"github.com/jw6ventures/powerchat/internal/ui"
)

// HealthChecker reports whether the database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Limiters groups the rate limiters so the caller can stop them on shutdown.
type Limiters struct {
	Auth      *ratelimit.Limiter
	Writes    *ratelimit.Limiter
	Assistant *ratelimit.Limiter
}

// NewLimiters builds the default limits.
func NewLimiters(cfg *config.Config) *Limiters {
	return &Limiters{
		// Auth endpoints: 5 requests per second, burst of 10
		Auth: ratelimit.New(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies),
		// Chat writes and uploads: 2 per second per user, burst of 10
		Writes: ratelimit.New(rate.Limit(2), 10, 5*time.Minute, cfg.TrustedProxies),
		// Tool call observations arrive in quick bursts while a call streams
		Assistant: ratelimit.New(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies),
	}
}

// Stop ends every limiter's cleanup goroutine.
func (l *Limiters) Stop() {
	l.Auth.Stop()
	l.Writes.Stop()
	l.Assistant.Stop()
}

// NewRouter wires all HTTP routes for the chat UI and its JSON API.
func NewRouter(cfg *config.Config, health HealthChecker, authService *auth.Service, uiHandler *ui.Handler, limiters *Limiters) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := health.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(limiters.Auth.Middleware("auth", limiters.Auth.ByIP))
		r.Get("/login", authService.BeginOAuth)
		r.Get("/callback", authService.HandleOAuthCallback)
	})

	r.With(authService.RequireSession, csrf.Middleware(cfg)).Post("/auth/logout", authService.Logout)

	// Uploaded files are public, like the links shared in chat
	r.Get("/blobs/*", uiHandler.ServeBlob)

	r.Group(func(r chi.Router) {
		r.Use(authService.RequireSession)
		r.Use(csrf.Middleware(cfg))

		r.Get("/", uiHandler.Chat)
		r.Get("/tasks", uiHandler.Tasks)
		r.Get("/ai-tasks/{id}", uiHandler.ViewTask)
		r.Get("/ai-tasks/{id}/event.ics", uiHandler.DownloadEvent)
		r.Post("/ai-tasks/{id}/calendar", uiHandler.AddToCalendar)

		r.Get("/api/messages", uiHandler.ListMessages)
		r.Get("/api/messages/stream", uiHandler.StreamMessages)
		r.Get("/api/assistant/context", uiHandler.AssistantContext)
		r.Get("/api/assistant/actions", uiHandler.AssistantActions)

		r.Group(func(r chi.Router) {
			r.Use(limiters.Writes.Middleware("writes", limiters.Writes.ByUser))
			r.Post("/api/messages", uiHandler.SendMessage)
			r.Post("/api/chat", uiHandler.PostChat)
			r.Post("/api/upload-image", uiHandler.UploadImage)
			r.Post("/api/upload", uiHandler.UploadCalendar)
			r.Post("/api/assistant/actions/showCalendarMeeting/{invocationID}/share", uiHandler.ShareMeeting)
		})

		r.With(limiters.Assistant.Middleware("assistant", limiters.Assistant.ByUser)).
			Post("/api/assistant/actions/showCalendarMeeting", uiHandler.ObserveMeeting)
	})

	return r
}
