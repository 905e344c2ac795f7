package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jw6ventures/powerchat/internal/store"
)

// Service runs the OIDC login flow and guards routes with web sessions.
type Service struct {
	users    store.UserRepository
	sessions store.SessionRepository
	cookies  *SessionManager
	provider Provider

	onLogout []func(sessionID string)
}

func NewService(users store.UserRepository, sessions store.SessionRepository, cookies *SessionManager, provider Provider) *Service {
	return &Service{users: users, sessions: sessions, cookies: cookies, provider: provider}
}

// OnLogout registers a hook run after a session is deleted.
func (s *Service) OnLogout(fn func(sessionID string)) {
	s.onLogout = append(s.onLogout, fn)
}

// BeginOAuth redirects the browser to the identity provider.
func (s *Service) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken(32)
	if err != nil {
		log.Printf("[ERROR] auth: %v", err)
		http.Error(w, "login unavailable", http.StatusInternalServerError)
		return
	}
	nonce, err := randomToken(32)
	if err != nil {
		log.Printf("[ERROR] auth: %v", err)
		http.Error(w, "login unavailable", http.StatusInternalServerError)
		return
	}
	if err := s.cookies.IssueState(w, state, nonce); err != nil {
		log.Printf("[ERROR] auth: issue state cookie: %v", err)
		http.Error(w, "login unavailable", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, s.provider.AuthCodeURL(state, nonce), http.StatusFound)
}

// HandleOAuthCallback completes the flow and starts a session.
func (s *Service) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	state, nonce, ok := s.cookies.ConsumeState(w, r)
	if !ok || r.URL.Query().Get("state") != state {
		http.Error(w, "invalid login state", http.StatusBadRequest)
		return
	}
	if e := r.URL.Query().Get("error"); e != "" {
		log.Printf("[WARN] auth: provider returned error %q", e)
		http.Error(w, "login was not completed", http.StatusUnauthorized)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	identity, err := s.provider.Exchange(ctx, code, nonce)
	if err != nil {
		log.Printf("[WARN] auth: %v", err)
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	user, err := s.users.UpsertOAuthUser(ctx, identity.Subject, identity.Email)
	if err != nil {
		log.Printf("[ERROR] auth: %v", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	if err := s.startSession(ctx, w, r, user.ID); err != nil {
		log.Printf("[ERROR] auth: %v", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	log.Printf("[INFO] auth: user %d signed in", user.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Service) startSession(ctx context.Context, w http.ResponseWriter, r *http.Request, userID int64) error {
	id, err := randomToken(32)
	if err != nil {
		return err
	}
	ua := r.UserAgent()
	ip := clientIP(r)
	expires := time.Now().Add(SessionTTL)
	if err := s.sessions.Create(ctx, store.Session{
		ID:        id,
		UserID:    userID,
		UserAgent: &ua,
		IPAddress: &ip,
		ExpiresAt: expires,
	}); err != nil {
		return err
	}
	return s.cookies.Issue(w, id, expires)
}

// SweepExpired deletes expired sessions and runs the logout hooks for each,
// so per-session state goes away even when nobody logs out.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	ids, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		for _, fn := range s.onLogout {
			fn(id)
		}
	}
	return len(ids), nil
}

// Logout ends the current session.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := s.cookies.SessionID(r); ok {
		if err := s.sessions.Delete(r.Context(), id); err != nil {
			log.Printf("[WARN] auth: delete session: %v", err)
		}
		for _, fn := range s.onLogout {
			fn(id)
		}
	}
	s.cookies.Clear(w)
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// RequireSession loads the user for the session cookie. Browsers are sent
// to the login flow; API callers get a JSON 401.
func (s *Service) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, sessionID, err := s.currentUser(ctx, r)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, errNoCookie) {
				log.Printf("[ERROR] auth: load session: %v", err)
			}
			s.unauthorized(w, r)
			return
		}
		if err := s.sessions.Touch(ctx, sessionID); err != nil {
			log.Printf("[WARN] auth: touch session: %v", err)
		}
		ctx = WithSessionID(WithUser(ctx, user), sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var errNoCookie = errors.New("no session cookie")

func (s *Service) currentUser(ctx context.Context, r *http.Request) (*store.User, string, error) {
	id, ok := s.cookies.SessionID(r)
	if !ok {
		return nil, "", errNoCookie
	}
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, "", err
	}
	return user, sess.ID, nil
}

func (s *Service) unauthorized(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
		return
	}
	http.Redirect(w, r, "/auth/login", http.StatusFound)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
