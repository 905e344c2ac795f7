package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/jw6ventures/powerchat/internal/config"
	"golang.org/x/crypto/hkdf"
)

const (
	sessionCookieName = "powerchat_session"
	stateCookieName   = "powerchat_oauth_state"
	// SessionTTL bounds both the cookie and the server-side row.
	SessionTTL = 7 * 24 * time.Hour
	stateTTL   = 10 * time.Minute
)

// SessionManager encodes the session and OAuth state cookies. The cookie only
// carries the session id; the session itself lives in the database.
type SessionManager struct {
	codec  *securecookie.SecureCookie
	secure bool
}

type sessionCookie struct {
	SessionID string `json:"sid"`
	Expires   int64  `json:"exp"`
}

type stateCookie struct {
	State string `json:"state"`
	Nonce string `json:"nonce"`
}

func NewSessionManager(cfg *config.Config) (*SessionManager, error) {
	hashKey, err := deriveKey(cfg.Session.Secret, "powerchat cookie hash", 32)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(cfg.Session.Secret, "powerchat cookie block", 32)
	if err != nil {
		return nil, err
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(SessionTTL.Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})

	secure := true
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Scheme != "https" {
		secure = false
	}

	return &SessionManager{codec: sc, secure: secure}, nil
}

// deriveKey expands the configured secret into independent keys so the
// signing and encryption keys never share bytes.
func deriveKey(secret, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

// Issue sets the session cookie.
func (m *SessionManager) Issue(w http.ResponseWriter, sessionID string, expires time.Time) error {
	encoded, err := m.codec.Encode(sessionCookieName, sessionCookie{SessionID: sessionID, Expires: expires.Unix()})
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
	})
}

// SessionID extracts the session id from the request cookie if present and
// unexpired.
func (m *SessionManager) SessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}

	var value sessionCookie
	if err := m.codec.Decode(sessionCookieName, c.Value, &value); err != nil {
		return "", false
	}
	if value.SessionID == "" || time.Unix(value.Expires, 0).Before(time.Now()) {
		return "", false
	}
	return value.SessionID, true
}

// IssueState stores the OAuth state and nonce for the callback.
func (m *SessionManager) IssueState(w http.ResponseWriter, state, nonce string) error {
	encoded, err := m.codec.Encode(stateCookieName, stateCookie{State: state, Nonce: nonce})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ConsumeState reads and clears the OAuth state cookie.
func (m *SessionManager) ConsumeState(w http.ResponseWriter, r *http.Request) (state, nonce string, ok bool) {
	c, err := r.Cookie(stateCookieName)
	if err != nil {
		return "", "", false
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/auth", MaxAge: -1, HttpOnly: true, Secure: m.secure})

	var value stateCookie
	if err := m.codec.Decode(stateCookieName, c.Value, &value); err != nil {
		return "", "", false
	}
	return value.State, value.Nonce, value.State != ""
}

// randomToken returns n random bytes, base64url encoded.
func randomToken(n int) (string, error) {
	b := securecookie.GenerateRandomKey(n)
	if b == nil {
		return "", fmt.Errorf("generate random token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
