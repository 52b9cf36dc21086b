package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/avelinebess/likify/internal/services"
)

// SessionCookie is the name of the cookie carrying the signed session payload.
const SessionCookie = "likify_session"

// Session is the per-browser state the web app keeps between requests: the
// token bundle once the user has authorized, and the pending OAuth state
// token during a login attempt. The core never persists tokens itself; the
// session cookie is the caller-owned storage.
type Session struct {
	Token *services.Token `json:"token,omitempty"`
	State string          `json:"state,omitempty"`
}

// LoggedIn reports whether the session holds a usable token bundle.
func (s *Session) LoggedIn() bool {
	return s.Token != nil && s.Token.AccessToken != ""
}

// SessionCodec signs and verifies session payloads with HMAC-SHA256 so the
// cookie cannot be forged or tampered with client-side. Payloads are not
// encrypted; tokens are opaque bearer strings already.
type SessionCodec struct {
	secret []byte
}

// NewSessionCodec creates a codec keyed with the configured session secret.
func NewSessionCodec(secret string) *SessionCodec {
	return &SessionCodec{secret: []byte(secret)}
}

// Encode serializes and signs a session into cookie-safe form.
func (c *SessionCodec) Encode(s *Session) (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}

	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + c.sign(body), nil
}

// Decode verifies the signature and deserializes a session. A bad signature
// or malformed value yields an error; callers treat that as "no session".
func (c *SessionCodec) Decode(value string) (*Session, error) {
	body, sig, ok := strings.Cut(value, ".")
	if !ok {
		return nil, fmt.Errorf("malformed session value")
	}

	if !hmac.Equal([]byte(sig), []byte(c.sign(body))) {
		return nil, fmt.Errorf("session signature mismatch")
	}

	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session payload: %w", err)
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &s, nil
}

func (c *SessionCodec) sign(body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// ReadSession extracts the session from the request cookie, returning an
// empty session when absent or invalid.
func (c *SessionCodec) ReadSession(r *http.Request) *Session {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return &Session{}
	}

	s, err := c.Decode(cookie.Value)
	if err != nil {
		return &Session{}
	}

	return s
}

// WriteSession signs the session and sets it on the response.
func (c *SessionCodec) WriteSession(w http.ResponseWriter, s *Session) error {
	value, err := c.Encode(s)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// ClearSession expires the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
