package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cuipo/internal/dashboard"
)

// sessionCookie carries the working-set ID between loads and exports.
const sessionCookie = "cuipo_session"

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// sessionID returns the caller's working-set ID, or "" when the cookie is
// absent or malformed.
func sessionID(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil || !dashboard.ValidID(c.Value) {
		return ""
	}
	return c.Value
}

// ensureSession returns the caller's working-set ID, issuing a new cookie when
// needed. It returns "" when the service keeps no sessions.
func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) string {
	sessions := s.svc.Sessions()
	if sessions == nil {
		return ""
	}
	if id := sessionID(r); id != "" {
		return id
	}
	id := sessions.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
