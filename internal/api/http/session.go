package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionCookieName identifies the browser session carrying the
// per-session model hint.
const sessionCookieName = "lingoflow_session"

// sessionTTL bounds how long an idle session's hint is kept.
const sessionTTL = 7 * 24 * time.Hour

type sessionEntry struct {
	selectedModelID string
	lastSeen        time.Time
}

// sessionStore keeps the per-session selected model id. The hint is a
// client preference only; it never loads or switches a model by itself.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*sessionEntry)}
}

// sessionID returns the request's session id, minting one (and setting the
// cookie) when absent.
func (s *sessionStore) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return id
}

// SelectedModel returns the session's model hint, or "".
func (s *sessionStore) SelectedModel(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[c.Value]
	if !ok {
		return ""
	}
	entry.lastSeen = time.Now()
	return entry.selectedModelID
}

// SetSelectedModel stores the hint for the request's session, creating the
// session if needed.
func (s *sessionStore) SetSelectedModel(w http.ResponseWriter, r *http.Request, modelID string) {
	id := s.sessionID(w, r)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &sessionEntry{selectedModelID: modelID, lastSeen: time.Now()}
	s.evictLocked()
}

func (s *sessionStore) evictLocked() {
	cutoff := time.Now().Add(-sessionTTL)
	for id, entry := range s.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
