package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/chunkwise/internal/document"
)

var ErrTooManySessions = errors.New("session limit reached")

// Session is one loaded document and its working state. All access to the
// document goes through Do, which serializes callers.
type Session struct {
	mu  sync.Mutex
	doc *document.Context

	ID          string    `json:"session_id"`
	Title       string    `json:"title"`
	Filename    string    `json:"filename,omitempty"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`

	lastUsed atomic.Int64
	queries  atomic.Int64
}

// Do runs fn with exclusive access to the session's document.
func (s *Session) Do(fn func(doc *document.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return fn(s.doc)
}

// CountQuery records that a query batch ran against the session.
func (s *Session) CountQuery() {
	s.queries.Add(1)
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// SessionSnapshot is a read-only, JSON-safe copy of session state.
type SessionSnapshot struct {
	ID          string                `json:"session_id"`
	Title       string                `json:"title"`
	Filename    string                `json:"filename,omitempty"`
	ContentHash string                `json:"content_hash"`
	CreatedAt   time.Time             `json:"created_at"`
	LastUsed    time.Time             `json:"last_used"`
	Queries     int64                 `json:"queries"`
	Metadata    document.Metadata     `json:"metadata"`
	State       document.StateSummary `json:"state"`
}

func (s *Session) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		ID:          s.ID,
		Title:       s.Title,
		Filename:    s.Filename,
		ContentHash: s.ContentHash,
		CreatedAt:   s.CreatedAt,
		Queries:     s.queries.Load(),
	}
	s.Do(func(doc *document.Context) error {
		snap.Metadata = doc.Metadata()
		snap.State = doc.StateSummary()
		return nil
	})
	snap.LastUsed = s.LastUsed()
	return snap
}

// SessionStore is a thread-safe in-memory session registry with idle TTL
// eviction.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	max      int
}

// NewSessionStore creates a store. A max of zero means no limit.
func NewSessionStore(ttl time.Duration, max int) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		max:      max,
	}
}

// Create registers a new session around text. Expired sessions are evicted
// first when the store is full.
func (s *SessionStore) Create(title, filename, text string) (*Session, error) {
	sess := &Session{
		doc:         document.New(text),
		ID:          newSessionID(),
		Title:       title,
		Filename:    filename,
		ContentHash: ContentHashHex([]byte(text)),
		CreatedAt:   time.Now(),
	}
	sess.touch()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max > 0 && len(s.sessions) >= s.max {
		s.cleanupLocked(time.Now())
		if len(s.sessions) >= s.max {
			return nil, fmt.Errorf("%w (%d)", ErrTooManySessions, s.max)
		}
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *SessionStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked(time.Now())
}

func (s *SessionStore) cleanupLocked(now time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastUsed()) > s.ttl {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Run evicts expired sessions every interval until ctx is done.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				log.Info("evicted idle sessions", "count", n, "remaining", s.Len())
			}
		}
	}
}

// newSessionID returns a time-ordered UUIDv7 so session listings sort by
// creation.
func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
