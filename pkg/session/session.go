package session

import (
	"context"
	"sync"
	"time"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/benchtrack/benchtrack/internal/utils"
	"github.com/benchtrack/benchtrack/pkg/user"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const DefaultTTL = 12 * time.Hour

type Session struct {
	Id        string
	Caller    user.Caller
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store keeps resolved callers between requests. Implementations must be safe for
// concurrent use.
type Store interface {
	Create(ctx context.Context, caller user.Caller) (Session, error)
	// Lookup fails with AccessDenied for unknown or expired sessions.
	Lookup(ctx context.Context, id string) (Session, error)
	Expire(ctx context.Context, id string) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	clock    utils.Clock
}

func NewMemoryStore(ttl time.Duration, clock utils.Clock) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		clock:    clock,
	}
}

func (s *MemoryStore) Create(ctx context.Context, caller user.Caller) (Session, error) {
	if caller.Id == 0 {
		return Session{}, apperr.Validation("session requires a user")
	}
	now := s.clock.Now()
	session := Session{
		Id:        uuid.NewString(),
		Caller:    caller,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.Id] = session
	s.mu.Unlock()

	log.Debugf("created session for user %d", caller.Id)
	return session, nil
}

func (s *MemoryStore) Lookup(ctx context.Context, id string) (Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return Session{}, apperr.AccessDenied("invalid session")
	}
	if !s.clock.Now().Before(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return Session{}, apperr.AccessDenied("session expired")
	}
	return session, nil
}

func (s *MemoryStore) Expire(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Sweep drops every session that expired before now and returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(s.clock.Now()); removed > 0 {
				log.Debugf("expired %d sessions", removed)
			}
		}
	}
}
