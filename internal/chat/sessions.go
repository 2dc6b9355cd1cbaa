// internal/chat/sessions.go
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultSessionTTL = 30 * time.Minute

// ChatbotFactory builds the chatbot for a new session.
type ChatbotFactory func() (*Chatbot, error)

// Session is one conversation. Turns within a session are serialised.
type Session struct {
	ID string

	mu       sync.Mutex
	bot      *Chatbot
	lastSeen time.Time
}

// Do runs fn with exclusive access to the session's chatbot.
func (s *Session) Do(fn func(bot *Chatbot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.bot)
}

// SessionStore keeps one chatbot per session id and evicts idle ones.
type SessionStore struct {
	factory ChatbotFactory
	ttl     time.Duration
	logger  *logrus.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore(factory ChatbotFactory, ttl time.Duration, logger *logrus.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		factory:  factory,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, creating it when missing. Ids that are
// not valid UUIDs are replaced by a fresh one.
func (s *SessionStore) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		session.lastSeen = s.now()
		return session, nil
	}

	bot, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create chatbot for session: %w", err)
	}
	session := &Session{ID: id, bot: bot, lastSeen: s.now()}
	s.sessions[id] = session

	s.logger.WithField("session_id", id).Debug("Created chat session")
	return session, nil
}

// Lookup returns an existing session without creating one.
func (s *SessionStore) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if ok {
		session.lastSeen = s.now()
	}
	return session, ok
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Evict removes sessions idle for longer than the TTL and returns how
// many were removed.
func (s *SessionStore) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, session := range s.sessions {
		if session.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": len(s.sessions),
		}).Info("Evicted idle chat sessions")
	}
	return removed
}

// StartJanitor evicts idle sessions every interval until ctx is done.
func (s *SessionStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Evict()
			}
		}
	}()
}
