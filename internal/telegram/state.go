package telegram

import (
	"context"
	"sync"
	"time"

	"github.com/suspectuso/sticker-shop/internal/payment"
	"github.com/suspectuso/sticker-shop/internal/storefront"
)

// ChatSession is everything the bot remembers about one chat: the catalog
// from the last /start and the payment modal.
type ChatSession struct {
	Flow *payment.Flow
	View *modalView

	host *chatHost
	stop context.CancelFunc

	// guarded by SessionManager.mu
	catalog  *storefront.Catalog
	lastSeen time.Time
}

// SessionManager keeps one ChatSession per chat
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[int64]*ChatSession
	now      func() time.Time
}

// NewSessionManager creates a new session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[int64]*ChatSession),
		now:      time.Now,
	}
}

// GetOrCreate returns the chat's session, building it with create on first
// use. Either way the session counts as seen.
func (sm *SessionManager) GetOrCreate(chatID int64, create func() *ChatSession) *ChatSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[chatID]
	if !ok {
		s = create()
		sm.sessions[chatID] = s
	}
	s.lastSeen = sm.now()
	return s
}

// Get returns a chat's session, or nil, and marks it seen
func (sm *SessionManager) Get(chatID int64) *ChatSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.sessions[chatID]
	if !ok {
		return nil
	}
	s.lastSeen = sm.now()
	return s
}

// SetCatalog replaces the catalog of an existing session
func (sm *SessionManager) SetCatalog(chatID int64, c *storefront.Catalog) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[chatID]; ok {
		s.catalog = c
	}
}

// Catalog returns the chat's current catalog, or nil
func (sm *SessionManager) Catalog(chatID int64) *storefront.Catalog {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if s, ok := sm.sessions[chatID]; ok {
		return s.catalog
	}
	return nil
}

// Evict removes sessions not seen for idle and returns them so the caller
// can shut them down.
func (sm *SessionManager) Evict(idle time.Duration) []*ChatSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cutoff := sm.now().Add(-idle)
	var out []*ChatSession
	for id, s := range sm.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(sm.sessions, id)
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of live sessions
func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// close stops the modal goroutine and the flow's countdown
func (s *ChatSession) close() {
	if s.stop != nil {
		s.stop()
	}
	if s.Flow != nil {
		s.Flow.Close()
	}
}
