// internal/services/session_store.go
package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
	"github.com/Corphon/SceneScriptForm/internal/utils"
)

// SessionStore holds live form sessions in memory. Nothing is persisted; a
// session evicted or removed is gone.
type SessionStore struct {
	sessions map[string]*FormSession
	mutex    sync.RWMutex
	ttl      time.Duration
	metrics  *utils.MetricsCollector
	logger   *utils.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewSessionStore creates a store that evicts sessions idle longer than ttl.
func NewSessionStore(ttl time.Duration, metrics *utils.MetricsCollector) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*FormSession),
		ttl:      ttl,
		metrics:  metrics,
		logger:   utils.GetLogger(),
		stop:     make(chan struct{}),
	}
}

// Create registers a new idle session with a fresh id.
func (st *SessionStore) Create() *FormSession {
	session := NewFormSession(uuid.NewString())

	st.mutex.Lock()
	st.sessions[session.ID] = session
	count := len(st.sessions)
	st.mutex.Unlock()

	st.metrics.SetSessions(count)
	st.logger.Debug("form session created", map[string]interface{}{"session_id": session.ID})
	return session
}

// Get returns the session and records activity on it.
func (st *SessionStore) Get(id string) (*FormSession, error) {
	st.mutex.RLock()
	session, exists := st.sessions[id]
	st.mutex.RUnlock()

	if !exists {
		return nil, apperrors.NewNotFoundError("form session not found", nil)
	}
	session.Touch()
	return session, nil
}

// Remove closes and forgets the session. Removing an unknown id is a no-op.
func (st *SessionStore) Remove(id string) {
	st.mutex.Lock()
	session, exists := st.sessions[id]
	delete(st.sessions, id)
	count := len(st.sessions)
	st.mutex.Unlock()

	if exists {
		session.Close()
		st.metrics.SetSessions(count)
		st.logger.Debug("form session removed", map[string]interface{}{"session_id": id})
	}
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return len(st.sessions)
}

// Cleanup evicts sessions idle past the TTL that have neither a pending
// request nor a subscriber. It returns how many were evicted.
func (st *SessionStore) Cleanup(now time.Time) int {
	var expired []*FormSession

	st.mutex.Lock()
	for id, session := range st.sessions {
		lastUsed, busy := session.IdleSince()
		if busy || now.Sub(lastUsed) <= st.ttl {
			continue
		}
		delete(st.sessions, id)
		expired = append(expired, session)
	}
	count := len(st.sessions)
	st.mutex.Unlock()

	for _, session := range expired {
		session.Close()
	}
	if len(expired) > 0 {
		st.metrics.SetSessions(count)
		st.logger.Info("evicted idle form sessions", map[string]interface{}{"count": len(expired)})
	}
	return len(expired)
}

// StartCleanup runs Cleanup periodically until Shutdown.
func (st *SessionStore) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				st.Cleanup(now)
			case <-st.stop:
				return
			}
		}
	}()
}

// Shutdown stops the cleanup loop and closes every session.
func (st *SessionStore) Shutdown() {
	st.stopOnce.Do(func() { close(st.stop) })

	st.mutex.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*FormSession)
	st.mutex.Unlock()

	for _, session := range sessions {
		session.Close()
	}
	st.metrics.SetSessions(0)
}
