// internal/services/form_session.go
package services

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
	"github.com/Corphon/SceneScriptForm/internal/models"
)

var (
	// ErrSubmissionInFlight is returned by Start while a request is pending.
	ErrSubmissionInFlight = apperrors.NewConflictError("a submission is already in progress", nil)
	// ErrSessionClosed is returned by every transition after Close.
	ErrSessionClosed = apperrors.NewNotFoundError("form session closed", nil)
	// ErrStaleAttempt is returned when resolving an attempt that is not the
	// pending one.
	ErrStaleAttempt = apperrors.NewConflictError("attempt is no longer pending", nil)
)

const subscriberBuffer = 16

// FormSession owns one form's fields and its submission lifecycle. All
// state changes go through the named transitions below; each one is atomic
// and publishes a snapshot to subscribers.
type FormSession struct {
	ID string

	mutex     sync.Mutex
	form      models.FormInput
	phase     models.Phase
	attempt   uint64
	errMsg    string
	errKind   string
	script    *models.GeneratedScript
	updatedAt time.Time
	lastUsed  time.Time
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc

	subscribers map[chan models.Snapshot]struct{}
}

// NewFormSession creates an idle session with empty fields.
func NewFormSession(id string) *FormSession {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &FormSession{
		ID:          id,
		phase:       models.PhaseIdle,
		updatedAt:   now,
		lastUsed:    now,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[chan models.Snapshot]struct{}),
	}
}

// SetField updates exactly one field. The lifecycle phase is untouched.
func (s *FormSession) SetField(name, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	switch name {
	case models.FieldGenre:
		s.form.Genre = value
	case models.FieldTheme:
		s.form.Theme = value
	case models.FieldVisualStyle:
		s.form.VisualStyle = value
	default:
		return apperrors.NewValidationError("unknown form field: "+name, nil)
	}

	s.touchLocked()
	s.publishLocked()
	return nil
}

// SetForm replaces all three fields, as a full HTML form post does.
func (s *FormSession) SetForm(form models.FormInput) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.form = form
	s.touchLocked()
	s.publishLocked()
	return nil
}

// Form returns the current field values.
func (s *FormSession) Form() models.FormInput {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.form
}

// SetFormIfIdle is SetForm for a session that is not Pending. A pending
// session keeps the fields its request was sent with and ErrSubmissionInFlight
// is returned.
func (s *FormSession) SetFormIfIdle(form models.FormInput) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.phase == models.PhasePending {
		return ErrSubmissionInFlight
	}
	s.form = form
	s.touchLocked()
	s.publishLocked()
	return nil
}

// FormCheck vets the fields a request is about to carry.
type FormCheck func(models.FormInput) error

// Start moves the session to Pending and clears any previous error. The
// last-known script is kept. It returns the attempt number and the form
// values the request must carry.
func (s *FormSession) Start() (uint64, models.FormInput, error) {
	return s.StartIf(nil)
}

// StartIf is Start with check run on the current fields under the session
// lock; a check error leaves the session untouched.
func (s *FormSession) StartIf(check FormCheck) (uint64, models.FormInput, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return 0, models.FormInput{}, ErrSessionClosed
	}
	if s.phase == models.PhasePending {
		return 0, models.FormInput{}, ErrSubmissionInFlight
	}
	if check != nil {
		if err := check(s.form); err != nil {
			return 0, models.FormInput{}, err
		}
	}

	s.attempt++
	s.phase = models.PhasePending
	s.errMsg = ""
	s.errKind = ""
	s.touchLocked()
	s.publishLocked()
	return s.attempt, s.form, nil
}

// Succeed resolves the pending attempt with a script.
func (s *FormSession) Succeed(attempt uint64, script *models.GeneratedScript) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.resolvableLocked(attempt); err != nil {
		return err
	}

	s.phase = models.PhaseSucceeded
	s.script = script.Clone()
	s.touchLocked()
	s.publishLocked()
	return nil
}

// Fail resolves the pending attempt with a user-facing message.
func (s *FormSession) Fail(attempt uint64, kind, message string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.resolvableLocked(attempt); err != nil {
		return err
	}

	s.phase = models.PhaseFailed
	s.errMsg = message
	s.errKind = kind
	s.touchLocked()
	s.publishLocked()
	return nil
}

func (s *FormSession) resolvableLocked(attempt uint64) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.phase != models.PhasePending || attempt != s.attempt {
		return ErrStaleAttempt
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *FormSession) Snapshot() models.Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.snapshotLocked()
}

func (s *FormSession) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		SessionID: s.ID,
		Phase:     s.phase,
		Form:      s.form,
		Attempt:   s.attempt,
		Error:     s.errMsg,
		ErrorKind: s.errKind,
		Script:    s.script.Clone(),
		UpdatedAt: s.updatedAt,
	}
}

// Context is cancelled when the session is closed. Requests issued for this
// session derive from it.
func (s *FormSession) Context() context.Context {
	return s.ctx
}

// Close tears the session down: the in-flight request (if any) is
// cancelled, subscribers are released, and later transitions are rejected.
func (s *FormSession) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.cancel()

	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Closed reports whether Close has been called.
func (s *FormSession) Closed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

// Touch records activity so idle eviction skips the session.
func (s *FormSession) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastUsed = time.Now()
}

// IdleSince returns the last activity time and whether the session is
// currently watched or waiting on a request.
func (s *FormSession) IdleSince() (time.Time, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	busy := s.phase == models.PhasePending || len(s.subscribers) > 0
	return s.lastUsed, busy
}

func (s *FormSession) touchLocked() {
	now := time.Now()
	s.updatedAt = now
	s.lastUsed = now
}

// Subscribe returns a channel that receives the current snapshot
// immediately and every snapshot after each transition. The channel is
// closed by Unsubscribe or Close.
func (s *FormSession) Subscribe() chan models.Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ch := make(chan models.Snapshot, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	return ch
}

// Unsubscribe 取消订阅
func (s *FormSession) Unsubscribe(ch chan models.Snapshot) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

// publishLocked 通知所有订阅者. A slow subscriber loses its oldest pending
// snapshot rather than the newest one.
func (s *FormSession) publishLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
