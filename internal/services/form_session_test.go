package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
	"github.com/Corphon/SceneScriptForm/internal/models"
)

func TestSetFieldUpdatesOneField(t *testing.T) {
	s := NewFormSession("s1")

	require.NoError(t, s.SetField(models.FieldGenre, "Horror"))
	require.NoError(t, s.SetField(models.FieldTheme, "haunted lighthouse"))
	require.NoError(t, s.SetField(models.FieldVisualStyle, "Vintage"))
	require.NoError(t, s.SetField(models.FieldTheme, "abandoned lighthouse"))

	assert.Equal(t, models.FormInput{Genre: "Horror", Theme: "abandoned lighthouse", VisualStyle: "Vintage"}, s.Form())
	assert.Equal(t, models.PhaseIdle, s.Snapshot().Phase, "field edits never change the phase")

	err := s.SetField("mood", "dark")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestLifecycleSuccessPath(t *testing.T) {
	s := NewFormSession("s1")
	require.NoError(t, s.SetForm(models.FormInput{Genre: "Drama", Theme: "t", VisualStyle: "Artistic"}))

	attempt, form, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), attempt)
	assert.Equal(t, "Drama", form.Genre)
	assert.True(t, s.Snapshot().Pending())

	script := &models.GeneratedScript{Title: "T", Scenes: []models.Scene{{SceneNumber: 1}}}
	require.NoError(t, s.Succeed(attempt, script))

	snap := s.Snapshot()
	assert.Equal(t, models.PhaseSucceeded, snap.Phase)
	assert.Empty(t, snap.Error)
	assert.Equal(t, script, snap.Script)

	script.Title = "mutated after resolve"
	assert.Equal(t, "T", s.Snapshot().Script.Title, "session keeps its own copy")
}

func TestLifecycleFailureThenRetry(t *testing.T) {
	s := NewFormSession("s1")

	first, _, err := s.Start()
	require.NoError(t, err)
	require.NoError(t, s.Fail(first, "request_rejected", "Failed to generate script"))

	snap := s.Snapshot()
	assert.Equal(t, models.PhaseFailed, snap.Phase)
	assert.Equal(t, "Failed to generate script", snap.Error)
	assert.Nil(t, snap.Script)

	second, _, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
	assert.Empty(t, s.Snapshot().Error, "resubmitting clears the previous error")

	require.NoError(t, s.Succeed(second, &models.GeneratedScript{Title: "ok", Scenes: []models.Scene{}}))
	snap = s.Snapshot()
	assert.Equal(t, models.PhaseSucceeded, snap.Phase)
	assert.Empty(t, snap.Error)
}

func TestLastScriptSurvivesLaterFailure(t *testing.T) {
	s := NewFormSession("s1")

	a1, _, _ := s.Start()
	require.NoError(t, s.Succeed(a1, &models.GeneratedScript{Title: "kept", Scenes: []models.Scene{}}))

	a2, _, _ := s.Start()
	assert.Equal(t, "kept", s.Snapshot().Script.Title, "pending keeps the prior result")

	require.NoError(t, s.Fail(a2, "transport_failure", "connection refused"))
	snap := s.Snapshot()
	assert.Equal(t, models.PhaseFailed, snap.Phase)
	assert.Equal(t, "kept", snap.Script.Title)
}

func TestStartRejectsWhilePending(t *testing.T) {
	s := NewFormSession("s1")

	attempt, _, err := s.Start()
	require.NoError(t, err)

	_, _, err = s.Start()
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.True(t, apperrors.IsConflictError(err))
	assert.Equal(t, attempt, s.Snapshot().Attempt, "rejected start does not advance the attempt")
}

func TestResolveRequiresCurrentPendingAttempt(t *testing.T) {
	s := NewFormSession("s1")

	assert.ErrorIs(t, s.Succeed(1, &models.GeneratedScript{}), ErrStaleAttempt, "nothing pending")

	attempt, _, _ := s.Start()
	assert.ErrorIs(t, s.Fail(attempt+1, "x", "y"), ErrStaleAttempt)

	require.NoError(t, s.Fail(attempt, "x", "y"))
	assert.ErrorIs(t, s.Succeed(attempt, &models.GeneratedScript{}), ErrStaleAttempt, "already resolved")
	assert.Equal(t, models.PhaseFailed, s.Snapshot().Phase)
}

func TestCloseCancelsAndFreezes(t *testing.T) {
	s := NewFormSession("s1")
	sub := s.Subscribe()
	<-sub

	attempt, _, err := s.Start()
	require.NoError(t, err)

	s.Close()
	s.Close()

	select {
	case <-s.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled on close")
	}

	assert.ErrorIs(t, s.Succeed(attempt, &models.GeneratedScript{}), ErrSessionClosed)
	assert.ErrorIs(t, s.SetField(models.FieldTheme, "x"), ErrSessionClosed)
	_, _, err = s.Start()
	assert.ErrorIs(t, err, ErrSessionClosed)

	// drain the pending snapshot, then the channel must be closed
	for range sub {
	}
	assert.True(t, s.Closed())
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	s := NewFormSession("s1")
	sub := s.Subscribe()

	initial := <-sub
	assert.Equal(t, models.PhaseIdle, initial.Phase)

	attempt, _, _ := s.Start()
	require.NoError(t, s.Succeed(attempt, &models.GeneratedScript{Title: "T", Scenes: []models.Scene{}}))

	assert.Equal(t, models.PhasePending, (<-sub).Phase)
	assert.Equal(t, models.PhaseSucceeded, (<-sub).Phase)

	s.Unsubscribe(sub)
	_, open := <-sub
	assert.False(t, open)
	s.Unsubscribe(sub)
}

func TestSlowSubscriberKeepsNewestSnapshot(t *testing.T) {
	s := NewFormSession("s1")
	sub := s.Subscribe()

	for i := 0; i < subscriberBuffer*3; i++ {
		require.NoError(t, s.SetField(models.FieldTheme, "theme"))
	}
	attempt, _, _ := s.Start()
	require.NoError(t, s.Fail(attempt, "k", "last"))

	var last models.Snapshot
	for len(sub) > 0 {
		last = <-sub
	}
	assert.Equal(t, models.PhaseFailed, last.Phase)
	assert.Equal(t, "last", last.Error)
}

func TestConcurrentTransitionsNeverMix(t *testing.T) {
	s := NewFormSession("s1")
	attempt, _, err := s.Start()
	require.NoError(t, err)

	a := &models.GeneratedScript{Title: "A", Scenes: []models.Scene{{SceneNumber: 1, Description: "a"}}}
	b := &models.GeneratedScript{Title: "B", Scenes: []models.Scene{{SceneNumber: 2, Description: "b"}}}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, script := range []*models.GeneratedScript{a, b} {
		wg.Add(1)
		go func(script *models.GeneratedScript) {
			defer wg.Done()
			results <- s.Succeed(attempt, script)
		}(script)
	}
	wg.Wait()
	close(results)

	var accepted int
	for err := range results {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, ErrStaleAttempt)
		}
	}
	assert.Equal(t, 1, accepted, "exactly one resolution wins")

	snap := s.Snapshot()
	switch snap.Script.Title {
	case "A":
		assert.Equal(t, a.Scenes, snap.Script.Scenes)
	case "B":
		assert.Equal(t, b.Scenes, snap.Script.Scenes)
	default:
		t.Fatalf("unexpected title %q", snap.Script.Title)
	}
}

func TestSetFormIfIdleKeepsPendingFields(t *testing.T) {
	s := NewFormSession("s1")
	require.NoError(t, s.SetFormIfIdle(models.FormInput{Genre: "Drama", Theme: "t", VisualStyle: "Artistic"}))

	_, sent, err := s.Start()
	require.NoError(t, err)

	err = s.SetFormIfIdle(models.FormInput{Genre: "Horror", Theme: "other", VisualStyle: "Vintage"})
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, sent, s.Form(), "fields of a pending request are frozen")

	s.Close()
	assert.ErrorIs(t, s.SetFormIfIdle(sent), ErrSessionClosed)
}

func TestStartIfChecksFieldsItSends(t *testing.T) {
	s := NewFormSession("s1")
	require.NoError(t, s.SetForm(models.FormInput{Genre: "Drama"}))

	var checked models.FormInput
	refuse := errors.New("incomplete")
	_, _, err := s.StartIf(func(form models.FormInput) error {
		checked = form
		return refuse
	})
	assert.ErrorIs(t, err, refuse)
	assert.Equal(t, "Drama", checked.Genre)

	snap := s.Snapshot()
	assert.Equal(t, models.PhaseIdle, snap.Phase, "failed check leaves the session idle")
	assert.Zero(t, snap.Attempt)

	attempt, _, err := s.StartIf(func(models.FormInput) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(1), attempt)
}
