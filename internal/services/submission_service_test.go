package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneScriptForm/internal/client"
	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
	"github.com/Corphon/SceneScriptForm/internal/models"
	"github.com/Corphon/SceneScriptForm/internal/utils"
)

// generatorFunc adapts a function to client.ScriptGenerator.
type generatorFunc func(ctx context.Context, input models.FormInput) (*models.GeneratedScript, error)

func (f generatorFunc) GenerateScript(ctx context.Context, input models.FormInput) (*models.GeneratedScript, error) {
	return f(ctx, input)
}

var astronaut = models.FormInput{Genre: "Action", Theme: "lost astronaut", VisualStyle: "Cinematic"}

func newFilledSession(t *testing.T) *FormSession {
	t.Helper()
	s := NewFormSession("test-session")
	require.NoError(t, s.SetForm(astronaut))
	return s
}

func waitForPhase(t *testing.T, s *FormSession, phase models.Phase) models.Snapshot {
	t.Helper()
	var snap models.Snapshot
	require.Eventually(t, func() bool {
		snap = s.Snapshot()
		return snap.Phase == phase
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestSubmitScenarioAgainstHTTPService(t *testing.T) {
	var (
		requests int32
		gotBody  []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, `{"title":"Action Story","scenes":[`+
			`{"scene_number":1,"description":"Opening scene in Cinematic style","dialogue":"Sample dialogue for scene 1"},`+
			`{"scene_number":2,"description":"Main scene in Cinematic style","dialogue":"Sample dialogue for scene 2"}]}`)
	}))
	defer srv.Close()

	session := newFilledSession(t)
	sub := session.Subscribe()
	svc := NewSubmissionService(client.NewScriptClient(srv.URL, nil), 0, utils.NewMetricsCollector())

	snap, err := svc.Submit(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.JSONEq(t, `{"genre":"Action","theme":"lost astronaut","visualStyle":"Cinematic"}`, string(gotBody))
	assert.Equal(t, models.PhaseSucceeded, snap.Phase)
	assert.False(t, snap.Pending())
	require.Len(t, snap.Script.Scenes, 2)

	var phases []models.Phase
	for len(sub) > 0 {
		phases = append(phases, (<-sub).Phase)
	}
	assert.Equal(t, []models.Phase{models.PhaseIdle, models.PhasePending, models.PhaseSucceeded}, phases)
}

func TestSubmitResolvesToExactlyOneOutcome(t *testing.T) {
	tests := []struct {
		name      string
		generator generatorFunc
		phase     models.Phase
		message   string
		kind      string
	}{
		{
			name: "success",
			generator: func(context.Context, models.FormInput) (*models.GeneratedScript, error) {
				return &models.GeneratedScript{Title: "T", Scenes: []models.Scene{}}, nil
			},
			phase: models.PhaseSucceeded,
		},
		{
			name: "rejected",
			generator: func(context.Context, models.FormInput) (*models.GeneratedScript, error) {
				return nil, apperrors.NewRequestRejectedError(errors.New("status 500"))
			},
			phase:   models.PhaseFailed,
			message: "Failed to generate script",
			kind:    "request_rejected",
		},
		{
			name: "transport",
			generator: func(context.Context, models.FormInput) (*models.GeneratedScript, error) {
				return nil, apperrors.NewTransportError(errors.New("dial tcp: connection refused"))
			},
			phase:   models.PhaseFailed,
			message: "dial tcp: connection refused",
			kind:    "transport_failure",
		},
		{
			name: "plain error",
			generator: func(context.Context, models.FormInput) (*models.GeneratedScript, error) {
				return nil, errors.New("network is unreachable")
			},
			phase:   models.PhaseFailed,
			message: "network is unreachable",
			kind:    "transport_failure",
		},
		{
			name: "panic",
			generator: func(context.Context, models.FormInput) (*models.GeneratedScript, error) {
				panic("decoder blew up")
			},
			phase:   models.PhaseFailed,
			message: "decoder blew up",
			kind:    "processing_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newFilledSession(t)
			svc := NewSubmissionService(tt.generator, 0, utils.NewMetricsCollector())

			snap, err := svc.Submit(context.Background(), session)
			require.NoError(t, err)

			assert.Equal(t, tt.phase, snap.Phase)
			assert.False(t, snap.Pending())
			assert.Equal(t, tt.message, snap.Error)
			assert.Equal(t, tt.kind, snap.ErrorKind)
			if tt.phase == models.PhaseSucceeded {
				assert.NotNil(t, snap.Script)
			} else {
				assert.Nil(t, snap.Script)
			}
		})
	}
}

func TestServerErrorAlwaysYieldsGenericMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"title":"looks valid","scenes":[]}`)
	}))
	defer srv.Close()

	session := newFilledSession(t)
	svc := NewSubmissionService(client.NewScriptClient(srv.URL, nil), 0, utils.NewMetricsCollector())

	snap, err := svc.Submit(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseFailed, snap.Phase)
	assert.Equal(t, "Failed to generate script", snap.Error)
}

func TestResubmitAfterFailureIssuesOneRequest(t *testing.T) {
	var calls int32
	gen := generatorFunc(func(context.Context, models.FormInput) (*models.GeneratedScript, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, apperrors.NewRequestRejectedError(nil)
		}
		return &models.GeneratedScript{Title: "second time lucky", Scenes: []models.Scene{}}, nil
	})

	session := newFilledSession(t)
	svc := NewSubmissionService(gen, 0, utils.NewMetricsCollector())

	snap, err := svc.Submit(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, models.PhaseFailed, snap.Phase)

	snap, err = svc.Submit(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, models.PhaseSucceeded, snap.Phase)
	assert.Empty(t, snap.Error, "previous error is not retained")
}

func TestConcurrentSubmitsIssueSingleRequest(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, input models.FormInput) (*models.GeneratedScript, error) {
		n := atomic.AddInt32(&calls, 1)
		<-release
		return &models.GeneratedScript{
			Title:  input.Theme,
			Scenes: []models.Scene{{SceneNumber: int(n), Description: "d", Dialogue: "x"}},
		}, nil
	})

	session := newFilledSession(t)
	svc := NewSubmissionService(gen, 0, utils.NewMetricsCollector())

	const callers = 8
	var (
		wg       sync.WaitGroup
		rejected int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), session)
			if errors.Is(err, ErrSubmissionInFlight) {
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&rejected) == callers-1
	}, 2*time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	snap := session.Snapshot()
	assert.Equal(t, models.PhaseSucceeded, snap.Phase)
	assert.Equal(t, "lost astronaut", snap.Script.Title)
	assert.Equal(t, []models.Scene{{SceneNumber: 1, Description: "d", Dialogue: "x"}}, snap.Script.Scenes)
}

func TestSubmitAsyncReturnsWhilePending(t *testing.T) {
	release := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, input models.FormInput) (*models.GeneratedScript, error) {
		<-release
		return &models.GeneratedScript{Title: "async", Scenes: []models.Scene{}}, nil
	})

	session := newFilledSession(t)
	svc := NewSubmissionService(gen, 0, utils.NewMetricsCollector())

	require.NoError(t, svc.SubmitAsync(session))
	assert.True(t, session.Snapshot().Pending())
	assert.ErrorIs(t, svc.SubmitAsync(session), ErrSubmissionInFlight)

	close(release)
	snap := waitForPhase(t, session, models.PhaseSucceeded)
	assert.Equal(t, "async", snap.Script.Title)
}

func TestSessionCloseCancelsInFlightRequest(t *testing.T) {
	cancelled := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, input models.FormInput) (*models.GeneratedScript, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, apperrors.NewTransportError(ctx.Err())
	})

	session := newFilledSession(t)
	svc := NewSubmissionService(gen, 0, utils.NewMetricsCollector())
	require.NoError(t, svc.SubmitAsync(session))

	session.Close()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("request was not cancelled by session teardown")
	}
	// the late failure is discarded; the closed session is frozen
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, session.Snapshot().Error)
}

func TestRequestTimeoutFailsAttempt(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, input models.FormInput) (*models.GeneratedScript, error) {
		<-ctx.Done()
		return nil, apperrors.NewTransportError(ctx.Err())
	})

	session := newFilledSession(t)
	svc := NewSubmissionService(gen, 20*time.Millisecond, utils.NewMetricsCollector())

	snap, err := svc.Submit(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseFailed, snap.Phase)
	assert.Equal(t, "Request timed out after 20ms", snap.Error)
	assert.Equal(t, string(apperrors.ErrorTypeTimeout), snap.ErrorKind)
}

func TestSubmitOnClosedSession(t *testing.T) {
	session := newFilledSession(t)
	session.Close()

	svc := NewSubmissionService(generatorFunc(func(context.Context, models.FormInput) (*models.GeneratedScript, error) {
		t.Fatal("generator must not be called")
		return nil, nil
	}), 0, utils.NewMetricsCollector())

	_, err := svc.Submit(context.Background(), session)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSubmitCheckedSendsNothingWhenCheckFails(t *testing.T) {
	var calls int32
	gen := generatorFunc(func(ctx context.Context, input models.FormInput) (*models.GeneratedScript, error) {
		atomic.AddInt32(&calls, 1)
		return &models.GeneratedScript{Title: "t", Scenes: []models.Scene{}}, nil
	})
	svc := NewSubmissionService(gen, 0, utils.NewMetricsCollector())
	session := newFilledSession(t)

	noTheme := func(form models.FormInput) error {
		if form.Theme == astronaut.Theme {
			return apperrors.NewValidationError("theme not allowed", nil)
		}
		return nil
	}

	snap, err := svc.SubmitChecked(context.Background(), session, noTheme)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Equal(t, models.PhaseIdle, snap.Phase)
	assert.True(t, apperrors.IsValidationError(svc.SubmitAsyncChecked(session, noTheme)))
	assert.Zero(t, atomic.LoadInt32(&calls))

	snap, err = svc.SubmitChecked(context.Background(), session, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseSucceeded, snap.Phase)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
