// internal/services/submission_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Corphon/SceneScriptForm/internal/client"
	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
	"github.com/Corphon/SceneScriptForm/internal/models"
	"github.com/Corphon/SceneScriptForm/internal/utils"
)

// SubmissionService drives a form session through one generation request:
// Pending, then exactly one of Succeeded or Failed.
type SubmissionService struct {
	generator client.ScriptGenerator
	timeout   time.Duration
	metrics   *utils.MetricsCollector
	logger    *utils.Logger
}

// NewSubmissionService creates the controller. timeout <= 0 means requests
// are bounded only by session teardown.
func NewSubmissionService(generator client.ScriptGenerator, timeout time.Duration, metrics *utils.MetricsCollector) *SubmissionService {
	return &SubmissionService{
		generator: generator,
		timeout:   timeout,
		metrics:   metrics,
		logger:    utils.GetLogger(),
	}
}

// Submit runs a full attempt and blocks until it resolves. ctx bounds the
// wait in addition to the session's own lifetime. The returned error is
// non-nil only when the attempt could not start (ErrSubmissionInFlight,
// ErrSessionClosed); request failures land in the snapshot.
func (s *SubmissionService) Submit(ctx context.Context, session *FormSession) (models.Snapshot, error) {
	return s.SubmitChecked(ctx, session, nil)
}

// SubmitChecked is Submit with check applied to the fields at the moment the
// attempt starts. A failed check is returned and nothing is sent.
func (s *SubmissionService) SubmitChecked(ctx context.Context, session *FormSession, check FormCheck) (models.Snapshot, error) {
	attempt, form, err := s.start(session, check)
	if err != nil {
		return session.Snapshot(), err
	}
	s.run(ctx, session, attempt, form)
	return session.Snapshot(), nil
}

// SubmitAsync moves the session to Pending and performs the request in the
// background. It returns once the Pending transition is visible.
func (s *SubmissionService) SubmitAsync(session *FormSession) error {
	return s.SubmitAsyncChecked(session, nil)
}

// SubmitAsyncChecked is SubmitAsync with a start-time check, as in SubmitChecked.
func (s *SubmissionService) SubmitAsyncChecked(session *FormSession, check FormCheck) error {
	attempt, form, err := s.start(session, check)
	if err != nil {
		return err
	}
	go s.run(context.Background(), session, attempt, form)
	return nil
}

func (s *SubmissionService) start(session *FormSession, check FormCheck) (uint64, models.FormInput, error) {
	attempt, form, err := session.StartIf(check)
	if err != nil {
		if errors.Is(err, ErrSubmissionInFlight) {
			s.metrics.SubmissionRejected()
			s.logger.Warn("submission rejected: request already in flight", map[string]interface{}{
				"session_id": session.ID,
			})
		}
		return 0, models.FormInput{}, err
	}

	s.logger.Info("submission started", map[string]interface{}{
		"session_id":   session.ID,
		"attempt":      attempt,
		"genre":        form.Genre,
		"visual_style": form.VisualStyle,
	})
	return attempt, form, nil
}

func (s *SubmissionService) run(ctx context.Context, session *FormSession, attempt uint64, form models.FormInput) {
	started := time.Now()
	s.metrics.SubmissionStarted()

	outcome, kind := utils.OutcomeFailed, ""

	// Whatever happens below, the attempt must not stay Pending.
	defer func() {
		if r := recover(); r != nil {
			kind = string(apperrors.ErrorTypeError)
			s.logger.Error("submission panicked", map[string]interface{}{
				"session_id": session.ID,
				"attempt":    attempt,
				"panic":      fmt.Sprint(r),
			})
			session.Fail(attempt, kind, fmt.Sprint(r))
		}
		if session.Snapshot().Phase == models.PhasePending {
			session.Fail(attempt, string(apperrors.ErrorTypeError), "Failed to generate script")
		}
		s.metrics.SubmissionFinished(outcome, kind, time.Since(started))
	}()

	reqCtx, cancel := mergeContexts(ctx, session.Context())
	defer cancel()
	if s.timeout > 0 {
		var cancelTimeout context.CancelFunc
		reqCtx, cancelTimeout = context.WithTimeout(reqCtx, s.timeout)
		defer cancelTimeout()
	}

	script, err := s.generator.GenerateScript(reqCtx, form)
	if err != nil && s.timeout > 0 && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		err = apperrors.NewTimeoutError(s.timeout, err)
	}
	if err != nil {
		kind = errorKind(err)
		message := apperrors.UserMessage(err)
		if resolveErr := session.Fail(attempt, kind, message); resolveErr != nil {
			outcome = utils.OutcomeCancelled
			s.logDropped(session, attempt, resolveErr)
			return
		}
		s.logger.Warn("submission failed", map[string]interface{}{
			"session_id": session.ID,
			"attempt":    attempt,
			"kind":       kind,
			"error":      err.Error(),
			"elapsed_ms": time.Since(started).Milliseconds(),
		})
		return
	}

	if resolveErr := session.Succeed(attempt, script); resolveErr != nil {
		outcome = utils.OutcomeCancelled
		s.logDropped(session, attempt, resolveErr)
		return
	}
	outcome = utils.OutcomeSucceeded
	s.logger.Info("submission succeeded", map[string]interface{}{
		"session_id": session.ID,
		"attempt":    attempt,
		"title":      script.Title,
		"scenes":     len(script.Scenes),
		"elapsed_ms": time.Since(started).Milliseconds(),
	})
}

func (s *SubmissionService) logDropped(session *FormSession, attempt uint64, err error) {
	s.logger.Info("submission result dropped", map[string]interface{}{
		"session_id": session.ID,
		"attempt":    attempt,
		"reason":     err.Error(),
	})
}

func errorKind(err error) string {
	var appError *apperrors.AppError
	if errors.As(err, &appError) {
		return string(appError.Type)
	}
	return string(apperrors.ErrorTypeTransport)
}

// mergeContexts returns a context cancelled when either parent is done.
func mergeContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
