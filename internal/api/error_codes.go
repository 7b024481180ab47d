// internal/api/error_codes.go
package api

import (
	"errors"
	"net/http"

	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
)

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 表单会话相关错误
	ErrorSessionNotFound    = "SESSION_NOT_FOUND"
	ErrorFieldInvalid       = "FIELD_INVALID"
	ErrorSubmissionInFlight = "SUBMISSION_IN_FLIGHT"
	ErrorGenerationFailed   = "GENERATION_FAILED"
	ErrorGeneratorMalformed = "GENERATOR_MALFORMED_OUTPUT"
	ErrorLLMServiceFailure  = "LLM_SERVICE_UNAVAILABLE"
)

// statusForError maps an application error onto an HTTP status and API code.
func statusForError(err error) (int, string) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, ErrorInternalError
	}

	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest, ErrorFieldInvalid
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound, ErrorSessionNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict, ErrorSubmissionInFlight
	case apperrors.ErrorTypeMalformedResponse:
		return http.StatusInternalServerError, ErrorGeneratorMalformed
	case apperrors.ErrorTypeRequestRejected, apperrors.ErrorTypeTransport:
		return http.StatusBadGateway, ErrorGenerationFailed
	case apperrors.ErrorTypeError:
		return http.StatusInternalServerError, ErrorLLMServiceFailure
	default:
		return http.StatusInternalServerError, ErrorInternalError
	}
}
