package dto

import (
	"errors"
	"net/http"

	"github.com/feeledger/backend/internal/domain/shared"
)

// Transport-level error codes. Domain errors keep their own codes
// (ALREADY_SETTLED, NO_ACTIVE_SESSION, ...) and are passed through.
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeInvalidJSON  = "INVALID_JSON"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeTooLarge     = "REQUEST_TOO_LARGE"
)

// kindStatus maps each error kind to its HTTP status
var kindStatus = map[shared.ErrorKind]int{
	shared.KindScope:        http.StatusForbidden,
	shared.KindValidation:   http.StatusBadRequest,
	shared.KindConflict:     http.StatusConflict,
	shared.KindIntegrity:    http.StatusUnprocessableEntity,
	shared.KindCollaborator: http.StatusBadGateway,
	shared.KindNotFound:     http.StatusNotFound,
	shared.KindInternal:     http.StatusInternalServerError,
}

// codeStatus overrides the kind mapping for individual codes
var codeStatus = map[string]int{
	// nothing to serve until a session is activated
	"NO_ACTIVE_SESSION": http.StatusConflict,
	"UNAUTHORIZED":      http.StatusUnauthorized,
	"FORBIDDEN":         http.StatusForbidden,
}

// StatusForKind returns the HTTP status of an error kind, 500 when unknown
func StatusForKind(kind shared.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromError converts err into an HTTP status and an error body. Errors
// outside the domain taxonomy become an opaque 500.
func FromError(err error) (int, *ErrorInfo) {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, &ErrorInfo{
			Code:    ErrCodeInternal,
			Kind:    string(shared.KindInternal),
			Message: "An unexpected error occurred",
		}
	}
	kind := de.Kind
	if kind == "" {
		kind = shared.KindInternal
	}
	status, ok := codeStatus[de.Code]
	if !ok {
		status = StatusForKind(kind)
	}
	message := de.Message
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred"
	}
	return status, &ErrorInfo{Code: de.Code, Kind: string(kind), Message: message}
}
