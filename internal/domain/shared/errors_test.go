package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("wrapped sentinel matches by code", func(t *testing.T) {
		err := fmt.Errorf("load due: %w", ErrNotFound.WithCause(errors.New("record not found")))
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrAlreadyExists))
	})

	t.Run("message override keeps identity", func(t *testing.T) {
		err := ErrInvalidState.WithMessage("due already paid")
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, "due already paid", err.Error())
	})
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"scope", NewScopeError("NO_ACTIVE_SESSION", "no active session"), KindScope},
		{"validation", NewValidationError("BAD", "bad"), KindValidation},
		{"conflict wrapped", fmt.Errorf("x: %w", NewConflictError("C", "c")), KindConflict},
		{"integrity", NewIntegrityError("I", "i"), KindIntegrity},
		{"collaborator", NewCollaboratorError("N", "n"), KindCollaborator},
		{"not found", ErrNotFound, KindNotFound},
		{"plain error", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestDomainError_ErrorIncludesCause(t *testing.T) {
	err := NewCollaboratorError("MAIL_FAILED", "receipt dispatch failed").WithCause(errors.New("timeout"))
	assert.Equal(t, "receipt dispatch failed: timeout", err.Error())
	assert.Equal(t, "timeout", errors.Unwrap(err).Error())
}
