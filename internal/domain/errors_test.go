package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError(ErrCodeNotFound, "course not found")
	assert.Equal(t, "[NOT_FOUND] course not found", err.Error())

	cause := errors.New("connection reset")
	wrapped := NewDomainErrorWithCause(ErrCodeInternalError, "storage operation failed", cause)
	assert.Equal(t, "[INTERNAL_ERROR] storage operation failed: connection reset", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("ingest: %w", ErrInvalidChunkConfig)
	assert.Equal(t, ErrCodeConfiguration, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}
