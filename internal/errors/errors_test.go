package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode_ThroughWrapping(t *testing.T) {
	base := NewRecognitionError("job-1", "tesseract", errors.New("engine offline"))
	wrapped := fmt.Errorf("pipeline: %w", base)

	assert.True(t, HasCode(wrapped, ErrorRecognitionFailed))
	assert.False(t, HasCode(wrapped, ErrorInputValidation))
	assert.Equal(t, ErrorRecognitionFailed, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestProcessingError_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageFailedError("job-2", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "STORAGE_FAILED")
	assert.Contains(t, err.Error(), "disk full")
}

func TestInputValidationError_HasNoCause(t *testing.T) {
	err := NewInputValidationError("", "no document provided")

	assert.Nil(t, err.Unwrap())
	assert.Equal(t, "INPUT_VALIDATION: no document provided", err.Error())
}

func TestToMap(t *testing.T) {
	err := NewProcessingTimeoutError("job-3", 2*time.Second, errors.New("deadline"))
	m := err.ToMap()

	require.Equal(t, "PROCESSING_TIMEOUT", m["error_code"])
	assert.Equal(t, "2s", m["timeout_duration"])
	assert.Equal(t, "deadline", m["cause"])
}
