package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCodeThroughWrapping(t *testing.T) {
	base := WithMetadata(CodeConflict, "active session exists", map[string]string{"session_id": "gs_1"})
	wrapped := fmt.Errorf("create session: %w", base)

	assert.Equal(t, CodeConflict, GetCode(wrapped))
	assert.True(t, IsCode(wrapped, CodeConflict))
	assert.Equal(t, "gs_1", GetMetadata(wrapped)["session_id"])
	assert.True(t, errors.Is(wrapped, New(CodeConflict, "")))
	assert.False(t, errors.Is(wrapped, New(CodeNotFound, "")))
}

func TestGetCodeUnknownForPlainErrors(t *testing.T) {
	assert.Equal(t, CodeUnknown, GetCode(errors.New("boom")))
	assert.Nil(t, GetMetadata(errors.New("boom")))
}

func TestStorageUnwrapsCause(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := Storage("persist round", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "persist round: disk I/O error", err.Error())
	assert.True(t, err.Code.Retryable())
	assert.False(t, CodeConflict.Retryable())
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:   http.StatusBadRequest,
		CodeForbidden:    http.StatusForbidden,
		CodeNotFound:     http.StatusNotFound,
		CodeConflict:     http.StatusConflict,
		CodeInvalidState: http.StatusConflict,
		CodeExhausted:    http.StatusConflict,
		CodeAlreadyUsed:  http.StatusConflict,
		CodeExpired:      http.StatusGone,
		CodeStorage:      http.StatusServiceUnavailable,
		CodeUnknown:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), string(code))
	}
}
