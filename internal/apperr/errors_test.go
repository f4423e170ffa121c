// internal/apperr/errors_test.go
package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsMatchByCode(t *testing.T) {
	err := New(CodeInsufficientInventory, "only 2 tickets left")

	assert.True(t, errors.Is(err, ErrInsufficientInventory))
	assert.False(t, errors.Is(err, ErrReleaseExceedsReserved))

	wrapped := fmt.Errorf("reserve: %w", err)
	assert.True(t, errors.Is(wrapped, ErrInsufficientInventory))
	assert.Equal(t, CodeInsufficientInventory, CodeOf(wrapped))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("save payment", cause)

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "failed to save payment: connection reset", err.Error())
}

func TestReleaseCodeIsStable(t *testing.T) {
	assert.Equal(t, Code(7200), ErrReleaseExceedsReserved.Code)
}
