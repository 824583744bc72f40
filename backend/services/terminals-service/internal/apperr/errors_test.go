package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("start: %w", Precondition("terminal %s is occupied", "1"))

	assert.True(t, errors.Is(err, Precondition("")))
	assert.False(t, errors.Is(err, Validation("")))
	assert.True(t, IsKind(err, KindPrecondition))
	assert.Equal(t, KindPrecondition, KindOf(err))
	assert.Equal(t, "start: terminal 1 is occupied", err.Error())
}

func TestEnsureWrapsForeignErrors(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := Ensure(cause)

	assert.Equal(t, KindStorage, wrapped.Kind)
	assert.True(t, wrapped.Retryable())
	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, Ensure(nil))

	nf := NotFound("terminal %s not found", "9")
	assert.Same(t, nf, Ensure(nf))
	assert.False(t, nf.Retryable())
}
