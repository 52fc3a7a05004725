package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsAndUnwrap(t *testing.T) {
	base := errors.New("connection refused")
	err := WrapError("datasource", "Load", ErrExternalService, "remote fetch failed", base)

	assert.ErrorIs(t, err, ErrExternalService)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "datasource.Load: remote fetch failed: connection refused", err.Error())

	assert.True(t, IsNotFound(ErrSessionNotFound))
	assert.True(t, IsValidation(ErrUnknownAction))
}

func TestFetchError(t *testing.T) {
	base := errors.New("503")
	var err error = fmt.Errorf("load: %w", &FetchError{Source: "students", Generation: 2, Err: base})

	assert.True(t, IsFetchError(err))
	assert.ErrorIs(t, err, base)
	assert.ErrorIs(t, err, ErrExternalService)
	assert.Contains(t, err.Error(), "generation 2")
}

func TestInvalidPageError(t *testing.T) {
	err := &InvalidPageError{Requested: 9, TotalPages: 3, Clamped: 3}
	assert.ErrorIs(t, err, ErrValueOutOfRange)
	assert.Equal(t, "page 9 outside [1, 3], clamped to 3", err.Error())
}
