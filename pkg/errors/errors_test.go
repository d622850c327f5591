package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClonedErrorMatchesSentinel(t *testing.T) {
	err := Clone(ErrNotFound, "report not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrUnauthenticated))
	assert.Equal(t, "report not found", err.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWrappedUploadFailure(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, ErrUploadFailed.Code, ErrUploadFailed.Status, "store image")
	wrapped := fmt.Errorf("create report: %w", err)

	assert.True(t, errors.Is(wrapped, ErrUploadFailed))
	assert.True(t, errors.Is(wrapped, cause))
	assert.Equal(t, http.StatusBadGateway, FromError(wrapped).Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}
