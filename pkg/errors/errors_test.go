package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrInvalidTransition, "degree is not in draft")
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.False(t, errors.Is(err, ErrConflict))

	wrapped := fmt.Errorf("submit: %w", err)
	assert.True(t, errors.Is(wrapped, ErrInvalidTransition))
}

func TestWithDetailsDoesNotMutateSentinel(t *testing.T) {
	err := WithDetails(ErrValidation, "course quota not met", map[string]interface{}{"required": 5, "selected": 4})
	require.NotNil(t, err)
	assert.Equal(t, 5, err.Details["required"])
	assert.Nil(t, ErrValidation.Details)
}

func TestFromErrorHidesInternalCause(t *testing.T) {
	appErr := FromError(errors.New("pq: connection refused"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)

	payload, err := json.Marshal(appErr)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "connection refused")
}
