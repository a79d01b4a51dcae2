package errors

import (
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromErr(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "not found",
			err:      NewError("tariff missing").Mark(ErrNotFound),
			expected: http.StatusNotFound,
		},
		{
			name:     "already exists",
			err:      NewError("duplicate identifier").Mark(ErrAlreadyExists),
			expected: http.StatusConflict,
		},
		{
			name:     "version conflict",
			err:      NewError("concurrent update").Mark(ErrVersionConflict),
			expected: http.StatusConflict,
		},
		{
			name:     "validation",
			err:      NewError("end date precedes begin date").Mark(ErrValidation),
			expected: http.StatusBadRequest,
		},
		{
			name:     "invalid operation",
			err:      NewError("note already closed").Mark(ErrInvalidOperation),
			expected: http.StatusBadRequest,
		},
		{
			name:     "ambiguous match",
			err:      NewError("two tariffs at the same level").Mark(ErrAmbiguousMatch),
			expected: http.StatusConflict,
		},
		{
			name:     "overlapping interval",
			err:      NewError("interval already covered").Mark(ErrOverlappingInterval),
			expected: http.StatusConflict,
		},
		{
			name:     "system",
			err:      NewError("unexpected state").Mark(ErrSystem),
			expected: http.StatusInternalServerError,
		},
		{
			name:     "unmarked errors default to internal",
			err:      errors.New("plain error"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatusFromErr(tt.err))
		})
	}
}

func TestSentinelMatchingSurvivesWrapping(t *testing.T) {
	err := WithError(NewError("inner").Mark(ErrOverlappingInterval)).
		WithHint("an active tariff already covers this interval").
		Mark(ErrValidation)

	// A wrapped error keeps every mark on the chain.
	assert.True(t, IsOverlappingInterval(err))
	assert.True(t, IsValidation(err))
	assert.False(t, IsNotFound(err))
}
