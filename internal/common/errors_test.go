package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorDefinitions(t *testing.T) {
	t.Parallel()

	errs := []error{
		ErrIO,
		ErrClosed,
		ErrInvalidFrame,
		ErrUnsupportedFormat,
		ErrInvalidDimensions,
		ErrNoSources,
		ErrSinkBusy,
	}

	t.Run("all errors are non-nil", func(t *testing.T) {
		t.Parallel()
		for i, err := range errs {
			require.NotNil(t, err, "error at index %d should not be nil", i)
		}
	})

	t.Run("all error messages are unique", func(t *testing.T) {
		t.Parallel()
		seen := make(map[string]bool)
		for _, err := range errs {
			msg := err.Error()
			assert.False(t, seen[msg], "duplicate error message: %s", msg)
			seen[msg] = true
		}
	})
}

func TestErrorIs(t *testing.T) {
	t.Parallel()

	t.Run("wrapped with %w matches", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("read frame from %q: %w", "a.raw", ErrIO)
		assert.ErrorIs(t, err, ErrIO)
		assert.False(t, errors.Is(err, ErrClosed))
	})

	t.Run("string copy does not match", func(t *testing.T) {
		t.Parallel()
		err := errors.New("wrapped: " + ErrIO.Error())
		assert.False(t, errors.Is(err, ErrIO))
	})
}
