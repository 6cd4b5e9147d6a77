package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecover_WithPanic tests the Recover function when a panic occurs
func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "Decision Tree.Fit")
		panic("index out of range")
	}

	err := testFunc()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, As(err, &panicErr))
	assert.Equal(t, "Decision Tree.Fit", panicErr.Operation)
	assert.Equal(t, "index out of range", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in Decision Tree.Fit: index out of range", panicErr.Error())
}

// TestRecover_WithoutPanic tests the Recover function when no panic occurs
func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "Fit")
		return nil
	}
	assert.NoError(t, testFunc())
}

func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("original error")
	testFunc := func() (err error) {
		defer Recover(&err, "Fit")
		err = original
		panic("panic after error")
	}

	err := testFunc()
	require.Error(t, err)
	var panicErr *PanicError
	assert.True(t, As(err, &panicErr))
	assert.Contains(t, err.Error(), "panic in Fit")
}

func TestSafeExecute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, SafeExecute("op", func() error { return nil }))
	})

	t.Run("function error", func(t *testing.T) {
		want := fmt.Errorf("fit failed")
		assert.Equal(t, want, SafeExecute("op", func() error { return want }))
	})

	t.Run("panic with error value", func(t *testing.T) {
		cause := fmt.Errorf("singular")
		err := SafeExecute("op", func() error { panic(cause) })
		require.Error(t, err)
		assert.True(t, Is(err, cause), "panic value that is an error stays in the chain")
	})
}
