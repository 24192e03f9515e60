package driver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleError(t *testing.T) {
	require.NoError(t, HandleError(0))
	require.NoError(t, HandleError(42))

	for _, err := range []error{ErrPortBusy, ErrPortNotFound, ErrPermissionDenied, ErrIncorrectPort} {
		h := ErrorCode(err)
		require.Negative(t, int64(h))
		require.ErrorIs(t, HandleError(h), err)
	}

	require.Equal(t, InvalidHandle, ErrorCode(ErrPortBusy))
	require.ErrorIs(t, HandleError(-99), ErrIncorrectPort)
	require.Equal(t, ErrorCode(ErrIncorrectPort), ErrorCode(errors.New("anything else")))
}
