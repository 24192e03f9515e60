//go:build darwin || freebsd || linux || windows

package nativelib

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBind_MissingSymbol(t *testing.T) {
	missing := errors.New("undefined symbol")
	_, err := bind("/opt/lib/libnativeserial.so", func(symbol string) (uintptr, error) {
		return 0, missing
	})
	require.ErrorIs(t, err, missing)
	require.ErrorContains(t, err, "nativeserial_version")
	require.ErrorContains(t, err, "/opt/lib/libnativeserial.so")
}

func TestBind_NullSymbol(t *testing.T) {
	_, err := bind("libnativeserial.so", func(symbol string) (uintptr, error) {
		return 0, nil
	})
	require.ErrorContains(t, err, "null symbol")
}
