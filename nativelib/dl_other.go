//go:build !darwin && !freebsd && !linux && !windows

package nativelib

import (
	"errors"
	"runtime"

	"github.com/luhtfiimanal/go-native-serial/driver"
)

type dlLinker struct{}

func (dlLinker) Link(string) (driver.Driver, error) {
	return nil, errors.New("dynamic loading is not supported on " + runtime.GOOS)
}
