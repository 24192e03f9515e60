//go:build !linux

package cli

import (
	"errors"

	"github.com/luhtfiimanal/go-native-serial/driver"
)

func termiosDriver() (driver.Driver, error) {
	return nil, errors.New("the termios driver is only available on linux")
}
