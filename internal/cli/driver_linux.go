//go:build linux

package cli

import (
	"github.com/luhtfiimanal/go-native-serial/driver"
	"github.com/luhtfiimanal/go-native-serial/termios"
)

func termiosDriver() (driver.Driver, error) {
	return termios.New(), nil
}
