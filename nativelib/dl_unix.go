//go:build darwin || freebsd || linux

package nativelib

import (
	"github.com/ebitengine/purego"

	"github.com/luhtfiimanal/go-native-serial/driver"
)

type dlLinker struct{}

// Link dlopens nameOrPath. A bare file name goes through the dynamic
// loader search path.
func (dlLinker) Link(nameOrPath string) (driver.Driver, error) {
	h, err := purego.Dlopen(nameOrPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}
	lib, err := bind(nameOrPath, func(symbol string) (uintptr, error) {
		return purego.Dlsym(h, symbol)
	})
	if err != nil {
		purego.Dlclose(h)
		return nil, err
	}
	return lib, nil
}
