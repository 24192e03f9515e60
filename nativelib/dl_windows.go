//go:build windows

package nativelib

import (
	"golang.org/x/sys/windows"

	"github.com/luhtfiimanal/go-native-serial/driver"
)

type dlLinker struct{}

// Link loads nameOrPath with LoadLibrary. A bare file name goes through
// the DLL search order.
func (dlLinker) Link(nameOrPath string) (driver.Driver, error) {
	dll, err := windows.LoadDLL(nameOrPath)
	if err != nil {
		return nil, err
	}
	lib, err := bind(nameOrPath, func(symbol string) (uintptr, error) {
		proc, err := dll.FindProc(symbol)
		if err != nil {
			return 0, err
		}
		return proc.Addr(), nil
	})
	if err != nil {
		dll.Release()
		return nil, err
	}
	return lib, nil
}
