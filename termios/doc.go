// Package termios is a pure-Go driver.Driver for Linux tty devices.
//
// Ports are put into raw mode through termios ioctls. Blocking reads and
// event waits poll the device together with a self-pipe, so ClosePort from
// another goroutine releases them immediately. The package is empty on
// other systems.
package termios
