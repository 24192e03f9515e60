// Package serial provides serial port sessions and byte streams on top of a
// pluggable driver: the native serial library loaded at runtime by package
// nativelib, or any other driver.Driver such as the pure-Go termios driver.
//
// This package is built for long-running device links such as scientific
// instrumentation, where a reader goroutine sits blocked on the port and
// must be released promptly when the link is torn down.
//
// Features:
//   - One-time, race-free loading of the native library on first Open
//   - Port sessions with line, flow control and event-mask access
//   - Buffered io.Reader/io.Writer streams with idempotent, race-free close
//   - Line-based reading with custom delimiter (default: \r\n)
//   - Port discovery through /dev or the Windows registry
//
// Environment variables read once per process:
//
//	SERIAL_BOOT_LIBRARY_PATH  directory holding the native library
//	SERIAL_NO_TIOCEXCL        open ports without exclusive access
//	SERIAL_IGNPAR             drop bytes with parity or framing errors
//	SERIAL_PARMRK             mark bytes with parity or framing errors
//	SERIAL_PORT_NAMES         extra device name prefixes for ListPorts
//
// Example usage:
//
//	stream, err := serial.OpenStream("/dev/ttyUSB0", 115200)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Close()
//
//	// Start reading lines in a goroutine
//	go stream.Lines("\r\n").ReadLinesLoop(
//	    func(line string) {
//	        fmt.Println("Received:", line)
//	    },
//	    func(err error) {
//	        log.Println("Read error:", err)
//	    },
//	)
//
//	// Write a command
//	if err := stream.WriteLine("C,START", "\r\n"); err != nil {
//	    log.Println("Write failed:", err)
//	}
//
//	// ... to stop reading, call stream.Close() from another goroutine
package serial
