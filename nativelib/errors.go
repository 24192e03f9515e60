package nativelib

import (
	"errors"
	"fmt"
	"strings"
)

// ErrLibraryNotFound is returned when a strategy finds no binary to load.
var ErrLibraryNotFound = errors.New("native library not found")

// Attempt records why one load strategy failed.
type Attempt struct {
	Strategy string
	Err      error
}

// LinkError reports that no strategy could load the native library.
// The native subsystem is unusable for the rest of the process.
type LinkError struct {
	Name     string
	Attempts []Attempt
}

func (e *LinkError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "could not load the %s library", e.Name)
	for i, a := range e.Attempts {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", a.Strategy, a.Err)
	}
	return b.String()
}

// Unwrap exposes every attempt's cause to errors.Is and errors.As.
func (e *LinkError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
