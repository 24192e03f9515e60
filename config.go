package serial

import (
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/luhtfiimanal/go-native-serial/driver"
)

// Environment variables consulted once per process.
const (
	EnvNoExclusive  = "SERIAL_NO_TIOCEXCL"
	EnvIgnoreParity = "SERIAL_IGNPAR"
	EnvMarkParity   = "SERIAL_PARMRK"
	EnvPortNames    = "SERIAL_PORT_NAMES"
)

// Environment is the process configuration taken from the environment.
// A boolean variable is on when it is set, whatever its value. PortNames
// holds the letter runs of SERIAL_PORT_NAMES, so "abc1d|bvc" yields
// abc, d and bvc.
type Environment struct {
	NoExclusive  bool
	IgnoreParity bool
	MarkParity   bool
	PortNames    []string
}

// Flags returns the driver flags for SetParams.
func (e Environment) Flags() int {
	var f int
	if e.IgnoreParity {
		f |= driver.FlagIgnoreParity
	}
	if e.MarkParity {
		f |= driver.FlagMarkParity
	}
	return f
}

// LoadEnvironment reads the configuration through lookup, which has the
// signature of os.LookupEnv.
func LoadEnvironment(lookup func(string) (string, bool)) Environment {
	set := func(name string) bool {
		_, ok := lookup(name)
		return ok
	}
	e := Environment{
		NoExclusive:  set(EnvNoExclusive),
		IgnoreParity: set(EnvIgnoreParity),
		MarkParity:   set(EnvMarkParity),
	}
	if v, ok := lookup(EnvPortNames); ok {
		// Only letters survive so fragments are safe inside a pattern.
		e.PortNames = strings.FieldsFunc(v, func(r rune) bool { return !unicode.IsLetter(r) })
	}
	return e
}

var env = sync.OnceValue(func() Environment {
	return LoadEnvironment(os.LookupEnv)
})

// Env returns the process environment, read on first use.
func Env() Environment { return env() }
