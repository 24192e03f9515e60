package platform

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Probe supplies the evidence used to tell hard-float from soft-float ARM.
//
// The detection is a heuristic. A binary built for one ABI running under a
// loader path that names the other will be misidentified, and hosts without
// readelf fall back to soft-float.
type Probe interface {
	// LibrarySearchPath returns the dynamic loader search path.
	LibrarySearchPath() string
	// ELFAttributes returns the ARM attribute dump of the running executable.
	ELFAttributes() ([]byte, error)
}

// FloatABI resolves the ARM float ABI. It never fails: a nil probe or any
// probe error yields SoftFloat.
func FloatABI(probe Probe) ABI {
	if probe == nil {
		return SoftFloat
	}
	path := strings.ToLower(probe.LibrarySearchPath())
	if strings.Contains(path, "gnueabihf") || strings.Contains(path, "armhf") {
		return HardFloat
	}
	out, err := probe.ELFAttributes()
	if err != nil {
		return SoftFloat
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		if strings.Contains(strings.ToLower(line), "tag_abi_vfp_args") {
			return HardFloat
		}
	}
	return SoftFloat
}

const readelfTimeout = 2 * time.Second

type systemProbe struct{}

// SystemProbe inspects LD_LIBRARY_PATH and runs readelf on /proc/self/exe.
func SystemProbe() Probe { return systemProbe{} }

func (systemProbe) LibrarySearchPath() string {
	return os.Getenv("LD_LIBRARY_PATH")
}

func (systemProbe) ELFAttributes() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), readelfTimeout)
	defer cancel()
	return exec.CommandContext(ctx, "readelf", "-A", "/proc/self/exe").Output()
}
