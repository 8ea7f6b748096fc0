// Package viewer opens rendered reports in the host's default viewer.
package viewer

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Opener opens a file for the user. Every implementation may fail; callers
// treat failure as non-fatal.
type Opener interface {
	Open(path string) error
}

// CommandOpener launches an external program with the path appended.
type CommandOpener struct {
	Name string
	Args []string
}

func (c CommandOpener) Open(path string) error {
	args := append(append([]string(nil), c.Args...), path)
	cmd := exec.Command(c.Name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %s: %s: %w", c.Name, path, out, err)
	}
	return nil
}

// Unsupported is the opener for platforms with no known default viewer.
type Unsupported struct {
	GOOS string
}

func (u Unsupported) Open(path string) error {
	return fmt.Errorf("no default viewer for platform %q", u.GOOS)
}

// Nop never opens anything.
type Nop struct{}

func (Nop) Open(string) error { return nil }

// ForPlatform picks the opener for goos.
func ForPlatform(goos string) Opener {
	switch goos {
	case "darwin":
		return CommandOpener{Name: "open"}
	case "linux", "freebsd", "openbsd", "netbsd":
		return CommandOpener{Name: "xdg-open"}
	case "windows":
		return CommandOpener{Name: "rundll32", Args: []string{"url.dll,FileProtocolHandler"}}
	default:
		return Unsupported{GOOS: goos}
	}
}

// Default is ForPlatform for the running host.
func Default() Opener {
	return ForPlatform(runtime.GOOS)
}
