// Package linker drives the system linker to turn the object/IR output of
// either backend into a final executable, archive, or shared library
// (§4.18). Grounded on original_source/compiler/backend/src/linker/mod.rs's
// Linker/LinkerConfig (gcc/clang/ld detection and dispatch, static/dynamic,
// PIE/strip flags, LinkingFailed error capturing stderr).
package linker

import "path/filepath"

// LinkMode selects static or dynamic linking.
type LinkMode int

const (
	Static LinkMode = iota
	Dynamic
)

func (m LinkMode) String() string {
	if m == Static {
		return "static"
	}
	return "dynamic"
}

// Config mirrors original_source's LinkerConfig field for field.
type Config struct {
	Mode LinkMode

	// RuntimeLib is a C source or object file linked into every build
	// alongside the compiled word bodies — small helpers (stack-overflow
	// traps, `.` print-top formatting) not worth generating IR for.
	RuntimeLib string

	LibPaths []string
	Libs     []string
	Output   string

	Optimize bool
	Strip    bool
	PIE      bool

	// MinToolchainVersion, if non-empty, is a "major.minor.patch" floor
	// the detected linker's reported version must meet or exceed;
	// see detect.go's checkMinVersion.
	MinToolchainVersion string
}

// DefaultConfig mirrors original_source's impl Default for LinkerConfig.
func DefaultConfig() Config {
	return Config{
		Mode:       Static,
		RuntimeLib: filepath.Join("runtime", "forth_runtime.c"),
		Libs:       []string{"c", "m"},
		Output:     "a.out",
		Optimize:   true,
		Strip:      false,
		PIE:        true,
	}
}
