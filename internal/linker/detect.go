package linker

import (
	"bytes"
	"os/exec"
	"regexp"

	"golang.org/x/mod/semver"
)

// Toolchain identifies which system linker/compiler driver is available.
type Toolchain int

const (
	Clang Toolchain = iota
	GCC
	LD
)

func (t Toolchain) String() string {
	switch t {
	case Clang:
		return "clang"
	case GCC:
		return "gcc"
	default:
		return "ld"
	}
}

// detectToolchain probes for clang first (matching original_source's
// comment that it behaves better on macOS), then gcc, falling back to ld
// directly when neither compiler driver is present.
func detectToolchain() Toolchain {
	if _, err := exec.Command("clang", "--version").Output(); err == nil {
		return Clang
	}
	if _, err := exec.Command("gcc", "--version").Output(); err == nil {
		return GCC
	}
	return LD
}

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// toolchainVersion runs "<name> --version" and extracts the first
// dotted-number token it prints, e.g. "Apple clang version 15.0.0" -> "15.0.0".
func toolchainVersion(name string) (string, error) {
	out, err := exec.Command(name, "--version").Output()
	if err != nil {
		return "", err
	}
	m := versionPattern.Find(bytes.TrimSpace(out))
	if m == nil {
		return "", nil
	}
	return string(m), nil
}

// checkMinVersion reports whether got meets or exceeds min, both given as
// bare "major.minor[.patch]" strings (no "v" prefix, as linker.Config
// stores them), using golang.org/x/mod/semver for the comparison.
func checkMinVersion(got, min string) bool {
	if min == "" || got == "" {
		return true
	}
	gotV, minV := "v"+got, "v"+min
	if !semver.IsValid(gotV) || !semver.IsValid(minV) {
		// A version string the toolchain printed in a shape semver can't
		// parse is not grounds to refuse linking; only a confirmed
		// below-floor version is.
		return true
	}
	return semver.Compare(gotV, minV) >= 0
}
