package linker

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/dustin/go-humanize"

	"forthc/internal/diagnostics"
)

// Linker links object/IR files produced by either backend into a final
// artifact by shelling out to whichever system toolchain detectToolchain
// finds, mirroring original_source's Linker::link/link_with_gcc/
// link_with_clang/link_with_ld dispatch.
type Linker struct {
	config  Config
	Verbose bool
}

func New(config Config) *Linker {
	return &Linker{config: config}
}

// Link runs objectFiles (.o files, or a .ll module internal/backend/llopt
// produced and internal/linker compiles first via CompileModule) through the
// detected toolchain and returns the output path.
func (l *Linker) Link(objectFiles []string) (string, error) {
	toolchain := detectToolchain()
	if l.config.MinToolchainVersion != "" {
		if v, err := toolchainVersion(toolchain.String()); err == nil {
			if !checkMinVersion(v, l.config.MinToolchainVersion) {
				return "", diagnostics.New(diagnostics.LinkingFailed,
					fmt.Sprintf("%s %s is older than the configured minimum %s",
						toolchain, v, l.config.MinToolchainVersion))
			}
		}
	}

	var out string
	var err error
	switch toolchain {
	case Clang:
		out, err = l.run("clang", objectFiles, true)
	case GCC:
		out, err = l.run("gcc", objectFiles, true)
	default:
		out, err = l.run("ld", objectFiles, false)
	}
	if err != nil {
		return "", err
	}

	if l.Verbose {
		if info, statErr := os.Stat(out); statErr == nil {
			fmt.Printf("linker: wrote %s (%s) via %s\n", out, humanize.Bytes(uint64(info.Size())), toolchain)
		}
	}
	return out, nil
}

// run builds and executes one linker invocation. isCompilerDriver is true
// for clang/gcc (which accept -O2/-pie/-static/runtime-source directly)
// and false for a bare ld invocation, which original_source's
// link_with_ld only feeds object files, library paths/names, -o, and -pie.
func (l *Linker) run(name string, objectFiles []string, isCompilerDriver bool) (string, error) {
	cfg := l.config
	var args []string
	args = append(args, objectFiles...)

	if isCompilerDriver {
		if cfg.RuntimeLib != "" {
			if _, err := os.Stat(cfg.RuntimeLib); err == nil {
				args = append(args, cfg.RuntimeLib)
			}
		}
	}
	for _, p := range cfg.LibPaths {
		args = append(args, "-L"+p)
	}
	for _, lib := range cfg.Libs {
		args = append(args, "-l"+lib)
	}
	args = append(args, "-o", cfg.Output)

	if isCompilerDriver {
		if cfg.Optimize {
			args = append(args, "-O2")
		}
		if cfg.Strip {
			if name == "clang" {
				args = append(args, "-Wl,-s")
			} else {
				args = append(args, "-s")
			}
		}
	}
	if cfg.PIE {
		args = append(args, "-pie")
	}
	if isCompilerDriver && cfg.Mode == Static {
		args = append(args, "-static")
	}

	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", diagnostics.New(diagnostics.LinkingFailed,
			fmt.Sprintf("%s failed: %s", name, string(output)))
	}
	return cfg.Output, nil
}

// CompileRuntime compiles Config.RuntimeLib to a .o file, mirroring
// original_source's compile_runtime (always via gcc, -O2 -fPIC).
func (l *Linker) CompileRuntime() (string, error) {
	src := l.config.RuntimeLib
	obj := withExt(src, ".o")
	cmd := exec.Command("gcc", "-c", src, "-o", obj, "-O2", "-fPIC")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", diagnostics.New(diagnostics.LinkingFailed,
			fmt.Sprintf("runtime compilation failed: %s", string(output)))
	}
	return obj, nil
}

// CreateArchive bundles objectFiles into a static archive via ar rcs,
// mirroring original_source's create_archive.
func (l *Linker) CreateArchive(objectFiles []string, archiveName string) error {
	args := append([]string{"rcs", archiveName}, objectFiles...)
	cmd := exec.Command("ar", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return diagnostics.New(diagnostics.LinkingFailed,
			fmt.Sprintf("archive creation failed: %s", string(output)))
	}
	return nil
}

// CreateSharedLibrary links objectFiles into a shared library via
// gcc -shared -fPIC, mirroring original_source's create_shared_library.
func (l *Linker) CreateSharedLibrary(objectFiles []string, libName string) error {
	args := []string{"-shared", "-fPIC", "-o", libName}
	args = append(args, objectFiles...)
	cmd := exec.Command("gcc", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return diagnostics.New(diagnostics.LinkingFailed,
			fmt.Sprintf("shared library creation failed: %s", string(output)))
	}
	return nil
}

func withExt(path, ext string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i] + ext
		}
	}
	return path + ext
}
