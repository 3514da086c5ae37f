package linker

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"forthc/internal/diagnostics"
)

// CompileModule writes llText (internal/backend/llopt's Module.String()
// output) to a temporary .ll file and runs it through opt then llc to
// produce a native object file at objPath — the actual optimization and
// codegen step github.com/llir/llvm cannot perform itself (see that
// package's doc comment). opt level is "-O2"/"-O3" depending on
// Config.Optimize, matching the fast-compile/high-opt split the rest of
// the pipeline already makes at the backend-selection layer.
func (l *Linker) CompileModule(llText, objPath string) error {
	dir, err := os.MkdirTemp("", "forthc-llopt-*")
	if err != nil {
		return diagnostics.New(diagnostics.LinkingFailed, fmt.Sprintf("creating temp dir: %v", err))
	}
	defer os.RemoveAll(dir)

	llPath := filepath.Join(dir, "module.ll")
	if err := os.WriteFile(llPath, []byte(llText), 0o644); err != nil {
		return diagnostics.New(diagnostics.LinkingFailed, fmt.Sprintf("writing %s: %v", llPath, err))
	}

	optLevel := "-O2"
	if l.config.Optimize {
		optLevel = "-O3"
	}

	optedPath := filepath.Join(dir, "module.opt.ll")
	optCmd := exec.Command("opt", optLevel, "-S", llPath, "-o", optedPath)
	if out, err := optCmd.CombinedOutput(); err != nil {
		return diagnostics.New(diagnostics.LinkingFailed, fmt.Sprintf("opt failed: %s", string(out)))
	}

	llcCmd := exec.Command("llc", optLevel, "-filetype=obj", optedPath, "-o", objPath)
	if out, err := llcCmd.CombinedOutput(); err != nil {
		return diagnostics.New(diagnostics.LinkingFailed, fmt.Sprintf("llc failed: %s", string(out)))
	}
	return nil
}
