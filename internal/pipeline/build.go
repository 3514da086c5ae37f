package pipeline

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"forthc/internal/backend/llopt"
	"forthc/internal/callingconv"
	"forthc/internal/linker"
)

// BuildAOT compiles source all the way to a native executable: front end,
// the high-opt LLVM-emitting backend (internal/backend/llopt), object-code
// generation and system linking (internal/linker). Intended for cmd/forthc's
// build mode, normally paired with O3 (§10.3, SelectBackend) though the
// backend choice here is the caller's — Pipeline.Config.Optimization only
// drives the optimizer pass schedule that already ran in RunFrontEnd.
func (p *Pipeline) BuildAOT(source string) (string, error) {
	fe, err := p.RunFrontEnd(source)
	if err != nil {
		return "", err
	}

	p.banner("Emitting LLVM IR...")
	foreign := callingconv.NewFFIRegistry()
	if err := foreign.RegisterLibc(); err != nil {
		return "", errors.Wrap(err, "registering libc FFI wrappers")
	}
	module, err := llopt.ModuleWithForeign(fe.Program, foreign)
	if err != nil {
		return "", errors.Wrap(err, "emitting LLVM IR")
	}

	lk := linker.New(p.Config.ToLinkerConfig())
	lk.Verbose = p.Config.Verbose

	objDir, err := os.MkdirTemp("", "forthc-build-*")
	if err != nil {
		return "", errors.Wrap(err, "preparing object file path")
	}
	defer os.RemoveAll(objDir)
	objPath := filepath.Join(objDir, "module.o")

	p.banner("Compiling to native object code...")
	if err := lk.CompileModule(module.String(), objPath); err != nil {
		return "", errors.Wrap(err, "compiling module")
	}

	p.banner("Linking...")
	output, err := lk.Link([]string{objPath})
	if err != nil {
		return "", errors.Wrap(err, "linking")
	}

	return output, nil
}
