package pipeline

import (
	"github.com/pkg/errors"

	"forthc/internal/backend/jit"
)

// RunJIT compiles source through the front end, hands the result to the
// fast-compile JIT backend (internal/backend/jit), and calls "main",
// returning whatever value is left on the data stack per §4.15. Intended
// for cmd/forthc's run mode (O0-O2), where turnaround matters more than
// code quality (§10.3, SelectBackend).
func (p *Pipeline) RunJIT(source string) (int64, error) {
	fe, err := p.RunFrontEnd(source)
	if err != nil {
		return 0, err
	}

	p.banner("JIT compiling...")
	backend := jit.New()
	defer backend.Close()

	for name := range fe.Program.Words {
		if err := backend.Declare(name); err != nil {
			return 0, errors.Wrapf(err, "declaring %q", name)
		}
	}
	if err := backend.Declare(mainWordName); err != nil {
		return 0, errors.Wrap(err, "declaring main")
	}

	for name, word := range fe.Program.Words {
		if err := backend.Define(name, word.Instructions); err != nil {
			return 0, errors.Wrapf(err, "defining %q", name)
		}
	}
	if err := backend.Define(mainWordName, fe.Program.Main); err != nil {
		return 0, errors.Wrap(err, "defining main")
	}

	fns, err := backend.Finalize()
	if err != nil {
		return 0, errors.Wrap(err, "finalizing JIT compilation")
	}

	p.banner("Running...")
	result, err := fns[mainWordName].Call()
	if err != nil {
		return 0, errors.Wrap(err, "running")
	}
	return result, nil
}
