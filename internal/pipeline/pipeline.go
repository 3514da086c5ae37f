// Package pipeline wires every compiler stage together: lex, parse,
// semantic check, type inference, SSA construction, Mid-IR lowering,
// optimization, and finally one of the two backends (§0, §10.1).
//
// Grounded on the teacher's internal/build.Builder.Build, which drives its
// own stages (resolve dependencies, resolve imports, link modules, write
// output) behind one entry point and prints a phase banner at each step;
// Pipeline generalizes that shape to forthc's stages. Cross-stage error
// wrapping uses github.com/pkg/errors (§10.2) — diagnostics raised inside
// a single stage stay typed *diagnostics.Diagnostic values, never wrapped.
package pipeline

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"forthc/internal/ast"
	"forthc/internal/config"
	"forthc/internal/ir"
	"forthc/internal/lexer"
	"forthc/internal/optimizer"
	"forthc/internal/parser"
	"forthc/internal/provenance"
	"forthc/internal/semantic"
	"forthc/internal/ssa"
	"forthc/internal/types"
)

// mainWordName is the synthetic word every backend looks for as the
// program's entry point, shared with internal/backend/jit and
// internal/backend/llopt's own "main" convention.
const mainWordName = "main"

// Pipeline runs the front end and optimizer; callers pick a backend
// (RunJIT or BuildAOT) for the last stage.
type Pipeline struct {
	Config config.BuildConfig
	// Out receives verbose phase banners; nil disables them regardless
	// of Config.Verbose.
	Out io.Writer
}

// New creates a Pipeline from a build configuration.
func New(cfg config.BuildConfig, out io.Writer) *Pipeline {
	return &Pipeline{Config: cfg, Out: out}
}

func (p *Pipeline) banner(format string, args ...any) {
	if p.Config.Verbose && p.Out != nil {
		fmt.Fprintf(p.Out, format+"\n", args...)
	}
}

// FrontEndResult carries everything the front end produced: the lowered,
// optimized Mid-IR program plus the provenance extracted from source and
// the optimizer stats, for verbose reporting.
type FrontEndResult struct {
	Program    *ir.ForthIR
	Provenance map[string]*provenance.Metadata
	OptStats   optimizer.Stats
}

// RunFrontEnd drives lex -> parse -> semantic -> types -> ssa -> lower ->
// optimize, returning the finished Mid-IR program. Each stage transition
// is wrapped with errors.Wrap so a failure names which stage produced it
// without the stage itself needing to know about its neighbors.
func (p *Pipeline) RunFrontEnd(source string) (*FrontEndResult, error) {
	p.banner("Lexing...")
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, errors.Wrap(err, "lexing")
	}

	p.banner("Parsing...")
	prog, err := parser.Parse(tokens)
	if err != nil {
		return nil, errors.Wrap(err, "parsing")
	}

	p.banner("Checking semantics...")
	if batch := semantic.Analyze(prog); !batch.Empty() {
		return nil, errors.Wrap(batch, "semantic analysis")
	}

	for i := range prog.Definitions {
		if prog.Definitions[i].Name == mainWordName {
			return nil, errors.Errorf("%q is reserved for the top-level entry point", mainWordName)
		}
	}

	p.banner("Inferring stack effects...")
	inf := types.NewInference()
	for i := range prog.Definitions {
		def := &prog.Definitions[i]
		var declared *types.StackEffect
		if def.DeclaredEffect != nil {
			eff := declToEffect(def.DeclaredEffect)
			declared = &eff
		}
		if err := inf.AddDefinition(def.Name, declared, def.Body); err != nil {
			return nil, errors.Wrapf(err, "inferring stack effect for %q", def.Name)
		}
	}

	p.banner("Building SSA...")
	out := ir.New()
	for i := range prog.Definitions {
		def := &prog.Definitions[i]
		fn, err := ssa.Build(def, inf)
		if err != nil {
			return nil, errors.Wrapf(err, "building SSA for %q", def.Name)
		}
		if err := ssa.Validate(fn); err != nil {
			return nil, errors.Wrapf(err, "validating SSA for %q", def.Name)
		}
		word, err := ir.Lower(fn)
		if err != nil {
			return nil, errors.Wrapf(err, "lowering %q", def.Name)
		}
		out.AddWord(word)
	}

	mainDef := &ast.Definition{Name: mainWordName, Body: prog.TopLevel}
	mainFn, err := ssa.Build(mainDef, inf)
	if err != nil {
		return nil, errors.Wrap(err, "building SSA for top level")
	}
	if err := ssa.Validate(mainFn); err != nil {
		return nil, errors.Wrap(err, "validating SSA for top level")
	}
	mainWord, err := ir.Lower(mainFn)
	if err != nil {
		return nil, errors.Wrap(err, "lowering top level")
	}
	out.Main = mainWord.Instructions

	p.banner("Optimizing (%s)...", optimizerLevelFor(p.Config.Optimization))
	opt := optimizer.New(optimizerLevelFor(p.Config.Optimization))
	stats, err := opt.Optimize(out)
	if err != nil {
		return nil, errors.Wrap(err, "optimizing")
	}

	prov := provenance.Extract(source)

	return &FrontEndResult{Program: out, Provenance: prov, OptStats: stats}, nil
}

// optimizerLevelFor maps a build's optimization level to the optimizer
// package's own pass-selection level: O0 runs no passes at all (matching
// a JIT-for-debugging workflow), O1/O2 scale up the fixpoint pass
// schedule, and O3 always runs the full Aggressive schedule before the
// high-opt backend hands the result to LLVM for further optimization.
func optimizerLevelFor(level config.OptimizationLevel) optimizer.OptimizationLevel {
	switch level {
	case config.O0:
		return optimizer.None
	case config.O1:
		return optimizer.Basic
	case config.O2:
		return optimizer.Standard
	default:
		return optimizer.Aggressive
	}
}

func declToEffect(decl *ast.StackEffectDecl) types.StackEffect {
	mk := func(names []string) []types.StackType {
		out := make([]types.StackType, len(names))
		for i := range names {
			out[i] = types.T(types.Int)
		}
		return out
	}
	return types.NewEffect(mk(decl.Inputs), mk(decl.Outputs))
}
