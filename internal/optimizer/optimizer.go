package optimizer

import (
	"reflect"

	"forthc/internal/ir"
)

// OptimizationLevel selects which passes run and how aggressively (§4.6),
// ordered so level comparisons (>=) select a prefix of the pipeline.
type OptimizationLevel int

const (
	None OptimizationLevel = iota
	Basic
	Standard
	Aggressive
)

func (l OptimizationLevel) String() string {
	switch l {
	case None:
		return "none"
	case Basic:
		return "basic"
	case Standard:
		return "standard"
	case Aggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// maxFixpointIterations bounds optimize_until_fixpoint; a pass schedule
// that never settles within this many rounds is a bug in a pass, not a
// legitimately unbounded program.
const maxFixpointIterations = 10

// Stats reports what a pipeline run actually did, for optimizer-report
// tooling (§4.6) and tests.
type Stats struct {
	Iterations         int
	ConstantsFolded    int
	PeepholeRewrites   int
	Superinstructions  int
	Inlined            int
	InstructionsPruned int
}

// Optimizer runs the level-appropriate pass schedule over a ForthIR until
// it reaches a fixpoint or maxFixpointIterations is hit (§4.6, grounded on
// original_source's Optimizer::optimize/optimize_until_fixpoint).
type Optimizer struct {
	Level OptimizationLevel
}

func New(level OptimizationLevel) *Optimizer {
	return &Optimizer{Level: level}
}

// Optimize rewrites prog in place and returns cumulative stats. Main is
// folded directly (it runs with a known-empty initial stack); each word's
// body is optimized independently, since a word may be called from many
// stack states and only the arity-preserving passes (peephole,
// superinstruction fusion, DCE, stack-cache) are safe to run on it without
// caller context — FoldConstants only touches Main (see constant_fold.go).
func (o *Optimizer) Optimize(prog *ir.ForthIR) (Stats, error) {
	var stats Stats
	if o.Level == None {
		if err := prog.Verify(); err != nil {
			return stats, err
		}
		return stats, nil
	}

	for iter := 0; iter < maxFixpointIterations; iter++ {
		stats.Iterations = iter + 1
		before := snapshot(prog)

		o.runPassesOnce(prog, &stats)

		after := snapshot(prog)
		if reflect.DeepEqual(before, after) {
			break
		}
	}

	if err := prog.Verify(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (o *Optimizer) runPassesOnce(prog *ir.ForthIR, stats *Stats) {
	// Constant folding only ever sees concrete values in Main; word bodies
	// are folded after inlining splices their text into a caller's Main
	// (§4.7).
	n := FoldConstants(prog)
	stats.ConstantsFolded += n

	if o.Level >= Basic {
		prog.Main, n = Peephole(prog.Main)
		stats.PeepholeRewrites += n
		for name, w := range prog.Words {
			w.Instructions, n = Peephole(w.Instructions)
			stats.PeepholeRewrites += n
			w.Update()
			prog.Words[name] = w
		}

		prog.Main, n = RecognizeSuperinstructions(prog.Main)
		stats.Superinstructions += n
		for name, w := range prog.Words {
			w.Instructions, n = RecognizeSuperinstructions(w.Instructions)
			stats.Superinstructions += n
			w.Update()
			prog.Words[name] = w
		}
	}

	if o.Level >= Standard {
		n = InlineCalls(prog, o.Level)
		stats.Inlined += n
	}

	prog.Main, n = EliminateDeadCode(prog.Main)
	stats.InstructionsPruned += n
	for name, w := range prog.Words {
		w.Instructions, n = EliminateDeadCode(w.Instructions)
		stats.InstructionsPruned += n
		w.Update()
		prog.Words[name] = w
	}

	if o.Level >= Standard {
		prog.Main = FlushCacheInsert(prog.Main)
		for name, w := range prog.Words {
			w.Instructions = FlushCacheInsert(w.Instructions)
			w.Update()
			prog.Words[name] = w
		}
	}
}

// snapshotState is a deep structural copy used only for the fixpoint's
// before/after equality check; reflect.DeepEqual on it is cheap relative
// to a whole extra optimization pass and avoids needing a bespoke
// Instruction-slice equality walk kept in sync with ir.Instruction's
// fields.
type snapshotState struct {
	Main  []ir.Instruction
	Words map[string][]ir.Instruction
}

func snapshot(prog *ir.ForthIR) snapshotState {
	s := snapshotState{
		Main:  append([]ir.Instruction(nil), prog.Main...),
		Words: make(map[string][]ir.Instruction, len(prog.Words)),
	}
	for name, w := range prog.Words {
		s.Words[name] = append([]ir.Instruction(nil), w.Instructions...)
	}
	return s
}
