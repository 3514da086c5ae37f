// Package jit is the fast-compile backend (§4.15, §4.19): it assembles
// optimized Mid-IR directly to amd64 machine code in-process, trading the
// high-optimization backend's code quality for near-instant turnaround at
// O0-O2. The compiler-object lifecycle is grounded on
// original_source/compiler/backend/src/cranelift/compiler.rs's four-phase
// module state machine (declare every function's name first, define each
// body once all names are known so forward calls can be recorded as
// relocations, then finalize once to lay out and patch everything at
// once) rather than Cranelift itself, which this package does not bind.
package jit

import "fmt"

// Phase is the backend's lifecycle state. Operations are only valid from
// specific phases; calling one out of order is a programming error in the
// caller (internal/pipeline), not a recoverable runtime condition, so it
// is reported as an error rather than a panic.
type Phase int

const (
	// Constructed: a fresh Backend, nothing declared yet.
	Constructed Phase = iota
	// Declared: at least one function name is known; bodies may not be
	// defined yet, so Declare may still be called to add more names.
	Declared
	// Defined: no Backend method enters this phase; Finalize moves
	// directly from Declared to Finalized.
	Defined
	// Finalized: machine code has been laid out into an executable page
	// and every relocation patched. CompiledFunction handles are valid;
	// the Backend itself accepts no further calls except Close.
	Finalized
)

func (p Phase) String() string {
	switch p {
	case Constructed:
		return "constructed"
	case Declared:
		return "declared"
	case Defined:
		return "defined"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// PhaseError reports an operation attempted from the wrong lifecycle
// phase.
type PhaseError struct {
	Op       string
	Current  Phase
	Expected Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("jit: %s requires phase %s, backend is in phase %s", e.Op, e.Expected, e.Current)
}
