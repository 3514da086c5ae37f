// Package callingconv models the calling-convention layer of §4.17: the
// internal (stack-resident) Forth-to-Forth convention, and the bridging
// conventions a word needs when it crosses into or out of C code.
//
// Grounded on original_source/compiler/backend/src/cranelift/compiler.rs's
// FFIRegistry/create_signature pattern and on the register-role naming
// exercised by original_source/compiler/backend/tests/calling_convention_tests.rs
// (ForthRegister::DSP/TOS/NOS/ThirdOS/RSP, RegisterAllocator). The package
// is deliberately ISA-agnostic in its role names; Name() below fixes them
// to amd64, the only ISA internal/backend/jit and internal/backend/llopt
// currently target.
package callingconv

import "fmt"

// ForthRegister names a role in the abstract Forth register convention.
// internal/backend/jit's hand-rolled amd64 encoder makes its own simpler,
// concrete assignment (RBX as the data-stack pointer, R12 as the
// return-stack pointer — see encoder_amd64.go's package doc); this richer
// model exists for FFI wrapper generation and any future register-
// allocating backend that needs named scratch registers beyond those two.
type ForthRegister struct {
	role    string
	scratch int // index into scratchNames when role == "scratch"
}

var (
	// DSP is the dedicated data-stack-pointer register.
	DSP = ForthRegister{role: "dsp", scratch: -1}
	// TOS, NOS, and ThirdOS name the top three data-stack cells, cached in
	// registers rather than re-read from memory on every operation.
	TOS     = ForthRegister{role: "tos", scratch: -1}
	NOS     = ForthRegister{role: "nos", scratch: -1}
	ThirdOS = ForthRegister{role: "3os", scratch: -1}
	// RSP is the dedicated return-stack-pointer register.
	RSP = ForthRegister{role: "rsp", scratch: -1}
)

// Scratch names the i'th general-purpose scratch register, 0-indexed.
func Scratch(i int) ForthRegister { return ForthRegister{role: "scratch", scratch: i} }

// scratchNames are the amd64 general-purpose registers left over once
// DSP/TOS/NOS/ThirdOS/RSP claim r15/r12/r13/r14/r11 — nine slots, the
// same capacity original_source's RegisterAllocator exhausts in
// test_register_allocator_exhaustion.
var scratchNames = []string{"rax", "rcx", "rdx", "rsi", "rdi", "r8", "r9", "r10", "rbp"}

// Name returns the register's amd64 name.
func (r ForthRegister) Name() string {
	switch r.role {
	case "dsp":
		return "r15"
	case "tos":
		return "r12"
	case "nos":
		return "r13"
	case "3os":
		return "r14"
	case "rsp":
		return "r11"
	case "scratch":
		return scratchNames[r.scratch]
	default:
		return "?"
	}
}

// Constraint returns the register's single-register inline-asm constraint
// string, the Go-idiom analogue of original_source's
// ForthRegister::constraint (used there for inkwell inline-asm callsites).
func (r ForthRegister) Constraint() string {
	return fmt.Sprintf("{%s}", r.Name())
}

// RegisterAllocator hands out named scratch registers to callers
// identified by an arbitrary owner key (a temporary's name, an FFI
// wrapper's argument slot, ...), mirroring original_source's
// RegisterAllocator and its allocate/free/reset tests.
type RegisterAllocator struct {
	owners []string
}

// NewRegisterAllocator returns an allocator with all scratch registers free.
func NewRegisterAllocator() *RegisterAllocator {
	return &RegisterAllocator{owners: make([]string, len(scratchNames))}
}

// Allocate reserves a free scratch register for owner and returns it, or
// an error if all scratch registers are currently in use.
func (a *RegisterAllocator) Allocate(owner string) (ForthRegister, error) {
	for i, o := range a.owners {
		if o == "" {
			a.owners[i] = owner
			return Scratch(i), nil
		}
	}
	return ForthRegister{}, fmt.Errorf("callingconv: no free scratch register for %q (all %d in use)", owner, len(a.owners))
}

// Free releases the scratch register held by owner, if any.
func (a *RegisterAllocator) Free(owner string) {
	for i, o := range a.owners {
		if o == owner {
			a.owners[i] = ""
		}
	}
}

// Reset releases every allocation.
func (a *RegisterAllocator) Reset() {
	for i := range a.owners {
		a.owners[i] = ""
	}
}
