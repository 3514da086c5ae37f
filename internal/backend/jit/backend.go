package jit

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"forthc/internal/callingconv"
	"forthc/internal/ir"
)

type declaredFunc struct {
	name         string
	instructions []ir.Instruction
	defined      bool

	bodyOffset       int // offset within the final page, set at Finalize
	trampolineOffset int
}

// Backend is one fast-compile compilation unit: a set of declared words
// compiled together so their mutual calls can be resolved into direct
// `call rel32` instructions at Finalize, grounded on the declare/define/
// finalize module lifecycle of
// original_source/compiler/backend/src/cranelift/compiler.rs.
type Backend struct {
	phase   Phase
	order   []string
	funcs   map[string]*declaredFunc
	page    *execPage
	handles map[string]*CompiledFunction
	runID   uuid.UUID
	Verbose bool

	// Foreign caches FFI wrapper metadata (§4.17) for symbols a word might
	// call out to. The fast-compile backend has no dynamic symbol
	// resolver of its own (no cgo/dlopen in this stack), so unlike
	// internal/backend/llopt — which emits a real LLVM `declare` that
	// internal/linker's clang/ld invocation resolves against libc —
	// New fills this registry from callingconv's libc table, and Declare/
	// Define never read or change it; an
	// OpCall naming a foreign symbol rather than a declared word still
	// fails at Finalize via patchCall, same as any other undeclared name.
	Foreign *callingconv.FFIRegistry
}

// New creates a Backend in the Constructed phase.
func New() *Backend {
	foreign := callingconv.NewFFIRegistry()
	_ = foreign.RegisterLibc() // the fixed libcArity table never exceeds maxCArgs
	return &Backend{
		phase:   Constructed,
		funcs:   make(map[string]*declaredFunc),
		handles: make(map[string]*CompiledFunction),
		runID:   uuid.New(),
		Foreign: foreign,
	}
}

// Declare registers name as a compilable word. Valid from Constructed or
// Declared; moves the backend to Declared.
func (b *Backend) Declare(name string) error {
	if b.phase != Constructed && b.phase != Declared {
		return &PhaseError{Op: "Declare", Current: b.phase, Expected: Declared}
	}
	if _, exists := b.funcs[name]; exists {
		return fmt.Errorf("jit: %q already declared", name)
	}
	b.funcs[name] = &declaredFunc{name: name}
	b.order = append(b.order, name)
	b.phase = Declared
	return nil
}

// Define supplies the body for a previously declared name. Valid only
// from Declared, and leaves the backend in Declared: the body is only
// recorded here and is assembled at Finalize, which checks that every
// declared name has one (Cranelift's Module similarly tolerates defining
// functions across several calls before finalize_definitions).
func (b *Backend) Define(name string, instructions []ir.Instruction) error {
	if b.phase != Declared {
		return &PhaseError{Op: "Define", Current: b.phase, Expected: Declared}
	}
	f, ok := b.funcs[name]
	if !ok {
		return fmt.Errorf("jit: %q was never declared", name)
	}
	if f.defined {
		return fmt.Errorf("jit: %q already defined", name)
	}
	f.instructions = instructions
	f.defined = true
	return nil
}

func (b *Backend) allDefined() bool {
	for _, f := range b.funcs {
		if !f.defined {
			return false
		}
	}
	return len(b.funcs) > 0
}

// Finalize assembles every defined word's body plus one entry trampoline
// per declared word, lays them into a single executable page, patches
// every inter-word call and intra-word branch, flips the page to RX, and
// returns a CompiledFunction per declared name. Valid from Declared with
// every declared name defined.
func (b *Backend) Finalize() (map[string]*CompiledFunction, error) {
	if b.phase != Declared {
		return nil, &PhaseError{Op: "Finalize", Current: b.phase, Expected: Declared}
	}
	if !b.allDefined() {
		return nil, fmt.Errorf("jit: Finalize called with undefined declared words")
	}
	start := time.Now()

	type assembled struct {
		name  string
		body  []byte
		calls []callFixup
	}
	assembledFuncs := make([]assembled, 0, len(b.order))
	for _, name := range b.order {
		f := b.funcs[name]
		body, calls, err := assembleWord(f.instructions)
		if err != nil {
			return nil, fmt.Errorf("jit: assembling %q: %w", name, err)
		}
		assembledFuncs = append(assembledFuncs, assembled{name: name, body: body, calls: calls})
	}

	// Layout: every body back to back, then every trampoline back to
	// back, so each function's pieces live at fixed, final offsets
	// before any relocation is patched.
	var buf []byte
	for i, a := range assembledFuncs {
		b.funcs[a.name].bodyOffset = len(buf)
		buf = append(buf, a.body...)
		assembledFuncs[i] = a
	}
	var trampolineRelocs []callFixup
	for _, name := range b.order {
		f := b.funcs[name]
		f.trampolineOffset = len(buf)
		tramp := buildEntryTrampoline()
		trampolineRelocs = append(trampolineRelocs, callFixup{
			Offset: f.trampolineOffset + entryTrampolineCallOffset,
			Callee: name,
		})
		buf = append(buf, tramp...)
	}

	// Patch every body's inter-word calls.
	for _, a := range assembledFuncs {
		base := b.funcs[a.name].bodyOffset
		for _, c := range a.calls {
			if err := b.patchCall(buf, base+c.Offset, c.Callee); err != nil {
				return nil, fmt.Errorf("jit: in %q: %w", a.name, err)
			}
		}
	}
	// Patch every trampoline's call into its own word's body.
	for _, c := range trampolineRelocs {
		if err := b.patchCall(buf, c.Offset, c.Callee); err != nil {
			return nil, fmt.Errorf("jit: entry trampoline for %q: %w", c.Callee, err)
		}
	}

	page, err := allocExecPage(len(buf))
	if err != nil {
		return nil, err
	}
	copy(page.mem, buf)
	if err := page.makeExecutable(); err != nil {
		return nil, err
	}
	b.page = page

	for _, name := range b.order {
		f := b.funcs[name]
		cf := newCompiledFunction(name, b.runID, page, f.trampolineOffset)
		b.handles[name] = cf
	}
	b.phase = Finalized

	if b.Verbose {
		fmt.Printf("jit: compiled %d words (%s) in %s\n",
			len(b.order), humanize.Bytes(uint64(len(buf))), time.Since(start))
	}
	return b.handles, nil
}

// patchCall writes calleeName's final body address, relative to the
// call instruction immediately following offset, into buf[offset:offset+4].
func (b *Backend) patchCall(buf []byte, offset int, calleeName string) error {
	callee, ok := b.funcs[calleeName]
	if !ok {
		return fmt.Errorf("call to undeclared word %q", calleeName)
	}
	rel := int32(callee.bodyOffset - (offset + 4))
	binary.LittleEndian.PutUint32(buf[offset:], uint32(rel))
	return nil
}

// Close releases the backend's executable page. Valid only after
// Finalize; every CompiledFunction handle becomes invalid afterward.
func (b *Backend) Close() error {
	if b.phase != Finalized {
		return &PhaseError{Op: "Close", Current: b.phase, Expected: Finalized}
	}
	return b.page.free()
}
