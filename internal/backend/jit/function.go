package jit

import (
	"fmt"
	"unsafe"

	"github.com/google/uuid"
)

const dataStackCapacity = 4096
const returnStackCapacity = 1024

// nativeFunc is the Go type a compiled word's entry trampoline is cast
// to: two stack-buffer base pointers in, one i64 result out, matching
// the SysV amd64 calling convention the trampoline's prologue expects
// (RDI, RSI in; RAX out). Casting a raw code pointer to a Go func value
// this way — rather than going through cgo or an assembly stub — is the
// same trick small hand-rolled Go JIT prototypes use to invoke generated
// machine code directly; it relies on Go's func values being, at the
// ABI level, just a code pointer.
type nativeFunc func(dataStack, returnStack unsafe.Pointer) int64

// CompiledFunction is a handle to one finalized, callable word. RunID
// records which Backend.Finalize call produced it. Call refuses a handle
// whose owning backend has been closed; it does not check RunID.
type CompiledFunction struct {
	Name  string
	RunID uuid.UUID

	page   *execPage
	offset int
}

func newCompiledFunction(name string, runID uuid.UUID, page *execPage, trampolineOffset int) *CompiledFunction {
	return &CompiledFunction{Name: name, RunID: runID, page: page, offset: trampolineOffset}
}

// Call invokes the compiled word with a freshly allocated data and
// return stack and reports the final top-of-data-stack value. Each call
// gets its own stack buffers (§5's isolation requirement for concurrent
// JIT invocations of the same word — two goroutines calling the same
// CompiledFunction never share mutable state).
func (f *CompiledFunction) Call() (int64, error) {
	if f.page == nil || f.page.mem == nil {
		return 0, fmt.Errorf("jit: %q called after its backend was closed", f.Name)
	}
	entry := unsafe.Pointer(uintptr(f.page.base()) + uintptr(f.offset))
	fn := *(*nativeFunc)(unsafe.Pointer(&entry))

	dataStack := make([]int64, dataStackCapacity)
	returnStack := make([]int64, returnStackCapacity)
	return fn(unsafe.Pointer(&dataStack[0]), unsafe.Pointer(&returnStack[0])), nil
}

// Addr exposes the raw entry address, for tooling (disassembly dumps,
// cross-process correlation) that needs the pointer value itself rather
// than a callable handle.
func (f *CompiledFunction) Addr() unsafe.Pointer {
	return unsafe.Pointer(uintptr(f.page.base()) + uintptr(f.offset))
}
