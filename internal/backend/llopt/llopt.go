// Package llopt is the high-optimization backend (§4.16, §4.19): it
// lowers optimized Mid-IR to an LLVM IR module via github.com/llir/llvm,
// a pure-Go LLVM IR builder (no cgo/libLLVM binding — its real capability
// is constructing and printing .ll text, which the actual optimization
// and codegen then happens in opt/llc/clang downstream, driven by
// internal/linker). Chosen for -O3, where the fast-compile backend
// (internal/backend/jit) would rather trade code quality for turnaround.
//
// Mid-IR's control flow is flat and index-addressed (Branch/BranchIf/
// BranchIfNot carry a raw instruction index, not a block handle), unlike
// LLVM IR's block-addressed form, so lowering must first discover where
// block boundaries fall — see blocks.go, grounded on the block-lookup-map
// pattern in original_source/compiler/backend/src/codegen/control_flow.rs.
package llopt

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"forthc/internal/callingconv"
	fir "forthc/internal/ir"
)

// stackDepth is not referenced by the lowering: each compiled function
// works through the data/return stack buffers its caller passes in,
// indexed through sp/rsp allocas.
const stackDepth = 256

// Module builds one LLVM IR module containing a function per Mid-IR word
// plus "main" for prog.Main, with no foreign symbols available to OpCall.
// See ModuleWithForeign for the FFI-aware form.
func Module(prog *fir.ForthIR) (*ir.Module, error) {
	return ModuleWithForeign(prog, nil)
}

// ModuleWithForeign builds the module the same way Module does, additionally
// emitting an LLVM `declare` for every symbol cached in foreign (§4.17): a
// genuine external-function declaration that internal/linker's clang/ld
// invocation resolves against the real libc at link time, the realistic
// counterpart to internal/backend/jit's fast-compile path, which only
// registers FFI wrapper metadata (see internal/callingconv's package doc)
// since the in-process JIT has no dynamic symbol resolver of its own.
//
// Every Forth-to-Forth function shares the fixed two-pointer-in/one-i64-out
// signature internal/backend/jit's trampolines also use, so the calling
// convention is identical regardless of which backend compiled a given word
// (§4.17); foreign functions instead get the plain C signature their arity
// implies, per internal/callingconv.Signature.
func ModuleWithForeign(prog *fir.ForthIR, foreign *callingconv.FFIRegistry) (*ir.Module, error) {
	m := ir.NewModule()
	funcs := make(map[string]*ir.Func)
	externs := make(map[string]*ir.Func)

	ptrI64 := types.NewPointer(types.I64)
	declare := func(name string) *ir.Func {
		fn := m.NewFunc(llvmSafeName(name), types.I64,
			ir.NewParam("stack", ptrI64),
			ir.NewParam("rstack", ptrI64))
		funcs[name] = fn
		return fn
	}

	for name := range prog.Words {
		declare(name)
	}
	mainFn := declare("main")

	if foreign != nil {
		for _, name := range foreign.Names() {
			w, _ := foreign.Get(name)
			params := make([]*ir.Param, w.Signature.ParamCount)
			for i := range params {
				params[i] = ir.NewParam(fmt.Sprintf("a%d", i), types.I64)
			}
			externs[name] = m.NewFunc(name, types.I64, params...)
		}
	}

	for name, w := range prog.Words {
		if err := lowerBody(m, funcs[name], funcs, externs, w.Instructions); err != nil {
			return nil, fmt.Errorf("llopt: word %q: %w", name, err)
		}
	}
	if err := lowerBody(m, mainFn, funcs, externs, prog.Main); err != nil {
		return nil, fmt.Errorf("llopt: main: %w", err)
	}

	return m, nil
}

// llvmSafeName maps a Mid-IR word name to the LLVM global name used for
// it. It is an identity transform, applied alike to source-level word
// names and to PGO-fused synthetic names (internal/optimizer/pgo.go's
// `$fused$` prefix followed by `_`-joined op names).
func llvmSafeName(name string) string {
	return name
}
