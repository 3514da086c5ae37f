package jit

import (
	"encoding/binary"
	"fmt"

	"forthc/internal/ir"
)

// The data stack lives in a caller-allocated []int64 buffer; RBX always
// points one slot past the current top (the next free slot), mirroring a
// classic native Forth code generator's dedicated stack-pointer register.
// The return stack (for >r/r>/r@) gets its own buffer and its own
// pointer register, R12, so pushing to one never disturbs the other.
// RBX/R12 are callee-saved under the System V AMD64 ABI, but only the
// one entry trampoline per word (buildEntryTrampoline, in encoder_amd64.go
// below) saves and restores them — a word's own body never does, since
// an inter-word OpCall must see the caller's live stack pointers, not a
// pristine copy, for its net stack effect to propagate back correctly.
//
// Entry convention (at the trampoline, the only real ABI boundary): RDI
// = data-stack buffer base, RSI = return-stack buffer base (both
// *int64, passed the way nativeFunc in function.go declares them). Exit:
// RAX holds the value at the new top of the data stack (i.e. the word's
// single logical return value), matching the fixed one-i64-return
// signature every compiled word shares (§4.17's internal convention
// fixes arity at the ABI boundary, not in the JIT itself).
// callFixup records a not-yet-resolvable call: the byte offset of the
// call instruction's 4-byte rel32 operand, and the name of the callee
// whose final address Finalize must patch in once every function's
// position in the executable page is known.
type callFixup struct {
	Offset int
	Callee string
}

// assembleWord lowers one word's (or Main's) Mid-IR instructions to amd64
// machine code in a single forward pass. It emits only the word's body —
// no SysV prologue/epilogue — because OpCall is a plain relative `call`
// between bodies that share the live rbx/r12 stack-pointer registers
// directly; saving and restoring them per call would discard the
// callee's net effect on the shared data/return stacks. Only the one
// externally-exposed entry trampoline per function (built once at
// Finalize, see buildEntryTrampoline below) crosses the real SysV
// boundary and saves/restores them.
//
// Every conditional/unconditional branch is encoded with the fixed-
// length 32-bit-displacement form (never the 8-bit short form), so each
// instruction's byte length is independent of where its target turns out
// to be — which lets offsets be recorded as they're emitted and
// displacements backpatched in one pass over the finished buffer, the
// same index-remap-then-patch shape internal/optimizer/rewrite.go uses
// for Mid-IR branches.
func assembleWord(instructions []ir.Instruction) ([]byte, []callFixup, error) {
	var buf []byte
	instrOffsets := make([]int, len(instructions)+1)
	type branchFixup struct {
		patchOffset int
		target      int
	}
	var branches []branchFixup
	var calls []callFixup

	for i, inst := range instructions {
		instrOffsets[i] = len(buf)
		switch inst.Op {
		case ir.OpLiteral:
			emitPushImm64(&buf, inst.IntOperand)
		case ir.OpDup:
			emitDup(&buf)
		case ir.OpDrop:
			emitDrop(&buf)
		case ir.OpSwap:
			emitSwap(&buf)
		case ir.OpOver:
			emitOver(&buf)
		case ir.OpRot:
			emitRot(&buf)
		case ir.OpNip:
			emitNip(&buf)
		case ir.OpTuck:
			emitTuck(&buf)
		case ir.OpPick:
			emitPick(&buf, uint8(inst.IntOperand))
		case ir.OpRoll:
			emitRoll(&buf, uint8(inst.IntOperand))

		case ir.OpAdd:
			emitBinArith(&buf, 0x01) // add rax, rcx
		case ir.OpSub:
			emitSub(&buf)
		case ir.OpMul:
			emitMul(&buf)
		case ir.OpDiv:
			emitDivMod(&buf, false)
		case ir.OpMod:
			emitDivMod(&buf, true)
		case ir.OpNeg:
			emitUnaryNeg(&buf)
		case ir.OpAbs:
			emitAbs(&buf)

		case ir.OpAnd:
			emitBinArith(&buf, 0x21) // and rax, rcx
		case ir.OpOr:
			emitBinArith(&buf, 0x09) // or rax, rcx
		case ir.OpXor:
			emitBinArith(&buf, 0x31) // xor rax, rcx
		case ir.OpNot:
			emitNot(&buf)
		case ir.OpShl:
			emitShift(&buf, true)
		case ir.OpShr:
			emitShift(&buf, false)

		case ir.OpEq:
			emitCompare(&buf, ccEqual)
		case ir.OpNe:
			emitCompare(&buf, ccNotEqual)
		case ir.OpLt:
			emitCompare(&buf, ccLess)
		case ir.OpLe:
			emitCompare(&buf, ccLessEq)
		case ir.OpGt:
			emitCompare(&buf, ccGreater)
		case ir.OpGe:
			emitCompare(&buf, ccGreaterEq)
		case ir.OpZeroEq:
			emitCompareZero(&buf, ccEqual)
		case ir.OpZeroLt:
			emitCompareZero(&buf, ccLess)
		case ir.OpZeroGt:
			emitCompareZero(&buf, ccGreater)

		case ir.OpCall:
			calls = append(calls, callFixup{Offset: len(buf) + 1, Callee: inst.CallName})
			emitCallRel32Placeholder(&buf)

		case ir.OpReturn:
			emitBodyReturn(&buf)

		case ir.OpBranch:
			branches = append(branches, branchFixup{patchOffset: emitJmpPlaceholder(&buf), target: inst.Target})
		case ir.OpBranchIf:
			emitPopRax(&buf)
			emitCmpRaxZero(&buf)
			branches = append(branches, branchFixup{patchOffset: emitJccPlaceholder(&buf, ccNotEqual), target: inst.Target})
		case ir.OpBranchIfNot:
			emitPopRax(&buf)
			emitCmpRaxZero(&buf)
			branches = append(branches, branchFixup{patchOffset: emitJccPlaceholder(&buf, ccEqual), target: inst.Target})

		case ir.OpLoad:
			emitLoad(&buf, 8)
		case ir.OpLoad8:
			emitLoad(&buf, 1)
		case ir.OpStore:
			emitStore(&buf, 8)
		case ir.OpStore8:
			emitStore(&buf, 1)

		case ir.OpToR:
			emitToR(&buf)
		case ir.OpFromR:
			emitFromR(&buf)
		case ir.OpRFetch:
			emitRFetch(&buf)

		case ir.OpDupAdd:
			emitDup(&buf)
			emitBinArith(&buf, 0x01)
		case ir.OpDupMul:
			emitDup(&buf)
			emitMul(&buf)
		case ir.OpOverAdd:
			emitOver(&buf)
			emitBinArith(&buf, 0x01)
		case ir.OpSwapSub:
			emitSwap(&buf)
			emitSub(&buf)
		case ir.OpLiteralAdd:
			emitPushImm64(&buf, inst.IntOperand)
			emitBinArith(&buf, 0x01)
		case ir.OpLiteralMul:
			emitPushImm64(&buf, inst.IntOperand)
			emitMul(&buf)
		case ir.OpIncOne:
			emitAddImmTop(&buf, 1)
		case ir.OpDecOne:
			emitAddImmTop(&buf, -1)
		case ir.OpMulTwo:
			emitShiftImmTop(&buf, true, 1)
		case ir.OpDivTwo:
			emitShiftImmTop(&buf, false, 1)

		// The stack-register cache hints (§4.15) describe a register-
		// resident fast path this backend does not implement: a real
		// allocator keeping TOS/NOS in registers across a window is a
		// much larger undertaking than hand-rolled code generation
		// warrants here, so cached variants simply lower to the same
		// bytes as their uncached counterparts, and FlushCache is a
		// no-op. Correct, just not as fast as the cache hint promises.
		case ir.OpCachedDup:
			emitDup(&buf)
		case ir.OpCachedSwap:
			emitSwap(&buf)
		case ir.OpCachedOver:
			emitOver(&buf)
		case ir.OpFlushCache, ir.OpComment, ir.OpLabel, ir.OpNop:
			// zero bytes

		case ir.OpFloatLiteral:
			return nil, nil, fmt.Errorf("jit: floating-point ops are not supported by the fast-compile backend; use -O3 (internal/backend/llopt)")

		default:
			return nil, nil, fmt.Errorf("jit: unsupported op %s", inst.Op)
		}
	}
	instrOffsets[len(instructions)] = len(buf)
	emitBodyReturn(&buf)

	for _, b := range branches {
		target := instrOffsets[b.target]
		rel := int32(target - (b.patchOffset + 4))
		binary.LittleEndian.PutUint32(buf[b.patchOffset:], uint32(rel))
	}

	return buf, calls, nil
}

type condCode int

const (
	ccEqual condCode = iota
	ccNotEqual
	ccLess
	ccLessEq
	ccGreater
	ccGreaterEq
)

// emitBodyReturn loads the current top of the data stack into rax (the
// word's single logical return value) and returns to the caller — either
// another compiled word's body (mid-program OpCall) or the entry
// trampoline (buildEntryTrampoline) that wraps the outermost call.
func emitBodyReturn(buf *[]byte) {
	// mov rax, [rbx-8]
	*buf = append(*buf, 0x48, 0x8B, 0x43, 0xF8)
	// ret
	*buf = append(*buf, 0xC3)
}

// buildEntryTrampoline assembles the fixed-size SysV-boundary stub
// exposed as a CompiledFunction's entry point: it saves the two
// registers this backend dedicates to the data/return stack pointers,
// loads them from the incoming arguments, falls into the word's body via
// a relative call (left as a zero placeholder — the caller registers it
// as an ordinary callFixup against the word's own name, patched in the
// same pass as every other inter-word call), then restores and returns.
func buildEntryTrampoline() []byte {
	var buf []byte
	// push rbx; push r12
	buf = append(buf, 0x53, 0x41, 0x54)
	// mov rbx, rdi
	buf = append(buf, 0x48, 0x89, 0xFB)
	// mov r12, rsi
	buf = append(buf, 0x49, 0x89, 0xF4)
	emitCallRel32Placeholder(&buf)
	// pop r12; pop rbx
	buf = append(buf, 0x41, 0x5C, 0x5B)
	// ret
	buf = append(buf, 0xC3)
	return buf
}

// entryTrampolineCallOffset is the byte offset of the 4-byte rel32 field
// within buildEntryTrampoline's output (3 + 3 + 3 = 9 bytes of prologue,
// then the 0xE8 call opcode byte).
const entryTrampolineCallOffset = 3 + 3 + 3 + 1

func emitPushImm64(buf *[]byte, v int64) {
	// movabs rax, imm64
	*buf = append(*buf, 0x48, 0xB8)
	var imm [8]byte
	binary.LittleEndian.PutUint64(imm[:], uint64(v))
	*buf = append(*buf, imm[:]...)
	emitStoreRaxPushTop(buf)
}

// emitStoreRaxPushTop stores RAX to [rbx] and advances rbx by 8: the
// shared tail of every "push a computed value" sequence.
func emitStoreRaxPushTop(buf *[]byte) {
	// mov [rbx], rax
	*buf = append(*buf, 0x48, 0x89, 0x03)
	// add rbx, 8
	*buf = append(*buf, 0x48, 0x83, 0xC3, 0x08)
}

func emitPopRax(buf *[]byte) {
	// sub rbx, 8; mov rax, [rbx]
	*buf = append(*buf, 0x48, 0x83, 0xEB, 0x08, 0x48, 0x8B, 0x03)
}

func emitPopRcx(buf *[]byte) {
	// sub rbx, 8; mov rcx, [rbx]
	*buf = append(*buf, 0x48, 0x83, 0xEB, 0x08, 0x48, 0x8B, 0x0B)
}

func emitDup(buf *[]byte) {
	// mov rax, [rbx-8]
	*buf = append(*buf, 0x48, 0x8B, 0x43, 0xF8)
	emitStoreRaxPushTop(buf)
}

func emitDrop(buf *[]byte) {
	// sub rbx, 8
	*buf = append(*buf, 0x48, 0x83, 0xEB, 0x08)
}

func emitSwap(buf *[]byte) {
	// mov rax, [rbx-8]; mov rcx, [rbx-16]; mov [rbx-8], rcx; mov [rbx-16], rax
	*buf = append(*buf, 0x48, 0x8B, 0x43, 0xF8)
	*buf = append(*buf, 0x48, 0x8B, 0x4B, 0xF0)
	*buf = append(*buf, 0x48, 0x89, 0x4B, 0xF8)
	*buf = append(*buf, 0x48, 0x89, 0x43, 0xF0)
}

func emitOver(buf *[]byte) {
	// mov rax, [rbx-16]
	*buf = append(*buf, 0x48, 0x8B, 0x43, 0xF0)
	emitStoreRaxPushTop(buf)
}

func emitRot(buf *[]byte) {
	// (a b c -- b c a): rax=a@-24, rcx=b@-16, rdx=c@-8
	*buf = append(*buf, 0x48, 0x8B, 0x43, 0xE8) // mov rax,[rbx-24]
	*buf = append(*buf, 0x48, 0x8B, 0x4B, 0xF0) // mov rcx,[rbx-16]
	*buf = append(*buf, 0x48, 0x8B, 0x53, 0xF8) // mov rdx,[rbx-8]
	*buf = append(*buf, 0x48, 0x89, 0x4B, 0xE8) // mov [rbx-24],rcx
	*buf = append(*buf, 0x48, 0x89, 0x53, 0xF0) // mov [rbx-16],rdx
	*buf = append(*buf, 0x48, 0x89, 0x43, 0xF8) // mov [rbx-8],rax
}

func emitNip(buf *[]byte) {
	// (a b -- b)
	*buf = append(*buf, 0x48, 0x8B, 0x43, 0xF8) // mov rax,[rbx-8]
	*buf = append(*buf, 0x48, 0x89, 0x43, 0xF0) // mov [rbx-16],rax
	*buf = append(*buf, 0x48, 0x83, 0xEB, 0x08) // sub rbx,8
}

func emitTuck(buf *[]byte) {
	// (a b -- b a b)
	*buf = append(*buf, 0x48, 0x8B, 0x43, 0xF8) // mov rax,[rbx-8]  (b)
	*buf = append(*buf, 0x48, 0x8B, 0x4B, 0xF0) // mov rcx,[rbx-16] (a)
	*buf = append(*buf, 0x48, 0x89, 0x43, 0xF0) // mov [rbx-16],rax (b)
	*buf = append(*buf, 0x48, 0x89, 0x4B, 0xF8) // mov [rbx-8],rcx  (a)
	emitStoreRaxPushTop(buf)                    // push rax (b)
}

// emitPick copies the item n slots below the current top to the top
// ([rbx-8*(n+2)]); n is a compile-time constant baked into the Mid-IR by
// the frontend, never a runtime-popped value, so a fixed displacement
// suffices.
func emitPick(buf *[]byte, n uint8) {
	disp := -int8(8 * (int(n) + 2))
	*buf = append(*buf, 0x48, 0x8B, 0x43, byte(disp))
	emitStoreRaxPushTop(buf)
}

// emitRoll removes the item n slots below the top and re-pushes it,
// shifting the intervening items down by one slot. n is compile-time
// constant; for small n (the only values the frontend ever emits) this
// unrolls into a fixed sequence rather than a runtime loop.
func emitRoll(buf *[]byte, n uint8) {
	if n == 0 {
		return
	}
	base := -int8(8 * (int(n) + 1))
	// rax = item to roll
	*buf = append(*buf, 0x48, 0x8B, 0x43, byte(base))
	for i := int(n); i > 0; i-- {
		srcDisp := byte(base + int8(8*(int(n)-i+1)))
		dstDisp := byte(base + int8(8*(int(n)-i)))
		*buf = append(*buf, 0x48, 0x8B, 0x4B, srcDisp) // mov rcx,[rbx+srcDisp]
		*buf = append(*buf, 0x48, 0x89, 0x4B, dstDisp) // mov [rbx+dstDisp],rcx
	}
	// rax now goes to the top slot, rbx unchanged
	*buf = append(*buf, 0x48, 0x89, 0x43, 0xF8) // mov [rbx-8],rax
}

// emitBinArith computes rax OP rcx where rcx is the popped top (b) and
// rax is the next (a), i.e. "a b OP", then pushes the result. opcode is
// the one-byte r/m64,r64 form of ADD/OR/AND/XOR.
func emitBinArith(buf *[]byte, opcode byte) {
	emitPopRcx(buf) // b
	emitPopRax(buf) // a
	// REX.W + opcode /r : op rax, rcx
	*buf = append(*buf, 0x48, opcode, 0xC8)
	emitStoreRaxPushTop(buf)
}

func emitSub(buf *[]byte) {
	emitPopRcx(buf) // b
	emitPopRax(buf) // a
	// sub rax, rcx
	*buf = append(*buf, 0x48, 0x29, 0xC8)
	emitStoreRaxPushTop(buf)
}

func emitMul(buf *[]byte) {
	emitPopRcx(buf) // b
	emitPopRax(buf) // a
	// imul rax, rcx
	*buf = append(*buf, 0x48, 0x0F, 0xAF, 0xC1)
	emitStoreRaxPushTop(buf)
}

// emitDivMod computes a / b (or a mod b when mod is true): b is popped
// first (top), a second. Division by a runtime zero is left to the
// hardware #DE fault rather than checked here — the optimizer's constant
// folder already refuses to fold a known-zero divisor at compile time
// (internal/optimizer/constant_fold.go), so this is purely a runtime
// concern, same as every native Forth code generator.
func emitDivMod(buf *[]byte, mod bool) {
	emitPopRcx(buf) // b
	emitPopRax(buf) // a
	// cqo (sign-extend rax into rdx:rax)
	*buf = append(*buf, 0x48, 0x99)
	// idiv rcx
	*buf = append(*buf, 0x48, 0xF7, 0xF9)
	if mod {
		// mov rax, rdx (remainder)
		*buf = append(*buf, 0x48, 0x89, 0xD0)
	}
	emitStoreRaxPushTop(buf)
}

func emitUnaryNeg(buf *[]byte) {
	emitPopRax(buf)
	// neg rax
	*buf = append(*buf, 0x48, 0xF7, 0xD8)
	emitStoreRaxPushTop(buf)
}

func emitAbs(buf *[]byte) {
	emitPopRax(buf)
	// mov rcx, rax; neg rcx; cmovl rax, rcx  (rax = rax < 0 ? -rax : rax)
	*buf = append(*buf, 0x48, 0x89, 0xC1)
	*buf = append(*buf, 0x48, 0xF7, 0xD9)
	*buf = append(*buf, 0x48, 0x0F, 0x4C, 0xC1)
	emitStoreRaxPushTop(buf)
}

func emitNot(buf *[]byte) {
	emitPopRax(buf)
	// not rax
	*buf = append(*buf, 0x48, 0xF7, 0xD0)
	emitStoreRaxPushTop(buf)
}

// emitShift computes a << b or a >> b (arithmetic); b (the shift count)
// is popped into rcx, since sar/shl by a variable count require it
// there under the amd64 encoding.
func emitShift(buf *[]byte, left bool) {
	emitPopRcx(buf) // b (count)
	emitPopRax(buf) // a
	if left {
		// shl rax, cl
		*buf = append(*buf, 0x48, 0xD3, 0xE0)
	} else {
		// sar rax, cl
		*buf = append(*buf, 0x48, 0xD3, 0xF8)
	}
	emitStoreRaxPushTop(buf)
}

func emitAddImmTop(buf *[]byte, delta int8) {
	emitPopRax(buf)
	// add rax, imm8 (sign-extended)
	*buf = append(*buf, 0x48, 0x83, 0xC0, byte(delta))
	emitStoreRaxPushTop(buf)
}

func emitShiftImmTop(buf *[]byte, left bool, count uint8) {
	emitPopRax(buf)
	if left {
		*buf = append(*buf, 0x48, 0xC1, 0xE0, count) // shl rax, imm8
	} else {
		*buf = append(*buf, 0x48, 0xC1, 0xF8, count) // sar rax, imm8
	}
	emitStoreRaxPushTop(buf)
}

// emitCompare computes a CC b (b popped first, a second), encoding the
// boolean as -1 (true) / 0 (false) per the Mid-IR's boolVal convention
// (internal/optimizer/constant_fold.go).
func emitCompare(buf *[]byte, cc condCode) {
	emitPopRcx(buf) // b
	emitPopRax(buf) // a
	// cmp rax, rcx
	*buf = append(*buf, 0x48, 0x39, 0xC8)
	emitSetccNegToRax(buf, cc)
	emitStoreRaxPushTop(buf)
}

func emitCompareZero(buf *[]byte, cc condCode) {
	emitPopRax(buf)
	emitCmpRaxZero(buf)
	emitSetccNegToRax(buf, cc)
	emitStoreRaxPushTop(buf)
}

func emitCmpRaxZero(buf *[]byte) {
	// cmp rax, 0 (test rax,rax would clobber flags identically and be
	// shorter, but cmp reads more plainly against the source op name)
	*buf = append(*buf, 0x48, 0x83, 0xF8, 0x00)
}

// emitSetccNegToRax materializes the flag into rax as 0/1 then negates it
// to 0/-1, leaving the boolean in rax.
func emitSetccNegToRax(buf *[]byte, cc condCode) {
	var setccOp byte
	switch cc {
	case ccEqual:
		setccOp = 0x94 // sete
	case ccNotEqual:
		setccOp = 0x95 // setne
	case ccLess:
		setccOp = 0x9C // setl
	case ccLessEq:
		setccOp = 0x9E // setle
	case ccGreater:
		setccOp = 0x9F // setg
	case ccGreaterEq:
		setccOp = 0x9D // setge
	}
	// setCC al
	*buf = append(*buf, 0x0F, setccOp, 0xC0)
	// movzx eax, al
	*buf = append(*buf, 0x0F, 0xB6, 0xC0)
	// neg rax
	*buf = append(*buf, 0x48, 0xF7, 0xD8)
}

// emitLoad dereferences the address on top of the data stack and pushes
// the loaded value (width 8 for @, 1 for c@, zero-extended).
func emitLoad(buf *[]byte, width int) {
	emitPopRax(buf)
	if width == 1 {
		// movzx rax, byte [rax]
		*buf = append(*buf, 0x48, 0x0F, 0xB6, 0x00)
	} else {
		// mov rax, [rax]
		*buf = append(*buf, 0x48, 0x8B, 0x00)
	}
	emitStoreRaxPushTop(buf)
}

// emitStore pops "value addr" (addr on top, per the source language's
// "value addr !" order) and stores value at addr, width 8 for ! or 1
// for c!.
func emitStore(buf *[]byte, width int) {
	emitPopRax(buf) // addr
	emitPopRcx(buf) // value
	if width == 1 {
		// mov [rax], cl
		*buf = append(*buf, 0x88, 0x08)
	} else {
		// mov [rax], rcx
		*buf = append(*buf, 0x48, 0x89, 0x08)
	}
}

func emitToR(buf *[]byte) {
	emitPopRax(buf) // from data stack
	// mov [r12], rax
	*buf = append(*buf, 0x49, 0x89, 0x04, 0x24)
	// add r12, 8
	*buf = append(*buf, 0x49, 0x83, 0xC4, 0x08)
}

func emitFromR(buf *[]byte) {
	// sub r12, 8
	*buf = append(*buf, 0x49, 0x83, 0xEC, 0x08)
	// mov rax, [r12]
	*buf = append(*buf, 0x49, 0x8B, 0x04, 0x24)
	emitStoreRaxPushTop(buf)
}

func emitRFetch(buf *[]byte) {
	// mov rax, [r12-8]
	*buf = append(*buf, 0x49, 0x8B, 0x44, 0x24, 0xF8)
	emitStoreRaxPushTop(buf)
}

// emitCallRel32Placeholder emits "call rel32" with a zero placeholder
// displacement; the caller records the patch offset in a callFixup for
// the backend to resolve once every function's final address is known.
func emitCallRel32Placeholder(buf *[]byte) {
	*buf = append(*buf, 0xE8, 0, 0, 0, 0)
}

// emitJmpPlaceholder emits "jmp rel32" and returns the byte offset of
// its 4-byte displacement field for later patching.
func emitJmpPlaceholder(buf *[]byte) int {
	*buf = append(*buf, 0xE9, 0, 0, 0, 0)
	return len(*buf) - 4
}

// emitJccPlaceholder emits the two-byte-opcode conditional jump form
// (0F 8x rel32) and returns the displacement field's offset.
func emitJccPlaceholder(buf *[]byte, cc condCode) int {
	var op byte
	switch cc {
	case ccEqual:
		op = 0x84 // je
	case ccNotEqual:
		op = 0x85 // jne
	case ccLess:
		op = 0x8C
	case ccLessEq:
		op = 0x8E
	case ccGreater:
		op = 0x8F
	case ccGreaterEq:
		op = 0x8D
	}
	*buf = append(*buf, 0x0F, op, 0, 0, 0, 0)
	return len(*buf) - 4
}
