package optimizer

import (
	"sort"

	"forthc/internal/ir"
)

// superPattern is one entry in the declarative idiom table (§4.9,
// grounded on original_source's superinstructions.rs): a fixed-length
// window matcher that, on success, returns the single fused instruction
// replacing it.
type superPattern struct {
	name   string
	length int
	match  func(w []ir.Instruction) (ir.Instruction, bool)
}

func opPair(first, second ir.Op, fused ir.Op) func([]ir.Instruction) (ir.Instruction, bool) {
	return func(w []ir.Instruction) (ir.Instruction, bool) {
		if w[0].Op == first && w[1].Op == second {
			return ir.Simple(fused), true
		}
		return ir.Instruction{}, false
	}
}

var superPatterns = []superPattern{
	{"dup-add", 2, opPair(ir.OpDup, ir.OpAdd, ir.OpDupAdd)},
	{"dup-mul", 2, opPair(ir.OpDup, ir.OpMul, ir.OpDupMul)},
	{"over-add", 2, opPair(ir.OpOver, ir.OpAdd, ir.OpOverAdd)},
	{"swap-sub", 2, opPair(ir.OpSwap, ir.OpSub, ir.OpSwapSub)},
	{"nip", 2, opPair(ir.OpSwap, ir.OpDrop, ir.OpNip)},
	{"tuck", 2, opPair(ir.OpOver, ir.OpSwap, ir.OpTuck)},
	{"nop-dup-drop", 2, opPair(ir.OpDup, ir.OpDrop, ir.OpNop)},
	{"nop-swap-swap", 2, opPair(ir.OpSwap, ir.OpSwap, ir.OpNop)},
	{"zero-eq", 2, func(w []ir.Instruction) (ir.Instruction, bool) {
		if w[0].Op == ir.OpLiteral && w[0].IntOperand == 0 && w[1].Op == ir.OpEq {
			return ir.Simple(ir.OpZeroEq), true
		}
		return ir.Instruction{}, false
	}},
}

var superPatternsByLengthDesc = func() []superPattern {
	ps := append([]superPattern(nil), superPatterns...)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].length > ps[j].length })
	return ps
}()

// RecognizeSuperinstructions scans left to right, matching the longest
// pattern available at each position (§4.9) and fusing matches into a
// single instruction. Unmatched instructions pass through unchanged.
func RecognizeSuperinstructions(instructions []ir.Instruction) ([]ir.Instruction, int) {
	rb := NewRebuilder(len(instructions))
	count := 0
	i := 0
	for i < len(instructions) {
		matchedLen := 0
		var replacement ir.Instruction
		for _, p := range superPatternsByLengthDesc {
			if i+p.length > len(instructions) {
				continue
			}
			if repl, ok := p.match(instructions[i : i+p.length]); ok {
				matchedLen = p.length
				replacement = repl
				break
			}
		}
		if matchedLen == 0 {
			rb.StartOld(i)
			rb.Emit(instructions[i])
			i++
			continue
		}
		rb.StartOld(i)
		rb.Emit(replacement)
		for k := 1; k < matchedLen; k++ {
			rb.StartOld(i + k)
		}
		i += matchedLen
		count++
	}
	return rb.Finish(len(instructions)), count
}
