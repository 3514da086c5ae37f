package optimizer

import "forthc/internal/ir"

const maxDCEIterations = 8

// EliminateDeadCode runs two kinds of rewrite to a fixpoint (§4.11,
// grounded on original_source's dead_code.rs): trivial-identity stripping
// (dup/drop, swap/swap, bare nop — sequences whose net stack effect is the
// identity) and a generalized liveness collapse, where any pure
// instruction immediately followed by exactly as many Drops as it
// produces is replaced by Drops of its own inputs instead, skipping the
// now-pointless computation. Impure instructions, branches, and labels
// are never touched.
func EliminateDeadCode(instructions []ir.Instruction) ([]ir.Instruction, int) {
	total := 0
	cur := instructions
	for iter := 0; iter < maxDCEIterations; iter++ {
		next, n := dceOnePass(cur)
		total += n
		cur = next
		if n == 0 {
			break
		}
	}
	return cur, total
}

func dceOnePass(instructions []ir.Instruction) ([]ir.Instruction, int) {
	rb := NewRebuilder(len(instructions))
	rewrites := 0
	i := 0
	for i < len(instructions) {
		repl, consumed, ok := matchDeadCode(instructions, i)
		if !ok {
			rb.StartOld(i)
			rb.Emit(instructions[i])
			i++
			continue
		}
		rb.StartOld(i)
		for _, inst := range repl {
			rb.Emit(inst)
		}
		for k := 1; k < consumed; k++ {
			rb.StartOld(i + k)
		}
		rewrites++
		i += consumed
	}
	return rb.Finish(len(instructions)), rewrites
}

func matchDeadCode(ins []ir.Instruction, i int) ([]ir.Instruction, int, bool) {
	inst := ins[i]

	if inst.Op == ir.OpNop {
		return nil, 1, true
	}

	if i+1 < len(ins) {
		a, b := ins[i], ins[i+1]
		if a.Op == ir.OpDup && b.Op == ir.OpDrop {
			return nil, 2, true
		}
		if a.Op == ir.OpSwap && b.Op == ir.OpSwap {
			return nil, 2, true
		}
	}

	if inst.IsPure() {
		eff := inst.StackEffect()
		produced := int(eff.Produced)
		if produced > 0 && i+produced < len(ins) {
			allDrops := true
			for k := 1; k <= produced; k++ {
				if ins[i+k].Op != ir.OpDrop {
					allDrops = false
					break
				}
			}
			if allDrops {
				repl := make([]ir.Instruction, eff.Consumed)
				for k := range repl {
					repl[k] = ir.Simple(ir.OpDrop)
				}
				return repl, 1 + produced, true
			}
		}
	}

	return nil, 0, false
}
