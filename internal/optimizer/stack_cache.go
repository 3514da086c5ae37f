package optimizer

import "forthc/internal/ir"

// cacheWindowSize is the number of top-of-stack slots the fast-compile
// backend keeps in dedicated registers (TOS/NOS/3OS, §4.13, §4.15).
const cacheWindowSize = 3

func clampCacheDepth(d int) int {
	switch {
	case d > cacheWindowSize:
		return cacheWindowSize
	case d < 0:
		return 0
	default:
		return d
	}
}

// FlushCacheInsert annotates a sequence with the virtual stack-register
// cache hints the fast-compile backend consumes: Dup/Swap/Over become
// CachedDup/CachedSwap/CachedOver when their operands are still within
// the tracked window, and a FlushCache is inserted before any instruction
// that can't assume the cache's register contents are still valid —
// anything impure (a call, return, branch, load, store, or return-stack
// operation; see ir.Instruction.IsPure). An existing FlushCache is kept
// as is and resets the tracked depth, so a second run adds no flush. A
// final flush closes out any still-cached
// values at the end of the sequence, since a caller picking the sequence
// back up has no knowledge of the cache's state.
func FlushCacheInsert(instructions []ir.Instruction) []ir.Instruction {
	rb := NewRebuilder(len(instructions))
	depth := 0

	for i, inst := range instructions {
		rb.StartOld(i)

		if inst.Op == ir.OpFlushCache {
			rb.Emit(inst)
			depth = 0
			continue
		}

		if !inst.IsPure() {
			if depth > 0 {
				rb.Emit(ir.Simple(ir.OpFlushCache))
				depth = 0
			}
			rb.Emit(inst)
			continue
		}

		switch inst.Op {
		case ir.OpDup:
			if depth >= 1 {
				rb.Emit(ir.CachedDup(0))
			} else {
				rb.Emit(inst)
			}
			depth = clampCacheDepth(depth + 1)

		case ir.OpSwap:
			if depth >= 2 {
				rb.Emit(ir.CachedSwap(0))
				continue
			}
			if depth > 0 {
				rb.Emit(ir.Simple(ir.OpFlushCache))
			}
			rb.Emit(inst)
			depth = 0

		case ir.OpOver:
			if depth >= 2 {
				rb.Emit(ir.CachedOver(0))
				depth = clampCacheDepth(depth + 1)
				continue
			}
			if depth > 0 {
				rb.Emit(ir.Simple(ir.OpFlushCache))
			}
			rb.Emit(inst)
			depth = 0

		default:
			eff := inst.StackEffect()
			rb.Emit(inst)
			depth = clampCacheDepth(depth - int(eff.Consumed) + int(eff.Produced))
		}
	}

	if depth > 0 {
		rb.Emit(ir.Simple(ir.OpFlushCache))
	}

	return rb.Finish(len(instructions))
}
