package llopt

import fir "forthc/internal/ir"

// blockBoundaries finds every Mid-IR instruction index that must begin a
// new LLVM basic block: index 0, any branch's target, and the
// instruction immediately following any branch (fallthrough after a
// conditional, or dead code after an unconditional one — LLVM requires
// every block to end in exactly one terminator, so even an unreachable
// fallthrough needs its own block to hold that terminator). Grounded on
// original_source/compiler/backend/src/codegen/control_flow.rs's
// block-lookup-map: that pass builds the same kind of index→block table
// before emitting a single instruction, because Cranelift's (and here,
// LLVM's) IR is block-addressed while Mid-IR is not.
func blockBoundaries(instructions []fir.Instruction) []int {
	isBoundary := make(map[int]bool)
	isBoundary[0] = true
	for i, inst := range instructions {
		switch inst.Op {
		case fir.OpBranch, fir.OpBranchIf, fir.OpBranchIfNot:
			isBoundary[inst.Target] = true
			if i+1 < len(instructions) {
				isBoundary[i+1] = true
			}
		}
	}
	bounds := make([]int, 0, len(isBoundary))
	for idx := range isBoundary {
		bounds = append(bounds, idx)
	}
	sortInts(bounds)
	return bounds
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// blockIndexAt returns which block (by position in bounds) instruction
// index i belongs to.
func blockIndexAt(bounds []int, i int) int {
	lo, hi := 0, len(bounds)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if bounds[mid] <= i {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
