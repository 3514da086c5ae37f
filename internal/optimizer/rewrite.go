// Package optimizer implements the mid-IR optimization pipeline (§4.7-§4.15):
// a fixed, level-ordered sequence of passes over internal/ir's flat
// instruction lists, run to a fixpoint.
package optimizer

import "forthc/internal/ir"

func isBranchOp(op ir.Op) bool {
	return op == ir.OpBranch || op == ir.OpBranchIf || op == ir.OpBranchIfNot
}

// Remap tracks where every old instruction index lands in a rebuilt
// sequence, so a pass that folds, fuses, inlines, or deletes instructions
// can still repoint every Branch/BranchIf/BranchIfNot's Target field
// correctly. Target is a raw absolute instruction index (see ir.go), not a
// block label, so any pass that changes the instruction count must run
// through this before the rewritten sequence is usable.
//
// Usage: walk the old sequence in order; before emitting anything for old
// index i (whether i survives untouched, is replaced, or is dropped
// entirely), call Mark(i, len(out)). Once every old index up to and
// including len(old) has been marked, call Apply to fix up Target fields.
type Remap struct {
	table []int
}

// NewRemap prepares a Remap for a sequence of oldLen instructions. Index
// oldLen itself is a valid mark target, covering branches to one-past-the-
// end (a fallthrough out of the final block).
func NewRemap(oldLen int) *Remap {
	return &Remap{table: make([]int, oldLen+1)}
}

// Mark records that old index oldIndex begins at newIndex in the rebuilt
// sequence.
func (r *Remap) Mark(oldIndex, newIndex int) {
	r.table[oldIndex] = newIndex
}

// At translates an old instruction index to its new position.
func (r *Remap) At(oldIndex int) int {
	return r.table[oldIndex]
}

// Apply rewrites every branch in out whose original Target was recorded in
// oldTargets (keyed by the branch's position in out) to point at its
// remapped position instead.
func Apply(out []ir.Instruction, oldTargets map[int]int, r *Remap) {
	for i := range out {
		if !isBranchOp(out[i].Op) {
			continue
		}
		if oldTarget, ok := oldTargets[i]; ok {
			out[i].Target = r.At(oldTarget)
		}
	}
}

// Rebuilder is a small helper around Remap + oldTargets bookkeeping for the
// common case of a pass that walks a sequence index by index, possibly
// emitting zero or more replacement instructions per old index.
type Rebuilder struct {
	out        []ir.Instruction
	remap      *Remap
	oldTargets map[int]int
}

func NewRebuilder(oldLen int) *Rebuilder {
	return &Rebuilder{remap: NewRemap(oldLen), oldTargets: make(map[int]int)}
}

// StartOld must be called with the old index about to be processed, before
// any instructions derived from it are appended.
func (rb *Rebuilder) StartOld(oldIndex int) {
	rb.remap.Mark(oldIndex, len(rb.out))
}

// Emit appends inst to the rebuilt sequence, preserving its old Target (if
// it is a branch) for later remapping.
func (rb *Rebuilder) Emit(inst ir.Instruction) {
	if isBranchOp(inst.Op) {
		rb.oldTargets[len(rb.out)] = inst.Target
	}
	rb.out = append(rb.out, inst)
}

// Finish marks the end-of-sequence position and returns the rebuilt
// instructions with every branch Target remapped.
func (rb *Rebuilder) Finish(oldLen int) []ir.Instruction {
	rb.remap.Mark(oldLen, len(rb.out))
	Apply(rb.out, rb.oldTargets, rb.remap)
	return rb.out
}

// Len reports the current length of the rebuilt sequence, used by callers
// (inlining) that need to know where a splice is about to land so they
// can offset the spliced text's own branch targets.
func (rb *Rebuilder) Len() int { return len(rb.out) }

// EmitRaw appends inst with its Target already resolved to a final
// absolute index, bypassing old-sequence branch bookkeeping. Used when
// splicing in instructions that never belonged to the sequence being
// rebuilt (an inlined callee's body), whose targets the caller has
// already offset into the new sequence's coordinate space.
func (rb *Rebuilder) EmitRaw(inst ir.Instruction) {
	rb.out = append(rb.out, inst)
}
