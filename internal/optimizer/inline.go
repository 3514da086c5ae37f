package optimizer

import "forthc/internal/ir"

type inlineThresholds struct{ threshold, maxSites int }

// inlineLevelThresholds pairs each level with (max callee cost, max call
// sites) a callee must fit under to qualify for inlining (§4.10). None
// has no entry, so InlineCalls is a no-op at None; Optimize calls it only
// from Standard up, so the Basic entry applies to direct callers only.
var inlineLevelThresholds = map[OptimizationLevel]inlineThresholds{
	Basic:      {3, 5},
	Standard:   {10, 5},
	Aggressive: {25, 20},
}

// InlineCalls splices inlinable word bodies directly into their call
// sites (§4.10, grounded on original_source's inline.rs): a callee
// qualifies when it isn't directly self-recursive and either carries an
// explicit inline hint or its cost and call-site count both fall under
// the level's threshold. Substitution is one textual copy per call site
// per run; deeper inlining (an inlined callee that itself calls another
// inlinable word) happens across the orchestrator's fixpoint iterations,
// not within a single call to InlineCalls.
func InlineCalls(prog *ir.ForthIR, level OptimizationLevel) int {
	th, ok := inlineLevelThresholds[level]
	if !ok {
		return 0
	}

	callCount := map[string]int{}
	countCalls := func(seq []ir.Instruction) {
		for _, inst := range seq {
			if inst.Op == ir.OpCall {
				callCount[inst.CallName]++
			}
		}
	}
	countCalls(prog.Main)
	for _, w := range prog.Words {
		countCalls(w.Instructions)
	}

	inlinable := map[string]*ir.WordDef{}
	for name, w := range prog.Words {
		if isSelfRecursive(w) {
			continue
		}
		if w.IsInline || (w.Cost <= th.threshold && callCount[name] <= th.maxSites) {
			inlinable[name] = w
		}
	}

	total := 0
	var n int
	prog.Main, n = substituteCalls(prog.Main, inlinable, "")
	total += n
	for name, w := range prog.Words {
		w.Instructions, n = substituteCalls(w.Instructions, inlinable, name)
		total += n
		w.Update()
		prog.Words[name] = w
	}
	return total
}

// isSelfRecursive reports whether w calls itself directly; such words are
// never inlined, a shallow stand-in for full cycle detection that's
// sufficient because InlineCalls only ever splices one level per run.
func isSelfRecursive(w *ir.WordDef) bool {
	for _, inst := range w.Instructions {
		if inst.Op == ir.OpCall && inst.CallName == w.Name {
			return true
		}
	}
	return false
}

// substituteCalls rewrites seq, replacing every call to a word in
// inlinable (other than selfName, the word seq itself belongs to, if
// any) with a copy of that word's instructions, offsetting the callee's
// own absolute branch targets to land correctly in the rebuilt sequence.
func substituteCalls(seq []ir.Instruction, inlinable map[string]*ir.WordDef, selfName string) ([]ir.Instruction, int) {
	rb := NewRebuilder(len(seq))
	count := 0
	for i, inst := range seq {
		rb.StartOld(i)
		if inst.Op == ir.OpCall && inst.CallName != selfName {
			if callee, ok := inlinable[inst.CallName]; ok {
				offset := rb.Len()
				for _, ci := range callee.Instructions {
					if isBranchOp(ci.Op) {
						ci.Target += offset
					}
					rb.EmitRaw(ci)
				}
				count++
				continue
			}
		}
		rb.Emit(inst)
	}
	return rb.Finish(len(seq)), count
}
