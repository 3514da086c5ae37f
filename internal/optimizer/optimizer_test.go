package optimizer

import (
	"testing"

	"forthc/internal/ir"
	"forthc/internal/types"
)

func TestFoldConstantsArithmetic(t *testing.T) {
	prog := ir.New()
	prog.Main = []ir.Instruction{ir.Literal(2), ir.Literal(3), ir.Simple(ir.OpAdd)}

	n := FoldConstants(prog)
	if n == 0 {
		t.Fatal("expected at least one fold")
	}
	if len(prog.Main) != 1 || prog.Main[0].Op != ir.OpLiteral || prog.Main[0].IntOperand != 5 {
		t.Fatalf("expected [literal 5], got %s", ir.Text(prog.Main))
	}
}

func TestFoldConstantsDivByZeroNotFolded(t *testing.T) {
	prog := ir.New()
	prog.Main = []ir.Instruction{ir.Literal(4), ir.Literal(0), ir.Simple(ir.OpDiv)}

	FoldConstants(prog)
	if len(prog.Main) != 3 {
		t.Fatalf("expected division by a literal zero to stay unfolded, got %s", ir.Text(prog.Main))
	}
	if prog.Main[2].Op != ir.OpDiv {
		t.Errorf("expected the div instruction to survive, got %s", ir.Text(prog.Main))
	}
}

func TestFoldConstantsStopsAtImpureBarrier(t *testing.T) {
	prog := ir.New()
	prog.Main = []ir.Instruction{
		ir.Literal(1), ir.Literal(2), ir.Simple(ir.OpAdd),
		ir.Call("emit"),
		ir.Literal(4), ir.Literal(5), ir.Simple(ir.OpAdd),
	}
	FoldConstants(prog)
	if err := prog.Verify(); err != nil {
		t.Fatalf("Verify failed after fold: %v", err)
	}
	foundThree, foundNine := false, false
	for _, inst := range prog.Main {
		if inst.Op == ir.OpLiteral && inst.IntOperand == 3 {
			foundThree = true
		}
		if inst.Op == ir.OpLiteral && inst.IntOperand == 9 {
			foundNine = true
		}
	}
	if !foundThree || !foundNine {
		t.Errorf("expected folding on both sides of the call barrier, got %s", ir.Text(prog.Main))
	}
}

func TestPeepholeIncDecOne(t *testing.T) {
	out, n := Peephole([]ir.Instruction{ir.Literal(1), ir.Simple(ir.OpAdd)})
	if n != 1 || len(out) != 1 || out[0].Op != ir.OpIncOne {
		t.Fatalf("expected [1+], got %s (n=%d)", ir.Text(out), n)
	}

	out, n = Peephole([]ir.Instruction{ir.Literal(1), ir.Simple(ir.OpSub)})
	if n != 1 || len(out) != 1 || out[0].Op != ir.OpDecOne {
		t.Fatalf("expected [1-], got %s (n=%d)", ir.Text(out), n)
	}
}

func TestPeepholePowerOfTwoShift(t *testing.T) {
	out, _ := Peephole([]ir.Instruction{ir.Literal(8), ir.Simple(ir.OpMul)})
	if len(out) != 2 || out[0].IntOperand != 3 || out[1].Op != ir.OpShl {
		t.Fatalf("expected [3 shl], got %s", ir.Text(out))
	}
}

func TestPeepholeMulTwoSpecialCase(t *testing.T) {
	out, _ := Peephole([]ir.Instruction{ir.Literal(2), ir.Simple(ir.OpMul)})
	if len(out) != 1 || out[0].Op != ir.OpMulTwo {
		t.Fatalf("expected [2*], got %s", ir.Text(out))
	}
}

func TestPeepholeSwapSwapEliminated(t *testing.T) {
	out, n := Peephole([]ir.Instruction{ir.Simple(ir.OpSwap), ir.Simple(ir.OpSwap), ir.Simple(ir.OpReturn)})
	if n != 1 || len(out) != 1 || out[0].Op != ir.OpReturn {
		t.Fatalf("expected [return], got %s", ir.Text(out))
	}
}

func TestRecognizeSuperinstructionsFusesPairs(t *testing.T) {
	out, n := RecognizeSuperinstructions([]ir.Instruction{ir.Simple(ir.OpDup), ir.Simple(ir.OpAdd)})
	if n != 1 || len(out) != 1 || out[0].Op != ir.OpDupAdd {
		t.Fatalf("expected [dup-add], got %s", ir.Text(out))
	}

	out, n = RecognizeSuperinstructions([]ir.Instruction{ir.Literal(0), ir.Simple(ir.OpEq)})
	if n != 1 || len(out) != 1 || out[0].Op != ir.OpZeroEq {
		t.Fatalf("expected [0=], got %s", ir.Text(out))
	}
}

func TestEliminateDeadCodeDupDrop(t *testing.T) {
	out, n := EliminateDeadCode([]ir.Instruction{ir.Literal(7), ir.Simple(ir.OpDup), ir.Simple(ir.OpDrop)})
	if n == 0 || len(out) != 1 || out[0].IntOperand != 7 {
		t.Fatalf("expected [literal 7], got %s", ir.Text(out))
	}
}

func TestEliminateDeadCodeBinopThenDrop(t *testing.T) {
	// add whose sum is immediately discarded collapses to dropping both inputs.
	out, n := EliminateDeadCode([]ir.Instruction{ir.Simple(ir.OpAdd), ir.Simple(ir.OpDrop)})
	if n == 0 || len(out) != 2 || out[0].Op != ir.OpDrop || out[1].Op != ir.OpDrop {
		t.Fatalf("expected [drop drop], got %s", ir.Text(out))
	}
}

func TestEliminateDeadCodePreservesBranchTargets(t *testing.T) {
	// literal 0 is dead (immediately dropped); the branch beyond it must
	// still land on the return.
	instructions := []ir.Instruction{
		ir.Literal(0), ir.Simple(ir.OpDrop),
		ir.Branch(3),
		ir.Simple(ir.OpNop),
		ir.Simple(ir.OpReturn),
	}
	out, _ := EliminateDeadCode(instructions)
	var branch ir.Instruction
	foundBranch := false
	foundReturn := false
	for _, inst := range out {
		if inst.Op == ir.OpBranch {
			branch = inst
			foundBranch = true
		}
		if inst.Op == ir.OpReturn {
			foundReturn = true
		}
	}
	if !foundBranch || !foundReturn {
		t.Fatalf("expected branch and return to survive, got %s", ir.Text(out))
	}
	if out[branch.Target].Op != ir.OpReturn {
		t.Errorf("expected branch to still target the return, got %s pointing at %s", ir.Text(out), out[branch.Target].Op)
	}
}

func TestInlineCallsSplicesSmallWord(t *testing.T) {
	prog := ir.New()
	prog.AddWord(ir.NewWordDef("double", []ir.Instruction{ir.Simple(ir.OpDup), ir.Simple(ir.OpAdd)}))
	prog.Main = []ir.Instruction{ir.Literal(5), ir.Call("double"), ir.Simple(ir.OpReturn)}

	n := InlineCalls(prog, Standard)
	if n != 1 {
		t.Fatalf("expected 1 call site inlined, got %d", n)
	}
	want := []ir.Op{ir.OpLiteral, ir.OpDup, ir.OpAdd, ir.OpReturn}
	if len(prog.Main) != len(want) {
		t.Fatalf("expected %d instructions, got %s", len(want), ir.Text(prog.Main))
	}
	for i, op := range want {
		if prog.Main[i].Op != op {
			t.Errorf("instruction %d: expected %s, got %s", i, op, prog.Main[i].Op)
		}
	}
}

func TestInlineCallsSkipsSelfRecursiveWords(t *testing.T) {
	prog := ir.New()
	prog.AddWord(ir.NewWordDef("loopy", []ir.Instruction{ir.Call("loopy")}))
	prog.Main = []ir.Instruction{ir.Call("loopy")}

	n := InlineCalls(prog, Aggressive)
	if n != 0 {
		t.Fatalf("expected self-recursive word not to be inlined, got %d sites", n)
	}
}

func TestInlineCallsOffsetsCalleeBranches(t *testing.T) {
	prog := ir.New()
	// callee: branch past a nop to its own return.
	callee := []ir.Instruction{
		ir.Branch(2),
		ir.Simple(ir.OpNop),
		ir.Simple(ir.OpReturn),
	}
	prog.AddWord(ir.NewWordDef("skip", callee))
	prog.Main = []ir.Instruction{ir.Simple(ir.OpNop), ir.Call("skip")}

	InlineCalls(prog, Standard)
	var branch ir.Instruction
	found := false
	for _, inst := range prog.Main {
		if inst.Op == ir.OpBranch {
			branch = inst
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the spliced branch to survive, got %s", ir.Text(prog.Main))
	}
	if prog.Main[branch.Target].Op != ir.OpReturn {
		t.Errorf("expected offset branch to land on the spliced return, got %s", ir.Text(prog.Main))
	}
}

func TestFlushCacheInsertedBeforeCall(t *testing.T) {
	out := FlushCacheInsert([]ir.Instruction{ir.Simple(ir.OpDup), ir.Call("foo")})
	if len(out) != 3 {
		t.Fatalf("expected [dup flush-cache call], got %s", ir.Text(out))
	}
	if out[0].Op != ir.OpDup || out[1].Op != ir.OpFlushCache || out[2].Op != ir.OpCall {
		t.Errorf("unexpected sequence: %s", ir.Text(out))
	}
}

func TestFlushCacheCachedDupWhenWithinWindow(t *testing.T) {
	// the sequence ends with both dups still cached, so a trailing flush
	// closes out the window for whatever comes next.
	out := FlushCacheInsert([]ir.Instruction{ir.Simple(ir.OpDup), ir.Simple(ir.OpDup)})
	if len(out) != 3 || out[0].Op != ir.OpDup || out[1].Op != ir.OpCachedDup || out[2].Op != ir.OpFlushCache {
		t.Fatalf("expected the second dup to be cached with a trailing flush, got %s", ir.Text(out))
	}
}

func TestSpecializeCreatesMonomorphicCopiesPerSignature(t *testing.T) {
	prog := ir.New()
	prog.AddWord(ir.NewWordDef("id", nil))
	prog.Main = []ir.Instruction{ir.Call("id"), ir.Call("id")}

	results := TypeInferenceResults{
		{Sequence: "", Index: 0}: {types.T(types.Int)},
		{Sequence: "", Index: 1}: {types.T(types.Float)},
	}
	stats := Specialize(prog, results)

	if stats.WordsSpecialized != 1 || stats.CopiesCreated != 2 || stats.CallSitesRewritten != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if prog.Main[0].CallName != "id$int" || prog.Main[1].CallName != "id$float" {
		t.Errorf("expected mangled call names, got %q and %q", prog.Main[0].CallName, prog.Main[1].CallName)
	}
	if _, ok := prog.GetWord("id$int"); !ok {
		t.Error("expected id$int to be defined")
	}
	if _, ok := prog.GetWord("id$float"); !ok {
		t.Error("expected id$float to be defined")
	}
}

func TestFusePatternsReplacesHotWindow(t *testing.T) {
	profile := NewProfileData()
	profile.Record([]ir.Op{ir.OpDup, ir.OpAdd}, 20000)

	out, stats := FusePatterns([]ir.Instruction{ir.Simple(ir.OpDup), ir.Simple(ir.OpAdd), ir.Simple(ir.OpReturn)}, profile)
	if stats.FusionsApplied != 1 {
		t.Fatalf("expected one fusion, got %+v", stats)
	}
	if len(out) != 2 || out[0].Op != ir.OpCall || out[1].Op != ir.OpReturn {
		t.Fatalf("expected [call(fused) return], got %s", ir.Text(out))
	}
}

func TestFusePatternsLeavesColdWindowsAlone(t *testing.T) {
	profile := NewProfileData()
	out, stats := FusePatterns([]ir.Instruction{ir.Simple(ir.OpDup), ir.Simple(ir.OpAdd)}, profile)
	if stats.FusionsApplied != 0 || len(out) != 2 {
		t.Fatalf("expected no fusion without profile data, got %+v / %s", stats, ir.Text(out))
	}
}

func TestOptimizerReachesFixpointAndVerifies(t *testing.T) {
	prog := ir.New()
	prog.Main = []ir.Instruction{
		ir.Literal(2), ir.Literal(3), ir.Simple(ir.OpAdd),
		ir.Simple(ir.OpDup), ir.Simple(ir.OpDrop),
		ir.Literal(1), ir.Simple(ir.OpAdd),
		ir.Simple(ir.OpReturn),
	}

	opt := New(Aggressive)
	stats, err := opt.Optimize(prog)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if stats.Iterations == 0 || stats.Iterations > maxFixpointIterations {
		t.Errorf("unexpected iteration count: %d", stats.Iterations)
	}
	if err := prog.Verify(); err != nil {
		t.Errorf("Verify failed after optimization: %v", err)
	}
	if len(prog.Main) != 3 {
		t.Errorf("expected folding+dce+stack-cache to collapse to [literal 6, flush-cache, return], got %s", ir.Text(prog.Main))
	}
}

func TestOptimizerNoneLevelOnlyVerifies(t *testing.T) {
	prog := ir.New()
	prog.Main = []ir.Instruction{ir.Literal(1), ir.Literal(2), ir.Simple(ir.OpAdd), ir.Simple(ir.OpReturn)}
	before := append([]ir.Instruction(nil), prog.Main...)

	opt := New(None)
	if _, err := opt.Optimize(prog); err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if len(prog.Main) != len(before) {
		t.Errorf("expected OptimizationLevel None to leave Main untouched, got %s", ir.Text(prog.Main))
	}
}
