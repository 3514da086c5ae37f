package jit

import (
	"testing"

	"forthc/internal/ir"
)

func mustBackend(t *testing.T, words map[string][]ir.Instruction) map[string]*CompiledFunction {
	t.Helper()
	b := New()
	for name := range words {
		if err := b.Declare(name); err != nil {
			t.Fatalf("Declare(%q): %v", name, err)
		}
	}
	for name, body := range words {
		if err := b.Define(name, body); err != nil {
			t.Fatalf("Define(%q): %v", name, err)
		}
	}
	fns, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return fns
}

func TestAddReturnsSum(t *testing.T) {
	fns := mustBackend(t, map[string][]ir.Instruction{
		"main": {ir.Literal(2), ir.Literal(3), ir.Simple(ir.OpAdd), ir.Simple(ir.OpReturn)},
	})
	got, err := fns["main"].Call()
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestArithmeticChain(t *testing.T) {
	// (10 4 -) 3 * = 18
	fns := mustBackend(t, map[string][]ir.Instruction{
		"main": {
			ir.Literal(10), ir.Literal(4), ir.Simple(ir.OpSub),
			ir.Literal(3), ir.Simple(ir.OpMul),
			ir.Simple(ir.OpReturn),
		},
	})
	got, _ := fns["main"].Call()
	if got != 18 {
		t.Fatalf("got %d, want 18", got)
	}
}

func TestDupAndDrop(t *testing.T) {
	fns := mustBackend(t, map[string][]ir.Instruction{
		"main": {
			ir.Literal(7), ir.Simple(ir.OpDup), ir.Literal(100), ir.Simple(ir.OpDrop),
			ir.Simple(ir.OpAdd), ir.Simple(ir.OpReturn),
		},
	})
	got, _ := fns["main"].Call()
	if got != 14 {
		t.Fatalf("got %d, want 14", got)
	}
}

func TestComparisonEncodesMinusOneForTrue(t *testing.T) {
	fns := mustBackend(t, map[string][]ir.Instruction{
		"main": {ir.Literal(5), ir.Literal(5), ir.Simple(ir.OpEq), ir.Simple(ir.OpReturn)},
	})
	got, _ := fns["main"].Call()
	if got != -1 {
		t.Fatalf("got %d, want -1 (true)", got)
	}
}

func TestBranchIfSkipsWhenFalse(t *testing.T) {
	// 0 if (branch-if-not skip) 99 else 0; skip: 42
	fns := mustBackend(t, map[string][]ir.Instruction{
		"main": {
			ir.Literal(0),          // 0
			ir.BranchIfNot(3),      // 1: pop 0 (false) -> jump to 3
			ir.Literal(99),         // 2 (skipped)
			ir.Literal(42),         // 3
			ir.Simple(ir.OpReturn), // 4
		},
	})
	got, _ := fns["main"].Call()
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestInterWordCall(t *testing.T) {
	fns := mustBackend(t, map[string][]ir.Instruction{
		"double": {ir.Literal(2), ir.Simple(ir.OpMul), ir.Simple(ir.OpReturn)},
		"main": {
			ir.Literal(21),
			ir.Call("double"),
			ir.Simple(ir.OpReturn),
		},
	})
	got, err := fns["main"].Call()
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestToRFromR(t *testing.T) {
	// 5 >r 9 r> + = 14
	fns := mustBackend(t, map[string][]ir.Instruction{
		"main": {
			ir.Literal(5), ir.Simple(ir.OpToR),
			ir.Literal(9),
			ir.Simple(ir.OpFromR),
			ir.Simple(ir.OpAdd),
			ir.Simple(ir.OpReturn),
		},
	})
	got, _ := fns["main"].Call()
	if got != 14 {
		t.Fatalf("got %d, want 14", got)
	}
}

func TestDeclareAfterFinalizeRejected(t *testing.T) {
	b := New()
	if err := b.Declare("w"); err != nil {
		t.Fatal(err)
	}
	if err := b.Define("w", []ir.Instruction{ir.Simple(ir.OpReturn)}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Finalize(); err != nil {
		t.Fatal(err)
	}
	err := b.Declare("late")
	if err == nil {
		t.Fatal("expected Declare after Finalize to fail")
	}
	if _, ok := err.(*PhaseError); !ok {
		t.Fatalf("expected *PhaseError, got %T: %v", err, err)
	}
	_ = b.Close()
}

func TestFinalizeRejectsCallToUndeclaredWord(t *testing.T) {
	b := New()
	_ = b.Declare("main")
	_ = b.Define("main", []ir.Instruction{ir.Call("nowhere"), ir.Simple(ir.OpReturn)})
	if _, err := b.Finalize(); err == nil {
		t.Fatal("expected Finalize to reject a call to an undeclared word")
	}
}

func TestDefineBeforeDeclareRejected(t *testing.T) {
	b := New()
	if err := b.Define("w", []ir.Instruction{ir.Simple(ir.OpReturn)}); err == nil {
		t.Fatal("expected Define before Declare to fail")
	}
}

func TestFloatLiteralUnsupported(t *testing.T) {
	b := New()
	_ = b.Declare("main")
	if err := b.Define("main", []ir.Instruction{ir.FloatLiteral(1.5), ir.Simple(ir.OpReturn)}); err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	if _, err := b.Finalize(); err == nil {
		t.Fatal("expected float literal to be rejected by the fast-compile backend at Finalize")
	}
}
