package types

import (
	"testing"

	"forthc/internal/ast"
)

func wordRef(name string) ast.Word {
	return ast.Word{Kind: ast.KindWordRef, WordRef: name}
}

func intLit(v int64) ast.Word {
	return ast.Word{Kind: ast.KindIntLiteral, IntLiteral: v}
}

func TestInferArithmeticNoInputs(t *testing.T) {
	inf := NewInference()
	effect, err := inf.InferSequence([]ast.Word{intLit(2), intLit(3), wordRef("+")})
	if err != nil {
		t.Fatalf("InferSequence failed: %v", err)
	}
	if len(effect.Inputs) != 0 || len(effect.Outputs) != 1 {
		t.Errorf("expected (--1), got %s", effect)
	}
}

func TestInferDupDoublesTop(t *testing.T) {
	inf := NewInference()
	effect, err := inf.InferSequence([]ast.Word{wordRef("dup")})
	if err != nil {
		t.Fatalf("InferSequence failed: %v", err)
	}
	if len(effect.Inputs) != 1 || len(effect.Outputs) != 2 {
		t.Errorf("expected (1--2), got %s", effect)
	}
}

func TestInferSwapBorrowsTwoInputs(t *testing.T) {
	inf := NewInference()
	effect, err := inf.InferSequence([]ast.Word{wordRef("swap")})
	if err != nil {
		t.Fatalf("InferSequence failed: %v", err)
	}
	if len(effect.Inputs) != 2 || len(effect.Outputs) != 2 {
		t.Errorf("expected (2--2), got %s", effect)
	}
}

func TestInferUserDefinition(t *testing.T) {
	inf := NewInference()
	body := []ast.Word{intLit(2), wordRef("*")}
	if err := inf.AddDefinition("double", nil, body); err != nil {
		t.Fatalf("AddDefinition failed: %v", err)
	}
	effect, err := inf.InferSequence([]ast.Word{wordRef("double")})
	if err != nil {
		t.Fatalf("InferSequence(double) failed: %v", err)
	}
	if len(effect.Inputs) != 1 || len(effect.Outputs) != 1 {
		t.Errorf("expected (1--1) for double, got %s", effect)
	}
}

func TestInferIfBranchArityMismatchFails(t *testing.T) {
	inf := NewInference()
	ifWord := ast.Word{
		Kind: ast.KindIf,
		Then: []ast.Word{intLit(1), intLit(2)},
		Else: []ast.Word{intLit(1)},
	}
	_, err := inf.InferSequence([]ast.Word{intLit(0), wordRef("0="), ifWord})
	if err == nil {
		t.Fatal("expected branch arity mismatch to fail")
	}
}

func TestInferIfBalancedBranches(t *testing.T) {
	inf := NewInference()
	ifWord := ast.Word{
		Kind: ast.KindIf,
		Then: []ast.Word{wordRef("negate")},
		Else: []ast.Word{wordRef("abs")},
	}
	effect, err := inf.InferSequence([]ast.Word{intLit(0), wordRef("0<"), ifWord})
	if err != nil {
		t.Fatalf("InferSequence failed: %v", err)
	}
	if len(effect.Outputs) != 1 {
		t.Errorf("expected one output, got %s", effect)
	}
}

func TestInferDoLoopConsumesTwoBounds(t *testing.T) {
	inf := NewInference()
	loop := ast.Word{
		Kind: ast.KindDoLoop,
		Body: []ast.Word{wordRef("i"), wordRef(".")},
	}
	effect, err := inf.InferSequence([]ast.Word{intLit(10), intLit(0), loop})
	if err != nil {
		t.Fatalf("InferSequence failed: %v", err)
	}
	if len(effect.Inputs) != 0 || len(effect.Outputs) != 0 {
		t.Errorf("expected (--), got %s", effect)
	}
}

func TestUnifyBoolWithInt(t *testing.T) {
	subst := NewSubstitution()
	if _, err := Unify(T(Bool), T(Int), subst); err != nil {
		t.Errorf("expected Bool to unify with Int: %v", err)
	}
}

func TestUnifyMismatchFails(t *testing.T) {
	subst := NewSubstitution()
	if _, err := Unify(T(Int), T(String), subst); err == nil {
		t.Error("expected Int/String unification to fail")
	}
}

func TestUnifyOccursCheck(t *testing.T) {
	subst := NewSubstitution()
	v := NewVar(0, "a")
	subst[0] = NewVar(1, "b")
	if _, err := Unify(NewVar(1, "b"), v, subst); err != nil {
		t.Errorf("unexpected failure resolving chained vars: %v", err)
	}
}
