package ir

import "testing"

func TestStackEffectComposition(t *testing.T) {
	dup := NewStackEffect(1, 2)
	add := NewStackEffect(2, 1)
	composed := dup.Compose(add)
	if composed.Consumed != 1 || composed.Produced != 1 {
		t.Errorf("expected (1--1), got %s", composed)
	}
}

func TestInstructionStackEffect(t *testing.T) {
	if e := Simple(OpDup).StackEffect(); e.Consumed != 1 || e.Produced != 2 {
		t.Errorf("dup: expected (1--2), got %s", e)
	}
	if e := Literal(42).StackEffect(); e.Consumed != 0 || e.Produced != 1 {
		t.Errorf("literal: expected (0--1), got %s", e)
	}
}

func TestParseSimple(t *testing.T) {
	prog, err := Parse("1 2 + dup *")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(prog.Main) != 5 {
		t.Fatalf("expected 5 instructions, got %d", len(prog.Main))
	}
	if v, ok := prog.Main[0].AsConstant(); !ok || v != 1 {
		t.Errorf("expected first instruction to be literal 1, got %+v", prog.Main[0])
	}
	if prog.Main[2].Op != OpAdd {
		t.Errorf("expected third instruction to be +, got %s", prog.Main[2].Op)
	}
}

func TestWordDefStackEffect(t *testing.T) {
	w := NewWordDef("square", []Instruction{Simple(OpDup), Simple(OpMul)})
	if w.StackEffect.Consumed != 1 || w.StackEffect.Produced != 1 {
		t.Errorf("expected (1--1), got %s", w.StackEffect)
	}
}

func TestVerifyValidSequence(t *testing.T) {
	prog, err := Parse("1 2 + 3 *")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := prog.Verify(); err != nil {
		t.Errorf("expected valid sequence, got %v", err)
	}
}

func TestVerifyUnderflow(t *testing.T) {
	prog := New()
	prog.Main = []Instruction{Simple(OpAdd)}
	err := prog.Verify()
	if err == nil {
		t.Fatal("expected an underflow error")
	}
	if ve, ok := err.(*VerifyError); !ok || ve.Kind != "underflow" {
		t.Errorf("expected *VerifyError{Kind: underflow}, got %v", err)
	}
}

func TestTextRoundTrip(t *testing.T) {
	prog, err := Parse("1 2 +")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := Text(prog.Main); got != "1 2 +" {
		t.Errorf("expected %q, got %q", "1 2 +", got)
	}
}
