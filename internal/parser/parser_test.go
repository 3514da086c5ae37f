package parser

import (
	"testing"

	"forthc/internal/ast"
	"forthc/internal/lexer"
)

func parseSource(t *testing.T, source string) *ast.Program {
	t.Helper()
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize(%q) failed: %v", source, err)
	}
	prog, err := Parse(tokens)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", source, err)
	}
	return prog
}

func assertParseError(t *testing.T, source string) {
	t.Helper()
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return // a lex error also counts as "fails to parse"
	}
	if _, err := Parse(tokens); err == nil {
		t.Errorf("expected parse to fail for %q", source)
	}
}

func TestParseSimpleDefinition(t *testing.T) {
	prog := parseSource(t, ": double 2 * ;")
	if len(prog.Definitions) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(prog.Definitions))
	}
	def := prog.Definitions[0]
	if def.Name != "double" {
		t.Errorf("expected name 'double', got %q", def.Name)
	}
	if len(def.Body) != 2 {
		t.Fatalf("expected 2 body words, got %d: %+v", len(def.Body), def.Body)
	}
	if def.Body[0].Kind != ast.KindIntLiteral || def.Body[0].IntLiteral != 2 {
		t.Errorf("expected first word to be literal 2, got %+v", def.Body[0])
	}
	if def.Body[1].Kind != ast.KindWordRef || def.Body[1].WordRef != "*" {
		t.Errorf("expected second word to be wordref '*', got %+v", def.Body[1])
	}
}

func TestParseStackEffectDeclaration(t *testing.T) {
	prog := parseSource(t, ": square ( n -- n^2 ) dup * ;")
	def := prog.Definitions[0]
	if def.DeclaredEffect == nil {
		t.Fatal("expected a declared stack effect")
	}
	if len(def.DeclaredEffect.Inputs) != 1 || def.DeclaredEffect.Inputs[0] != "n" {
		t.Errorf("expected inputs [n], got %v", def.DeclaredEffect.Inputs)
	}
	if len(def.DeclaredEffect.Outputs) != 1 || def.DeclaredEffect.Outputs[0] != "n^2" {
		t.Errorf("expected outputs [n^2], got %v", def.DeclaredEffect.Outputs)
	}
}

func TestParseIfThenElse(t *testing.T) {
	prog := parseSource(t, ": abs dup 0 < if negate then ;")
	body := prog.Definitions[0].Body
	var ifWord *ast.Word
	for i := range body {
		if body[i].Kind == ast.KindIf {
			ifWord = &body[i]
		}
	}
	if ifWord == nil {
		t.Fatal("expected an If node in the body")
	}
	if len(ifWord.Then) != 1 || ifWord.Then[0].WordRef != "negate" {
		t.Errorf("expected Then=[negate], got %+v", ifWord.Then)
	}
	if ifWord.Else != nil {
		t.Errorf("expected no Else branch, got %+v", ifWord.Else)
	}
}

func TestParseIfElseThen(t *testing.T) {
	prog := parseSource(t, ": sign dup 0 < if drop -1 else drop 1 then ;")
	body := prog.Definitions[0].Body
	var ifWord *ast.Word
	for i := range body {
		if body[i].Kind == ast.KindIf {
			ifWord = &body[i]
		}
	}
	if ifWord == nil {
		t.Fatal("expected an If node")
	}
	if ifWord.Else == nil {
		t.Fatal("expected an Else branch")
	}
}

func TestParseBeginUntil(t *testing.T) {
	prog := parseSource(t, ": countdown begin dup . 1 - dup 0 = until drop ;")
	body := prog.Definitions[0].Body
	found := false
	for _, w := range body {
		if w.Kind == ast.KindBeginUntil {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a BeginUntil node, got %+v", body)
	}
}

func TestParseBeginWhileRepeat(t *testing.T) {
	prog := parseSource(t, ": count10 0 begin dup 10 < while dup . 1 + repeat drop ;")
	body := prog.Definitions[0].Body
	found := false
	for _, w := range body {
		if w.Kind == ast.KindBeginWhileRepeat {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a BeginWhileRepeat node, got %+v", body)
	}
}

func TestParseDoLoop(t *testing.T) {
	prog := parseSource(t, ": stars 10 0 do 42 emit loop ;")
	body := prog.Definitions[0].Body
	var loopWord *ast.Word
	for i := range body {
		if body[i].Kind == ast.KindDoLoop {
			loopWord = &body[i]
		}
	}
	if loopWord == nil {
		t.Fatal("expected a DoLoop node")
	}
	if loopWord.IsPlusLoop {
		t.Error("expected a plain LOOP, not +LOOP")
	}
}

func TestParseDoPlusLoop(t *testing.T) {
	prog := parseSource(t, ": tens 100 0 do i . 10 +loop ;")
	body := prog.Definitions[0].Body
	var loopWord *ast.Word
	for i := range body {
		if body[i].Kind == ast.KindDoLoop {
			loopWord = &body[i]
		}
	}
	if loopWord == nil || !loopWord.IsPlusLoop {
		t.Fatalf("expected a +LOOP DoLoop node, got %+v", loopWord)
	}
}

func TestParseVariableAndConstant(t *testing.T) {
	prog := parseSource(t, "variable counter 42 constant answer")
	if len(prog.TopLevel) != 2 {
		t.Fatalf("expected 2 top-level words, got %d", len(prog.TopLevel))
	}
	if prog.TopLevel[0].Kind != ast.KindVariable || prog.TopLevel[0].Name != "counter" {
		t.Errorf("expected Variable 'counter', got %+v", prog.TopLevel[0])
	}
	if prog.TopLevel[1].Kind != ast.KindConstant || prog.TopLevel[1].Name != "answer" {
		t.Errorf("expected Constant 'answer', got %+v", prog.TopLevel[1])
	}
}

func TestParseUnmatchedIfFails(t *testing.T) {
	assertParseError(t, ": bad if 1 ;")
}

func TestParseUnmatchedDoFails(t *testing.T) {
	assertParseError(t, ": bad 10 0 do 1 ;")
}

func TestParseMissingSemicolonFails(t *testing.T) {
	assertParseError(t, ": bad 1 2 +")
}
