package lexer

import (
	"testing"

	"forthc/internal/token"
)

func typesOf(t *testing.T, source string) []token.Type {
	tokens, err := Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize(%q) failed: %v", source, err)
	}
	types := make([]token.Type, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestTokenizeSimpleDefinition(t *testing.T) {
	types := typesOf(t, ": double 2 * ;")
	want := []token.Type{token.Colon, token.Word, token.Integer, token.Word, token.Semicolon, token.Eof}
	if len(types) != len(want) {
		t.Fatalf("got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, types[i], want[i])
		}
	}
}

func TestTokenizeStackEffectComment(t *testing.T) {
	tokens, err := Tokenize(": test ( n -- n*2 ) 2 * ;")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	foundSep := false
	for _, tok := range tokens {
		if tok.Type == token.StackEffectSep {
			foundSep = true
		}
	}
	if !foundSep {
		t.Errorf("expected a StackEffectSep token from the stack-effect comment, got %v", tokens)
	}
}

func TestTokenizePlainComment(t *testing.T) {
	types := typesOf(t, ": test ( this is just a comment ) 1 ;")
	want := []token.Type{token.Colon, token.Word, token.Integer, token.Semicolon, token.Eof}
	if len(types) != len(want) {
		t.Fatalf("got %v, want %v", types, want)
	}
}

func TestTokenizeControlStructures(t *testing.T) {
	types := typesOf(t, "IF 1 ELSE 0 THEN")
	want := []token.Type{token.If, token.Integer, token.Else, token.Integer, token.Then, token.Eof}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, types[i], want[i])
		}
	}
}

func TestTokenizeFloat(t *testing.T) {
	tokens, err := Tokenize("3.14159 1.0e-10")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if tokens[0].Type != token.Float || tokens[0].FloatVal < 3.14 || tokens[0].FloatVal > 3.15 {
		t.Errorf("expected first token ~3.14159, got %v", tokens[0])
	}
	if tokens[1].Type != token.Float {
		t.Errorf("expected second token to be a float, got %v", tokens[1])
	}
}

func TestTokenizeDigitLeadingWord(t *testing.T) {
	tokens, err := Tokenize("2dup 2swap")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if tokens[0].Type != token.Word || tokens[0].Lexeme != "2dup" {
		t.Errorf("expected word token '2dup', got %v", tokens[0])
	}
	if tokens[1].Type != token.Word || tokens[1].Lexeme != "2swap" {
		t.Errorf("expected word token '2swap', got %v", tokens[1])
	}
}

func TestTokenizePlusLoop(t *testing.T) {
	types := typesOf(t, ": run 10 0 DO i . 3 +LOOP ;")
	found := false
	for _, ty := range types {
		if ty == token.PlusLoop {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a PlusLoop token, got %v", types)
	}
}

func TestTokenizeUnterminatedString(t *testing.T) {
	_, err := Tokenize(`: bad " unterminated`)
	if err == nil {
		t.Fatal("expected unterminated string to fail")
	}
}

func TestTokenizeUnclosedParen(t *testing.T) {
	_, err := Tokenize(": bad ( unclosed")
	if err == nil {
		t.Fatal("expected unclosed paren comment to fail")
	}
}

func TestTokenizeLineComment(t *testing.T) {
	types := typesOf(t, "\\ this whole line is a comment\n1 2 +")
	want := []token.Type{token.Integer, token.Integer, token.Word, token.Eof}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, types[i], want[i])
		}
	}
}

func TestTokenizeCaseInsensitiveKeywords(t *testing.T) {
	types := typesOf(t, "begin 1 until")
	want := []token.Type{token.Begin, token.Integer, token.Until, token.Eof}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, types[i], want[i])
		}
	}
}
