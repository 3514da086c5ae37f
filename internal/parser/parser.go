// Package parser implements a recursive-descent parser over the token
// stream produced by internal/lexer, building an internal/ast.Program.
package parser

import (
	"fmt"

	"forthc/internal/ast"
	"forthc/internal/token"
)

// ParseError reports a syntax error with its source position.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}

type Parser struct {
	tokens  []token.Token
	current int
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse consumes the entire token stream and returns a Program, or the
// first ParseError encountered.
func Parse(tokens []token.Token) (*ast.Program, error) {
	p := New(tokens)
	return p.parseProgram()
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}

	for !p.isAtEnd() {
		switch {
		case p.check(token.Colon):
			def, err := p.definition()
			if err != nil {
				return nil, err
			}
			prog.Definitions = append(prog.Definitions, *def)
		case p.check(token.Variable):
			w, err := p.variable()
			if err != nil {
				return nil, err
			}
			prog.TopLevel = append(prog.TopLevel, w)
		case p.check(token.Constant):
			w, err := p.constant()
			if err != nil {
				return nil, err
			}
			n := len(prog.TopLevel)
			if n == 0 || prog.TopLevel[n-1].Kind != ast.KindIntLiteral {
				return nil, &ParseError{w.Loc.Line, w.Loc.Column, "expected integer literal before CONSTANT"}
			}
			w.Value = prog.TopLevel[n-1].IntLiteral
			prog.TopLevel = append(prog.TopLevel[:n-1], w)
		default:
			w, err := p.word()
			if err != nil {
				return nil, err
			}
			prog.TopLevel = append(prog.TopLevel, w)
		}
	}
	return prog, nil
}

func (p *Parser) definition() (*ast.Definition, error) {
	colonTok := p.advance() // consume ':'
	nameTok, err := p.consume(token.Word, "expected word name after ':'")
	if err != nil {
		return nil, err
	}
	def := &ast.Definition{
		Name: nameTok.Lexeme,
		Loc:  ast.Location{Line: colonTok.Line, Column: colonTok.Column},
	}

	if p.check(token.LeftParen) {
		decl, err := p.stackEffectDecl()
		if err != nil {
			return nil, err
		}
		def.DeclaredEffect = decl
	}

	body, err := p.wordsUntil(token.Semicolon)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.Semicolon, "expected ';' to close definition"); err != nil {
		return nil, err
	}
	if p.check(token.Immediate) {
		p.advance()
		def.IsImmediate = true
	}
	def.Body = body
	return def, nil
}

// stackEffectDecl parses `( in1 in2 -- out1 out2 )`, re-tokenized by the
// lexer as a LeftParen followed by bare Word tokens up to RightParen.
func (p *Parser) stackEffectDecl() (*ast.StackEffectDecl, error) {
	p.advance() // consume '('
	decl := &ast.StackEffectDecl{}
	seenSep := false
	for {
		if p.isAtEnd() {
			return nil, &ParseError{p.peek().Line, p.peek().Column, "unterminated stack-effect declaration"}
		}
		if p.check(token.RightParen) {
			p.advance()
			return decl, nil
		}
		if p.check(token.StackEffectSep) {
			p.advance()
			seenSep = true
			continue
		}
		tok := p.advance()
		if seenSep {
			decl.Outputs = append(decl.Outputs, tok.Lexeme)
		} else {
			decl.Inputs = append(decl.Inputs, tok.Lexeme)
		}
	}
}

func (p *Parser) variable() (ast.Word, error) {
	loc := p.cur()
	p.advance() // consume 'variable'
	nameTok, err := p.consume(token.Word, "expected name after VARIABLE")
	if err != nil {
		return ast.Word{}, err
	}
	return ast.Word{Kind: ast.KindVariable, Name: nameTok.Lexeme, Loc: loc}, nil
}

func (p *Parser) constant() (ast.Word, error) {
	loc := p.cur()
	p.advance() // consume 'constant'
	nameTok, err := p.consume(token.Word, "expected name after CONSTANT")
	if err != nil {
		return ast.Word{}, err
	}
	return ast.Word{Kind: ast.KindConstant, Name: nameTok.Lexeme, Loc: loc}, nil
}

// wordsUntil parses Word nodes until one of the given terminator types is
// seen, without consuming the terminator.
func (p *Parser) wordsUntil(terminators ...token.Type) ([]ast.Word, error) {
	var words []ast.Word
	for {
		if p.isAtEnd() {
			return words, nil
		}
		for _, t := range terminators {
			if p.check(t) {
				return words, nil
			}
		}
		w, err := p.word()
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
}

func (p *Parser) word() (ast.Word, error) {
	tok := p.peek()
	loc := ast.Location{Line: tok.Line, Column: tok.Column}

	switch tok.Type {
	case token.Integer:
		p.advance()
		return ast.Word{Kind: ast.KindIntLiteral, IntLiteral: tok.IntVal, Loc: loc}, nil
	case token.Float:
		p.advance()
		return ast.Word{Kind: ast.KindFloatLiteral, FloatLiteral: tok.FloatVal, Loc: loc}, nil
	case token.String:
		p.advance()
		return ast.Word{Kind: ast.KindStringLiteral, StringLiteral: tok.Lexeme, Loc: loc}, nil
	case token.If:
		return p.ifWord()
	case token.Begin:
		return p.beginWord()
	case token.Do:
		return p.doWord()
	case token.Word:
		p.advance()
		return ast.Word{Kind: ast.KindWordRef, WordRef: tok.Lexeme, Loc: loc}, nil
	default:
		p.advance()
		return ast.Word{}, &ParseError{tok.Line, tok.Column, fmt.Sprintf("unexpected token %s", tok.Type)}
	}
}

func (p *Parser) ifWord() (ast.Word, error) {
	loc := p.cur()
	p.advance() // consume IF
	then, err := p.wordsUntil(token.Else, token.Then)
	if err != nil {
		return ast.Word{}, err
	}
	w := ast.Word{Kind: ast.KindIf, Then: then, Loc: loc}
	if p.check(token.Else) {
		p.advance()
		elseBody, err := p.wordsUntil(token.Then)
		if err != nil {
			return ast.Word{}, err
		}
		w.Else = elseBody
	}
	if _, err := p.consume(token.Then, "expected THEN to close IF"); err != nil {
		return ast.Word{}, err
	}
	return w, nil
}

// beginWord handles both BEGIN ... UNTIL and BEGIN ... WHILE ... REPEAT,
// distinguished by which terminator is seen first.
func (p *Parser) beginWord() (ast.Word, error) {
	loc := p.cur()
	p.advance() // consume BEGIN
	first, err := p.wordsUntil(token.Until, token.While)
	if err != nil {
		return ast.Word{}, err
	}
	if p.check(token.Until) {
		p.advance()
		return ast.Word{Kind: ast.KindBeginUntil, Body: first, Loc: loc}, nil
	}
	if _, err := p.consume(token.While, "expected UNTIL or WHILE after BEGIN"); err != nil {
		return ast.Word{}, err
	}
	body, err := p.wordsUntil(token.Repeat)
	if err != nil {
		return ast.Word{}, err
	}
	if _, err := p.consume(token.Repeat, "expected REPEAT to close BEGIN...WHILE"); err != nil {
		return ast.Word{}, err
	}
	return ast.Word{Kind: ast.KindBeginWhileRepeat, Cond: first, Body: body, Loc: loc}, nil
}

// doWord handles both DO ... LOOP and DO ... +LOOP (the supplemented
// literal-step variant).
func (p *Parser) doWord() (ast.Word, error) {
	loc := p.cur()
	p.advance() // consume DO
	body, err := p.wordsUntil(token.Loop, token.PlusLoop)
	if err != nil {
		return ast.Word{}, err
	}
	w := ast.Word{Kind: ast.KindDoLoop, Body: body, Loc: loc}
	if p.check(token.PlusLoop) {
		p.advance()
		w.IsPlusLoop = true
		return w, nil
	}
	if _, err := p.consume(token.Loop, "expected LOOP or +LOOP to close DO"); err != nil {
		return ast.Word{}, err
	}
	return w, nil
}

func (p *Parser) cur() ast.Location {
	tok := p.peek()
	return ast.Location{Line: tok.Line, Column: tok.Column}
}

func (p *Parser) check(t token.Type) bool {
	if p.isAtEnd() {
		return t == token.Eof
	}
	return p.peek().Type == t
}

func (p *Parser) consume(t token.Type, msg string) (token.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	tok := p.peek()
	return token.Token{}, &ParseError{tok.Line, tok.Column, fmt.Sprintf("%s (got %s %q)", msg, tok.Type, tok.Lexeme)}
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) peek() token.Token {
	if p.current >= len(p.tokens) {
		return token.Token{Type: token.Eof}
	}
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == token.Eof
}
