// Package diagnostics defines the structured error taxonomy shared by every
// compiler stage: lexical and parse errors (E0xxx), semantic errors (E1xxx),
// stack-effect/type errors (E2xxx), control-flow errors (E3xxx), optimization
// errors (E4xxx), codegen errors (E5xxx), and internal-compiler-errors (E9xxx).
package diagnostics

import (
	"fmt"
	"strings"
)

// ErrorCode is a stable, documented code every diagnostic carries.
type ErrorCode int

const (
	// Lexical / parse errors (E0001-E0999)
	UnexpectedToken    ErrorCode = 1
	UnexpectedEOF      ErrorCode = 2
	InvalidNumber      ErrorCode = 3
	UnterminatedString ErrorCode = 4
	UnbalancedParen    ErrorCode = 5

	// Semantic errors (E1000-E1999)
	UndefinedWord      ErrorCode = 1000
	RedefinitionError  ErrorCode = 1001
	InvalidStackEffect ErrorCode = 1002
	InvalidImmediate   ErrorCode = 1003

	// Stack-effect / type errors (E2000-E2999)
	StackUnderflow      ErrorCode = 2000
	StackOverflow       ErrorCode = 2001
	TypeMismatch        ErrorCode = 2300
	OccursCheckFailed   ErrorCode = 2301
	BranchArityMismatch ErrorCode = 2302

	// Control-flow errors (E3000-E3999)
	UnmatchedIf     ErrorCode = 3000
	UnmatchedThen   ErrorCode = 3001
	UnmatchedElse   ErrorCode = 3002
	UnmatchedDo     ErrorCode = 3010
	UnmatchedLoop   ErrorCode = 3011
	UnmatchedBegin  ErrorCode = 3020
	UnmatchedUntil  ErrorCode = 3021
	UnmatchedWhile  ErrorCode = 3022
	UnmatchedRepeat ErrorCode = 3023

	// Optimization errors (E4000-E4999)
	OptimizationFailed        ErrorCode = 4000
	InliningError             ErrorCode = 4001
	StackCacheInvariantBroken ErrorCode = 4002

	// Codegen errors (E5000-E5999)
	CodeGenFailed     ErrorCode = 5000
	BackendStateError ErrorCode = 5001
	LinkingFailed     ErrorCode = 5002

	// Internal compiler errors (E9000-E9999)
	InternalError       ErrorCode = 9000
	SSAValidationFailed ErrorCode = 9001
)

func (c ErrorCode) String() string {
	return fmt.Sprintf("E%04d", int(c))
}

// Location pinpoints a diagnostic in source.
type Location struct {
	File    string
	Line    int
	Column  int
	Word    string
	Context string
}

func (l Location) String() string {
	if l.File == "" && l.Line == 0 {
		return ""
	}
	if l.Word != "" {
		return fmt.Sprintf("%s:%d:%d (in %s)", l.File, l.Line, l.Column, l.Word)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Suggestion is a machine-readable fix suggestion, surfaced to the (external,
// out-of-scope) diagnostic-JSON formatter and left empty by most diagnostics.
type Suggestion struct {
	PatternID  string
	Confidence float64
	Before     string
	After      string
}

// Diagnostic is the structured error produced by every pipeline stage.
type Diagnostic struct {
	Code       ErrorCode
	Message    string
	Location   Location
	Suggestion *Suggestion
}

func New(code ErrorCode, message string) *Diagnostic {
	return &Diagnostic{Code: code, Message: message}
}

func (d *Diagnostic) At(loc Location) *Diagnostic {
	d.Location = loc
	return d
}

func (d *Diagnostic) WithSuggestion(s Suggestion) *Diagnostic {
	d.Suggestion = &s
	return d
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", d.Code, d.Message)
	if loc := d.Location.String(); loc != "" {
		fmt.Fprintf(&sb, " at %s", loc)
	}
	return sb.String()
}

// Batch is a collection of diagnostics accumulated during a single compile,
// surfaced together so a user sees as many real errors as possible (§7).
type Batch struct {
	items []*Diagnostic
}

func (b *Batch) Add(d *Diagnostic) {
	b.items = append(b.items, d)
}

func (b *Batch) Empty() bool {
	return len(b.items) == 0
}

func (b *Batch) Items() []*Diagnostic {
	return b.items
}

func (b *Batch) Error() string {
	lines := make([]string, 0, len(b.items))
	for _, d := range b.items {
		lines = append(lines, d.Error())
	}
	return strings.Join(lines, "\n")
}
