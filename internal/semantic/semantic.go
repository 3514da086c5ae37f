// Package semantic implements the two-pass semantic analyzer of §4.3:
// registration (collect defined names, reject redefinition) followed by
// validation (confirm every word reference is known, and that declared
// stack effects agree with inferred ones outside of complex control flow).
package semantic

import (
	"fmt"

	"forthc/internal/ast"
	"forthc/internal/diagnostics"
	"forthc/internal/types"
)

// builtinWords is the full recognized-name set (§4.3's "builtins may
// shadow without error because they are the default"), grounded on
// original_source/compiler/frontend/src/semantic.rs's word list.
var builtinWords = map[string]bool{}

func init() {
	for _, w := range []string{
		// Arithmetic
		"+", "-", "*", "/", "mod", "/mod", "negate", "abs", "min", "max",
		"1+", "1-", "2+", "2-", "2*", "2/", "*/", "*/mod",
		// Stack manipulation
		"dup", "drop", "swap", "over", "rot", "nip", "tuck",
		"2dup", "2drop", "2swap", "2over",
		"pick", "roll", "depth", "?dup",
		// Comparison
		"<", ">", "=", "<=", ">=", "<>", "0<", "0>", "0=", "0<>",
		"u<", "u>", "u<=", "u>=", "d=", "d<", "d0=", "d0<",
		// Logical
		"and", "or", "xor", "not", "invert", "true", "false",
		// Memory
		"@", "!", "c@", "c!", "+!", "?",
		"cell", "cells", "cell+", "char+", "chars", "align", "aligned",
		"move", "fill", "erase", "compare", "search", "count",
		// I/O
		".", "emit", "cr", "space", "spaces", "type", `."`, ".(", ".r", ".s",
		// Control keywords (recognized as words, not user-definable)
		"if", "then", "else", "begin", "until", "while", "repeat",
		"do", "loop", "+loop", "leave", "exit", "recurse", "i", "j",
		// Return stack
		">r", "r>", "r@",
		// File access (ANS Forth)
		"create-file", "open-file", "close-file",
		"read-file", "write-file", "delete-file",
		"file-size", "file-position", "reposition-file",
		"resize-file", "flush-file", "r/o", "w/o", "r/w", "bin",
		// System
		"system",
		// Other
		"here", "allot", "execute", "char",
		"within", "sm/rem", "fm/mod",
		"d+", "d-", "dnegate", "dabs", "d2*", "d2/",
	} {
		builtinWords[w] = true
	}
}

// Analyzer holds the accumulated state of a single analysis run.
type Analyzer struct {
	definedWords map[string]bool
	variables    map[string]bool
	constants    map[string]int64
	inference    *types.Inference
	diags        diagnostics.Batch
}

func NewAnalyzer() *Analyzer {
	a := &Analyzer{
		definedWords: make(map[string]bool),
		variables:    make(map[string]bool),
		constants:    make(map[string]int64),
		inference:    types.NewInference(),
	}
	for w := range builtinWords {
		a.definedWords[w] = true
	}
	return a
}

func (a *Analyzer) isDefined(name string) bool {
	if a.definedWords[name] || a.variables[name] {
		return true
	}
	_, ok := a.constants[name]
	return ok
}

// Analyze runs both passes over prog and returns the collected
// diagnostics; an empty batch means the program is semantically sound.
func Analyze(prog *ast.Program) *diagnostics.Batch {
	a := NewAnalyzer()
	a.registrationPass(prog)
	a.validationPass(prog)
	return &a.diags
}

func (a *Analyzer) registrationPass(prog *ast.Program) {
	for _, def := range prog.Definitions {
		if a.definedWords[def.Name] && !builtinWords[def.Name] {
			a.diags.Add(diagnostics.New(diagnostics.RedefinitionError,
				fmt.Sprintf("redefinition of word %q", def.Name)).
				At(diagnostics.Location{Line: def.Loc.Line, Column: def.Loc.Column, Word: def.Name}))
		}
		a.definedWords[def.Name] = true

		var declared *types.StackEffect
		if def.DeclaredEffect != nil {
			eff := declToEffect(def.DeclaredEffect)
			declared = &eff
		}
		if err := a.inference.AddDefinition(def.Name, declared, def.Body); err != nil {
			a.diags.Add(diagnostics.New(diagnostics.InvalidStackEffect, err.Error()).
				At(diagnostics.Location{Line: def.Loc.Line, Column: def.Loc.Column, Word: def.Name}))
		}
	}

	for _, w := range prog.TopLevel {
		switch w.Kind {
		case ast.KindVariable:
			a.variables[w.Name] = true
		case ast.KindConstant:
			a.constants[w.Name] = w.Value
		}
	}
}

func (a *Analyzer) validationPass(prog *ast.Program) {
	for _, def := range prog.Definitions {
		a.validateWords(def.Body)

		if def.DeclaredEffect == nil {
			continue
		}
		if hasComplexControlFlow(def.Body) {
			continue // §4.3 / §9: declaration trusted for complex control flow
		}
		inferred, err := a.inference.InferSequence(def.Body)
		if err != nil {
			a.diags.Add(diagnostics.New(diagnostics.InvalidStackEffect, err.Error()).
				At(diagnostics.Location{Line: def.Loc.Line, Column: def.Loc.Column, Word: def.Name}))
			continue
		}
		if len(def.DeclaredEffect.Inputs) != len(inferred.Inputs) ||
			len(def.DeclaredEffect.Outputs) != len(inferred.Outputs) {
			a.diags.Add(diagnostics.New(diagnostics.InvalidStackEffect,
				fmt.Sprintf("declared %d -- %d but inferred %d -- %d",
					len(def.DeclaredEffect.Inputs), len(def.DeclaredEffect.Outputs),
					len(inferred.Inputs), len(inferred.Outputs))).
				At(diagnostics.Location{Line: def.Loc.Line, Column: def.Loc.Column, Word: def.Name}))
		}
	}

	a.validateWords(prog.TopLevel)
}

func (a *Analyzer) validateWords(words []ast.Word) {
	for _, w := range words {
		switch w.Kind {
		case ast.KindWordRef:
			if !a.isDefined(w.WordRef) {
				a.diags.Add(diagnostics.New(diagnostics.UndefinedWord,
					fmt.Sprintf("undefined word %q", w.WordRef)).
					At(diagnostics.Location{Line: w.Loc.Line, Column: w.Loc.Column, Word: w.WordRef}))
			}
		case ast.KindIf:
			a.validateWords(w.Then)
			a.validateWords(w.Else)
		case ast.KindBeginUntil:
			a.validateWords(w.Body)
		case ast.KindBeginWhileRepeat:
			a.validateWords(w.Cond)
			a.validateWords(w.Body)
		case ast.KindDoLoop:
			a.validateWords(w.Body)
			a.validateWords(w.PlusLoopStep)
		}
	}
}

// hasComplexControlFlow reports whether words contains a loop or a
// return-stack operation, per §4.3's exemption from declared-effect
// checking.
func hasComplexControlFlow(words []ast.Word) bool {
	for _, w := range words {
		switch w.Kind {
		case ast.KindBeginUntil, ast.KindBeginWhileRepeat, ast.KindDoLoop:
			return true
		case ast.KindWordRef:
			if types.IsComplexControlFlowWord(w.WordRef) {
				return true
			}
		case ast.KindIf:
			if hasComplexControlFlow(w.Then) || hasComplexControlFlow(w.Else) {
				return true
			}
		}
	}
	return false
}

func declToEffect(decl *ast.StackEffectDecl) types.StackEffect {
	in := make([]types.StackType, len(decl.Inputs))
	for i := range decl.Inputs {
		in[i] = types.T(types.Unknown)
	}
	out := make([]types.StackType, len(decl.Outputs))
	for i := range decl.Outputs {
		out[i] = types.T(types.Unknown)
	}
	return types.NewEffect(in, out)
}
