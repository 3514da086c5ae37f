// Package types implements the stack-type system and Hindley-Milner-style
// unification used by stack-effect inference (§4.4).
package types

import "fmt"

// Kind discriminates the StackType variants of §3.1.
type Kind int

const (
	Int Kind = iota
	Float
	Bool
	Char
	Addr
	String
	Unknown
	Var
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Bool:
		return "Bool"
	case Char:
		return "Char"
	case Addr:
		return "Addr"
	case String:
		return "String"
	case Unknown:
		return "Unknown"
	case Var:
		return "Var"
	default:
		return "?"
	}
}

// StackType is a single stack-slot type, possibly an unresolved
// unification variable.
type StackType struct {
	Kind    Kind
	VarID   int
	VarName string
}

func T(k Kind) StackType { return StackType{Kind: k} }

func NewVar(id int, name string) StackType {
	return StackType{Kind: Var, VarID: id, VarName: name}
}

func (t StackType) String() string {
	if t.Kind == Var {
		if t.VarName != "" {
			return fmt.Sprintf("'%s", t.VarName)
		}
		return fmt.Sprintf("'t%d", t.VarID)
	}
	return t.Kind.String()
}

// StackEffect is an ordered list of input types consumed and output types
// produced by a word or instruction sequence.
type StackEffect struct {
	Inputs  []StackType
	Outputs []StackType
}

func NewEffect(inputs, outputs []StackType) StackEffect {
	return StackEffect{Inputs: inputs, Outputs: outputs}
}

func (e StackEffect) String() string {
	return fmt.Sprintf("(%v -- %v)", e.Inputs, e.Outputs)
}
