package types

import (
	"fmt"

	"forthc/internal/ast"
)

// Inference carries the builtin table, accumulated user-word effects, and
// the fresh-variable counter for a single compile (§4.4).
type Inference struct {
	userWords map[string]StackEffect
	nextVar   int
}

func NewInference() *Inference {
	return &Inference{userWords: make(map[string]StackEffect)}
}

func (inf *Inference) fresh() int {
	id := inf.nextVar
	inf.nextVar++
	return id
}

// freshen renumbers every template-local variable in effect into globally
// unique ids, preserving identity of repeated variables within the effect.
func (inf *Inference) freshen(effect StackEffect) StackEffect {
	remap := make(map[int]int)
	rename := func(t StackType) StackType {
		if t.Kind != Var {
			return t
		}
		id, ok := remap[t.VarID]
		if !ok {
			id = inf.fresh()
			remap[t.VarID] = id
		}
		return NewVar(id, t.VarName)
	}
	out := StackEffect{
		Inputs:  make([]StackType, len(effect.Inputs)),
		Outputs: make([]StackType, len(effect.Outputs)),
	}
	for i, t := range effect.Inputs {
		out.Inputs[i] = rename(t)
	}
	for i, t := range effect.Outputs {
		out.Outputs[i] = rename(t)
	}
	return out
}

func (inf *Inference) effectFor(name string) (StackEffect, bool) {
	// A user definition takes priority over a builtin of the same name:
	// redefining a builtin is allowed precisely so it can be overridden.
	if e, ok := inf.userWords[name]; ok {
		return e, true
	}
	if e, ok := lookupBuiltinTemplate(name); ok {
		return inf.freshen(e), true
	}
	return StackEffect{}, false
}

// EffectFor exposes effectFor to other packages (the SSA builder needs
// an operand count for every word it lowers to a Call).
func (inf *Inference) EffectFor(name string) (StackEffect, error) {
	effect, ok := inf.effectFor(name)
	if !ok {
		return StackEffect{}, fmt.Errorf("no known stack effect for word %q", name)
	}
	return effect, nil
}

// AddDefinition registers name's effect — the declared one if present,
// otherwise the inferred one — so later references resolve correctly
// (§4.3 registration pass).
func (inf *Inference) AddDefinition(name string, declared *StackEffect, body []ast.Word) error {
	if declared != nil {
		inf.userWords[name] = *declared
		return nil
	}
	effect, err := inf.InferSequence(body)
	if err != nil {
		return err
	}
	inf.userWords[name] = effect
	return nil
}

// stackSlot is an abstract value on the inference-time stack: either a
// concrete/variable type, or Unknown if it flowed in from before the
// sequence started (and was therefore never produced by anything we walked).
type stackSlot struct {
	typ      StackType
	fromArgs bool
}

// InferSequence abstractly interprets a Word sequence left to right,
// threading a substitution and an abstract value stack, and returns the net
// StackEffect: inputs are the types of slots borrowed from below the
// sequence's start, outputs are whatever remains on the simulated stack.
func (inf *Inference) InferSequence(words []ast.Word) (StackEffect, error) {
	subst := NewSubstitution()
	var stack []stackSlot
	var borrowed []StackType // types demanded from outside, in order demanded

	pop := func(loc string) (StackType, error) {
		if len(stack) == 0 {
			v := NewVar(inf.fresh(), "")
			borrowed = append(borrowed, v)
			return v, nil
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top.typ, nil
	}
	push := func(t StackType) {
		stack = append(stack, stackSlot{typ: t})
	}

	apply := func(effect StackEffect, loc string) error {
		consumed := make([]StackType, len(effect.Inputs))
		for i := len(effect.Inputs) - 1; i >= 0; i-- {
			got, err := pop(loc)
			if err != nil {
				return err
			}
			want := effect.Inputs[i]
			next, uerr := Unify(want, got, subst)
			if uerr != nil {
				if te, ok := uerr.(*TypeError); ok {
					te.Location = loc
				}
				return uerr
			}
			subst = next
			consumed[i] = got
		}
		for _, t := range effect.Outputs {
			push(subst.Resolve(t))
		}
		return nil
	}

	var walk func(ws []ast.Word) error
	walk = func(ws []ast.Word) error {
		for _, w := range ws {
			switch w.Kind {
			case ast.KindIntLiteral:
				push(T(Int))
			case ast.KindFloatLiteral:
				push(T(Float))
			case ast.KindStringLiteral:
				push(T(String))
			case ast.KindWordRef:
				effect, ok := inf.effectFor(w.WordRef)
				if !ok {
					// Unknown word: semantic analysis reports UndefinedWord
					// separately; inference assumes a no-op so it can keep
					// going and surface every error in one pass.
					continue
				}
				if err := apply(effect, fmt.Sprintf("word %q", w.WordRef)); err != nil {
					return err
				}
			case ast.KindIf:
				cond, err := pop("if condition")
				if err != nil {
					return err
				}
				next, uerr := Unify(T(Bool), cond, subst)
				if uerr != nil {
					return uerr
				}
				subst = next

				savedStack := append([]stackSlot(nil), stack...)
				if err := walk(w.Then); err != nil {
					return err
				}
				thenStack := stack

				stack = append([]stackSlot(nil), savedStack...)
				if w.Else != nil {
					if err := walk(w.Else); err != nil {
						return err
					}
				}
				elseStack := stack

				if len(thenStack) != len(elseStack) {
					return &TypeError{Location: "if/else branch arity mismatch"}
				}
				stack = thenStack
			case ast.KindBeginUntil:
				if err := walk(w.Body); err != nil {
					return err
				}
				cond, err := pop("until condition")
				if err != nil {
					return err
				}
				next, uerr := Unify(T(Bool), cond, subst)
				if uerr != nil {
					return uerr
				}
				subst = next
			case ast.KindBeginWhileRepeat:
				if err := walk(w.Cond); err != nil {
					return err
				}
				cond, err := pop("while condition")
				if err != nil {
					return err
				}
				next, uerr := Unify(T(Bool), cond, subst)
				if uerr != nil {
					return uerr
				}
				subst = next
				if err := walk(w.Body); err != nil {
					return err
				}
			case ast.KindDoLoop:
				limit, err := pop("do loop limit")
				if err != nil {
					return err
				}
				start, err := pop("do loop start")
				if err != nil {
					return err
				}
				if next, uerr := Unify(T(Int), limit, subst); uerr != nil {
					return uerr
				} else {
					subst = next
				}
				if next, uerr := Unify(T(Int), start, subst); uerr != nil {
					return uerr
				} else {
					subst = next
				}
				if err := walk(w.Body); err != nil {
					return err
				}
				if w.IsPlusLoop && len(w.PlusLoopStep) > 0 {
					if err := walk(w.PlusLoopStep); err != nil {
						return err
					}
					if _, err := pop("+loop step"); err != nil {
						return err
					}
				}
			case ast.KindVariable, ast.KindConstant:
				push(T(Addr))
			}
		}
		return nil
	}

	if err := walk(words); err != nil {
		return StackEffect{}, err
	}

	inputs := make([]StackType, len(borrowed))
	for i, t := range borrowed {
		inputs[i] = subst.Resolve(t)
	}
	outputs := make([]StackType, len(stack))
	for i, s := range stack {
		outputs[i] = subst.Resolve(s.typ)
	}
	return ApplyEffect(StackEffect{Inputs: inputs, Outputs: outputs}, subst), nil
}
