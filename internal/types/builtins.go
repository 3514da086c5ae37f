package types

// builtinTemplates describes each primitive word's StackEffect using small,
// template-local type-variable ids (0, 1, 2, ...) for polymorphic operations.
// Lookup freshens these into globally unique ids per use so that two calls
// to `dup` in the same sequence don't alias each other's variable.
var builtinTemplates = map[string]StackEffect{
	"+":    NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Int)}),
	"-":    NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Int)}),
	"*":    NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Int)}),
	"/":    NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Int)}),
	"mod":  NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Int)}),
	"/mod": NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Int), T(Int)}),

	"dup": NewEffect(
		[]StackType{NewVar(0, "a")},
		[]StackType{NewVar(0, "a"), NewVar(0, "a")},
	),
	"drop": NewEffect([]StackType{NewVar(0, "a")}, nil),
	"swap": NewEffect(
		[]StackType{NewVar(0, "a"), NewVar(1, "b")},
		[]StackType{NewVar(1, "b"), NewVar(0, "a")},
	),
	"over": NewEffect(
		[]StackType{NewVar(0, "a"), NewVar(1, "b")},
		[]StackType{NewVar(0, "a"), NewVar(1, "b"), NewVar(0, "a")},
	),
	"rot": NewEffect(
		[]StackType{NewVar(0, "a"), NewVar(1, "b"), NewVar(2, "c")},
		[]StackType{NewVar(1, "b"), NewVar(2, "c"), NewVar(0, "a")},
	),
	"nip": NewEffect(
		[]StackType{NewVar(0, "a"), NewVar(1, "b")},
		[]StackType{NewVar(1, "b")},
	),
	"tuck": NewEffect(
		[]StackType{NewVar(0, "a"), NewVar(1, "b")},
		[]StackType{NewVar(1, "b"), NewVar(0, "a"), NewVar(1, "b")},
	),

	// 2dup/2drop/2swap/2over: supplemented double-cell words (§12.2),
	// grounded on original_source's semantic.rs builtin list.
	"2dup": NewEffect(
		[]StackType{NewVar(0, "a"), NewVar(1, "b")},
		[]StackType{NewVar(0, "a"), NewVar(1, "b"), NewVar(0, "a"), NewVar(1, "b")},
	),
	"2drop": NewEffect([]StackType{NewVar(0, "a"), NewVar(1, "b")}, nil),
	"2swap": NewEffect(
		[]StackType{NewVar(0, "a"), NewVar(1, "b"), NewVar(2, "c"), NewVar(3, "d")},
		[]StackType{NewVar(2, "c"), NewVar(3, "d"), NewVar(0, "a"), NewVar(1, "b")},
	),
	"2over": NewEffect(
		[]StackType{NewVar(0, "a"), NewVar(1, "b"), NewVar(2, "c"), NewVar(3, "d")},
		[]StackType{NewVar(0, "a"), NewVar(1, "b"), NewVar(2, "c"), NewVar(3, "d"), NewVar(0, "a"), NewVar(1, "b")},
	),

	"<":  NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Bool)}),
	">":  NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Bool)}),
	"=":  NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Bool)}),
	"<=": NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Bool)}),
	">=": NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Bool)}),
	"<>": NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Bool)}),
	"0=": NewEffect([]StackType{T(Int)}, []StackType{T(Bool)}),
	"0<": NewEffect([]StackType{T(Int)}, []StackType{T(Bool)}),
	"0>": NewEffect([]StackType{T(Int)}, []StackType{T(Bool)}),

	"and":    NewEffect([]StackType{T(Bool), T(Bool)}, []StackType{T(Bool)}),
	"or":     NewEffect([]StackType{T(Bool), T(Bool)}, []StackType{T(Bool)}),
	"xor":    NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Int)}),
	"not":    NewEffect([]StackType{T(Bool)}, []StackType{T(Bool)}),
	"invert": NewEffect([]StackType{T(Int)}, []StackType{T(Int)}),

	".":    NewEffect([]StackType{T(Int)}, nil),
	"emit": NewEffect([]StackType{T(Char)}, nil),
	"cr":   NewEffect(nil, nil),

	"@":  NewEffect([]StackType{T(Addr)}, []StackType{T(Int)}),
	"!":  NewEffect([]StackType{T(Int), T(Addr)}, nil),
	"c@": NewEffect([]StackType{T(Addr)}, []StackType{T(Char)}),
	"c!": NewEffect([]StackType{T(Char), T(Addr)}, nil),

	"negate": NewEffect([]StackType{T(Int)}, []StackType{T(Int)}),
	"abs":    NewEffect([]StackType{T(Int)}, []StackType{T(Int)}),
	"min":    NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Int)}),
	"max":    NewEffect([]StackType{T(Int), T(Int)}, []StackType{T(Int)}),

	">r": NewEffect([]StackType{NewVar(0, "a")}, nil),
	"r>": NewEffect(nil, []StackType{NewVar(0, "a")}),
	"r@": NewEffect(nil, []StackType{NewVar(0, "a")}),

	// DO loop index words: pushed from the loop's hidden index, not the
	// data stack, but modeled here as a zero-input push so inference and
	// SSA construction both know their arity.
	"i": NewEffect(nil, []StackType{T(Int)}),
	"j": NewEffect(nil, []StackType{T(Int)}),
}

// complexControlFlowWords are "trusted" when a declared stack effect
// disagrees with body inference (§4.3 / §9): return-stack juggling defeats
// straight-line inference.
var complexControlFlowWords = map[string]bool{
	">r": true, "r>": true, "r@": true,
}

func IsComplexControlFlowWord(name string) bool {
	return complexControlFlowWords[name]
}

func lookupBuiltinTemplate(name string) (StackEffect, bool) {
	e, ok := builtinTemplates[name]
	return e, ok
}
