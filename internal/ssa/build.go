package ssa

import (
	"fmt"

	"forthc/internal/ast"
	"forthc/internal/types"
)

// unaryOps maps a builtin word name to the Op it lowers to as a UnaryOp
// instruction (one operand popped, one result pushed).
var unaryOps = map[string]Op{
	"negate": OpNeg,
	"abs":    OpAbs,
	"not":    OpNot,
	"invert": OpNot,
	"0=":     OpZeroEq,
	"0<":     OpZeroLt,
	"0>":     OpZeroGt,
}

// binaryOps maps a builtin word name to the Op it lowers to as a
// BinaryOp instruction (two operands popped in stack order, one result
// pushed).
var binaryOps = map[string]Op{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "mod": OpMod,
	"and": OpAnd, "or": OpOr, "xor": OpXor,
	"<": OpLt, ">": OpGt, "=": OpEq, "<>": OpNe, "<=": OpLe, ">=": OpGe,
}

// BuildError reports a failure translating a definition's body to SSA.
type BuildError struct{ Message string }

func (e *BuildError) Error() string { return e.Message }

type builder struct {
	inference *types.Inference
	nextReg   Register
	nextBlock BlockId
	blocks    []*BasicBlock
	current   *BasicBlock
	stack     []Register
	loopDepth int // nesting depth of DO loops currently being built, for `i`/`j` validity
}

// Build lowers a single definition's body to an SSAFunction (§4.5).
// inference supplies arity information for builtin and user-defined
// words so the builder knows how many operands each Call consumes.
func Build(def *ast.Definition, inference *types.Inference) (*SSAFunction, error) {
	b := &builder{inference: inference}
	entry := b.newBlock(nil)
	b.current = entry

	// def.Name must already be registered with inference (by the
	// semantic analyzer's registration pass) so its arity — declared or
	// inferred — is known without re-walking the body here.
	nparams := 0
	if effect, err := inference.EffectFor(def.Name); err == nil {
		nparams = len(effect.Inputs)
	}
	params := make([]Register, nparams)
	for i := 0; i < nparams; i++ {
		params[i] = b.freshReg()
		b.stack = append(b.stack, params[i])
	}

	if err := b.buildSequence(def.Body); err != nil {
		return nil, err
	}

	if _, ok := b.current.Terminator(); !ok {
		b.emit(Instruction{Kind: InstReturn, ReturnValues: append([]Register(nil), b.stack...)})
	}

	return &SSAFunction{
		Name:         def.Name,
		Parameters:   params,
		ReturnValues: append([]Register(nil), b.stack...),
		Blocks:       b.blocks,
	}, nil
}

func (b *builder) freshReg() Register {
	r := b.nextReg
	b.nextReg++
	return r
}

func (b *builder) newBlock(preds []BlockId) *BasicBlock {
	blk := &BasicBlock{ID: b.nextBlock, Predecessors: preds}
	b.nextBlock++
	b.blocks = append(b.blocks, blk)
	return blk
}

func (b *builder) emit(inst Instruction) {
	b.current.Instructions = append(b.current.Instructions, inst)
}

func (b *builder) pop() (Register, error) {
	if len(b.stack) == 0 {
		return 0, &BuildError{"stack underflow during SSA construction"}
	}
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return top, nil
}

func (b *builder) push(r Register) { b.stack = append(b.stack, r) }

func (b *builder) buildSequence(words []ast.Word) error {
	for _, w := range words {
		if err := b.buildWord(w); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) buildWord(w ast.Word) error {
	switch w.Kind {
	case ast.KindIntLiteral:
		dst := b.freshReg()
		b.emit(Instruction{Kind: InstLoadInt, Dest: dst, HasDest: true, IntValue: w.IntLiteral})
		b.push(dst)
		return nil

	case ast.KindFloatLiteral:
		dst := b.freshReg()
		b.emit(Instruction{Kind: InstLoadFloat, Dest: dst, HasDest: true, FloatValue: w.FloatLiteral})
		b.push(dst)
		return nil

	case ast.KindStringLiteral:
		// String constants are materialized as calls to a literal-load
		// pseudo-word; the backend resolves CallName "%string" via its
		// constant pool.
		dst := b.freshReg()
		b.emit(Instruction{Kind: InstCall, Dest: dst, HasDest: true, CallName: "%string"})
		b.push(dst)
		return nil

	case ast.KindWordRef:
		return b.buildWordRef(w)

	case ast.KindIf:
		return b.buildIf(w)

	case ast.KindBeginUntil:
		return b.buildBeginUntil(w)

	case ast.KindBeginWhileRepeat:
		return b.buildBeginWhileRepeat(w)

	case ast.KindDoLoop:
		return b.buildDoLoop(w)

	case ast.KindVariable, ast.KindConstant:
		return nil

	default:
		return &BuildError{fmt.Sprintf("unsupported AST node kind %v in SSA builder", w.Kind)}
	}
}

func (b *builder) buildWordRef(w ast.Word) error {
	name := w.WordRef

	if name == "i" || name == "j" {
		depth := 1
		if name == "j" {
			depth = 2
		}
		if b.loopDepth < depth {
			return &BuildError{fmt.Sprintf("%q used outside a matching DO loop", name)}
		}
		// The loop index has no SSA register of its own: once lowered it
		// lives on the return stack (§4.6), so every read is its own Call,
		// not a reference to some earlier instruction's result.
		dst := b.freshReg()
		b.emit(Instruction{Kind: InstCall, Dest: dst, HasDest: true, CallName: name})
		b.push(dst)
		return nil
	}

	if op, ok := unaryOps[name]; ok {
		arg, err := b.pop()
		if err != nil {
			return err
		}
		dst := b.freshReg()
		b.emit(Instruction{Kind: InstUnaryOp, Dest: dst, HasDest: true, UnOp: op, Operand: arg})
		b.push(dst)
		return nil
	}

	if op, ok := binaryOps[name]; ok {
		right, err := b.pop()
		if err != nil {
			return err
		}
		left, err := b.pop()
		if err != nil {
			return err
		}
		dst := b.freshReg()
		b.emit(Instruction{Kind: InstBinaryOp, Dest: dst, HasDest: true, BinOp: op, Left: left, Right: right})
		b.push(dst)
		return nil
	}

	// Generic words (stack shuffles, memory ops, I/O,
	// user-defined words, ...) lower to a Call of known arity, read from
	// the inference engine's recorded stack effect.
	effect, err := b.inference.EffectFor(name)
	if err != nil {
		return &BuildError{err.Error()}
	}
	args := make([]Register, len(effect.Inputs))
	for i := len(args) - 1; i >= 0; i-- {
		r, err := b.pop()
		if err != nil {
			return err
		}
		args[i] = r
	}

	results := make([]Register, len(effect.Outputs))
	for i := range results {
		results[i] = b.freshReg()
	}

	inst := Instruction{Kind: InstCall, CallName: name, Args: args}
	if len(results) == 1 {
		inst.HasDest = true
		inst.Dest = results[0]
	} else if len(results) > 1 {
		inst.ReturnValues = results
	}
	b.emit(inst)
	for _, r := range results {
		b.push(r)
	}
	return nil
}

// buildIf lowers a condition already on the stack plus two branches into
// a branch block, two arm blocks, and a merge block with one Phi per
// output slot pushed by both arms (§4.5 step 3).
func (b *builder) buildIf(w ast.Word) error {
	cond, err := b.pop()
	if err != nil {
		return err
	}
	condBlock := b.current
	baseStack := append([]Register(nil), b.stack...)

	thenEntry := b.newBlock([]BlockId{condBlock.ID})
	elseEntry := b.newBlock([]BlockId{condBlock.ID})

	b.current = thenEntry
	b.stack = append([]Register(nil), baseStack...)
	if err := b.buildSequence(w.Then); err != nil {
		return err
	}
	thenExit := b.current
	thenStack := append([]Register(nil), b.stack...)

	b.current = elseEntry
	b.stack = append([]Register(nil), baseStack...)
	if err := b.buildSequence(w.Else); err != nil {
		return err
	}
	elseExit := b.current
	elseStack := append([]Register(nil), b.stack...)

	if len(thenStack) != len(elseStack) {
		return &BuildError{"if/else branches leave different stack depths"}
	}

	condBlock.Instructions = append(condBlock.Instructions, Instruction{
		Kind: InstBranch, Condition: cond, TrueBlock: thenEntry.ID, FalseBlock: elseEntry.ID,
	})

	merge := b.newBlock([]BlockId{thenExit.ID, elseExit.ID})
	thenExit.Instructions = append(thenExit.Instructions, Instruction{Kind: InstJump, JumpTarget: merge.ID})
	elseExit.Instructions = append(elseExit.Instructions, Instruction{Kind: InstJump, JumpTarget: merge.ID})

	b.current = merge
	b.stack = baseStack
	for i := 0; i < len(thenStack); i++ {
		dst := b.freshReg()
		b.emit(Instruction{
			Kind: InstPhi, Dest: dst, HasDest: true,
			Incoming: []PhiIncoming{{Value: thenStack[i], Block: thenExit.ID}, {Value: elseStack[i], Block: elseExit.ID}},
		})
		b.push(dst)
	}
	return nil
}

// loopHeaderPhis allocates one Phi placeholder per slot currently on the
// stack and pre-pends them (destinations unset incoming) to header, so
// the body can be built once against stable SSA names even though the
// values those names resolve to on the back-edge aren't known until the
// body has been built (§4.5 step 3, applied to loop-carried values).
func (b *builder) loopHeaderPhis(header *BasicBlock, baseStack []Register) (placeholders []Register, phiIdx []int) {
	placeholders = make([]Register, len(baseStack))
	phiIdx = make([]int, len(baseStack))
	for i := range baseStack {
		placeholders[i] = b.freshReg()
		phiIdx[i] = len(header.Instructions)
		header.Instructions = append(header.Instructions, Instruction{Kind: InstPhi, Dest: placeholders[i], HasDest: true})
	}
	return placeholders, phiIdx
}

// patchLoopHeaderPhis fills in each placeholder's two incoming edges once
// the back-edge source block and its exit-time values are known. A
// back-edge value missing (body net-shrank the stack) falls back to the
// placeholder itself — a trivial self-loop, still valid SSA.
func patchLoopHeaderPhis(header *BasicBlock, phiIdx []int, placeholders []Register, entryVals []Register, entryBlock BlockId, exitVals []Register, exitBlock BlockId) {
	for i, ph := range placeholders {
		backVal := ph
		if i < len(exitVals) {
			backVal = exitVals[i]
		}
		header.Instructions[phiIdx[i]].Incoming = []PhiIncoming{
			{Value: entryVals[i], Block: entryBlock},
			{Value: backVal, Block: exitBlock},
		}
	}
}

// buildBeginUntil lowers BEGIN...UNTIL into a loop block re-entered via
// a back-edge until the trailing boolean is true.
func (b *builder) buildBeginUntil(w ast.Word) error {
	preHeader := b.current
	baseStack := append([]Register(nil), b.stack...)
	header := b.newBlock([]BlockId{preHeader.ID})
	preHeader.Instructions = append(preHeader.Instructions, Instruction{Kind: InstJump, JumpTarget: header.ID})

	placeholders, phiIdx := b.loopHeaderPhis(header, baseStack)

	b.current = header
	b.stack = append([]Register(nil), placeholders...)
	if err := b.buildSequence(w.Body); err != nil {
		return err
	}
	cond, err := b.pop()
	if err != nil {
		return err
	}
	exitStack := append([]Register(nil), b.stack...)
	loopExit := b.current

	after := b.newBlock([]BlockId{loopExit.ID})
	header.Predecessors = append(header.Predecessors, loopExit.ID)
	loopExit.Instructions = append(loopExit.Instructions, Instruction{
		Kind: InstBranch, Condition: cond, TrueBlock: after.ID, FalseBlock: header.ID,
	})
	patchLoopHeaderPhis(header, phiIdx, placeholders, baseStack, preHeader.ID, exitStack, loopExit.ID)

	b.current = after
	b.stack = exitStack
	return nil
}

// buildBeginWhileRepeat lowers BEGIN cond WHILE body REPEAT: the
// condition is evaluated first, branching out of the loop when false.
func (b *builder) buildBeginWhileRepeat(w ast.Word) error {
	preHeader := b.current
	baseStack := append([]Register(nil), b.stack...)
	header := b.newBlock([]BlockId{preHeader.ID})
	preHeader.Instructions = append(preHeader.Instructions, Instruction{Kind: InstJump, JumpTarget: header.ID})

	placeholders, phiIdx := b.loopHeaderPhis(header, baseStack)

	b.current = header
	b.stack = append([]Register(nil), placeholders...)
	if err := b.buildSequence(w.Cond); err != nil {
		return err
	}
	cond, err := b.pop()
	if err != nil {
		return err
	}
	condExit := b.current
	stackAtTest := append([]Register(nil), b.stack...)

	body := b.newBlock([]BlockId{condExit.ID})
	after := b.newBlock([]BlockId{condExit.ID})
	condExit.Instructions = append(condExit.Instructions, Instruction{
		Kind: InstBranch, Condition: cond, TrueBlock: body.ID, FalseBlock: after.ID,
	})

	b.current = body
	b.stack = stackAtTest
	if err := b.buildSequence(w.Body); err != nil {
		return err
	}
	bodyExit := b.current
	exitStack := append([]Register(nil), b.stack...)
	bodyExit.Instructions = append(bodyExit.Instructions, Instruction{Kind: InstJump, JumpTarget: header.ID})
	header.Predecessors = append(header.Predecessors, bodyExit.ID)
	patchLoopHeaderPhis(header, phiIdx, placeholders, baseStack, preHeader.ID, exitStack, bodyExit.ID)

	b.current = after
	b.stack = stackAtTest
	return nil
}

// buildDoLoop lowers DO...LOOP / DO...+LOOP. Unlike the other loop forms,
// the index has no SSA register of its own (see the `i`/`j` case in
// buildWordRef): it is pushed to the return stack once, at loop entry, and
// the increment/compare/branch at the end of each pass are placeholder
// instructions the mid-IR lowering expands into real return-stack traffic
// (§4.6). Because of this, the header carries no Phi at all, not even for
// the data stack: the body is assumed to leave the data stack exactly as it
// found it, the same "Known simplification" already made for the other
// loop forms' net stack effect.
func (b *builder) buildDoLoop(w ast.Word) error {
	if _, err := b.pop(); err != nil { // limit
		return err
	}
	if _, err := b.pop(); err != nil { // start
		return err
	}

	preHeader := b.current
	header := b.newBlock([]BlockId{preHeader.ID})
	preHeader.Instructions = append(preHeader.Instructions, Instruction{
		Kind: InstJump, JumpTarget: header.ID, IsLoopEntry: true,
	})

	b.current = header
	stackBeforeBody := append([]Register(nil), b.stack...)
	b.loopDepth++
	err := b.buildSequence(w.Body)
	b.loopDepth--
	if err != nil {
		return err
	}
	bodyExit := b.current

	if len(w.PlusLoopStep) > 0 {
		if err := b.buildSequence(w.PlusLoopStep); err != nil {
			return err
		}
	} else {
		dst := b.freshReg()
		bodyExit.Instructions = append(bodyExit.Instructions, Instruction{Kind: InstLoadInt, Dest: dst, HasDest: true, IntValue: 1})
		b.push(dst)
	}
	if _, err := b.pop(); err != nil { // step, consumed by the placeholder below
		return err
	}

	nextIdx := b.freshReg()
	bodyExit.Instructions = append(bodyExit.Instructions, Instruction{
		Kind: InstBinaryOp, Dest: nextIdx, HasDest: true, BinOp: OpAdd, IsLoopIncrement: true,
	})
	cond := b.freshReg()
	bodyExit.Instructions = append(bodyExit.Instructions, Instruction{
		Kind: InstBinaryOp, Dest: cond, HasDest: true, BinOp: OpGe,
	})

	after := b.newBlock([]BlockId{bodyExit.ID})
	header.Predecessors = append(header.Predecessors, bodyExit.ID)
	bodyExit.Instructions = append(bodyExit.Instructions, Instruction{
		Kind: InstBranch, Condition: cond, TrueBlock: after.ID, FalseBlock: header.ID,
	})

	b.current = after
	b.stack = stackBeforeBody
	return nil
}
