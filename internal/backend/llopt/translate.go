package llopt

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	fir "forthc/internal/ir"
)

// funcCtx carries the per-function mutable state a straight-line
// translation pass over Mid-IR needs: the two stack base pointers (the
// function's own params), a mutable "next free slot" index for each
// (spSlot/rspSlot, promoted out of memory into registers by mem2reg
// downstream — this package deliberately leaves that promotion to
// opt/clang rather than hand-rolling SSA construction here, since doing
// so is exactly the optimization LLVM already does well), the
// pre-discovered block boundaries, and the LLVM blocks created for them.
type funcCtx struct {
	fn      *ir.Func
	stack   value.Value
	rstack  value.Value
	spSlot  value.Value
	rspSlot value.Value
	blocks  []*ir.Block // one per entry in bounds, parallel index
	bounds  []int
	funcs   map[string]*ir.Func
	externs map[string]*ir.Func
}

func lowerBody(m *ir.Module, fn *ir.Func, funcs, externs map[string]*ir.Func, instructions []fir.Instruction) error {
	bounds := blockBoundaries(instructions)

	entry := fn.NewBlock("entry")
	spSlot := entry.NewAlloca(types.I64)
	rspSlot := entry.NewAlloca(types.I64)
	entry.NewStore(constant.NewInt(types.I64, 0), spSlot)
	entry.NewStore(constant.NewInt(types.I64, 0), rspSlot)

	blocks := make([]*ir.Block, len(bounds))
	for i := range bounds {
		blocks[i] = fn.NewBlock(fmt.Sprintf("b%d", bounds[i]))
	}
	if len(blocks) > 0 {
		entry.NewBr(blocks[0])
	} else {
		entry.NewRet(constant.NewInt(types.I64, 0))
	}

	ctx := &funcCtx{
		fn: fn, stack: fn.Params[0], rstack: fn.Params[1],
		spSlot: spSlot, rspSlot: rspSlot,
		blocks: blocks, bounds: bounds, funcs: funcs, externs: externs,
	}

	for bi, start := range bounds {
		end := len(instructions)
		if bi+1 < len(bounds) {
			end = bounds[bi+1]
		}
		cur := blocks[bi]
		terminated := false
		for i := start; i < end; i++ {
			var err error
			terminated, err = ctx.lowerInst(cur, instructions[i], i)
			if err != nil {
				return err
			}
			if terminated {
				break
			}
		}
		if !terminated {
			if bi+1 < len(blocks) {
				cur.NewBr(blocks[bi+1])
			} else {
				cur.NewRet(ctx.pop(cur, ctx.stack, ctx.spSlot))
			}
		}
	}
	return nil
}

func (c *funcCtx) blockAt(target int) *ir.Block {
	return c.blocks[blockIndexAt(c.bounds, target)]
}

func (c *funcCtx) push(b *ir.Block, base, spSlot value.Value, v value.Value) {
	sp := b.NewLoad(types.I64, spSlot)
	addr := b.NewGetElementPtr(types.I64, base, sp)
	b.NewStore(v, addr)
	b.NewStore(b.NewAdd(sp, constant.NewInt(types.I64, 1)), spSlot)
}

func (c *funcCtx) pop(b *ir.Block, base, spSlot value.Value) value.Value {
	sp := b.NewLoad(types.I64, spSlot)
	newSP := b.NewSub(sp, constant.NewInt(types.I64, 1))
	b.NewStore(newSP, spSlot)
	addr := b.NewGetElementPtr(types.I64, base, newSP)
	return b.NewLoad(types.I64, addr)
}

// peek loads the value at depth slots below the current top without
// popping it (depth 0 is the current top).
func (c *funcCtx) peek(b *ir.Block, base, spSlot value.Value, depth int64) value.Value {
	sp := b.NewLoad(types.I64, spSlot)
	idx := b.NewSub(sp, constant.NewInt(types.I64, depth+1))
	addr := b.NewGetElementPtr(types.I64, base, idx)
	return b.NewLoad(types.I64, addr)
}

func (c *funcCtx) pokeAt(b *ir.Block, base, spSlot value.Value, depth int64, v value.Value) {
	sp := b.NewLoad(types.I64, spSlot)
	idx := b.NewSub(sp, constant.NewInt(types.I64, depth+1))
	addr := b.NewGetElementPtr(types.I64, base, idx)
	b.NewStore(v, addr)
}

var intPredForOp = map[fir.Op]enum.IPred{
	fir.OpEq: enum.IPredEQ, fir.OpNe: enum.IPredNE,
	fir.OpLt: enum.IPredSLT, fir.OpLe: enum.IPredSLE,
	fir.OpGt: enum.IPredSGT, fir.OpGe: enum.IPredSGE,
}

// lowerInst emits inst's (at Mid-IR index i) translation into b and
// reports whether b is now terminated (a Return/Branch/BranchIf/
// BranchIfNot was just emitted, so the caller must move to the next
// block rather than keep appending).
func (c *funcCtx) lowerInst(b *ir.Block, inst fir.Instruction, i int) (bool, error) {
	stack, sp := c.stack, c.spSlot
	switch inst.Op {
	case fir.OpLiteral:
		c.push(b, stack, sp, constant.NewInt(types.I64, inst.IntOperand))
		return false, nil
	case fir.OpDup:
		c.push(b, stack, sp, c.peek(b, stack, sp, 0))
		return false, nil
	case fir.OpDrop:
		c.pop(b, stack, sp)
		return false, nil
	case fir.OpSwap:
		top, next := c.peek(b, stack, sp, 0), c.peek(b, stack, sp, 1)
		c.pokeAt(b, stack, sp, 0, next)
		c.pokeAt(b, stack, sp, 1, top)
		return false, nil
	case fir.OpOver:
		c.push(b, stack, sp, c.peek(b, stack, sp, 1))
		return false, nil
	case fir.OpNip:
		top := c.peek(b, stack, sp, 0)
		c.pop(b, stack, sp)
		c.pokeAt(b, stack, sp, 0, top)
		return false, nil

	case fir.OpAdd:
		y, x := c.pop(b, stack, sp), c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewAdd(x, y))
		return false, nil
	case fir.OpSub:
		y, x := c.pop(b, stack, sp), c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewSub(x, y))
		return false, nil
	case fir.OpMul:
		y, x := c.pop(b, stack, sp), c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewMul(x, y))
		return false, nil
	case fir.OpDiv:
		y, x := c.pop(b, stack, sp), c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewSDiv(x, y))
		return false, nil
	case fir.OpMod:
		y, x := c.pop(b, stack, sp), c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewSRem(x, y))
		return false, nil
	case fir.OpNeg:
		x := c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewSub(constant.NewInt(types.I64, 0), x))
		return false, nil

	case fir.OpAnd:
		y, x := c.pop(b, stack, sp), c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewAnd(x, y))
		return false, nil
	case fir.OpOr:
		y, x := c.pop(b, stack, sp), c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewOr(x, y))
		return false, nil
	case fir.OpXor:
		y, x := c.pop(b, stack, sp), c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewXor(x, y))
		return false, nil
	case fir.OpNot:
		x := c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewXor(x, constant.NewInt(types.I64, -1)))
		return false, nil
	case fir.OpShl:
		y, x := c.pop(b, stack, sp), c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewShl(x, y))
		return false, nil
	case fir.OpShr:
		y, x := c.pop(b, stack, sp), c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewAShr(x, y))
		return false, nil

	case fir.OpEq, fir.OpNe, fir.OpLt, fir.OpLe, fir.OpGt, fir.OpGe:
		y, x := c.pop(b, stack, sp), c.pop(b, stack, sp)
		cmp := b.NewICmp(intPredForOp[inst.Op], x, y)
		c.push(b, stack, sp, c.boolToForthInt(b, cmp))
		return false, nil
	case fir.OpZeroEq, fir.OpZeroLt, fir.OpZeroGt:
		x := c.pop(b, stack, sp)
		var pred enum.IPred
		switch inst.Op {
		case fir.OpZeroEq:
			pred = enum.IPredEQ
		case fir.OpZeroLt:
			pred = enum.IPredSLT
		case fir.OpZeroGt:
			pred = enum.IPredSGT
		}
		cmp := b.NewICmp(pred, x, constant.NewInt(types.I64, 0))
		c.push(b, stack, sp, c.boolToForthInt(b, cmp))
		return false, nil

	case fir.OpCall:
		if callee, ok := c.funcs[inst.CallName]; ok {
			result := b.NewCall(callee, c.stack, c.rstack)
			c.push(b, stack, sp, result)
			return false, nil
		}
		if extern, ok := c.externs[inst.CallName]; ok {
			// forth-to-c (callingconv.ToC): pop the callee's arity off
			// the data stack and pass each as a plain SysV integer
			// argument, restoring left-to-right order (the rightmost
			// pushed argument is the one popped first, and becomes the
			// extern's last positional argument).
			arity := len(extern.Params)
			args := make([]value.Value, arity)
			for i := arity - 1; i >= 0; i-- {
				args[i] = c.pop(b, stack, sp)
			}
			result := b.NewCall(extern, args...)
			c.push(b, stack, sp, result)
			return false, nil
		}
		return false, fmt.Errorf("call to unknown word %q", inst.CallName)

	case fir.OpReturn:
		b.NewRet(c.pop(b, stack, sp))
		return true, nil

	case fir.OpBranch:
		b.NewBr(c.blockAt(inst.Target))
		return true, nil
	case fir.OpBranchIf:
		cond := c.pop(b, stack, sp)
		isTrue := b.NewICmp(enum.IPredNE, cond, constant.NewInt(types.I64, 0))
		b.NewCondBr(isTrue, c.blockAt(inst.Target), c.blockAt(i+1))
		return true, nil
	case fir.OpBranchIfNot:
		cond := c.pop(b, stack, sp)
		isTrue := b.NewICmp(enum.IPredNE, cond, constant.NewInt(types.I64, 0))
		b.NewCondBr(isTrue, c.blockAt(i+1), c.blockAt(inst.Target))
		return true, nil

	case fir.OpLoad:
		addr := c.pop(b, stack, sp)
		ptr := b.NewIntToPtr(addr, types.NewPointer(types.I64))
		c.push(b, stack, sp, b.NewLoad(types.I64, ptr))
		return false, nil
	case fir.OpStore:
		addr := c.pop(b, stack, sp)
		val := c.pop(b, stack, sp)
		ptr := b.NewIntToPtr(addr, types.NewPointer(types.I64))
		b.NewStore(val, ptr)
		return false, nil
	case fir.OpLoad8:
		addr := c.pop(b, stack, sp)
		ptr := b.NewIntToPtr(addr, types.NewPointer(types.I8))
		loaded := b.NewLoad(types.I8, ptr)
		c.push(b, stack, sp, b.NewZExt(loaded, types.I64))
		return false, nil
	case fir.OpStore8:
		addr := c.pop(b, stack, sp)
		val := c.pop(b, stack, sp)
		ptr := b.NewIntToPtr(addr, types.NewPointer(types.I8))
		b.NewStore(b.NewTrunc(val, types.I8), ptr)
		return false, nil

	case fir.OpToR:
		v := c.pop(b, stack, sp)
		c.push(b, c.rstack, c.rspSlot, v)
		return false, nil
	case fir.OpFromR:
		v := c.pop(b, c.rstack, c.rspSlot)
		c.push(b, stack, sp, v)
		return false, nil
	case fir.OpRFetch:
		v := c.peek(b, c.rstack, c.rspSlot, 0)
		c.push(b, stack, sp, v)
		return false, nil

	case fir.OpIncOne:
		x := c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewAdd(x, constant.NewInt(types.I64, 1)))
		return false, nil
	case fir.OpDecOne:
		x := c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewSub(x, constant.NewInt(types.I64, 1)))
		return false, nil
	case fir.OpMulTwo:
		x := c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewShl(x, constant.NewInt(types.I64, 1)))
		return false, nil
	case fir.OpDivTwo:
		x := c.pop(b, stack, sp)
		c.push(b, stack, sp, b.NewAShr(x, constant.NewInt(types.I64, 1)))
		return false, nil

	case fir.OpCachedDup, fir.OpFlushCache, fir.OpComment, fir.OpLabel, fir.OpNop:
		// The stack-cache hints are meaningless here: LLVM's own
		// register allocator downstream makes the same decision the
		// fast-compile backend hand-rolls the hints for, so this
		// backend just lowers the cached variants as their plain
		// equivalents (falling through below).
		if inst.Op == fir.OpCachedDup {
			c.push(b, stack, sp, c.peek(b, stack, sp, 0))
		}
		return false, nil
	case fir.OpCachedSwap:
		top, next := c.peek(b, stack, sp, 0), c.peek(b, stack, sp, 1)
		c.pokeAt(b, stack, sp, 0, next)
		c.pokeAt(b, stack, sp, 1, top)
		return false, nil
	case fir.OpCachedOver:
		c.push(b, stack, sp, c.peek(b, stack, sp, 1))
		return false, nil

	case fir.OpFloatLiteral:
		return false, fmt.Errorf("llopt: float literals are not yet lowered (tracked separately from the integer stack model)")

	default:
		return false, fmt.Errorf("llopt: unsupported op %s", inst.Op)
	}
}

// boolToForthInt widens an i1 comparison result to the Mid-IR's -1/0
// boolean convention (internal/optimizer/constant_fold.go's boolVal):
// zext to i64 gives 0/1, then negate gives 0/-1.
func (c *funcCtx) boolToForthInt(b *ir.Block, cmp value.Value) value.Value {
	z := b.NewZExt(cmp, types.I64)
	return b.NewSub(constant.NewInt(types.I64, 0), z)
}
