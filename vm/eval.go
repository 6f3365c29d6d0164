package vm

import "fmt"

// Evaluate runs ctx from its current instruction pointer until a quit
// instruction or a failing handler. On success it returns the value quit
// popped off the stack; on failure the returned error is also recorded on
// ctx (retrievable via ctx.Err()) and the context is left in whatever
// partially-mutated state the failing instruction produced.
//
// Dispatch is a tagged-enum switch rather than a function-pointer table:
// the compiler lowers a dense switch over a small integer to equivalent
// jump-table code, so nothing is lost by dropping the indirection.
func Evaluate(ctx *Context) (Value, error) {
	for {
		done, result, err := Step(ctx)
		if done {
			return result, err
		}
	}
}

// Step executes exactly one instruction at ctx.Ins(). done is true once
// execution has finished: either quit popped its result, or a handler
// failed. Otherwise the caller should call Step again to continue. This is
// split out from Evaluate so the debug REPL can single-step without
// duplicating the fetch/decode/dispatch logic.
func Step(ctx *Context) (done bool, result Value, err error) {
	op := ctx.fetchWord(ctx.ins)
	kind := op.Kind()

	if kind == Quit {
		result, err = ctx.StackPop()
		if err != nil {
			ctx.err = err
			return true, 0, err
		}
		return true, result, nil
	}

	if int(kind) >= OpcodeCount {
		kind = Error
	}

	if err = ctx.dispatch(kind, op); err != nil {
		ctx.err = err
		return true, 0, err
	}

	ctx.ins++
	return false, 0, nil
}

func (ctx *Context) dispatch(kind Opcode, op Word) error {
	switch kind {
	case Error:
		return ctx.evalError(op)
	case Load:
		return ctx.evalLoad(op)
	case Store:
		return ctx.evalStore(op)
	case Push:
		return ctx.evalPush(op)
	case Add:
		return ctx.evalBinop(func(a, b Value) Value { return a + b })
	case Sub:
		return ctx.evalBinop(func(a, b Value) Value { return a - b })
	case And:
		return ctx.evalBinop(func(a, b Value) Value { return a & b })
	case Or:
		return ctx.evalBinop(func(a, b Value) Value { return a | b })
	case Xor:
		return ctx.evalBinop(func(a, b Value) Value { return a ^ b })
	case Shr:
		return ctx.evalBinop(func(a, b Value) Value { return b >> (a & 0x3F) })
	case Shl:
		return ctx.evalBinop(func(a, b Value) Value { return b << (a & 0x3F) })
	case Calli:
		return ctx.evalCalli(op)
	case Call:
		return ctx.evalCall()
	case Ret:
		return ctx.evalRet()
	case Jmpez:
		return ctx.evalJmpez(op)
	case Dup:
		return ctx.evalDup()
	default:
		return ctx.evalError(op)
	}
}

func (ctx *Context) evalError(op Word) error {
	return fmt.Errorf("%w: 0x%016x", ErrInvalidOpcode, uint64(op))
}

// evalLoad extracts size words starting at address and pushes them,
// lowest address first.
func (ctx *Context) evalLoad(op Word) error {
	size, address := op.Size(), op.InsAddress()
	if addOverflowCheck(address, size) {
		return fmt.Errorf("%w: load from 0x%x, size 0x%x", ErrAddressOutOfBounds, address, size)
	}

	for idx := address; idx < address+size; idx++ {
		if err := ctx.StackPush(ctx.HeapGet(idx)); err != nil {
			return err
		}
	}
	return nil
}

// evalStore pops size words and places them on the heap starting at
// address, ascending.
func (ctx *Context) evalStore(op Word) error {
	size, address := op.Size(), op.InsAddress()
	if addOverflowCheck(address, size) {
		return fmt.Errorf("%w: store to 0x%x, size 0x%x", ErrAddressOutOfBounds, address, size)
	}

	for idx := address; idx < address+size; idx++ {
		data, err := ctx.StackPop()
		if err != nil {
			return err
		}
		if err := ctx.HeapSet(idx, data); err != nil {
			return err
		}
	}
	return nil
}

// evalPush reads the immediate that follows the push opcode word and
// pushes it, consuming the extra word by advancing ins one further than
// the dispatcher's own increment.
func (ctx *Context) evalPush(op Word) error {
	_ = op
	data := ctx.HeapGet(ctx.ins + 1)
	ctx.ins++
	return ctx.StackPush(data)
}

// evalBinop implements the SIMPLE_BINOP shape shared by add/sub/and/or/
// xor/shr/shl: pop a, pop b, push op(a, b). For shr/shl, a (the top of
// stack, popped first) is the shift amount and b is the value shifted —
// see the design notes on the shift-mask worked example for why this is
// swapped from the literal per-opcode table text.
func (ctx *Context) evalBinop(op func(a, b Value) Value) error {
	a, err := ctx.StackPop()
	if err != nil {
		return err
	}
	b, err := ctx.StackPop()
	if err != nil {
		return err
	}
	return ctx.StackPush(op(a, b))
}

// evalCalli records the call site (this instruction's own address, not the
// jump target) as the return anchor, then jumps to op's address. The return
// anchor is what ret later resumes one past, so a call and its eventual ret
// land back at the instruction after the call, not inside the callee.
func (ctx *Context) evalCalli(op Word) error {
	if err := ctx.pushCall(ctx.ins); err != nil {
		return err
	}
	ctx.ins = op.InsAddress() - 1 // dispatcher's ins++ lands exactly on target
	return nil
}

// evalCall pops the jump target off the value stack and otherwise behaves
// like evalCalli.
func (ctx *Context) evalCall() error {
	target, err := ctx.StackPop()
	if err != nil {
		return err
	}
	callSite := ctx.ins
	if err := ctx.pushCall(callSite); err != nil {
		return err
	}
	ctx.ins = Address(target) - 1
	return nil
}

// evalRet checks the call stack is non-empty before popping it (the fix
// for an earlier revision that popped first and could underflow), then
// resumes one instruction past the recorded call site.
func (ctx *Context) evalRet() error {
	anchor, err := ctx.popCall()
	if err != nil {
		return err
	}
	ctx.ins = anchor // dispatcher's ins++ resumes past the call site
	return nil
}

// evalJmpez pops the test value and jumps to op's address only when the
// test is exactly 1, leaving ins untouched (so the dispatcher's increment
// advances normally) otherwise.
func (ctx *Context) evalJmpez(op Word) error {
	test, err := ctx.StackPop()
	if err != nil {
		return err
	}
	if test == 1 {
		ctx.ins = op.InsAddress() - 1
	}
	return nil
}

// evalDup pushes a copy of the top of the stack without removing it. This
// is the supplemented handler for the dup mnemonic (see the design notes):
// the source's mnemonic table reserves the slot but never implements it.
func (ctx *Context) evalDup() error {
	top, err := ctx.StackPeek()
	if err != nil {
		return err
	}
	return ctx.StackPush(top)
}
