package vm

import "fmt"

// Initial capacities.
const (
	initialOverhead  Address = 4096
	initialCallStack Address = 256
)

// Context is the machine state: the heap, the value stack, the call stack
// and the instruction pointer. It is created by NewContext with an initial
// image, mutated exclusively through its own methods and the evaluator,
// and torn down with Release.
type Context struct {
	memory     []Word
	memorySize Address

	stack     []Word
	stackSize Address
	stackCap  Address

	callStack []Address
	csSize    Address
	csCap     Address

	ins Address
	err error

	released bool
}

// NewContext copies image into a freshly allocated heap padded with
// initialOverhead words of slack, and allocates the value stack and call
// stack at their initial capacities.
func NewContext(image []Word) (*Context, error) {
	oplen := Address(len(image))
	memSize := oplen + initialOverhead

	mem, err := growZeroed(nil, int(memSize))
	if err != nil {
		return nil, fmt.Errorf("%w: unable to allocate heap (%d words)", ErrAllocFailed, memSize)
	}
	copy(mem, image)

	stack, err := growZeroed(nil, int(initialOverhead))
	if err != nil {
		return nil, fmt.Errorf("%w: unable to allocate stack (%d words)", ErrAllocFailed, initialOverhead)
	}

	return &Context{
		memory:     mem,
		memorySize: memSize,
		stack:      stack,
		stackCap:   initialOverhead,
		callStack:  make([]Address, initialCallStack),
		csCap:      initialCallStack,
	}, nil
}

// Release frees the four owned buffers. Calling it twice on the same
// Context is a programmer error and returns errAlreadyReleased rather than
// silently succeeding.
func (ctx *Context) Release() error {
	if ctx.released {
		return errAlreadyReleased
	}
	ctx.memory = nil
	ctx.stack = nil
	ctx.callStack = nil
	ctx.released = true
	return nil
}

// Err returns the diagnostic recorded by the most recent failing
// operation, or nil.
func (ctx *Context) Err() error { return ctx.err }

// Ins returns the current instruction pointer.
func (ctx *Context) Ins() Address { return ctx.ins }

// MemorySize returns the current heap capacity in words.
func (ctx *Context) MemorySize() Address { return ctx.memorySize }

// fetchWord reads the raw word at loc, treating out-of-range reads as the
// infinite zero-extension invariant requires.
func (ctx *Context) fetchWord(loc Address) Word {
	if loc >= ctx.memorySize {
		return 0
	}
	return ctx.memory[loc]
}

// HeapGet returns memory[loc], or zero if loc has never been written.
// It never fails.
func (ctx *Context) HeapGet(loc Address) Value {
	return ctx.fetchWord(loc).Value()
}

// HeapSet stores value at loc, growing the heap (saturating-double,
// zero-filled tail) as many times as needed to cover loc. Writing a zero
// past the current size is a no-op: the infinite zero-extension already
// reads back as zero there.
func (ctx *Context) HeapSet(loc Address, value Value) error {
	if value == 0 && loc >= ctx.memorySize {
		return nil
	}

	for loc >= ctx.memorySize {
		newSize := saturatingDouble(ctx.memorySize)
		if newSize == ctx.memorySize {
			return fmt.Errorf("%w: heap address 0x%x exceeds growth limit", ErrAddressOverflow, loc)
		}

		grown, err := growZeroed(ctx.memory, int(newSize))
		if err != nil {
			return fmt.Errorf("%w: unable to grow heap to %d words", ErrAllocFailed, newSize)
		}
		ctx.memory = grown
		ctx.memorySize = newSize
	}

	ctx.memory[loc] = EncodeValue(value)
	return nil
}

// StackPush pushes value onto the evaluation stack, growing it
// (saturating-double) if it is full.
func (ctx *Context) StackPush(value Value) error {
	if ctx.stackSize == AddrMax {
		return fmt.Errorf("%w: value stack", ErrStackOverflow)
	}

	ctx.stackSize++
	if ctx.stackCap <= ctx.stackSize {
		newCap := saturatingDouble(ctx.stackCap)
		grown, err := growZeroed(ctx.stack, int(newCap))
		if err != nil {
			return fmt.Errorf("%w: unable to grow stack to %d words", ErrAllocFailed, newCap)
		}
		ctx.stack = grown
		ctx.stackCap = newCap
	}

	ctx.stack[ctx.stackSize-1] = EncodeValue(value)
	return nil
}

// StackPop removes and returns the top of the evaluation stack.
func (ctx *Context) StackPop() (Value, error) {
	if ctx.stackSize == 0 {
		return 0, fmt.Errorf("%w: value stack", ErrStackUnderflow)
	}
	ctx.stackSize--
	return ctx.stack[ctx.stackSize].Value(), nil
}

// StackPeek returns the top of the evaluation stack without removing it.
func (ctx *Context) StackPeek() (Value, error) {
	if ctx.stackSize == 0 {
		return 0, fmt.Errorf("%w: value stack", ErrStackUnderflow)
	}
	return ctx.stack[ctx.stackSize-1].Value(), nil
}

// StackLen reports the number of live entries in the evaluation stack,
// used by the debug REPL's state dump.
func (ctx *Context) StackLen() Address { return ctx.stackSize }

// pushCall records target as a return anchor on the call stack, growing it
// (saturating-double) as needed.
func (ctx *Context) pushCall(target Address) error {
	if ctx.csSize+1 == AddrMax {
		return fmt.Errorf("%w", ErrCallStackOverflow)
	}

	if ctx.csSize+1 == ctx.csCap {
		newCap := saturatingDouble(ctx.csCap)
		grown := make([]Address, newCap)
		copy(grown, ctx.callStack)
		ctx.callStack = grown
		ctx.csCap = newCap
	}

	ctx.callStack[ctx.csSize] = target
	ctx.csSize++
	return nil
}

// popCall removes and returns the top of the call stack. The emptiness
// check happens before any mutation: an earlier revision of the source
// this was ported from popped first and checked after, which could
// underflow the call stack's logical size.
func (ctx *Context) popCall() (Address, error) {
	if ctx.csSize == 0 {
		return 0, fmt.Errorf("%w", ErrReturnUnderflow)
	}
	ctx.csSize--
	return ctx.callStack[ctx.csSize], nil
}

// CallStackLen reports the number of live entries in the call stack, used
// by the debug REPL's state dump.
func (ctx *Context) CallStackLen() Address { return ctx.csSize }
