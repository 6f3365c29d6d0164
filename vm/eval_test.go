package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runSource assembles source and evaluates it to completion: the
// assemble-then-run helper shape the teacher's own tests use, adapted to
// AVM's assemble/evaluate entry points.
func runSource(t *testing.T, source string) (Value, error) {
	t.Helper()

	image, err := Assemble([]byte(source))
	require.NoError(t, err)

	ctx, err := NewContext(image)
	require.NoError(t, err)
	defer ctx.Release()

	return Evaluate(ctx)
}

func TestScenarioAddTwoConstants(t *testing.T) {
	result, err := runSource(t, "push 3\npush 4\nadd\nquit")
	require.NoError(t, err)
	assert.Equal(t, Value(7), result)
}

func TestScenarioHeapRoundTrip(t *testing.T) {
	result, err := runSource(t, "push ff\nstore 1 100\nload 1 100\nquit")
	require.NoError(t, err)
	assert.Equal(t, Value(0xFF), result)
}

func TestScenarioConditionalJumpNotTaken(t *testing.T) {
	result, err := runSource(t, "push 0\njmpez 10\npush 2a\nquit")
	require.NoError(t, err)
	assert.Equal(t, Value(0x2A), result)
}

func TestScenarioCallReturn(t *testing.T) {
	source := "0: push 5\ncalli 20\nquit\n20: push 6\nadd\nret\n"
	result, err := runSource(t, source)
	require.NoError(t, err)
	assert.Equal(t, Value(11), result)
}

func TestScenarioShiftMask(t *testing.T) {
	result, err := runSource(t, "push 1\npush 41\nshl\nquit")
	require.NoError(t, err)
	assert.Equal(t, Value(2), result)
}

func TestDupPushesCopyOfTop(t *testing.T) {
	result, err := runSource(t, "push 9\ndup\nadd\nquit")
	require.NoError(t, err)
	assert.Equal(t, Value(18), result)
}

func TestBoundaryLoadAtAddrMaxOverflows(t *testing.T) {
	ctx, err := NewContext(nil)
	require.NoError(t, err)
	defer ctx.Release()

	ctx2, err := NewContext([]Word{EncodeInstruction(Load, 1, AddrMax)})
	require.NoError(t, err)
	defer ctx2.Release()

	_, err = Evaluate(ctx2)
	assert.ErrorIs(t, err, ErrAddressOutOfBounds)
}

func TestBoundaryPopEmptyStackFails(t *testing.T) {
	ctx, err := NewContext([]Word{EncodeInstruction(Add, 0, 0)})
	require.NoError(t, err)
	defer ctx.Release()

	_, err = Evaluate(ctx)
	assert.ErrorIs(t, err, ErrStackUnderflow)
}

func TestBoundaryRetWithEmptyCallStackFails(t *testing.T) {
	ctx, err := NewContext([]Word{EncodeInstruction(Ret, 0, 0)})
	require.NoError(t, err)
	defer ctx.Release()

	_, err = Evaluate(ctx)
	assert.ErrorIs(t, err, ErrReturnUnderflow)
}

func TestBoundaryReservedErrorOpcodeFails(t *testing.T) {
	ctx, err := NewContext([]Word{EncodeInstruction(Error, 0, 0)})
	require.NoError(t, err)
	defer ctx.Release()

	_, err = Evaluate(ctx)
	assert.ErrorIs(t, err, ErrInvalidOpcode)
}

func TestBoundaryUnknownOpcodeBecomesError(t *testing.T) {
	ctx, err := NewContext([]Word{EncodeInstruction(Opcode(OpcodeCount+5), 0, 0)})
	require.NoError(t, err)
	defer ctx.Release()

	_, err = Evaluate(ctx)
	assert.ErrorIs(t, err, ErrInvalidOpcode)
}

func TestCalliJumpsAndRetResumesPastCallSite(t *testing.T) {
	// Equivalent to the call/return scenario but built directly from
	// words, to pin down the return-anchor convention independent of the
	// assembler.
	image := []Word{
		EncodeInstruction(Push, 0, 0), EncodeValue(5), // 0,1
		EncodeInstruction(Calli, 0, 4), // 2: calli 4
		EncodeInstruction(Quit, 0, 0),  // 3
		EncodeInstruction(Ret, 0, 0),   // 4: immediately returns
	}
	ctx, err := NewContext(image)
	require.NoError(t, err)
	defer ctx.Release()

	result, err := Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Value(5), result)
}
