package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringifyOneLoadStore(t *testing.T) {
	mem := NewImageReader([]Word{EncodeInstruction(Load, 2, 0x100)})
	text, next := StringifyOne(mem, 0)
	assert.Equal(t, "load\t2w\t0x0100", text)
	assert.Equal(t, Address(1), next)
}

func TestStringifyOnePushConsumesTwoWords(t *testing.T) {
	mem := NewImageReader([]Word{EncodeInstruction(Push, 0, 0), EncodeValue(42)})
	text, next := StringifyOne(mem, 0)
	assert.Equal(t, "push\t0x000000000000002a (dec. 42)", text)
	assert.Equal(t, Address(2), next)
}

func TestStringifyOneCalli(t *testing.T) {
	mem := NewImageReader([]Word{EncodeInstruction(Calli, 0, 0x20)})
	text, next := StringifyOne(mem, 0)
	assert.Equal(t, "call\t0x0020", text)
	assert.Equal(t, Address(1), next)
}

func TestStringifyOneJmpez(t *testing.T) {
	mem := NewImageReader([]Word{EncodeInstruction(Jmpez, 0, 0x10)})
	text, _ := StringifyOne(mem, 0)
	assert.Equal(t, "jumpez\t0x0010", text)
}

func TestStringifyOneBareMnemonic(t *testing.T) {
	mem := NewImageReader([]Word{EncodeInstruction(Add, 0, 0)})
	text, next := StringifyOne(mem, 0)
	assert.Equal(t, "add", text)
	assert.Equal(t, Address(1), next)
}

func TestStringifyOneReservedErrorOpcode(t *testing.T) {
	mem := NewImageReader([]Word{EncodeInstruction(Error, 0, 0)})
	text, _ := StringifyOne(mem, 0)
	assert.Equal(t, "error\t0x0000000000000000", text)
}

func TestStringifyOneOutOfRangeKindIsError(t *testing.T) {
	mem := NewImageReader([]Word{EncodeInstruction(Opcode(OpcodeCount+3), 0, 0)})
	text, _ := StringifyOne(mem, 0)
	assert.Contains(t, text, "error\t0x")
}

func TestStringifyRangeJoinsLinesWithAddressPrefix(t *testing.T) {
	mem := NewImageReader([]Word{
		EncodeInstruction(Push, 0, 0), EncodeValue(7),
		EncodeInstruction(Quit, 0, 0),
	})
	listing, err := StringifyRange(mem, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, "0000:\tpush\t0x0000000000000007 (dec. 7)\n0002:\tquit", listing)
}

func TestStringifyRangeEmptyIsEmptyString(t *testing.T) {
	mem := NewImageReader(nil)
	listing, err := StringifyRange(mem, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "", listing)
}

func TestStringifyRangeOverflowFails(t *testing.T) {
	mem := NewImageReader(nil)
	_, err := StringifyRange(mem, AddrMax, 2)
	assert.ErrorIs(t, err, ErrAddressOutOfBounds)
}
