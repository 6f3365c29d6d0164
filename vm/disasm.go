package vm

import (
	"fmt"
	"strings"
)

// HeapReader is the minimal read access the disassembler needs. *Context
// satisfies it; callers that only want to stringify a bare image can wrap
// a plain []Word in an in-memory reader instead of constructing a full
// Context.
type HeapReader interface {
	HeapGet(loc Address) Value
}

// imageReader adapts a raw []Word slice to HeapReader for disassembling an
// assembled image that has no Context yet.
type imageReader []Word

func (img imageReader) HeapGet(loc Address) Value {
	if int(loc) >= len(img) {
		return 0
	}
	return Value(img[loc])
}

// NewImageReader wraps a raw word slice for use with StringifyOne/Range.
func NewImageReader(words []Word) HeapReader { return imageReader(words) }

// StringifyOne decodes the word at ins and renders it per the opcode
// table, returning the address of the next instruction: ins+1 for every
// opcode except push, which also consumes its trailing immediate and so
// returns ins+2.
func StringifyOne(mem HeapReader, ins Address) (string, Address) {
	word := Word(mem.HeapGet(ins))
	kind := word.Kind()

	switch kind {
	case Load, Store:
		return fmt.Sprintf("%s\t%dw\t0x%04x", kind, word.Size(), word.InsAddress()), ins + 1
	case Push:
		value := mem.HeapGet(ins + 1)
		return fmt.Sprintf("push\t0x%016x (dec. %d)", value, value), ins + 2
	case Calli:
		return fmt.Sprintf("call\t0x%04x", word.InsAddress()), ins + 1
	case Jmpez:
		return fmt.Sprintf("jumpez\t0x%04x", word.InsAddress()), ins + 1
	case Error:
		return fmt.Sprintf("error\t0x%016x", uint64(word)), ins + 1
	default:
		if int(kind) >= OpcodeCount {
			return fmt.Sprintf("error\t0x%016x", uint64(word)), ins + 1
		}
		return kind.String(), ins + 1
	}
}

// StringifyRange renders the instructions in the word range
// [ins, ins+length), one line per instruction prefixed with its address,
// newline-joined. A push and its immediate share one line. An empty range
// produces the empty string.
func StringifyRange(mem HeapReader, ins Address, length Address) (string, error) {
	if addOverflowCheck(ins, length) {
		return "", fmt.Errorf("%w: disassemble 0x%x + %d", ErrAddressOutOfBounds, ins, length)
	}

	var lines []string
	end := ins + length
	for cur := ins; cur < end; {
		text, next := StringifyOne(mem, cur)
		lines = append(lines, fmt.Sprintf("%04x:\t%s", cur, text))
		cur = next
	}
	return strings.Join(lines, "\n"), nil
}
