package vm

// slack is the initial emission-buffer capacity and the increment used
// each time it must grow.
const slack Address = 127

// writer accumulates the assembled image, growing on demand.
type writer struct {
	buf    []Word
	offset Address // current write offset
	high   Address // one past the highest offset ever written
}

func newWriter() (*writer, error) {
	buf, err := growZeroed(nil, int(slack))
	if err != nil {
		return nil, err
	}
	return &writer{buf: buf}, nil
}

// ensure grows the buffer so at least two more words fit past the current
// write offset, using a "write_offset + 2 >= cap" growth trigger.
func (w *writer) ensure() error {
	if int(w.offset)+2 >= len(w.buf) {
		newCap := int(w.offset) + int(slack)
		grown, err := growZeroed(w.buf, newCap)
		if err != nil {
			return ErrAllocFailed
		}
		w.buf = grown
	}
	return nil
}

func (w *writer) emit(word Word) error {
	if err := w.ensure(); err != nil {
		return err
	}
	w.buf[w.offset] = word
	w.offset++
	if w.offset > w.high {
		w.high = w.offset
	}
	return nil
}

// setOffset relocates the write cursor for a label, without advancing to
// the next source line.
func (w *writer) setOffset(v Address) error {
	w.offset = v
	return w.ensure()
}

func (w *writer) image() []Word {
	return w.buf[:w.high]
}

// parser drives a Lexer and a writer to assemble one image from source
// text.
type parser struct {
	lx *Lexer
	w  *writer
}

// Assemble reads AVM assembly source and returns the assembled image. Any
// failure is a *ParseError carrying the byte offset the lexer had reached.
func Assemble(source []byte) ([]Word, error) {
	w, err := newWriter()
	if err != nil {
		return nil, &ParseError{Offset: 0, Err: err}
	}
	p := &parser{lx: NewLexer(source), w: w}

	for {
		tok := p.lx.Next()
		switch tok.Kind {
		case TokEOF:
			return p.w.image(), nil

		case TokLabel:
			if tok.Num > uint64(AddrMax) {
				return nil, &ParseError{Offset: tok.Offset, Err: ErrLabelOutOfBounds}
			}
			if err := p.w.setOffset(Address(tok.Num)); err != nil {
				return nil, &ParseError{Offset: tok.Offset, Err: err}
			}
			// A label only relocates the write cursor; parsing continues
			// on the same line without consuming the rest of it.

		case TokMnemonic:
			if err := p.parseInstruction(tok); err != nil {
				if _, ok := err.(*ParseError); !ok {
					err = &ParseError{Offset: tok.Offset, Err: err}
				}
				return nil, err
			}
			p.lx.ConsumeRestOfLine()

		case TokNumber:
			return nil, &ParseError{Offset: tok.Offset, Err: ErrUnknownToken}

		case TokError:
			return nil, &ParseError{Offset: tok.Offset, Err: ErrUnknownToken}
		}
	}
}

func (p *parser) expectNumber(expected error) (uint64, error) {
	tok := p.lx.Next()
	if tok.Kind != TokNumber {
		return 0, &ParseError{Offset: tok.Offset, Err: expected}
	}
	return tok.Num, nil
}

func (p *parser) parseInstruction(tok Token) error {
	op := tok.Opcode

	switch op.NumOperands() {
	case 2: // load/store SIZE ADDRESS
		size, err := p.expectNumber(ErrExpectedSize)
		if err != nil {
			return err
		}
		if size > 0xFFFFFF {
			return &ParseError{Offset: tok.Offset, Err: ErrOperandOutOfBounds}
		}
		address, err := p.expectNumber(ErrExpectedAddress)
		if err != nil {
			return err
		}
		if address > uint64(AddrMax) {
			return &ParseError{Offset: tok.Offset, Err: ErrOperandOutOfBounds}
		}
		return p.w.emit(EncodeInstruction(op, uint32(size), Address(address)))

	case 1:
		if op == Push {
			value, err := p.expectNumber(ErrExpectedValue)
			if err != nil {
				return err
			}
			if err := p.w.emit(EncodeInstruction(Push, 0, 0)); err != nil {
				return err
			}
			return p.w.emit(EncodeValue(value))
		}
		// calli / jmpez ADDRESS
		address, err := p.expectNumber(ErrExpectedAddress)
		if err != nil {
			return err
		}
		if address > uint64(AddrMax) {
			return &ParseError{Offset: tok.Offset, Err: ErrOperandOutOfBounds}
		}
		return p.w.emit(EncodeInstruction(op, 0, Address(address)))

	default: // bare opcode: ret, add, sub, ..., quit, dup
		return p.w.emit(EncodeInstruction(op, 0, 0))
	}
}
