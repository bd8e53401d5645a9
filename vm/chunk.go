package vm

import (
	"fmt"
	"sort"
)

// lineStart marks the code offset at which a new source line begins.
// The table only gains an entry when the line actually changes, so it
// stays far smaller than one entry per instruction.
type lineStart struct {
	offset int
	line   int
}

// Chunk is a compiled translation unit: an opcode stream, a constant
// pool, and a run-length line table.
type Chunk struct {
	Code      []byte
	Constants []Value
	lines     []lineStart
}

// NewChunk returns an empty Chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 256),
		Constants: make([]Value, 0, 16),
	}
}

// WriteByte appends a raw byte (an opcode or an operand byte) to the
// code stream, recording a new line-table entry if line differs from
// the line of the last entry.
func (c *Chunk) WriteByte(b byte, line int) {
	c.Code = append(c.Code, b)
	if len(c.lines) == 0 || c.lines[len(c.lines)-1].line != line {
		c.lines = append(c.lines, lineStart{offset: len(c.Code) - 1, line: line})
	}
}

// WriteOpcode appends op to the code stream.
func (c *Chunk) WriteOpcode(op Opcode, line int) {
	c.WriteByte(byte(op), line)
}

// errTooMany is returned by WriteMaybeLong when index exceeds what
// even the long form can address.
var errTooMany = fmt.Errorf("too many constants/locals")

// WriteMaybeLong emits short if index fits in one byte, long if it
// needs two (big-endian), and fails if index exceeds 65535.
func (c *Chunk) WriteMaybeLong(short, long Opcode, index int, line int) error {
	switch {
	case index <= 0xFF:
		c.WriteOpcode(short, line)
		c.WriteByte(byte(index), line)
	case index <= 0xFFFF:
		c.WriteOpcode(long, line)
		c.WriteByte(byte(index>>8), line)
		c.WriteByte(byte(index), line)
	default:
		return errTooMany
	}
	return nil
}

// AddConstant appends value to the constant pool and returns its
// index. The pool is never deduplicated: spec.md addresses constants
// purely by position, and callers (the compiler) are responsible for
// caching indices they want to reuse.
func (c *Chunk) AddConstant(value Value) (int, error) {
	if len(c.Constants) >= 65536 {
		return 0, errTooMany
	}
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1, nil
}

// GetConstant returns the constant at index.
func (c *Chunk) GetConstant(index int) Value {
	return c.Constants[index]
}

// GetByte returns the raw byte at offset.
func (c *Chunk) GetByte(offset int) byte {
	return c.Code[offset]
}

// GetOp returns the opcode at offset.
func (c *Chunk) GetOp(offset int) Opcode {
	return Opcode(c.Code[offset])
}

// PatchByte overwrites the byte at offset, used to back-patch forward
// jumps once their target is known.
func (c *Chunk) PatchByte(offset int, b byte) {
	c.Code[offset] = b
}

// Len returns the number of bytes written so far.
func (c *Chunk) Len() int {
	return len(c.Code)
}

// GetLine returns the source line of the instruction at offset, found
// by binary search over the line table's strictly increasing offsets.
func (c *Chunk) GetLine(offset int) int {
	i := sort.Search(len(c.lines), func(i int) bool {
		return c.lines[i].offset > offset
	})
	if i == 0 {
		return 0
	}
	return c.lines[i-1].line
}

// Disassemble prints every instruction in the chunk, prefixed by name.
// Any faithful presentation is acceptable; this one matches the
// teacher's format.
func (c *Chunk) Disassemble(name string) {
	fmt.Printf("== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = c.DisassembleInstruction(offset)
	}
}

// DisassembleInstruction prints the instruction at offset and returns
// the offset of the next one.
func (c *Chunk) DisassembleInstruction(offset int) int {
	fmt.Printf("%04d ", offset)

	if offset > 0 && c.GetLine(offset) == c.GetLine(offset-1) {
		fmt.Print("   | ")
	} else {
		fmt.Printf("%4d ", c.GetLine(offset))
	}

	op := c.GetOp(offset)
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal:
		return c.constantInstruction(op, offset, 1)
	case OpConstantLong, OpGetGlobalLong, OpDefineGlobalLong, OpSetGlobalLong:
		return c.constantInstruction(op, offset, 2)
	case OpGetLocal, OpSetLocal:
		return c.byteInstruction(op, offset, 1)
	case OpGetLocalLong, OpSetLocalLong:
		return c.byteInstruction(op, offset, 2)
	case OpJump, OpJumpIfFalse:
		return c.jumpInstruction(op, 1, offset)
	case OpLoop:
		return c.jumpInstruction(op, -1, offset)
	default:
		return c.simpleInstruction(op, offset)
	}
}

func (c *Chunk) simpleInstruction(op Opcode, offset int) int {
	fmt.Printf("%s\n", op)
	return offset + 1
}

func (c *Chunk) byteInstruction(op Opcode, offset, width int) int {
	slot := c.readOperand(offset+1, width)
	fmt.Printf("%-20s %4d\n", op, slot)
	return offset + 1 + width
}

func (c *Chunk) constantInstruction(op Opcode, offset, width int) int {
	idx := c.readOperand(offset+1, width)
	fmt.Printf("%-20s %4d '%s'\n", op, idx, c.Constants[idx].GoString())
	return offset + 1 + width
}

func (c *Chunk) jumpInstruction(op Opcode, sign, offset int) int {
	jump := c.readOperand(offset+1, 2)
	target := offset + 3 + sign*jump
	fmt.Printf("%-20s %4d -> %d\n", op, offset, target)
	return offset + 3
}

func (c *Chunk) readOperand(offset, width int) int {
	if width == 1 {
		return int(c.Code[offset])
	}
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}
