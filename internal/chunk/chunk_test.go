package chunk

import (
	"testing"

	"loxvm/internal/value"
)

func TestWriteTracksLines(t *testing.T) {
	c := New()
	c.Write(byte(OP_NIL), 1)
	c.Write(byte(OP_RETURN), 1)
	c.Write(byte(OP_RETURN), 2)

	if len(c.Code) != 3 || len(c.Lines) != 3 {
		t.Fatalf("expected 3 code bytes and 3 line entries, got %d/%d", len(c.Code), len(c.Lines))
	}
	if c.Lines[0] != 1 || c.Lines[2] != 2 {
		t.Fatalf("unexpected line table: %v", c.Lines)
	}
}

func TestAddConstantReturnsStableIndex(t *testing.T) {
	c := New()
	i0 := c.AddConstant(value.NewNumber(1))
	i1 := c.AddConstant(value.NewNumber(2))
	i2 := c.AddConstant(value.NewNumber(1))

	if i0 != 0 || i1 != 1 || i2 != 2 {
		t.Fatalf("expected sequential indices 0,1,2, got %d,%d,%d", i0, i1, i2)
	}
	if c.Constants[i0].AsNumber != 1 || c.Constants[i2].AsNumber != 1 {
		t.Fatal("constant pool does not deduplicate, by design")
	}
}

func TestDisassembleInstructionAdvancesByOperandWidth(t *testing.T) {
	c := New()
	idx := c.AddConstant(value.NewNumber(42))
	c.Write(byte(OP_CONSTANT), 1)
	c.Write(byte(idx), 1)
	c.Write(byte(OP_RETURN), 1)

	next := c.DisassembleInstruction(0)
	if next != 2 {
		t.Fatalf("OP_CONSTANT should advance 2 bytes, got %d", next)
	}
	next = c.DisassembleInstruction(next)
	if next != 3 {
		t.Fatalf("OP_RETURN should advance 1 byte, got %d", next)
	}
}

func TestJumpInstructionDisassemblyAdvancesThreeBytes(t *testing.T) {
	c := New()
	c.Write(byte(OP_JUMP), 1)
	c.Write(0, 1)
	c.Write(3, 1)
	next := c.jumpInstruction("OP_JUMP", 1, 0)
	if next != 3 {
		t.Fatalf("jump instruction should occupy 3 bytes, got %d", next)
	}
}

// Round-trip property from spec.md §8: walking DisassembleInstruction from
// offset 0 must land exactly on len(Code), touching every opcode kind
// (simple, constant-operand, byte-operand, jump-operand) without over- or
// under-running its operands.
func TestDisassembleRoundTripCoversEveryByteExactly(t *testing.T) {
	c := New()
	idx := c.AddConstant(value.NewNumber(7))
	c.Write(byte(OP_CONSTANT), 1)
	c.Write(byte(idx), 1)
	c.Write(byte(OP_TRUE), 1)
	c.Write(byte(OP_JUMP_IF_FALSE), 2)
	c.Write(0, 2)
	c.Write(1, 2)
	c.Write(byte(OP_POP), 2)
	c.Write(byte(OP_GET_LOCAL), 3)
	c.Write(5, 3)
	c.Write(byte(OP_RETURN), 3)

	offset := 0
	for count := 0; offset < len(c.Code); count++ {
		if count > len(c.Code) {
			t.Fatal("disassembly did not terminate, likely a wrong operand width")
		}
		offset = c.DisassembleInstruction(offset)
	}
	if offset != len(c.Code) {
		t.Fatalf("disassembly overshot or undershot chunk end: offset=%d, len=%d", offset, len(c.Code))
	}
}
