package vm

import "testing"

func TestInstructionEncodeDecodeRoundTrip(t *testing.T) {
	in := Instruction{Op: OpAdd, Rd: 5, Rs1: 6, Rs2: 7, Imm: -42}
	encoded := EncodeInstruction(in)
	if len(encoded) != InstructionSize {
		t.Fatalf("expected %d bytes, got %d", InstructionSize, len(encoded))
	}

	decoded, err := DecodeInstruction(encoded, 0)
	if err != nil {
		t.Fatalf("DecodeInstruction: %v", err)
	}
	if decoded != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, in)
	}
}

func TestDecodeInstructionOutOfBounds(t *testing.T) {
	_, err := DecodeInstruction(make([]byte, 8), 0)
	if err == nil {
		t.Fatalf("expected out-of-bounds error")
	}
}

func asm(instrs ...Instruction) []byte {
	buf := make([]byte, 0, len(instrs)*InstructionSize)
	for _, in := range instrs {
		buf = append(buf, EncodeInstruction(in)...)
	}
	return buf
}
