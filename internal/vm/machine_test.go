package vm

import "testing"

func runToHalt(t *testing.T, m *Machine) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		result, err := m.Step()
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if result == StepHalt {
			return
		}
		if result == StepEcall {
			t.Fatalf("unexpected ecall at pc=%d", m.PC)
		}
	}
	t.Fatalf("program did not halt within 1000 steps")
}

func TestMachineArithmeticAndHalt(t *testing.T) {
	code := asm(
		Instruction{Op: OpLoadImm, Rd: 1, Imm: 7},
		Instruction{Op: OpLoadImm, Rd: 2, Imm: 35},
		Instruction{Op: OpAdd, Rd: RegA0, Rs1: 1, Rs2: 2},
		Instruction{Op: OpLoadImm, Rd: 3, Imm: 42},
		Instruction{Op: OpSub, Rd: RegA0, Rs1: RegA0, Rs2: 3}, // 42-42 = 0 -> success exit code
		Instruction{Op: OpHalt},
	)
	m := NewMachine(code, 256, NewCycleMeter(1000))
	runToHalt(t, m)
	if m.ExitCode() != ExitSuccess {
		t.Fatalf("expected exit code 0, got %d", m.ExitCode())
	}
}

func TestMachineMemoryLoadStore(t *testing.T) {
	code := asm(
		Instruction{Op: OpLoadImm, Rd: 1, Imm: 99},
		Instruction{Op: OpStoreWord, Rs1: 0, Rs2: 1, Imm: 16},
		Instruction{Op: OpLoadWord, Rd: 2, Rs1: 0, Imm: 16},
		Instruction{Op: OpMove, Rd: RegA0, Rs1: 2},
		Instruction{Op: OpSub, Rd: RegA0, Rs1: RegA0, Rs2: 1}, // expect 99-99=0
		Instruction{Op: OpHalt},
	)
	m := NewMachine(code, 256, NewCycleMeter(1000))
	runToHalt(t, m)
	if m.ExitCode() != ExitSuccess {
		t.Fatalf("expected exit code 0, got %d", m.ExitCode())
	}
}

func TestMachineJumpIfZero(t *testing.T) {
	// r1 = 0; if r1 == 0, jump to the halt-with-success instruction,
	// skipping the halt-with-failure instruction in between.
	failAt := uint64(2 * InstructionSize)
	successAt := uint64(4 * InstructionSize)
	code := asm(
		Instruction{Op: OpLoadImm, Rd: 1, Imm: 0},
		Instruction{Op: OpJumpIfZero, Rs1: 1, Imm: int64(successAt)},
		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 1}, // failAt: exit 1
		Instruction{Op: OpHalt},
	)
	// Pad to make successAt land on a halt-with-0 instruction.
	code = append(code, asm(
		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 0}, // successAt
		Instruction{Op: OpHalt},
	)...)
	_ = failAt

	m := NewMachine(code, 256, NewCycleMeter(1000))
	runToHalt(t, m)
	if m.ExitCode() != ExitSuccess {
		t.Fatalf("expected jump to success path, got exit code %d", m.ExitCode())
	}
}

func TestMachineEcallStopsBeforeAdvancing(t *testing.T) {
	code := asm(
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysVMVersion},
		Instruction{Op: OpEcall},
		Instruction{Op: OpHalt},
	)
	m := NewMachine(code, 256, NewCycleMeter(1000))

	result, err := m.Step() // OpLoadImm
	if err != nil || result != StepContinue {
		t.Fatalf("unexpected first step: %v %v", result, err)
	}
	result, err = m.Step() // OpEcall
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if result != StepEcall {
		t.Fatalf("expected StepEcall, got %v", result)
	}
	pcBefore := m.PC
	m.AdvancePastEcall()
	if m.PC != pcBefore+InstructionSize {
		t.Fatalf("AdvancePastEcall did not move pc forward")
	}
}
