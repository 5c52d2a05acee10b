package vm

// Register indices follow the RISC-V calling convention this ISA borrows
// its syscall-argument layout from (spec.md §4.4.4): A0-A6 carry syscall
// arguments, A7 the selector, and A0 doubles as the return/status code.
const (
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA3 = 13
	RegA4 = 14
	RegA5 = 15
	RegA6 = 16
	RegA7 = 17
)

const numRegisters = 32

// StepResult tells the caller (a Process, in practice) what the machine
// did on the last Step.
type StepResult uint8

const (
	StepContinue StepResult = iota
	StepEcall
	StepHalt
)

// Machine is one process's register file, program, address space, and
// cycle meter. It has no notion of other processes; spawn/pipe/wait are
// handled one level up, by Process and Scheduler.
type Machine struct {
	Regs [numRegisters]uint64
	PC   uint64
	Code []byte
	Mem  *Memory

	Meter *CycleMeter
	exit  ExitCode
}

// NewMachine builds a machine executing code, with a fresh address space
// of memSize bytes and a cycle budget shared via meter.
func NewMachine(code []byte, memSize int, meter *CycleMeter) *Machine {
	return &Machine{Code: code, Mem: NewMemory(memSize), Meter: meter}
}

// ExitCode returns the code set by the last OpHalt (zero if the machine
// never halted).
func (m *Machine) ExitCode() ExitCode { return m.exit }

// Step decodes and executes one instruction, charging its cycle cost.
// It returns StepEcall without advancing past the ecall so the caller can
// dispatch the syscall and then call AdvancePastEcall before the next
// Step.
func (m *Machine) Step() (StepResult, error) {
	in, err := DecodeInstruction(m.Code, m.PC)
	if err != nil {
		return StepContinue, err
	}

	if in.Op == OpEcall {
		if err := m.Meter.Charge(SyscallBaseCycles); err != nil {
			return StepContinue, err
		}
		return StepEcall, nil
	}

	if err := m.Meter.Charge(InstructionCycles); err != nil {
		return StepContinue, err
	}

	nextPC := m.PC + InstructionSize
	switch in.Op {
	case OpNop:
	case OpHalt:
		m.exit = ExitCode(int8(m.Regs[RegA0]))
		return StepHalt, nil
	case OpLoadImm:
		m.setReg(in.Rd, uint64(in.Imm))
	case OpMove:
		m.setReg(in.Rd, m.reg(in.Rs1))
	case OpAdd:
		m.setReg(in.Rd, m.reg(in.Rs1)+m.reg(in.Rs2))
	case OpSub:
		m.setReg(in.Rd, m.reg(in.Rs1)-m.reg(in.Rs2))
	case OpMul:
		m.setReg(in.Rd, m.reg(in.Rs1)*m.reg(in.Rs2))
	case OpDiv:
		divisor := m.reg(in.Rs2)
		if divisor == 0 {
			return StepContinue, &VMInternalError{Reason: "division by zero"}
		}
		m.setReg(in.Rd, m.reg(in.Rs1)/divisor)
	case OpAnd:
		m.setReg(in.Rd, m.reg(in.Rs1)&m.reg(in.Rs2))
	case OpOr:
		m.setReg(in.Rd, m.reg(in.Rs1)|m.reg(in.Rs2))
	case OpXor:
		m.setReg(in.Rd, m.reg(in.Rs1)^m.reg(in.Rs2))
	case OpShl:
		m.setReg(in.Rd, m.reg(in.Rs1)<<m.reg(in.Rs2))
	case OpShr:
		m.setReg(in.Rd, m.reg(in.Rs1)>>m.reg(in.Rs2))
	case OpSlt:
		if m.reg(in.Rs1) < m.reg(in.Rs2) {
			m.setReg(in.Rd, 1)
		} else {
			m.setReg(in.Rd, 0)
		}
	case OpLoadWord:
		v, err := m.Mem.ReadWord(uint64(int64(m.reg(in.Rs1)) + in.Imm))
		if err != nil {
			return StepContinue, err
		}
		m.setReg(in.Rd, v)
	case OpStoreWord:
		if err := m.Mem.WriteWord(uint64(int64(m.reg(in.Rs1))+in.Imm), m.reg(in.Rs2)); err != nil {
			return StepContinue, err
		}
	case OpJump:
		nextPC = uint64(in.Imm)
	case OpJumpIfZero:
		if m.reg(in.Rs1) == 0 {
			nextPC = uint64(in.Imm)
		}
	case OpJumpIfNotZero:
		if m.reg(in.Rs1) != 0 {
			nextPC = uint64(in.Imm)
		}
	default:
		return StepContinue, &VMInternalError{Reason: "bad instruction"}
	}

	m.PC = nextPC
	return StepContinue, nil
}

// AdvancePastEcall moves the program counter past the ecall instruction
// the machine is currently stopped on, called once the scheduler has
// finished dispatching it.
func (m *Machine) AdvancePastEcall() {
	m.PC += InstructionSize
}

func (m *Machine) reg(i uint8) uint64 {
	if int(i) >= numRegisters {
		return 0
	}
	return m.Regs[i]
}

func (m *Machine) setReg(i uint8, v uint64) {
	if int(i) >= numRegisters || i == 0 {
		return
	}
	m.Regs[i] = v
}
