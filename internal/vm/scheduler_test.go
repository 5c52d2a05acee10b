package vm

import (
	"bytes"
	"testing"

	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/pkg/types"
)

func newTestScheduler(t *testing.T, rootCode []byte, rtx *cellprovider.ResolvedTransaction) *Scheduler {
	t.Helper()
	group := &ScriptGroup{Script: types.Script{CodeHash: types.Hash256{1}}}
	ctx := &ExecContext{Tx: rtx, TxHash: rtx.Transaction.Hash(), Group: group}
	meter := NewCycleMeter(1_000_000)
	memBudget := NewMemoryBudget(1 << 20)
	loader := func(types.Script) ([]byte, error) { return rootCode, nil }
	return NewScheduler(ctx, meter, memBudget, 4096, loader)
}

func TestSchedulerLoadTxHash(t *testing.T) {
	rtx := &cellprovider.ResolvedTransaction{Transaction: types.Transaction{Version: 7}}
	code := asm(
		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 0},
		Instruction{Op: OpLoadImm, Rd: RegA1, Imm: 32},
		Instruction{Op: OpLoadImm, Rd: RegA2, Imm: 0},
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysLoadTxHash},
		Instruction{Op: OpEcall},
		Instruction{Op: OpHalt},
	)
	s := newTestScheduler(t, code, rtx)
	exitCode, err := s.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exitCode != ExitSuccess {
		t.Fatalf("expected success, got %d", exitCode)
	}

	root := s.procs[1]
	got, err := root.Machine.Mem.Read(0, 32)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	want := rtx.Transaction.Hash()
	if !bytes.Equal(got, want[:]) {
		t.Fatalf("load_tx_hash mismatch: got %x, want %x", got, want)
	}
}

func TestSchedulerHaltNonZeroIsValidationFailure(t *testing.T) {
	rtx := &cellprovider.ResolvedTransaction{}
	code := asm(
		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 1},
		Instruction{Op: OpHalt},
	)
	s := newTestScheduler(t, code, rtx)
	exitCode, err := s.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exitCode == ExitSuccess {
		t.Fatalf("expected non-zero exit code")
	}
}

func TestSchedulerTooManyCyclesAborts(t *testing.T) {
	rtx := &cellprovider.ResolvedTransaction{}
	var instrs []Instruction
	for i := 0; i < 1000; i++ {
		instrs = append(instrs, Instruction{Op: OpNop})
	}
	instrs = append(instrs, Instruction{Op: OpHalt})
	code := asm(instrs...)

	group := &ScriptGroup{Script: types.Script{CodeHash: types.Hash256{1}}}
	ctx := &ExecContext{Tx: rtx, Group: group}
	meter := NewCycleMeter(10) // far fewer cycles than the program needs
	memBudget := NewMemoryBudget(1 << 20)
	loader := func(types.Script) ([]byte, error) { return code, nil }
	s := NewScheduler(ctx, meter, memBudget, 4096, loader)

	_, err := s.Run()
	if err == nil {
		t.Fatalf("expected cycle budget error")
	}
}

func TestSchedulerSpawnWait(t *testing.T) {
	// Child: exit code 0 immediately.
	childCode := asm(
		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 0},
		Instruction{Op: OpHalt},
	)

	// Root: spawn the child (reading it from cell_dep 0), wait on it, then
	// halt with the child's exit code echoed back.
	rootCode := asm(
		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 0}, // cell_dep index
		Instruction{Op: OpLoadImm, Rd: RegA1, Imm: int64(SourceCellDep)},
		Instruction{Op: OpLoadImm, Rd: RegA2, Imm: int64(noInheritedFd)},
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysSpawn},
		Instruction{Op: OpEcall},
		Instruction{Op: OpMove, Rd: 5, Rs1: RegA1}, // save child pid
		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 0},
		Instruction{Op: OpMove, Rd: RegA0, Rs1: 5},
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysWait},
		Instruction{Op: OpEcall},
		Instruction{Op: OpMove, Rd: RegA0, Rs1: RegA1}, // echo child's exit code
		Instruction{Op: OpHalt},
	)

	rtx := &cellprovider.ResolvedTransaction{
		CellDeps: []types.CellMeta{{Data: childCode}},
	}
	s := newTestScheduler(t, rootCode, rtx)
	exitCode, err := s.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exitCode != ExitSuccess {
		t.Fatalf("expected success echoed from child, got %d", exitCode)
	}
	if len(s.procs) != 2 {
		t.Fatalf("expected 2 processes (root+child), got %d", len(s.procs))
	}
}

func TestSchedulerPipeWriteThenRead(t *testing.T) {
	rtx := &cellprovider.ResolvedTransaction{}
	code := asm(
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysPipe},
		Instruction{Op: OpEcall},
		Instruction{Op: OpMove, Rd: 5, Rs1: RegA1}, // read fd
		Instruction{Op: OpMove, Rd: 6, Rs1: RegA2}, // write fd

		// write 8 bytes at address 0 (still zero) into the pipe
		Instruction{Op: OpMove, Rd: RegA0, Rs1: 6},
		Instruction{Op: OpLoadImm, Rd: RegA1, Imm: 0},
		Instruction{Op: OpLoadImm, Rd: RegA2, Imm: 8},
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysWrite},
		Instruction{Op: OpEcall},

		// read it back into address 100
		Instruction{Op: OpMove, Rd: RegA0, Rs1: 5},
		Instruction{Op: OpLoadImm, Rd: RegA1, Imm: 100},
		Instruction{Op: OpLoadImm, Rd: RegA2, Imm: 8},
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysRead},
		Instruction{Op: OpEcall},

		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 0},
		Instruction{Op: OpHalt},
	)
	s := newTestScheduler(t, code, rtx)
	exitCode, err := s.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exitCode != ExitSuccess {
		t.Fatalf("expected success, got %d", exitCode)
	}
}

// TestSchedulerSpawnInheritedFdCrossProcessPipe exercises spec.md's S5
// scenario end to end: the root opens a pipe, spawns a child inheriting
// the write end (SysSpawn's A2 fd-sharing argument), the child recovers
// its copy via load_inherited_fd and writes a known value, and the root
// reads it back after waiting on the child — proving the fd crosses the
// process boundary rather than just being usable within one machine.
func TestSchedulerSpawnInheritedFdCrossProcessPipe(t *testing.T) {
	const payload = 0xDEADBEEF

	childCode := asm(
		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 0}, // inherited fd slot 0
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysInheritedFd},
		Instruction{Op: OpEcall},
		Instruction{Op: OpMove, Rd: 5, Rs1: RegA1}, // our fd for the inherited write end

		Instruction{Op: OpLoadImm, Rd: 2, Imm: payload},
		Instruction{Op: OpStoreWord, Rs1: 0, Rs2: 2, Imm: 0}, // mem[0] = payload

		Instruction{Op: OpMove, Rd: RegA0, Rs1: 5},
		Instruction{Op: OpLoadImm, Rd: RegA1, Imm: 0},
		Instruction{Op: OpLoadImm, Rd: RegA2, Imm: 8},
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysWrite},
		Instruction{Op: OpEcall},

		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 0},
		Instruction{Op: OpHalt},
	)

	rootCode := asm(
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysPipe},
		Instruction{Op: OpEcall},
		Instruction{Op: OpMove, Rd: 5, Rs1: RegA1}, // read fd
		Instruction{Op: OpMove, Rd: 6, Rs1: RegA2}, // write fd

		// spawn(cell_dep 0, inherit our write fd)
		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 0},
		Instruction{Op: OpLoadImm, Rd: RegA1, Imm: int64(SourceCellDep)},
		Instruction{Op: OpMove, Rd: RegA2, Rs1: 6},
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysSpawn},
		Instruction{Op: OpEcall},
		Instruction{Op: OpMove, Rd: 7, Rs1: RegA1}, // child pid

		// close our copy of the write end; the child's inherited copy
		// keeps the pipe open until it writes and exits.
		Instruction{Op: OpMove, Rd: RegA0, Rs1: 6},
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysClose},
		Instruction{Op: OpEcall},

		// wait(child)
		Instruction{Op: OpMove, Rd: RegA0, Rs1: 7},
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysWait},
		Instruction{Op: OpEcall},

		// read the child's payload back
		Instruction{Op: OpMove, Rd: RegA0, Rs1: 5},
		Instruction{Op: OpLoadImm, Rd: RegA1, Imm: 100},
		Instruction{Op: OpLoadImm, Rd: RegA2, Imm: 8},
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysRead},
		Instruction{Op: OpEcall},

		Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 0},
		Instruction{Op: OpHalt},
	)

	rtx := &cellprovider.ResolvedTransaction{
		CellDeps: []types.CellMeta{{Data: childCode}},
	}
	s := newTestScheduler(t, rootCode, rtx)
	exitCode, err := s.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exitCode != ExitSuccess {
		t.Fatalf("expected success, got %d", exitCode)
	}
	if len(s.procs) != 2 {
		t.Fatalf("expected 2 processes (root+child), got %d", len(s.procs))
	}

	root := s.procs[1]
	got, err := root.Machine.Mem.ReadWord(100)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if got != payload {
		t.Fatalf("cross-process pipe payload = %#x, want %#x", got, uint64(payload))
	}
}

func TestSchedulerDeadlock(t *testing.T) {
	// A process that reads from a pipe it never writes to, and whose
	// write end it never closes, can never make progress: the scheduler
	// must report a deadlock rather than hang.
	rtx := &cellprovider.ResolvedTransaction{}
	code := asm(
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysPipe},
		Instruction{Op: OpEcall},
		Instruction{Op: OpMove, Rd: 5, Rs1: RegA1}, // read fd

		Instruction{Op: OpMove, Rd: RegA0, Rs1: 5},
		Instruction{Op: OpLoadImm, Rd: RegA1, Imm: 0},
		Instruction{Op: OpLoadImm, Rd: RegA2, Imm: 8},
		Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysRead},
		Instruction{Op: OpEcall},

		Instruction{Op: OpHalt},
	)
	s := newTestScheduler(t, code, rtx)
	_, err := s.Run()
	if err == nil {
		t.Fatalf("expected deadlock error")
	}
	if _, ok := err.(*ErrDeadlockedProcesses); !ok {
		t.Fatalf("expected ErrDeadlockedProcesses, got %T: %v", err, err)
	}
}
