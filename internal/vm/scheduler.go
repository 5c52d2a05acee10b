package vm

import (
	"sort"

	"github.com/google/uuid"

	"github.com/klingon-tech/cellnode/pkg/types"
)

// CodeLoader resolves a script to its executable bytecode, by looking up
// the cell_dep whose data (HashTypeData/Data1/Data2) or type script hash
// (HashTypeType) matches script.CodeHash.
type CodeLoader func(script types.Script) ([]byte, error)

// Scheduler runs every process belonging to one script group's tree,
// cooperatively and single-threaded, per spec.md §4.4.4-4.4.5.
type Scheduler struct {
	ctx        *ExecContext
	meter      *CycleMeter
	memBudget  *MemoryBudget
	memPerProc int
	loadCode   CodeLoader

	procs      map[uint64]*Process
	pipes      map[uint64]*pipe
	nextPID    uint64
	nextPipeID uint64
}

// NewScheduler builds a scheduler for one script group's execution. meter
// is the group's own cycle meter, shared by every process in its tree;
// memBudget is shared with every other group in the same transaction
// (spec.md: "a group's total cycles is the sum of all its
// processes'"; "a per-transaction memory budget is shared across all
// concurrently live processes").
func NewScheduler(ctx *ExecContext, meter *CycleMeter, memBudget *MemoryBudget, memPerProc int, loader CodeLoader) *Scheduler {
	return &Scheduler{
		ctx:        ctx,
		meter:      meter,
		memBudget:  memBudget,
		memPerProc: memPerProc,
		loadCode:   loader,
		procs:      map[uint64]*Process{},
		pipes:      map[uint64]*pipe{},
		nextPID:    1,
	}
}

// Run loads and executes the group's script as the root process and
// drives every process it spawns until the tree is empty, returning the
// root process's exit code.
func (s *Scheduler) Run() (ExitCode, error) {
	code, err := s.loadCode(s.ctx.Group.Script)
	if err != nil {
		return 0, err
	}

	root, err := s.spawn(0, code)
	if err != nil {
		return 0, err
	}

	for {
		ready := s.readyIDs()
		if len(ready) == 0 {
			if s.anyBlocked() {
				return 0, &ErrDeadlockedProcesses{}
			}
			break
		}

		id := ready[0]
		proc := s.procs[id]

		result, err := proc.Machine.Step()
		if err != nil {
			return 0, err
		}

		switch result {
		case StepHalt:
			s.finish(proc)
		case StepEcall:
			blocked, err := s.dispatch(proc)
			if err != nil {
				return 0, err
			}
			proc.Machine.AdvancePastEcall()
			if !blocked {
				proc.State = ProcessReady
			}
		case StepContinue:
			// keep looping; the scheduler re-picks next iteration.
		}
	}

	return root.ExitCode, nil
}

func (s *Scheduler) readyIDs() []uint64 {
	var ids []uint64
	for id, p := range s.procs {
		if p.State == ProcessReady {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Scheduler) anyBlocked() bool {
	for _, p := range s.procs {
		if p.State != ProcessDone {
			return true
		}
	}
	return false
}

func (s *Scheduler) spawn(parentID uint64, code []byte) (*Process, error) {
	if err := s.memBudget.Reserve(s.memPerProc); err != nil {
		return nil, err
	}
	id := s.nextPID
	s.nextPID++
	m := NewMachine(code, s.memPerProc, s.meter)
	proc := newProcess(id, parentID, m, s.memPerProc)
	proc.TraceID = uuid.NewString()
	s.procs[id] = proc
	return proc, nil
}

// finish marks proc Done, releases its memory reservation, closes its
// remaining fds, and wakes its parent if it is blocked in wait() on it.
func (s *Scheduler) finish(proc *Process) {
	proc.State = ProcessDone
	s.memBudget.Release(proc.MemoryReserved)
	for fd, end := range proc.Fds {
		s.closeFd(proc, fd, end)
	}

	for _, other := range s.procs {
		if other.State == ProcessBlockedOnWait && other.WaitOn == proc.ID {
			other.Machine.Regs[RegA0] = StatusSuccess
			other.Machine.Regs[RegA1] = uint64(int8(proc.ExitCode))
			other.State = ProcessReady
		}
	}
}

func (s *Scheduler) closeFd(proc *Process, fd uint64, end pipeEnd) {
	p, ok := s.pipes[end.pipeID]
	if !ok {
		return
	}
	p.closeEnd(end.isWrite)
	delete(proc.Fds, fd)

	// Blocked peers are woken eagerly on EOF/reader-gone transitions: a
	// blocked process is never picked as ready, so every process blocked
	// on this pipe is re-checked right now.
	for _, other := range s.procs {
		switch other.State {
		case ProcessBlockedOnRead:
			if end2, ok := other.Fds[other.BlockedFd]; ok && end2.pipeID == p.id {
				s.tryCompleteRead(other)
			}
		case ProcessBlockedOnWrite:
			if end2, ok := other.Fds[other.BlockedFd]; ok && end2.pipeID == p.id {
				s.tryCompleteWrite(other)
			}
		}
	}
}
