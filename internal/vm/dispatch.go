package vm

import (
	"github.com/klingon-tech/cellnode/pkg/crypto"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// This implementation's syscall argument convention (spec.md §4.4.4 pins
// only the selector/status register placement, A7/A0): every load_*
// syscall takes a destination address in A0, the destination buffer's
// capacity in A1, and a byte offset into the source value in A2; index-
// addressed variants add the index in A3, the Source in A4, and
// load_*_by_field variants add the Field in A5. On return A0 carries the
// status and A1 is overwritten with the source value's true total length,
// so the guest can detect truncation the way a real offset+size protocol
// would.

// dispatch handles the syscall whose selector sits in proc.Machine's A7
// register. It returns blocked=true if proc's state has already been set
// to one of the Blocked* states and must not be reset to Ready by Run.
func (s *Scheduler) dispatch(proc *Process) (blocked bool, err error) {
	m := proc.Machine
	switch m.Regs[RegA7] {
	case SysLoadTxHash:
		s.copyOutSimple(proc, s.ctx.TxHash[:])
	case SysLoadTransaction:
		s.copyOutSimple(proc, s.ctx.Tx.Transaction.Serialize())
	case SysLoadScriptHash:
		h := s.ctx.Group.Hash
		s.copyOutSimple(proc, h[:])
	case SysLoadScript:
		s.copyOutSimple(proc, s.ctx.Group.Script.Serialize())

	case SysLoadCell:
		index, source := int(m.Regs[RegA3]), Source(m.Regs[RegA4])
		output, _, ok := s.ctx.outputCellAny(index, source)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		s.copyOutSimple(proc, output.Serialize())

	case SysLoadCellData:
		index, source := int(m.Regs[RegA3]), Source(m.Regs[RegA4])
		_, data, ok := s.ctx.outputCellAny(index, source)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		s.copyOutSimple(proc, data)

	case SysLoadCellDataHash:
		index, source := int(m.Regs[RegA3]), Source(m.Regs[RegA4])
		_, data, ok := s.ctx.outputCellAny(index, source)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		hash, _ := cellField(types.CellOutput{}, data, FieldDataHash)
		s.copyOutSimple(proc, hash)

	case SysLoadCellByField:
		index, source, field := int(m.Regs[RegA3]), Source(m.Regs[RegA4]), Field(m.Regs[RegA5])
		output, data, ok := s.ctx.outputCellAny(index, source)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		value, ok := cellField(output, data, field)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		s.copyOutSimple(proc, value)

	case SysLoadInput:
		index, source := int(m.Regs[RegA3]), Source(m.Regs[RegA4])
		in, ok := s.ctx.inputAt(index, source)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		buf := append(append([]byte{}, in.PreviousOutput.Bytes()...), sinceBytes(in.Since)...)
		s.copyOutSimple(proc, buf)

	case SysLoadInputByField:
		index, source, field := int(m.Regs[RegA3]), Source(m.Regs[RegA4]), Field(m.Regs[RegA5])
		in, ok := s.ctx.inputAt(index, source)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		value, ok := inputField(in, field)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		s.copyOutSimple(proc, value)

	case SysLoadHeader:
		index, source := int(m.Regs[RegA3]), Source(m.Regs[RegA4])
		hdr, ok := s.ctx.headerAt(index, source)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		h := hdr.Hash()
		s.copyOutSimple(proc, h[:])

	case SysLoadHeaderByField:
		index, source, field := int(m.Regs[RegA3]), Source(m.Regs[RegA4]), Field(m.Regs[RegA5])
		hdr, ok := s.ctx.headerAt(index, source)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		value, ok := headerField(hdr, field)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		s.copyOutSimple(proc, value)

	case SysLoadWitness:
		index, source := int(m.Regs[RegA3]), Source(m.Regs[RegA4])
		w, ok := s.ctx.witnessAt(index, source)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		s.copyOutSimple(proc, w)

	case SysDebug:
		_ = readCString(m, m.Regs[RegA0])
		setStatus(proc, StatusSuccess)

	case SysVMVersion:
		m.Regs[RegA1] = uint64(s.ctx.VMVersion)
		setStatus(proc, StatusSuccess)

	case SysCurrentCycles:
		m.Regs[RegA1] = s.meter.Used()
		setStatus(proc, StatusSuccess)

	case SysExec:
		index, source := int(m.Regs[RegA0]), Source(m.Regs[RegA1])
		_, data, ok := s.ctx.outputCellAny(index, source)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		m.Code = data
		m.PC = 0
		setStatus(proc, StatusSuccess)

	case SysSpawn:
		index, source := int(m.Regs[RegA0]), Source(m.Regs[RegA1])
		_, data, ok := s.ctx.outputCellAny(index, source)
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		if err := s.meter.Charge(SpawnYieldCyclesBase); err != nil {
			return false, err
		}
		child, err := s.spawn(proc.ID, data)
		if err != nil {
			setStatus(proc, StatusItemMissing)
			break
		}
		if inheritFd := m.Regs[RegA2]; inheritFd != noInheritedFd {
			if end, ok := proc.Fds[inheritFd]; ok {
				childFd := child.allocFd(end)
				child.InheritedFds = append(child.InheritedFds, childFd)
				if p, ok := s.pipes[end.pipeID]; ok {
					if end.isWrite {
						p.writersOpen++
					} else {
						p.readersOpen++
					}
				}
			}
		}
		m.Regs[RegA1] = child.ID
		setStatus(proc, StatusSuccess)

	case SysWait:
		if err := s.meter.Charge(YieldCyclesBase); err != nil {
			return false, err
		}
		targetPID := m.Regs[RegA0]
		child, ok := s.procs[targetPID]
		if !ok {
			setStatus(proc, StatusItemMissing)
			break
		}
		if child.State == ProcessDone {
			m.Regs[RegA1] = uint64(int8(child.ExitCode))
			setStatus(proc, StatusSuccess)
			break
		}
		proc.WaitOn = targetPID
		proc.State = ProcessBlockedOnWait
		return true, nil

	case SysProcessID:
		m.Regs[RegA1] = proc.ID
		setStatus(proc, StatusSuccess)

	case SysPipe:
		if err := s.meter.Charge(YieldCyclesBase); err != nil {
			return false, err
		}
		id := s.nextPipeID
		s.nextPipeID++
		p := &pipe{id: id, readersOpen: 1, writersOpen: 1}
		s.pipes[id] = p
		readFd := proc.allocFd(pipeEnd{pipeID: id, isWrite: false})
		writeFd := proc.allocFd(pipeEnd{pipeID: id, isWrite: true})
		m.Regs[RegA1] = readFd
		m.Regs[RegA2] = writeFd
		setStatus(proc, StatusSuccess)

	case SysRead:
		if err := s.meter.Charge(YieldCyclesBase); err != nil {
			return false, err
		}
		fd, addr, n := m.Regs[RegA0], m.Regs[RegA1], int(m.Regs[RegA2])
		end, ok := proc.Fds[fd]
		if !ok || end.isWrite {
			setStatus(proc, StatusItemMissing)
			break
		}
		proc.BlockedFd, proc.ReadAddr, proc.ReadLen = fd, addr, n
		if s.tryCompleteRead(proc) {
			break
		}
		proc.State = ProcessBlockedOnRead
		return true, nil

	case SysWrite:
		if err := s.meter.Charge(YieldCyclesBase); err != nil {
			return false, err
		}
		fd, addr, n := m.Regs[RegA0], m.Regs[RegA1], int(m.Regs[RegA2])
		end, ok := proc.Fds[fd]
		if !ok || !end.isWrite {
			setStatus(proc, StatusItemMissing)
			break
		}
		p := s.pipes[end.pipeID]
		if p.readerGone() {
			m.Regs[RegA1] = 0
			setStatus(proc, StatusItemMissing)
			break
		}
		data, err := m.Mem.Read(addr, n)
		if err != nil {
			return false, err
		}
		p.buf.Write(data)
		if err := s.meter.Charge(TransferredByteCycles(n)); err != nil {
			return false, err
		}
		m.Regs[RegA1] = uint64(n)
		setStatus(proc, StatusSuccess)
		s.wakeReaders(end.pipeID)

	case SysClose:
		if err := s.meter.Charge(YieldCyclesBase); err != nil {
			return false, err
		}
		fd := m.Regs[RegA0]
		if end, ok := proc.Fds[fd]; ok {
			s.closeFd(proc, fd, end)
		}
		setStatus(proc, StatusSuccess)

	case SysInheritedFd:
		if err := s.meter.Charge(YieldCyclesBase); err != nil {
			return false, err
		}
		slot := int(m.Regs[RegA0])
		if slot < 0 || slot >= len(proc.InheritedFds) {
			setStatus(proc, StatusItemMissing)
			break
		}
		m.Regs[RegA1] = proc.InheritedFds[slot]
		setStatus(proc, StatusSuccess)

	case SysGetMemoryLimit:
		m.Regs[RegA1] = uint64(s.memBudget.Limit())
		m.Regs[RegA2] = uint64(s.memBudget.Remaining())
		setStatus(proc, StatusSuccess)

	case SysSetContent:
		addr, n := m.Regs[RegA0], int(m.Regs[RegA1])
		data, err := m.Mem.Read(addr, n)
		if err != nil {
			return false, err
		}
		proc.Content = data
		setStatus(proc, StatusSuccess)

	case SysVerifySignature:
		if err := s.meter.Charge(SignatureVerifyCycles); err != nil {
			return false, err
		}
		hash, err := m.Mem.Read(m.Regs[RegA0], int(m.Regs[RegA1]))
		if err != nil {
			return false, err
		}
		sig, err := m.Mem.Read(m.Regs[RegA2], int(m.Regs[RegA3]))
		if err != nil {
			return false, err
		}
		pubKey, err := m.Mem.Read(m.Regs[RegA4], int(m.Regs[RegA5]))
		if err != nil {
			return false, err
		}
		if crypto.VerifySignature(hash, sig, pubKey) {
			m.Regs[RegA1] = 1
		} else {
			m.Regs[RegA1] = 0
		}
		setStatus(proc, StatusSuccess)

	default:
		return false, &VMInternalError{Reason: "unknown syscall selector"}
	}
	return false, nil
}

// noInheritedFd marks "no fd to share" in spawn's A2 argument.
const noInheritedFd = ^uint64(0)

func setStatus(proc *Process, status uint64) {
	proc.Machine.Regs[RegA0] = status
}

// copyOutSimple writes data (capped to the caller's declared capacity and
// offset) into the guest buffer named by A0/A1/A2, charging transfer
// cycles, and sets the status/A1-true-length registers.
func (s *Scheduler) copyOutSimple(proc *Process, data []byte) {
	m := proc.Machine
	addr, capacity, offset := m.Regs[RegA0], m.Regs[RegA1], m.Regs[RegA2]

	if offset > uint64(len(data)) {
		offset = uint64(len(data))
	}
	avail := data[offset:]
	n := len(avail)
	if uint64(n) > capacity {
		n = int(capacity)
	}
	if n > 0 {
		if err := m.Mem.Write(addr, avail[:n]); err != nil {
			setStatus(proc, StatusItemMissing)
			return
		}
	}
	_ = s.meter.Charge(TransferredByteCycles(n))
	m.Regs[RegA1] = uint64(len(data))
	setStatus(proc, StatusSuccess)
}

func readCString(m *Machine, addr uint64) string {
	var out []byte
	for i := uint64(0); i < uint64(m.Mem.Len()); i++ {
		b, err := m.Mem.Read(addr+i, 1)
		if err != nil {
			break
		}
		if b[0] == 0 {
			break
		}
		out = append(out, b[0])
	}
	return string(out)
}

func sinceBytes(s types.Since) []byte {
	buf := make([]byte, 8)
	v := uint64(s)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * uint(i)))
	}
	return buf
}

// tryCompleteRead attempts to satisfy a blocked (or about-to-block) read,
// returning true if it completed (whether by delivering data or EOF).
func (s *Scheduler) tryCompleteRead(proc *Process) bool {
	end := proc.Fds[proc.BlockedFd]
	p, ok := s.pipes[end.pipeID]
	if !ok {
		return false
	}

	if p.buf.Len() > 0 {
		n := proc.ReadLen
		if n > p.buf.Len() {
			n = p.buf.Len()
		}
		data := p.buf.Next(n)
		if err := proc.Machine.Mem.Write(proc.ReadAddr, data); err != nil {
			return false
		}
		_ = s.meter.Charge(TransferredByteCycles(n))
		proc.Machine.Regs[RegA1] = uint64(n)
		setStatus(proc, StatusSuccess)
		proc.State = ProcessReady
		return true
	}

	if p.eof() {
		proc.Machine.Regs[RegA1] = 0
		setStatus(proc, StatusSuccess)
		proc.State = ProcessReady
		return true
	}

	return false
}

func (s *Scheduler) tryCompleteWrite(proc *Process) bool {
	// Writes never block in this implementation (pipes buffer
	// unboundedly); present for symmetry with closeFd's generic wake scan.
	proc.State = ProcessReady
	return true
}

func (s *Scheduler) wakeReaders(pipeID uint64) {
	for _, other := range s.procs {
		if other.State != ProcessBlockedOnRead {
			continue
		}
		if end, ok := other.Fds[other.BlockedFd]; ok && end.pipeID == pipeID {
			s.tryCompleteRead(other)
		}
	}
}
