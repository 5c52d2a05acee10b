package vm

import "bytes"

// pipeEnd is one process's handle on one half of a Pipe.
type pipeEnd struct {
	pipeID  uint64
	isWrite bool
}

// pipe is a unidirectional byte stream shared by every fd handle that
// references it, per spec.md §4.4.5: "each half of a unidirectional
// pipe ... allocates (read_fd, write_fd) atomically."
type pipe struct {
	id          uint64
	buf         bytes.Buffer
	readersOpen int
	writersOpen int
}

func (p *pipe) closeEnd(isWrite bool) {
	if isWrite {
		p.writersOpen--
	} else {
		p.readersOpen--
	}
}

// eof reports whether a reader on this pipe will never see more data:
// every writer handle has closed.
func (p *pipe) eof() bool {
	return p.writersOpen <= 0
}

// readerGone reports whether every reader handle on this pipe has closed.
// A write to such a pipe is a broken pipe: it fails with StatusItemMissing
// and buffers nothing.
func (p *pipe) readerGone() bool {
	return p.readersOpen <= 0
}
