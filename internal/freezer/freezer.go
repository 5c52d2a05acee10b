// Package freezer implements the cold-archive tier spec.md §4.9/§6.2
// describes: blocks older than keep_hot_blocks are moved out of the hot
// store into an append-only sequence of size-bounded .cdat files, indexed
// by a .cidx file mapping block number to (file_id, offset, length).
// Records are zstd-compressed, following the corpus's idiomatic choice
// (github.com/klauspost/compress) for this kind of segment compression.
// Freezing is idempotent (Append on an already-frozen number is a no-op)
// and crash-safe: a record only becomes visible to Get once its .cidx
// entry has been durably appended, so a crash between writing data and
// indexing it just leaves orphaned, never-referenced bytes in the
// current .cdat segment.
package freezer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ErrNotFrozen is returned by Get for a block number that was never
// frozen.
var ErrNotFrozen = errors.New("freezer: block not frozen")

// KeepHotBlocks is the default distance from the tip below which a block
// becomes eligible for freezing (spec.md §4.9, "default 90k blocks").
const KeepHotBlocks = 90_000

// DefaultMaxFileSize bounds a single .cdat segment before a new one is
// opened.
const DefaultMaxFileSize = 512 * 1024 * 1024

// indexRecordSize is the fixed width of one .cidx entry: block
// number(8) + file_id(4) + offset(8) + length(4).
const indexRecordSize = 8 + 4 + 8 + 4

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

var dataFilePattern = regexp.MustCompile(`^(\d{6})\.cdat$`)

type indexEntry struct {
	fileID uint32
	offset uint64
	length uint32
}

// Freezer is the cold-archive tier: append blocks in ascending number
// order, read any frozen block back by number.
type Freezer struct {
	mu  sync.RWMutex
	dir string

	maxFileSize uint64

	index map[uint64]indexEntry
	idx   *os.File

	fileID uint32
	data   *os.File
	offset uint64

	tail    uint64 // one past the highest frozen block number.
	hasTail bool
}

// Open opens (creating if necessary) a freezer rooted at dir, replaying
// its .cidx to recover the in-memory index and resuming appends after
// whatever the highest-numbered .cdat segment already holds.
func Open(dir string, maxFileSize uint64) (*Freezer, error) {
	if maxFileSize == 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("freezer: mkdir %s: %w", dir, err)
	}

	f := &Freezer{
		dir:         dir,
		maxFileSize: maxFileSize,
		index:       make(map[uint64]indexEntry),
	}

	idxPath := filepath.Join(dir, "index.cidx")
	raw, err := os.ReadFile(idxPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("freezer: read index: %w", err)
	}
	usable := len(raw) - (len(raw) % indexRecordSize) // drop a torn trailing record, if any.
	for off := 0; off < usable; off += indexRecordSize {
		rec := raw[off : off+indexRecordSize]
		number := binary.BigEndian.Uint64(rec[0:8])
		entry := indexEntry{
			fileID: binary.BigEndian.Uint32(rec[8:12]),
			offset: binary.BigEndian.Uint64(rec[12:20]),
			length: binary.BigEndian.Uint32(rec[20:24]),
		}
		f.index[number] = entry
		if !f.hasTail || number >= f.tail {
			f.tail = number + 1
			f.hasTail = true
		}
	}

	f.idx, err = os.OpenFile(idxPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("freezer: open index: %w", err)
	}
	// Truncate away any torn trailing record so future offsets computed
	// from this file's length stay record-aligned.
	if len(raw) != usable {
		if err := f.idx.Truncate(int64(usable)); err != nil {
			return nil, fmt.Errorf("freezer: truncate torn index record: %w", err)
		}
	}

	maxFileID, err := highestDataFileID(dir)
	if err != nil {
		return nil, err
	}
	f.fileID = maxFileID
	f.data, err = os.OpenFile(cdatPath(dir, maxFileID), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("freezer: open data segment: %w", err)
	}
	stat, err := f.data.Stat()
	if err != nil {
		return nil, fmt.Errorf("freezer: stat data segment: %w", err)
	}
	f.offset = uint64(stat.Size())

	return f, nil
}

func highestDataFileID(dir string) (uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("freezer: list dir: %w", err)
	}
	var max uint32
	for _, e := range entries {
		m := dataFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		if uint32(n) > max {
			max = uint32(n)
		}
	}
	return max, nil
}

func cdatPath(dir string, fileID uint32) string {
	return filepath.Join(dir, fmt.Sprintf("%06d.cdat", fileID))
}

// Has reports whether number has already been frozen.
func (f *Freezer) Has(number uint64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.index[number]
	return ok
}

// Tail returns one past the highest frozen block number, and whether
// anything has been frozen at all. A caller promoting blocks from the hot
// store resumes at Tail() when ok is true, or at block 0 when it is not.
func (f *Freezer) Tail() (number uint64, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tail, f.hasTail
}

// Append freezes number's serialized block data. Calling it again for a
// number already frozen is a no-op: freezing is idempotent so a caller
// retrying after a crash need not track what it already committed.
func (f *Freezer) Append(number uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.index[number]; ok {
		return nil
	}

	compressed := encoder.EncodeAll(data, nil)
	if f.offset+uint64(len(compressed)) > f.maxFileSize && f.offset > 0 {
		if err := f.rollSegment(); err != nil {
			return err
		}
	}

	if _, err := f.data.Write(compressed); err != nil {
		return fmt.Errorf("freezer: write segment %d: %w", f.fileID, err)
	}
	if err := f.data.Sync(); err != nil {
		return fmt.Errorf("freezer: sync segment %d: %w", f.fileID, err)
	}

	entry := indexEntry{fileID: f.fileID, offset: f.offset, length: uint32(len(compressed))}
	var rec [indexRecordSize]byte
	binary.BigEndian.PutUint64(rec[0:8], number)
	binary.BigEndian.PutUint32(rec[8:12], entry.fileID)
	binary.BigEndian.PutUint64(rec[12:20], entry.offset)
	binary.BigEndian.PutUint32(rec[20:24], entry.length)
	if _, err := f.idx.Write(rec[:]); err != nil {
		return fmt.Errorf("freezer: write index entry %d: %w", number, err)
	}
	if err := f.idx.Sync(); err != nil {
		return fmt.Errorf("freezer: sync index: %w", err)
	}

	f.offset += uint64(len(compressed))
	f.index[number] = entry
	if !f.hasTail || number >= f.tail {
		f.tail = number + 1
		f.hasTail = true
	}
	return nil
}

func (f *Freezer) rollSegment() error {
	if err := f.data.Close(); err != nil {
		return fmt.Errorf("freezer: close segment %d: %w", f.fileID, err)
	}
	f.fileID++
	f.offset = 0
	data, err := os.OpenFile(cdatPath(f.dir, f.fileID), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("freezer: open segment %d: %w", f.fileID, err)
	}
	f.data = data
	return nil
}

// Get returns number's frozen, decompressed block data, or ErrNotFrozen
// if it was never frozen.
func (f *Freezer) Get(number uint64) ([]byte, error) {
	f.mu.RLock()
	entry, ok := f.index[number]
	currentFileID, currentData := f.fileID, f.data
	f.mu.RUnlock()
	if !ok {
		return nil, ErrNotFrozen
	}

	compressed := make([]byte, entry.length)
	if entry.fileID == currentFileID {
		if _, err := currentData.ReadAt(compressed, int64(entry.offset)); err != nil {
			return nil, fmt.Errorf("freezer: read segment %d: %w", entry.fileID, err)
		}
	} else {
		path := cdatPath(f.dir, entry.fileID)
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("freezer: open segment %d: %w", entry.fileID, err)
		}
		defer fh.Close()
		if _, err := fh.ReadAt(compressed, int64(entry.offset)); err != nil {
			return nil, fmt.Errorf("freezer: read segment %d: %w", entry.fileID, err)
		}
	}

	decompressed, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("freezer: decompress %d: %w", number, err)
	}
	return decompressed, nil
}

// Close releases the freezer's open file handles.
func (f *Freezer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.data.Close(); err != nil {
		return err
	}
	return f.idx.Close()
}
