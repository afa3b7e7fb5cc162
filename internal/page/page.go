// Package page implements the fixed-size, block-aligned write buffer
// ("Page") that records are appended to before being handed to the
// kernel for a direct-I/O write, plus the Manager that rotates a fixed
// ring of Pages.
package page

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrFull is returned by Append when the record does not fit in the
// remaining space of the page.
var ErrFull = errors.New("page: full")

// Page owns a blockSize-byte, blockSize-aligned buffer and appends
// fixed-shape records to it until it is full. The buffer is obtained
// via an anonymous mmap rather than a heap allocation: Go has no portable
// aligned-allocation primitive, and mmap always returns page-aligned
// memory, which is a superset of the alignment O_DIRECT requires for any
// blockSize that is itself a divisor of the system page size.
type Page struct {
	buf       []byte
	blockSize int
	cursor    int
	lastEntry uint64
}

// New allocates a fresh, zeroed Page of blockSize bytes.
func New(blockSize int) (*Page, error) {
	buf, err := unix.Mmap(-1, 0, blockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}
	return &Page{buf: buf, blockSize: blockSize}, nil
}

// Close releases the underlying mmap. A Page must not be used after
// Close.
func (p *Page) Close() error {
	if p.buf == nil {
		return nil
	}
	err := unix.Munmap(p.buf)
	p.buf = nil
	return err
}

// Append writes one record's header and payload at the current cursor.
// recordSize is sizeof(T); data must hold exactly recordSize bytes.
// Returns ErrFull if the record does not fit in the remaining space.
func (p *Page) Append(seqID uint64, tsNanos int64, data []byte) error {
	recordSize := len(data)
	totalSize := HeaderSize + recordSize
	alignedSize := AlignUp(totalSize, 8)

	if p.cursor+totalSize > p.blockSize {
		return ErrFull
	}

	header := EntryHeader{
		SeqID:   seqID,
		TSNanos: uint64(tsNanos),
		Len:     uint16(recordSize),
	}
	header.Marshal(p.buf[p.cursor : p.cursor+HeaderSize])
	copy(p.buf[p.cursor+HeaderSize:p.cursor+totalSize], data)
	if pad := alignedSize - totalSize; pad > 0 {
		clear(p.buf[p.cursor+totalSize : p.cursor+totalSize+pad])
	}

	p.cursor += alignedSize
	p.lastEntry = seqID
	return nil
}

// Reset zeroes the page and rewinds the cursor, making it ready for
// reuse by the next rotation.
func (p *Page) Reset() {
	clear(p.buf)
	p.cursor = 0
	p.lastEntry = 0
}

// IsEmpty reports whether any record has been appended since the last
// Reset.
func (p *Page) IsEmpty() bool {
	return p.cursor == 0
}

// LastEntry returns the sequence id of the most recently appended
// record.
func (p *Page) LastEntry() uint64 {
	return p.lastEntry
}

// Content returns the full blockSize-byte backing buffer, including any
// trailing zero bytes after the cursor. This is the slice handed to the
// kernel for a direct-I/O write.
func (p *Page) Content() []byte {
	return p.buf
}

// Addr returns the address of the backing buffer, for diagnostics and
// for building an io_uring SQE that addresses it directly.
func (p *Page) Addr() uintptr {
	if len(p.buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&p.buf[0]))
}
