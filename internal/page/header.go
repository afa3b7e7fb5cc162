package page

import (
	"encoding/binary"
	"unsafe"
)

// HeaderSize is the fixed on-disk size of EntryHeader, in bytes.
const HeaderSize = 24

// EntryHeader precedes every record written to a Page. The layout is
// little-endian and packed: SeqID | TSNanos | Len | 6 bytes of padding,
// pinned to exactly HeaderSize bytes by the compile-time check below.
type EntryHeader struct {
	SeqID   uint64
	TSNanos uint64
	Len     uint16
	_       [6]byte
}

var _ [HeaderSize]byte = [unsafe.Sizeof(EntryHeader{})]byte{}

// Marshal encodes h into the first HeaderSize bytes of buf.
func (h EntryHeader) Marshal(buf []byte) {
	_ = buf[:HeaderSize]
	binary.LittleEndian.PutUint64(buf[0:8], h.SeqID)
	binary.LittleEndian.PutUint64(buf[8:16], h.TSNanos)
	binary.LittleEndian.PutUint16(buf[16:18], h.Len)
	buf[18], buf[19], buf[20], buf[21], buf[22], buf[23] = 0, 0, 0, 0, 0, 0
}

// UnmarshalHeader decodes an EntryHeader from the first HeaderSize bytes
// of buf. Returns false if buf is too short.
func UnmarshalHeader(buf []byte) (EntryHeader, bool) {
	if len(buf) < HeaderSize {
		return EntryHeader{}, false
	}
	return EntryHeader{
		SeqID:   binary.LittleEndian.Uint64(buf[0:8]),
		TSNanos: binary.LittleEndian.Uint64(buf[8:16]),
		Len:     binary.LittleEndian.Uint16(buf[16:18]),
	}, true
}

// AlignUp rounds addr up to the next multiple of align, which must be a
// power of two.
func AlignUp(addr, align int) int {
	return (addr + align - 1) &^ (align - 1)
}
