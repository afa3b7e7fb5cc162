package picolog

import (
	"errors"
	"io"
	"os"
	"unsafe"

	"github.com/go-picolog/picolog/internal/fileio"
	"github.com/go-picolog/picolog/internal/page"
)

// Read opens path and decodes every record it can recover, in on-disk
// order. Malformed or truncated frames terminate the walk silently
// rather than returning an error: the log is meant to be read after the
// fact, possibly while a writer still holds the file, so a partially
// written tail frame is an expected condition, not a failure.
func Read[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapError("Read", err)
	}
	defer f.Close()

	blockSize, err := fileio.BlockSize(f)
	if err != nil {
		return nil, WrapError("Read", err)
	}

	var zero T
	recordSize := int(unsafe.Sizeof(zero))

	frame := make([]byte, blockSize)
	var out []T

	for {
		n, err := io.ReadFull(f, frame)
		if n == 0 && (err == io.EOF || err == nil) {
			break
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return out, WrapError("Read", err)
		}

		out = appendFrame[T](out, frame[:n], recordSize)

		if err != nil {
			// Partial final frame: nothing more to read.
			break
		}
	}

	return out, nil
}

// appendFrame walks one page frame's record stream, decoding records of
// recordSize bytes each until a zero-length header or cursor overrun
// terminates the walk.
func appendFrame[T any](out []T, frame []byte, recordSize int) []T {
	cursor := 0
	for {
		hdr, ok := page.UnmarshalHeader(frame[cursor:])
		if !ok || hdr.Len == 0 {
			return out
		}

		recordStart := cursor + page.HeaderSize
		recordEnd := recordStart + int(hdr.Len)
		if recordEnd > len(frame) {
			return out
		}

		var rec T
		if recordSize > 0 {
			copy(unsafe.Slice((*byte)(unsafe.Pointer(&rec)), recordSize), frame[recordStart:recordEnd])
		}
		out = append(out, rec)

		cursor = page.AlignUp(recordEnd, 8)
		if cursor >= len(frame) {
			return out
		}
	}
}
