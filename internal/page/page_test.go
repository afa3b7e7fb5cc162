package page

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	A uint64
	B uint32
}

func sampleBytes(s sample) []byte {
	buf := make([]byte, 12)
	buf[0] = byte(s.A)
	buf[4] = byte(s.B)
	return buf
}

func TestHeaderRoundTrip(t *testing.T) {
	h := EntryHeader{SeqID: 42, TSNanos: 123456789, Len: 12}
	buf := make([]byte, HeaderSize)
	h.Marshal(buf)

	got, ok := UnmarshalHeader(buf)
	require.True(t, ok)
	require.Equal(t, h.SeqID, got.SeqID)
	require.Equal(t, h.TSNanos, got.TSNanos)
	require.Equal(t, h.Len, got.Len)
}

func TestPageAppendAndContent(t *testing.T) {
	p, err := New(512)
	require.NoError(t, err)
	defer p.Close()

	require.True(t, p.IsEmpty())

	data := sampleBytes(sample{A: 7, B: 9})
	require.NoError(t, p.Append(1, 1000, data))
	require.False(t, p.IsEmpty())
	require.Equal(t, uint64(1), p.LastEntry())

	content := p.Content()
	require.Len(t, content, 512)

	hdr, ok := UnmarshalHeader(content)
	require.True(t, ok)
	require.Equal(t, uint64(1), hdr.SeqID)
	require.Equal(t, uint16(len(data)), hdr.Len)
}

func TestPageAppendFillsAndReportsFull(t *testing.T) {
	p, err := New(64)
	require.NoError(t, err)
	defer p.Close()

	data := make([]byte, 20)
	require.NoError(t, p.Append(1, 1, data))

	err = p.Append(2, 2, data)
	require.True(t, errors.Is(err, ErrFull))
}

func TestPageReset(t *testing.T) {
	p, err := New(128)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Append(1, 1, []byte("hello")))
	require.False(t, p.IsEmpty())

	p.Reset()
	require.True(t, p.IsEmpty())
	require.Equal(t, uint64(0), p.LastEntry())
	for _, b := range p.Content() {
		require.Equal(t, byte(0), b)
	}
}

func TestManagerAdvanceRotatesAndMarksPending(t *testing.T) {
	m, err := NewManager(64, 3)
	require.NoError(t, err)
	defer m.Close()

	_, idx0 := m.Active()
	require.Equal(t, 0, idx0)
	require.False(t, m.Pending(0))

	prev := m.Advance()
	require.Equal(t, 0, prev)
	require.True(t, m.Pending(0))

	_, idx1 := m.Active()
	require.Equal(t, 1, idx1)

	m.Advance()
	m.Advance()
	_, idx3 := m.Active()
	require.Equal(t, 0, idx3, "ring should wrap back to index 0")
}
