// Package picolog implements a low-latency, append-only structured
// logger for fixed-shape records. Producers hand records to a single
// background worker over a lock-free channel handoff; the worker packs
// them into block-aligned pages and submits each full page as a direct
// I/O write through an io_uring submission/completion ring, advancing a
// monotonic durability watermark as writes complete.
package picolog

import (
	"fmt"
	"os"
	"time"

	"github.com/go-picolog/picolog/internal/clock"
	"github.com/go-picolog/picolog/internal/constants"
	"github.com/go-picolog/picolog/internal/fileio"
	"github.com/go-picolog/picolog/internal/global"
	"github.com/go-picolog/picolog/internal/interfaces"
	"github.com/go-picolog/picolog/internal/page"
	"github.com/go-picolog/picolog/internal/ringbuf"
	"github.com/go-picolog/picolog/internal/uring"
	"github.com/go-picolog/picolog/internal/worker"
)

// WriteConfig configures a Logger for appending records.
type WriteConfig struct {
	Path          string
	Capacity      int
	FlushInterval time.Duration
	PollInterval  time.Duration

	// PreallocBytes, if non-zero, asks the file opener to reserve that
	// much disk space up front.
	PreallocBytes int64

	// Opener overrides how the backing file is opened; nil uses
	// fileio.DefaultOpener. Exposed so tests can substitute a
	// non-O_DIRECT opener on filesystems that reject it.
	Opener fileio.Opener

	// Ring overrides the kernel async-I/O ring used by Start; nil
	// constructs a real io_uring ring via uring.New.
	Ring uring.Ring

	// Clock overrides the worker's timestamp source; nil uses the
	// system clock.
	Clock clock.Clock

	Logger   interfaces.Logger
	Observer interfaces.Observer
}

// ReadConfig configures a Logger for reading back a log file.
type ReadConfig struct {
	Path string
}

// Logger is the producer-facing facade over the page ring, the record
// handoff channel, and the background worker. The zero value is an
// unstarted Logger; call WithWriteConfig or WithReadConfig followed by
// Start before calling Log.
type Logger[T any] struct {
	writeCfg *WriteConfig
	readCfg  *ReadConfig

	started bool
	closed  bool

	records *ringbuf.Ring[T]
	file    *os.File
	ring    uring.Ring
	pages   *page.Manager
	w       *worker.Worker[T]
}

// New constructs an unstarted Logger.
func New[T any]() *Logger[T] {
	return &Logger[T]{}
}

// WithWriteConfig stores configuration for appending records and
// returns the Logger for chaining. capacity must be at least 1, and
// flushInterval must be at least pollInterval, which must be positive.
func (l *Logger[T]) WithWriteConfig(path string, capacity int, flushInterval, pollInterval time.Duration) *Logger[T] {
	l.writeCfg = &WriteConfig{
		Path:          path,
		Capacity:      capacity,
		FlushInterval: flushInterval,
		PollInterval:  pollInterval,
	}
	return l
}

// WithWriteConfigOptions is like WithWriteConfig but accepts a full
// WriteConfig, for callers that need to override the opener, ring,
// clock, logger, or observer (principally tests).
func (l *Logger[T]) WithWriteConfigOptions(cfg WriteConfig) *Logger[T] {
	cp := cfg
	l.writeCfg = &cp
	return l
}

// WithReadConfig stores configuration for read-only use and returns the
// Logger for chaining.
func (l *Logger[T]) WithReadConfig(path string) *Logger[T] {
	l.readCfg = &ReadConfig{Path: path}
	return l
}

// Start validates the stored write configuration, allocates the record
// ring, page manager, and kernel I/O ring, opens the backing file, and
// spawns the background worker. Start fails if no write configuration
// was supplied, if T plus its header does not fit a single block, or if
// the backing file cannot be opened or pre-allocated.
func (l *Logger[T]) Start() error {
	if l.writeCfg == nil {
		return NewError("Start", ErrCodeConfigMissing, "no write configuration; call WithWriteConfig first")
	}
	cfg := l.writeCfg

	if cfg.Capacity < 1 {
		return NewError("Start", ErrCodeInvalidRecord, "capacity must be >= 1")
	}
	if cfg.PollInterval <= 0 || cfg.FlushInterval < cfg.PollInterval {
		return NewError("Start", ErrCodeInvalidRecord, "flush_interval must be >= poll_interval > 0")
	}

	recordSize := worker.RecordSize[T]()
	if recordSize > constants.MaxRecordSize {
		return NewError("Start", ErrCodeInvalidRecord, fmt.Sprintf("record size %d exceeds %d", recordSize, constants.MaxRecordSize))
	}

	opener := cfg.Opener
	if opener == nil {
		opener = fileio.DefaultOpener
	}
	f, blockSize, err := opener(cfg.Path, cfg.PreallocBytes)
	if err != nil {
		return WrapError("Start", err)
	}

	if page.HeaderSize+recordSize > blockSize {
		f.Close()
		return NewError("Start", ErrCodeInvalidRecord, fmt.Sprintf("record of %d bytes plus header does not fit a %d-byte block", recordSize, blockSize))
	}

	pages, err := page.NewManager(blockSize, constants.DefaultPageCount)
	if err != nil {
		f.Close()
		return WrapError("Start", err)
	}

	ring := cfg.Ring
	if ring == nil {
		ring, err = uring.New(uring.Config{Entries: constants.DefaultRingEntries})
		if err != nil {
			f.Close()
			pages.Close()
			return WrapError("Start", err)
		}
	}

	records := ringbuf.New[T](cfg.Capacity)

	l.records = records
	l.file = f
	l.ring = ring
	l.pages = pages
	l.w = worker.New(records, worker.Config{
		File:          f,
		Ring:          ring,
		Pages:         pages,
		FlushInterval: cfg.FlushInterval,
		PollInterval:  cfg.PollInterval,
		Clock:         cfg.Clock,
		Logger:        cfg.Logger,
		Observer:      cfg.Observer,
	})
	l.started = true

	go l.w.Run()

	return nil
}

// Log allocates a sequence id, hands data to the background worker, and
// returns the sequence id and true. It returns (0, false) without
// blocking if the Logger has not been started. Log never returns an
// error: serialization cannot fail for fixed-shape records, and
// durability failures surface asynchronously via the configured
// Logger/Observer rather than at the call site.
func (l *Logger[T]) Log(data T) (uint64, bool) {
	if !l.started || l.closed {
		return 0, false
	}
	seqID := global.NextSeqID()
	l.records.Push(seqID, data)
	return seqID, true
}

// GetLastFlushedEntry returns the highest sequence id known to have
// been durably written, across every Logger in the process.
func (l *Logger[T]) GetLastFlushedEntry() uint64 {
	return global.AckNumber()
}

// Read opens the configured path and returns every record it can
// recover, in on-disk (submission) order. It requires WithReadConfig.
func (l *Logger[T]) Read() ([]T, error) {
	if l.readCfg == nil {
		return nil, NewError("Read", ErrCodeConfigMissing, "no read configuration; call WithReadConfig first")
	}
	return Read[T](l.readCfg.Path)
}

// Close stops accepting new records, waits for the worker to flush and
// drain every in-flight write, and releases the file, ring, and page
// buffers. Close is the counterpart of the Rust original's Drop impl:
// closing the channel stands in for dropping the sender, and waiting on
// Done stands in for joining the worker thread.
func (l *Logger[T]) Close() error {
	if !l.started || l.closed {
		return nil
	}
	l.closed = true

	l.records.Close()
	<-l.w.Done()

	var first error
	if err := l.pages.Close(); err != nil && first == nil {
		first = err
	}
	if err := l.ring.Close(); err != nil && first == nil {
		first = err
	}
	if err := l.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
