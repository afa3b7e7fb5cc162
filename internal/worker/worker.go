// Package worker implements the single background goroutine that owns
// the page ring and the kernel I/O ring: it drains completions, rotates
// and flushes pages on a schedule, and applies incoming records.
package worker

import (
	"errors"
	"os"
	"time"
	"unsafe"

	"github.com/go-picolog/picolog/internal/clock"
	"github.com/go-picolog/picolog/internal/global"
	"github.com/go-picolog/picolog/internal/interfaces"
	"github.com/go-picolog/picolog/internal/page"
	"github.com/go-picolog/picolog/internal/ringbuf"
	"github.com/go-picolog/picolog/internal/uring"
)

// pendingPageMask extracts the sequence id packed alongside a page index
// in a completion's user_data (low 56 bits).
const pendingPageMask = 0x00FFFFFFFFFFFFFF

// Config bundles the collaborators a Worker needs. All fields are
// required except Clock, Logger and Observer; a nil Clock uses the
// system clock.
type Config struct {
	File          *os.File
	Ring          uring.Ring
	Pages         *page.Manager
	FlushInterval time.Duration
	PollInterval  time.Duration
	Clock         clock.Clock
	Logger        interfaces.Logger
	Observer      interfaces.Observer
}

// Worker runs the flush/completion loop for a Ring[T] of records.
type Worker[T any] struct {
	records *ringbuf.Ring[T]

	file  *os.File
	ring  uring.Ring
	pages *page.Manager
	clock clock.Clock

	flushInterval time.Duration
	pollInterval  time.Duration
	lastFlush     time.Time
	pendingWrites int

	logger   interfaces.Logger
	observer interfaces.Observer

	done chan struct{}
}

// New creates a Worker that will read records pushed to records.
func New[T any](records *ringbuf.Ring[T], cfg Config) *Worker[T] {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	return &Worker[T]{
		records:       records,
		file:          cfg.File,
		ring:          cfg.Ring,
		pages:         cfg.Pages,
		clock:         clk,
		flushInterval: cfg.FlushInterval,
		pollInterval:  cfg.PollInterval,
		lastFlush:     time.Now(),
		logger:        cfg.Logger,
		observer:      cfg.Observer,
		done:          make(chan struct{}),
	}
}

// Done is closed once Run has finished draining all pending writes after
// the record ring is closed.
func (w *Worker[T]) Done() <-chan struct{} {
	return w.done
}

// Run is the worker's main loop. It returns once the record ring is
// closed and every in-flight write has completed.
func (w *Worker[T]) Run() {
	defer close(w.done)

	for {
		w.drainCompletions()

		if time.Since(w.lastFlush) >= w.flushInterval {
			w.flushCurrentPage()
		}

		timeSinceFlush := time.Since(w.lastFlush)
		timeUntilFlush := w.flushInterval - timeSinceFlush
		if timeUntilFlush < 0 {
			timeUntilFlush = 0
		}
		timeout := w.pollInterval
		if timeUntilFlush < timeout {
			timeout = timeUntilFlush
		}

		select {
		case seqID, ok := <-w.records.Indices():
			if !ok {
				w.flushRemaining()
				return
			}
			w.handleMessage(w.records.Slot(seqID))
		case <-time.After(timeout):
			continue
		}
	}
}

func (w *Worker[T]) handleMessage(msg ringbuf.LogMessage[T]) {
	data := recordBytes(&msg.Data)
	now := w.clock.NowNanos()

	active, _ := w.pages.Active()
	err := active.Append(msg.SeqID, now, data)
	if errors.Is(err, page.ErrFull) {
		w.flushCurrentPage()
		active, _ = w.pages.Active()
		err = active.Append(msg.SeqID, w.clock.NowNanos(), data)
	}

	if w.observer != nil {
		w.observer.ObserveAppend(uint64(len(data)), err == nil)
	}
	if err != nil && w.logger != nil {
		w.logger.Errorf("append seq %d failed: %v", msg.SeqID, err)
	}
}

// flushCurrentPage submits the active page for a direct-I/O write,
// rotates to the next page in the ring, and blocks if that next page
// still has a write in flight.
func (w *Worker[T]) flushCurrentPage() {
	active, idx := w.pages.Active()
	if active.IsEmpty() {
		w.lastFlush = time.Now()
		return
	}

	w.pages.SetPending(idx, true)

	pageID := global.NextPageID()
	content := active.Content()
	offset := int64(pageID) * int64(len(content))
	seqID := active.LastEntry()
	userData := (uint64(idx) << 56) | (seqID & pendingPageMask)

	startTime := time.Now()

	err := w.ring.PrepareWrite(int(w.file.Fd()), content, offset, userData)
	if errors.Is(err, uring.ErrRingFull) {
		if _, subErr := w.ring.Submit(); subErr != nil && w.logger != nil {
			w.logger.Errorf("submit to drain full ring failed: %v", subErr)
		}
		err = w.ring.PrepareWrite(int(w.file.Fd()), content, offset, userData)
	}
	if err != nil && w.logger != nil {
		w.logger.Errorf("prepare write for page %d failed: %v", idx, err)
	} else {
		if _, subErr := w.ring.Submit(); subErr != nil && w.logger != nil {
			w.logger.Errorf("submit failed: %v", subErr)
		}
		w.pendingWrites++
	}

	latencyNs := uint64(time.Since(startTime).Nanoseconds())

	if w.observer != nil {
		w.observer.ObserveFlush(uint64(len(content)), latencyNs, err == nil)
		w.observer.ObservePageRotate(idx)
	}

	w.pages.Advance()
	w.waitIfNextPagePending()

	next, _ := w.pages.Active()
	next.Reset()
	w.lastFlush = time.Now()
}

// waitIfNextPagePending blocks until the page about to become active
// again has no write in flight, so a producer never appends into a page
// the kernel might still be writing out.
func (w *Worker[T]) waitIfNextPagePending() {
	_, idx := w.pages.Active()
	for w.pages.Pending(idx) {
		if _, err := w.ring.SubmitAndWait(1); err != nil && w.logger != nil {
			w.logger.Errorf("submit_and_wait failed: %v", err)
		}
		w.drainCompletions()
	}
}

// drainCompletions non-blockingly consumes every completion currently
// available, advancing the durability watermark for each success and
// reporting (but not retrying) each failure.
func (w *Worker[T]) drainCompletions() {
	for {
		res, ok := w.ring.PopCompletion()
		if !ok {
			return
		}
		if w.pendingWrites > 0 {
			w.pendingWrites--
		}

		if res.Res >= 0 {
			pageIdx := int(res.UserData >> 56)
			seqID := res.UserData & pendingPageMask
			if pageIdx < w.pages.Len() {
				w.pages.SetPending(pageIdx, false)
			}
			global.SetAckNumber(seqID)
			if w.observer != nil {
				w.observer.ObserveAckAdvance(seqID)
			}
			continue
		}

		if w.logger != nil {
			w.logger.Errorf("async write failed: result=%d", res.Res)
		}
		if w.observer != nil {
			w.observer.ObserveFlush(0, 0, false)
		}
	}
}

// flushRemaining flushes whatever is left in the active page and blocks
// until every in-flight write has completed. Called once when the
// record ring is closed.
func (w *Worker[T]) flushRemaining() {
	w.flushCurrentPage()
	for w.pendingWrites > 0 {
		if _, err := w.ring.SubmitAndWait(1); err != nil && w.logger != nil {
			w.logger.Errorf("submit_and_wait failed: %v", err)
		}
		w.drainCompletions()
	}
}

// RecordSize returns sizeof(T), used by the Logger facade to validate
// that a record plus its header fits in one block before Start commits
// to a block size.
func RecordSize[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// recordBytes views v's memory as a byte slice without copying. T must
// be a fixed-shape, pointer-free value type — the same precondition the
// on-disk frame format itself requires.
func recordBytes[T any](v *T) []byte {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), size)
}
