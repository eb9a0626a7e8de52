package handler

import (
	"errors"
	"io"

	"github.com/utkarsh5026/poolserve/internal/reactor"
)

// writeState tracks a non-blocking response.
//
//	HeadersWritten -> AwaitingWritable <-> Writing -> Completed | Aborted
type writeState int

const (
	stateHeadersWritten writeState = iota
	stateAwaitingWritable
	stateWriting
	stateCompleted
	stateAborted
)

func (s writeState) String() string {
	switch s {
	case stateHeadersWritten:
		return "HeadersWritten"
	case stateAwaitingWritable:
		return "AwaitingWritable"
	case stateWriting:
		return "Writing"
	case stateCompleted:
		return "Completed"
	case stateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

func (s writeState) terminal() bool {
	return s == stateCompleted || s == stateAborted
}

// writeLoop pushes a response out in as many writability events as the
// client needs. It implements reactor.Handler; the reactor guarantees its
// callbacks never overlap.
type writeLoop struct {
	segments [][]byte
	seg      int
	off      int

	state   writeState
	written int64

	write   func(fd int, p []byte) (int, error)
	release func()
	onDone  func(state writeState, written int64, err error)
}

// newWriteLoop returns a loop that writes segments in order. release runs
// once when the loop ends, before onDone.
func newWriteLoop(segments [][]byte, release func(), onDone func(writeState, int64, error)) *writeLoop {
	return &writeLoop{
		segments: segments,
		state:    stateHeadersWritten,
		write:    reactor.Write,
		release:  release,
		onDone:   onDone,
	}
}

// OnWritable writes from the cursor until the socket would block or
// nothing is left.
func (w *writeLoop) OnWritable(fd int) (bool, error) {
	if w.state.terminal() {
		return true, nil
	}
	w.state = stateWriting

	for w.seg < len(w.segments) {
		p := w.segments[w.seg][w.off:]
		if len(p) == 0 {
			w.seg++
			w.off = 0
			continue
		}

		n, err := w.write(fd, p)
		w.off += n
		w.written += int64(n)

		switch {
		case errors.Is(err, reactor.ErrWouldBlock):
			w.state = stateAwaitingWritable
			return false, nil
		case err != nil:
			w.state = stateAborted
			return false, err
		case n == 0:
			w.state = stateAborted
			return false, io.ErrShortWrite
		}
	}

	w.state = stateCompleted
	return true, nil
}

// OnClose releases the response's resources. Errors end here.
func (w *writeLoop) OnClose(err error) {
	if err != nil || w.state != stateCompleted {
		w.state = stateAborted
	}
	if w.release != nil {
		w.release()
	}
	if w.onDone != nil {
		w.onDone(w.state, w.written, err)
	}
}

// remaining reports how many bytes are still to be written.
func (w *writeLoop) remaining() int {
	total := 0
	for i := w.seg; i < len(w.segments); i++ {
		total += len(w.segments[i])
	}
	return total - w.off
}
