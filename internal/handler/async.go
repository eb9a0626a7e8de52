package handler

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/poolserve/internal/reactor"
	"github.com/utkarsh5026/poolserve/internal/workload"
	"github.com/utkarsh5026/poolserve/pool"
)

const rawWriteTimeout = 5 * time.Second

// Async is the non-blocking handler. ServeHTTP hijacks the connection and
// returns as soon as the work is submitted to the pool.
//
// Query overrides are not applied on this path; every request uses the
// process defaults.
type Async struct {
	cpu      *workload.CPU
	idle     *workload.Idle
	files    *workload.FileCache
	defaults workload.Config
	pool     pool.Pool
	reactor  *reactor.Reactor
	options
}

// NewAsync returns a non-blocking handler that computes headers on p and
// streams bodies through r.
func NewAsync(defaults workload.Config, files *workload.FileCache, p pool.Pool, r *reactor.Reactor, opts ...Option) *Async {
	return &Async{
		cpu:      workload.NewCPU(),
		idle:     workload.NewIdle(),
		files:    files,
		defaults: defaults,
		pool:     p,
		reactor:  r,
		options:  newOptions(opts),
	}
}

func (h *Async) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "connection cannot be hijacked", http.StatusInternalServerError)
		h.observer.ObserveRequest(NameAsync, OutcomeFailed, time.Since(start), 0)
		return
	}

	conn, _, err := hj.Hijack()
	if err != nil {
		h.logger.Debug("hijack failed", zap.Error(err))
		h.observer.ObserveRequest(NameAsync, OutcomeFailed, time.Since(start), 0)
		return
	}

	if err := h.pool.Submit(func() { h.respond(conn, start) }); err != nil {
		h.logger.Debug("pool rejected request", zap.Error(err))
		writeRawStatus(conn, http.StatusServiceUnavailable)
		_ = conn.Close()
		h.observer.ObserveRequest(NameAsync, OutcomeRejected, time.Since(start), 0)
	}
}

// respond runs on a pool unit. It produces the response head, then hands
// the connection to the reactor and returns.
func (h *Async) respond(conn net.Conn, start time.Time) {
	requestID := h.cpu.Process(h.defaults.CPUIterations)
	latency := h.idle.Process(h.defaults.IdleDelay)

	m, err := h.files.Map(h.defaults.FileLength)
	if err != nil {
		h.logger.Error("backing store unavailable", zap.Int("size", h.defaults.FileLength), zap.Error(err))
		writeRawStatus(conn, http.StatusInternalServerError)
		_ = conn.Close()
		h.observer.ObserveRequest(NameAsync, OutcomeFailed, time.Since(start), 0)
		return
	}

	sc, ok := conn.(syscall.Conn)
	if !ok {
		_ = m.Close()
		_ = conn.Close()
		h.logger.Error("connection exposes no file descriptor", zap.String("type", fmt.Sprintf("%T", conn)))
		h.observer.ObserveRequest(NameAsync, OutcomeFailed, time.Since(start), 0)
		return
	}

	head := responseHead(len(m.Data), requestID, latency)

	var wl *writeLoop
	wl = newWriteLoop(
		[][]byte{head, m.Data},
		func() {
			_ = m.Close()
			closeConn(conn)
		},
		func(state writeState, written int64, err error) {
			outcome := OutcomeCompleted
			if state != stateCompleted {
				outcome = OutcomeAborted
				h.logger.Debug("transfer aborted",
					zap.String("request_id", requestID),
					zap.Int64("written", written),
					zap.Int("remaining", wl.remaining()),
					zap.Error(err),
				)
			}
			h.observer.ObserveRequest(NameAsync, outcome, time.Since(start), written)
		},
	)

	if err := h.reactor.Register(sc, wl); err != nil {
		wl.OnClose(err)
	}
}

// responseHead serializes the status line and headers of a 200 response.
func responseHead(size int, requestID, latency string) []byte {
	hdr := http.Header{}
	hdr.Set("Content-Type", contentType)
	hdr.Set("Content-Length", strconv.Itoa(size))
	hdr.Set(headerRequestID, requestID)
	hdr.Set(headerLatency, latency)
	hdr.Set("Connection", "close")
	hdr.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	var b bytes.Buffer
	b.Grow(256)
	b.WriteString("HTTP/1.1 200 OK\r\n")
	_ = hdr.Write(&b)
	b.WriteString("\r\n")
	return b.Bytes()
}

// writeRawStatus writes a bodyless response directly on a hijacked conn.
func writeRawStatus(conn net.Conn, code int) {
	_ = conn.SetWriteDeadline(time.Now().Add(rawWriteTimeout))
	_, _ = fmt.Fprintf(conn, "HTTP/1.1 %d %s\r\nContent-Length: 0\r\nConnection: close\r\n\r\n",
		code, http.StatusText(code))
}

// closeConn sends FIN after the last byte before releasing the socket.
func closeConn(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	_ = conn.Close()
}
