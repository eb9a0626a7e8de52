//go:build unix

package reactor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// bufferHandler writes payload and records how the registration ended.
type bufferHandler struct {
	payload []byte
	off     int
	yields  atomic.Int64

	closed chan error
}

func newBufferHandler(payload []byte) *bufferHandler {
	return &bufferHandler{payload: payload, closed: make(chan error, 1)}
}

func (h *bufferHandler) OnWritable(fd int) (bool, error) {
	for h.off < len(h.payload) {
		n, err := Write(fd, h.payload[h.off:])
		if errors.Is(err, ErrWouldBlock) {
			h.yields.Add(1)
			return false, nil
		}
		if err != nil {
			return false, err
		}
		h.off += n
	}
	return true, nil
}

func (h *bufferHandler) OnClose(err error) { h.closed <- err }

// tcpPair returns the server and client ends of a loopback connection.
func tcpPair(t *testing.T) (*net.TCPConn, *net.TCPConn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}

	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return server.(*net.TCPConn), client.(*net.TCPConn)
}

// stallBytes is far larger than a loopback connection's send and receive
// buffers can hold even after autotuning, so a client that reads nothing
// always leaves the writer parked.
const stallBytes = 64 << 20

// waitYield blocks until h has hit a full socket buffer at least once.
func waitYield(t *testing.T, h *bufferHandler) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.yields.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("write loop never yielded on a full socket buffer")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newTestReactor(t *testing.T, loops int) *Reactor {
	t.Helper()
	r, err := New(loops, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func waitClosed(t *testing.T, h *bufferHandler, timeout time.Duration) error {
	t.Helper()
	select {
	case err := <-h.closed:
		return err
	case <-time.After(timeout):
		t.Fatalf("OnClose not called within %s", timeout)
		return nil
	}
}

func TestReactor_WritesWholePayload(t *testing.T) {
	for _, loops := range []int{1, 4} {
		t.Run(fmt.Sprintf("loops=%d", loops), func(t *testing.T) {
			r := newTestReactor(t, loops)
			server, client := tcpPair(t)

			// Large enough to overflow loopback socket buffers.
			payload := bytes.Repeat([]byte("0123456789"), 800_000)
			h := newBufferHandler(payload)
			if err := r.Register(server, h); err != nil {
				t.Fatalf("Register: %v", err)
			}

			got := make(chan []byte, 1)
			go func() {
				buf := make([]byte, 0, len(payload))
				tmp := make([]byte, 64*1024)
				for len(buf) < len(payload) {
					n, err := client.Read(tmp)
					buf = append(buf, tmp[:n]...)
					if err != nil {
						break
					}
				}
				got <- buf
			}()

			if err := waitClosed(t, h, 10*time.Second); err != nil {
				t.Fatalf("OnClose error = %v, want nil", err)
			}
			if b := <-got; !bytes.Equal(b, payload) {
				t.Fatalf("client received %d bytes, want %d identical bytes", len(b), len(payload))
			}
			if r.Len() != 0 {
				t.Errorf("expected no live registrations, got %d", r.Len())
			}
		})
	}
}

func TestReactor_SlowReaderYields(t *testing.T) {
	r := newTestReactor(t, 1)
	server, client := tcpPair(t)

	payload := bytes.Repeat([]byte("7"), stallBytes)
	h := newBufferHandler(payload)
	if err := r.Register(server, h); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Nothing is read yet, so the handler must have parked on a full buffer.
	waitYield(t, h)
	if r.Len() != 1 {
		t.Fatalf("expected 1 live registration while the client stalls, got %d", r.Len())
	}

	n, err := io.Copy(io.Discard, io.LimitReader(client, int64(len(payload))))
	if err != nil || n != int64(len(payload)) {
		t.Fatalf("client read %d bytes, err %v", n, err)
	}
	if err := waitClosed(t, h, 5*time.Second); err != nil {
		t.Fatalf("OnClose error = %v, want nil", err)
	}
}

func TestReactor_PeerResetAborts(t *testing.T) {
	r := newTestReactor(t, 1)
	server, client := tcpPair(t)

	h := newBufferHandler(bytes.Repeat([]byte("1"), stallBytes))
	if err := r.Register(server, h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitYield(t, h)

	// Linger 0 turns Close into an RST.
	_ = client.SetLinger(0)
	_ = client.Close()

	if err := waitClosed(t, h, 5*time.Second); err == nil {
		t.Fatal("expected an error after the peer reset the connection")
	}
}

func TestReactor_CloseAbortsPending(t *testing.T) {
	r, err := New(2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	server, _ := tcpPair(t)

	h := newBufferHandler(bytes.Repeat([]byte("2"), stallBytes))
	if err := r.Register(server, h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitYield(t, h)

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := waitClosed(t, h, 2*time.Second); !errors.Is(err, ErrClosed) {
		t.Fatalf("OnClose error = %v, want ErrClosed", err)
	}

	other, _ := tcpPair(t)
	if err := r.Register(other, newBufferHandler(nil)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Register after Close = %v, want ErrClosed", err)
	}
}

func TestReactor_Drain(t *testing.T) {
	r := newTestReactor(t, 1)
	server, client := tcpPair(t)

	payload := bytes.Repeat([]byte("3"), stallBytes)
	h := newBufferHandler(payload)
	if err := r.Register(server, h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitYield(t, h)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Drain with stalled client = %v, want deadline exceeded", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(io.Discard, io.LimitReader(client, int64(len(payload))))
	}()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := r.Drain(ctx2); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	wg.Wait()
}

type panicHandler struct{ closed chan error }

func (h *panicHandler) OnWritable(int) (bool, error) {
	panic("boom")
}

func (h *panicHandler) OnClose(err error) {
	h.closed <- err
}

func TestReactor_HandlerPanicIsContained(t *testing.T) {
	r := newTestReactor(t, 1)
	server, _ := tcpPair(t)

	h := &panicHandler{closed: make(chan error, 1)}
	if err := r.Register(server, h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	select {
	case err := <-h.closed:
		if err == nil {
			t.Fatal("expected an error for a panicking handler")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called after panic")
	}

	// The loop keeps serving other sockets.
	s2, c2 := tcpPair(t)
	h2 := newBufferHandler([]byte("still alive"))
	if err := r.Register(s2, h2); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := waitClosed(t, h2, 2*time.Second); err != nil {
		t.Fatalf("OnClose error = %v", err)
	}
	buf := make([]byte, len("still alive"))
	if _, err := io.ReadFull(c2, buf); err != nil || string(buf) != "still alive" {
		t.Fatalf("read %q, err %v", buf, err)
	}
}
