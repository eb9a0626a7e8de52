//go:build unix

package handler

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/utkarsh5026/poolserve/internal/reactor"
	"github.com/utkarsh5026/poolserve/pool"
)

func newAsyncServer(t *testing.T, opts ...Option) (*httptest.Server, pool.Pool, *recordingObserver) {
	t.Helper()

	p, err := pool.New(pool.WithCapacity(2), pool.WithThreadMode(pool.ThreadFibers))
	require.NoError(t, err)

	r, err := reactor.New(1, nil)
	require.NoError(t, err)

	obs := &recordingObserver{}
	h := NewAsync(testDefaults(), newCache(t), p, r, append(opts, WithObserver(obs))...)
	srv := httptest.NewServer(h)

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
		_ = r.Drain(ctx)
		_ = r.Close()
	})
	return srv, p, obs
}

func TestAsync_ServesDefaults(t *testing.T) {
	srv, _, obs := newAsyncServer(t)

	res, err := http.Get(srv.URL + "/async")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "text/plain; charset=utf-8", res.Header.Get("Content-Type"))
	require.Regexp(t, `^[0-9a-f]{64}$`, res.Header.Get("X-Request-ID"))
	require.Regexp(t, `^\d+ms$`, res.Header.Get("X-Latency"))
	require.True(t, res.Close, "async responses close the connection")
	require.EqualValues(t, 2048, res.ContentLength)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Len(t, body, 2048)
	require.True(t, allDigits(body))

	require.Eventually(t, func() bool {
		o, ok := obs.last()
		return ok && o.outcome == OutcomeCompleted && o.bytes > 2048
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAsync_IgnoresOverrides(t *testing.T) {
	srv, _, _ := newAsyncServer(t)

	res, err := http.Get(srv.URL + "/async?fileLength=5&cpuIterations=-1")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Len(t, body, 2048)
}

func TestAsync_RejectedWhenPoolClosed(t *testing.T) {
	srv, p, obs := newAsyncServer(t)
	require.NoError(t, p.Shutdown(context.Background()))

	res, err := http.Get(srv.URL + "/async")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	o, _ := obs.last()
	require.Equal(t, OutcomeRejected, o.outcome)
}

func TestAsync_ClientGoneMidTransfer(t *testing.T) {
	srv, _, obs := newAsyncServer(t)

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	require.NoError(t, err)

	_, err = io.WriteString(conn, "GET /async HTTP/1.1\r\nHost: test\r\n\r\n")
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "HTTP/1.1 200 OK\r\n", line)

	require.NoError(t, conn.(*net.TCPConn).SetLinger(0))
	require.NoError(t, conn.Close())

	// Small responses may already be fully written; either way the request ends.
	require.Eventually(t, func() bool {
		o, ok := obs.last()
		return ok && (o.outcome == OutcomeCompleted || o.outcome == OutcomeAborted)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResponseHead(t *testing.T) {
	head := responseHead(10, "abc", "0ms")

	res, err := http.ReadResponse(bufio.NewReader(io.MultiReader(
		bytes.NewReader(head), strings.NewReader("0123456789"),
	)), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.EqualValues(t, 10, res.ContentLength)
	require.Equal(t, "abc", res.Header.Get("X-Request-ID"))
	require.Equal(t, "0ms", res.Header.Get("X-Latency"))
	require.True(t, res.Close)
}
