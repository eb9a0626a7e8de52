// Package reactor drives non-blocking writes on hijacked connections.
//
// A Reactor watches registered sockets for writability and calls the
// registration's Handler whenever the kernel reports room in the send
// buffer. The handler writes until the socket would block and returns; the
// reactor parks the socket until the next edge. No goroutine is held per
// connection while a slow client drains its buffer.
//
// On Linux the reactor runs one or more edge-triggered epoll loops, with
// sockets assigned to a loop by fd modulo. Other unix systems fall back to
// the Go runtime poller through syscall.RawConn. Everywhere else New
// returns ErrUnsupported.
//
// Callbacks for a single socket are strictly sequential. OnClose is called
// exactly once per successful Register, after which the reactor never
// touches the socket again.
package reactor
