//go:build !unix

package reactor

func newBackend(*Reactor, int) (backend, error) {
	return nil, ErrUnsupported
}
