//go:build !unix

package reactor

// Write is not available without a unix write(2).
func Write(int, []byte) (int, error) {
	return 0, ErrUnsupported
}
