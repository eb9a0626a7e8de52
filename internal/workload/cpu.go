package workload

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/rand/v2"
)

const (
	seedSize = 256

	// DigestLength is the length of every string returned by CPU.Process.
	DigestLength = sha256.Size * 2
)

// CPU burns processor time by hashing.
type CPU struct{}

// NewCPU returns a CPU generator.
func NewCPU() *CPU {
	return &CPU{}
}

// Process seeds a 256-byte buffer with random bytes, hashes it iterations
// times in sequence, hashes the result once more and returns the hex digest.
//
// The cost grows linearly with iterations and the call never yields.
// The seed is random, so two calls with the same argument return different
// digests of identical length.
func (c *CPU) Process(iterations int) string {
	value := make([]byte, seedSize)
	for i := 0; i < seedSize; i += 8 {
		binary.LittleEndian.PutUint64(value[i:], rand.Uint64()) // #nosec G404 -- the seed only needs to vary
	}

	for range max(iterations, 0) {
		sum := sha256.Sum256(value)
		value = sum[:]
	}

	digest := sha256.Sum256(value)
	return hex.EncodeToString(digest[:])
}
