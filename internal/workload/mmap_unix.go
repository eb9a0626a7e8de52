//go:build unix

package workload

import (
	"os"

	"golang.org/x/sys/unix"
)

// Mapping is a read-only view of a generated file.
type Mapping struct {
	Data   []byte
	mapped bool
}

// Close releases the mapping. Data must not be used afterwards.
func (m *Mapping) Close() error {
	if !m.mapped {
		return nil
	}
	m.mapped = false
	data := m.Data
	m.Data = nil
	return unix.Munmap(data)
}

func mapFile(path string, size int) (*Mapping, error) {
	if size == 0 {
		// mmap rejects zero-length mappings
		return &Mapping{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &Mapping{Data: data, mapped: true}, nil
}
