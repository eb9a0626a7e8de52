//go:build !unix

package workload

import "os"

// Mapping is a read-only view of a generated file.
// Without mmap the file is read into memory.
type Mapping struct {
	Data []byte
}

// Close releases the view.
func (m *Mapping) Close() error {
	m.Data = nil
	return nil
}

func mapFile(path string, _ int) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Mapping{Data: data}, nil
}
