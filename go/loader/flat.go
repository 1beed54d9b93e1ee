package loader

import "github.com/lunixbochs/ukern/go/models/cpu"

// LoadFlat places a raw code blob at FlatBase and enters at its first byte.
// The whole image is mapped read-write-execute.
func LoadFlat(p []byte) (*Image, error) {
	if len(p) == 0 {
		return nil, ErrEmpty
	}
	data := make([]byte, len(p))
	copy(data, p)
	return &Image{
		Entry: FlatBase,
		Segments: []Segment{{
			Addr: FlatBase,
			Size: uint64(len(p)),
			Prot: cpu.PROT_ALL,
			Data: data,
		}},
	}, nil
}
