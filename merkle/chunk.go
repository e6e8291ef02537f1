package merkle

import (
	"errors"
	"fmt"
)

// DefaultChunkSize is the chunk size used when a Builder does not set one.
const DefaultChunkSize = 4 << 20

// ErrInvalidChunkSize is returned for non-positive chunk sizes.
var ErrInvalidChunkSize = errors.New("merkle: chunk size must be positive")

// SplitChunks splits data into ceil(len(data)/size) ordered chunks, all of
// length size except possibly the last. Empty input yields zero chunks.
//
// The returned slices alias data; concatenating them in order reproduces the
// input exactly.
func SplitChunks(data []byte, size int) ([][]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}
	if len(data) == 0 {
		return nil, nil
	}
	out := make([][]byte, 0, (len(data)+size-1)/size)
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[off:end])
	}
	return out, nil
}
