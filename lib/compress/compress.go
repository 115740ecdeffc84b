package compress

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// MaxDecodedLen bounds the size of a decompressed snapshot.
const MaxDecodedLen = 1 << 30

var ErrTooLarge = errors.New("decoded snapshot too large")

// Marshal encodes v as JSON and compresses the result with snappy. The output
// is deterministic for structs and slices, so two equal snapshots always
// produce equal bytes.
func Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode: %w", err)
	}
	return snappy.Encode(nil, b), nil
}

// Unmarshal reverses Marshal.
func Unmarshal(b []byte, v any) error {
	n, err := snappy.DecodedLen(b)
	if err != nil {
		return fmt.Errorf("failed to decompress: %w", err)
	}
	if n > MaxDecodedLen {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	b, err = snappy.Decode(nil, b)
	if err != nil {
		return fmt.Errorf("failed to decompress: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	return nil
}
