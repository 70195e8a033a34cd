package kvproxy

import (
	"bytes"
	"math"

	"github.com/ugorji/go/codec"
)

// encodeValue renders a value in canonical JSON. Both local backends store
// values in this encoding, which makes compare-and-swap a byte comparison:
// equal values always encode to equal bytes.
func encodeValue(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// decodeValue parses a stored canonical-JSON value.
func decodeValue(data []byte) (interface{}, error) {
	var v interface{}
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoderBytes(data, jh)

	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	return normalizeNumber(v), nil
}

// normalizeNumber collapses the decoder's numeric types to int, which is
// what the harness workloads traffic in. Non-numeric values pass through.
func normalizeNumber(v interface{}) interface{} {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	default:
		return v
	}
}
