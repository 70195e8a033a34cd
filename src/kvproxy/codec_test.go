package kvproxy

import (
	"bytes"
	"testing"
)

func TestEncodeValueCanonical(t *testing.T) {
	value := map[string]interface{}{"b": 2, "a": 1, "c": 3}

	first, err := encodeValue(value)
	if err != nil {
		t.Fatal(err)
	}

	// Map iteration order is randomised; canonical encoding must not be.
	for i := 0; i < 10; i++ {
		again, err := encodeValue(value)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("canonical encoding should be stable: %s vs %s", first, again)
		}
	}
}

func TestDecodeValueNormalizes(t *testing.T) {
	v, err := decodeValue([]byte("3"))
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := v.(int); !ok || got != 3 {
		t.Fatalf("integral numbers should decode to int, not %T(%v)", v, v)
	}

	v, err = decodeValue([]byte("3.5"))
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := v.(float64); !ok || got != 3.5 {
		t.Fatalf("fractional numbers should stay float64, not %T(%v)", v, v)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	encoded, err := encodeValue(42)
	if err != nil {
		t.Fatal(err)
	}

	v, err := decodeValue(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := v.(int); !ok || got != 42 {
		t.Fatalf("round trip should yield int 42, not %T(%v)", v, v)
	}
}

func TestNormalizeNumber(t *testing.T) {
	if v := normalizeNumber(float64(7)); v != 7 {
		t.Fatalf("integral float64 should normalize to int, not %T(%v)", v, v)
	}
	if v := normalizeNumber(2.5); v != 2.5 {
		t.Fatalf("fractional float64 should pass through, not %T(%v)", v, v)
	}
	if v := normalizeNumber(int64(7)); v != 7 {
		t.Fatalf("int64 should normalize to int, not %T(%v)", v, v)
	}
	if v := normalizeNumber(uint64(7)); v != 7 {
		t.Fatalf("uint64 should normalize to int, not %T(%v)", v, v)
	}
	if v := normalizeNumber("hello"); v != "hello" {
		t.Fatalf("non-numeric values should pass through, not %T(%v)", v, v)
	}
}
