package dataset

import (
	"context"
	"math"
	"testing"
)

func TestArrayOffsetRowMajor(t *testing.T) {
	a, err := NewArray(2, 3, 4)
	if err != nil {
		t.Fatalf("NewArray error: %v", err)
	}
	for i := range a.Data {
		a.Data[i] = float64(i)
	}

	got, err := a.At(1, 2, 3)
	if err != nil {
		t.Fatalf("At error: %v", err)
	}
	if got != 23 {
		t.Fatalf("At(1,2,3) = %v, want 23", got)
	}

	if _, err := a.At(2, 0, 0); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if _, err := a.At(0, 0); err == nil {
		t.Fatal("expected rank mismatch error")
	}
}

func TestNewArrayRejectsBadShape(t *testing.T) {
	for _, shape := range [][]int{{}, {0}, {3, -1}} {
		if _, err := NewArray(shape...); err == nil {
			t.Errorf("NewArray(%v) expected error", shape)
		}
	}
}

func TestDataCodec(t *testing.T) {
	in := []float64{0, -1.5, math.Pi, math.Inf(1), 1e-300}
	out, err := decodeData(encodeData(in))
	if err != nil {
		t.Fatalf("decodeData error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d values, got %d", len(in), len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("value %d: got %v, want %v", i, out[i], in[i])
		}
	}

	if _, err := decodeData([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}

func TestShapeCodec(t *testing.T) {
	s, err := encodeShape([]int{62208, 4, 100})
	if err != nil {
		t.Fatalf("encodeShape error: %v", err)
	}
	if s != "[62208,4,100]" {
		t.Fatalf("unexpected encoded shape %s", s)
	}
	if _, err := decodeShape("not json"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMemoryContainer(t *testing.T) {
	c := NewMemoryContainer()
	if err := c.PutArray("metric/x", &Array{Shape: []int{2}, Data: []float64{1, 2}}); err != nil {
		t.Fatalf("PutArray error: %v", err)
	}
	if err := c.PutArray("bad", &Array{Shape: []int{3}, Data: []float64{1}}); err == nil {
		t.Fatal("expected shape/data mismatch error")
	}
	if err := c.SetAttr("name", "demo"); err != nil {
		t.Fatalf("SetAttr error: %v", err)
	}

	if names := c.ArrayNames(); len(names) != 1 || names[0] != "metric/x" {
		t.Fatalf("unexpected names %v", names)
	}
	if v, ok := c.Attr("name"); !ok || v != "demo" {
		t.Fatalf("unexpected attr %q %v", v, ok)
	}
	if _, err := c.Array(context.Background(), "missing"); err == nil {
		t.Fatal("expected ErrArrayNotFound")
	}
}
