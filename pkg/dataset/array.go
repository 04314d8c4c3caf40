package dataset

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Array is a dense, row-major float64 array.
type Array struct {
	Shape []int
	Data  []float64
}

// NewArray allocates a zeroed array with the given shape.
func NewArray(shape ...int) (*Array, error) {
	n, err := shapeSize(shape)
	if err != nil {
		return nil, err
	}
	return &Array{Shape: append([]int(nil), shape...), Data: make([]float64, n)}, nil
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.Data)
}

// Rank returns the number of axes.
func (a *Array) Rank() int {
	return len(a.Shape)
}

// Offset converts a multi-index into a flat offset into Data.
func (a *Array) Offset(index ...int) (int, error) {
	if len(index) != len(a.Shape) {
		return 0, fmt.Errorf("index rank %d does not match array rank %d", len(index), len(a.Shape))
	}
	off := 0
	for axis, i := range index {
		if i < 0 || i >= a.Shape[axis] {
			return 0, fmt.Errorf("index %d out of range [0, %d) on axis %d", i, a.Shape[axis], axis)
		}
		off = off*a.Shape[axis] + i
	}
	return off, nil
}

// At returns the element at the given multi-index.
func (a *Array) At(index ...int) (float64, error) {
	off, err := a.Offset(index...)
	if err != nil {
		return 0, err
	}
	return a.Data[off], nil
}

func (a *Array) validate() error {
	n, err := shapeSize(a.Shape)
	if err != nil {
		return err
	}
	if n != len(a.Data) {
		return fmt.Errorf("shape %v needs %d elements, have %d", a.Shape, n, len(a.Data))
	}
	return nil
}

func shapeSize(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("array shape cannot be empty")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("array dimensions must be positive, got %v", shape)
		}
		n *= d
	}
	return n, nil
}

// encodeShape and encodeData define the on-disk cell format: shape as a JSON
// int list, data as little-endian IEEE-754 float64.
func encodeShape(shape []int) (string, error) {
	b, err := json.Marshal(shape)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeShape(s string) ([]int, error) {
	var shape []int
	if err := json.Unmarshal([]byte(s), &shape); err != nil {
		return nil, fmt.Errorf("decode shape %q: %w", s, err)
	}
	return shape, nil
}

func encodeData(data []float64) []byte {
	buf := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeData(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("data blob length %d is not a multiple of 8", len(buf))
	}
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return out, nil
}
