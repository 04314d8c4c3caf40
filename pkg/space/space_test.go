package space

import (
	"errors"
	"reflect"
	"testing"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset"
)

func mustNew(t *testing.T, cards ...int) *Space {
	t.Helper()
	names := make([]string, len(cards))
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	s, err := New(names, cards)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func fcnetSpace(t *testing.T) *Space {
	t.Helper()
	s, err := FromDataset([]dataset.DimensionInfo{
		{Name: "activation_fn_1", Values: []float64{0, 1}, Labels: []string{"tanh", "relu"}},
		{Name: "activation_fn_2", Values: []float64{0, 1}, Labels: []string{"tanh", "relu"}},
		{Name: "batch_size", Values: []float64{8, 16, 32, 64}},
		{Name: "dropout_1", Values: []float64{0.0, 0.3, 0.6}},
		{Name: "dropout_2", Values: []float64{0.0, 0.3, 0.6}},
		{Name: "init_lr", Values: []float64{5e-4, 1e-3, 5e-3, 1e-2, 5e-2, 1e-1}},
		{Name: "lr_schedule", Values: []float64{0, 1}, Labels: []string{"cosine", "const"}},
		{Name: "n_units_1", Values: []float64{16, 32, 64, 128, 256, 512}},
		{Name: "n_units_2", Values: []float64{16, 32, 64, 128, 256, 512}},
	})
	if err != nil {
		t.Fatalf("FromDataset error: %v", err)
	}
	return s
}

func TestValidate(t *testing.T) {
	s := mustNew(t, 3, 3, 2)

	tests := []struct {
		name    string
		v       []int
		wantErr bool
	}{
		{"valid", []int{2, 0, 1}, false},
		{"too short", []int{0, 1}, true},
		{"nine components", []int{0, 1, 2, 0, 1, 2, 0, 4, 5}, true},
		{"empty", nil, true},
		{"negative", []int{0, -1, 0}, true},
		{"past cardinality", []int{0, 0, 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.v)
			if tt.wantErr && !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEncodeMixedRadix(t *testing.T) {
	s := mustNew(t, 3, 3, 2)

	tests := []struct {
		v    []int
		want int
	}{
		{[]int{0, 0, 0}, 0},
		{[]int{0, 0, 1}, 1},
		{[]int{0, 1, 0}, 2},
		{[]int{1, 0, 0}, 6},
		{[]int{2, 2, 1}, 17},
	}
	for _, tt := range tests {
		got, err := s.Encode(tt.v)
		if err != nil {
			t.Fatalf("Encode(%v) error: %v", tt.v, err)
		}
		if got != tt.want {
			t.Errorf("Encode(%v) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestEncodeIsBijective(t *testing.T) {
	s := mustNew(t, 3, 3, 2)
	seen := make(map[int][]int)

	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			for c := 0; c < 2; c++ {
				v := []int{a, b, c}
				key, err := s.Encode(v)
				if err != nil {
					t.Fatalf("Encode error: %v", err)
				}
				if again, _ := s.Encode([]int{a, b, c}); again != key {
					t.Fatalf("Encode not pure: %d vs %d", key, again)
				}
				if prev, ok := seen[key]; ok {
					t.Fatalf("collision: %v and %v -> %d", prev, v, key)
				}
				seen[key] = v

				back, err := s.Decode(key)
				if err != nil {
					t.Fatalf("Decode error: %v", err)
				}
				if !reflect.DeepEqual(back, v) {
					t.Fatalf("Decode(Encode(%v)) = %v", v, back)
				}
			}
		}
	}
	if len(seen) != s.Size() {
		t.Fatalf("expected %d keys, got %d", s.Size(), len(seen))
	}
}

func TestFCNetLayout(t *testing.T) {
	s := fcnetSpace(t)
	if s.Len() != 9 || s.Size() != 62208 {
		t.Fatalf("unexpected fcnet space len=%d size=%d", s.Len(), s.Size())
	}

	v := []int{0, 1, 2, 0, 1, 2, 0, 4, 5}
	key, err := s.Encode(v)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	back, err := s.Decode(key)
	if err != nil || !reflect.DeepEqual(back, v) {
		t.Fatalf("Decode(%d) = %v, %v", key, back, err)
	}

	desc, err := s.Describe(v)
	if err != nil {
		t.Fatalf("Describe error: %v", err)
	}
	if desc["activation_fn_2"] != "relu" || desc["batch_size"] != 32.0 || desc["n_units_2"] != 512.0 {
		t.Fatalf("unexpected description %v", desc)
	}
}

func TestDecodeRejectsOutOfRange(t *testing.T) {
	s := mustNew(t, 2, 2)
	for _, key := range []int{-1, 4} {
		if _, err := s.Decode(key); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Decode(%d): expected ErrInvalidParameter, got %v", key, err)
		}
	}
}

func TestRestrictMapsBackToDatasetKeys(t *testing.T) {
	full := fcnetSpace(t)
	view, err := full.Restrict(map[string][]int{
		"batch_size": {3, 1},
		"init_lr":    {0},
	})
	if err != nil {
		t.Fatalf("Restrict error: %v", err)
	}
	if got := view.Cardinalities(); got[2] != 2 || got[5] != 1 {
		t.Fatalf("unexpected cardinalities %v", got)
	}
	if view.Size() != full.Size()/4*2/6 {
		t.Fatalf("unexpected restricted size %d", view.Size())
	}

	// caller batch_size 0 -> dataset 3 (64), caller 1 -> dataset 1 (16)
	viewKey, err := view.Encode([]int{1, 0, 0, 2, 1, 0, 1, 3, 3})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	fullKey, err := full.Encode([]int{1, 0, 3, 2, 1, 0, 1, 3, 3})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if viewKey != fullKey {
		t.Fatalf("restricted key %d != dataset key %d", viewKey, fullKey)
	}
	back, err := view.Decode(viewKey)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if !reflect.DeepEqual(back, []int{1, 0, 0, 2, 1, 0, 1, 3, 3}) {
		t.Fatalf("unexpected decode %v", back)
	}

	hidden, _ := full.Encode([]int{0, 0, 0, 0, 0, 0, 0, 0, 0}) // batch_size 8 is not exposed
	if _, err := view.Decode(hidden); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected hidden key to be rejected, got %v", err)
	}

	if err := view.Validate([]int{0, 0, 2, 0, 0, 0, 0, 0, 0}); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("restricted view must reject index 2 on batch_size, got %v", err)
	}

	d := view.Dimensions()[2]
	if d.Values[0] != 64 || d.Values[1] != 16 {
		t.Fatalf("unexpected restricted values %v", d.Values)
	}
}

func TestRestrictKeepsLabels(t *testing.T) {
	view, err := fcnetSpace(t).Restrict(map[string][]int{"lr_schedule": {1}})
	if err != nil {
		t.Fatalf("Restrict error: %v", err)
	}
	if got := view.Dimensions()[6].Choice(0); got != "const" {
		t.Fatalf("expected const, got %v", got)
	}
}

func TestRestrictErrors(t *testing.T) {
	s := mustNew(t, 3, 2)
	tests := []struct {
		name    string
		allowed map[string][]int
	}{
		{"unknown dimension", map[string][]int{"z": {0}}},
		{"empty list", map[string][]int{"a": {}}},
		{"out of range", map[string][]int{"a": {3}}},
		{"duplicate", map[string][]int{"a": {1, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Restrict(tt.allowed); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New([]string{"a"}, []int{1, 2}); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := New([]string{"a"}, []int{0}); err == nil {
		t.Error("expected non-positive cardinality error")
	}
	if _, err := FromDataset(nil); err == nil {
		t.Error("expected error for empty space")
	}
}
