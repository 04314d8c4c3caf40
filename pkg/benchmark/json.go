package benchmark

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Float is a float64 whose JSON form survives non-finite values. Finite
// values are plain JSON numbers; NaN and the infinities are the strings
// "NaN", "+Inf" and "-Inf". Decoding accepts either form.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q", s)
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Floats converts a slice for JSON encoding.
func Floats(vs []float64) []Float {
	if vs == nil {
		return nil
	}
	out := make([]Float, len(vs))
	for i, v := range vs {
		out[i] = Float(v)
	}
	return out
}

// Float64s is the inverse of Floats.
func Float64s(fs []Float) []float64 {
	if fs == nil {
		return nil
	}
	out := make([]float64, len(fs))
	for i, f := range fs {
		out[i] = float64(f)
	}
	return out
}

func (m Metric) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name  string `json:"name"`
		Value Float  `json:"value"`
	}{m.Name, Float(m.Value)})
}

func (m *Metric) UnmarshalJSON(b []byte) error {
	var aux struct {
		Name  string `json:"name"`
		Value Float  `json:"value"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	m.Name, m.Value = aux.Name, float64(aux.Value)
	return nil
}

func (v Values) MarshalJSON() ([]byte, error) {
	type plain Values
	aux := struct {
		plain
		Elapsed *Float `json:"elapsed,omitempty"`
	}{plain: plain(v)}
	if v.Elapsed != nil {
		e := Float(*v.Elapsed)
		aux.Elapsed = &e
	}
	return json.Marshal(aux)
}

func (v *Values) UnmarshalJSON(b []byte) error {
	type plain Values
	aux := struct {
		*plain
		Elapsed *Float `json:"elapsed,omitempty"`
	}{plain: (*plain)(v)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	v.Elapsed = nil
	if aux.Elapsed != nil {
		e := float64(*aux.Elapsed)
		v.Elapsed = &e
	}
	return nil
}

type valueSpecJSON struct {
	Name   string `json:"name"`
	Min    Float  `json:"min"`
	Max    Float  `json:"max"`
	Mean   Float  `json:"mean"`
	StdDev Float  `json:"stddev"`
}

func (s ValueSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueSpecJSON{s.Name, Float(s.Min), Float(s.Max), Float(s.Mean), Float(s.StdDev)})
}

func (s *ValueSpec) UnmarshalJSON(b []byte) error {
	var aux valueSpecJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*s = ValueSpec{
		Name:   aux.Name,
		Min:    float64(aux.Min),
		Max:    float64(aux.Max),
		Mean:   float64(aux.Mean),
		StdDev: float64(aux.StdDev),
	}
	return nil
}
