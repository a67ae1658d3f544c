package models

import (
	"encoding/json"
	"math"
)

// Accumulator tracks min, max, sum and count of a daily series.
// An empty accumulator has Min = +Inf and Max = -Inf.
type Accumulator struct {
	Min   float64
	Max   float64
	Sum   float64
	Count int
}

// NewAccumulator returns an accumulator with sentinel extrema.
func NewAccumulator() Accumulator {
	return Accumulator{Min: math.Inf(1), Max: math.Inf(-1)}
}

// Add folds v into the accumulator.
func (a *Accumulator) Add(v float64) {
	a.Min = Round(math.Min(a.Min, v), ExtremaDecimals)
	a.Max = Round(math.Max(a.Max, v), ExtremaDecimals)
	a.Sum = Round(a.Sum+v, SumDecimals)
	a.Count++
}

// Mean returns Sum/Count, or 0 when nothing was added.
func (a Accumulator) Mean() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.Sum / float64(a.Count)
}

// Empty reports whether no value has been added today.
func (a Accumulator) Empty() bool {
	return a.Count == 0
}

// accumulatorJSON is the stored form. JSON has no infinity, so the sentinel
// extrema are written as null.
type accumulatorJSON struct {
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Sum   float64  `json:"sum"`
	Count int      `json:"count"`
}

// MarshalJSON implements json.Marshaler.
func (a Accumulator) MarshalJSON() ([]byte, error) {
	out := accumulatorJSON{Sum: a.Sum, Count: a.Count}
	if !math.IsInf(a.Min, 0) && !math.IsNaN(a.Min) {
		lo := a.Min
		out.Min = &lo
	}
	if !math.IsInf(a.Max, 0) && !math.IsNaN(a.Max) {
		hi := a.Max
		out.Max = &hi
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Keys missing from data keep
// their default values.
func (a *Accumulator) UnmarshalJSON(data []byte) error {
	in := accumulatorJSON{Sum: a.Sum, Count: a.Count}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	next := NewAccumulator()
	if in.Min != nil {
		next.Min = *in.Min
	}
	if in.Max != nil {
		next.Max = *in.Max
	}
	next.Sum = in.Sum
	next.Count = in.Count
	if next.Count < 0 {
		next.Count = 0
	}
	*a = next
	return nil
}
