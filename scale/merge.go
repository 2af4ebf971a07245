package scale

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyMergeInput is returned when averaging receives no states.
var ErrEmptyMergeInput = errors.New("scale: average requires at least one state")

// AverageFrom sets d's scale and timing fields to the mean of states. Float
// fields use the arithmetic mean; tick counters are rounded half up. Nil
// entries are ignored. Modifiers are untouched and listeners are notified
// once. Immutable data validates the input and otherwise stays unchanged.
func (d *Data) AverageFrom(states ...*Data) error {
	var (
		scales []float64
		prevs  []float64
		froms  []float64
		tos    []float64
		ticks  []float64
		totals []float64
	)
	for _, s := range states {
		if s == nil {
			continue
		}
		scales = append(scales, float64(s.BaseScale()))
		prevs = append(prevs, float64(s.prevScale))
		froms = append(froms, float64(s.fromScale))
		tos = append(tos, float64(s.toScale))
		ticks = append(ticks, float64(s.scaleTicks))
		totals = append(totals, float64(s.totalTicks))
	}
	if len(scales) == 0 {
		return ErrEmptyMergeInput
	}
	if d == nil || d.frozen {
		return nil
	}

	d.scale = float32(stat.Mean(scales, nil))
	d.prevScale = float32(stat.Mean(prevs, nil))
	d.fromScale = float32(stat.Mean(froms, nil))
	d.toScale = float32(stat.Mean(tos, nil))
	d.scaleTicks = roundHalfUp(stat.Mean(ticks, nil))
	d.totalTicks = roundHalfUp(stat.Mean(totals, nil))
	d.OnUpdate()
	return nil
}

// Average builds new data of the first non-nil state's type and entity and
// averages states into it.
func Average(states ...*Data) (*Data, error) {
	for _, s := range states {
		if s == nil {
			continue
		}
		out := NewBuilder().Type(s.scaleType).Entity(s.entity).Build()
		if err := out.AverageFrom(states...); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrEmptyMergeInput
}

func roundHalfUp(v float64) int32 {
	return int32(math.Floor(v + 0.5))
}
