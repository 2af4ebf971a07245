// Package trace records per-tick scale samples as CSV. Each row carries an
// eased preview of the running transition so curves can be compared against
// the linear values the engine actually produces.
package trace

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/tanema/gween"

	"github.com/MerchantPug/Pehkui/scale"
)

// Sample is one CSV row.
type Sample struct {
	Tick      uint64  `csv:"tick"`
	Entity    string  `csv:"entity"`
	ScaleType string  `csv:"scale_type"`
	BaseScale float32 `csv:"base_scale"`
	Scale     float32 `csv:"scale"`
	Target    float32 `csv:"target"`
	Progress  float32 `csv:"progress"`
	Eased     float32 `csv:"eased_preview"`
}

// Recorder writes samples to w, emitting the header with the first row.
type Recorder struct {
	w             io.Writer
	easing        *scale.Easing
	headerWritten bool

	tween *gween.Tween
	from  float32
	to    float32
	delay int32
}

// NewRecorder returns a recorder previewing transitions with easing. A nil
// easing previews linearly.
func NewRecorder(w io.Writer, easing *scale.Easing) *Recorder {
	return &Recorder{w: w, easing: easing}
}

// Sample captures d without writing it.
func (r *Recorder) Sample(tick uint64, entity, scaleType string, d *scale.Data) Sample {
	return Sample{
		Tick:      tick,
		Entity:    entity,
		ScaleType: scaleType,
		BaseScale: d.BaseScale(),
		Scale:     d.Scale(),
		Target:    d.TargetScale(),
		Progress:  d.Progress(),
		Eased:     r.preview(d),
	}
}

// Record writes one row for d.
func (r *Recorder) Record(tick uint64, entity, scaleType string, d *scale.Data) error {
	return r.Write(r.Sample(tick, entity, scaleType, d))
}

// Write appends samples.
func (r *Recorder) Write(samples ...Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if !r.headerWritten {
		if err := gocsv.Marshal(samples, r.w); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(samples, r.w); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}

// preview follows the transition of d along the recorder's easing. A new
// tween starts whenever the transition endpoints or length change.
func (r *Recorder) preview(d *scale.Data) float32 {
	if !d.Transitioning() || d.ScaleTickDelay() <= 0 {
		r.tween = nil
		return d.BaseScale()
	}
	from, to, delay := d.InitialScale(), d.TargetScale(), d.ScaleTickDelay()
	if r.tween == nil || from != r.from || to != r.to || delay != r.delay {
		r.tween = gween.New(from, to, float32(delay), r.easing.Func())
		r.from, r.to, r.delay = from, to, delay
	}
	value, _ := r.tween.Set(float32(d.ScaleTicks()))
	return value
}
