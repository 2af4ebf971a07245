package scale

import "github.com/tanema/gween/ease"

// Easing wraps an easing curve so it can be registered and looked up by
// identity.
type Easing struct {
	fn ease.TweenFunc
}

// NewEasing wraps fn. A nil fn behaves as linear.
func NewEasing(fn ease.TweenFunc) *Easing {
	if fn == nil {
		fn = ease.Linear
	}
	return &Easing{fn: fn}
}

// Func returns the underlying tween function.
func (e *Easing) Func() ease.TweenFunc {
	if e == nil || e.fn == nil {
		return ease.Linear
	}
	return e.fn
}

// Apply maps progress in [0,1] through the curve.
func (e *Easing) Apply(progress float32) float32 {
	return e.Func()(progress, 0, 1, 1)
}

// LinearEasing is the default entry of the easing family.
var LinearEasing = NewEasing(ease.Linear)

// EasingFuncs names the tween functions selectable from configuration.
var EasingFuncs = map[string]ease.TweenFunc{
	"linear":         ease.Linear,
	"quadratic_in":   ease.InQuad,
	"quadratic_out":  ease.OutQuad,
	"quadratic_both": ease.InOutQuad,
	"cubic_in":       ease.InCubic,
	"cubic_out":      ease.OutCubic,
	"cubic_both":     ease.InOutCubic,
	"sine_in":        ease.InSine,
	"sine_out":       ease.OutSine,
	"sine_both":      ease.InOutSine,
	"bounce_out":     ease.OutBounce,
	"elastic_out":    ease.OutElastic,
	"back_in":        ease.InBack,
}
