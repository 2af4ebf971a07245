package trace

import (
	"fmt"

	"github.com/MerchantPug/Pehkui/scale"
)

// Transition retargets d to target and records the initial state plus ticks
// further steps. With ticks <= 0 it runs until the transition settles and
// records one more sample.
func Transition(rec *Recorder, d *scale.Data, entity, scaleType string, target float32, ticks int) error {
	if rec == nil || d == nil {
		return fmt.Errorf("trace: recorder and data are required")
	}
	d.SetTargetScale(target)
	if err := rec.Record(0, entity, scaleType, d); err != nil {
		return err
	}
	if ticks <= 0 {
		ticks = int(max(d.ScaleTickDelay(), 0)) + 1
	}
	for tick := 1; tick <= ticks; tick++ {
		d.Tick()
		if err := rec.Record(uint64(tick), entity, scaleType, d); err != nil {
			return err
		}
	}
	return nil
}
