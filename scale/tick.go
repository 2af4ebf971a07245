package scale

// Tick advances the transition by one simulation step.
//
// While the base scale differs from the target it moves by a constant
// increment derived from the original span (target - initial) / delay. Once
// the elapsed ticks reach the delay it snaps onto the target exactly, which
// absorbs accumulated float drift. A delay of zero or less snaps at once.
// When the base already equals the target the previous value is settled so
// interpolated reads stop moving.
func (d *Data) Tick() {
	if d == nil || d.frozen {
		return
	}
	current := d.BaseScale()
	target := d.toScale
	delay := d.totalTicks

	if current == target {
		if d.prevScale != current {
			d.prevScale = current
		}
		return
	}

	d.prevScale = current
	if d.scaleTicks >= delay || delay <= 0 {
		d.fromScale = target
		d.scaleTicks = 0
		d.SetBaseScale(target)
		return
	}
	d.scaleTicks++
	next := current + (target-d.fromScale)/float32(delay)
	d.SetBaseScale(next)
}

// Transitioning reports whether the base scale has not reached the target.
func (d *Data) Transitioning() bool {
	return d != nil && d.BaseScale() != d.toScale
}

// Progress returns the fraction of the transition completed, in [0,1].
func (d *Data) Progress() float32 {
	if d == nil || d.totalTicks <= 0 || !d.Transitioning() {
		return 1
	}
	p := float32(d.scaleTicks) / float32(d.totalTicks)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}
