// Package sim holds the scale commands staged between the transport and
// the simulation loop.
package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/MerchantPug/Pehkui/command"
	"github.com/MerchantPug/Pehkui/registry"
	"github.com/MerchantPug/Pehkui/scale"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandScale    CommandType = "scale"
	CommandDelay    CommandType = "delay"
	CommandReset    CommandType = "reset"
	CommandModifier CommandType = "modifier"
)

var (
	ErrUnknownCommand  = errors.New("sim: unknown command type")
	ErrMissingPayload  = errors.New("sim: command payload missing")
	ErrUnknownModifier = errors.New("sim: unknown modifier")
	ErrModifierCycle   = errors.New("sim: modifier would form a type multiplier cycle")
)

// ScaleCommand combines the target scale with Operand using Operation.
// Instant commands resize without a transition.
type ScaleCommand struct {
	Operation string  `json:"operation"`
	Operand   float32 `json:"operand"`
	Instant   bool    `json:"instant,omitempty"`
}

// DelayCommand sets the transition length.
type DelayCommand struct {
	Ticks int32 `json:"ticks"`
}

// ModifierCommand adds or removes a registered modifier.
type ModifierCommand struct {
	ID     string `json:"id"`
	Remove bool   `json:"remove,omitempty"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	ID         string           `json:"id,omitempty"`
	OriginTick uint64           `json:"originTick"`
	EntityID   string           `json:"entityId"`
	ScaleType  string           `json:"scaleType"`
	Type       CommandType      `json:"type"`
	IssuedAt   time.Time        `json:"issuedAt"`
	Scale      *ScaleCommand    `json:"scale,omitempty"`
	Delay      *DelayCommand    `json:"delay,omitempty"`
	Modifier   *ModifierCommand `json:"modifier,omitempty"`
}

// Outcome reports the transition targets around an applied command.
type Outcome struct {
	Previous float32
	Target   float32
	Delay    int32
}

// Apply executes c against d.
func (c Command) Apply(d *scale.Data, mods scale.ModifierRegistry) (Outcome, error) {
	before := Outcome{Previous: d.TargetScale(), Target: d.TargetScale(), Delay: d.ScaleTickDelay()}
	switch c.Type {
	case CommandScale:
		if c.Scale == nil {
			return before, fmt.Errorf("%w: %s", ErrMissingPayload, c.Type)
		}
		next, err := command.Apply(c.Scale.Operation, d.TargetScale(), c.Scale.Operand)
		if err != nil {
			return before, err
		}
		if c.Scale.Instant {
			d.SetScale(next)
		} else {
			d.SetTargetScale(next)
		}
	case CommandDelay:
		if c.Delay == nil {
			return before, fmt.Errorf("%w: %s", ErrMissingPayload, c.Type)
		}
		d.SetScaleTickDelay(c.Delay.Ticks)
	case CommandReset:
		d.Reset()
	case CommandModifier:
		if c.Modifier == nil {
			return before, fmt.Errorf("%w: %s", ErrMissingPayload, c.Type)
		}
		m, err := lookupModifier(mods, c.Modifier.ID)
		if err != nil {
			return before, err
		}
		if c.Modifier.Remove {
			d.RemoveModifier(m)
		} else {
			if d.WouldCycle(m) {
				return before, fmt.Errorf("%w: %s on %s", ErrModifierCycle, c.Modifier.ID, c.ScaleType)
			}
			d.AddModifier(m)
		}
		// Modifier changes do not notify on their own; sync them explicitly.
		d.MarkForSync(true)
	default:
		return before, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Type)
	}
	return Outcome{Previous: before.Previous, Target: d.TargetScale(), Delay: d.ScaleTickDelay()}, nil
}

func lookupModifier(mods scale.ModifierRegistry, text string) (*scale.Modifier, error) {
	id, ok := registry.ParseID(text)
	if !ok || mods == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModifier, text)
	}
	m, ok := mods.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModifier, text)
	}
	return m, nil
}
