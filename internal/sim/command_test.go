package sim

import (
	"errors"
	"testing"

	"github.com/MerchantPug/Pehkui/command"
	"github.com/MerchantPug/Pehkui/registry"
	"github.com/MerchantPug/Pehkui/scale"
)

type serverEntity struct{}

func (serverEntity) Authoritative() bool { return true }

func TestApplyScaleCommand(t *testing.T) {
	d := scale.NewBuilder().Entity(serverEntity{}).Build()
	d.SetScale(2)

	out, err := Command{Type: CommandScale, Scale: &ScaleCommand{Operation: command.OpMultiply, Operand: 3}}.Apply(d, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Previous != 2 || out.Target != 6 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if d.BaseScale() != 2 || d.TargetScale() != 6 || !d.Transitioning() {
		t.Fatalf("expected a transition toward 6")
	}

	if _, err := (Command{Type: CommandScale, Scale: &ScaleCommand{Operation: command.OpSet, Operand: 0.5, Instant: true}}).Apply(d, nil); err != nil {
		t.Fatalf("apply instant: %v", err)
	}
	if d.BaseScale() != 0.5 || d.Transitioning() {
		t.Fatalf("expected instant resize to 0.5")
	}
}

func TestApplyRejectsBadCommands(t *testing.T) {
	d := scale.NewBuilder().Build()
	cases := []struct {
		name string
		cmd  Command
		want error
	}{
		{name: "divide by zero", cmd: Command{Type: CommandScale, Scale: &ScaleCommand{Operation: command.OpDivide}}, want: command.ErrDivisionByZero},
		{name: "unknown op", cmd: Command{Type: CommandScale, Scale: &ScaleCommand{Operation: "modulo"}}, want: command.ErrInvalidOperation},
		{name: "missing payload", cmd: Command{Type: CommandDelay}, want: ErrMissingPayload},
		{name: "unknown type", cmd: Command{Type: "teleport"}, want: ErrUnknownCommand},
		{name: "unknown modifier", cmd: Command{Type: CommandModifier, Modifier: &ModifierCommand{ID: "test:none"}}, want: ErrUnknownModifier},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.cmd.Apply(d, scale.NewRegistries().Modifiers); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if d.TargetScale() != 1 {
		t.Fatalf("rejected commands must not change state")
	}
}

func TestApplyDelayResetAndModifier(t *testing.T) {
	regs := scale.NewRegistries()
	double := regs.RegisterModifier(scale.OperationModifier(registry.NewID("test", "double"), 0, mustOp(t, command.OpMultiply), 2))
	d := scale.NewBuilder().Entity(serverEntity{}).Build()

	if _, err := (Command{Type: CommandDelay, Delay: &DelayCommand{Ticks: 4}}).Apply(d, regs.Modifiers); err != nil {
		t.Fatalf("delay: %v", err)
	}
	if d.ScaleTickDelay() != 4 {
		t.Fatalf("expected delay 4, got %d", d.ScaleTickDelay())
	}

	d.MarkForSync(false)
	if _, err := (Command{Type: CommandModifier, Modifier: &ModifierCommand{ID: "test:double"}}).Apply(d, regs.Modifiers); err != nil {
		t.Fatalf("modifier: %v", err)
	}
	if !d.HasModifier(double) || d.Scale() != 2 || !d.ShouldSync() {
		t.Fatalf("expected modifier applied and synced")
	}
	if _, err := (Command{Type: CommandModifier, Modifier: &ModifierCommand{ID: "test:double", Remove: true}}).Apply(d, regs.Modifiers); err != nil {
		t.Fatalf("remove modifier: %v", err)
	}
	if d.HasModifier(double) {
		t.Fatalf("expected modifier removed")
	}

	d.SetScale(5)
	if _, err := (Command{Type: CommandReset}).Apply(d, regs.Modifiers); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if d.BaseScale() != 1 || d.ScaleTickDelay() != scale.DefaultScaleTickDelay {
		t.Fatalf("expected reset state")
	}
}

type multiScaleEntity struct {
	states map[*scale.Type]*scale.Data
}

func (e *multiScaleEntity) Authoritative() bool { return true }

func (e *multiScaleEntity) ScaleData(t *scale.Type) *scale.Data { return e.states[t] }

func TestApplyRejectsMultiplierCycle(t *testing.T) {
	regs := scale.NewRegistries()
	baseID := registry.NewID("test", "base")
	widthID := registry.NewID("test", "width")
	byBase := regs.RegisterModifier(scale.TypeMultiplierModifier(registry.NewID("test", "base_multiplier"), 10, baseID, regs.Types))
	regs.RegisterModifier(scale.TypeMultiplierModifier(registry.NewID("test", "width_multiplier"), 10, widthID, regs.Types))
	base := regs.RegisterType(baseID, scale.NewType())
	width := regs.RegisterType(widthID, scale.NewType(byBase))

	owner := &multiScaleEntity{states: map[*scale.Type]*scale.Data{}}
	baseData := scale.NewBuilder().Type(base).Entity(owner).Build()
	owner.states[base] = baseData
	owner.states[width] = scale.NewBuilder().Type(width).Entity(owner).Build()

	cmd := Command{Type: CommandModifier, ScaleType: baseID.String(), Modifier: &ModifierCommand{ID: "test:width_multiplier"}}
	if _, err := cmd.Apply(baseData, regs.Modifiers); !errors.Is(err, ErrModifierCycle) {
		t.Fatalf("expected cycle rejection, got %v", err)
	}
	if len(baseData.Modifiers()) != 0 {
		t.Fatalf("rejected modifier must not be attached")
	}
	if baseData.Scale() != 1 {
		t.Fatalf("expected base scale unchanged")
	}

	remove := Command{Type: CommandModifier, ScaleType: baseID.String(), Modifier: &ModifierCommand{ID: "test:width_multiplier", Remove: true}}
	if _, err := remove.Apply(baseData, regs.Modifiers); err != nil {
		t.Fatalf("removing is always allowed: %v", err)
	}
}

func mustOp(t *testing.T, token string) command.Operation {
	t.Helper()
	op, err := command.Parse(token)
	if err != nil {
		t.Fatalf("parse %s: %v", token, err)
	}
	return op
}
