package scale

import (
	"github.com/MerchantPug/Pehkui/registry"
)

// Namespace is used for every built-in identifier.
const Namespace = "pehkui"

// Family and default entry identifiers.
var (
	TypesFamilyID     = registry.NewID(Namespace, "scale_types")
	ModifiersFamilyID = registry.NewID(Namespace, "scale_modifiers")
	EasingsFamilyID   = registry.NewID(Namespace, "scale_easings")

	InvalidTypeID      = registry.NewID(Namespace, "invalid")
	IdentityModifierID = registry.NewID(Namespace, "identity")
	LinearEasingID     = registry.NewID(Namespace, "linear")
)

// ModifierRegistry resolves modifiers for the codecs.
type ModifierRegistry interface {
	Lookup(id registry.ID) (*Modifier, bool)
	IDOf(m *Modifier) (registry.ID, bool)
}

// Registries groups the three extensible families. Instances are created
// once per simulation context and passed to the components that need them.
type Registries struct {
	Types     *registry.Family[*Type]
	Modifiers *registry.Family[*Modifier]
	Easings   *registry.Family[*Easing]
}

// NewRegistries constructs the families with their default entries and the
// built-in easing curves registered.
func NewRegistries() *Registries {
	r := &Registries{
		Types:     registry.NewFamily[*Type](TypesFamilyID, InvalidTypeID),
		Modifiers: registry.NewFamily[*Modifier](ModifiersFamilyID, IdentityModifierID),
		Easings:   registry.NewFamily[*Easing](EasingsFamilyID, LinearEasingID),
	}
	r.Types.Register(InvalidTypeID, Invalid)
	r.Modifiers.Register(IdentityModifierID, IdentityModifier)
	r.Easings.Register(LinearEasingID, LinearEasing)
	for name, fn := range EasingFuncs {
		if name == LinearEasingID.Path {
			continue
		}
		r.Easings.Register(registry.NewID(Namespace, name), NewEasing(fn))
	}
	return r
}

// RegisterType binds t under id, returning the bound type.
func (r *Registries) RegisterType(id registry.ID, t *Type) *Type {
	return r.Types.Register(id, t)
}

// RegisterModifier binds m under its own identifier, returning the bound
// modifier.
func (r *Registries) RegisterModifier(m *Modifier) *Modifier {
	return r.Modifiers.Register(m.ID(), m)
}

// Type returns the type bound to id, or Invalid.
func (r *Registries) Type(id registry.ID) *Type {
	if t, ok := r.Types.Lookup(id); ok {
		return t
	}
	return Invalid
}

// Easing returns the easing bound to id, or the linear default.
func (r *Registries) Easing(id registry.ID) *Easing {
	if e := r.Easings.LookupOrDefault(id); e != nil {
		return e
	}
	return LinearEasing
}
