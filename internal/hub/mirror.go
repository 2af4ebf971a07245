package hub

import (
	"fmt"
	"slices"

	"github.com/MerchantPug/Pehkui/internal/net/proto"
	"github.com/MerchantPug/Pehkui/registry"
	"github.com/MerchantPug/Pehkui/scale"
)

// Mirror is the receiving side of sync frames. Its states belong to
// non-authoritative entities, so nothing it holds is ever marked dirty.
// It is not safe for concurrent use.
type Mirror struct {
	regs     *scale.Registries
	entities map[string]*entity
	states   map[Key]*scale.Data
}

// NewMirror constructs an empty mirror over regs.
func NewMirror(regs *scale.Registries) *Mirror {
	if regs == nil {
		regs = scale.NewRegistries()
	}
	return &Mirror{
		regs:     regs,
		entities: make(map[string]*entity),
		states:   make(map[Key]*scale.Data),
	}
}

// Apply decodes frame into the matching state, creating it on first
// sight. It returns the modifier identifiers that could not be resolved.
func (m *Mirror) Apply(frame []byte) (Key, []string, error) {
	decoded, err := proto.DecodeSyncFrame(frame)
	if err != nil {
		return Key{}, nil, err
	}
	typeID, ok := registry.ParseID(decoded.ScaleType)
	if !ok {
		return Key{}, nil, fmt.Errorf("%w: %q", ErrUnknownType, decoded.ScaleType)
	}
	typ, ok := m.regs.Types.Lookup(typeID)
	if !ok || typ == scale.Invalid {
		return Key{}, nil, fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}

	key := Key{Entity: decoded.Entity, Type: typeID}
	data, ok := m.states[key]
	if !ok {
		owner, exists := m.entities[key.Entity]
		if !exists {
			owner = newEntity(key.Entity, false)
			m.entities[key.Entity] = owner
		}
		data = scale.NewBuilder().Type(typ).Entity(owner).Build()
		owner.states[typ] = data
		m.states[key] = data
	}
	skipped, err := data.UnmarshalWire(decoded.Payload, m.regs.Modifiers)
	if err != nil {
		return key, nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return key, skipped, nil
}

// Tick advances every mirrored state so transitions keep moving between
// frames.
func (m *Mirror) Tick() {
	keys := make([]Key, 0, len(m.states))
	for key := range m.states {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, compareKeys)
	for _, key := range keys {
		m.states[key].Tick()
	}
}

// State returns the mirrored data for key.
func (m *Mirror) State(key Key) (*scale.Data, bool) {
	data, ok := m.states[key]
	return data, ok
}

// Len reports the number of mirrored states.
func (m *Mirror) Len() int {
	return len(m.states)
}
