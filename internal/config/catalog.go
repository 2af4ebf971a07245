package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/MerchantPug/Pehkui/command"
	"github.com/MerchantPug/Pehkui/registry"
	"github.com/MerchantPug/Pehkui/scale"
)

var ErrCatalog = errors.New("config: invalid catalog")

// Bootstrap registers the catalog's modifiers, then its types, then its
// easings. Entries whose identifier is already bound keep the existing
// entry. Type defaults must name modifiers that resolve after the modifier
// pass, and type multipliers must not form a cycle.
func (c CatalogConfig) Bootstrap(regs *scale.Registries) error {
	if regs == nil {
		return fmt.Errorf("%w: nil registries", ErrCatalog)
	}
	sources := make(map[registry.ID]registry.ID, len(c.Modifiers))
	for _, entry := range c.Modifiers {
		m, source, err := entry.build(regs)
		if err != nil {
			return err
		}
		bound := regs.RegisterModifier(m)
		if bound == m && !source.IsZero() {
			sources[m.ID()] = source
		}
	}

	edges := make(map[registry.ID][]registry.ID, len(c.Types))
	for _, entry := range c.Types {
		id, err := parseEntryID("type", entry.ID)
		if err != nil {
			return err
		}
		defaults := make([]*scale.Modifier, 0, len(entry.Defaults))
		for _, text := range entry.Defaults {
			modID, err := parseEntryID("type "+entry.ID+" default", text)
			if err != nil {
				return err
			}
			m, ok := regs.Modifiers.Lookup(modID)
			if !ok {
				return fmt.Errorf("%w: type %s: unknown modifier %s", ErrCatalog, id, modID)
			}
			defaults = append(defaults, m)
			if source, ok := sources[modID]; ok {
				edges[id] = append(edges[id], source)
			}
		}
		regs.RegisterType(id, scale.NewType(defaults...))
	}
	if err := checkCycles(edges); err != nil {
		return err
	}

	for _, entry := range c.Easings {
		id, err := parseEntryID("easing", entry.ID)
		if err != nil {
			return err
		}
		fn, ok := scale.EasingFuncs[entry.Function]
		if !ok {
			return fmt.Errorf("%w: easing %s: unknown function %q", ErrCatalog, id, entry.Function)
		}
		regs.Easings.Register(id, scale.NewEasing(fn))
	}
	return nil
}

func (e ModifierEntry) build(regs *scale.Registries) (*scale.Modifier, registry.ID, error) {
	id, err := parseEntryID("modifier", e.ID)
	if err != nil {
		return nil, registry.ID{}, err
	}
	switch {
	case e.Source != "" && e.Operation != "":
		return nil, registry.ID{}, fmt.Errorf("%w: modifier %s: source and operation are exclusive", ErrCatalog, id)
	case e.Source != "":
		source, err := parseEntryID("modifier "+e.ID+" source", e.Source)
		if err != nil {
			return nil, registry.ID{}, err
		}
		return scale.TypeMultiplierModifier(id, e.Priority, source, regs.Types), source, nil
	case e.Operation != "":
		op, err := command.Parse(e.Operation)
		if err != nil {
			return nil, registry.ID{}, fmt.Errorf("%w: modifier %s: %v", ErrCatalog, id, err)
		}
		return scale.OperationModifier(id, e.Priority, op, e.Operand), registry.ID{}, nil
	default:
		return nil, registry.ID{}, fmt.Errorf("%w: modifier %s needs an operation or a source", ErrCatalog, id)
	}
}

func parseEntryID(what, text string) (registry.ID, error) {
	id, ok := registry.ParseID(text)
	if !ok {
		return registry.ID{}, fmt.Errorf("%w: %s: invalid identifier %q", ErrCatalog, what, text)
	}
	return id, nil
}

// checkCycles rejects type multiplier chains that lead back to their start,
// which would recurse without bound when the scale is read.
func checkCycles(edges map[registry.ID][]registry.ID) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[registry.ID]int, len(edges))
	var visit func(id registry.ID) error
	visit = func(id registry.ID) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("%w: type multiplier cycle through %s", ErrCatalog, id)
		case done:
			return nil
		}
		state[id] = visiting
		for _, next := range edges[id] {
			if err := visit(next); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}
	for _, id := range sortedKeys(edges) {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(edges map[registry.ID][]registry.ID) []registry.ID {
	ids := make([]registry.ID, 0, len(edges))
	for id := range edges {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, registry.ID.Compare)
	return ids
}
