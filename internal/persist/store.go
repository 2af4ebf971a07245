// Package persist stores scale documents between runs using gdata's
// per-user application storage.
package persist

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"

	"github.com/MerchantPug/Pehkui/registry"
	"github.com/MerchantPug/Pehkui/scale"
)

var ErrInvalidKey = errors.New("persist: invalid key")

// Backend is the subset of *gdata.Manager the store uses.
type Backend interface {
	ObjectPropExists(objectKey, propKey string) bool
	LoadObjectProp(objectKey, propKey string) ([]byte, error)
	SaveObjectProp(objectKey, propKey string, data []byte) error
}

// Store saves one YAML document per (entity, scale type). A store without
// a backend runs in degraded mode: saves succeed and loads find nothing.
type Store struct {
	backend Backend
}

// Open opens gdata storage for appName.
func Open(appName string) (*Store, error) {
	manager, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("open gdata storage %q: %w", appName, err)
	}
	return NewStore(manager), nil
}

// NewStore wraps backend. A nil backend yields a degraded store.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Degraded reports whether the store has no backend.
func (s *Store) Degraded() bool {
	return s == nil || s.backend == nil
}

// Key maps an entity and scale type to the gdata object and property
// names. Lower-case letters, digits and '-' are kept; every other byte,
// '_' included, becomes '_' plus two hex digits, so distinct inputs never
// share a key.
func Key(entityID string, typeID registry.ID) (object, prop string, err error) {
	if entityID == "" || typeID.IsZero() {
		return "", "", ErrInvalidKey
	}
	return escapeKey(entityID), escapeKey(typeID.String()), nil
}

// Save writes doc.
func (s *Store) Save(entityID string, typeID registry.ID, doc scale.Document) error {
	object, prop, err := Key(entityID, typeID)
	if err != nil {
		return err
	}
	if s.Degraded() {
		return nil
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal scale document: %w", err)
	}
	if err := s.backend.SaveObjectProp(object, prop, data); err != nil {
		return fmt.Errorf("save %s/%s: %w", object, prop, err)
	}
	return nil
}

// Load reads the stored document. The boolean is false when nothing is
// stored for the key.
func (s *Store) Load(entityID string, typeID registry.ID) (scale.Document, bool, error) {
	object, prop, err := Key(entityID, typeID)
	if err != nil {
		return scale.Document{}, false, err
	}
	if s.Degraded() || !s.backend.ObjectPropExists(object, prop) {
		return scale.Document{}, false, nil
	}
	data, err := s.backend.LoadObjectProp(object, prop)
	if err != nil {
		return scale.Document{}, false, fmt.Errorf("load %s/%s: %w", object, prop, err)
	}
	var doc scale.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return scale.Document{}, false, fmt.Errorf("unmarshal %s/%s: %w", object, prop, err)
	}
	return doc, true, nil
}

func escapeKey(s string) string {
	const hexDigits = "0123456789abcdef"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

// MemoryBackend keeps properties in memory. It is used by tests and by
// callers that want persistence semantics without touching disk.
type MemoryBackend struct {
	mu    sync.RWMutex
	props map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{props: make(map[string][]byte)}
}

func (m *MemoryBackend) ObjectPropExists(objectKey, propKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.props[objectKey+"/"+propKey]
	return ok
}

func (m *MemoryBackend) LoadObjectProp(objectKey, propKey string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.props[objectKey+"/"+propKey]
	if !ok {
		return nil, fmt.Errorf("%s/%s: not found", objectKey, propKey)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBackend) SaveObjectProp(objectKey, propKey string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.props[objectKey+"/"+propKey] = append([]byte(nil), data...)
	return nil
}

// Len reports the stored property count.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.props)
}
