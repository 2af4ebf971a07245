package registry

import (
	"fmt"
	"strings"
)

// DefaultNamespace is assumed when identifier text omits a namespace.
const DefaultNamespace = "minecraft"

// ID is a namespaced identifier in `namespace:path` form.
type ID struct {
	Namespace string
	Path      string
}

// NewID constructs an identifier, panicking when either part contains
// characters outside the allowed set. Intended for package-level constants.
func NewID(namespace, path string) ID {
	id := ID{Namespace: namespace, Path: path}
	if !id.Valid() {
		panic(fmt.Sprintf("registry: invalid identifier %q", id.String()))
	}
	return id
}

// ParseID parses identifier text. Text without a separator is placed in
// DefaultNamespace. It reports false for empty or malformed identifiers.
func ParseID(text string) (ID, bool) {
	namespace := DefaultNamespace
	path := text
	if idx := strings.IndexByte(text, ':'); idx >= 0 {
		path = text[idx+1:]
		if idx > 0 {
			namespace = text[:idx]
		}
	}
	id := ID{Namespace: namespace, Path: path}
	if !id.Valid() {
		return ID{}, false
	}
	return id, true
}

// MustParseID parses identifier text and panics on failure.
func MustParseID(text string) ID {
	id, ok := ParseID(text)
	if !ok {
		panic(fmt.Sprintf("registry: invalid identifier %q", text))
	}
	return id
}

// Valid reports whether both parts are non-empty and use the allowed characters.
func (id ID) Valid() bool {
	if id.Namespace == "" || id.Path == "" {
		return false
	}
	for i := 0; i < len(id.Namespace); i++ {
		if !namespaceChar(id.Namespace[i]) {
			return false
		}
	}
	for i := 0; i < len(id.Path); i++ {
		if !pathChar(id.Path[i]) {
			return false
		}
	}
	return true
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return id.Namespace == "" && id.Path == ""
}

func (id ID) String() string {
	return id.Namespace + ":" + id.Path
}

// Compare orders identifiers by their text form.
func (id ID) Compare(other ID) int {
	return strings.Compare(id.String(), other.String())
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, ok := ParseID(string(text))
	if !ok {
		return fmt.Errorf("registry: invalid identifier %q", text)
	}
	*id = parsed
	return nil
}

func namespaceChar(c byte) bool {
	return c == '_' || c == '-' || c == '.' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func pathChar(c byte) bool {
	return namespaceChar(c) || c == '/'
}
