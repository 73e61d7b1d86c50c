// Package element defines the elemental affinities and the fixed advantage cycle between them.
package element

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Element is the elemental affinity of a combatant.
type Element int

const (
	Fire Element = iota
	Water
	Air
	Stone
	Earth
	Ice
	// Light and Shadow are narrative-only and never gain or lose advantage.
	Light
	Shadow
)

var names = [...]string{"fire", "water", "air", "stone", "earth", "ice", "light", "shadow"}

// String returns the lower-case content name of the element.
func (e Element) String() string {
	if e < 0 || int(e) >= len(names) {
		return "unknown"
	}
	return names[e]
}

// Parse converts a content name into an Element.
//
// Postcondition: Returns the matching Element, or an error for unknown names.
func Parse(s string) (Element, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == want {
			return Element(i), nil
		}
	}
	return 0, fmt.Errorf("unknown element %q", s)
}

// All returns every element in declaration order.
func All() []Element {
	out := make([]Element, len(names))
	for i := range names {
		out[i] = Element(i)
	}
	return out
}

// UnmarshalYAML decodes an element from its content name.
func (e *Element) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// MarshalYAML encodes an element as its content name.
func (e Element) MarshalYAML() (any, error) {
	return e.String(), nil
}
