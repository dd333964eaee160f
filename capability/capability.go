// Package capability compares the extensions and layers a renderer needs
// against what an instance or device offers.
package capability

import (
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	Extension Kind = "extension"
	Layer     Kind = "layer"
)

type Scope string

const (
	Instance Scope = "instance"
	Device   Scope = "device"
)

// MissingCapabilityError names every required capability that was not
// available. Missing is sorted and holds exactly required minus available.
type MissingCapabilityError struct {
	Kind    Kind
	Scope   Scope
	Missing []string
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("missing required %s %ss: %s", e.Scope, e.Kind, strings.Join(e.Missing, ", "))
}

// Set is a set of capability names.
type Set map[string]struct{}

func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s Set) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Missing returns the sorted, de-duplicated names in required that are
// absent from available. It returns nil when nothing is missing.
func Missing(required, available []string) []string {
	have := NewSet(available...)
	missing := NewSet()
	for _, r := range required {
		if !have.Contains(r) {
			missing[r] = struct{}{}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return missing.Sorted()
}

// Match returns required unchanged when every name in it is available, and
// a *MissingCapabilityError otherwise.
func Match(kind Kind, scope Scope, required, available []string) ([]string, error) {
	missing := Missing(required, available)
	if missing != nil {
		return nil, &MissingCapabilityError{Kind: kind, Scope: scope, Missing: missing}
	}
	return required, nil
}
