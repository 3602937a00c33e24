package entries

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Technologies lists the tools used for a task. Order is kept for display;
// equality ignores order, case and Unicode composition.
type Technologies []string

func technologyKey(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// Normalize trims names, composes them to NFC and drops duplicates, keeping
// the first spelling in entry order.
func (t Technologies) Normalize() Technologies {
	if t == nil {
		return nil
	}
	out := make(Technologies, 0, len(t))
	seen := make(map[string]struct{}, len(t))
	// Casers keep state and cannot be shared across goroutines.
	folder := cases.Fold()
	for _, name := range t {
		clean := norm.NFC.String(strings.TrimSpace(name))
		if clean == "" {
			out = append(out, clean)
			continue
		}
		key := folder.String(clean)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, clean)
	}
	return out
}

// Contains reports whether name is part of the set.
func (t Technologies) Contains(name string) bool {
	key := technologyKey(name)
	for _, existing := range t {
		if technologyKey(existing) == key {
			return true
		}
	}
	return false
}

// Equal compares two technology lists as sets.
func (t Technologies) Equal(other Technologies) bool {
	a := t.keys()
	b := other.keys()
	if len(a) != len(b) {
		return false
	}
	for key := range a {
		if _, ok := b[key]; !ok {
			return false
		}
	}
	return true
}

func (t Technologies) keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(t))
	for _, name := range t {
		keys[technologyKey(name)] = struct{}{}
	}
	return keys
}

// String joins the names for display.
func (t Technologies) String() string {
	return strings.Join(t, ", ")
}
