package search

import "strings"

// keySeparator joins the populated dimensions of a unit into its stable key.
// It never appears inside profession, state, suburb, or prefix values.
const keySeparator = "|"

// Unit is one executable query against the registry search form. Prefix is
// always set; the other dimensions are set only in combination modes.
type Unit struct {
	Profession string
	State      string
	Suburb     string
	Prefix     string
}

// Key returns the stable identity of the unit. Completed sets, checkpoint
// snapshots, and frontier dedup all operate on this value, so its layout is
// part of the persisted format: populated dimensions joined by "|" with the
// prefix last.
func (u Unit) Key() string {
	parts := make([]string, 0, 4)
	if u.Profession != "" {
		parts = append(parts, u.Profession)
	}
	if u.State != "" {
		parts = append(parts, u.State)
	}
	if u.Suburb != "" {
		parts = append(parts, u.Suburb)
	}
	parts = append(parts, u.Prefix)
	return strings.Join(parts, keySeparator)
}

// Depth is the unit's position in the prefix tree.
func (u Unit) Depth() int {
	return len(u.Prefix)
}

// IsCombination reports whether the unit carries profession/state dimensions
// in addition to the name prefix.
func (u Unit) IsCombination() bool {
	return u.Profession != "" || u.State != "" || u.Suburb != ""
}
