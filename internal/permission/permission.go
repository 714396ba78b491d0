// Package permission implements the coarse permission lattice that gates
// plugin registration and execution: NONE ⊑ READ_ONLY ⊑ READ_WRITE ⊑ ALL.
package permission

import "fmt"

// Permission is a point in the lattice. Larger values grant more capability;
// the zero value is None.
type Permission int

const (
	None Permission = iota
	ReadOnly
	ReadWrite
	All
)

func (p Permission) String() string {
	switch p {
	case None:
		return "none"
	case ReadOnly:
		return "read_only"
	case ReadWrite:
		return "read_write"
	case All:
		return "all"
	default:
		return fmt.Sprintf("permission(%d)", int(p))
	}
}

// Allows reports whether granting p is sufficient to satisfy a plugin or
// operation that requires required. It holds iff required ⊑ p.
func (p Permission) Allows(required Permission) bool {
	return required <= p
}

// Parse converts a config string ("none", "read_only", "read_write", "all")
// into a Permission. Unknown strings default to None (fail closed).
func Parse(s string) Permission {
	switch s {
	case "read_only":
		return ReadOnly
	case "read_write":
		return ReadWrite
	case "all":
		return All
	default:
		return None
	}
}

// FromFlags collapses the three independent capability flags the YAML
// config historically carried (read/write/command) onto the nearest lattice
// point: all three true maps to All, read+write to ReadWrite, read-only to
// ReadOnly, none to None. This mapping exists because the config's
// permission section predates the lattice and still exposes flags rather
// than a single lattice value.
func FromFlags(read, write, command bool) Permission {
	switch {
	case read && write && command:
		return All
	case read && write:
		return ReadWrite
	case read:
		return ReadOnly
	default:
		return None
	}
}
