// Package permission defines the closed set of capabilities an admin can
// hold and a set algebra with implication closure over them.
package permission

import (
	"fmt"
	"sort"
	"strings"
)

// Permission is a member of the closed capability enumeration.
type Permission string

const (
	AdminCreate    Permission = "ADMIN_CREATE"
	AdminRead      Permission = "ADMIN_READ"
	AdminReadSelf  Permission = "ADMIN_READ_SELF"
	AdminWrite     Permission = "ADMIN_WRITE"
	AdminWriteSelf Permission = "ADMIN_WRITE_SELF"
	AdminDelete    Permission = "ADMIN_DELETE"
	UserCreate     Permission = "USER_CREATE"
	UserRead       Permission = "USER_READ"
	UserWrite      Permission = "USER_WRITE"
	UserDelete     Permission = "USER_DELETE"
	AuditRead      Permission = "AUDIT_READ"
)

// All lists every permission in canonical order.
var All = []Permission{
	AdminCreate,
	AdminRead,
	AdminReadSelf,
	AdminWrite,
	AdminWriteSelf,
	AdminDelete,
	UserCreate,
	UserRead,
	UserWrite,
	UserDelete,
	AuditRead,
}

// selfVariant maps a base permission to the self-scoped permission it
// implies. Holding the base permission always implies the self variant;
// the reverse never holds.
var selfVariant = map[Permission]Permission{
	AdminRead:  AdminReadSelf,
	AdminWrite: AdminWriteSelf,
}

var valid = func() map[Permission]bool {
	m := make(map[Permission]bool, len(All))
	for _, p := range All {
		m[p] = true
	}
	return m
}()

// Parse returns the permission named by s.
func Parse(s string) (Permission, error) {
	p := Permission(s)
	if !valid[p] {
		return "", fmt.Errorf("unknown permission %q", s)
	}
	return p, nil
}

// SelfVariant returns the self-scoped variant of p, or false when p has none.
func SelfVariant(p Permission) (Permission, bool) {
	s, ok := selfVariant[p]
	return s, ok
}

// Set is an immutable collection of explicitly held permissions. Queries run
// against the implication closure; Plus and Minus operate on the explicit
// members and return a new Set.
type Set struct {
	explicit map[Permission]bool
}

// NewSet builds a Set holding exactly the given permissions.
func NewSet(ps ...Permission) Set {
	explicit := make(map[Permission]bool, len(ps))
	for _, p := range ps {
		explicit[p] = true
	}
	return Set{explicit: explicit}
}

// Plus returns a copy of s with p added to the explicit members.
func (s Set) Plus(p Permission) Set {
	out := s.clone()
	out.explicit[p] = true
	return out
}

// Minus returns a copy of s with p removed from the explicit members. The
// closure of the result may still imply p when another retained permission
// implies it.
func (s Set) Minus(p Permission) Set {
	out := s.clone()
	delete(out.explicit, p)
	return out
}

// Implies reports whether the closure of s contains p.
func (s Set) Implies(p Permission) bool {
	if s.explicit[p] {
		return true
	}
	for held := range s.explicit {
		if sv, ok := selfVariant[held]; ok && sv == p {
			return true
		}
	}
	return false
}

// Closure returns every permission implied by s, in canonical order.
func (s Set) Closure() []Permission {
	var out []Permission
	for _, p := range All {
		if s.Implies(p) {
			out = append(out, p)
		}
	}
	return out
}

// Explicit returns the explicit members in canonical order.
func (s Set) Explicit() []Permission {
	var out []Permission
	for _, p := range All {
		if s.explicit[p] {
			out = append(out, p)
		}
	}
	return out
}

// ImpliesAll reports whether the closure of s contains every permission in ps.
func (s Set) ImpliesAll(ps []Permission) bool {
	for _, p := range ps {
		if !s.Implies(p) {
			return false
		}
	}
	return true
}

// Missing returns the permissions in ps the closure of s does not contain,
// sorted lexically.
func (s Set) Missing(ps []Permission) []Permission {
	var out []Permission
	for _, p := range ps {
		if !s.Implies(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of explicit members.
func (s Set) Len() int { return len(s.explicit) }

// Equal reports whether two sets have the same explicit members.
func (s Set) Equal(other Set) bool {
	if len(s.explicit) != len(other.explicit) {
		return false
	}
	for p := range s.explicit {
		if !other.explicit[p] {
			return false
		}
	}
	return true
}

// Format renders the explicit members as a canonical sorted comma-separated
// string. The empty set formats as "".
func (s Set) Format() string {
	names := make([]string, 0, len(s.explicit))
	for _, p := range s.Explicit() {
		names = append(names, string(p))
	}
	return strings.Join(names, ",")
}

// ParseSet parses the canonical form produced by Format.
func ParseSet(enc string) (Set, error) {
	if enc == "" {
		return NewSet(), nil
	}
	parts := strings.Split(enc, ",")
	ps := make([]Permission, 0, len(parts))
	for _, part := range parts {
		p, err := Parse(strings.TrimSpace(part))
		if err != nil {
			return Set{}, err
		}
		ps = append(ps, p)
	}
	return NewSet(ps...), nil
}

func (s Set) clone() Set {
	explicit := make(map[Permission]bool, len(s.explicit)+1)
	for p := range s.explicit {
		explicit[p] = true
	}
	return Set{explicit: explicit}
}
