package access

import "slices"

// Capabilities is the effective permission set of a user: the union of role
// grants and direct grants, plus the Administrator bypass.
type Capabilities struct {
	admin bool
	names map[string]struct{}
}

// CapabilitiesOf loads the capability set of u.
func CapabilitiesOf(u *User) Capabilities {
	c := Capabilities{names: make(map[string]struct{})}
	if u == nil {
		return c
	}
	for _, r := range u.Roles {
		if r.IsAdministrator() {
			c.admin = true
		}
		for _, p := range r.Permissions {
			c.names[p.Name] = struct{}{}
		}
	}
	for _, p := range u.Permissions {
		c.names[p.Name] = struct{}{}
	}
	return c
}

// Admin reports whether the set carries the Administrator bypass.
func (c Capabilities) Admin() bool { return c.admin }

// HasAny reports whether any of names is granted. Administrators pass every check.
func (c Capabilities) HasAny(names ...string) bool {
	if c.admin {
		return true
	}
	for _, n := range names {
		if _, ok := c.names[n]; ok {
			return true
		}
	}
	return false
}

// Names returns the granted permission names in sorted order.
func (c Capabilities) Names() []string {
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// UserHasAny reports whether u holds at least one of names.
func UserHasAny(u *User, names ...string) bool {
	return CapabilitiesOf(u).HasAny(names...)
}
