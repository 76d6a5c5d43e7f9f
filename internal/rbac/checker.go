package rbac

import "strings"

// Checker answers permission questions for a fixed role policy. Grants are either
// exact ("attempt:submit"), a prefix ending in "*" ("attempt:view-*"), or "*".
type Checker struct {
	exact    map[string]map[string]bool
	prefixes map[string][]string
}

// NewChecker compiles a role policy. A nil policy means RolePermissions.
func NewChecker(policy map[string][]string) *Checker {
	if policy == nil {
		policy = RolePermissions
	}
	c := &Checker{exact: map[string]map[string]bool{}, prefixes: map[string][]string{}}
	for role, grants := range policy {
		c.exact[role] = map[string]bool{}
		for _, g := range grants {
			if strings.HasSuffix(g, "*") {
				c.prefixes[role] = append(c.prefixes[role], strings.TrimSuffix(g, "*"))
				continue
			}
			c.exact[role][g] = true
		}
	}
	return c
}

func (c *Checker) Has(role, perm string) bool {
	if c.exact[role][perm] {
		return true
	}
	for _, p := range c.prefixes[role] {
		if strings.HasPrefix(perm, p) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}
