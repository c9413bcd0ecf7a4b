package grid

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Access is the auth context visibility predicates and permission gates are
// evaluated against. It is passed explicitly to Compile.
type Access interface {
	Authenticated() bool
	Can(capability string) bool
}

// ErrInvalidGate is returned by Compile for malformed capability names.
var ErrInvalidGate = errors.New("grid: invalid permission gate")

var gatePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// ValidateGate checks a capability name such as "users.edit".
func ValidateGate(name string) error {
	if name == "" {
		return nil
	}
	if !gatePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidGate, name)
	}
	return nil
}

// Capabilities is a fixed capability set.
type Capabilities struct {
	authenticated bool
	granted       map[string]struct{}
}

// NewAccess builds an Access from a list of granted capability names.
func NewAccess(authenticated bool, granted ...string) Capabilities {
	set := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		g = strings.ToLower(strings.TrimSpace(g))
		if g != "" {
			set[g] = struct{}{}
		}
	}
	return Capabilities{authenticated: authenticated, granted: set}
}

// Guest is the access context of an anonymous visitor.
func Guest() Capabilities {
	return Capabilities{}
}

// Authenticated implements Access.
func (c Capabilities) Authenticated() bool {
	return c.authenticated
}

// Can implements Access.
func (c Capabilities) Can(capability string) bool {
	_, ok := c.granted[strings.ToLower(capability)]
	return ok
}

type visibility struct {
	hidden bool
	when   func(Access) bool
	gate   string
}

func (v visibility) evaluate(access Access) bool {
	if v.gate != "" && (access == nil || !access.Can(v.gate)) {
		return false
	}
	if v.when != nil {
		return v.when(access)
	}
	return !v.hidden
}
