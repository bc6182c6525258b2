package schedule

import (
	"strings"

	"github.com/pkg/errors"

	"mote-scheduler/internal/node"
)

// Policy decides how many send slots a child receives from its parent.
type Policy int

const (
	// Fixed gives every child exactly one send slot. Suitable when children
	// are leaves or only forward their own traffic.
	Fixed Policy = iota
	// Proportional sizes a child's window to 1 + its descendant count so it
	// can relay its whole subtree upward.
	Proportional
)

// ParsePolicy maps "fixed" or "proportional" onto a Policy. Empty selects Fixed.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fixed":
		return Fixed, nil
	case "proportional":
		return Proportional, nil
	}
	return Fixed, errors.Wrapf(ErrUnknownPolicy, "%q", name)
}

// Width returns the number of send slots allotted to child.
func (p Policy) Width(child *node.Node) int {
	if p == Proportional {
		return 1 + child.CountDescendants()
	}
	return 1
}

func (p Policy) String() string {
	if p == Proportional {
		return "proportional"
	}
	return "fixed"
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
