// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package perm

import "fmt"

// Tristate represents the outcome of a permission decision.
type Tristate int

// Tristate constants define the possible permission outcomes.
// Undefined is the zero value: a key that was never set resolves to it.
const (
	Undefined Tristate = iota // undefined
	Allow                     // allow
	Deny                      // deny
)

var tristateStrings = [...]string{
	"undefined",
	"allow",
	"deny",
}

func (t Tristate) String() string {
	if t >= 0 && int(t) < len(tristateStrings) {
		return tristateStrings[t]
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// Defined reports whether an explicit decision was stored: true for Allow
// and Deny only. Undefined means "inherit or fall through" and must never
// be conflated with Deny.
func (t Tristate) Defined() bool {
	return t == Allow || t == Deny
}

// Bool returns true iff the state is Allow.
func (t Tristate) Bool() bool {
	return t == Allow
}

// BoolOr returns def for Undefined; Allow and Deny ignore it.
func (t Tristate) BoolOr(def bool) bool {
	if t == Undefined {
		return def
	}
	return t == Allow
}

// FromBool converts a boolean decision to Allow or Deny.
func FromBool(b bool) Tristate {
	if b {
		return Allow
	}
	return Deny
}

// FromBoolPtr converts an optional boolean: nil maps to Undefined.
func FromBoolPtr(b *bool) Tristate {
	if b == nil {
		return Undefined
	}
	return FromBool(*b)
}

// ParseTristate converts a stored state name back to a Tristate.
// Used by storage backends reconstructing nodes from persisted tuples.
func ParseTristate(s string) (Tristate, error) {
	switch s {
	case "allow":
		return Allow, nil
	case "deny":
		return Deny, nil
	case "undefined":
		return Undefined, nil
	default:
		return Undefined, fmt.Errorf("invalid tristate name %q", s)
	}
}
