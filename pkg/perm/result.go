// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package perm

import "strconv"

// Result is the outcome of a tree query: a Tristate plus the payload of
// the node that decided it. Results are derived, never stored.
//
// The coercion helpers never fail: an absent, unparsable, or mismatched
// payload silently yields the caller-supplied default. Permission checks
// run on hot per-tick paths where an error return would be unusable.
type Result struct {
	state   Tristate
	payload any
}

// UndefinedResult is the result of querying a key that resolved nowhere.
var UndefinedResult = Result{}

// NewResult creates a Result with an explicit state and payload.
func NewResult(state Tristate, payload any) Result {
	return Result{state: state, payload: payload}
}

// State returns the decision.
func (r Result) State() Tristate {
	return r.state
}

// Payload returns the raw payload, nil if none.
func (r Result) Payload() any {
	return r.payload
}

// IsAllowed reports whether the decision is Allow.
func (r Result) IsAllowed() bool {
	return r.state == Allow
}

// IsDenied reports whether the decision is Deny.
func (r Result) IsDenied() bool {
	return r.state == Deny
}

// IsUndefined reports whether no explicit decision was resolved.
func (r Result) IsUndefined() bool {
	return r.state == Undefined
}

// Int coerces the payload to an int: native integer and float kinds match
// directly, strings are parsed, anything else yields def.
func (r Result) Int(def int) int {
	if v, ok := r.IntValue(); ok {
		return v
	}
	return def
}

// Int64 coerces the payload to an int64, falling back to def.
func (r Result) Int64(def int64) int64 {
	if v, ok := r.Int64Value(); ok {
		return v
	}
	return def
}

// Float64 coerces the payload to a float64, falling back to def.
func (r Result) Float64(def float64) float64 {
	if v, ok := r.Float64Value(); ok {
		return v
	}
	return def
}

// Bool coerces the payload to a bool, falling back to def.
func (r Result) Bool(def bool) bool {
	if v, ok := r.BoolValue(); ok {
		return v
	}
	return def
}

// Str coerces the payload to a string, falling back to def. Numeric and
// boolean payloads are formatted; other types yield def.
func (r Result) Str(def string) string {
	if v, ok := r.StrValue(); ok {
		return v
	}
	return def
}

// IntValue returns the payload as an int if coercible.
func (r Result) IntValue() (int, bool) {
	v, ok := r.Int64Value()
	return int(v), ok
}

// Int64Value returns the payload as an int64 if coercible.
func (r Result) Int64Value() (int64, bool) {
	switch v := r.payload.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Float64Value returns the payload as a float64 if coercible.
func (r Result) Float64Value() (float64, bool) {
	switch v := r.payload.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// BoolValue returns the payload as a bool if coercible.
func (r Result) BoolValue() (bool, bool) {
	switch v := r.payload.(type) {
	case bool:
		return v, true
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, true
		}
	}
	return false, false
}

// StrValue returns the payload as a string if coercible.
func (r Result) StrValue() (string, bool) {
	switch v := r.payload.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), true
	}
	return "", false
}

// As returns the payload only if it is already a T. Unlike the numeric and
// string helpers there is no coercion: a payload stored as int is not an
// int64 here.
func As[T any](r Result) (T, bool) {
	v, ok := r.payload.(T)
	return v, ok
}
