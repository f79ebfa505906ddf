// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Permtree Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// asOops fails the test unless err is an oops error.
func asOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	return oopsErr
}

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	assert.Equal(t, code, asOops(t, err).Code())
}

// AssertErrorContext asserts that err is an oops error with the given context key/value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	ctx := asOops(t, err).Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// AssertCodedError asserts that err carries the given oops code and every
// key/value pair in wantCtx.
func AssertCodedError(t *testing.T, err error, code string, wantCtx map[string]any) {
	t.Helper()
	oopsErr := asOops(t, err)
	assert.Equal(t, code, oopsErr.Code())
	ctx := oopsErr.Context()
	for key, value := range wantCtx {
		assert.Contains(t, ctx, key)
		assert.Equal(t, value, ctx[key])
	}
}
