// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package marker_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"templar.dev/templar/pkg/marker"
)

func TestUndefinedMessage(t *testing.T) {
	assert.Equal(t, "'host' is undefined", marker.Undefined{Name: "host"}.Message())
	assert.Equal(t, "value is undefined", marker.Undefined{}.Message())
	assert.Equal(t, "'host' is undefined. Did you forget to set it?",
		marker.Undefined{Name: "host", Hint: "Did you forget to set it?"}.Message())
}

func TestTripCarriesMarker(t *testing.T) {
	m := marker.Undefined{Name: "host"}
	err := marker.Trip(m)

	var tripped marker.TrippedError
	require.ErrorAs(t, err, &tripped)
	assert.Equal(t, m, tripped.Marker)
	assert.Equal(t, "'host' is undefined", err.Error())
}

func TestFirstFindsMarkerAmongValues(t *testing.T) {
	m, found := marker.First("a", int64(1), marker.Truncation{}, marker.Undefined{Name: "x"})
	require.True(t, found)
	assert.IsType(t, marker.Truncation{}, m)

	_, found = marker.First("a", int64(1))
	assert.False(t, found)
}

func TestCapturedErrorPreservesOriginal(t *testing.T) {
	cause := fmt.Errorf("lookup blew up")
	m := marker.CapturedError{Err: cause}
	assert.Equal(t, "lookup blew up", m.Message())
	assert.Equal(t, cause, m.AsError())
}

func TestForeignErrorChaining(t *testing.T) {
	inner := marker.ForeignError{Msg: "division by zero", Trace: "expr: 1/0"}
	outer := marker.ForeignError{Msg: "evaluating filter 'compute'", Cause: inner, Trace: "filter: compute"}

	assert.Equal(t, "evaluating filter 'compute': division by zero", outer.Error())
	assert.Equal(t, "filter: compute\n--- caused by ---\nexpr: 1/0", outer.FullTrace())

	// duplicate messages collapse instead of repeating
	dup := marker.ForeignError{Msg: "division by zero", Cause: inner}
	assert.Equal(t, "division by zero", dup.Error())
}

func TestReplaceBehaviorNumbersPlaceholders(t *testing.T) {
	b := marker.NewReplaceBehavior()

	result, err := b.HandleMarker(marker.Undefined{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "<< error 1 >>", result)

	result, err = b.HandleMarker(marker.Undefined{Name: "b"})
	require.NoError(t, err)
	assert.Equal(t, "<< error 2 >>", result)

	records := b.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "'a' is undefined", records[0].Message())
	assert.Equal(t, "'b' is undefined", records[1].Message())
}

func TestFailBehaviorTrips(t *testing.T) {
	_, err := marker.FailBehavior{}.HandleMarker(marker.VaultFailure{Err: fmt.Errorf("no key")})
	require.Error(t, err)
	assert.Equal(t, "value could not be decrypted: no key", err.Error())
}

func TestRouteBehaviorDispatchesByType(t *testing.T) {
	replace := marker.NewReplaceBehavior()
	b := marker.NewRouteBehavior()
	require.NoError(t, b.Route(marker.Truncation{}, replace))

	result, err := b.HandleMarker(marker.Truncation{Reason: "loop detected"})
	require.NoError(t, err)
	assert.Equal(t, "<< error 1 >>", result)
	require.Len(t, replace.Records(), 1)
	assert.Equal(t, "result was truncated: loop detected", replace.Records()[0].Message())
}

func TestRouteBehaviorFailsUnroutedTypes(t *testing.T) {
	b := marker.NewRouteBehavior()
	require.NoError(t, b.Route(marker.Truncation{}, marker.NewReplaceBehavior()))

	_, err := b.HandleMarker(marker.Undefined{Name: "host"})
	require.Error(t, err)
	assert.Equal(t, "'host' is undefined", err.Error())
}

func TestRouteBehaviorRejectsDuplicateRoutes(t *testing.T) {
	b := marker.NewRouteBehavior()
	require.NoError(t, b.Route(marker.Truncation{}, marker.FailBehavior{}))
	require.Error(t, b.Route(marker.Truncation{}, marker.FailBehavior{}))
}
