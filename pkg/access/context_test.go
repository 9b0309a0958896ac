// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package access_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"templar.dev/templar/pkg/access"
	"templar.dev/templar/pkg/datatag"
)

type recordingObserver struct {
	name       string
	kind       string
	interested []string
	log        *[]string
}

func (o recordingObserver) Kind() string {
	if len(o.kind) > 0 {
		return o.kind
	}
	return "recording"
}

func (o recordingObserver) InterestedIn() []string { return o.interested }

func (o recordingObserver) ValueAccessed(value interface{}) {
	*o.log = append(*o.log, fmt.Sprintf("%s:%v", o.name, datatag.NativeValue(value)))
}

func TestNotifyAccessInnermostFirst(t *testing.T) {
	var log []string
	ctx := access.NewContext()

	outer := ctx.Push(recordingObserver{name: "outer", log: &log}, false)
	inner := ctx.Push(recordingObserver{name: "inner", log: &log}, false)

	ctx.NotifyAccess("v")
	assert.Equal(t, []string{"inner:v", "outer:v"}, log)

	inner.Pop()
	outer.Pop()
	assert.Equal(t, 0, ctx.Depth())
}

func TestNotifyAccessMasksOnlySameKind(t *testing.T) {
	var log []string
	ctx := access.NewContext()

	ctx.Push(recordingObserver{name: "audit-old", kind: "audit", log: &log}, false)
	ctx.Push(recordingObserver{name: "logger", kind: "logger", log: &log}, false)
	ctx.Push(recordingObserver{name: "audit-new", kind: "audit", log: &log}, true)

	// the masking audit frame hides the older audit frame only
	ctx.NotifyAccess("v")
	assert.Equal(t, []string{"audit-new:v", "logger:v"}, log)
}

func TestNotifyAccessMaskingDoesNotOutliveFrame(t *testing.T) {
	var log []string
	ctx := access.NewContext()

	ctx.Push(recordingObserver{name: "audit-old", kind: "audit", log: &log}, false)
	masking := ctx.Push(recordingObserver{name: "audit-new", kind: "audit", log: &log}, true)
	masking.Pop()

	ctx.NotifyAccess("v")
	assert.Equal(t, []string{"audit-old:v"}, log)
}

func TestNotifyAccessFiltersByInterest(t *testing.T) {
	var log []string
	ctx := access.NewContext()

	ctx.Push(recordingObserver{name: "all", log: &log}, false)
	ctx.Push(recordingObserver{name: "dep-only", kind: "dep", interested: []string{datatag.DeprecatedType}, log: &log}, false)

	ctx.NotifyAccess("plain")
	assert.Equal(t, []string{"all:plain"}, log)

	dep, err := datatag.NewDeprecated("old", "", "", "")
	require.NoError(t, err)
	ctx.NotifyAccess(datatag.MustWithTag("tagged", dep))
	assert.Equal(t, []string{"all:plain", "dep-only:tagged", "all:tagged"}, log)
}

func TestNotifyAccessInterestInValueType(t *testing.T) {
	var log []string
	ctx := access.NewContext()

	ctx.Push(recordingObserver{name: "strings", interested: []string{"string"}, log: &log}, false)

	ctx.NotifyAccess(int64(7))
	ctx.NotifyAccess("s")
	assert.Equal(t, []string{"strings:s"}, log)
}

func TestPopOutOfOrderPanics(t *testing.T) {
	var log []string
	ctx := access.NewContext()

	outer := ctx.Push(recordingObserver{name: "outer", log: &log}, false)
	ctx.Push(recordingObserver{name: "inner", log: &log}, false)

	assert.PanicsWithValue(t,
		"Expected to pop access frame at depth 1, but stack is at depth 2",
		func() { outer.Pop() })
}

type warnRecorder struct {
	warnings []string
}

func (r *warnRecorder) Warnf(pattern string, args ...interface{}) {
	r.warnings = append(r.warnings, fmt.Sprintf(pattern, args...))
}

func TestDeprecationObserverWarnsOnce(t *testing.T) {
	recorder := &warnRecorder{}
	obs, err := access.NewDeprecationObserver(recorder, "2.18.0")
	require.NoError(t, err)

	dep, err := datatag.NewDeprecated("old_setting is renamed", "2.20.0", "", "core")
	require.NoError(t, err)
	tagged := datatag.MustWithTag("val", dep)

	obs.ValueAccessed(tagged)
	obs.ValueAccessed(tagged)
	obs.ValueAccessed("untagged")

	require.Len(t, recorder.warnings, 1)
	assert.Equal(t, "Deprecation: old_setting is renamed (deprecated by core); will be removed in version 2.20.0\n", recorder.warnings[0])
}

func TestDeprecationObserverPastRemoval(t *testing.T) {
	recorder := &warnRecorder{}
	obs, err := access.NewDeprecationObserver(recorder, "3.0.0")
	require.NoError(t, err)

	dep, err := datatag.NewDeprecated("gone soon", "2.20.0", "", "")
	require.NoError(t, err)

	obs.ValueAccessed(datatag.MustWithTag("val", dep))

	require.Len(t, recorder.warnings, 1)
	assert.Contains(t, recorder.warnings[0], "was scheduled for removal in version 2.20.0")
}
