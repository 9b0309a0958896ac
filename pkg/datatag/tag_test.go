// Copyright 2024 The Templar Authors.
// SPDX-License-Identifier: Apache-2.0

package datatag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"templar.dev/templar/pkg/datatag"
	"templar.dev/templar/pkg/orderedmap"
)

func TestWithTagNoTagsReturnsOriginal(t *testing.T) {
	result, err := datatag.WithTag("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestWithTagNilAndBoolNoOp(t *testing.T) {
	result, err := datatag.WithTag(nil, datatag.Trusted)
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = datatag.WithTag(true, datatag.Trusted)
	require.NoError(t, err)
	assert.Equal(t, true, result)
	assert.Empty(t, datatag.TagsOf(result))
}

func TestWithTagUnsupportedType(t *testing.T) {
	_, err := datatag.WithTag(struct{}{}, datatag.Trusted)
	require.Error(t, err)
	assert.IsType(t, datatag.NotTaggableError{}, err)

	// plain int is outside the native value model; int64 is the shape
	_, err = datatag.WithTag(42, datatag.Trusted)
	require.Error(t, err)
}

func TestSameTypeRetagReplaces(t *testing.T) {
	first := datatag.Origin{Path: "a.tpl", Line: 1}
	second := datatag.Origin{Path: "b.tpl", Line: 7}

	tagged := datatag.MustWithTag("val", first)
	tagged = datatag.MustWithTag(tagged, second)

	tags := datatag.TagsOf(tagged)
	require.Len(t, tags, 1)
	assert.Equal(t, second, tags[0])
}

func TestTagsAccumulateAcrossTypes(t *testing.T) {
	tagged := datatag.MustWithTag("val", datatag.Trusted)
	tagged = datatag.MustWithTag(tagged, datatag.Origin{Path: "x.tpl", Line: 3})

	assert.True(t, datatag.IsTrusted(tagged))
	origin, found := datatag.OriginOf(tagged)
	require.True(t, found)
	assert.Equal(t, "x.tpl:3", origin.String())
	assert.Len(t, datatag.TagsOf(tagged), 2)
}

func TestNativeValueLossless(t *testing.T) {
	items := []interface{}{"a", int64(1)}
	tagged := datatag.MustWithTag(items, datatag.Trusted)

	native := datatag.NativeValue(tagged)
	assert.Equal(t, items, native)
	assert.Empty(t, datatag.TagsOf(native))

	m := orderedmap.NewMap()
	m.Set("k", "v")
	taggedMap := datatag.MustWithTag(m, datatag.Trusted)
	// same backing map survives the round trip
	assert.Same(t, m, datatag.NativeValue(taggedMap))
}

func TestUntag(t *testing.T) {
	tagged := datatag.MustWithTag("val", datatag.Trusted, datatag.Origin{Path: "x", Line: 1})

	withoutTrust := datatag.Untag(tagged, datatag.TrustedAsTemplateType)
	assert.False(t, datatag.IsTrusted(withoutTrust))
	assert.True(t, datatag.HasTag(withoutTrust, datatag.OriginType))

	assert.Equal(t, "val", datatag.Untag(tagged))
	assert.Equal(t, "plain", datatag.Untag("plain"))
}

func TestCopyTagsPropagates(t *testing.T) {
	src := datatag.MustWithTag("secret", datatag.Trusted, datatag.Origin{Path: "v.yml", Line: 2})

	dst, err := datatag.CopyTags(src, "derived")
	require.NoError(t, err)
	assert.True(t, datatag.IsTrusted(dst))
	assert.True(t, datatag.HasTag(dst, datatag.OriginType))
	assert.Equal(t, "derived", datatag.NativeValue(dst))
}

func TestCopyTagsVaultedValueVeto(t *testing.T) {
	vaulted := datatag.VaultedValue{Ciphertext: "$VAULT;1.1;AES256..."}
	src := datatag.MustWithTag("secret", vaulted, datatag.Trusted)

	// same plaintext keeps the ciphertext association
	same, err := datatag.CopyTags(src, "secret")
	require.NoError(t, err)
	assert.True(t, datatag.HasTag(same, datatag.VaultedValueType))

	// a transformed value loses it but keeps other tags
	changed, err := datatag.CopyTags(src, "SECRET")
	require.NoError(t, err)
	assert.False(t, datatag.HasTag(changed, datatag.VaultedValueType))
	assert.True(t, datatag.IsTrusted(changed))
}

func TestNewDeprecatedValidation(t *testing.T) {
	_, err := datatag.NewDeprecated("", "", "", "")
	require.Error(t, err)

	_, err = datatag.NewDeprecated("use other", "not-a-version", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "removal version")

	_, err = datatag.NewDeprecated("use other", "2.19.0", "31-12-2024", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "removal date")

	dep, err := datatag.NewDeprecated("use other", "2.19.0", "2024-12-31", "core")
	require.NoError(t, err)
	ver, found := dep.RemovalVersion()
	require.True(t, found)
	assert.Equal(t, "2.19.0", ver.String())
}

func TestTupleImmutable(t *testing.T) {
	backing := []interface{}{"a", "b"}
	tuple := datatag.NewTuple(backing...)

	backing[0] = "mutated"
	assert.Equal(t, "a", tuple.Index(0))

	items := tuple.Items()
	items[1] = "mutated"
	assert.Equal(t, "b", tuple.Index(1))
	assert.Equal(t, 2, tuple.Len())
	assert.Equal(t, "(a, b)", tuple.String())
}
