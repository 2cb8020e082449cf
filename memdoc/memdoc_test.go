// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package memdoc_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molecula/pvdb/memdoc"
)

func TestBuilder(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		b := memdoc.NewBuilder()
		b.Scalar("value", int64(7))
		g := b.Struct("grp")
		g.Scalar("val", "x")
		doc, err := b.Build()
		require.NoError(t, err)

		var names []string
		for _, f := range doc.Root().Fields() {
			names = append(names, f.Name())
		}
		if diff := cmp.Diff([]string{"value", "grp"}, names); diff != "" {
			t.Fatalf("field order mismatch (-want +got):\n%s", diff)
		}

		assert.Equal(t, int64(7), doc.ScalarAt("value").Get())
		assert.Equal(t, "x", doc.ScalarAt("grp,val").Get())
	})

	t.Run("DuplicateName", func(t *testing.T) {
		b := memdoc.NewBuilder()
		b.Scalar("value", nil)
		b.Scalar("value", nil)
		_, err := b.Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("EmptyName", func(t *testing.T) {
		b := memdoc.NewBuilder()
		b.Scalar("", nil)
		if _, err := b.Build(); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestDocument_Lookup(t *testing.T) {
	b := memdoc.NewBuilder()
	b.Scalar("value", nil)
	b.Struct("grp").Scalar("val", nil)
	doc, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, doc.Root(), doc.Lookup(""))
	assert.Equal(t, "val", doc.Lookup("grp,val").Name())
	assert.Nil(t, doc.Lookup("nope"))
	assert.Nil(t, doc.Lookup("grp,nope"))
	assert.Nil(t, doc.Lookup("value,deeper"), "scalar has no children")
	assert.Nil(t, doc.ScalarAt("grp"), "structure is not a scalar")
}

func TestScalar_PutInvokesPostHandler(t *testing.T) {
	b := memdoc.NewBuilder()
	b.Scalar("value", nil)
	doc, err := b.Build()
	require.NoError(t, err)

	h := &countHandler{}
	s := doc.ScalarAt("value")
	s.SetPostHandler(h)

	s.Put(1)
	s.Put(2)
	assert.Equal(t, 2, h.calls)
	assert.Equal(t, 2, s.Get())
}

type countHandler struct {
	calls int
}

func (h *countHandler) PostPut() { h.calls++ }

func TestFromPaths(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		doc, err := memdoc.FromPaths([]string{"value", "grp,val", "grp,other", "grp,sub,leaf"})
		require.NoError(t, err)

		assert.NotNil(t, doc.ScalarAt("value"))
		assert.NotNil(t, doc.ScalarAt("grp,val"))
		assert.NotNil(t, doc.ScalarAt("grp,other"))
		assert.NotNil(t, doc.ScalarAt("grp,sub,leaf"))

		// "grp" is one shared structure, not three.
		var tops []string
		for _, f := range doc.Root().Fields() {
			tops = append(tops, f.Name())
		}
		if diff := cmp.Diff([]string{"value", "grp"}, tops); diff != "" {
			t.Fatalf("top level mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ScalarStructClash", func(t *testing.T) {
		if _, err := memdoc.FromPaths([]string{"grp", "grp,val"}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("EmptyPath", func(t *testing.T) {
		if _, err := memdoc.FromPaths([]string{""}); err == nil {
			t.Fatal("expected error")
		}
	})
}
