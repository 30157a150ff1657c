package scope

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBag_MergeAddsAndOverwritesScalars(t *testing.T) {
	dst := Bag{"young": int64(1), "table": "a"}
	dst.Merge(Bag{"young": int64(5), "old": int64(2)})

	want := Bag{"young": int64(5), "old": int64(2), "table": "a"}
	if diff := cmp.Diff(want, dst); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestBag_MergeRecursesIntoNestedBags(t *testing.T) {
	dst := Bag{"entries": Bag{"begin": int64(0), "end": int64(64)}}
	dst.Merge(Bag{"entries": Bag{"live": int64(10), "end": int64(32)}})

	want := Bag{"entries": Bag{"begin": int64(0), "end": int64(32), "live": int64(10)}}
	if diff := cmp.Diff(want, dst); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestBag_MergeDoesNotAliasSource(t *testing.T) {
	src := Bag{"nested": Bag{"x": int64(1)}}
	dst := NewBag()
	dst.Merge(src)

	src.Lookup("nested").Set("x", 99)

	got, ok := dst.Lookup("nested").Int("x")
	require.True(t, ok)
	assert.Equal(t, int64(1), got)
}

func TestBag_SetNormalizes(t *testing.T) {
	b := NewBag()
	b.Set("int", 3)
	b.Set("map", map[string]any{"inner": 4})

	v, ok := b.Int("int")
	require.True(t, ok)
	assert.Equal(t, int64(3), v)

	inner, ok := b.Lookup("map").Int("inner")
	require.True(t, ok)
	assert.Equal(t, int64(4), inner)
}

func TestBag_SubCreatesOnce(t *testing.T) {
	b := NewBag()
	b.Sub("tbl").Set("bins_num", int64(8))
	b.Sub("tbl").Set("capacity", int64(16))

	assert.Equal(t, Bag{"tbl": Bag{"bins_num": int64(8), "capacity": int64(16)}}, b)
}

func TestBag_Flatten(t *testing.T) {
	b := Bag{
		"table": "id2ref",
		"entries": Bag{
			"begin": int64(0),
			"count": int64(4),
		},
	}

	want := map[string]any{
		"table":         "id2ref",
		"entries.begin": int64(0),
		"entries.count": int64(4),
	}
	if diff := cmp.Diff(want, b.Flatten()); diff != "" {
		t.Errorf("Flatten() mismatch (-want +got):\n%s", diff)
	}
}

func TestBag_MapAndClone(t *testing.T) {
	b := Bag{"a": Bag{"b": int64(1)}}

	m := b.Map()
	inner, ok := m["a"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), inner["b"])

	c := b.Clone()
	c.Lookup("a").Set("b", 2)
	v, _ := b.Lookup("a").Int("b")
	assert.Equal(t, int64(1), v)
}

func TestBag_Keys(t *testing.T) {
	b := Bag{"c": int64(1), "a": int64(2), "b": int64(3)}
	assert.Equal(t, []string{"a", "b", "c"}, b.Keys())
	assert.False(t, b.Empty())
	assert.True(t, NewBag().Empty())
}
