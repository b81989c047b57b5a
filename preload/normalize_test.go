package preload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// treeAsMap flattens a tree into nested maps for order-independent
// comparison.
func treeAsMap(t *Tree) map[string]any {
	out := make(map[string]any, t.Len())
	for _, name := range t.Names() {
		out[name] = treeAsMap(t.Child(name))
	}
	return out
}

func TestNormalizeBareName(t *testing.T) {
	tree, err := Normalize("foo", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"foo": map[string]any{}}, treeAsMap(tree))
}

func TestNormalizePair(t *testing.T) {
	tree, err := Normalize([]any{P("foo", "bar")}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"foo": map[string]any{"bar": map[string]any{}},
	}, treeAsMap(tree))
}

func TestNormalizeMixedList(t *testing.T) {
	tree, err := Normalize([]any{
		P("foo", []any{"bar", P("baz", "bat")}),
		P("this", "that"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"this": map[string]any{"that": map[string]any{}},
		"foo": map[string]any{
			"bar": map[string]any{},
			"baz": map[string]any{"bat": map[string]any{}},
		},
	}, treeAsMap(tree))
}

func TestNormalizeStringList(t *testing.T) {
	tree, err := Normalize([]string{"a", "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tree.Names())
}

func TestNormalizeConflictWithAccumulator(t *testing.T) {
	acc, err := Normalize([]any{P("foo", nil)}, nil)
	require.NoError(t, err)

	_, err = Normalize("foo", acc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreloadConflict)
	assert.Contains(t, err.Error(), `"foo"`)
}

func TestNormalizeConflictWithinList(t *testing.T) {
	_, err := Normalize([]any{"foo", P("foo", "bar")}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreloadConflict)
	assert.Contains(t, err.Error(), `"foo"`)
}

func TestNormalizeConflictAtNestedLevel(t *testing.T) {
	_, err := Normalize([]any{P("foo", []any{"bar", "bar"})}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreloadConflict)
	assert.Contains(t, err.Error(), `"bar"`)
}

func TestNormalizeSameNameAtDifferentLevels(t *testing.T) {
	tree, err := Normalize([]any{P("foo", "foo")}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"foo": map[string]any{"foo": map[string]any{}},
	}, treeAsMap(tree))
}

func TestNormalizeInvalidValue(t *testing.T) {
	_, err := Normalize(123, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPreload)
	assert.Contains(t, err.Error(), "123")
}

func TestNormalizeInvalidNestedValue(t *testing.T) {
	_, err := Normalize([]any{P("foo", 4.5)}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPreload)
	assert.Contains(t, err.Error(), "4.5")
}

func TestNormalizeTreeRequest(t *testing.T) {
	sub, err := Normalize("bar", nil)
	require.NoError(t, err)

	tree, err := Normalize([]any{P("foo", sub), "baz"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"foo": map[string]any{"bar": map[string]any{}},
		"baz": map[string]any{},
	}, treeAsMap(tree))
}

func TestNormalizeDoesNotMutateAccumulator(t *testing.T) {
	acc, err := Normalize("a", nil)
	require.NoError(t, err)

	out, err := Normalize("b", acc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, acc.Names())
	assert.Equal(t, []string{"a", "b"}, out.Names())
}

func TestTreeInsertConflict(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Insert("x", nil))
	err := tree.Insert("x", NewTree())
	assert.ErrorIs(t, err, ErrPreloadConflict)
}

func TestTreeString(t *testing.T) {
	tree, err := Normalize([]any{P("a", "b"), "c"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "{a: {b}, c}", tree.String())
}
