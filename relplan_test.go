package relplan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relplan/schema"
)

func buildTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	user := schema.New("user", "id", "name").
		HasMany("posts", "post").
		HasThrough("comments", "posts", "comments")
	post := schema.New("post", "id", "user_id", "title").
		BelongsTo("author", "user", schema.ForeignKey("user_id")).
		HasMany("comments", "comment", schema.ForeignKey("post_id"))
	comment := schema.New("comment", "id", "post_id", "body")

	reg, err := schema.NewBuilder().
		Add(user, post, comment).
		Build(context.Background())
	require.NoError(t, err)
	return reg
}

func TestBuildHasPopulatesForeignKey(t *testing.T) {
	reg := buildTestRegistry(t)
	owner := NewRecord("user", map[string]any{"id": 1})

	child, err := Build(reg, owner, "posts")
	require.NoError(t, err)
	assert.Equal(t, "post", child.Schema)
	assert.Equal(t, 1, child.Get("user_id"))
}

func TestBuildBelongsToLeavesKeyUnset(t *testing.T) {
	reg := buildTestRegistry(t)
	owner := NewRecord("post", map[string]any{"id": 10, "user_id": 3})

	related, err := Build(reg, owner, "author")
	require.NoError(t, err)
	assert.Equal(t, "user", related.Schema)
	// The owner holds the foreign key, so the built record carries none.
	assert.Nil(t, related.Get("id"))
}

func TestBuildThroughFails(t *testing.T) {
	reg := buildTestRegistry(t)
	owner := NewRecord("user", map[string]any{"id": 1})

	_, err := Build(reg, owner, "comments")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotBuildable)
}

func TestBuildUnknownRelation(t *testing.T) {
	reg := buildTestRegistry(t)
	owner := NewRecord("user", map[string]any{"id": 1})

	_, err := Build(reg, owner, "nope")
	assert.ErrorIs(t, err, schema.ErrRelationNotFound)
}

func TestAssocFiltersNonNilKeys(t *testing.T) {
	reg := buildTestRegistry(t)
	records := []*Record{
		NewRecord("user", map[string]any{"id": 1}),
		NewRecord("user", map[string]any{"id": 2}),
		NewRecord("user", map[string]any{"id": nil}),
	}

	frag, err := Assoc(reg, records, "posts")
	require.NoError(t, err)
	query, args, err := frag.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id`, `user_id`, `title` FROM `posts` WHERE `user_id` IN (?,?)", query)
	assert.Equal(t, []any{1, 2}, args)
}

func TestAssocThrough(t *testing.T) {
	reg := buildTestRegistry(t)

	frag, err := AssocOne(reg, NewRecord("user", map[string]any{"id": 1}), "comments")
	require.NoError(t, err)
	query, args, err := frag.ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "SELECT DISTINCT")
	assert.Contains(t, query, "WHERE `users`.`id` IN (?)")
	assert.Equal(t, []any{1}, args)
}

func TestAssocEmptyInput(t *testing.T) {
	reg := buildTestRegistry(t)

	_, err := Assoc(reg, nil, "whatever")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestAssocUnknownRelation(t *testing.T) {
	reg := buildTestRegistry(t)

	_, err := Assoc(reg, []*Record{NewRecord("user", nil)}, "whatever")
	assert.ErrorIs(t, err, schema.ErrRelationNotFound)
}

func TestAssocHeterogeneousInput(t *testing.T) {
	reg := buildTestRegistry(t)
	records := []*Record{
		NewRecord("user", map[string]any{"id": 1}),
		NewRecord("post", map[string]any{"id": 2}),
	}

	_, err := Assoc(reg, records, "posts")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeterogeneousInput)
}

func TestLoaded(t *testing.T) {
	reg := buildTestRegistry(t)
	rel, err := reg.Resolve("user", "posts")
	require.NoError(t, err)

	rec := NewRecord("user", map[string]any{"id": 1})
	rec.SetNotLoaded(rel)
	assert.False(t, Loaded(rec.Assoc("posts")))

	rec.SetAssoc("posts", []*Record{})
	assert.True(t, Loaded(rec.Assoc("posts")))

	// An unset slot reads as nil, which counts as loaded.
	assert.True(t, Loaded(rec.Assoc("untouched")))
	assert.False(t, Loaded(&NotLoaded{Relation: "posts"}))
}
