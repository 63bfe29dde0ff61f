package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
)

func ids(docs []model.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestLocal_AppendPreservesOrder(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(model.Document{ID: "b"}))
	require.NoError(t, c.Append(model.Document{ID: "a"}))
	require.NoError(t, c.Append(model.Document{ID: "c"}))

	assert.Equal(t, []string{"b", "a", "c"}, ids(c.Snapshot()))
	assert.Equal(t, 3, c.Len())
}

func TestLocal_AppendRejectsDuplicate(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(model.Document{ID: "a", Title: "first"}))

	err := c.Append(model.Document{ID: "a", Title: "second"})
	assert.ErrorIs(t, err, ErrDuplicateID)

	doc, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", doc.Title)
	assert.Equal(t, 1, c.Len())
}

func TestLocal_Patch(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(model.Document{ID: "a", Title: "old"}))

	ok := c.Patch("a", func(d *model.Document) {
		d.Title = "new"
		d.ID = "hijack"
	})
	assert.True(t, ok)

	doc, _ := c.Get("a")
	assert.Equal(t, "new", doc.Title)
	assert.Equal(t, "a", doc.ID)

	called := false
	assert.False(t, c.Patch("missing", func(*model.Document) { called = true }))
	assert.False(t, called)
}

func TestLocal_Remove(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(model.Document{ID: "a"}))
	require.NoError(t, c.Append(model.Document{ID: "b"}))
	require.NoError(t, c.Append(model.Document{ID: "c"}))

	assert.True(t, c.Remove("b"))
	assert.False(t, c.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, ids(c.Snapshot()))

	require.NoError(t, c.Append(model.Document{ID: "b"}))
	assert.Equal(t, []string{"a", "c", "b"}, ids(c.Snapshot()))
}

func TestLocal_SnapshotIsACopy(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(model.Document{ID: "a", Recipients: []string{"x"}}))

	snap := c.Snapshot()
	snap[0].Title = "mutated"
	snap[0].Recipients[0] = "mutated"

	doc, _ := c.Get("a")
	assert.Empty(t, doc.Title)
	assert.Equal(t, []string{"x"}, doc.Recipients)
}
