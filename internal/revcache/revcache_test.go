package revcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_DefaultForUnsetKey(t *testing.T) {
	c := New("unset")
	assert.Equal(t, "unset", c.Get("/nothing/here"))
}

func TestGet_CaseInsensitive(t *testing.T) {
	c := New("unset")
	c.Set("/Docs/Note.txt", "r1")
	assert.Equal(t, "r1", c.Get("/docs/note.txt"))
	assert.Equal(t, "r1", c.Get("/DOCS/NOTE.TXT"))
}

func TestSet_PropagatesToAncestors(t *testing.T) {
	c := New("unset")
	c.Set("/a/b/doc.txt", "r1")

	assert.NotEqual(t, "unset", c.Get("/a/b/"))
	assert.NotEqual(t, "unset", c.Get("/a/"))
	assert.NotEqual(t, "unset", c.Get("/"))
}

func TestSet_ChangingChildChangesFolderTag(t *testing.T) {
	c := New("unset")
	c.Set("/a/doc.txt", "r1")
	before := c.Get("/a/")

	c.Set("/a/doc.txt", "r2")
	after := c.Get("/a/")

	assert.NotEqual(t, before, after)
}

// Folder tags must depend only on the set of (child, tag) pairs, not on the
// order the children were recorded in.
func TestFolderTag_OrderIndependent(t *testing.T) {
	first := New("unset")
	first.Set("/f/a.txt", "ra")
	first.Set("/f/b.txt", "rb")
	first.Set("/f/c.txt", "rc")

	second := New("unset")
	second.Set("/f/c.txt", "rc")
	second.Set("/f/a.txt", "ra")
	second.Set("/f/b.txt", "rb")

	require.Equal(t, first.Get("/f/"), second.Get("/f/"))
	require.Equal(t, first.Get("/"), second.Get("/"))
}

func TestDelete_RemovesContribution(t *testing.T) {
	c := New("unset")
	c.Set("/f/a.txt", "ra")
	withOnlyA := c.Get("/f/")

	c.Set("/f/b.txt", "rb")
	require.NotEqual(t, withOnlyA, c.Get("/f/"))

	c.Delete("/f/b.txt")
	assert.Equal(t, withOnlyA, c.Get("/f/"), "deleting a child must restore the previous folder tag")

	c.Delete("/f/a.txt")
	assert.Equal(t, "unset", c.Get("/f/"), "folder tag clears once the last child is gone")
}

func TestSet_EmptyTagActsAsDelete(t *testing.T) {
	c := New("unset")
	c.Set("/f/a.txt", "ra")
	c.Set("/f/a.txt", "")
	assert.Equal(t, "unset", c.Get("/f/a.txt"))
	assert.Equal(t, "unset", c.Get("/f/"))
}

// A deactivate/set*/activate bulk sequence must end up with the same folder
// tags as individual propagating sets.
func TestActivatePropagation_RebuildMatchesIncremental(t *testing.T) {
	incremental := New("unset")
	incremental.Set("/a/b/one.txt", "r1")
	incremental.Set("/a/b/two.txt", "r2")
	incremental.Set("/a/three.txt", "r3")

	bulk := New("unset")
	bulk.DeactivatePropagation()
	bulk.Set("/a/b/one.txt", "r1")
	bulk.Set("/a/b/two.txt", "r2")
	bulk.Set("/a/three.txt", "r3")
	bulk.ActivatePropagation()

	assert.Equal(t, incremental.Get("/a/b/"), bulk.Get("/a/b/"))
	assert.Equal(t, incremental.Get("/a/"), bulk.Get("/a/"))
	assert.Equal(t, incremental.Get("/"), bulk.Get("/"))
}

func TestDeactivatePropagation_SuspendsAncestorUpdates(t *testing.T) {
	c := New("unset")
	c.DeactivatePropagation()
	c.Set("/a/doc.txt", "r1")

	assert.Equal(t, "unset", c.Get("/a/"), "folder tag must not move while propagation is off")

	c.ActivatePropagation()
	assert.NotEqual(t, "unset", c.Get("/a/"))
}
