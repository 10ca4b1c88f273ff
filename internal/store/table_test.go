package store

import (
	"testing"

	"github.com/kilupskalvis/minard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_PutEmptyKeepsIdentity(t *testing.T) {
	tbl := NewTable[models.Commit](models.TypeCommit)
	assert.Same(t, tbl, tbl.Put())
}

func TestTable_PutTwiceEqualsOnce(t *testing.T) {
	c := models.Commit{ID: "c1", Hash: "c1", Message: "first"}

	once := NewTable[models.Commit](models.TypeCommit).Put(c)
	twice := once.Put(c)

	assert.Same(t, once, twice)
	assert.Equal(t, once, NewTable[models.Commit](models.TypeCommit).Put(c, c))
}

func TestTable_PutReplaces(t *testing.T) {
	tbl := NewTable[models.Commit](models.TypeCommit).
		Put(models.Commit{ID: "c1", Message: "old"})
	next := tbl.Put(models.Commit{ID: "c1", Message: "new"})

	require.NotSame(t, tbl, next)
	got, ok := next.Entity("c1")
	require.True(t, ok)
	assert.Equal(t, "new", got.Message)

	old, _ := tbl.Entity("c1")
	assert.Equal(t, "old", old.Message)
}

func TestTable_PutErrorDoesNotRegress(t *testing.T) {
	tbl := NewTable[models.Branch](models.TypeBranch).
		Put(models.Branch{ID: "b1", Name: "main"})

	next := tbl.PutError(&models.FetchError{Type: models.TypeBranch, ID: "b1", Err: "boom"})
	assert.Same(t, tbl, next)

	slot, ok := next.Get("b1")
	require.True(t, ok)
	assert.True(t, slot.Valid())
}

func TestTable_PutErrorOnAbsentAndErrorSlots(t *testing.T) {
	tbl := NewTable[models.Branch](models.TypeBranch)

	first := tbl.PutError(&models.FetchError{Type: models.TypeBranch, ID: "b1", Err: "first"})
	slot, ok := first.Get("b1")
	require.True(t, ok)
	require.False(t, slot.Valid())
	assert.Equal(t, "first", slot.Err.Err)

	second := first.PutError(&models.FetchError{Type: models.TypeBranch, ID: "b1", Err: "second"})
	slot, _ = second.Get("b1")
	assert.Equal(t, "second", slot.Err.Err)

	_, ok = second.Entity("b1")
	assert.False(t, ok)
}

func TestTable_EntityReplacesError(t *testing.T) {
	tbl := NewTable[models.Branch](models.TypeBranch).
		PutError(&models.FetchError{Type: models.TypeBranch, ID: "b1", Err: "boom"}).
		Put(models.Branch{ID: "b1", Name: "main"})

	b, ok := tbl.Entity("b1")
	require.True(t, ok)
	assert.Equal(t, "main", b.Name)
}

func TestTable_Remove(t *testing.T) {
	tbl := NewTable[models.Comment](models.TypeComment).Put(models.Comment{ID: "m1"})

	next, found := tbl.Remove("m1")
	assert.True(t, found)
	assert.Equal(t, 0, next.Len())
	assert.Equal(t, 1, tbl.Len())

	same, found := next.Remove("m1")
	assert.False(t, found)
	assert.Same(t, next, same)
}

func TestTable_Update(t *testing.T) {
	tbl := NewTable[models.Deployment](models.TypeDeployment).
		Put(models.Deployment{ID: "d1", Status: models.DeploymentRunning})

	next := tbl.Update("d1", func(d models.Deployment) models.Deployment {
		d.Status = models.DeploymentSuccess
		return d
	})
	d, _ := next.Entity("d1")
	assert.Equal(t, models.DeploymentSuccess, d.Status)

	noop := next.Update("d1", func(d models.Deployment) models.Deployment { return d })
	assert.Same(t, next, noop)

	missing := next.Update("d2", func(d models.Deployment) models.Deployment {
		d.Status = models.DeploymentFailed
		return d
	})
	assert.Same(t, next, missing)
}

func TestTable_IDsSorted(t *testing.T) {
	tbl := NewTable[models.Project](models.TypeProject).
		Put(models.Project{ID: "b"}, models.Project{ID: "a"}, models.Project{ID: "c"})
	assert.Equal(t, []string{"a", "b", "c"}, tbl.IDs())
}
