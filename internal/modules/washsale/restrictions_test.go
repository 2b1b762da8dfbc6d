package washsale

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

func TestRestriction_ActiveAt(t *testing.T) {
	r := NewRestriction("owner-1", "VTI", asOf, 30, "harvested loss")

	assert.True(t, r.ActiveAt(asOf))
	assert.True(t, r.ActiveAt(asOf.AddDate(0, 0, 30)))
	assert.False(t, r.ActiveAt(asOf.AddDate(0, 0, 31)))
	assert.False(t, r.ActiveAt(asOf.AddDate(0, 0, -1)))
	assert.NotEmpty(t, r.ID)
}

func TestRestrictionSet_ActiveFor_ScopedByOwner(t *testing.T) {
	rs := NewRestrictionSet()
	rs.Add(NewRestriction("owner-1", "VTI", asOf, 30, "harvested loss"))

	assert.Len(t, rs.ActiveFor("owner-1", "VTI", asOf.AddDate(0, 0, 10)), 1)
	assert.Empty(t, rs.ActiveFor("owner-2", "VTI", asOf.AddDate(0, 0, 10)))
	assert.Empty(t, rs.ActiveFor("owner-1", "VXUS", asOf.AddDate(0, 0, 10)))
	assert.Empty(t, rs.ActiveFor("owner-1", "VTI", asOf.AddDate(0, 0, 45)))
}

func TestRestrictionSet_Snapshot_Isolated(t *testing.T) {
	rs := NewRestrictionSet()
	rs.Add(NewRestriction("owner-1", "VTI", asOf, 30, "harvested loss"))

	snap := rs.Snapshot()
	rs.Add(NewRestriction("owner-1", "VXUS", asOf, 30, "harvested loss"))

	// Additions after the snapshot are invisible to it
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, 1, snap.Len())
	assert.Empty(t, snap.ActiveFor("owner-1", "VXUS", asOf))
}

func TestRestrictionSet_Compact(t *testing.T) {
	rs := NewRestrictionSet()
	rs.Add(NewRestriction("owner-1", "VTI", asOf.AddDate(0, 0, -90), 30, "old"))
	rs.Add(NewRestriction("owner-1", "VXUS", asOf.AddDate(0, 0, -5), 30, "recent"))

	removed := rs.Compact(asOf)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, rs.Len())
	assert.Len(t, rs.ActiveFor("owner-1", "VXUS", asOf), 1)
}

func TestRestrictionSet_ExportImport(t *testing.T) {
	rs := NewRestrictionSet()
	rs.Add(NewRestriction("owner-1", "VTI", asOf, 30, "harvested loss"))
	rs.Add(NewRestriction("owner-2", "VXUS", asOf.AddDate(0, 0, -10), 30, "harvested loss"))

	data, err := rs.Export()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := ImportRestrictionSet(data)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Len())

	active := restored.ActiveFor("owner-1", "VTI", asOf.AddDate(0, 0, 15))
	require.Len(t, active, 1)
	assert.Equal(t, "harvested loss", active[0].Reason)
	assert.True(t, active[0].EndDate.Equal(asOf.AddDate(0, 0, 30)))
}

func TestImportRestrictionSet_RejectsGarbage(t *testing.T) {
	_, err := ImportRestrictionSet([]byte("not msgpack"))
	require.Error(t, err)
}
