// Package washsale provides wash-sale rule enforcement: an advisory guard
// over loss sales and an append-only restriction store scoped by owner.
package washsale

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Restriction blocks loss realization in one security for one owner for
// a bounded window. Restrictions are append-only: they are never edited,
// only added and eventually compacted away after expiry.
type Restriction struct {
	ID         string    `json:"id" msgpack:"id"`
	OwnerID    string    `json:"owner_id" msgpack:"owner_id"`
	SecurityID string    `json:"security_id" msgpack:"security_id"`
	StartDate  time.Time `json:"start_date" msgpack:"start_date"`
	EndDate    time.Time `json:"end_date" msgpack:"end_date"`
	Reason     string    `json:"reason" msgpack:"reason"`
	CreatedAt  time.Time `json:"created_at" msgpack:"created_at"`
}

// ActiveAt reports whether the restriction covers the given instant.
func (r Restriction) ActiveAt(at time.Time) bool {
	return !at.Before(r.StartDate) && !at.After(r.EndDate)
}

// NewRestriction builds a forward-window restriction starting at the sale
// date. Window widening via the buffer fraction is applied by the caller
// through windowDays.
func NewRestriction(ownerID, securityID string, saleDate time.Time, windowDays int, reason string) Restriction {
	return Restriction{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		SecurityID: securityID,
		StartDate:  saleDate,
		EndDate:    saleDate.AddDate(0, 0, windowDays),
		Reason:     reason,
		CreatedAt:  saleDate,
	}
}

// RestrictionSet is the append-only restriction store. Reads during a
// batch go through Snapshot so parallel strategy runs observe one
// consistent state; writes happen only in the serialized harvest
// pre-pass and between batches.
type RestrictionSet struct {
	mu      sync.RWMutex
	byOwner map[string][]Restriction
}

// NewRestrictionSet creates an empty store.
func NewRestrictionSet() *RestrictionSet {
	return &RestrictionSet{byOwner: make(map[string][]Restriction)}
}

// Add appends a restriction. Existing entries are never modified.
func (rs *RestrictionSet) Add(r Restriction) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.byOwner[r.OwnerID] = append(rs.byOwner[r.OwnerID], r)
}

// ActiveFor returns the restrictions covering the security for the owner
// at the given instant.
func (rs *RestrictionSet) ActiveFor(ownerID, securityID string, at time.Time) []Restriction {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	var out []Restriction
	for _, r := range rs.byOwner[ownerID] {
		if r.SecurityID == securityID && r.ActiveAt(at) {
			out = append(out, r)
		}
	}
	return out
}

// Active returns every restriction active for the owner at the instant.
func (rs *RestrictionSet) Active(ownerID string, at time.Time) []Restriction {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	var out []Restriction
	for _, r := range rs.byOwner[ownerID] {
		if r.ActiveAt(at) {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the total number of stored restrictions, expired included.
func (rs *RestrictionSet) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	n := 0
	for _, list := range rs.byOwner {
		n += len(list)
	}
	return n
}

// Snapshot returns an independent copy of the store. Mutations to either
// side are invisible to the other.
func (rs *RestrictionSet) Snapshot() *RestrictionSet {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	snap := NewRestrictionSet()
	for owner, list := range rs.byOwner {
		copied := make([]Restriction, len(list))
		copy(copied, list)
		snap.byOwner[owner] = copied
	}
	return snap
}

// Compact drops restrictions that expired before the given instant.
func (rs *RestrictionSet) Compact(at time.Time) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	removed := 0
	for owner, list := range rs.byOwner {
		kept := list[:0]
		for _, r := range list {
			if r.EndDate.Before(at) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(rs.byOwner, owner)
		} else {
			rs.byOwner[owner] = kept
		}
	}
	return removed
}

// snapshotRecord is the wire shape of an exported store
type snapshotRecord struct {
	Version      int           `msgpack:"version"`
	Restrictions []Restriction `msgpack:"restrictions"`
}

const snapshotVersion = 1

// Export serializes the store to compact bytes. The engine itself never
// persists anything; callers carry these bytes between runs.
func (rs *RestrictionSet) Export() ([]byte, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	record := snapshotRecord{Version: snapshotVersion}
	for _, list := range rs.byOwner {
		record.Restrictions = append(record.Restrictions, list...)
	}
	data, err := msgpack.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to export restriction set: %w", err)
	}
	return data, nil
}

// ImportRestrictionSet rebuilds a store from exported bytes.
func ImportRestrictionSet(data []byte) (*RestrictionSet, error) {
	var record snapshotRecord
	if err := msgpack.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to import restriction set: %w", err)
	}
	if record.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported restriction snapshot version: %d", record.Version)
	}
	rs := NewRestrictionSet()
	for _, r := range record.Restrictions {
		rs.Add(r)
	}
	return rs, nil
}
