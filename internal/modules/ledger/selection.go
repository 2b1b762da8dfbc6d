package ledger

import (
	"fmt"
	"sort"
)

// LotSelection defines the order in which lots fill an aggregate sell.
type LotSelection int

const (
	// HIFO (Highest-In, First-Out) sells the highest cost basis lots first,
	// minimizing the realized gain of an unattributed sell.
	HIFO LotSelection = iota
	// FIFO (First-In, First-Out) sells the earliest acquired lots first.
	FIFO
)

func (m LotSelection) String() string {
	switch m {
	case HIFO:
		return "hifo"
	case FIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// ParseLotSelection parses a string into a LotSelection.
func ParseLotSelection(s string) (LotSelection, error) {
	switch s {
	case "hifo", "":
		return HIFO, nil
	case "fifo":
		return FIFO, nil
	default:
		return 0, fmt.Errorf("unknown lot selection method: %q", s)
	}
}

// Allocation assigns part of an aggregate sell to one lot
type Allocation struct {
	LotID    string
	Quantity float64
}

// AllocateSell splits an aggregate sell quantity across the security's
// sellable lots in the order the selection method dictates. Returns an
// error when the sellable total cannot cover the quantity; partial fills
// are never returned.
func (b *Book) AllocateSell(securityID string, quantity float64, method LotSelection) ([]Allocation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("sell quantity must be positive, got %v", quantity)
	}

	open := b.OpenLots(securityID)
	switch method {
	case HIFO:
		sort.SliceStable(open, func(i, j int) bool {
			return open[i].Lot.CostBasis > open[j].Lot.CostBasis
		})
	case FIFO:
		sort.SliceStable(open, func(i, j int) bool {
			return open[i].Lot.AcquisitionDate.Before(open[j].Lot.AcquisitionDate)
		})
	default:
		return nil, fmt.Errorf("unknown lot selection method: %d", method)
	}

	var allocations []Allocation
	need := quantity
	for _, ol := range open {
		if need <= quantityEpsilon {
			break
		}
		if ol.Sellable <= 0 {
			continue
		}
		take := ol.Sellable
		if take > need {
			take = need
		}
		allocations = append(allocations, Allocation{LotID: ol.Lot.ID, Quantity: take})
		need -= take
	}

	if need > quantityEpsilon {
		return nil, fmt.Errorf("security %s: cannot allocate sell of %v, short by %v", securityID, quantity, need)
	}
	return allocations, nil
}
