package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hvkshetry/rebalancer/internal/domain"
)

var asOf = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

func newTestBook(t *testing.T) *Book {
	t.Helper()
	book, err := NewBook("strat-1", []domain.TaxLot{
		{
			ID:              "lot-old",
			SecurityID:      "VTI",
			StrategyID:      "strat-1",
			Quantity:        100,
			CostBasis:       150.0,
			AcquisitionDate: asOf.AddDate(-2, 0, 0),
		},
		{
			ID:              "lot-new",
			SecurityID:      "VTI",
			StrategyID:      "strat-1",
			Quantity:        50,
			CostBasis:       220.0,
			AcquisitionDate: asOf.AddDate(0, 0, -90),
		},
	})
	require.NoError(t, err)
	return book
}

func TestNewBook_RejectsInvalidLots(t *testing.T) {
	_, err := NewBook("s", []domain.TaxLot{{ID: "a", Quantity: 0}})
	require.Error(t, err)

	_, err = NewBook("s", []domain.TaxLot{
		{ID: "a", Quantity: 1, CostBasis: 1},
		{ID: "a", Quantity: 2, CostBasis: 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate lot id")
}

func TestHoldingDays_TermBoundary(t *testing.T) {
	lot := domain.TaxLot{AcquisitionDate: asOf.AddDate(0, 0, -364)}
	assert.Equal(t, 364, HoldingDays(lot, asOf))
	assert.Equal(t, domain.GainShortTerm, TermOf(lot, asOf))

	lot.AcquisitionDate = asOf.AddDate(0, 0, -365)
	assert.Equal(t, 365, HoldingDays(lot, asOf))
	assert.Equal(t, domain.GainLongTerm, TermOf(lot, asOf))
}

func TestBook_ReserveAndRelease(t *testing.T) {
	book := newTestBook(t)

	require.NoError(t, book.Reserve("lot-old", 60))
	assert.Equal(t, 40.0, book.SellableQuantity("lot-old"))
	assert.Equal(t, 100.0, book.Remaining("lot-old"))

	// Cannot reserve more than the sellable remainder
	err := book.Reserve("lot-old", 41)
	require.Error(t, err)

	book.Release("lot-old", 60)
	assert.Equal(t, 100.0, book.SellableQuantity("lot-old"))
}

func TestBook_Commit_RealizedGainAndTerm(t *testing.T) {
	book := newTestBook(t)

	// Long-term lot sold at a gain
	closed, err := book.Commit("lot-old", 40, 200.0, asOf)
	require.NoError(t, err)
	assert.Equal(t, domain.GainLongTerm, closed.Term)
	assert.Equal(t, "2000", closed.Gain.String()) // 40 * (200 - 150)
	assert.Equal(t, 60.0, book.Remaining("lot-old"))

	// Short-term lot sold at a loss
	closed, err = book.Commit("lot-new", 10, 200.0, asOf)
	require.NoError(t, err)
	assert.Equal(t, domain.GainShortTerm, closed.Term)
	assert.Equal(t, "-200", closed.Gain.String()) // 10 * (200 - 220)

	assert.Len(t, book.ClosedLots(), 2)
}

func TestBook_Commit_ConsumesReservation(t *testing.T) {
	book := newTestBook(t)

	require.NoError(t, book.Reserve("lot-old", 30))
	_, err := book.Commit("lot-old", 30, 180.0, asOf)
	require.NoError(t, err)

	// Reservation consumed with the sale, remainder fully sellable
	assert.Equal(t, 70.0, book.Remaining("lot-old"))
	assert.Equal(t, 70.0, book.SellableQuantity("lot-old"))
}

func TestBook_Commit_NeverOversells(t *testing.T) {
	book := newTestBook(t)

	_, err := book.Commit("lot-new", 30, 210.0, asOf)
	require.NoError(t, err)
	_, err = book.Commit("lot-new", 20, 210.0, asOf)
	require.NoError(t, err)

	// Lot exhausted: cumulative sold equals the original quantity
	assert.Equal(t, 0.0, book.Remaining("lot-new"))
	_, err = book.Commit("lot-new", 1, 210.0, asOf)
	require.Error(t, err)
}

func TestBook_Positions(t *testing.T) {
	book := newTestBook(t)
	assert.Equal(t, 150.0, book.Position("VTI"))

	_, err := book.Commit("lot-old", 100, 180.0, asOf)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"VTI": 50}, book.Positions())
}

func TestBook_PurchaseDates(t *testing.T) {
	book := newTestBook(t)

	// Exhaust the recent lot; its purchase date must still be visible
	_, err := book.Commit("lot-new", 50, 210.0, asOf)
	require.NoError(t, err)

	since := asOf.AddDate(0, 0, -120)
	dates := book.PurchaseDates("VTI", since)
	require.Len(t, dates, 1)
	assert.Equal(t, asOf.AddDate(0, 0, -90), dates[0])

	// Widening the window picks up the two-year-old lot as well
	dates = book.PurchaseDates("VTI", asOf.AddDate(-3, 0, 0))
	assert.Len(t, dates, 2)
	assert.True(t, dates[0].After(dates[1]))
}
