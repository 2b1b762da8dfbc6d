package domain

// Trade is a single proposed order leg for one strategy. Sells carry the
// tax lot they close and the realized gain/loss split by holding period;
// the four gain/loss columns are non-negative and mutually exclusive per
// term. Trades are immutable once emitted.
type Trade struct {
	ID            string      `json:"id"`
	StrategyID    string      `json:"strategy_id"`
	SecurityID    string      `json:"security_id"`
	Action        TradeAction `json:"action"`
	Quantity      float64     `json:"quantity"`
	Price         float64     `json:"price"`
	TaxLotID      string      `json:"tax_lot_id,omitempty"` // Sells only
	ShortTermGain float64     `json:"short_term_gain"`
	ShortTermLoss float64     `json:"short_term_loss"`
	LongTermGain  float64     `json:"long_term_gain"`
	LongTermLoss  float64     `json:"long_term_loss"`
}

// Notional returns the trade's absolute value
func (t Trade) Notional() float64 {
	return t.Quantity * t.Price
}

// RealizedGain returns the signed realized gain across both terms
func (t Trade) RealizedGain() float64 {
	return t.ShortTermGain - t.ShortTermLoss + t.LongTermGain - t.LongTermLoss
}

// NettedTrade is the per-(account, security) aggregation of strategy
// trades. Quantity is the net absolute quantity after offsetting; the
// contributing strategy trades are retained so per-strategy tax
// attribution survives netting. A fully offset flow has Quantity zero
// and emits no external order.
type NettedTrade struct {
	AccountID     string      `json:"account_id"`
	SecurityID    string      `json:"security_id"`
	Action        TradeAction `json:"action"`
	Quantity      float64     `json:"quantity"`
	Price         float64     `json:"price"`
	Contributions []Trade     `json:"contributions"`
}

// Notional returns the net order's absolute value
func (n NettedTrade) Notional() float64 {
	return n.Quantity * n.Price
}
