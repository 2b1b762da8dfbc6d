package optimizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hvkshetry/rebalancer/internal/domain"
	"github.com/hvkshetry/rebalancer/internal/modules/costmodel"
	"github.com/hvkshetry/rebalancer/internal/modules/ledger"
	"github.com/hvkshetry/rebalancer/internal/modules/settings"
	"github.com/hvkshetry/rebalancer/internal/modules/washsale"
	"github.com/hvkshetry/rebalancer/internal/solver"
)

// Request carries everything one strategy optimization needs. The guard
// and its restriction snapshot are shared across a batch; everything
// else belongs to this strategy alone.
type Request struct {
	Strategy   domain.Strategy
	Securities map[string]domain.Security
	Settings   settings.Settings
	TaxRates   domain.TaxRateSchedule
	Guard      *washsale.Guard
	AsOf       time.Time
	Harvests   []AcceptedHarvest // Accepted by the wash-sale pre-pass; quantities are fixed
}

// Outcome is the full result of one strategy run. Trades are present
// only when Status is StatusOptimal; otherwise Reason says what stopped
// the run.
type Outcome struct {
	StrategyID   string              `json:"strategy_id"`
	Status       domain.RunStatus    `json:"status"`
	SolverStatus solver.Status       `json:"solver_status"`
	Reason       string              `json:"reason,omitempty"`
	Trades       []domain.Trade      `json:"trades"`
	Harvests     []AcceptedHarvest   `json:"harvests,omitempty"`
	Rejected     []RejectedCandidate `json:"rejected,omitempty"`
	Suppressed   []RejectedCandidate `json:"suppressed,omitempty"`
	ClosedLots   []ledger.ClosedLot  `json:"closed_lots,omitempty"`
	Realized     costmodel.Realized  `json:"realized"`

	Before      costmodel.Breakdown     `json:"before"`
	After       costmodel.Breakdown     `json:"after"`
	BeforeDrift []costmodel.TargetDrift `json:"before_drift,omitempty"`
	AfterDrift  []costmodel.TargetDrift `json:"after_drift,omitempty"`
	FactorModel *FactorReport           `json:"factor_model,omitempty"`
	EndingCash  float64                 `json:"ending_cash"`
}

// Success reports whether the run emitted a usable trade set.
func (o Outcome) Success() bool {
	return o.Status.Success()
}

// FactorReport summarizes factor tracking before and after the trades
type FactorReport struct {
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// Optimizer runs single-strategy optimizations against a pluggable
// solver. It holds no per-strategy state and is safe for concurrent use
// as long as the solver is.
type Optimizer struct {
	solver solver.Solver
	log    zerolog.Logger
}

// NewOptimizer creates an optimizer over a solver.
func NewOptimizer(s solver.Solver, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		solver: s,
		log:    log.With().Str("component", "optimizer").Logger(),
	}
}

// targetsOf resolves the strategy's target rows into evaluable form.
func (o *Optimizer) targetsOf(req Request) costmodel.ResolvedTargets {
	return costmodel.ResolveTargets(req.Strategy.Targets)
}

// effectiveSettings applies the optimization mode to the settings
// bundle. Drift-only runs zero every non-drift weight.
func effectiveSettings(req Request) settings.Settings {
	cfg := req.Settings
	if req.Strategy.Mode == domain.ModeDriftOnly {
		cfg.WeightTax = 0
		cfg.WeightTransaction = 0
		cfg.WeightFactorModel = 0
		cfg.WeightCashDrag = 0
	}
	return cfg
}

// Run executes one strategy optimization: validate, generate the
// candidate universe, solve the continuous sizing problem, discretize
// into an executable trade set, and commit the sells against the lot
// ledger. Failures are reported through the outcome status, never
// retried.
func (o *Optimizer) Run(req Request) Outcome {
	out := Outcome{StrategyID: req.Strategy.ID, Status: domain.StatusPending}
	start := time.Now()

	if err := req.Settings.Validate(); err != nil {
		return o.fail(out, domain.StatusError, fmt.Errorf("invalid settings: %w", err))
	}
	if err := req.Strategy.Validate(req.Securities); err != nil {
		return o.fail(out, domain.StatusError, fmt.Errorf("invalid strategy: %w", err))
	}
	if err := req.TaxRates.Validate(); err != nil {
		return o.fail(out, domain.StatusError, fmt.Errorf("invalid tax rates: %w", err))
	}
	if req.Guard == nil {
		return o.fail(out, domain.StatusError, fmt.Errorf("wash sale guard is required"))
	}

	book, err := ledger.NewBook(req.Strategy.ID, req.Strategy.Lots)
	if err != nil {
		return o.fail(out, domain.StatusError, fmt.Errorf("failed to build lot ledger: %w", err))
	}

	cfg := effectiveSettings(req)
	calc := costmodel.NewCalculator(
		req.Securities,
		o.targetsOf(req),
		req.Strategy.ClassTargets,
		req.Strategy.Factors,
		req.TaxRates,
		cfg,
		o.log,
	)

	base := costmodel.State{Positions: book.Positions(), Cash: req.Strategy.Cash}
	out.Before = calc.Evaluate(base, nil, costmodel.Realized{})
	out.BeforeDrift = calc.DriftRows(base)
	out.Harvests = req.Harvests

	set := o.generateCandidates(req, book, restrictedSet(req.Strategy))
	out.Rejected = set.rejected

	if len(set.sells) == 0 && len(set.buys) == 0 {
		// Nothing tradeable: the no-trade portfolio is the optimum
		out.Status = domain.StatusOptimal
		out.SolverStatus = solver.StatusOptimal
		out.After = out.Before
		out.AfterDrift = out.BeforeDrift
		out.EndingCash = req.Strategy.Cash
		o.log.Info().
			Str("strategy", req.Strategy.ID).
			Int("rejected", len(out.Rejected)).
			Msg("No tradeable candidates, keeping current portfolio")
		return out
	}

	f := newFormulation(set, calc, req.Securities, base, cfg, req.Strategy.ID)
	out.Status = domain.StatusSolving

	sol, err := o.solve(f)
	if err != nil {
		return o.fail(out, domain.StatusError, fmt.Errorf("solver failed: %w", err))
	}
	out.SolverStatus = sol.Status

	enforcer := NewEnforcer(cfg, o.log)
	proposal, err := enforcer.Discretize(f, sol.X)
	if err != nil {
		if errors.Is(err, solver.ErrInfeasible) {
			out.SolverStatus = solver.StatusInfeasible
			return o.fail(out, domain.StatusInfeasible, err)
		}
		return o.fail(out, domain.StatusError, err)
	}
	out.Suppressed = proposal.Suppressed

	trades, closed, realized, err := o.commit(req, book, proposal)
	if err != nil {
		return o.fail(out, domain.StatusError, err)
	}
	out.Trades = trades
	out.ClosedLots = closed
	out.Realized = realized

	after := costmodel.State{Positions: book.Positions(), Cash: req.Strategy.Cash + proposal.CashDelta()}
	out.After = calc.Evaluate(after, trades, realized)
	out.AfterDrift = calc.DriftRows(after)
	out.EndingCash = after.Cash
	if req.Strategy.Factors != nil && cfg.WeightFactorModel > 0 {
		out.FactorModel = &FactorReport{Before: calc.FactorCost(base), After: calc.FactorCost(after)}
	}
	out.Status = domain.StatusOptimal

	o.log.Info().
		Str("strategy", req.Strategy.ID).
		Int("trades", len(trades)).
		Int("harvests", len(req.Harvests)).
		Str("solver_status", sol.Status.String()).
		Float64("objective_before", out.Before.Total).
		Float64("objective_after", out.After.Total).
		Dur("elapsed", time.Since(start)).
		Msg("Strategy optimization complete")
	return out
}

// solve runs the numeric solver, short-circuiting when every variable is
// pinned by degenerate bounds (a pure harvest run has nothing to size).
func (o *Optimizer) solve(f *formulation) (solver.Solution, error) {
	p := f.problem()

	pinned := true
	for _, b := range p.Bounds {
		if b.Max-b.Min > 0 {
			pinned = false
			break
		}
	}
	if pinned {
		return solver.Solution{X: p.Initial, Objective: p.Objective(p.Initial), Status: solver.StatusOptimal}, nil
	}

	return o.solver.Solve(p)
}

// commit applies the proposal's sells against the ledger, attributing
// realized gains to lots, and materializes the final trade records.
func (o *Optimizer) commit(req Request, book *ledger.Book, p Proposal) ([]domain.Trade, []ledger.ClosedLot, costmodel.Realized, error) {
	var trades []domain.Trade
	var realized costmodel.Realized

	for _, s := range p.Sells {
		closed, err := book.Commit(s.LotID, s.Quantity, s.Price, req.AsOf)
		if err != nil {
			return nil, nil, costmodel.Realized{}, fmt.Errorf("failed to commit sell of lot %s: %w", s.LotID, err)
		}

		trade := domain.Trade{
			ID:         uuid.New().String(),
			StrategyID: req.Strategy.ID,
			SecurityID: s.SecurityID,
			Action:     domain.ActionSell,
			Quantity:   s.Quantity,
			Price:      s.Price,
			TaxLotID:   s.LotID,
		}
		gain := closed.Gain.InexactFloat64()
		switch {
		case closed.Term == domain.GainLongTerm && gain >= 0:
			trade.LongTermGain = gain
			realized.LongTermGain += gain
		case closed.Term == domain.GainLongTerm:
			trade.LongTermLoss = -gain
			realized.LongTermGain += gain
		case gain >= 0:
			trade.ShortTermGain = gain
			realized.ShortTermGain += gain
		default:
			trade.ShortTermLoss = -gain
			realized.ShortTermGain += gain
		}
		trades = append(trades, trade)
	}

	for _, b := range p.Buys {
		trades = append(trades, domain.Trade{
			ID:         uuid.New().String(),
			StrategyID: req.Strategy.ID,
			SecurityID: b.SecurityID,
			Action:     domain.ActionBuy,
			Quantity:   b.Quantity,
			Price:      b.Price,
		})
	}

	return trades, book.ClosedLots(), realized, nil
}

// fail finalizes a run in a terminal failure state with no trades.
func (o *Optimizer) fail(out Outcome, status domain.RunStatus, err error) Outcome {
	out.Status = status
	out.Reason = err.Error()
	out.Trades = nil
	if status == domain.StatusError {
		out.SolverStatus = solver.StatusError
	}
	o.log.Warn().
		Str("strategy", out.StrategyID).
		Str("status", status.String()).
		Str("reason", out.Reason).
		Msg("Strategy optimization did not produce trades")
	return out
}
