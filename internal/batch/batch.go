// Package batch orchestrates a multi-strategy optimization run: input
// validation, the serialized owner-scoped harvest pre-pass, parallel
// per-strategy solves over one restriction snapshot, the netting
// barrier, and result assembly. It replaces any notion of long-lived
// optimizer state: everything a run needs arrives in the Request.
package batch

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hvkshetry/rebalancer/internal/domain"
	"github.com/hvkshetry/rebalancer/internal/modules/ledger"
	"github.com/hvkshetry/rebalancer/internal/modules/netting"
	"github.com/hvkshetry/rebalancer/internal/modules/optimizer"
	"github.com/hvkshetry/rebalancer/internal/modules/report"
	"github.com/hvkshetry/rebalancer/internal/modules/settings"
	"github.com/hvkshetry/rebalancer/internal/modules/washsale"
	"github.com/hvkshetry/rebalancer/internal/solver"
)

// StrategyRun pairs one strategy with its settings bundle
type StrategyRun struct {
	Strategy domain.Strategy   `json:"strategy"`
	Settings settings.Settings `json:"settings"`
}

// Request is the complete input for one batch. The engine reads it,
// optimizes, and returns; it fetches nothing and persists nothing.
type Request struct {
	Strategies     []StrategyRun              `json:"strategies"`
	Securities     map[string]domain.Security `json:"securities"`
	TaxRates       domain.TaxRateSchedule     `json:"tax_rates"`
	RecentlyClosed []ledger.ClosedLot         `json:"recently_closed,omitempty"` // Loss sales from prior runs, for wash-sale carryover
	Restrictions   *washsale.RestrictionSet   `json:"-"`                         // Carried between runs by the caller (msgpack snapshot)
	AsOf           time.Time                  `json:"as_of"`
	Workers        int                        `json:"workers,omitempty"`
}

// Result is the batch output: one result record per strategy in input
// order, the netted trade table, and the restriction set as it stands
// after this run's harvests (exported for the caller to carry forward).
type Result struct {
	RunID                string               `json:"run_id"`
	AsOf                 time.Time            `json:"as_of"`
	Strategies           []report.Result      `json:"strategies"`
	Netted               []domain.NettedTrade `json:"netted"`
	Table                []netting.TradeRow   `json:"table"`
	RestrictionsSnapshot []byte               `json:"restrictions_snapshot,omitempty"`
}

// Runner executes batches. Safe for sequential reuse; each Run is
// self-contained.
type Runner struct {
	optimizer *optimizer.Optimizer
	netter    *netting.Netter
	log       zerolog.Logger
}

// NewRunner creates a batch runner over the default gonum solver.
func NewRunner(log zerolog.Logger) *Runner {
	return NewRunnerWithSolver(solver.NewGonumSolver(log), log)
}

// NewRunnerWithSolver creates a batch runner over a caller-supplied
// solver.
func NewRunnerWithSolver(s solver.Solver, log zerolog.Logger) *Runner {
	log = log.With().Str("component", "batch").Logger()
	return &Runner{
		optimizer: optimizer.NewOptimizer(s, log),
		netter:    netting.NewNetter(log),
		log:       log,
	}
}

// Run executes one batch end to end. Per-strategy failures (validation,
// infeasibility, solver errors) are reported in that strategy's result
// and exclude it from netting; they never abort the batch.
func (r *Runner) Run(req Request) (Result, error) {
	result := Result{RunID: uuid.New().String(), AsOf: req.AsOf}

	if req.AsOf.IsZero() {
		return result, fmt.Errorf("as_of date is required")
	}
	if len(req.Strategies) == 0 {
		return result, fmt.Errorf("at least one strategy is required")
	}
	if err := domain.ValidateSecurities(req.Securities); err != nil {
		return result, fmt.Errorf("invalid securities: %w", err)
	}
	if err := req.TaxRates.Validate(); err != nil {
		return result, fmt.Errorf("invalid tax rates: %w", err)
	}

	r.log.Info().
		Str("run_id", result.RunID).
		Int("strategies", len(req.Strategies)).
		Time("as_of", req.AsOf).
		Msg("Batch run starting")

	// One immutable restriction snapshot per batch: the pre-pass writes
	// into it serially, the parallel solves only read it
	restrictions := washsale.NewRestrictionSet()
	if req.Restrictions != nil {
		restrictions = req.Restrictions.Snapshot()
	}
	seedCarryoverRestrictions(restrictions, req)

	guard := washsale.NewGuard(req.Securities, buildPurchaseIndex(req.Strategies), restrictions, r.log)

	// Per-strategy validation up front: invalid strategies are excluded
	// from solving and netting but still get a result record
	valid := make([]bool, len(req.Strategies))
	outcomes := make([]optimizer.Outcome, len(req.Strategies))
	for i, run := range req.Strategies {
		if err := run.Settings.Validate(); err != nil {
			outcomes[i] = validationFailure(run.Strategy.ID, fmt.Errorf("invalid settings: %w", err))
			continue
		}
		if err := run.Strategy.Validate(req.Securities); err != nil {
			outcomes[i] = validationFailure(run.Strategy.ID, fmt.Errorf("invalid strategy: %w", err))
			continue
		}
		valid[i] = true
	}

	harvests := r.harvestPrePass(req, valid, guard)

	var requests []optimizer.Request
	var requestIdx []int
	for i, run := range req.Strategies {
		if !valid[i] {
			continue
		}
		requests = append(requests, optimizer.Request{
			Strategy:   run.Strategy,
			Securities: req.Securities,
			Settings:   run.Settings,
			TaxRates:   req.TaxRates,
			Guard:      guard,
			AsOf:       req.AsOf,
			Harvests:   harvests[i],
		})
		requestIdx = append(requestIdx, i)
	}

	for j, outcome := range runParallel(r.optimizer, requests, req.Workers) {
		outcomes[requestIdx[j]] = outcome
	}

	// Barrier passed: net the successful strategies
	var inputs []netting.StrategyTrades
	for i, outcome := range outcomes {
		if !outcome.Success() {
			continue
		}
		inputs = append(inputs, netting.StrategyTrades{
			StrategyID: outcome.StrategyID,
			AccountID:  req.Strategies[i].Strategy.Account(),
			Trades:     outcome.Trades,
		})
	}
	result.Netted = r.netter.Net(inputs)
	result.Table = netting.Table(result.Netted)

	result.Strategies = make([]report.Result, len(outcomes))
	for i, outcome := range outcomes {
		result.Strategies[i] = report.Build(outcome)
	}

	snapshot, err := restrictions.Export()
	if err != nil {
		return result, fmt.Errorf("failed to export restrictions: %w", err)
	}
	result.RestrictionsSnapshot = snapshot

	r.log.Info().
		Str("run_id", result.RunID).
		Int("net_rows", len(result.Netted)).
		Msg("Batch run complete")
	return result, nil
}

// harvestPrePass runs the serialized owner-scoped harvest decisions
// before any solve: owners in sorted order, each owner's strategies in
// input order, every accepted harvest committed to the shared
// restriction set before the next evaluation reads it.
func (r *Runner) harvestPrePass(req Request, valid []bool, guard *washsale.Guard) map[int][]optimizer.AcceptedHarvest {
	byOwner := make(map[string][]int)
	for i, run := range req.Strategies {
		if valid[i] {
			byOwner[run.Strategy.Owner()] = append(byOwner[run.Strategy.Owner()], i)
		}
	}
	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	harvests := make(map[int][]optimizer.AcceptedHarvest)
	for _, owner := range owners {
		for _, i := range byOwner[owner] {
			run := req.Strategies[i]
			accepted, _ := optimizer.PlanHarvests(run.Strategy, req.Securities, run.Settings, guard, req.AsOf, r.log)
			if len(accepted) > 0 {
				harvests[i] = accepted
			}
		}
	}
	return harvests
}

// seedCarryoverRestrictions converts recently closed loss sales from
// prior runs into restrictions, so a loss harvested last week still
// blocks a repurchase today even when the caller did not carry the
// restriction snapshot itself.
func seedCarryoverRestrictions(restrictions *washsale.RestrictionSet, req Request) {
	ownerOf := make(map[string]string, len(req.Strategies))
	windowOf := make(map[string]int, len(req.Strategies))
	for _, run := range req.Strategies {
		ownerOf[run.Strategy.ID] = run.Strategy.Owner()
		windowOf[run.Strategy.ID] = run.Settings.WashSaleWindowDays
	}

	for _, closed := range req.RecentlyClosed {
		if closed.Gain.Sign() >= 0 {
			continue
		}
		owner, ok := ownerOf[closed.StrategyID]
		if !ok {
			continue
		}
		window := windowOf[closed.StrategyID]
		if closed.CloseDate.AddDate(0, 0, window).Before(req.AsOf) {
			continue
		}
		restrictions.Add(washsale.NewRestriction(
			owner,
			closed.SecurityID,
			closed.CloseDate,
			window,
			fmt.Sprintf("carryover loss sale of lot %s", closed.LotID),
		))
	}
}

// buildPurchaseIndex records every lot acquisition under its owner so
// the guard's lookback sees purchases across all of an owner's
// strategies, not only the one proposing a sale.
func buildPurchaseIndex(strategies []StrategyRun) *washsale.PurchaseIndex {
	index := washsale.NewPurchaseIndex()
	for _, run := range strategies {
		owner := run.Strategy.Owner()
		for _, lot := range run.Strategy.Lots {
			index.Add(owner, lot.SecurityID, lot.AcquisitionDate)
		}
	}
	return index
}

// validationFailure shapes an input validation error as a terminal
// outcome so the strategy still appears in the batch result.
func validationFailure(strategyID string, err error) optimizer.Outcome {
	return optimizer.Outcome{
		StrategyID:   strategyID,
		Status:       domain.StatusError,
		SolverStatus: solver.StatusError,
		Reason:       err.Error(),
	}
}
