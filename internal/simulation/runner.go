// Package simulation evaluates strategy grids over price histories and
// selects the best combination.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/grid"
	"ticker-strategy-lab/internal/idhash"
	"ticker-strategy-lab/internal/metrics"
	"ticker-strategy-lab/internal/observability"
	"ticker-strategy-lab/internal/provider"
	"ticker-strategy-lab/internal/storage"
	"ticker-strategy-lab/internal/strategy"
)

// Runner errors
var (
	ErrNoProvider   = errors.New("runner has no price provider")
	ErrTypeMismatch = errors.New("grid type does not match strategy config type")
)

// Runner defaults.
const (
	DefaultTopN              = 10 // ranked results returned with traces
	DefaultTickerParallelism = 4  // concurrent tickers in RunMulti
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request describes one sweep: a grid evaluated over one ticker's history.
type Request struct {
	Ticker string     `validate:"required"`
	Start  time.Time  `validate:"required"`
	End    time.Time  `validate:"required"`
	Grid   *grid.Grid `validate:"required"`
	Config domain.StrategyConfig

	// Scorer names a metrics scorer; empty selects final value.
	Scorer  string
	Penalty float64 // drawdown penalty for the drawdown_penalty scorer

	// OnProgress, when set, receives evaluation progress.
	OnProgress func(Progress) `validate:"-"`
}

// Progress reports evaluation progress of a sweep.
type Progress struct {
	RunID      string `json:"run_id"`
	Ticker     string `json:"ticker"`
	Done       int    `json:"done"`
	Total      int    `json:"total"`
	Infeasible int    `json:"infeasible"`
}

// Result is the packaged output of a sweep.
type Result struct {
	Outcome   *domain.OptimizationOutcome
	Series    *domain.PriceSeries    // nil when no data was available
	Top       []*domain.ScoredResult // best first, with traces
	Aggregate *domain.SweepAggregate // score distribution of feasible results
	Duration  time.Duration
}

// Runner fetches price histories and evaluates strategy grids.
type Runner struct {
	provider  provider.Provider
	store     storage.SweepStore
	metrics   *observability.Metrics
	logger    zerolog.Logger
	evaluator *Evaluator
	topN      int
	maxCombos int
	tickers   int
	now       func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Provider    provider.Provider
	ResultStore storage.SweepStore // optional
	Metrics     *observability.Metrics
	Logger      *zerolog.Logger
	Parallelism int // <= 0 uses runtime.NumCPU()
	TopN        int // <= 0 uses DefaultTopN
	Clock       func() time.Time

	// MaxCombinations rejects larger grids with grid.ErrTooLarge; <= 0 keeps
	// only the grid.MaxCombinations ceiling.
	MaxCombinations   int
	TickerParallelism int // <= 0 uses DefaultTickerParallelism
}

// NewRunner creates a sweep runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	tickers := opts.TickerParallelism
	if tickers <= 0 {
		tickers = DefaultTickerParallelism
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Runner{
		provider:  opts.Provider,
		store:     opts.ResultStore,
		metrics:   opts.Metrics,
		logger:    logger,
		evaluator: NewEvaluator(opts.Parallelism),
		topN:      topN,
		maxCombos: opts.MaxCombinations,
		tickers:   tickers,
		now:       now,
	}
}

// MaxCombinations returns the configured grid size limit (0 when unset).
func (r *Runner) MaxCombinations() int {
	return r.maxCombos
}

// RunID returns the deterministic identifier of a request.
func RunID(req Request) string {
	return idhash.ComputeRunID(req.Ticker, req.Grid.Type, req.Start, req.End, req.Grid.Canonical(), configKey(req))
}

// Run executes a sweep:
//  1. Validate the request and build the strategy
//  2. Fetch the series; missing or short history is INSUFFICIENT_DATA
//  3. Evaluate every grid combination in parallel
//  4. Select the best; nothing feasible is NO_FEASIBLE_STRATEGY
//  5. Persist run and results when a store is configured
//
// Insufficient data and infeasibility are outcomes, not errors.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	began := r.now()

	cfg, err := resolveConfig(req)
	if err != nil {
		return nil, err
	}
	if err := req.Grid.CheckLimit(r.maxCombos); err != nil {
		return nil, err
	}
	strat, err := strategy.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	scorer, err := metrics.ScorerByName(req.Scorer, req.Penalty)
	if err != nil {
		return nil, err
	}
	if r.provider == nil {
		return nil, ErrNoProvider
	}

	runID := RunID(req)
	log := r.logger.With().
		Str("run_id", runID).
		Str("ticker", req.Ticker).
		Str("strategy", string(cfg.Type)).
		Logger()

	outcome := &domain.OptimizationOutcome{
		RunID:    runID,
		Ticker:   req.Ticker,
		Strategy: cfg.Type,
		GridSize: req.Grid.Size(),
	}
	res := &Result{Outcome: outcome}

	if r.metrics != nil {
		r.metrics.ActiveSweeps.Inc()
		defer r.metrics.ActiveSweeps.Dec()
	}

	series, err := r.provider.Fetch(ctx, req.Ticker, req.Start, req.End)
	switch {
	case errors.Is(err, provider.ErrNoData):
		log.Info().Err(err).Msg("no price data")
		outcome.Status = domain.OutcomeInsufficientData
		return r.finish(ctx, res, req, nil, began, log)
	case err != nil:
		return nil, fmt.Errorf("fetch %s: %w", req.Ticker, err)
	}
	res.Series = series
	if series.Len() < 2 {
		log.Info().Int("points", series.Len()).Msg("series too short")
		outcome.Status = domain.OutcomeInsufficientData
		return r.finish(ctx, res, req, nil, began, log)
	}

	var progress ProgressFunc
	if req.OnProgress != nil {
		progress = func(done, total, infeasible int) {
			req.OnProgress(Progress{RunID: runID, Ticker: req.Ticker, Done: done, Total: total, Infeasible: infeasible})
		}
	}

	eval, err := r.evaluator.Evaluate(ctx, series, req.Grid, strat, scorer, progress)
	if err != nil {
		return nil, err
	}
	for _, sr := range eval.Results {
		sr.ResultID = idhash.ComputeResultID(runID, sr.Index, sr.Params)
	}

	outcome.Evaluated = len(eval.Results)
	outcome.Infeasible = eval.Infeasible
	res.Aggregate = metrics.Summarize(eval.Results, eval.Infeasible)

	top := eval.Results
	if len(top) > r.topN {
		top = top[:r.topN]
	}
	// stored results must stay trace-free
	res.Top = make([]*domain.ScoredResult, len(top))
	for i, sr := range top {
		cp := *sr
		res.Top[i] = &cp
	}
	if err := attachTraces(ctx, series, strat, res.Top); err != nil {
		return nil, err
	}

	outcome.Status = domain.OutcomeNoFeasibleStrategy
	if eval.Best() != nil {
		outcome.Status = domain.OutcomeOK
		outcome.Best = res.Top[0]
	}
	return r.finish(ctx, res, req, eval.Results, began, log)
}

// finish persists the outcome, records metrics and logs it.
func (r *Runner) finish(ctx context.Context, res *Result, req Request, results []*domain.ScoredResult, began time.Time, log zerolog.Logger) (*Result, error) {
	o := res.Outcome
	if err := r.persist(ctx, req, o, results, log); err != nil {
		return nil, err
	}
	res.Duration = r.now().Sub(began)

	r.metrics.RecordSweep(string(o.Strategy), string(o.Status), o.Evaluated, o.Infeasible, res.Duration.Seconds())

	ev := log.Info().
		Str("status", string(o.Status)).
		Int("combinations", o.GridSize).
		Int("infeasible", o.Infeasible).
		Dur("duration", res.Duration)
	if o.HasResult() {
		ev = ev.Float64("score", o.Best.Score).Str("params", o.Best.Params.String())
	}
	ev.Msg("sweep finished")
	return res, nil
}

// persist stores run metadata and results. A run that is already stored is
// left untouched: identical requests produce identical outcomes.
func (r *Runner) persist(ctx context.Context, req Request, o *domain.OptimizationOutcome, results []*domain.ScoredResult, log zerolog.Logger) error {
	if r.store == nil {
		return nil
	}

	run := &domain.SweepRun{
		RunID:     o.RunID,
		Ticker:    o.Ticker,
		Strategy:  o.Strategy,
		Start:     domain.TruncateDay(req.Start),
		End:       domain.TruncateDay(req.End),
		GridSize:  o.GridSize,
		Status:    o.Status,
		CreatedAt: r.now().UTC(),
	}
	if o.Best != nil {
		score := o.Best.Score
		run.BestScore = &score
		run.BestParam = o.Best.Params.String()
	}

	err := r.store.InsertRun(ctx, run)
	if errors.Is(err, storage.ErrDuplicateKey) {
		log.Debug().Msg("run already stored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	if err := r.store.InsertResults(ctx, o.RunID, results); err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	return nil
}

// RunMulti runs the same sweep for each ticker and returns results in
// ticker order. Tickers are processed concurrently; each sweep still uses
// the runner's evaluator parallelism.
func (r *Runner) RunMulti(ctx context.Context, tickers []string, req Request) ([]*Result, error) {
	results := make([]*Result, len(tickers))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.tickers)
	for i, ticker := range tickers {
		eg.Go(func() error {
			tr := req
			tr.Ticker = ticker
			res, err := r.Run(egCtx, tr)
			if err != nil {
				return fmt.Errorf("%s: %w", ticker, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// resolveConfig validates req and fills the config type from the grid.
func resolveConfig(req Request) (domain.StrategyConfig, error) {
	if err := validate.Struct(req); err != nil {
		return domain.StrategyConfig{}, fmt.Errorf("validate request: %w", err)
	}
	if err := req.Grid.Validate(); err != nil {
		return domain.StrategyConfig{}, err
	}
	cfg := req.Config
	if cfg.Type == "" {
		cfg.Type = req.Grid.Type
	}
	if cfg.Type != req.Grid.Type {
		return domain.StrategyConfig{}, fmt.Errorf("%w: grid %s, config %s", ErrTypeMismatch, req.Grid.Type, cfg.Type)
	}
	return cfg, nil
}

// configKey renders the fixed knobs and scorer canonically for RunID.
// Defaults are resolved so an unset knob and its default hash alike.
func configKey(req Request) string {
	c := req.Config
	if c.Type == "" {
		c.Type = req.Grid.Type
	}
	injectionCap := "none"
	if c.MaxInjection != nil {
		injectionCap = fmtFloat(*c.MaxInjection)
	}
	scorer := req.Scorer
	if scorer == "" {
		scorer = metrics.ScorerFinalValue
	}
	return fmt.Sprintf("%s|init=%s|lev=%s|day=%d|cap=%s|pos=%s|capital=%s|scorer=%s|penalty=%s",
		c.EffectiveCompounding(),
		fmtFloat(c.InitialValue),
		fmtFloat(c.EffectiveLeverage()),
		c.EffectiveContributionDay(),
		injectionCap,
		fmtFloat(c.PositionValue),
		fmtFloat(c.TotalCapital),
		scorer,
		fmtFloat(req.Penalty),
	)
}

func fmtFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
