package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/grid"
	"ticker-strategy-lab/internal/metrics"
	"ticker-strategy-lab/internal/reporting"
	"ticker-strategy-lab/internal/simulation"
	"ticker-strategy-lab/internal/strategy"
)

// Preset bounds used when a sweep request carries no explicit dimensions.
const (
	defaultMaxContribution = 1000
	defaultMaxLeverage     = 3
	defaultMaxInverse      = 3
)

// SweepRequest is the body of POST /api/sweeps.
type SweepRequest struct {
	Ticker   string `json:"ticker" validate:"required"`
	Strategy string `json:"strategy" validate:"required"`
	Start    string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End      string `json:"end" validate:"omitempty,datetime=2006-01-02"`

	// Dimensions overrides the strategy's preset grid.
	Dimensions      []grid.Dimension `json:"dimensions,omitempty" validate:"omitempty,dive"`
	MaxContribution float64          `json:"max_contribution" validate:"gte=0"`
	MaxLeverage     int              `json:"max_leverage" validate:"gte=0,lte=20"`
	MaxInverse      int              `json:"max_inverse" validate:"gte=0,lte=20"`

	Compounding     string   `json:"compounding" validate:"omitempty,oneof=LOG SIMPLE"`
	InitialValue    float64  `json:"initial_value" validate:"gte=0"`
	Leverage        float64  `json:"leverage" validate:"gte=0"`
	ContributionDay int      `json:"contribution_day" validate:"gte=0,lte=31"`
	MaxInjection    *float64 `json:"max_injection,omitempty" validate:"omitempty,gte=0"`
	PositionValue   float64  `json:"position_value" validate:"gte=0"`
	TotalCapital    float64  `json:"total_capital" validate:"gte=0"`

	Scorer  string  `json:"scorer" validate:"omitempty,oneof=final_value drawdown_penalty"`
	Penalty float64 `json:"penalty" validate:"gte=0"`
}

// toRequest validates r and builds the runner request.
func (s *Server) toRequest(r SweepRequest) (simulation.Request, error) {
	if err := validate.Struct(r); err != nil {
		return simulation.Request{}, badRequest("%v", err)
	}
	typ, err := domain.ParseStrategyType(r.Strategy)
	if err != nil {
		return simulation.Request{}, badRequest("%v", err)
	}
	start, end, err := s.dateRange(r.Start, r.End)
	if err != nil {
		return simulation.Request{}, err
	}

	var g *grid.Grid
	if len(r.Dimensions) > 0 {
		g, err = grid.New(typ, r.Dimensions...)
	} else {
		g, err = grid.Preset(typ,
			orDefault(r.MaxContribution, defaultMaxContribution),
			int(orDefault(float64(r.MaxLeverage), defaultMaxLeverage)),
			int(orDefault(float64(r.MaxInverse), defaultMaxInverse)),
		)
	}
	if err != nil {
		return simulation.Request{}, badRequest("grid: %v", err)
	}
	if err := g.CheckLimit(s.runner.MaxCombinations()); err != nil {
		return simulation.Request{}, badRequest("grid: %v", err)
	}

	cfg := domain.StrategyConfig{
		Type:            typ,
		Compounding:     domain.Compounding(r.Compounding),
		InitialValue:    r.InitialValue,
		Leverage:        r.Leverage,
		ContributionDay: r.ContributionDay,
		MaxInjection:    r.MaxInjection,
		PositionValue:   r.PositionValue,
		TotalCapital:    r.TotalCapital,
	}
	if _, err := strategy.FromConfig(cfg); err != nil {
		return simulation.Request{}, badRequest("%v", err)
	}
	if _, err := metrics.ScorerByName(r.Scorer, r.Penalty); err != nil {
		return simulation.Request{}, badRequest("%v", err)
	}

	return simulation.Request{
		Ticker:  r.Ticker,
		Start:   start,
		End:     end,
		Grid:    g,
		Config:  cfg,
		Scorer:  r.Scorer,
		Penalty: r.Penalty,
	}, nil
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

type createSweepResponse struct {
	JobID    string `json:"job_id"`
	RunID    string `json:"run_id"`
	GridSize int    `json:"grid_size"`
}

// handleCreateSweep validates the request and starts the sweep in the
// background. Progress is available on /ws/sweeps?job=<id>.
func (s *Server) handleCreateSweep(w http.ResponseWriter, r *http.Request) error {
	var body SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return badRequest("decode body: %v", err)
	}
	req, err := s.toRequest(body)
	if err != nil {
		return err
	}

	runID := simulation.RunID(req)
	jobID := s.jobs.create(runID)
	req.OnProgress = func(p simulation.Progress) { s.jobs.progress(jobID, p) }

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		res, err := s.runSweep(req)
		if err != nil {
			s.logger.Error().Err(err).Str("job_id", jobID).Str("run_id", runID).Msg("sweep failed")
		}
		s.jobs.finish(jobID, res, err)
	}()

	writeJSON(w, http.StatusAccepted, createSweepResponse{JobID: jobID, RunID: runID, GridSize: req.Grid.Size()})
	return nil
}

// runSweep runs req under the server context. A panicking sweep fails its
// job instead of the process.
func (s *Server) runSweep(req simulation.Request) (res *simulation.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("sweep panicked: %v", p)
		}
	}()
	return s.runner.Run(s.ctx, req)
}

type outcomeResponse struct {
	RunID      string               `json:"run_id"`
	Ticker     string               `json:"ticker"`
	Strategy   domain.StrategyType  `json:"strategy"`
	Status     domain.OutcomeStatus `json:"status"`
	GridSize   int                  `json:"grid_size"`
	Evaluated  int                  `json:"evaluated"`
	Infeasible int                  `json:"infeasible"`
	Best       *resultResponse      `json:"best,omitempty"`
}

func newOutcomeResponse(o *domain.OptimizationOutcome) *outcomeResponse {
	if o == nil {
		return nil
	}
	resp := &outcomeResponse{
		RunID:      o.RunID,
		Ticker:     o.Ticker,
		Strategy:   o.Strategy,
		Status:     o.Status,
		GridSize:   o.GridSize,
		Evaluated:  o.Evaluated,
		Infeasible: o.Infeasible,
	}
	if o.HasResult() {
		best := newResultResponse(1, o.Best)
		resp.Best = &best
	}
	return resp
}

type resultResponse struct {
	Rank        int                `json:"rank"`
	ResultID    string             `json:"result_id"`
	GridIndex   int                `json:"grid_index"`
	Params      map[string]float64 `json:"params"`
	Score       number             `json:"score"`
	FinalValue  number             `json:"final_value"`
	MaxDrawdown number             `json:"max_drawdown"`
	Injected    number             `json:"injected"`
	BuyCount    int                `json:"buy_count"`
}

func newResultResponse(rank int, r *domain.ScoredResult) resultResponse {
	params := make(map[string]float64, r.Params.Len())
	for _, p := range r.Params.Params() {
		params[p.Name] = p.Value
	}
	return resultResponse{
		Rank:        rank,
		ResultID:    r.ResultID,
		GridIndex:   r.Index,
		Params:      params,
		Score:       number(r.Score),
		FinalValue:  number(r.FinalValue),
		MaxDrawdown: number(r.MaxDrawdown),
		Injected:    number(r.Injected),
		BuyCount:    r.BuyCount,
	}
}

type aggregateResponse struct {
	Count      int    `json:"count"`
	Infeasible int    `json:"infeasible"`
	Mean       number `json:"mean"`
	Median     number `json:"median"`
	P10        number `json:"p10"`
	P90        number `json:"p90"`
	Min        number `json:"min"`
	Max        number `json:"max"`
	Std        number `json:"std"`
}

func newAggregateResponse(a *domain.SweepAggregate) *aggregateResponse {
	if a == nil {
		return nil
	}
	return &aggregateResponse{
		Count:      a.Count,
		Infeasible: a.Infeasible,
		Mean:       number(a.ScoreMean),
		Median:     number(a.ScoreMed),
		P10:        number(a.ScoreP10),
		P90:        number(a.ScoreP90),
		Min:        number(a.ScoreMin),
		Max:        number(a.ScoreMax),
		Std:        number(a.ScoreStd),
	}
}

type sweepResponse struct {
	JobID     string                  `json:"job_id,omitempty"`
	State     JobStatus               `json:"state"`
	Error     string                  `json:"error,omitempty"`
	Progress  *simulation.Progress    `json:"progress,omitempty"`
	Outcome   *outcomeResponse        `json:"outcome,omitempty"`
	Results   []resultResponse        `json:"results,omitempty"`
	Aggregate *aggregateResponse      `json:"aggregate,omitempty"`
	Chart     *reporting.ChartPayload `json:"chart,omitempty"`
}

// handleGetSweep returns a job of this process by job ID, or a stored run
// by run ID. format=markdown renders the report instead.
func (s *Server) handleGetSweep(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	markdown := r.URL.Query().Get("format") == "markdown"

	if j, ok := s.jobs.snapshot(id); ok {
		resp := sweepResponse{JobID: j.ID, State: j.Status}
		switch {
		case j.Status == JobRunning:
			p := j.Progress
			resp.Progress = &p
		case j.Err != nil:
			resp.Error = j.Err.Error()
		default:
			res := j.Result
			if markdown {
				writeMarkdown(w, reporting.RenderMarkdown(reporting.Build(res.Series, res.Outcome, res.Top, res.Aggregate)))
				return nil
			}
			resp.Outcome = newOutcomeResponse(res.Outcome)
			resp.Aggregate = newAggregateResponse(res.Aggregate)
			for i, sr := range res.Top {
				resp.Results = append(resp.Results, newResultResponse(i+1, sr))
			}
			var best *domain.ScoredResult
			if res.Outcome.HasResult() {
				best = res.Outcome.Best
			}
			resp.Chart = reporting.BuildChart(res.Series, res.Outcome, best)
		}
		writeJSON(w, http.StatusOK, resp)
		return nil
	}

	if s.generator == nil {
		return ErrNotFound
	}
	limit, err := queryInt(r, "limit", simulation.DefaultTopN)
	if err != nil {
		return err
	}
	report, err := s.generator.Generate(r.Context(), id, limit, nil)
	if err != nil {
		return err
	}
	if markdown {
		writeMarkdown(w, reporting.RenderMarkdown(report))
		return nil
	}

	resp := sweepResponse{
		State: JobDone,
		Outcome: &outcomeResponse{
			RunID:      report.RunID,
			Ticker:     report.Ticker,
			Strategy:   report.Strategy,
			Status:     report.Status,
			GridSize:   report.GridSize,
			Evaluated:  report.Evaluated,
			Infeasible: report.Infeasible,
		},
		Aggregate: newAggregateResponse(report.Aggregate),
	}
	for _, row := range report.Results {
		resp.Results = append(resp.Results, rowResponse(row))
	}
	if report.Best != nil {
		best := rowResponse(*report.Best)
		resp.Outcome.Best = &best
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// rowResponse converts a stored report row.
func rowResponse(row reporting.ResultRow) resultResponse {
	params := map[string]float64{}
	if p, err := domain.ParseStrategyParameters(row.Params); err == nil {
		for _, kv := range p.Params() {
			params[kv.Name] = kv.Value
		}
	}
	return resultResponse{
		Rank:        row.Rank,
		ResultID:    row.ResultID,
		GridIndex:   row.GridIndex,
		Params:      params,
		Score:       number(row.Score),
		FinalValue:  number(row.FinalValue),
		MaxDrawdown: number(row.MaxDrawdown),
		Injected:    number(row.Injected),
		BuyCount:    row.BuyCount,
	}
}

func writeMarkdown(w http.ResponseWriter, md string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}
