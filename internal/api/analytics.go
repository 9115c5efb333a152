package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"ticker-strategy-lab/internal/analytics"
	"ticker-strategy-lab/internal/decision"
	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/forecast"
	"ticker-strategy-lab/internal/garch"
	"ticker-strategy-lab/internal/metrics"
	"ticker-strategy-lab/internal/montecarlo"
	"ticker-strategy-lab/internal/portfolio"
	"ticker-strategy-lab/internal/provider"
	"ticker-strategy-lab/internal/reporting"
)

type componentResponse struct {
	Indicator  decision.Indicator `json:"indicator"`
	Raw        number             `json:"raw"`
	Normalized number             `json:"normalized"`
	Weight     float64            `json:"weight"`
	Used       bool               `json:"used"`
}

type decisionResponse struct {
	Risk       int                 `json:"risk"`
	Composite  number              `json:"composite"`
	Outlook    decision.Outlook    `json:"outlook"`
	Components []componentResponse `json:"components"`
}

type volatilityResponse struct {
	DailyStd        number `json:"daily_std"`
	Frequency       number `json:"frequency"`
	MeanLogReturn   number `json:"mean_log_return"`
	Trend           string `json:"trend"`
	Gauge           number `json:"gauge"`
	Level           string `json:"level"`
	ConsecutiveDays int    `json:"consecutive_days"`
	UpProb          number `json:"up_probability"`
	DownProb        number `json:"down_probability"`
}

type indicatorsResponse struct {
	MA10   []number `json:"ma10"`
	MA50   []number `json:"ma50"`
	MA200  []number `json:"ma200"`
	RSI    []number `json:"rsi"`
	Sharpe number   `json:"sharpe"`
	HV     number   `json:"historical_volatility"`
}

type analyticsResponse struct {
	Ticker     string              `json:"ticker"`
	Dates      []string            `json:"dates"`
	Closes     []float64           `json:"closes"`
	Indicators indicatorsResponse  `json:"indicators"`
	Decision   *decisionResponse   `json:"decision,omitempty"`
	Volatility *volatilityResponse `json:"volatility,omitempty"`
	Errors     map[string]string   `json:"errors,omitempty"`
}

// handleAnalytics returns indicators, the decision index and the
// volatility report of a ticker. format=markdown renders the full section.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) error {
	risk, err := queryInt(r, "risk", decision.DefaultRisk)
	if err != nil {
		return err
	}
	if risk < decision.MinRisk || risk > decision.MaxRisk {
		return badRequest("risk must be within %d..%d", decision.MinRisk, decision.MaxRisk)
	}
	days, err := queryInt(r, "days", 3)
	if err != nil {
		return err
	}
	series, err := s.fetchQuery(r)
	if err != nil {
		return err
	}

	if r.URL.Query().Get("format") == "markdown" {
		section := reporting.BuildAnalytics(series, reporting.AnalyticsOptions{Risk: risk, ConsecutiveDays: days})
		writeMarkdown(w, reporting.RenderAnalyticsMarkdown(section))
		return nil
	}

	closes := series.Closes()
	mas := analytics.ComputeMovingAverages(closes)
	resp := analyticsResponse{
		Ticker: series.Ticker(),
		Dates:  dateStrings(series.Dates()),
		Closes: closes,
		Indicators: indicatorsResponse{
			MA10:   numbers(mas.MA10),
			MA50:   numbers(mas.MA50),
			MA200:  numbers(mas.MA200),
			RSI:    numbers(analytics.RSI(closes, analytics.DefaultRSIWindow)),
			Sharpe: number(analytics.SharpeRatio(closes)),
			HV:     number(analytics.HistoricalVolatility(closes)),
		},
	}

	if res, err := decision.Index(series, risk); err != nil {
		resp.Errors = map[string]string{reporting.SectionDecision: err.Error()}
	} else {
		d := &decisionResponse{Risk: res.RiskPreference, Composite: number(res.Composite), Outlook: res.Outlook}
		for _, c := range res.Components {
			d.Components = append(d.Components, componentResponse{
				Indicator:  c.Indicator,
				Raw:        number(c.Raw),
				Normalized: number(c.Normalized),
				Weight:     c.Weight,
				Used:       c.Used,
			})
		}
		resp.Decision = d
	}

	v := analytics.Volatility(series, days)
	resp.Volatility = &volatilityResponse{
		DailyStd:        number(v.DailyStd),
		Frequency:       number(v.Frequency),
		MeanLogReturn:   number(v.MeanLogReturn),
		Trend:           string(v.Trend),
		Gauge:           number(v.Gauge),
		Level:           string(v.Level),
		ConsecutiveDays: v.ConsecutiveDays,
		UpProb:          number(v.UpProb),
		DownProb:        number(v.DownProb),
	}

	writeJSON(w, http.StatusOK, resp)
	return nil
}

type monteCarloResponse struct {
	Ticker    string             `json:"ticker"`
	LastPrice float64            `json:"last_price"`
	Mu        float64            `json:"mu"`
	Sigma     float64            `json:"sigma"`
	Days      int                `json:"days"`
	Paths     int                `json:"paths"`
	Seed      uint64             `json:"seed"`
	Summary   montecarlo.Summary `json:"summary"`
	Histogram []montecarlo.Bin   `json:"histogram"`
	Sample    [][]float64        `json:"sample_paths"`
}

// sampleLimit caps the paths returned for plotting.
const sampleLimit = 20

// handleMonteCarlo simulates future prices from the ticker's history.
func (s *Server) handleMonteCarlo(w http.ResponseWriter, r *http.Request) error {
	days, err := queryInt(r, "days", montecarlo.DefaultDays)
	if err != nil {
		return err
	}
	paths, err := queryInt(r, "paths", montecarlo.DefaultPaths)
	if err != nil {
		return err
	}
	bins, err := queryInt(r, "bins", montecarlo.DefaultBins)
	if err != nil {
		return err
	}
	seed, err := queryUint(r, "seed", uint64(s.now().UnixNano()))
	if err != nil {
		return err
	}
	series, err := s.fetchQuery(r)
	if err != nil {
		return err
	}

	res, err := montecarlo.FromSeries(series, days, paths, seed)
	if errors.Is(err, montecarlo.ErrInvalidInput) {
		return badRequest("%v", err)
	}
	if err != nil {
		return err
	}

	sample := res.Paths
	if len(sample) > sampleLimit {
		sample = sample[:sampleLimit]
	}
	writeJSON(w, http.StatusOK, monteCarloResponse{
		Ticker:    series.Ticker(),
		LastPrice: res.Config.LastPrice,
		Mu:        res.Config.Mu,
		Sigma:     res.Config.Sigma,
		Days:      res.Config.Days,
		Paths:     res.Config.Paths,
		Seed:      res.Config.Seed,
		Summary:   res.Summarize(),
		Histogram: res.Histogram(bins),
		Sample:    sample,
	})
	return nil
}

type candidateResponse struct {
	P     int    `json:"p"`
	Q     int    `json:"q"`
	AIC   number `json:"aic"`
	Error string `json:"error,omitempty"`
}

type garchResponse struct {
	Ticker                  string              `json:"ticker"`
	P                       int                 `json:"p"`
	Q                       int                 `json:"q"`
	Mu                      float64             `json:"mu"`
	Omega                   float64             `json:"omega"`
	Alpha                   []float64           `json:"alpha"`
	Beta                    []float64           `json:"beta"`
	LogLikelihood           float64             `json:"log_likelihood"`
	AIC                     float64             `json:"aic"`
	BIC                     float64             `json:"bic"`
	Persistence             float64             `json:"persistence"`
	UnconditionalVolatility number              `json:"unconditional_volatility"`
	Dates                   []string            `json:"dates"`
	Prices                  []float64           `json:"prices"`
	Volatility              []float64           `json:"volatility"`
	ForecastDates           []string            `json:"forecast_dates"`
	Forecast                []float64           `json:"forecast"`
	Correlation             number              `json:"correlation"`
	Candidates              []candidateResponse `json:"candidates,omitempty"`
}

// handleGarch fits GARCH(p,q), or selects the order by AIC when select=true
// (p and q are then the upper bounds).
func (s *Server) handleGarch(w http.ResponseWriter, r *http.Request) error {
	p, err := queryInt(r, "p", 1)
	if err != nil {
		return err
	}
	q, err := queryInt(r, "q", 1)
	if err != nil {
		return err
	}
	horizon, err := queryInt(r, "horizon", garch.DefaultHorizon)
	if err != nil {
		return err
	}
	series, err := s.fetchQuery(r)
	if err != nil {
		return err
	}

	var (
		rep *garch.Report
		sel *garch.Selection
	)
	if r.URL.Query().Get("select") == "true" {
		rep, sel, err = garch.AnalyzeBest(series, p, q, horizon)
	} else {
		rep, err = garch.Analyze(series, p, q, horizon)
	}
	switch {
	case errors.Is(err, garch.ErrInvalidOrder), errors.Is(err, garch.ErrInsufficientData):
		return badRequest("%v", err)
	case err != nil:
		return err
	}

	f := rep.Fit
	resp := garchResponse{
		Ticker:                  rep.Ticker,
		P:                       f.P,
		Q:                       f.Q,
		Mu:                      f.Mu,
		Omega:                   f.Omega,
		Alpha:                   f.Alpha,
		Beta:                    f.Beta,
		LogLikelihood:           f.LogLikelihood,
		AIC:                     f.AIC,
		BIC:                     f.BIC,
		Persistence:             f.Persistence(),
		UnconditionalVolatility: number(f.UnconditionalVolatility()),
		Dates:                   dateStrings(rep.Dates),
		Prices:                  rep.Prices,
		Volatility:              f.Volatility,
		ForecastDates:           dateStrings(rep.ForecastDates),
		Forecast:                rep.Forecast,
		Correlation:             number(rep.Correlation),
	}
	if sel != nil {
		for _, c := range sel.Candidates {
			cr := candidateResponse{P: c.P, Q: c.Q, AIC: number(c.AIC)}
			if c.Err != nil {
				cr.Error = c.Err.Error()
			}
			resp.Candidates = append(resp.Candidates, cr)
		}
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

type forecastPoint struct {
	Date  string  `json:"ds"`
	Yhat  float64 `json:"yhat"`
	Lower float64 `json:"yhat_lower"`
	Upper float64 `json:"yhat_upper"`
}

type weekdayResponse struct {
	Weekday string  `json:"weekday"`
	Effect  float64 `json:"effect"`
}

type forecastResponse struct {
	Ticker   string            `json:"ticker"`
	Interval float64           `json:"interval"`
	Slope    float64           `json:"trend_per_year"`
	Sigma    float64           `json:"sigma"`
	Forecast []forecastPoint   `json:"forecast"`
	Weekly   []weekdayResponse `json:"weekly,omitempty"`
	Yearly   []float64         `json:"yearly,omitempty"`
}

func forecastPoints(points []forecast.Point) []forecastPoint {
	out := make([]forecastPoint, len(points))
	for i, p := range points {
		out[i] = forecastPoint{Date: p.Date.Format(domain.DateLayout), Yhat: p.Yhat, Lower: p.Lower, Upper: p.Upper}
	}
	return out
}

// handleForecast fits trend plus seasonality and returns the month-end
// forecast with the weekly and yearly components.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) error {
	var (
		cfg forecast.Config
		err error
	)
	if cfg.Months, err = queryInt(r, "months", forecast.DefaultMonths); err != nil {
		return err
	}
	if cfg.YearlyOrder, err = queryInt(r, "yearly_order", forecast.DefaultYearlyOrder); err != nil {
		return err
	}
	if cfg.WeeklyOrder, err = queryInt(r, "weekly_order", forecast.DefaultWeeklyOrder); err != nil {
		return err
	}
	if cfg.Interval, err = queryFloat(r, "interval", forecast.DefaultInterval); err != nil {
		return err
	}
	series, err := s.fetchQuery(r)
	if err != nil {
		return err
	}

	rep, err := forecast.Analyze(series, cfg)
	switch {
	case errors.Is(err, forecast.ErrInvalidConfig), errors.Is(err, forecast.ErrInsufficientData):
		return badRequest("%v", err)
	case err != nil:
		return err
	}

	resp := forecastResponse{
		Ticker:   rep.Ticker,
		Interval: rep.Config.Interval,
		Slope:    rep.Slope,
		Sigma:    rep.Sigma,
		Forecast: forecastPoints(rep.Forecast),
		Yearly:   rep.Yearly,
	}
	for _, e := range rep.Weekly {
		resp.Weekly = append(resp.Weekly, weekdayResponse{Weekday: e.Weekday.String(), Effect: e.Effect})
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// PortfolioRequest is the body of POST /api/portfolio.
type PortfolioRequest struct {
	Tickers    []string `json:"tickers" validate:"required,min=1,max=20,dive,required"`
	Start      string   `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End        string   `json:"end" validate:"omitempty,datetime=2006-01-02"`
	RiskFactor *float64 `json:"risk_factor,omitempty" validate:"omitempty,gte=1,lte=10"`
	Leverage   float64  `json:"leverage" validate:"gte=0"`
	Initial    float64  `json:"initial" validate:"gte=0"`
}

type allocationResponse struct {
	RiskFactor  float64            `json:"risk_factor"`
	Weights     map[string]float64 `json:"weights"`
	FinalValue  number             `json:"final_value"`
	MaxDrawdown number             `json:"max_drawdown"`
}

type portfolioResponse struct {
	Tickers     []string             `json:"tickers"`
	Dates       []string             `json:"dates"`
	Best        allocationResponse   `json:"best"`
	Values      []float64            `json:"values"`
	Allocations []allocationResponse `json:"allocations,omitempty"`
}

// handlePortfolio optimizes weights for one risk factor, or sweeps all of
// them and returns the best by final leveraged value.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) error {
	var body PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return badRequest("decode body: %v", err)
	}
	if err := validate.Struct(body); err != nil {
		return badRequest("%v", err)
	}
	start, end, err := s.dateRange(body.Start, body.End)
	if err != nil {
		return err
	}
	leverage := orDefault(body.Leverage, 1)
	initial := orDefault(body.Initial, 10000)

	series := make([]*domain.PriceSeries, len(body.Tickers))
	eg, ctx := errgroup.WithContext(r.Context())
	for i, ticker := range body.Tickers {
		eg.Go(func() error {
			ps, err := s.provider.Fetch(ctx, ticker, start, end)
			if err != nil {
				return err
			}
			series[i] = ps
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	returns, err := portfolio.ReturnsMatrix(series...)
	if errors.Is(err, portfolio.ErrNoCommonDates) {
		return badRequest("%v", err)
	}
	if err != nil {
		return err
	}

	resp := portfolioResponse{Tickers: returns.Tickers, Dates: dateStrings(returns.Dates)}

	if body.RiskFactor != nil {
		weights, err := portfolio.OptimizeReturns(returns, *body.RiskFactor)
		if err != nil {
			return err
		}
		values, err := portfolio.LeveragedValue(returns, weights.Values, leverage, initial)
		if err != nil {
			return err
		}
		resp.Best = newAllocation(weights, values)
		resp.Values = values
		writeJSON(w, http.StatusOK, resp)
		return nil
	}

	sweep, err := portfolio.SweepRiskFactors(returns, leverage, initial)
	if err != nil {
		return err
	}
	for i, wts := range sweep.Weights {
		resp.Allocations = append(resp.Allocations, newAllocation(wts, sweep.Values[i]))
	}
	bestIdx := sweep.Ranked[0].Index
	resp.Best = resp.Allocations[bestIdx]
	resp.Values = sweep.Values[bestIdx]
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func newAllocation(w *portfolio.Weights, values []float64) allocationResponse {
	weights := make(map[string]float64, len(w.Tickers))
	for i, t := range w.Tickers {
		weights[t] = w.Values[i]
	}
	final := 0.0
	if len(values) > 0 {
		final = values[len(values)-1]
	}
	return allocationResponse{
		RiskFactor:  w.RiskFactor,
		Weights:     weights,
		FinalValue:  number(final),
		MaxDrawdown: number(metrics.MaxDrawdown(values)),
	}
}

type sectorsResponse struct {
	AsOf    string                     `json:"as_of"`
	Sector  string                     `json:"sector,omitempty"`
	Periods []analytics.Period         `json:"periods"`
	Rows    []analytics.PerformanceRow `json:"rows"`
}

// sectorHistory is how far back sector performance reaches.
const sectorHistory = 400

// handleSectors reports sector ETF performance over the standard periods,
// or ranks one sector's constituents when sector is given.
func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) error {
	asOf := domain.TruncateDay(s.now())
	if v := r.URL.Query().Get("as_of"); v != "" {
		t, err := parseDate("as_of", v)
		if err != nil {
			return err
		}
		asOf = t
	}
	periods := analytics.StandardPeriods(asOf)
	resp := sectorsResponse{AsOf: asOf.Format(domain.DateLayout), Periods: periods}

	sector := r.URL.Query().Get("sector")
	var tickers []string
	var companies []analytics.Company
	if sector != "" {
		companies = analytics.Constituents(sector)
		if len(companies) == 0 {
			return ErrNotFound
		}
		for _, c := range companies {
			tickers = append(tickers, c.Ticker)
		}
	} else {
		tickers = analytics.SectorETFs()
	}

	series, err := s.fetchAll(r, tickers, asOf.AddDate(0, 0, -sectorHistory), asOf)
	if err != nil {
		return err
	}

	if sector == "" {
		resp.Rows = analytics.SectorPerformance(series, asOf, periods)
		writeJSON(w, http.StatusOK, resp)
		return nil
	}

	name := r.URL.Query().Get("period")
	if name == "" {
		name = "1M"
	}
	var period *analytics.Period
	for i := range periods {
		if periods[i].Name == name {
			period = &periods[i]
		}
	}
	if period == nil {
		return badRequest("unknown period %q", name)
	}
	resp.Sector = sector
	resp.Rows = analytics.RankCompanies(companies, series, asOf, *period)
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// fetchAll loads every ticker concurrently; tickers without data are omitted.
func (s *Server) fetchAll(r *http.Request, tickers []string, start, end time.Time) (map[string]*domain.PriceSeries, error) {
	out := make([]*domain.PriceSeries, len(tickers))
	eg, ctx := errgroup.WithContext(r.Context())
	eg.SetLimit(4)
	for i, ticker := range tickers {
		eg.Go(func() error {
			series, err := s.provider.Fetch(ctx, ticker, start, end)
			if errors.Is(err, provider.ErrNoData) {
				return nil
			}
			if err != nil {
				return err
			}
			out[i] = series
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	m := make(map[string]*domain.PriceSeries, len(tickers))
	for i, series := range out {
		if series != nil {
			m[tickers[i]] = series
		}
	}
	return m, nil
}

func dateStrings(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(domain.DateLayout)
	}
	return out
}
