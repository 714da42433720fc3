package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/beta-portfolio/internal/adapter"
	"github.com/beta-portfolio/internal/beta"
	"github.com/beta-portfolio/internal/config"
	"github.com/beta-portfolio/internal/errors"
	"github.com/beta-portfolio/internal/metrics"
	"github.com/beta-portfolio/internal/storage"
	"github.com/beta-portfolio/internal/types"
)

// Progress checkpoints reported through the status endpoint while a run
// moves through the pipeline stages.
const (
	progressStarted    = 10
	progressScanned    = 30
	progressSelected   = 50
	progressBenchmarks = 70
	progressBetas      = 85
	progressScored     = 95
	progressDone       = 100
)

// Analyzer runs the four-stage pipeline: discover holdings, fetch price
// histories, estimate betas, and score the portfolio.
type Analyzer struct {
	cfg       config.AnalysisConfig
	scanner   *Scanner
	history   adapter.HistoricalPriceSource
	bench     adapter.BenchmarkSource
	cache     storage.PriceCache
	store     storage.AnalysisStore
	estimator beta.Estimator
	met       *metrics.Metrics
	log       zerolog.Logger
}

// NewAnalyzer wires the pipeline. cache may be nil to disable benchmark
// history caching.
func NewAnalyzer(cfg config.AnalysisConfig, scanner *Scanner, history adapter.HistoricalPriceSource, bench adapter.BenchmarkSource, cache storage.PriceCache, store storage.AnalysisStore, met *metrics.Metrics, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		cfg:       cfg,
		scanner:   scanner,
		history:   history,
		bench:     bench,
		cache:     cache,
		store:     store,
		estimator: beta.DefaultEstimator,
		met:       met,
		log:       log,
	}
}

// Begin validates the wallet address and registers a pending run. The
// returned record's ID is used to track the run through Status.
func (a *Analyzer) Begin(ctx context.Context, wallet string) (*storage.Analysis, error) {
	if !adapter.IsValidAddress(wallet) {
		return nil, errors.NewInvalidAddressError(wallet)
	}

	record := &storage.Analysis{
		ID:        uuid.New().String(),
		Wallet:    wallet,
		Status:    types.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.Put(ctx, record); err != nil {
		return nil, err
	}
	a.met.AnalysesStarted.Inc()
	return record, nil
}

// Status returns the stored state of a run.
func (a *Analyzer) Status(ctx context.Context, id string) (*storage.Analysis, error) {
	return a.store.Get(ctx, id)
}

// Reject fails a registered run that never made it onto the worker pool, so
// the record does not linger as pending forever.
func (a *Analyzer) Reject(ctx context.Context, id string, cause error) {
	cat := errors.Categorize(cause)
	a.met.AnalysesFailed.WithLabelValues(string(cat.Category)).Inc()
	_, _ = a.store.CompareAndSwap(ctx, id, types.StatusPending, func(rec *storage.Analysis) {
		rec.Status = types.StatusFailed
		rec.Error = cat.ToServiceError()
	})
}

// Run executes the pipeline for a previously registered run. It is meant to
// be dispatched on the worker pool; all failures are recorded on the run
// itself rather than returned.
func (a *Analyzer) Run(ctx context.Context, id, wallet string) {
	started := time.Now()
	log := a.log.With().Str("analysisId", id).Str("wallet", wallet).Logger()

	swapped, err := a.store.CompareAndSwap(ctx, id, types.StatusPending, func(rec *storage.Analysis) {
		rec.Status = types.StatusRunning
		rec.Progress = progressStarted
	})
	if err != nil || !swapped {
		log.Warn().Err(err).Msg("run not in pending state, skipping")
		return
	}

	result, runErr := a.analyze(ctx, id, wallet, log)
	if runErr != nil {
		cat := errors.Categorize(runErr)
		a.met.AnalysesFailed.WithLabelValues(string(cat.Category)).Inc()
		log.Error().Err(runErr).Str("category", string(cat.Category)).Msg("analysis failed")

		_, _ = a.store.CompareAndSwap(ctx, id, types.StatusRunning, func(rec *storage.Analysis) {
			rec.Status = types.StatusFailed
			rec.Error = cat.ToServiceError()
		})
		return
	}

	a.met.AnalysesCompleted.Inc()
	a.met.AnalysisDuration.Observe(time.Since(started).Seconds())
	log.Info().
		Float64("score", result.Score).
		Str("mode", result.ScoringMode).
		Int("positions", len(result.Positions)).
		Msg("analysis completed")

	_, _ = a.store.CompareAndSwap(ctx, id, types.StatusRunning, func(rec *storage.Analysis) {
		rec.Status = types.StatusCompleted
		rec.Progress = progressDone
		rec.Result = result
	})
}

func (a *Analyzer) setProgress(ctx context.Context, id string, progress int) {
	_, _ = a.store.CompareAndSwap(ctx, id, types.StatusRunning, func(rec *storage.Analysis) {
		rec.Progress = progress
	})
}

func (a *Analyzer) analyze(ctx context.Context, id, wallet string, log zerolog.Logger) (*beta.PortfolioResult, error) {
	positions, err := a.scanner.Scan(ctx, wallet)
	if err != nil {
		return nil, err
	}
	a.setProgress(ctx, id, progressScanned)

	selected := beta.SelectTop(positions, a.cfg.MaxPositions, a.cfg.MinUSDValue)
	if len(selected) == 0 {
		return nil, errors.NewNoEligiblePositionsError(a.cfg.MinUSDValue, len(a.scanner.Chains()))
	}
	a.met.PositionsSelected.Observe(float64(len(selected)))
	a.setProgress(ctx, id, progressSelected)

	benchReturns := a.benchmarkReturns(ctx, log)
	a.setProgress(ctx, id, progressBenchmarks)

	annotated, weights := a.positionBetas(ctx, selected, benchReturns, log)
	a.setProgress(ctx, id, progressBetas)

	portfolioBetas := make(map[types.BenchmarkKey]float64, len(benchReturns))
	for key := range benchReturns {
		betas := make([]float64, len(annotated))
		for i, p := range annotated {
			betas[i] = p.Betas[key]
		}
		portfolioBetas[key] = beta.PortfolioBeta(weights, betas)
	}

	var strategy beta.ScoringStrategy = beta.BetaScoring{}
	if len(benchReturns) == 0 {
		strategy = beta.CategoryScoring{}
		log.Warn().Msg("no benchmark history available, using category scoring")
	}

	score := strategy.Score(beta.ScoringInput{
		Selected:       annotated,
		AllPositions:   positions,
		PortfolioBetas: portfolioBetas,
	})
	a.setProgress(ctx, id, progressScored)

	var total float64
	for _, p := range positions {
		total += p.USDValue
	}

	return &beta.PortfolioResult{
		Wallet:         wallet,
		TotalValue:     total,
		Positions:      annotated,
		PortfolioBetas: portfolioBetas,
		Score:          score.Score,
		ScoreBreakdown: score.Breakdown,
		ScoringMode:    strategy.Name(),
		TokenCount:     len(positions),
	}, nil
}

// benchmarkReturns fetches and converts each benchmark's price history. A
// benchmark whose history cannot be fetched or yields fewer than two returns
// is dropped; the caller decides what an empty map means.
func (a *Analyzer) benchmarkReturns(ctx context.Context, log zerolog.Logger) map[types.BenchmarkKey]beta.ReturnSeries {
	out := make(map[types.BenchmarkKey]beta.ReturnSeries, len(a.cfg.Benchmarks))
	for _, key := range types.BenchmarkKeys(a.cfg.Benchmarks) {
		coinID := a.cfg.Benchmarks[key]
		history, err := a.benchmarkHistory(ctx, coinID)
		if err != nil {
			log.Warn().Err(err).Str("benchmark", string(key)).Msg("benchmark history fetch failed")
			continue
		}
		returns := beta.BuildReturns(history)
		if returns.Len() < 2 {
			log.Warn().Str("benchmark", string(key)).Int("returns", returns.Len()).Msg("benchmark history too short")
			continue
		}
		out[key] = returns
	}
	return out
}

func (a *Analyzer) benchmarkHistory(ctx context.Context, coinID string) ([]types.PricePoint, error) {
	if a.cache != nil {
		if history, ok, err := a.cache.Get(ctx, coinID, a.cfg.LookbackDays); err == nil && ok {
			return history, nil
		}
	}
	history, err := a.bench.GetBenchmarkHistory(ctx, coinID, a.cfg.LookbackDays)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		if err := a.cache.Set(ctx, coinID, a.cfg.LookbackDays, history); err != nil {
			a.log.Debug().Err(err).Str("coin", coinID).Msg("benchmark cache write failed")
		}
	}
	return history, nil
}

// positionBetas estimates each selected position's beta against every
// available benchmark. Positions without usable history keep the estimator's
// market-neutral fallback and are flagged accordingly.
func (a *Analyzer) positionBetas(ctx context.Context, selected []types.Position, benchReturns map[types.BenchmarkKey]beta.ReturnSeries, log zerolog.Logger) ([]beta.PositionBeta, []float64) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -a.cfg.LookbackDays)

	annotated := make([]beta.PositionBeta, len(selected))
	values := make([]float64, len(selected))

	for i, pos := range selected {
		values[i] = pos.USDValue

		history, err := a.history.GetPriceHistory(ctx, pos.ChainID, pos.TokenAddress, from, to)
		var returns beta.ReturnSeries
		if err != nil {
			log.Warn().Err(errors.NewDataUnavailableError(pos.Symbol, err)).Msg("asset history unavailable")
		} else {
			returns = beta.BuildReturns(history)
		}

		quality := beta.QualityEstimated
		if returns.Len() < 2 {
			quality = beta.QualityFallback
		}

		betas := make(map[types.BenchmarkKey]float64, len(benchReturns))
		for key, bench := range benchReturns {
			// a pair below the overlap floor reports the fallback even
			// when the asset series alone looks long enough
			if !a.estimator.Estimable(returns, bench) {
				quality = beta.QualityFallback
			}
			betas[key] = a.estimator.Beta(returns, bench)
		}

		annotated[i] = beta.PositionBeta{
			Position: pos,
			Betas:    betas,
			Quality:  quality,
		}
	}

	return annotated, beta.Weights(values)
}
