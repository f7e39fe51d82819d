package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/quantfabric/options-engine/internal/pricing"
	"github.com/quantfabric/options-engine/pkg/models"
	"github.com/quantfabric/options-engine/pkg/utils/logger"
)

// Config controls batch parallelism.
type Config struct {
	Workers int
}

// Request is one contract to evaluate. When MarketPrice is set the robust
// implied-volatility solve runs as well.
type Request struct {
	Quote       models.OptionQuote `json:"quote"`
	MarketPrice *float64           `json:"market_price,omitempty"`
}

// Result is the evaluation of one request. Error carries a per-contract
// validation failure; one bad strike never sinks the rest of the ladder.
type Result struct {
	Quote   models.OptionQuote     `json:"quote"`
	Pricing *models.PricingResult  `json:"pricing,omitempty"`
	Greeks  *models.GreeksResult   `json:"greeks,omitempty"`
	IV      *models.RobustIVResult `json:"iv,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Engine evaluates many contracts concurrently. The pricing core is pure
// and re-entrant, so requests shard across workers with no coordination
// beyond slot-indexed result aggregation.
type Engine struct {
	pricer  *pricing.Pricer
	greeks  *pricing.Engine
	solver  *pricing.Solver
	workers int
	log     *logger.Logger
}

// NewEngine creates a batch engine over the shared pricing components
func NewEngine(cfg Config, pricer *pricing.Pricer, greeks *pricing.Engine, solver *pricing.Solver) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	return &Engine{
		pricer:  pricer,
		greeks:  greeks,
		solver:  solver,
		workers: workers,
		log:     logger.GetLogger("batch.engine"),
	}
}

// EvaluateAll prices every request, preserving input order in the results.
// Context cancellation stops scheduling new work; already-running
// evaluations finish (each is a bounded CPU-only computation).
func (e *Engine) EvaluateAll(ctx context.Context, requests []Request) ([]Result, error) {
	results := make([]Result, len(requests))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, req := range requests {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		i, req := i, req
		g.Go(func() error {
			results[i] = e.evaluate(req)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) evaluate(req Request) Result {
	result := Result{Quote: req.Quote}

	priced, err := e.pricer.Price(req.Quote)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Pricing = priced

	greeks, err := e.greeks.Compute(req.Quote)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Greeks = greeks

	if req.MarketPrice != nil {
		result.IV = e.solver.SolveRobust(*req.MarketPrice, req.Quote)
	}
	return result
}

// GreeksSurface evaluates the Greeks across a strike × expiry grid at a
// fixed volatility, keyed "<expiry-years>" then "<strike>".
func (e *Engine) GreeksSurface(
	ctx context.Context,
	spot float64,
	strikes []float64,
	expiries []float64,
	rate float64,
	volatility float64,
	optionType models.OptionType,
) (map[string]map[string]*models.GreeksResult, error) {
	surface := make(map[string]map[string]*models.GreeksResult, len(expiries))

	requests := make([]Request, 0, len(strikes)*len(expiries))
	for _, t := range expiries {
		for _, strike := range strikes {
			requests = append(requests, Request{
				Quote: models.OptionQuote{
					Spot:         spot,
					Strike:       strike,
					Rate:         rate,
					TimeToExpiry: t,
					Volatility:   volatility,
					Type:         optionType,
				},
			})
		}
	}

	results, err := e.EvaluateAll(ctx, requests)
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		if res.Error != "" {
			e.log.Warnf("surface point K=%.2f T=%.4f skipped: %s", res.Quote.Strike, res.Quote.TimeToExpiry, res.Error)
			continue
		}
		expiryKey := fmt.Sprintf("%g", res.Quote.TimeToExpiry)
		strikeKey := fmt.Sprintf("%.2f", res.Quote.Strike)
		if _, ok := surface[expiryKey]; !ok {
			surface[expiryKey] = make(map[string]*models.GreeksResult, len(strikes))
		}
		surface[expiryKey][strikeKey] = res.Greeks
	}
	return surface, nil
}
