package pricing

import (
	"math"

	"github.com/quantfabric/options-engine/pkg/models"
	"github.com/quantfabric/options-engine/pkg/utils/errors"
	"github.com/quantfabric/options-engine/pkg/utils/logger"
)

// SolverConfig tunes the Newton-Raphson implied-volatility solver.
type SolverConfig struct {
	// Tolerance is the absolute price residual below which the solve
	// converges.
	Tolerance float64
	// MaxIterations caps the Newton loop; exceeding it is reported through
	// the result, never as an error.
	MaxIterations int
	// MinVol and MaxVol clamp every Newton step.
	MinVol float64
	MaxVol float64
	// VegaFloor is the absolute-unit vega below which the solve stops as
	// vega_too_small.
	VegaFloor float64
	// FallbackGuesses is the priority list the robust wrapper walks.
	FallbackGuesses []float64
	// RobustMinIV and RobustMaxIV are the acceptance band for a robust
	// solve; a converged IV outside the band is still treated as a failure.
	RobustMinIV float64
	RobustMaxIV float64
}

// DefaultSolverConfig returns the standard solver tuning
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Tolerance:       1e-4,
		MaxIterations:   100,
		MinVol:          0.001,
		MaxVol:          5.0,
		VegaFloor:       1e-10,
		FallbackGuesses: []float64{0.20, 0.10, 0.50, 0.05, 1.00},
		RobustMinIV:     0.01,
		RobustMaxIV:     5.0,
	}
}

// Solver inverts a market price to implied volatility using Newton-Raphson
// with the Black-Scholes vega as the derivative.
type Solver struct {
	pricer *Pricer
	greeks *Engine
	cfg    SolverConfig
	log    *logger.Logger
}

// NewSolver creates a solver sharing the pricer and Greeks engine so the
// iteration uses the exact same d1/d2 as the prices it inverts
func NewSolver(pricer *Pricer, greeks *Engine, cfg SolverConfig) *Solver {
	if len(cfg.FallbackGuesses) == 0 {
		cfg.FallbackGuesses = DefaultSolverConfig().FallbackGuesses
	}
	return &Solver{
		pricer: pricer,
		greeks: greeks,
		cfg:    cfg,
		log:    logger.GetLogger("pricing.ivsolver"),
	}
}

// Solve inverts marketPrice to implied volatility for the quote; the
// quote's own Volatility field is ignored. A nil initialGuess selects the
// Brenner-Subrahmanyam approximation √(2π/T)·(P/S).
//
// Non-convergence (iteration budget exhausted, vega collapse) is reported
// through Converged/Status on the result. The returned error is reserved
// for invalid market parameters.
func (s *Solver) Solve(marketPrice float64, q models.OptionQuote, initialGuess *float64) (*models.IVSolverResult, error) {
	if err := s.validate(marketPrice, q); err != nil {
		return nil, err
	}

	guess := s.defaultGuess(marketPrice, q)
	if initialGuess != nil {
		guess = s.clamp(*initialGuess)
	}

	sigma := guess
	var lastPrice, residual float64

	for i := 0; i < s.cfg.MaxIterations; i++ {
		q.Volatility = sigma
		priced, err := s.pricer.Price(q)
		if err != nil {
			return nil, err
		}
		lastPrice = priced.Price
		residual = lastPrice - marketPrice

		if math.Abs(residual) < s.cfg.Tolerance {
			return s.result(sigma, i, true, residual, guess, lastPrice, models.SolveStatusConverged), nil
		}

		vegaPoint, err := s.greeks.Vega(q)
		if err != nil {
			return nil, err
		}
		vega := float64(vegaPoint.PerUnit())
		if math.Abs(vega) < s.cfg.VegaFloor {
			s.log.Debugf("vega %.3e below floor at sigma=%.4f, stopping", vega, sigma)
			return s.result(sigma, i, false, residual, guess, lastPrice, models.SolveStatusVegaTooSmall), nil
		}

		sigma = s.clamp(sigma - residual/vega)
	}

	s.log.Debugf("no convergence after %d iterations (guess %.4f, residual %.3e)",
		s.cfg.MaxIterations, guess, residual)
	return s.result(sigma, s.cfg.MaxIterations, false, residual, guess, lastPrice, models.SolveStatusMaxIterations), nil
}

// SolveRobust retries the solve across the fixed priority list of initial
// guesses, accepting the first converged result inside the robust IV band.
// Pure retry strategy: invalid inputs surface as a failed envelope with
// every guess recorded, not as an error, so chain sweeps keep moving.
func (s *Solver) SolveRobust(marketPrice float64, q models.OptionQuote) *models.RobustIVResult {
	tried := make([]float64, 0, len(s.cfg.FallbackGuesses))

	for _, guess := range s.cfg.FallbackGuesses {
		g := guess
		tried = append(tried, g)

		result, err := s.Solve(marketPrice, q, &g)
		if err != nil {
			continue
		}
		if result.Converged && result.IV >= s.cfg.RobustMinIV && result.IV <= s.cfg.RobustMaxIV {
			return &models.RobustIVResult{
				Status:       models.RobustStatusSuccess,
				IV:           result.IV,
				InitialGuess: g,
				Iterations:   result.Iterations,
				TriedGuesses: tried,
			}
		}
	}

	s.log.Warnf("robust IV solve failed after %d guesses (market price %.4f, strike %.2f)",
		len(tried), marketPrice, q.Strike)
	return &models.RobustIVResult{
		Status:       models.RobustStatusFailed,
		TriedGuesses: tried,
	}
}

// ExtractATMIV picks the implied volatility of the chain entry whose strike
// is nearest the current price, preferring the side matching the option
// type and falling back to the other side. Percentage-form IVs (>5) are
// normalized to decimals. Returns nil when neither side has a usable
// strike/IV pair.
func (s *Solver) ExtractATMIV(chain models.OptionChain, currentPrice float64, optionType models.OptionType) *float64 {
	preferred, fallback := chain.Calls, chain.Puts
	if optionType == models.OptionTypePut {
		preferred, fallback = chain.Puts, chain.Calls
	}

	if iv := nearestValidIV(preferred, currentPrice); iv != nil {
		return iv
	}
	return nearestValidIV(fallback, currentPrice)
}

func nearestValidIV(entries []models.OptionChainEntry, currentPrice float64) *float64 {
	var best *float64
	bestDist := math.Inf(1)

	for _, entry := range entries {
		if entry.Strike <= 0 || entry.ImpliedVolatility <= 0 {
			continue
		}
		dist := math.Abs(entry.Strike - currentPrice)
		if dist < bestDist {
			iv := entry.ImpliedVolatility
			if iv > 5 {
				// Quoted in percent rather than decimal form
				iv /= 100
			}
			best = &iv
			bestDist = dist
		}
	}
	return best
}

func (s *Solver) validate(marketPrice float64, q models.OptionQuote) error {
	if marketPrice <= 0 || math.IsNaN(marketPrice) || math.IsInf(marketPrice, 0) {
		return errors.InvalidMarketf("market price must be positive, got %v", marketPrice)
	}
	if q.Spot <= 0 || q.Strike <= 0 {
		return errors.InvalidMarketf("spot and strike must be positive, got S=%v K=%v", q.Spot, q.Strike)
	}
	if q.TimeToExpiry <= 0 {
		return errors.InvalidMarketf("time to expiry must be positive, got %v", q.TimeToExpiry)
	}
	if q.Rate < s.pricer.cfg.MinRate || q.Rate > s.pricer.cfg.MaxRate {
		return errors.InvalidMarketf("rate %v outside [%v, %v]", q.Rate, s.pricer.cfg.MinRate, s.pricer.cfg.MaxRate)
	}
	return nil
}

// defaultGuess is the Brenner-Subrahmanyam approximation, clamped to the
// solver's volatility band.
func (s *Solver) defaultGuess(marketPrice float64, q models.OptionQuote) float64 {
	guess := math.Sqrt(2*math.Pi/q.TimeToExpiry) * (marketPrice / q.Spot)
	return s.clamp(guess)
}

func (s *Solver) clamp(sigma float64) float64 {
	return math.Min(math.Max(sigma, s.cfg.MinVol), s.cfg.MaxVol)
}

func (s *Solver) result(iv float64, iterations int, converged bool, residual, guess, finalPrice float64, status models.SolveStatus) *models.IVSolverResult {
	return &models.IVSolverResult{
		IV:               iv,
		IVPercentRounded: models.RoundTo(iv*100, 2),
		Iterations:       iterations,
		Converged:        converged,
		Residual:         residual,
		InitialGuess:     guess,
		FinalPrice:       finalPrice,
		Status:           status,
	}
}
