package pricing

import (
	"math"

	"github.com/quantfabric/options-engine/pkg/models"
	"github.com/quantfabric/options-engine/pkg/utils/logger"
)

// VegaPerPoint is vega quoted per one percentage point of implied
// volatility (31% → 32%). This is the public convention.
type VegaPerPoint float64

// VegaPerUnit is vega quoted per 1.00 of absolute volatility, the raw
// derivative ∂V/∂σ the Newton-Raphson solver needs.
type VegaPerUnit float64

// PerUnit converts per-point vega back to the absolute-unit derivative
func (v VegaPerPoint) PerUnit() VegaPerUnit {
	return VegaPerUnit(float64(v) * 100)
}

// PerPoint converts an absolute-unit vega to the per-point convention
func (v VegaPerUnit) PerPoint() VegaPerPoint {
	return VegaPerPoint(float64(v) / 100)
}

// Engine computes option Greeks. Every Greek derives from the pricer's own
// d1/d2 so prices and sensitivities never disagree on the intermediates.
type Engine struct {
	pricer *Pricer
	log    *logger.Logger
}

// NewEngine creates a Greeks engine sharing the given pricer's d1/d2
func NewEngine(pricer *Pricer) *Engine {
	return &Engine{
		pricer: pricer,
		log:    logger.GetLogger("pricing.greeks"),
	}
}

// Compute returns the full set of Greeks for the quote.
//
// Unit conventions: ThetaDaily is the annualized theta divided by 365
// (dollar decay per calendar day), Vega and Rho are per one percentage
// point. Cross-Greeks are omitted on the intrinsic-only branch, where the
// closed-form derivatives are undefined.
func (e *Engine) Compute(q models.OptionQuote) (*models.GreeksResult, error) {
	if err := e.pricer.Validate(q); err != nil {
		return nil, err
	}

	d, err := e.pricer.D1D2(q.Spot, q.Strike, q.Rate, q.TimeToExpiry, q.Volatility)
	if err != nil {
		return nil, err
	}
	if d.IntrinsicOnly {
		return e.intrinsicGreeks(q, d), nil
	}

	s, k, r, t, sigma := q.Spot, q.Strike, q.Rate, q.TimeToExpiry, q.Volatility
	sqrtT := math.Sqrt(t)
	discount := math.Exp(-r * t)
	pdfD1 := NormPDF(d.D1)

	var delta, thetaAnnual, rho float64
	if q.Type == models.OptionTypeCall {
		delta = NormCDF(d.D1)
		thetaAnnual = -(s*pdfD1*sigma)/(2*sqrtT) - r*k*discount*NormCDF(d.D2)
		rho = k * t * discount * NormCDF(d.D2) / 100
	} else {
		delta = NormCDF(d.D1) - 1
		thetaAnnual = -(s*pdfD1*sigma)/(2*sqrtT) + r*k*discount*NormCDF(-d.D2)
		rho = -k * t * discount * NormCDF(-d.D2) / 100
	}

	gamma := pdfD1 / (s * sigma * sqrtT)
	vegaUnit := VegaPerUnit(s * pdfD1 * sqrtT)
	vega := vegaUnit.PerPoint()
	thetaDaily := thetaAnnual / 365

	// Same for calls and puts: vanna = ∂Δ/∂σ, volga = ∂vega/∂σ,
	// charm = ∂Δ/∂t (zero dividend yield form).
	vanna := -pdfD1 * d.D2 / sigma
	volga := float64(vegaUnit) * d.D1 * d.D2 / sigma
	charm := -pdfD1 * (2*r*t - d.D2*sigma*sqrtT) / (2 * t * sigma * sqrtT)

	return &models.GreeksResult{
		Type:       q.Type,
		Delta:      delta,
		Gamma:      gamma,
		ThetaDaily: thetaDaily,
		Vega:       float64(vega),
		Rho:        rho,
		Cross: &models.CrossGreeks{
			Vanna: vanna,
			Volga: volga,
			Charm: charm,
		},
		DeltaRounded: models.RoundTo(delta, 6),
		GammaRounded: models.RoundTo(gamma, 6),
		ThetaRounded: models.RoundTo(thetaDaily, 6),
		VegaRounded:  models.RoundTo(float64(vega), 6),
		RhoRounded:   models.RoundTo(rho, 6),
	}, nil
}

// Vega returns only the per-point vega for the quote. The solver converts
// it back to absolute units through VegaPerPoint.PerUnit; that round trip
// is the unit contract between the two components.
func (e *Engine) Vega(q models.OptionQuote) (VegaPerPoint, error) {
	greeks, err := e.Compute(q)
	if err != nil {
		return 0, err
	}
	return VegaPerPoint(greeks.Vega), nil
}

// intrinsicGreeks returns the degenerate sensitivities for an expired or
// zero-volatility option: a step-function delta and zeros elsewhere.
func (e *Engine) intrinsicGreeks(q models.OptionQuote, d D1D2) *models.GreeksResult {
	inTheMoney := math.IsInf(d.D1, 1)

	var delta float64
	if q.Type == models.OptionTypeCall {
		if inTheMoney {
			delta = 1
		}
	} else {
		if !inTheMoney {
			delta = -1
		}
	}

	e.log.Debugf("intrinsic-only greeks for %s (%s)", q.Type, d.Reason)

	return &models.GreeksResult{
		Type:         q.Type,
		Delta:        delta,
		DeltaRounded: models.RoundTo(delta, 6),
	}
}
