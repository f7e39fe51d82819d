package pricing

import (
	"fmt"
	"math"

	"github.com/quantfabric/options-engine/pkg/models"
	"github.com/quantfabric/options-engine/pkg/utils/errors"
	"github.com/quantfabric/options-engine/pkg/utils/logger"
)

// PricerConfig bounds the inputs the pricer will accept.
type PricerConfig struct {
	// MinRate and MaxRate bound the risk-free rate; outside is an error.
	MinRate float64
	MaxRate float64
	// MaxVol bounds volatility; outside is an error. WarnVol only logs.
	MaxVol  float64
	WarnVol float64
	// WarnExpiryYears: expiries beyond this only log, they never fail.
	WarnExpiryYears float64
	// Epsilon below which time-to-expiry and volatility trigger the
	// intrinsic-value branch instead of the closed form.
	Epsilon float64
	// IVConsistencyThreshold is the relative divergence between ATM and
	// market IV beyond which an advisory warning is attached.
	IVConsistencyThreshold float64
}

// DefaultPricerConfig returns the standard input bounds
func DefaultPricerConfig() PricerConfig {
	return PricerConfig{
		MinRate:                -0.10,
		MaxRate:                0.50,
		MaxVol:                 5.0,
		WarnVol:                2.0,
		WarnExpiryYears:        10.0,
		Epsilon:                1e-10,
		IVConsistencyThreshold: 0.20,
	}
}

// D1D2 is the tagged result of the d1/d2 computation. When IntrinsicOnly is
// set the closed-form ratio was undefined (expired or zero volatility) and
// D1/D2 carry the ±Inf moneyness sentinels; callers must price intrinsically
// instead of pushing the infinities through N(x).
type D1D2 struct {
	D1            float64
	D2            float64
	IntrinsicOnly bool
	Reason        models.IntrinsicReason
}

// Pricer implements the Black-Scholes analytic model for European vanilla
// options, with optional continuous dividend yield.
type Pricer struct {
	cfg PricerConfig
	log *logger.Logger
}

// NewPricer creates a pricer with the given input bounds
func NewPricer(cfg PricerConfig) *Pricer {
	return &Pricer{
		cfg: cfg,
		log: logger.GetLogger("pricing.blackscholes"),
	}
}

// D1D2 computes the Black-Scholes d1 and d2 terms.
//
// Near-zero expiry falls back to spot moneyness (S vs K); near-zero
// volatility falls back to forward moneyness (S vs K·e^{-rT}). Both cases
// tag the result IntrinsicOnly with +Inf for in-the-money, -Inf otherwise.
func (p *Pricer) D1D2(s, k, r, t, sigma float64) (D1D2, error) {
	for _, v := range [5]float64{s, k, r, t, sigma} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return D1D2{}, errors.InvalidMarketf("non-finite input: S=%v K=%v r=%v T=%v sigma=%v", s, k, r, t, sigma)
		}
	}
	if s <= 0 || k <= 0 {
		return D1D2{}, errors.InvalidMarketf("spot and strike must be positive, got S=%v K=%v", s, k)
	}

	if t < p.cfg.Epsilon {
		return intrinsicSentinel(s > k, models.IntrinsicReasonExpired), nil
	}
	if sigma < p.cfg.Epsilon {
		forward := k * math.Exp(-r*t)
		return intrinsicSentinel(s > forward, models.IntrinsicReasonZeroVol), nil
	}

	sqrtT := math.Sqrt(t)
	volSqrtT := sigma * sqrtT
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / volSqrtT
	d2 := d1 - volSqrtT

	if math.IsNaN(d1) || math.IsNaN(d2) {
		return D1D2{}, errors.InvalidMarketf("d1/d2 undefined for S=%v K=%v r=%v T=%v sigma=%v", s, k, r, t, sigma)
	}
	return D1D2{D1: d1, D2: d2}, nil
}

func intrinsicSentinel(inTheMoney bool, reason models.IntrinsicReason) D1D2 {
	d := math.Inf(-1)
	if inTheMoney {
		d = math.Inf(1)
	}
	return D1D2{D1: d, D2: d, IntrinsicOnly: true, Reason: reason}
}

// Validate checks a quote against the pricer's input bounds. Out-of-band
// rate or volatility fails; long expiry and high volatility only warn.
func (p *Pricer) Validate(q models.OptionQuote) error {
	if q.Spot <= 0 {
		return errors.InvalidMarketf("spot must be positive, got %v", q.Spot)
	}
	if q.Strike <= 0 {
		return errors.InvalidMarketf("strike must be positive, got %v", q.Strike)
	}
	if q.Rate < p.cfg.MinRate || q.Rate > p.cfg.MaxRate {
		return errors.InvalidMarketf("rate %v outside [%v, %v]", q.Rate, p.cfg.MinRate, p.cfg.MaxRate)
	}
	if q.TimeToExpiry < 0 {
		return errors.InvalidMarketf("time to expiry must be non-negative, got %v", q.TimeToExpiry)
	}
	if q.Volatility < 0 || q.Volatility > p.cfg.MaxVol {
		return errors.InvalidMarketf("volatility %v outside [0, %v]", q.Volatility, p.cfg.MaxVol)
	}
	if q.DividendYield < 0 {
		return errors.InvalidMarketf("dividend yield must be non-negative, got %v", q.DividendYield)
	}
	if q.TimeToExpiry > p.cfg.WarnExpiryYears {
		p.log.Warnf("time to expiry %.2fy beyond %.0fy, pricing anyway", q.TimeToExpiry, p.cfg.WarnExpiryYears)
	}
	if q.Volatility > p.cfg.WarnVol {
		p.log.Warnf("volatility %.2f above %.0f%%, pricing anyway", q.Volatility, p.cfg.WarnVol*100)
	}
	return nil
}

// Price computes the theoretical Black-Scholes price for the quote.
// The dividend-adjusted spot S·e^{-qT} replaces the raw spot in both the
// d1/d2 terms and the price; the result reports both spots.
func (p *Pricer) Price(q models.OptionQuote) (*models.PricingResult, error) {
	if err := p.Validate(q); err != nil {
		return nil, err
	}

	adjustedSpot := q.Spot * math.Exp(-q.DividendYield*q.TimeToExpiry)
	discount := math.Exp(-q.Rate * q.TimeToExpiry)

	d, err := p.D1D2(adjustedSpot, q.Strike, q.Rate, q.TimeToExpiry, q.Volatility)
	if err != nil {
		return nil, err
	}

	var price float64
	if d.IntrinsicOnly {
		if q.Type == models.OptionTypeCall {
			price = math.Max(adjustedSpot-q.Strike*discount, 0)
		} else {
			price = math.Max(q.Strike*discount-adjustedSpot, 0)
		}
	} else {
		if q.Type == models.OptionTypeCall {
			price = adjustedSpot*NormCDF(d.D1) - q.Strike*discount*NormCDF(d.D2)
		} else {
			price = q.Strike*discount*NormCDF(-d.D2) - adjustedSpot*NormCDF(-d.D1)
		}
	}

	return &models.PricingResult{
		Type:            q.Type,
		Spot:            q.Spot,
		AdjustedSpot:    adjustedSpot,
		Strike:          q.Strike,
		Rate:            q.Rate,
		TimeToExpiry:    q.TimeToExpiry,
		Volatility:      q.Volatility,
		DividendYield:   q.DividendYield,
		D1:              d.D1,
		D2:              d.D2,
		IntrinsicOnly:   d.IntrinsicOnly,
		IntrinsicReason: d.Reason,
		Price:           price,
		PriceRounded:    models.RoundTo(price, 4),
		CalculationDate: q.CalculationDate,
	}, nil
}

// PriceWithATMIV prices the quote with an at-the-money IV when one is
// available and positive, falling back to the market-quoted IV otherwise.
// The chosen source is recorded verbatim in the result; downstream modules
// branch on that tag. When both IVs are usable but diverge beyond the
// configured threshold, a non-fatal advisory is attached.
func (p *Pricer) PriceWithATMIV(q models.OptionQuote, marketIV float64, atmIV *float64) (*models.PricingResult, error) {
	source := models.IVSourceMarket
	q.Volatility = marketIV
	if atmIV != nil && *atmIV > 0 {
		source = models.IVSourceATM
		q.Volatility = *atmIV
	}

	result, err := p.Price(q)
	if err != nil {
		return nil, err
	}
	result.IVSource = source

	if atmIV != nil && *atmIV > 0 && marketIV > 0 {
		if warning := IVConsistencyWarning(*atmIV, marketIV, p.cfg.IVConsistencyThreshold); warning != "" {
			p.log.Warn(warning)
			result.IVWarning = warning
		}
	}
	return result, nil
}

// IVConsistencyWarning returns a non-empty advisory when the ATM-extracted
// IV and the market-quoted IV diverge beyond relThreshold, relative to the
// market IV. An empty string means the two sources agree.
func IVConsistencyWarning(atmIV, marketIV, relThreshold float64) string {
	if atmIV <= 0 || marketIV <= 0 {
		return ""
	}
	divergence := math.Abs(atmIV-marketIV) / marketIV
	if divergence <= relThreshold {
		return ""
	}
	return fmt.Sprintf("ATM IV %.2f%% diverges from market IV %.2f%% by %.1f%% (threshold %.0f%%)",
		atmIV*100, marketIV*100, divergence*100, relThreshold*100)
}

// ParityGap returns call − put − (S_adj − K·e^{-rT}), the absolute deviation
// from dividend-adjusted put-call parity. Both results must share strike,
// expiry, rate and volatility.
func ParityGap(call, put *models.PricingResult) float64 {
	discount := math.Exp(-call.Rate * call.TimeToExpiry)
	return call.Price - put.Price - (call.AdjustedSpot - call.Strike*discount)
}
