package models

import (
	"fmt"
	"math"
	"strings"
)

// OptionType identifies the side of a vanilla option.
type OptionType int

const (
	OptionTypeCall OptionType = iota
	OptionTypePut
)

// String returns the lowercase wire form of the option type
func (t OptionType) String() string {
	if t == OptionTypePut {
		return "put"
	}
	return "call"
}

// ParseOptionType parses a case-insensitive "call"/"put" string. Unknown
// values are rejected so the enum stays closed past the boundary.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call":
		return OptionTypeCall, nil
	case "put":
		return OptionTypePut, nil
	default:
		return OptionTypeCall, fmt.Errorf("unknown option type %q", s)
	}
}

// MarshalJSON encodes the option type as its string form
func (t OptionType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON decodes a case-insensitive "call"/"put" string
func (t *OptionType) UnmarshalJSON(b []byte) error {
	parsed, err := ParseOptionType(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IV provenance tags. These strings are consumed verbatim by downstream
// arbitrage and threshold tooling; do not alter them.
const (
	IVSourceATM    = "ATM IV (Module 17)"
	IVSourceMarket = "Market IV (fallback)"
)

// OptionQuote carries the scalar inputs for one pricing or solver call.
type OptionQuote struct {
	Spot            float64    `json:"spot"`
	Strike          float64    `json:"strike"`
	Rate            float64    `json:"rate"`
	TimeToExpiry    float64    `json:"time_to_expiry"`
	Volatility      float64    `json:"volatility"`
	Type            OptionType `json:"option_type"`
	DividendYield   float64    `json:"dividend_yield,omitempty"`
	CalculationDate string     `json:"calculation_date,omitempty"`
}

// OptionChainEntry is a single strike row from a quoted option chain.
type OptionChainEntry struct {
	Strike            float64 `json:"strike"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	LastPrice         float64 `json:"lastPrice"`
	Volume            int64   `json:"volume"`
	OpenInterest      int64   `json:"openInterest"`
}

// OptionChain groups chain entries by side.
type OptionChain struct {
	Calls []OptionChainEntry `json:"calls"`
	Puts  []OptionChainEntry `json:"puts"`
}

// IntrinsicReason says why a pricing fell back to intrinsic value.
type IntrinsicReason string

const (
	IntrinsicReasonExpired IntrinsicReason = "time_expired"
	IntrinsicReasonZeroVol IntrinsicReason = "zero_volatility"
)

// PricingResult is the output of a single Black-Scholes pricing.
type PricingResult struct {
	Type            OptionType      `json:"option_type"`
	Spot            float64         `json:"spot"`
	AdjustedSpot    float64         `json:"adjusted_spot"`
	Strike          float64         `json:"strike"`
	Rate            float64         `json:"rate"`
	TimeToExpiry    float64         `json:"time_to_expiry"`
	Volatility      float64         `json:"volatility"`
	DividendYield   float64         `json:"dividend_yield"`
	D1              float64         `json:"-"`
	D2              float64         `json:"-"`
	IntrinsicOnly   bool            `json:"intrinsic_only"`
	IntrinsicReason IntrinsicReason `json:"intrinsic_reason,omitempty"`
	Price           float64         `json:"price"`
	PriceRounded    float64         `json:"price_rounded"`
	IVSource        string          `json:"iv_source,omitempty"`
	IVWarning       string          `json:"iv_warning,omitempty"`
	CalculationDate string          `json:"calculation_date,omitempty"`
}

// Flatten returns a flat, JSON-serializable view of the result. Non-finite
// d1/d2 sentinels are rendered as strings so the map always serializes.
func (r *PricingResult) Flatten() map[string]interface{} {
	m := map[string]interface{}{
		"option_type":    r.Type.String(),
		"spot":           r.Spot,
		"adjusted_spot":  r.AdjustedSpot,
		"strike":         r.Strike,
		"rate":           r.Rate,
		"time_to_expiry": r.TimeToExpiry,
		"volatility":     r.Volatility,
		"dividend_yield": r.DividendYield,
		"d1":             finiteOrString(r.D1),
		"d2":             finiteOrString(r.D2),
		"intrinsic_only": r.IntrinsicOnly,
		"price":          r.Price,
		"price_rounded":  r.PriceRounded,
	}
	if r.IntrinsicReason != "" {
		m["intrinsic_reason"] = string(r.IntrinsicReason)
	}
	if r.IVSource != "" {
		m["iv_source"] = r.IVSource
	}
	if r.IVWarning != "" {
		m["iv_warning"] = r.IVWarning
	}
	if r.CalculationDate != "" {
		m["calculation_date"] = r.CalculationDate
	}
	return m
}

// CrossGreeks holds the second-order sensitivities.
type CrossGreeks struct {
	Vanna float64 `json:"vanna"`
	Volga float64 `json:"volga"`
	Charm float64 `json:"charm"`
}

// GreeksResult is the output of one Greeks computation.
//
// Unit conventions are part of the contract: ThetaDaily is dollar decay per
// calendar day, Vega is price change per one percentage point of implied
// volatility, Rho is price change per one percentage point of rate.
type GreeksResult struct {
	Type         OptionType   `json:"option_type"`
	Delta        float64      `json:"delta"`
	Gamma        float64      `json:"gamma"`
	ThetaDaily   float64      `json:"theta"`
	Vega         float64      `json:"vega"`
	Rho          float64      `json:"rho"`
	Cross        *CrossGreeks `json:"cross_greeks,omitempty"`
	DeltaRounded float64      `json:"delta_rounded"`
	GammaRounded float64      `json:"gamma_rounded"`
	ThetaRounded float64      `json:"theta_rounded"`
	VegaRounded  float64      `json:"vega_rounded"`
	RhoRounded   float64      `json:"rho_rounded"`
}

// Flatten returns a flat, JSON-serializable view of the Greeks
func (g *GreeksResult) Flatten() map[string]interface{} {
	m := map[string]interface{}{
		"option_type":   g.Type.String(),
		"delta":         g.Delta,
		"gamma":         g.Gamma,
		"theta":         g.ThetaDaily,
		"vega":          g.Vega,
		"rho":           g.Rho,
		"delta_rounded": g.DeltaRounded,
		"gamma_rounded": g.GammaRounded,
		"theta_rounded": g.ThetaRounded,
		"vega_rounded":  g.VegaRounded,
		"rho_rounded":   g.RhoRounded,
	}
	if g.Cross != nil {
		m["vanna"] = g.Cross.Vanna
		m["volga"] = g.Cross.Volga
		m["charm"] = g.Cross.Charm
	}
	return m
}

// SolveStatus is the terminal state of one Newton-Raphson solve.
type SolveStatus string

const (
	SolveStatusConverged     SolveStatus = "converged"
	SolveStatusMaxIterations SolveStatus = "max_iterations"
	SolveStatusVegaTooSmall  SolveStatus = "vega_too_small"
)

// IVSolverResult is the output of a single implied-volatility solve.
// Converged is the recoverable-failure channel: a non-converged solve is not
// an error, callers retry through the robust wrapper.
type IVSolverResult struct {
	IV               float64     `json:"iv"`
	IVPercentRounded float64     `json:"iv_percent_rounded"`
	Iterations       int         `json:"iterations"`
	Converged        bool        `json:"converged"`
	Residual         float64     `json:"residual"`
	InitialGuess     float64     `json:"initial_guess"`
	FinalPrice       float64     `json:"final_price"`
	Status           SolveStatus `json:"status"`
}

// Flatten returns a flat, JSON-serializable view of the solver result
func (r *IVSolverResult) Flatten() map[string]interface{} {
	return map[string]interface{}{
		"iv":                 r.IV,
		"iv_percent_rounded": r.IVPercentRounded,
		"iterations":         float64(r.Iterations),
		"converged":          r.Converged,
		"residual":           r.Residual,
		"initial_guess":      r.InitialGuess,
		"final_price":        r.FinalPrice,
		"status":             string(r.Status),
	}
}

// Robust solve envelope statuses.
const (
	RobustStatusSuccess = "success"
	RobustStatusFailed  = "failed"
)

// RobustIVResult is the envelope returned by the multi-guess solver.
type RobustIVResult struct {
	Status       string    `json:"status"`
	IV           float64   `json:"iv"`
	InitialGuess float64   `json:"initial_guess"`
	Iterations   int       `json:"iterations"`
	TriedGuesses []float64 `json:"tried_guesses"`
}

// RoundTo rounds v to dp decimal places. Non-finite values pass through
// unchanged so intrinsic sentinels survive until serialization.
func RoundTo(v float64, dp int) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	scale := math.Pow(10, float64(dp))
	return math.Round(v*scale) / scale
}

func finiteOrString(v float64) interface{} {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	default:
		return v
	}
}
