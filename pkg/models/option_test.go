package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionType(t *testing.T) {
	cases := []struct {
		input    string
		expected OptionType
	}{
		{"call", OptionTypeCall},
		{"CALL", OptionTypeCall},
		{"Call", OptionTypeCall},
		{" put ", OptionTypePut},
		{"PUT", OptionTypePut},
	}
	for _, tc := range cases {
		parsed, err := ParseOptionType(tc.input)
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.expected, parsed)
	}

	_, err := ParseOptionType("straddle")
	assert.Error(t, err)
	_, err = ParseOptionType("")
	assert.Error(t, err)
}

func TestOptionType_JSONRoundTrip(t *testing.T) {
	for _, optionType := range []OptionType{OptionTypeCall, OptionTypePut} {
		encoded, err := json.Marshal(optionType)
		require.NoError(t, err)

		var decoded OptionType
		require.NoError(t, json.Unmarshal(encoded, &decoded))
		assert.Equal(t, optionType, decoded)
	}

	var decoded OptionType
	assert.Error(t, json.Unmarshal([]byte(`"butterfly"`), &decoded))
}

func TestOptionQuote_JSONFieldNames(t *testing.T) {
	q := OptionQuote{
		Spot:         100,
		Strike:       105,
		Rate:         0.05,
		TimeToExpiry: 0.5,
		Volatility:   0.2,
		Type:         OptionTypePut,
	}
	encoded, err := json.Marshal(q)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &m))
	assert.Equal(t, 105.0, m["strike"])
	assert.Equal(t, "put", m["option_type"])
	assert.Equal(t, 0.5, m["time_to_expiry"])
	assert.NotContains(t, m, "dividend_yield", "zero dividend is omitted")
}

func TestIVSourceTags(t *testing.T) {
	// Downstream consumers match these strings verbatim
	assert.Equal(t, "ATM IV (Module 17)", IVSourceATM)
	assert.Equal(t, "Market IV (fallback)", IVSourceMarket)
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 10.4506, RoundTo(10.45061234, 4))
	assert.Equal(t, 10.4507, RoundTo(10.45066, 4))
	assert.Equal(t, -0.0176, RoundTo(-0.017573, 4))
	assert.Equal(t, 23.46, RoundTo(23.456, 2))
	assert.Equal(t, 0.0, RoundTo(0, 6))
}

func TestRoundTo_NonFinitePassThrough(t *testing.T) {
	assert.True(t, math.IsInf(RoundTo(math.Inf(1), 4), 1))
	assert.True(t, math.IsInf(RoundTo(math.Inf(-1), 4), -1))
	assert.True(t, math.IsNaN(RoundTo(math.NaN(), 4)))
}

func TestPricingResult_Flatten(t *testing.T) {
	r := PricingResult{
		Type:         OptionTypeCall,
		Spot:         100,
		AdjustedSpot: 100,
		Strike:       100,
		Rate:         0.05,
		TimeToExpiry: 1,
		Volatility:   0.2,
		D1:           0.35,
		D2:           0.15,
		Price:        10.4506,
		PriceRounded: 10.4506,
		IVSource:     IVSourceATM,
	}
	flat := r.Flatten()

	assert.Equal(t, "call", flat["option_type"])
	assert.Equal(t, 0.35, flat["d1"])
	assert.Equal(t, IVSourceATM, flat["iv_source"])
	assert.NotContains(t, flat, "intrinsic_reason")
	assert.NotContains(t, flat, "iv_warning")

	// The flat view must always survive JSON encoding
	_, err := json.Marshal(flat)
	require.NoError(t, err)
}

func TestPricingResult_FlattenNonFinite(t *testing.T) {
	r := PricingResult{
		Type:            OptionTypeCall,
		D1:              math.Inf(1),
		D2:              math.Inf(-1),
		IntrinsicOnly:   true,
		IntrinsicReason: IntrinsicReasonZeroVol,
	}
	flat := r.Flatten()

	assert.Equal(t, "+Inf", flat["d1"])
	assert.Equal(t, "-Inf", flat["d2"])
	assert.Equal(t, "zero_volatility", flat["intrinsic_reason"])

	_, err := json.Marshal(flat)
	require.NoError(t, err, "sentinels render as strings so encoding never fails")
}

func TestGreeksResult_Flatten(t *testing.T) {
	g := GreeksResult{
		Type:       OptionTypePut,
		Delta:      -0.3632,
		Gamma:      0.0188,
		ThetaDaily: -0.0045,
		Vega:       0.3752,
		Rho:        -0.4190,
		Cross:      &CrossGreeks{Vanna: -0.28, Volga: 9.85, Charm: -0.066},
	}
	flat := g.Flatten()

	assert.Equal(t, "put", flat["option_type"])
	assert.Equal(t, -0.0045, flat["theta"])
	assert.Equal(t, -0.28, flat["vanna"])
	assert.Equal(t, 9.85, flat["volga"])

	g.Cross = nil
	flat = g.Flatten()
	assert.NotContains(t, flat, "vanna")
}

func TestGreeksResult_ThetaJSONKey(t *testing.T) {
	encoded, err := json.Marshal(GreeksResult{ThetaDaily: -0.0176})
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &m))
	assert.Equal(t, -0.0176, m["theta"], "daily theta is published under the plain theta key")
}

func TestIVSolverResult_Flatten(t *testing.T) {
	r := IVSolverResult{
		IV:               0.2013,
		IVPercentRounded: 20.13,
		Iterations:       4,
		Converged:        true,
		Status:           SolveStatusConverged,
	}
	flat := r.Flatten()

	assert.Equal(t, 0.2013, flat["iv"])
	assert.Equal(t, 20.13, flat["iv_percent_rounded"])
	assert.Equal(t, true, flat["converged"])
	assert.Equal(t, "converged", flat["status"])
}

func TestOptionChainEntry_JSONFieldNames(t *testing.T) {
	raw := `{"strike":100,"impliedVolatility":0.22,"bid":1.2,"ask":1.4,"lastPrice":1.3,"volume":150,"openInterest":900}`

	var entry OptionChainEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, 100.0, entry.Strike)
	assert.Equal(t, 0.22, entry.ImpliedVolatility)
	assert.Equal(t, int64(150), entry.Volume)
	assert.Equal(t, int64(900), entry.OpenInterest)
}
