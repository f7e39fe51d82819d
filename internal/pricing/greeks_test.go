package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/options-engine/pkg/models"
	"github.com/quantfabric/options-engine/pkg/utils/errors"
)

func newTestEngine() (*Pricer, *Engine) {
	p := NewPricer(DefaultPricerConfig())
	return p, NewEngine(p)
}

func TestCompute_ReferenceScenario(t *testing.T) {
	_, e := newTestEngine()

	call, err := e.Compute(referenceQuote(models.OptionTypeCall))
	require.NoError(t, err)
	assert.InDelta(t, 0.6368, call.Delta, 5e-5)
	assert.InDelta(t, 0.0188, call.Gamma, 5e-5)
	assert.InDelta(t, 0.3752, call.Vega, 5e-5)
	assert.InDelta(t, -0.0176, call.ThetaDaily, 5e-5)
	assert.InDelta(t, 0.5323, call.Rho, 5e-5)
	require.NotNil(t, call.Cross)
	assert.InDelta(t, -0.2814, call.Cross.Vanna, 5e-4)
	assert.InDelta(t, 9.8501, call.Cross.Volga, 5e-3)
	assert.InDelta(t, -0.0657, call.Cross.Charm, 5e-4)

	put, err := e.Compute(referenceQuote(models.OptionTypePut))
	require.NoError(t, err)
	assert.InDelta(t, -0.3632, put.Delta, 5e-5)
}

func TestCompute_DeltaIdentity(t *testing.T) {
	_, e := newTestEngine()

	quotes := []models.OptionQuote{
		{Spot: 100, Strike: 100, Rate: 0.05, TimeToExpiry: 1, Volatility: 0.2},
		{Spot: 90, Strike: 120, Rate: 0.02, TimeToExpiry: 0.3, Volatility: 0.45},
		{Spot: 300, Strike: 250, Rate: 0.04, TimeToExpiry: 1.8, Volatility: 0.12},
	}
	for _, q := range quotes {
		callQuote, putQuote := q, q
		callQuote.Type = models.OptionTypeCall
		putQuote.Type = models.OptionTypePut

		call, err := e.Compute(callQuote)
		require.NoError(t, err)
		put, err := e.Compute(putQuote)
		require.NoError(t, err)

		assert.InDelta(t, 1.0, call.Delta-put.Delta, 1e-9,
			"call delta minus put delta must be 1 at S=%v K=%v", q.Spot, q.Strike)
	}
}

func TestCompute_GammaVegaSharedAcrossTypes(t *testing.T) {
	_, e := newTestEngine()

	q := models.OptionQuote{Spot: 110, Strike: 95, Rate: 0.03, TimeToExpiry: 0.75, Volatility: 0.3}
	callQuote, putQuote := q, q
	callQuote.Type = models.OptionTypeCall
	putQuote.Type = models.OptionTypePut

	call, err := e.Compute(callQuote)
	require.NoError(t, err)
	put, err := e.Compute(putQuote)
	require.NoError(t, err)

	assert.InDelta(t, call.Gamma, put.Gamma, 1e-9)
	assert.InDelta(t, call.Vega, put.Vega, 1e-9)
	assert.InDelta(t, call.Cross.Vanna, put.Cross.Vanna, 1e-9)
	assert.InDelta(t, call.Cross.Volga, put.Cross.Volga, 1e-9)
	assert.InDelta(t, call.Cross.Charm, put.Cross.Charm, 1e-9)
}

func TestCompute_DeltaMatchesFiniteDifference(t *testing.T) {
	p, e := newTestEngine()

	for _, optionType := range []models.OptionType{models.OptionTypeCall, models.OptionTypePut} {
		q := referenceQuote(optionType)
		greeks, err := e.Compute(q)
		require.NoError(t, err)

		h := 1e-4
		up, down := q, q
		up.Spot += h
		down.Spot -= h
		priceUp, err := p.Price(up)
		require.NoError(t, err)
		priceDown, err := p.Price(down)
		require.NoError(t, err)

		numeric := (priceUp.Price - priceDown.Price) / (2 * h)
		assert.InDelta(t, numeric, greeks.Delta, 1e-6, "%s delta", optionType)
	}
}

func TestCompute_GammaMatchesFiniteDifference(t *testing.T) {
	p, e := newTestEngine()

	q := referenceQuote(models.OptionTypeCall)
	greeks, err := e.Compute(q)
	require.NoError(t, err)

	h := 1e-2
	up, mid, down := q, q, q
	up.Spot += h
	down.Spot -= h
	priceUp, _ := p.Price(up)
	priceMid, _ := p.Price(mid)
	priceDown, _ := p.Price(down)

	numeric := (priceUp.Price - 2*priceMid.Price + priceDown.Price) / (h * h)
	assert.InDelta(t, numeric, greeks.Gamma, 1e-5)
}

func TestCompute_VegaMatchesFiniteDifference(t *testing.T) {
	p, e := newTestEngine()

	q := referenceQuote(models.OptionTypeCall)
	greeks, err := e.Compute(q)
	require.NoError(t, err)

	h := 1e-5
	up, down := q, q
	up.Volatility += h
	down.Volatility -= h
	priceUp, _ := p.Price(up)
	priceDown, _ := p.Price(down)

	// The engine quotes vega per percentage point, the difference quotient
	// is per unit of volatility.
	numericPerUnit := (priceUp.Price - priceDown.Price) / (2 * h)
	assert.InDelta(t, numericPerUnit/100, greeks.Vega, 1e-6)
}

func TestCompute_ThetaIsDailyDecay(t *testing.T) {
	p, e := newTestEngine()

	q := referenceQuote(models.OptionTypeCall)
	greeks, err := e.Compute(q)
	require.NoError(t, err)

	h := 1e-5
	shorter := q
	shorter.TimeToExpiry -= h
	longer := q
	longer.TimeToExpiry += h
	priceShorter, _ := p.Price(shorter)
	priceLonger, _ := p.Price(longer)

	annualNumeric := -(priceLonger.Price - priceShorter.Price) / (2 * h)
	assert.InDelta(t, annualNumeric/365, greeks.ThetaDaily, 1e-6)
	assert.Negative(t, greeks.ThetaDaily, "long option value decays")
}

func TestVega_UnitRoundTrip(t *testing.T) {
	_, e := newTestEngine()

	q := referenceQuote(models.OptionTypeCall)
	vegaPoint, err := e.Vega(q)
	require.NoError(t, err)

	assert.InDelta(t, 0.37524, float64(vegaPoint), 1e-5)
	assert.InDelta(t, 37.524, float64(vegaPoint.PerUnit()), 1e-3)
	assert.InDelta(t, float64(vegaPoint), float64(vegaPoint.PerUnit().PerPoint()), 1e-12)
}

func TestCompute_VolgaSignMatchesD1D2Product(t *testing.T) {
	p, e := newTestEngine()

	// Deep out of the money: d1 and d2 share a sign, volga is positive
	q := models.OptionQuote{Spot: 100, Strike: 160, Rate: 0.05, TimeToExpiry: 0.5, Volatility: 0.2, Type: models.OptionTypeCall}
	d, err := p.D1D2(q.Spot, q.Strike, q.Rate, q.TimeToExpiry, q.Volatility)
	require.NoError(t, err)
	require.Positive(t, d.D1*d.D2)

	greeks, err := e.Compute(q)
	require.NoError(t, err)
	assert.Positive(t, greeks.Cross.Volga)
}

func TestCompute_IntrinsicBranch(t *testing.T) {
	_, e := newTestEngine()

	t.Run("expired ITM call", func(t *testing.T) {
		q := models.OptionQuote{Spot: 105, Strike: 100, Rate: 0.05, TimeToExpiry: 0, Volatility: 0.2, Type: models.OptionTypeCall}
		greeks, err := e.Compute(q)
		require.NoError(t, err)
		assert.Equal(t, 1.0, greeks.Delta)
		assert.Zero(t, greeks.Gamma)
		assert.Zero(t, greeks.Vega)
		assert.Zero(t, greeks.ThetaDaily)
		assert.Zero(t, greeks.Rho)
		assert.Nil(t, greeks.Cross, "cross Greeks undefined on the intrinsic branch")
	})

	t.Run("expired OTM call", func(t *testing.T) {
		q := models.OptionQuote{Spot: 95, Strike: 100, Rate: 0.05, TimeToExpiry: 0, Volatility: 0.2, Type: models.OptionTypeCall}
		greeks, err := e.Compute(q)
		require.NoError(t, err)
		assert.Zero(t, greeks.Delta)
	})

	t.Run("expired ITM put", func(t *testing.T) {
		q := models.OptionQuote{Spot: 95, Strike: 100, Rate: 0.05, TimeToExpiry: 0, Volatility: 0.2, Type: models.OptionTypePut}
		greeks, err := e.Compute(q)
		require.NoError(t, err)
		assert.Equal(t, -1.0, greeks.Delta)
	})

	t.Run("zero volatility", func(t *testing.T) {
		q := models.OptionQuote{Spot: 100, Strike: 100, Rate: 0.05, TimeToExpiry: 1, Volatility: 0, Type: models.OptionTypeCall}
		greeks, err := e.Compute(q)
		require.NoError(t, err)
		assert.Equal(t, 1.0, greeks.Delta, "forward moneyness puts S=K in the money")
	})
}

func TestCompute_InvalidQuote(t *testing.T) {
	_, e := newTestEngine()

	q := referenceQuote(models.OptionTypeCall)
	q.Spot = -1
	_, err := e.Compute(q)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidMarket(err))
}

func TestCompute_RoundedCopies(t *testing.T) {
	_, e := newTestEngine()

	greeks, err := e.Compute(referenceQuote(models.OptionTypeCall))
	require.NoError(t, err)
	assert.Equal(t, models.RoundTo(greeks.Delta, 6), greeks.DeltaRounded)
	assert.Equal(t, models.RoundTo(greeks.Gamma, 6), greeks.GammaRounded)
	assert.Equal(t, models.RoundTo(greeks.ThetaDaily, 6), greeks.ThetaRounded)
	assert.Equal(t, models.RoundTo(greeks.Vega, 6), greeks.VegaRounded)
	assert.Equal(t, models.RoundTo(greeks.Rho, 6), greeks.RhoRounded)

	// Rounding must leave at most six decimals
	scaled := greeks.DeltaRounded * 1e6
	assert.InDelta(t, math.Round(scaled), scaled, 1e-6)
}
