package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormCDF_KnownValues(t *testing.T) {
	assert.InDelta(t, 0.5, NormCDF(0), 1e-12, "CDF at zero")
	assert.InDelta(t, 0.841344746, NormCDF(1), 1e-9, "CDF at one sigma")
	assert.InDelta(t, 0.158655254, NormCDF(-1), 1e-9, "CDF at minus one sigma")
	assert.InDelta(t, 0.977249868, NormCDF(2), 1e-9, "CDF at two sigma")
	assert.InDelta(t, 0.636830651, NormCDF(0.35), 1e-9)
	assert.InDelta(t, 0.559617692, NormCDF(0.15), 1e-9)
}

func TestNormCDF_Symmetry(t *testing.T) {
	for _, x := range []float64{0.1, 0.5, 1.3, 2.7, 4.2} {
		assert.InDelta(t, 1.0, NormCDF(x)+NormCDF(-x), 1e-12, "N(x)+N(-x) must be 1 at x=%v", x)
	}
}

func TestNormCDF_Tails(t *testing.T) {
	assert.InDelta(t, 1.0, NormCDF(10), 1e-15, "deep right tail")
	assert.InDelta(t, 0.0, NormCDF(-10), 1e-15, "deep left tail")
	assert.True(t, NormCDF(38) <= 1.0, "CDF never exceeds 1")
	assert.True(t, NormCDF(-38) >= 0.0, "CDF never goes negative")
}

func TestNormPDF_KnownValues(t *testing.T) {
	assert.InDelta(t, 0.398942280, NormPDF(0), 1e-9, "PDF at zero")
	assert.InDelta(t, 0.241970725, NormPDF(1), 1e-9)
	assert.InDelta(t, NormPDF(1.7), NormPDF(-1.7), 1e-15, "PDF is even")
}

func TestNormPDF_IsDerivativeOfCDF(t *testing.T) {
	h := 1e-6
	for _, x := range []float64{-2.0, -0.5, 0.0, 0.35, 1.5} {
		numeric := (NormCDF(x+h) - NormCDF(x-h)) / (2 * h)
		assert.InDelta(t, NormPDF(x), numeric, 1e-7, "dN/dx at x=%v", x)
	}
}
