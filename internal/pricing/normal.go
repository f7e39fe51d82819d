package pricing

import "math"

// NormCDF returns the standard normal cumulative distribution function.
// Built on math.Erf rather than a polynomial approximation; every Greek
// chains through this, so coarse approximations compound.
func NormCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// NormPDF returns the standard normal probability density function
func NormPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
