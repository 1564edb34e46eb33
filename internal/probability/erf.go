package probability

import "math"

// Abramowitz and Stegun formula 7.1.26 coefficients.
const (
	a1 = 0.254829592
	a2 = -0.284496736
	a3 = 1.421413741
	a4 = -1.453152027
	a5 = 1.061405429
	p  = 0.3275911
)

// Erf approximates the error function with Abramowitz and Stegun formula 7.1.26
// (maximum absolute error about 1.5e-7).
func Erf(x float64) float64 {
	// The coefficients sum to 1-1e-9, so the formula is not exactly zero at the origin.
	if x == 0 {
		return 0
	}

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	return sign * (1.0 - erfc(math.Abs(x)))
}

// erfc is the complementary error function for x >= 0. It stays positive far into
// the tail where 1-Erf(x) cancels to zero.
func erfc(x float64) float64 {
	t := 1.0 / (1.0 + p*x)
	return (((((a5*t+a4)*t)+a3)*t+a2)*t + a1) * t * math.Exp(-x*x)
}
