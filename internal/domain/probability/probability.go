// Package probability estimates the chance of having hit at least one success
// within a number of independent trials.
package probability

import (
	"fmt"
	"math"
)

// normalThreshold is the minimum expected count on both sides of the
// distribution before the normal approximation is used.
const normalThreshold = 5

// Abramowitz and Stegun 7.1.26.
const (
	erfA1 = 0.254829592
	erfA2 = -0.284496736
	erfA3 = 1.421413741
	erfA4 = -1.453152027
	erfA5 = 1.061405429
	erfP  = 0.3275911
)

// Cumulative returns the probability, in percent, of at least one success in
// trials attempts with per-trial odds numerator/denominator.
// Non-positive denominators yield 0.
func Cumulative(trials, numerator, denominator int) float64 {
	if denominator <= 0 || trials <= 0 {
		return 0
	}
	p := float64(numerator) / float64(denominator)
	switch {
	case p <= 0:
		return 0
	case p >= 1:
		return 100
	}
	q := 1 - p
	t := float64(trials)

	if t*p > normalThreshold && t*q > normalThreshold {
		mean := t * p
		sd := math.Sqrt(t * p * q)
		z := mean / (sd * math.Sqrt2)
		return (1 + Erf(z)) / 2 * 100
	}
	return (1 - math.Exp(t*math.Log(q))) * 100
}

// Erf is a polynomial approximation of the error function with maximum
// absolute error around 1.5e-7.
func Erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
	}
	x = math.Abs(x)

	t := 1 / (1 + erfP*x)
	y := 1 - (((((erfA5*t+erfA4)*t)+erfA3)*t+erfA2)*t+erfA1)*t*math.Exp(-x*x)
	return sign * y
}

// FormatPercent renders a percentage with two decimals, e.g. "21.37%".
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}
