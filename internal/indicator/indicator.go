// Package indicator provides technical indicator calculations over price series.
//
// Every function is pure: it reads the slice it is given, never retains or
// mutates it, and always returns a finite number. Short input is not an
// error; each function documents what it returns when there is not enough
// data, because new listings legitimately have short histories.
package indicator

import "math"

// tail returns the last n values of xs, or all of xs when it is shorter.
func tail(xs []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// finite maps NaN and ±Inf to fallback.
func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
