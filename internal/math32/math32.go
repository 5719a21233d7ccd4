// Package math32 provides float32 vector math primitives.
package math32

import "math"

// Sqrt returns the square root of x as float32.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// Log returns the natural logarithm of x as float32.
func Log(x float32) float32 {
	return float32(math.Log(float64(x)))
}

// Dot returns the dot product of a and b.
// Assumes equal lengths (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 returns the squared L2 distance between a and b.
// Assumes equal lengths (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
