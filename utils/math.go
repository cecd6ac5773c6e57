package utils

import (
	"math"
)

// Clamp returns min if value is lesser than min, max if value is greater them max or value if the input value is
// between min and max.
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Clamp01 clamps value to the unit interval. NaN maps to 0.
func Clamp01(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	return Clamp(value, 0, 1)
}

// RoundInt rounds half away from zero and converts to int.
func RoundInt(v float64) int {
	return int(math.Round(v))
}

func MaxInt(a, b int) int {
	if a < b {
		return b
	}
	return a
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Float64AlmostEqual compares two float64s and returns if the difference between them is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}
