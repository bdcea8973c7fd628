// Package util provides general utility functions shared by the other modules
package util

import (
	"fmt"
	"math"
)

// UMax64 is math.Max for uint64
func UMax64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// UMin64 is math.Min for uint64
func UMin64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// LogN returns the log of n for base b
func LogN(n, b float64) float64 {
	return math.Log(n) / math.Log(b)
}

func humanizeBytes(s uint64, base float64, sizes []string) string {
	if s < 10 {
		return fmt.Sprintf("%dB", s)
	}
	e := math.Floor(LogN(float64(s), base))
	suffix := sizes[int(e)]
	val := math.Floor(float64(s)/math.Pow(base, e)*10+0.5) / 10
	f := "%.0f%s"
	if val < 10 {
		f = "%.1f%s"
	}

	return fmt.Sprintf(f, val, suffix)
}

// Bytes produces a human readable representation of an SI size.
//
// Bytes(82854982) -> 83MB
func Bytes(s uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	return humanizeBytes(s, 1000, sizes)
}

// Round rounds to the nearest integer
func Round(f float64) float64 {
	return math.Floor(f + .5)
}

// RoundPlus rounds to the given number of decimal places
func RoundPlus(f float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return Round(f*shift) / shift
}
