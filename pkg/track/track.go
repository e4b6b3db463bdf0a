// Package track converts a car's lap and in-lap distance into an absolute, unwrapped position
// along a closed-loop circuit.
package track

import "math"

// Meters returns the absolute distance covered since the start of the race, rounded to the
// nearest meter. Every comparison of track position must go through this function so that ties
// are detected identically everywhere.
func Meters(lap int, distanceIntoLap, lapLength float64) int {
	return int(math.Round(float64(lap-1)*lapLength + distanceIntoLap))
}

// KPHToMPS converts kilometres per hour to metres per second.
func KPHToMPS(kph float64) float64 {
	return kph * 1000 / 3600
}

