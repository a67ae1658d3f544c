// Package calibration holds the physical constants of the station hardware.
package calibration

import "math"

// Constants describe the rain gauge and anemometer fitted to the station.
type Constants struct {
	// RainMMPerTick is the rainfall represented by one bucket tip.
	RainMMPerTick float64
	// AnemometerRadiusCM is the distance from the hub to the cup centre.
	AnemometerRadiusCM float64
	// AnemometerFactor converts cup circumference per second to m/s.
	AnemometerFactor float64
}

// Default returns the constants for the stock weather kit.
func Default() Constants {
	return Constants{
		RainMMPerTick:      0.2794,
		AnemometerRadiusCM: 7.0,
		AnemometerFactor:   0.0218,
	}
}

// Circumference returns the cup path length in centimetres.
func (c Constants) Circumference() float64 {
	return 2 * math.Pi * c.AnemometerRadiusCM
}

// DegreesPerStep is the bearing between two adjacent vane positions.
const DegreesPerStep = 22.5

// DirectionVoltages maps vane position index to the voltage measured on the
// divider. The values were measured on hardware and are neither evenly spaced
// nor sorted; index i corresponds to a bearing of i * DegreesPerStep.
var DirectionVoltages = [16]float64{
	2.533, 1.308, 1.487, 0.270, 0.300, 0.212, 0.595, 0.408,
	0.926, 0.789, 2.031, 1.932, 3.046, 2.667, 2.859, 2.265,
}
