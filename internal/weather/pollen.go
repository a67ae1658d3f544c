package weather

// EstimatePollen returns a pollen index from 0 to 5.
//
// It is a qualitative heuristic built from conditions that favour pollen
// release and dispersal, not a measurement. Its thresholds are rules of thumb
// rather than calibrated constants.
func EstimatePollen(temperature, humidity, windSpeed, rainToday, luminance float64) int {
	score := 0

	// warmth
	for _, t := range []float64{15, 20, 25} {
		if temperature > t {
			score++
		}
	}

	// dry air
	for _, h := range []float64{70, 50} {
		if humidity < h {
			score++
		}
	}

	// wind
	for _, v := range []float64{2, 4} {
		if windSpeed > v {
			score++
		}
	}

	if rainToday > 0 {
		score -= 2
	}

	if luminance > 10000 {
		score++
	}

	return max(0, min(5, score))
}
