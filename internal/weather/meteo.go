package weather

import "math"

// Magnus coefficients for dew point over water.
const (
	magnusA = 17.625
	magnusB = 243.04
)

// DewPoint returns the dew point in °C for a temperature in °C and a relative
// humidity in percent. Humidity is floored at 0.01% so a dry reading still
// yields a finite value.
func DewPoint(temperature, humidity float64) float64 {
	humidity = math.Max(humidity, 0.01)
	gamma := magnusA*temperature/(magnusB+temperature) + math.Log(humidity/100)
	return magnusB * gamma / (magnusA - gamma)
}

// SeaLevelPressure reduces station pressure in hPa to sea level for a station
// at altitude metres.
func SeaLevelPressure(pressure, temperature, altitude float64) float64 {
	return pressure + pressure*9.80665*altitude/(287*(273.15+temperature+altitude/400))
}
