// Package sensor provides the hardware inputs of the station and the loop
// that turns them into wake cycles.
package sensor

import "fmt"

// EnvReading is one converted climate reading.
type EnvReading struct {
	Temperature float64 // °C
	Humidity    float64 // %
	Pressure    float64 // hPa, zero when the sensor has no barometer
}

// Environment is a temperature/humidity/pressure sensor.
type Environment interface {
	Sense() (EnvReading, error)
	Close() error
}

// LightSensor reports ambient light in lux.
type LightSensor interface {
	Lux() (float64, error)
}

// Physical bounds outside which a reading is rejected as a sensor fault.
const (
	minTemp     = -40.0
	maxTemp     = 85.0
	minHumidity = 0.0
	maxHumidity = 100.0
	minPressure = 300.0
	maxPressure = 1100.0
)

// validateReading checks that a reading is physically plausible. Pressure is
// only checked when the sensor measures it.
func validateReading(r EnvReading, hasPressure bool) error {
	if r.Temperature < minTemp || r.Temperature > maxTemp {
		return fmt.Errorf("temperature %.1f°C outside %.0f..%.0f°C", r.Temperature, minTemp, maxTemp)
	}
	if r.Humidity < minHumidity || r.Humidity > maxHumidity {
		return fmt.Errorf("humidity %.1f%% outside %.0f..%.0f%%", r.Humidity, minHumidity, maxHumidity)
	}
	if hasPressure && (r.Pressure < minPressure || r.Pressure > maxPressure) {
		return fmt.Errorf("pressure %.1fhPa outside %.0f..%.0fhPa", r.Pressure, minPressure, maxPressure)
	}
	return nil
}
