package sensor

import (
	"fmt"

	"github.com/afroash/dht"
)

// DHT11 is a temperature and humidity sensor on a single GPIO pin. It has no
// barometer, so Pressure is always zero.
type DHT11 struct {
	pin        int
	maxRetries int
	sensor     *dht.Sensor
}

// NewDHT11 opens a DHT11 on the given pin.
func NewDHT11(pin int) (*DHT11, error) {
	sensor, err := dht.NewDHT11(pin)
	if err != nil {
		return nil, fmt.Errorf("failed to open DHT11 on pin %d: %w", pin, err)
	}
	return &DHT11{
		pin:        pin,
		maxRetries: 3,
		sensor:     sensor,
	}, nil
}

// Sense reads the sensor, retrying on checksum failures.
func (d *DHT11) Sense() (EnvReading, error) {
	reading, err := d.sensor.ReadRetry(d.maxRetries)
	if err != nil {
		return EnvReading{}, fmt.Errorf("after %d retries, failed to read DHT11: %w", d.maxRetries, err)
	}

	r := EnvReading{Temperature: reading.Temperature, Humidity: reading.Humidity}
	if err := validateReading(r, false); err != nil {
		return EnvReading{}, fmt.Errorf("invalid reading: %w", err)
	}
	return r, nil
}

// Close cleans up GPIO resources
func (d *DHT11) Close() error {
	return d.sensor.Close()
}
