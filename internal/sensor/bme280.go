package sensor

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

var hostOnce struct {
	sync.Once
	err error
}

// initHost loads the periph host drivers once per process.
func initHost() error {
	hostOnce.Do(func() {
		_, hostOnce.err = host.Init()
	})
	return hostOnce.err
}

// openBus opens an I²C bus by name; "" selects the default bus.
func openBus(name string) (i2c.BusCloser, error) {
	if err := initHost(); err != nil {
		return nil, fmt.Errorf("host.Init: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", name, err)
	}
	return bus, nil
}

// BME280 reads temperature, humidity and pressure over I²C.
type BME280 struct {
	bus i2c.BusCloser
	dev *bmxx80.Dev
}

// NewBME280 opens a BME280 at addr on the named bus.
func NewBME280(busName string, addr uint16) (*BME280, error) {
	bus, err := openBus(busName)
	if err != nil {
		return nil, err
	}

	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("bmxx80.NewI2C: %w", err)
	}

	return &BME280{bus: bus, dev: dev}, nil
}

// Sense takes one forced measurement.
func (b *BME280) Sense() (EnvReading, error) {
	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return EnvReading{}, fmt.Errorf("failed to read BME280: %w", err)
	}

	r := envFromPhysic(env)
	if err := validateReading(r, true); err != nil {
		return EnvReading{}, fmt.Errorf("invalid reading: %w", err)
	}
	return r, nil
}

// Close halts the device and releases the bus.
func (b *BME280) Close() error {
	haltErr := b.dev.Halt()
	if err := b.bus.Close(); err != nil {
		return err
	}
	return haltErr
}

// envFromPhysic converts periph fixed-point units into °C, % and hPa.
func envFromPhysic(env physic.Env) EnvReading {
	return EnvReading{
		Temperature: env.Temperature.Celsius(),
		Humidity:    float64(env.Humidity) / float64(physic.PercentRH),
		Pressure:    float64(env.Pressure) / float64(physic.Pascal) / 100,
	}
}
