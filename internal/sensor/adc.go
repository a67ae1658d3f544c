package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

var adcChannels = []ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// ADC is an ADS1115 analog front end shared by the wind vane and light
// channels.
type ADC struct {
	bus      i2c.BusCloser
	dev      *ads1x15.Dev
	maxVolts physic.ElectricPotential
	pins     []halter
}

type halter interface {
	Halt() error
}

// NewADC opens an ADS1115 at addr on the named bus. maxVolts is the full
// scale voltage of the inputs.
func NewADC(busName string, addr uint16, maxVolts float64) (*ADC, error) {
	bus, err := openBus(busName)
	if err != nil {
		return nil, err
	}

	opts := ads1x15.DefaultOpts
	opts.I2cAddress = addr
	dev, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("ads1x15.NewADS1115: %w", err)
	}

	return &ADC{
		bus:      bus,
		dev:      dev,
		maxVolts: physic.ElectricPotential(maxVolts * float64(physic.Volt)),
	}, nil
}

// Channel returns a single-ended input of the converter.
func (a *ADC) Channel(ch int) (*ADCChannel, error) {
	if ch < 0 || ch >= len(adcChannels) {
		return nil, fmt.Errorf("invalid ADC channel %d", ch)
	}
	pin, err := a.dev.PinForChannel(adcChannels[ch], a.maxVolts, physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, fmt.Errorf("failed to open ADC channel %d: %w", ch, err)
	}
	a.pins = append(a.pins, pin)
	return &ADCChannel{pin: pin}, nil
}

// Close halts every opened channel and releases the bus.
func (a *ADC) Close() error {
	for _, p := range a.pins {
		p.Halt()
	}
	if err := a.dev.Halt(); err != nil {
		a.bus.Close()
		return err
	}
	return a.bus.Close()
}

// ADCChannel reads a voltage from one converter input.
type ADCChannel struct {
	pin interface {
		Read() (analog.Sample, error)
	}
}

// Voltage returns the input voltage in volts.
func (c *ADCChannel) Voltage() (float64, error) {
	sample, err := c.pin.Read()
	if err != nil {
		return 0, err
	}
	return float64(sample.V) / float64(physic.Volt), nil
}

// VoltageSource is any analog input measured in volts.
type VoltageSource interface {
	Voltage() (float64, error)
}

// AnalogLight derives lux from a photodiode voltage with a linear scale.
type AnalogLight struct {
	source    VoltageSource
	luxPerVol float64
}

// NewAnalogLight creates a light sensor on source.
func NewAnalogLight(source VoltageSource, luxPerVolt float64) *AnalogLight {
	return &AnalogLight{source: source, luxPerVol: luxPerVolt}
}

// Lux returns the ambient light level. Negative readings from offset error
// are reported as dark.
func (l *AnalogLight) Lux() (float64, error) {
	v, err := l.source.Voltage()
	if err != nil {
		return 0, fmt.Errorf("failed to read light sensor: %w", err)
	}
	return max(0, v*l.luxPerVol), nil
}
