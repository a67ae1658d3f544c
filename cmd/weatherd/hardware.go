package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/config"
	"github.com/afroash/weatherstation/internal/sensor"
	"github.com/afroash/weatherstation/internal/weather"
)

// hardware holds every opened sensor. Inputs that are not fitted stay nil.
type hardware struct {
	env      sensor.Environment
	light    sensor.LightSensor
	speed    weather.DigitalInput
	vane     weather.VoltageSource
	rain     weather.DigitalInput
	usbPower weather.DigitalInput

	closers []io.Closer
}

// openHardware opens the sensors described by cfg. On error everything
// opened so far is released.
func openHardware(cfg config.HardwareConfig, logger zerolog.Logger) (hw *hardware, err error) {
	hw = &hardware{}
	defer func() {
		if err != nil {
			hw.Close()
			hw = nil
		}
	}()

	switch cfg.ClimateSensor {
	case config.ClimateDHT11:
		dht, err := sensor.NewDHT11(cfg.DHTPin)
		if err != nil {
			return hw, err
		}
		hw.env = dht
	default:
		bme, err := sensor.NewBME280(cfg.I2CBus, cfg.BME280Address)
		if err != nil {
			return hw, err
		}
		hw.env = bme
	}
	hw.closers = append(hw.closers, hw.env)

	if line, ok := config.Line(cfg.WindSpeedLine); ok {
		in, err := sensor.NewGPIOInput(cfg.GPIOChip, line, sensor.PullUp)
		if err != nil {
			return hw, fmt.Errorf("anemometer: %w", err)
		}
		hw.speed = in
		hw.closers = append(hw.closers, in)
	} else {
		logger.Warn().Msg("No anemometer line configured, wind speed will read 0")
	}

	if line, ok := config.Line(cfg.RainLine); ok {
		in, err := sensor.NewGPIOInput(cfg.GPIOChip, line, sensor.PullDown)
		if err != nil {
			return hw, fmt.Errorf("rain gauge: %w", err)
		}
		hw.rain = in
		hw.closers = append(hw.closers, in)
	}

	if line, ok := config.Line(cfg.USBPowerLine); ok {
		in, err := sensor.NewGPIOInput(cfg.GPIOChip, line, sensor.PullNone)
		if err != nil {
			return hw, fmt.Errorf("usb power sense: %w", err)
		}
		hw.usbPower = in
		hw.closers = append(hw.closers, in)
	}

	vaneCh, hasVane := config.Line(cfg.WindVaneChannel)
	lightCh, hasLight := config.Line(cfg.LightChannel)
	if !hasVane && !hasLight {
		return hw, nil
	}

	adc, err := sensor.NewADC(cfg.I2CBus, cfg.ADCAddress, cfg.ADCMaxVolts)
	if err != nil {
		return hw, err
	}
	hw.closers = append(hw.closers, adc)

	if hasVane {
		ch, err := adc.Channel(vaneCh)
		if err != nil {
			return hw, fmt.Errorf("wind vane: %w", err)
		}
		hw.vane = ch
	}
	if hasLight {
		ch, err := adc.Channel(lightCh)
		if err != nil {
			return hw, fmt.Errorf("light sensor: %w", err)
		}
		hw.light = sensor.NewAnalogLight(ch, cfg.LightLuxPerVolt)
	}
	return hw, nil
}

// Close releases the sensors in reverse order of opening.
func (hw *hardware) Close() error {
	var errs []error
	for i := len(hw.closers) - 1; i >= 0; i-- {
		if err := hw.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	hw.closers = nil
	return errors.Join(errs...)
}
