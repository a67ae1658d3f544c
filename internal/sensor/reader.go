package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
	"github.com/afroash/weatherstation/internal/weather"
)

// ErrNoEnvironment is returned by ReadOnce when no climate sensor is fitted.
var ErrNoEnvironment = errors.New("no climate sensor configured")

// Station is the part of weather.Station the reader drives.
type Station interface {
	Read(in weather.RawInputs) (models.Snapshot, error)
	HandleRainWake(triggered bool) error
	LastCycle() (time.Time, error)
}

// ReaderConfig holds the inputs and timing of a Reader. Light, USBPower and
// RainLine may be nil when the hardware is not fitted.
type ReaderConfig struct {
	Environment  Environment
	Light        LightSensor
	USBPower     weather.DigitalInput
	RainLine     weather.DigitalInput
	Interval     time.Duration
	RainPollRate time.Duration
}

// Reader runs wake cycles on a schedule and watches the rain gauge between
// them.
type Reader struct {
	station   Station
	cfg       ReaderConfig
	logger    zerolog.Logger
	snapshots chan models.Snapshot
	now       func() time.Time

	lastCycle time.Time
	lastRain  bool
}

// NewReader creates a new wake-cycle reader
func NewReader(station Station, cfg ReaderConfig, logger zerolog.Logger) *Reader {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.RainPollRate <= 0 {
		cfg.RainPollRate = 50 * time.Millisecond
	}
	return &Reader{
		station:   station,
		cfg:       cfg,
		logger:    logger,
		snapshots: make(chan models.Snapshot, 10),
		now:       time.Now,
	}
}

// Start runs a cycle every interval and polls the rain line until ctx is
// cancelled.
func (r *Reader) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	var rainTick <-chan time.Time
	if r.cfg.RainLine != nil {
		rainTicker := time.NewTicker(r.cfg.RainPollRate)
		defer rainTicker.Stop()
		rainTick = rainTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rainTick:
			r.CheckRain()
		case <-ticker.C:
			r.readAndPublish(ctx)
		}
	}
}

// ReadOnce runs a single wake cycle. rainWake reports whether the rain
// interrupt woke the device.
func (r *Reader) ReadOnce(rainWake bool) (models.Snapshot, error) {
	if r.cfg.Environment == nil {
		return models.Snapshot{}, ErrNoEnvironment
	}
	env, err := r.cfg.Environment.Sense()
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("climate sensor: %w", err)
	}

	now := r.now()
	elapsed := r.secondsSince(now)

	snap, err := r.station.Read(weather.RawInputs{
		Temperature:      env.Temperature,
		Humidity:         env.Humidity,
		Pressure:         env.Pressure,
		Luminance:        r.lux(),
		SecondsSinceLast: elapsed,
		USBPower:         r.usbPowered(),
		RainTriggered:    rainWake,
	})
	if err != nil {
		return models.Snapshot{}, err
	}

	r.lastCycle = now
	return snap, nil
}

// secondsSince returns the time since the previous cycle. A fresh process
// takes it from the station's stored cycle time and falls back to the
// configured interval when there is none.
func (r *Reader) secondsSince(now time.Time) float64 {
	last := r.lastCycle
	if last.IsZero() {
		stored, err := r.station.LastCycle()
		if err != nil {
			r.logger.Warn().Err(err).Msg("Failed to read last cycle time")
		}
		last = stored
	}
	if last.IsZero() || !now.After(last) {
		return r.cfg.Interval.Seconds()
	}
	return now.Sub(last).Seconds()
}

// CheckRain records a tip on each rising edge of the rain line.
func (r *Reader) CheckRain() {
	if r.cfg.RainLine == nil {
		return
	}
	v, err := r.cfg.RainLine.Value()
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to read rain line")
		return
	}

	high := v != 0
	if high && !r.lastRain {
		if err := r.station.HandleRainWake(true); err != nil {
			r.logger.Error().Err(err).Msg("Failed to record rain tip")
		}
	}
	r.lastRain = high
}

// readAndPublish performs a cycle and publishes to the channel
func (r *Reader) readAndPublish(ctx context.Context) {
	snap, err := r.ReadOnce(false)
	if err != nil {
		r.logger.Error().Err(err).Msg("Wake cycle failed")
		return
	}

	select {
	case r.snapshots <- snap:
		r.logger.Debug().Str("snapshot", snap.String()).Msg("Published snapshot")
	case <-ctx.Done():
	}
}

func (r *Reader) lux() float64 {
	if r.cfg.Light == nil {
		return 0
	}
	lux, err := r.cfg.Light.Lux()
	if err != nil {
		r.logger.Warn().Err(err).Msg("Light sensor unavailable, using 0")
		return 0
	}
	return lux
}

func (r *Reader) usbPowered() bool {
	if r.cfg.USBPower == nil {
		return false
	}
	v, err := r.cfg.USBPower.Value()
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to read USB power line")
		return false
	}
	return v != 0
}

// Snapshots returns the channel where snapshots are published
func (r *Reader) Snapshots() <-chan models.Snapshot {
	return r.snapshots
}

// Close releases the climate sensor.
func (r *Reader) Close() error {
	if r.cfg.Environment == nil {
		return nil
	}
	return r.cfg.Environment.Close()
}
