package weather

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/calibration"
	"github.com/afroash/weatherstation/internal/models"
	"github.com/afroash/weatherstation/internal/storage"
)

// DigitalInput is a binary signal such as the anemometer reed switch.
type DigitalInput interface {
	Value() (int, error)
}

// VoltageSource is an analog input such as the wind vane divider.
type VoltageSource interface {
	Voltage() (float64, error)
}

// DefaultSampleWindow is how long SampleSpeed watches the anemometer.
const DefaultSampleWindow = time.Second

// Wind samples the anemometer and vane and keeps the rolling wind stats.
type Wind struct {
	store  storage.RecordStore
	clock  Clock
	loc    *time.Location
	consts calibration.Constants
	speed  DigitalInput
	vane   VoltageSource
	offset float64
	logger zerolog.Logger
}

// WindConfig holds the inputs and calibration of a Wind aggregator.
type WindConfig struct {
	Speed           DigitalInput
	Vane            VoltageSource
	DirectionOffset float64
	Constants       calibration.Constants
	Location        *time.Location
}

// NewWind creates a wind aggregator over store.
func NewWind(store storage.RecordStore, clock Clock, cfg WindConfig, logger zerolog.Logger) *Wind {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Wind{
		store:  store,
		clock:  clock,
		loc:    loc,
		consts: cfg.Constants,
		speed:  cfg.Speed,
		vane:   cfg.Vane,
		offset: cfg.DirectionOffset,
		logger: logger,
	}
}

// SampleSpeed busy-polls the anemometer for window and returns the wind
// speed in m/s. It blocks for the whole window.
func (w *Wind) SampleSpeed(window time.Duration) (float64, error) {
	if w.speed == nil {
		return 0, nil
	}
	if window <= 0 {
		window = DefaultSampleWindow
	}

	state, err := w.speed.Value()
	if err != nil {
		return 0, fmt.Errorf("failed to read anemometer: %w", err)
	}

	start := w.clock.Now()
	var edges []time.Time
	for {
		now := w.clock.Now()
		if now.Sub(start) > window {
			break
		}
		level, err := w.speed.Value()
		if err != nil {
			return 0, fmt.Errorf("failed to read anemometer: %w", err)
		}
		if level != state {
			edges = append(edges, now)
			state = level
		}
	}

	speed := speedFromEdges(edges, w.consts)
	w.logger.Debug().Int("edges", len(edges)).Float64("speed", speed).Msg("Wind speed sampled")
	return speed, nil
}

// speedFromEdges converts transition times into m/s. Two transitions make
// one revolution.
func speedFromEdges(edges []time.Time, c calibration.Constants) float64 {
	if len(edges) < 2 {
		return 0
	}
	span := edges[len(edges)-1].Sub(edges[0])
	interval := span.Seconds() / float64(len(edges)-1)
	if interval <= 0 {
		return 0
	}
	rotationHz := (1 / interval) / 2
	return rotationHz * c.Circumference() * c.AnemometerFactor
}

// UpdateStats stores a speed sample and returns the rolling average over the
// retained samples together with today's gust.
func (w *Wind) UpdateStats(sample float64) (avg, gust float64, err error) {
	now := w.clock.Now()
	record, err := w.store.Load(models.DayKey(now, w.loc))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load daily record: %w", err)
	}

	record.AddWindSample(sample)
	if err := w.store.Save(record); err != nil {
		return 0, 0, fmt.Errorf("failed to save wind stats: %w", err)
	}

	return models.Round(record.WindAverage(), models.WindDecimals), record.WindGust, nil
}

// Direction reads the vane and returns the bearing in degrees.
func (w *Wind) Direction() (float64, error) {
	if w.vane == nil {
		return 0, nil
	}
	v, err := w.vane.Voltage()
	if err != nil {
		return 0, fmt.Errorf("failed to read wind vane: %w", err)
	}
	return ResolveDirection(v, w.offset), nil
}

// ResolveDirection maps a vane voltage to a compass bearing using the nearest
// calibration entry, then applies offset. Equal distances resolve to the
// lower index.
func ResolveDirection(voltage, offset float64) float64 {
	closest := 0
	best := math.Inf(1)
	for i, v := range calibration.DirectionVoltages {
		if d := math.Abs(v - voltage); d < best {
			best = d
			closest = i
		}
	}

	bearing := math.Mod(float64(closest)*calibration.DegreesPerStep+360+offset, 360)
	if bearing < 0 {
		bearing += 360
	}
	return models.Round(bearing, 1)
}
