package weather

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/calibration"
	"github.com/afroash/weatherstation/internal/models"
	"github.com/afroash/weatherstation/internal/storage"
)

// RawInputs are the converted sensor values handed to one wake cycle.
type RawInputs struct {
	Temperature      float64 // °C
	Humidity         float64 // %
	Pressure         float64 // hPa
	Luminance        float64 // lux
	SecondsSinceLast float64
	USBPower         bool
	RainTriggered    bool
}

// StationConfig is the read-only configuration of a Station.
type StationConfig struct {
	Constants          calibration.Constants
	Location           *time.Location
	DirectionOffset    float64
	SeaLevelPressure   bool
	Altitude           float64
	USBTemperatureTrim float64
	SampleWindow       time.Duration
}

// Station composes the aggregators into one reading per wake cycle. Its
// methods are safe for concurrent use; mu covers every load and save of the
// daily record.
type Station struct {
	mu      sync.Mutex
	store   storage.RecordStore
	clock   Clock
	cfg     StationConfig
	rain    *Rain
	wind    *Wind
	climate *Climate
	logger  zerolog.Logger
}

// NewStation creates a station reading from the given anemometer and vane.
// Either input may be nil when the hardware is not fitted.
func NewStation(store storage.RecordStore, clock Clock, speed DigitalInput, vane VoltageSource, cfg StationConfig, logger zerolog.Logger) *Station {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SampleWindow <= 0 {
		cfg.SampleWindow = DefaultSampleWindow
	}

	return &Station{
		store: store,
		clock: clock,
		cfg:   cfg,
		rain:  NewRain(store, clock, cfg.Location, cfg.Constants, logger.With().Str("component", "rain").Logger()),
		wind: NewWind(store, clock, WindConfig{
			Speed:           speed,
			Vane:            vane,
			DirectionOffset: cfg.DirectionOffset,
			Constants:       cfg.Constants,
			Location:        cfg.Location,
		}, logger.With().Str("component", "wind").Logger()),
		climate: NewClimate(store, clock, cfg.Location),
		logger:  logger,
	}
}

// HandleRainWake records a bucket tip when the rain interrupt woke the
// device.
func (s *Station) HandleRainWake(triggered bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordRainWake(triggered)
}

func (s *Station) recordRainWake(triggered bool) error {
	if !triggered {
		return nil
	}
	return s.rain.RecordTip()
}

// Daily returns a copy of today's record.
func (s *Station) Daily() (*models.DailyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.load()
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// LastCycle returns when the last wake cycle ran today, or the zero time if
// none has.
func (s *Station) LastCycle() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCycle()
}

// PendingRain reports the rain the next wake cycle would consume, leaving
// the checkpoint in place.
func (s *Station) PendingRain() (RainRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.lastCycle()
	if err != nil {
		return RainRate{}, err
	}
	var elapsed float64
	if !last.IsZero() {
		elapsed = s.clock.Now().Sub(last).Seconds()
	}
	return s.rain.Peek(elapsed)
}

func (s *Station) lastCycle() (time.Time, error) {
	record, err := s.load()
	if err != nil {
		return time.Time{}, err
	}
	at, _ := record.LastCycleAt()
	return at, nil
}

func (s *Station) load() (*models.DailyRecord, error) {
	record, err := s.store.Load(models.DayKey(s.clock.Now(), s.cfg.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to load daily record: %w", err)
	}
	return record, nil
}

// Read runs one wake cycle and returns its snapshot. Sensor faults degrade to
// zero values; only storage failures are returned.
func (s *Station) Read(in RawInputs) (models.Snapshot, error) {
	// hardware reads stay outside mu
	current, err := s.wind.SampleSpeed(s.cfg.SampleWindow)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Wind speed unavailable, using 0")
		current = 0
	}
	direction, err := s.wind.Direction()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Wind direction unavailable, using 0")
		direction = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.recordRainWake(in.RainTriggered); err != nil {
		return models.Snapshot{}, err
	}

	temperature := in.Temperature
	if in.USBPower {
		temperature -= s.cfg.USBTemperatureTrim
	}

	climate, err := s.climate.Update(temperature, in.Humidity)
	if err != nil {
		return models.Snapshot{}, err
	}

	windAvg, gust, err := s.wind.UpdateStats(current)
	if err != nil {
		return models.Snapshot{}, err
	}

	rain, err := s.rain.Rate(in.SecondsSinceLast)
	if err != nil {
		return models.Snapshot{}, err
	}

	pollen := EstimatePollen(temperature, in.Humidity, windAvg, rain.Today, in.Luminance)

	metrics := []models.Metric{
		{Name: models.MetricTemperature, Value: models.Round(temperature, 2)},
		{Name: models.MetricHumidity, Value: models.Round(in.Humidity, 2)},
		{Name: models.MetricPressure, Value: models.Round(in.Pressure, 2)},
		{Name: models.MetricLuminance, Value: models.Round(in.Luminance, 2)},
		{Name: models.MetricWindSpeed, Value: windAvg},
		{Name: models.MetricWindGust, Value: models.Round(gust, 2)},
		{Name: models.MetricWindDirection, Value: direction},
		{Name: models.MetricRain, Value: rain.Amount},
		{Name: models.MetricRainPerSecond, Value: rain.PerSecond},
		{Name: models.MetricRainPerHour, Value: rain.PerHour},
		{Name: models.MetricRainToday, Value: rain.Today},
		{Name: models.MetricDewPoint, Value: models.Round(DewPoint(temperature, in.Humidity), 2)},
		{Name: models.MetricTemperatureAvg, Value: climate.TemperatureAvg},
		{Name: models.MetricTemperatureMin, Value: climate.TemperatureMin},
		{Name: models.MetricTemperatureMax, Value: climate.TemperatureMax},
		{Name: models.MetricHumidityAvg, Value: climate.HumidityAvg},
		{Name: models.MetricHumidityMin, Value: climate.HumidityMin},
		{Name: models.MetricHumidityMax, Value: climate.HumidityMax},
		{Name: models.MetricPollenIndex, Value: float64(pollen)},
	}
	if s.cfg.SeaLevelPressure {
		metrics = append(metrics, models.Metric{
			Name:  models.MetricSeaLevelPressure,
			Value: models.Round(SeaLevelPressure(in.Pressure, temperature, s.cfg.Altitude), 2),
		})
	}

	snap := models.NewSnapshot(s.clock.Now(), metrics)
	s.logger.Info().
		Float64("temperature", temperature).
		Float64("wind_speed", windAvg).
		Float64("rain_today", rain.Today).
		Int("pollen_index", pollen).
		Msg("Reading complete")
	return snap, nil
}
