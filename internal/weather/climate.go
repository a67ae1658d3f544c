package weather

import (
	"fmt"
	"time"

	"github.com/afroash/weatherstation/internal/models"
	"github.com/afroash/weatherstation/internal/storage"
)

// ClimateSummary is today's temperature and humidity statistics after an
// update.
type ClimateSummary struct {
	TemperatureAvg float64
	TemperatureMin float64
	TemperatureMax float64
	HumidityAvg    float64
	HumidityMin    float64
	HumidityMax    float64
}

// Climate keeps the daily temperature and humidity accumulators.
type Climate struct {
	store storage.RecordStore
	clock Clock
	loc   *time.Location
}

// NewClimate creates a climate aggregator over store.
func NewClimate(store storage.RecordStore, clock Clock, loc *time.Location) *Climate {
	if loc == nil {
		loc = time.UTC
	}
	return &Climate{store: store, clock: clock, loc: loc}
}

// Update adds one temperature and humidity reading to today's stats.
func (c *Climate) Update(temperature, humidity float64) (ClimateSummary, error) {
	record, err := c.store.Load(models.DayKey(c.clock.Now(), c.loc))
	if err != nil {
		return ClimateSummary{}, fmt.Errorf("failed to load daily record: %w", err)
	}

	record.Temperature.Add(temperature)
	record.Humidity.Add(humidity)
	if err := c.store.Save(record); err != nil {
		return ClimateSummary{}, fmt.Errorf("failed to save climate stats: %w", err)
	}

	return ClimateSummary{
		TemperatureAvg: models.Round(record.Temperature.Mean(), 2),
		TemperatureMin: models.Round(record.Temperature.Min, 2),
		TemperatureMax: models.Round(record.Temperature.Max, 2),
		HumidityAvg:    models.Round(record.Humidity.Mean(), 2),
		HumidityMin:    models.Round(record.Humidity.Min, 2),
		HumidityMax:    models.Round(record.Humidity.Max, 2),
	}, nil
}
