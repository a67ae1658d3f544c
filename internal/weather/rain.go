package weather

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/calibration"
	"github.com/afroash/weatherstation/internal/models"
	"github.com/afroash/weatherstation/internal/storage"
)

// RainRate is the rainfall reported for one wake cycle.
type RainRate struct {
	Amount    float64 `json:"amount"`     // mm since the last checkpoint
	PerSecond float64 `json:"per_second"` // mm/s over the elapsed interval
	PerHour   float64 `json:"per_hour"`   // mm tipped during the last hour
	Today     float64 `json:"today"`      // mm since midnight
}

// Rain counts bucket tips and reports rainfall rates.
type Rain struct {
	store  storage.RecordStore
	clock  Clock
	loc    *time.Location
	consts calibration.Constants
	logger zerolog.Logger
}

// NewRain creates a rain aggregator over store.
func NewRain(store storage.RecordStore, clock Clock, loc *time.Location, consts calibration.Constants, logger zerolog.Logger) *Rain {
	if loc == nil {
		loc = time.UTC
	}
	return &Rain{
		store:  store,
		clock:  clock,
		loc:    loc,
		consts: consts,
		logger: logger,
	}
}

// RecordTip counts one bucket tip. Every call is a physical tip; debouncing
// is the caller's job.
func (r *Rain) RecordTip() error {
	now := r.clock.Now().In(r.loc)
	record, err := r.store.Load(models.DayKey(now, r.loc))
	if err != nil {
		return fmt.Errorf("failed to load daily record: %w", err)
	}

	record.AddRainTip(now, r.consts.RainMMPerTick)
	if err := r.store.Save(record); err != nil {
		return fmt.Errorf("failed to save rain tip: %w", err)
	}

	r.logger.Info().
		Uint64("ticks", record.RainTicks).
		Float64("total_mm", record.RainTotalMM).
		Msg("Rain tick recorded")
	return nil
}

// Peek reports rainfall since the last checkpoint without consuming it.
func (r *Rain) Peek(secondsSinceLast float64) (RainRate, error) {
	now := r.clock.Now().In(r.loc)
	record, err := r.store.Load(models.DayKey(now, r.loc))
	if err != nil {
		return RainRate{}, fmt.Errorf("failed to load daily record: %w", err)
	}

	rate, _ := r.rate(record, secondsSinceLast, now)
	return rate, nil
}

// Rate reports rainfall since the last checkpoint and advances the
// checkpoint, so an immediate second call reports an Amount of zero. The
// cycle time is stored with the checkpoint.
func (r *Rain) Rate(secondsSinceLast float64) (RainRate, error) {
	now := r.clock.Now().In(r.loc)
	record, err := r.store.Load(models.DayKey(now, r.loc))
	if err != nil {
		return RainRate{}, fmt.Errorf("failed to load daily record: %w", err)
	}

	rate, checkpoint := r.rate(record, secondsSinceLast, now)
	record.CommitRainCheckpoint(checkpoint)
	record.MarkCycle(now)
	if err := r.store.Save(record); err != nil {
		return RainRate{}, fmt.Errorf("failed to save rain checkpoint: %w", err)
	}
	return rate, nil
}

func (r *Rain) rate(record *models.DailyRecord, secondsSinceLast float64, now time.Time) (RainRate, uint64) {
	delta, checkpoint := record.PendingRainTicks()

	rate := RainRate{
		Amount: models.Round(float64(delta)*r.consts.RainMMPerTick, 4),
		Today:  models.Round(record.RainTotalMM, 3),
	}
	if secondsSinceLast > 0 {
		rate.PerSecond = models.Round(rate.Amount/secondsSinceLast, 6)
	}

	tips, malformed := record.RainTipsSince(now.Add(-time.Hour))
	if malformed > 0 {
		r.logger.Warn().Int("malformed", malformed).Msg("Skipped unreadable rain event timestamps")
	}
	rate.PerHour = models.Round(float64(tips)*r.consts.RainMMPerTick, 4)

	return rate, checkpoint
}
