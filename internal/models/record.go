package models

import (
	"math"
	"time"
)

// Bounds of the two event logs kept in the daily record. The rain log is
// sized to stay under one flash block once serialised.
const (
	MaxRainEvents  = 190
	MaxWindSamples = 50
)

// Decimal places applied to persisted fields.
const (
	RainTotalDecimals = 3
	WindDecimals      = 2
	ExtremaDecimals   = 2
	SumDecimals       = 3
)

// RainEventLayout is the timestamp format of entries in RainEvents.
const RainEventLayout = time.RFC3339

// DateLayout is the format of the DailyRecord date key.
const DateLayout = "2006-01-02"

// DailyRecord is the day-scoped aggregate persisted between wake cycles.
// Its Date is the only authority on whether the record still belongs to today.
type DailyRecord struct {
	Date          string      `json:"date"`
	RainTicks     uint64      `json:"rain_ticks"`
	RainTotalMM   float64     `json:"rain_total_mm"`
	RainEvents    []string    `json:"rain_events"`
	RainLastCount uint64      `json:"rain_last_count"`
	WindGust      float64     `json:"wind_gust"`
	WindSamples   []float64   `json:"wind_samples"`
	Temperature   Accumulator `json:"temperature_stats"`
	Humidity      Accumulator `json:"humidity_stats"`
	LastCycle     string      `json:"last_cycle,omitempty"`
}

// NewDailyRecord returns a record for date with every field at its default.
func NewDailyRecord(date string) *DailyRecord {
	return &DailyRecord{
		Date:        date,
		RainEvents:  []string{},
		WindSamples: []float64{},
		Temperature: NewAccumulator(),
		Humidity:    NewAccumulator(),
	}
}

// DayKey formats t as a DailyRecord date in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// AddRainTip counts one bucket tip at the given time.
func (r *DailyRecord) AddRainTip(at time.Time, mmPerTick float64) {
	r.RainTicks++
	r.RainTotalMM = Round(float64(r.RainTicks)*mmPerTick, RainTotalDecimals)
	r.RainEvents = appendBounded(r.RainEvents, at.Format(RainEventLayout), MaxRainEvents)
}

// PendingRainTicks returns the ticks counted since the last checkpoint and
// the checkpoint value that would consume them.
func (r *DailyRecord) PendingRainTicks() (delta, checkpoint uint64) {
	checkpoint = r.RainTicks
	if r.RainLastCount >= r.RainTicks {
		return 0, checkpoint
	}
	return r.RainTicks - r.RainLastCount, checkpoint
}

// CommitRainCheckpoint advances the rain checkpoint. Values beyond the
// current tick count are clamped.
func (r *DailyRecord) CommitRainCheckpoint(checkpoint uint64) {
	if checkpoint > r.RainTicks {
		checkpoint = r.RainTicks
	}
	r.RainLastCount = checkpoint
}

// MarkCycle records when a wake cycle consumed the rain checkpoint.
func (r *DailyRecord) MarkCycle(at time.Time) {
	r.LastCycle = at.Format(RainEventLayout)
}

// LastCycleAt returns the time of the last marked cycle. ok is false when no
// cycle has run today or the stored value is unreadable.
func (r *DailyRecord) LastCycleAt() (at time.Time, ok bool) {
	if r.LastCycle == "" {
		return time.Time{}, false
	}
	at, err := time.Parse(RainEventLayout, r.LastCycle)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// RainTipsSince counts rain events at or after cutoff. Entries that fail to
// parse are skipped and reported in the second return value.
func (r *DailyRecord) RainTipsSince(cutoff time.Time) (tips int, malformed int) {
	for _, ts := range r.RainEvents {
		t, err := time.Parse(RainEventLayout, ts)
		if err != nil {
			malformed++
			continue
		}
		if !t.Before(cutoff) {
			tips++
		}
	}
	return tips, malformed
}

// AddWindSample appends an instantaneous speed and widens the gust.
func (r *DailyRecord) AddWindSample(speed float64) {
	speed = Round(speed, WindDecimals)
	r.WindSamples = appendBounded(r.WindSamples, speed, MaxWindSamples)
	if speed > r.WindGust {
		r.WindGust = speed
	}
}

// WindAverage returns the mean of the retained wind samples.
func (r *DailyRecord) WindAverage() float64 {
	if len(r.WindSamples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range r.WindSamples {
		sum += s
	}
	return sum / float64(len(r.WindSamples))
}

// Normalize restores the record invariants after decoding data written by
// another firmware version or a damaged file.
func (r *DailyRecord) Normalize() {
	if r.RainEvents == nil {
		r.RainEvents = []string{}
	}
	if r.WindSamples == nil {
		r.WindSamples = []float64{}
	}
	if len(r.RainEvents) > MaxRainEvents {
		r.RainEvents = append([]string{}, r.RainEvents[len(r.RainEvents)-MaxRainEvents:]...)
	}
	if len(r.WindSamples) > MaxWindSamples {
		r.WindSamples = append([]float64{}, r.WindSamples[len(r.WindSamples)-MaxWindSamples:]...)
	}
	if r.RainLastCount > r.RainTicks {
		r.RainLastCount = r.RainTicks
	}
	if r.WindGust < 0 || math.IsNaN(r.WindGust) {
		r.WindGust = 0
	}
}

// Clone returns a deep copy of the record.
func (r *DailyRecord) Clone() *DailyRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.RainEvents = append([]string{}, r.RainEvents...)
	c.WindSamples = append([]float64{}, r.WindSamples...)
	return &c
}

// appendBounded appends v and drops the oldest entries beyond limit.
func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = append(s[:0:0], s[len(s)-limit:]...)
	}
	return s
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
