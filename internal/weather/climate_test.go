package weather

import (
	"testing"
	"time"
)

func TestClimate_Update(t *testing.T) {
	clock := &stepClock{t: day1}
	climate := NewClimate(newTestStore(t), clock, time.UTC)

	if _, err := climate.Update(20, 50); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err := climate.Update(10.5, 71)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	want := ClimateSummary{
		TemperatureAvg: 15.25,
		TemperatureMin: 10.5,
		TemperatureMax: 20,
		HumidityAvg:    60.5,
		HumidityMin:    50,
		HumidityMax:    71,
	}
	if got != want {
		t.Errorf("Update() = %+v, want %+v", got, want)
	}
}

func TestClimate_ExtremaOnlyWiden(t *testing.T) {
	clock := &stepClock{t: day1}
	climate := NewClimate(newTestStore(t), clock, time.UTC)

	readings := []float64{18, 25, 12, 19, 21}
	var got ClimateSummary
	for _, r := range readings {
		got, _ = climate.Update(r, 40)
	}

	if got.TemperatureMin != 12 || got.TemperatureMax != 25 {
		t.Errorf("min/max = %v/%v, want 12/25", got.TemperatureMin, got.TemperatureMax)
	}
	if got.TemperatureAvg != 19 {
		t.Errorf("avg = %v, want 19", got.TemperatureAvg)
	}
}

func TestClimate_NewDayStartsOver(t *testing.T) {
	clock := &stepClock{t: day1}
	climate := NewClimate(newTestStore(t), clock, time.UTC)

	climate.Update(30, 20)
	clock.Set(day1.Add(24 * time.Hour))
	got, err := climate.Update(5, 90)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.TemperatureMax != 5 || got.HumidityMin != 90 {
		t.Errorf("Update() = %+v, yesterday's extrema leaked into today", got)
	}
}

func TestClimate_SaveFailure(t *testing.T) {
	climate := NewClimate(failingStore{}, &stepClock{t: day1}, nil)

	if _, err := climate.Update(20, 50); err == nil {
		t.Error("expected error when the record cannot be saved")
	}
}
