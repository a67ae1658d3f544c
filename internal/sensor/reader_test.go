package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/models"
	"github.com/afroash/weatherstation/internal/weather"
)

// mockStation records the inputs of every cycle.
type mockStation struct {
	inputs    []weather.RawInputs
	rainTips  int
	lastCycle time.Time
	lastErr   error
	err       error
}

func (m *mockStation) Read(in weather.RawInputs) (models.Snapshot, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return models.Snapshot{}, m.err
	}
	return models.NewSnapshot(time.Now(), []models.Metric{
		{Name: models.MetricTemperature, Value: in.Temperature},
	}), nil
}

func (m *mockStation) LastCycle() (time.Time, error) {
	return m.lastCycle, m.lastErr
}

func (m *mockStation) HandleRainWake(triggered bool) error {
	if triggered {
		m.rainTips++
	}
	return nil
}

// scriptedLine returns levels in order and then repeats the last one.
type scriptedLine struct {
	levels []int
	calls  int
}

func (s *scriptedLine) Value() (int, error) {
	if len(s.levels) == 0 {
		return 0, nil
	}
	i := min(s.calls, len(s.levels)-1)
	s.calls++
	return s.levels[i], nil
}

type mockLight struct {
	lux float64
	err error
}

func (m mockLight) Lux() (float64, error) {
	return m.lux, m.err
}

func TestReader_ReadOnce(t *testing.T) {
	env := &MockEnvironment{reading: EnvReading{Temperature: 22.5, Humidity: 45, Pressure: 1002.1}}
	station := &mockStation{}
	reader := NewReader(station, ReaderConfig{
		Environment: env,
		Light:       mockLight{lux: 12000},
		USBPower:    &scriptedLine{levels: []int{1}},
		Interval:    15 * time.Minute,
	}, zerolog.Nop())

	snap, err := reader.ReadOnce(true)
	if err != nil {
		t.Fatalf("ReadOnce() failed: %v", err)
	}
	if v, _ := snap.Get(models.MetricTemperature); v != 22.5 {
		t.Errorf("temperature = %v, want 22.5", v)
	}

	if len(station.inputs) != 1 {
		t.Fatalf("station read %d times, want 1", len(station.inputs))
	}
	want := weather.RawInputs{
		Temperature:      22.5,
		Humidity:         45,
		Pressure:         1002.1,
		Luminance:        12000,
		SecondsSinceLast: 900,
		USBPower:         true,
		RainTriggered:    true,
	}
	if station.inputs[0] != want {
		t.Errorf("inputs = %+v, want %+v", station.inputs[0], want)
	}
}

func TestReader_SecondsSinceLast(t *testing.T) {
	station := &mockStation{}
	reader := NewReader(station, ReaderConfig{
		Environment: &MockEnvironment{reading: EnvReading{Temperature: 20, Humidity: 50}},
		Interval:    time.Minute,
	}, zerolog.Nop())

	now := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	reader.now = func() time.Time { return now }
	reader.ReadOnce(false)

	now = now.Add(95 * time.Second)
	reader.ReadOnce(false)

	if got := station.inputs[1].SecondsSinceLast; got != 95 {
		t.Errorf("SecondsSinceLast = %v, want 95", got)
	}
}

func TestReader_SecondsSinceStoredCycle(t *testing.T) {
	now := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		station *mockStation
		want    float64
	}{
		{"stored cycle", &mockStation{lastCycle: now.Add(-7 * time.Minute)}, 420},
		{"no stored cycle", &mockStation{}, 60},
		{"clock behind stored cycle", &mockStation{lastCycle: now.Add(time.Hour)}, 60},
		{"lookup fails", &mockStation{lastErr: errors.New("flash busy")}, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewReader(tt.station, ReaderConfig{
				Environment: &MockEnvironment{reading: EnvReading{Temperature: 20, Humidity: 50}},
				Interval:    time.Minute,
			}, zerolog.Nop())
			reader.now = func() time.Time { return now }

			if _, err := reader.ReadOnce(false); err != nil {
				t.Fatalf("ReadOnce() failed: %v", err)
			}
			if got := tt.station.inputs[0].SecondsSinceLast; got != tt.want {
				t.Errorf("SecondsSinceLast = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReader_Failures(t *testing.T) {
	t.Run("no environment", func(t *testing.T) {
		reader := NewReader(&mockStation{}, ReaderConfig{}, zerolog.Nop())
		if _, err := reader.ReadOnce(false); !errors.Is(err, ErrNoEnvironment) {
			t.Errorf("err = %v, want ErrNoEnvironment", err)
		}
	})

	t.Run("sensor error skips the cycle", func(t *testing.T) {
		station := &mockStation{}
		reader := NewReader(station, ReaderConfig{
			Environment: &MockEnvironment{err: errors.New("checksum")},
		}, zerolog.Nop())
		if _, err := reader.ReadOnce(false); err == nil {
			t.Error("expected error")
		}
		if len(station.inputs) != 0 {
			t.Error("station should not be read without climate data")
		}
	})

	t.Run("light error degrades to dark", func(t *testing.T) {
		station := &mockStation{}
		reader := NewReader(station, ReaderConfig{
			Environment: &MockEnvironment{reading: EnvReading{Temperature: 20, Humidity: 50}},
			Light:       mockLight{err: errors.New("nack")},
		}, zerolog.Nop())
		if _, err := reader.ReadOnce(false); err != nil {
			t.Fatalf("ReadOnce() failed: %v", err)
		}
		if station.inputs[0].Luminance != 0 {
			t.Errorf("Luminance = %v, want 0", station.inputs[0].Luminance)
		}
	})

	t.Run("station error", func(t *testing.T) {
		reader := NewReader(&mockStation{err: errors.New("disk")}, ReaderConfig{
			Environment: &MockEnvironment{reading: EnvReading{Temperature: 20, Humidity: 50}},
		}, zerolog.Nop())
		if _, err := reader.ReadOnce(false); err == nil {
			t.Error("expected error")
		}
	})
}

func TestReader_CheckRainRisingEdges(t *testing.T) {
	station := &mockStation{}
	reader := NewReader(station, ReaderConfig{
		RainLine: &scriptedLine{levels: []int{0, 1, 1, 1, 0, 0, 1, 0, 1}},
	}, zerolog.Nop())

	for i := 0; i < 9; i++ {
		reader.CheckRain()
	}

	if station.rainTips != 3 {
		t.Errorf("rain tips = %d, want 3", station.rainTips)
	}
}

func TestReader_Start(t *testing.T) {
	env := &MockEnvironment{reading: EnvReading{Temperature: 22.5, Humidity: 45}}
	station := &mockStation{}

	// Use short interval for testing
	reader := NewReader(station, ReaderConfig{
		Environment: env,
		Interval:    100 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- reader.Start(ctx) }()

	snapshots := []models.Snapshot{}
	timeout := time.After(600 * time.Millisecond)

readLoop:
	for {
		select {
		case snap := <-reader.Snapshots():
			snapshots = append(snapshots, snap)
		case <-timeout:
			break readLoop
		}
	}

	// Should have gotten ~4-5 snapshots (500ms / 100ms)
	if len(snapshots) < 3 {
		t.Errorf("Got %d snapshots, expected at least 3", len(snapshots))
	}

	if err := <-done; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Start() = %v, want deadline exceeded", err)
	}
	if env.readCount < 3 {
		t.Errorf("Sensor read count = %d, expected at least 3", env.readCount)
	}
}

func TestReader_Close(t *testing.T) {
	env := &MockEnvironment{}
	reader := NewReader(&mockStation{}, ReaderConfig{Environment: env}, zerolog.Nop())

	if err := reader.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !env.closed {
		t.Error("environment was not closed")
	}
}
