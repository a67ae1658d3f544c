package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Metric names carried by a Snapshot.
const (
	MetricTemperature      = "temperature"
	MetricHumidity         = "humidity"
	MetricPressure         = "pressure"
	MetricLuminance        = "luminance"
	MetricWindSpeed        = "wind_speed"
	MetricWindGust         = "wind_gust"
	MetricWindDirection    = "wind_direction"
	MetricRain             = "rain"
	MetricRainPerSecond    = "rain_per_second"
	MetricRainPerHour      = "rain_per_hour"
	MetricRainToday        = "rain_today"
	MetricDewPoint         = "dewpoint"
	MetricTemperatureAvg   = "temperature_avg"
	MetricTemperatureMin   = "temperature_min"
	MetricTemperatureMax   = "temperature_max"
	MetricHumidityAvg      = "humidity_avg"
	MetricHumidityMin      = "humidity_min"
	MetricHumidityMax      = "humidity_max"
	MetricPollenIndex      = "pollen_index"
	MetricSeaLevelPressure = "sea_level_pressure"
)

// Metric is one named value of a reading.
type Metric struct {
	Name  string
	Value float64
}

// Snapshot is the set of metrics produced by one wake cycle. It is built once
// and never modified afterwards; accessors return copies.
type Snapshot struct {
	takenAt time.Time
	metrics []Metric
}

// NewSnapshot creates a snapshot from metrics in the given order. A repeated
// name keeps its first position and takes the last value.
func NewSnapshot(takenAt time.Time, metrics []Metric) Snapshot {
	out := make([]Metric, 0, len(metrics))
	index := make(map[string]int, len(metrics))
	for _, m := range metrics {
		if i, ok := index[m.Name]; ok {
			out[i].Value = m.Value
			continue
		}
		index[m.Name] = len(out)
		out = append(out, m)
	}
	return Snapshot{takenAt: takenAt, metrics: out}
}

// TakenAt returns when the snapshot was produced.
func (s Snapshot) TakenAt() time.Time {
	return s.takenAt
}

// Get returns the value of the named metric.
func (s Snapshot) Get(name string) (float64, bool) {
	for _, m := range s.metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// Names returns the metric names in order.
func (s Snapshot) Names() []string {
	names := make([]string, len(s.metrics))
	for i, m := range s.metrics {
		names[i] = m.Name
	}
	return names
}

// Metrics returns a copy of the metrics in order.
func (s Snapshot) Metrics() []Metric {
	return append([]Metric(nil), s.metrics...)
}

// Len returns the number of metrics.
func (s Snapshot) Len() int {
	return len(s.metrics)
}

// IsZero reports whether the snapshot holds no metrics.
func (s Snapshot) IsZero() bool {
	return len(s.metrics) == 0
}

// String returns a compact one-line form for logs.
func (s Snapshot) String() string {
	parts := make([]string, len(s.metrics))
	for i, m := range s.metrics {
		parts[i] = m.Name + "=" + strconv.FormatFloat(m.Value, 'f', -1, 64)
	}
	return fmt.Sprintf("Snapshot[%s: %s]", s.takenAt.Format(time.RFC3339), strings.Join(parts, ", "))
}

// MarshalJSON encodes the metrics as a flat object preserving their order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range s.metrics {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.Value)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", m.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat metric object, keeping key order. The taken-at
// time is not part of the encoding and is left unchanged.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("snapshot: expected object")
	}
	var metrics []Metric
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("snapshot: expected key, got %v", tok)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("snapshot: metric %s: %w", name, err)
		}
		metrics = append(metrics, Metric{Name: name, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = NewSnapshot(s.takenAt, metrics)
	return nil
}

// WithTakenAt returns a copy of s carrying the given time.
func (s Snapshot) WithTakenAt(t time.Time) Snapshot {
	return Snapshot{takenAt: t, metrics: s.Metrics()}
}
