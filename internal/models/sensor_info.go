package models

import "time"

// StationInfo describes the station sending readings.
type StationInfo struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	Timezone  string    `json:"timezone"`
	Version   string    `json:"version"`
	StartTime time.Time `json:"start_time"`
}

// Uptime returns the duration since the station process started.
func (s *StationInfo) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// NewStationInfo creates a StationInfo with the current time as start time.
func NewStationInfo(id, nickname, timezone, version string) *StationInfo {
	return &StationInfo{
		ID:        id,
		Nickname:  nickname,
		Timezone:  timezone,
		Version:   version,
		StartTime: time.Now(),
	}
}
