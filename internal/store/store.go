package store

import (
	"context"
	"errors"
	"time"
)

// ErrNoSettings is returned when the device settings row has not been created.
var ErrNoSettings = errors.New("device settings not configured")

// SampleType names a tracked forecast property.
type SampleType string

const (
	TypeProbabilityOfPrecipitation SampleType = "probabilityOfPrecipitation"
	TypeQuantitativePrecipitation  SampleType = "quantitativePrecipitation"
	TypeMinTemperature             SampleType = "minTemperature"
	TypeTemperature                SampleType = "temperature"
)

// Sample is one discrete hourly forecast data point. At most one sample
// exists per (Time, Type) pair; writing the same pair replaces the value.
type Sample struct {
	Time  time.Time  `json:"time"`
	Type  SampleType `json:"type"`
	Value float64    `json:"value"`
}

// Settings is the single device configuration row.
type Settings struct {
	OverrideTime      bool    `json:"override_time"`
	WaterEnabled      bool    `json:"water_enabled"`
	Hour              int     `json:"hour"`
	Minute            int     `json:"minute"`
	Second            int     `json:"second"`
	MinSoil           int     `json:"min_soil"`
	RunDuration       int     `json:"run_duration"`
	RunTimes          []int   `json:"run_times"`
	MaxChance         float64 `json:"max_chance"`
	TotalAccumulation float64 `json:"total_accumulation"`
}

// LogEntry is one reading reported by the device during check-in.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Reading   string    `json:"reading"`
	Value     string    `json:"value"`
}

// Store is the persistence contract shared by the Postgres-backed store and
// the in-memory store used for tests and database-less runs.
type Store interface {
	// UpsertSample writes a sample, replacing any existing (time, type) row.
	UpsertSample(ctx context.Context, s Sample) error

	// PruneSamplesBefore removes every sample strictly older than cutoff.
	PruneSamplesBefore(ctx context.Context, cutoff time.Time) error

	// RecentSamples returns samples newer than since, ordered by time.
	RecentSamples(ctx context.Context, since time.Time) ([]Sample, error)

	// MaxSampleValue reports the maximum value for a type over samples with
	// time strictly between from and to. found is false when no sample
	// matches, which callers must treat differently from a zero maximum.
	MaxSampleValue(ctx context.Context, typ SampleType, from, to time.Time) (value float64, found bool, err error)

	// SumSampleValue is the summed counterpart of MaxSampleValue.
	SumSampleValue(ctx context.Context, typ SampleType, from, to time.Time) (value float64, found bool, err error)

	// FirstSampleBelow returns the earliest sample of any listed type newer
	// than since with a value below limit, or nil when none qualifies.
	FirstSampleBelow(ctx context.Context, types []SampleType, since time.Time, limit float64) (*Sample, error)

	Settings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, s Settings) error

	AppendLogEntry(ctx context.Context, e LogEntry) error

	// RecentLogEntries returns up to limit entries, newest first.
	RecentLogEntries(ctx context.Context, limit int) ([]LogEntry, error)

	// HasLogReadingOn reports whether a log entry with the given reading
	// exists on the local calendar day containing day.
	HasLogReadingOn(ctx context.Context, day time.Time, reading string) (bool, error)
}
