package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type sampleKey struct {
	unixNano int64
	typ      SampleType
}

// MemoryStore is a concurrency-safe in-memory implementation of Store. It
// backs the test suite and database-less local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	samples  map[sampleKey]Sample
	settings *Settings
	logs     []LogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		samples: make(map[sampleKey]Sample),
	}
}

func (m *MemoryStore) UpsertSample(_ context.Context, s Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[sampleKey{s.Time.UnixNano(), s.Type}] = s
	return nil
}

func (m *MemoryStore) PruneSamplesBefore(_ context.Context, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.samples {
		if s.Time.Before(cutoff) {
			delete(m.samples, key)
		}
	}
	return nil
}

func (m *MemoryStore) RecentSamples(_ context.Context, since time.Time) ([]Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Sample
	for _, s := range m.samples {
		if s.Time.After(since) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Time.Equal(result[j].Time) {
			return result[i].Type < result[j].Type
		}
		return result[i].Time.Before(result[j].Time)
	})
	return result, nil
}

func (m *MemoryStore) MaxSampleValue(_ context.Context, typ SampleType, from, to time.Time) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var max float64
	found := false
	for _, s := range m.samples {
		if s.Type != typ || !s.Time.After(from) || !s.Time.Before(to) {
			continue
		}
		if !found || s.Value > max {
			max = s.Value
		}
		found = true
	}
	return max, found, nil
}

func (m *MemoryStore) SumSampleValue(_ context.Context, typ SampleType, from, to time.Time) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum float64
	found := false
	for _, s := range m.samples {
		if s.Type != typ || !s.Time.After(from) || !s.Time.Before(to) {
			continue
		}
		sum += s.Value
		found = true
	}
	return sum, found, nil
}

func (m *MemoryStore) FirstSampleBelow(_ context.Context, types []SampleType, since time.Time, limit float64) (*Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	typeSet := make(map[SampleType]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	var earliest *Sample
	for _, s := range m.samples {
		if !typeSet[s.Type] || !s.Time.After(since) || s.Value >= limit {
			continue
		}
		if earliest == nil || s.Time.Before(earliest.Time) {
			s := s
			earliest = &s
		}
	}
	return earliest, nil
}

func (m *MemoryStore) Settings(_ context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.settings == nil {
		return Settings{}, ErrNoSettings
	}
	return *m.settings, nil
}

func (m *MemoryStore) UpdateSettings(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.RunTimes = append([]int(nil), s.RunTimes...)
	m.settings = &s
	return nil
}

func (m *MemoryStore) AppendLogEntry(_ context.Context, e LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, e)
	return nil
}

func (m *MemoryStore) RecentLogEntries(_ context.Context, limit int) ([]LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := append([]LogEntry(nil), m.logs...)
	sort.SliceStable(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) HasLogReadingOn(_ context.Context, day time.Time, reading string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	for _, e := range m.logs {
		if e.Reading == reading && !e.Timestamp.Before(dayStart) {
			return true, nil
		}
	}
	return false, nil
}
