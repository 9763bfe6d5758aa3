package decision

import (
	"context"
	"testing"
	"time"

	"github.com/nmoran/wc-server/internal/store"
)

var testNow = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func newTestEngine(st *store.MemoryStore) *Engine {
	e := NewEngine(st)
	e.now = func() time.Time { return testNow }
	return e
}

func seedForecast(t *testing.T, st *store.MemoryStore, chances, accumulations []float64) {
	t.Helper()
	ctx := context.Background()

	for i, v := range chances {
		s := store.Sample{
			Time:  testNow.Add(time.Duration(i+1) * time.Hour),
			Type:  store.TypeProbabilityOfPrecipitation,
			Value: v,
		}
		if err := st.UpsertSample(ctx, s); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	for i, v := range accumulations {
		s := store.Sample{
			Time:  testNow.Add(time.Duration(i+1) * time.Hour),
			Type:  store.TypeQuantitativePrecipitation,
			Value: v,
		}
		if err := st.UpsertSample(ctx, s); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
}

func seedSettings(t *testing.T, st *store.MemoryStore, maxChance, totalAccumulation float64) {
	t.Helper()
	s := store.Settings{
		WaterEnabled:      true,
		MaxChance:         maxChance,
		TotalAccumulation: totalAccumulation,
	}
	if err := st.UpdateSettings(context.Background(), s); err != nil {
		t.Fatalf("update settings: %v", err)
	}
}

func TestRunWaterFailOpen(t *testing.T) {
	st := store.NewMemoryStore()
	seedSettings(t, st, 70, 3)

	run, err := newTestEngine(st).RunWater(context.Background())
	if err != nil {
		t.Fatalf("run water: %v", err)
	}
	if !run {
		t.Fatal("expected run=true when no forecast data is available")
	}
}

func TestRunWaterRainSkip(t *testing.T) {
	st := store.NewMemoryStore()
	seedForecast(t, st, []float64{50, 80}, []float64{2, 3})
	seedSettings(t, st, 70, 3)

	run, err := newTestEngine(st).RunWater(context.Background())
	if err != nil {
		t.Fatalf("run water: %v", err)
	}
	if run {
		t.Fatal("expected run=false when both rain thresholds are exceeded")
	}
}

func TestRunWaterSingleThresholdNotEnough(t *testing.T) {
	st := store.NewMemoryStore()
	// Chance threshold exceeded, accumulation threshold not.
	seedForecast(t, st, []float64{50, 80}, []float64{1, 1})
	seedSettings(t, st, 70, 3)

	run, err := newTestEngine(st).RunWater(context.Background())
	if err != nil {
		t.Fatalf("run water: %v", err)
	}
	if !run {
		t.Fatal("expected run=true when only one threshold is exceeded")
	}
}

func TestRunWaterAlreadyWatered(t *testing.T) {
	st := store.NewMemoryStore()
	seedForecast(t, st, []float64{50, 80}, []float64{2, 3})
	seedSettings(t, st, 90, 3) // chance threshold not exceeded

	entry := store.LogEntry{Timestamp: testNow.Add(-time.Hour), Reading: "ending", Value: "1"}
	if err := st.AppendLogEntry(context.Background(), entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	run, err := newTestEngine(st).RunWater(context.Background())
	if err != nil {
		t.Fatalf("run water: %v", err)
	}
	if run {
		t.Fatal("expected run=false after a completed watering cycle today")
	}
}

func TestRunWaterIgnoresSamplesOutsideWindow(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	// Heavy rain, but more than four hours out.
	for _, s := range []store.Sample{
		{Time: testNow.Add(5 * time.Hour), Type: store.TypeProbabilityOfPrecipitation, Value: 100},
		{Time: testNow.Add(5 * time.Hour), Type: store.TypeQuantitativePrecipitation, Value: 50},
	} {
		if err := st.UpsertSample(ctx, s); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	seedSettings(t, st, 70, 3)

	run, err := newTestEngine(st).RunWater(ctx)
	if err != nil {
		t.Fatalf("run water: %v", err)
	}
	if !run {
		t.Fatal("expected run=true when rain falls outside the decision window")
	}
}

func TestRunWaterToleratesMissingSettings(t *testing.T) {
	st := store.NewMemoryStore()
	seedForecast(t, st, []float64{80}, []float64{5})

	// No settings row: zero thresholds apply, so the forecast rain skips the run.
	run, err := newTestEngine(st).RunWater(context.Background())
	if err != nil {
		t.Fatalf("expected no error with missing settings, got %v", err)
	}
	if run {
		t.Fatal("expected run=false with zero thresholds and rain in the window")
	}
}
