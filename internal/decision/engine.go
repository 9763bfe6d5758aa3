package decision

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nmoran/wc-server/internal/store"
)

// lookahead is the window of forecast samples consulted before a run.
const lookahead = 4 * time.Hour

// Engine answers whether the irrigation device should run water right now,
// from forecast samples, configured thresholds, and the day's log.
type Engine struct {
	store store.Store
	now   func() time.Time
}

func NewEngine(st store.Store) *Engine {
	return &Engine{store: st, now: time.Now}
}

// RunWater reports the watering recommendation. Missing forecast aggregates
// default to watering. Rain skips a run only when both the chance and the
// accumulation thresholds are exceeded, and a run is skipped once the device
// has logged an "ending" marker today.
func (e *Engine) RunWater(ctx context.Context) (bool, error) {
	now := e.now()
	until := now.Add(lookahead)

	maxChance, haveChance, err := e.store.MaxSampleValue(ctx, store.TypeProbabilityOfPrecipitation, now, until)
	if err != nil {
		return false, err
	}
	accumulation, haveAccumulation, err := e.store.SumSampleValue(ctx, store.TypeQuantitativePrecipitation, now, until)
	if err != nil {
		return false, err
	}

	if !haveChance || !haveAccumulation {
		log.Printf("decision: missing forecast data, defaulting to run")
		return true, nil
	}

	settings, err := e.store.Settings(ctx)
	if err != nil && !errors.Is(err, store.ErrNoSettings) {
		return false, err
	}

	if maxChance > settings.MaxChance && accumulation > settings.TotalAccumulation {
		// Enough rain is coming; skip this run.
		return false, nil
	}

	alreadyWatered, err := e.store.HasLogReadingOn(ctx, now, "ending")
	if err != nil {
		return false, err
	}
	return !alreadyWatered, nil
}
