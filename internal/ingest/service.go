package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/nmoran/wc-server/internal/forecast"
	"github.com/nmoran/wc-server/internal/store"
)

// GridFetcher is satisfied by the forecast client.
type GridFetcher interface {
	FetchGrid(ctx context.Context) (*forecast.Document, error)
}

// Notifier is satisfied by the alert throttler.
type Notifier interface {
	Notify(alertType, message string, broadcastAll bool) error
}

// Service runs one full ingestion cycle: fetch the grid document, normalize
// it into hourly samples, prune expired samples, then check for freezing
// temperatures.
type Service struct {
	store     store.Store
	fetcher   GridFetcher
	notifier  Notifier
	retention time.Duration
	now       func() time.Time
}

func NewService(st store.Store, fetcher GridFetcher, notifier Notifier, retention time.Duration) *Service {
	return &Service{
		store:     st,
		fetcher:   fetcher,
		notifier:  notifier,
		retention: retention,
		now:       time.Now,
	}
}

// RunCycle executes the stages in order. A fetch or parse failure aborts the
// remaining stages for this cycle only; the next scheduled run retries.
func (s *Service) RunCycle(ctx context.Context) error {
	run := uuid.NewString()[:8]
	log.Printf("ingest[%s]: fetching forecast grid", run)

	doc, err := s.fetcher.FetchGrid(ctx)
	if err != nil {
		return fmt.Errorf("fetch forecast: %w", err)
	}

	if err := forecast.IngestDocument(ctx, s.store, doc); err != nil {
		return fmt.Errorf("normalize forecast: %w", err)
	}

	now := s.now()
	if err := s.store.PruneSamplesBefore(ctx, now.Add(-s.retention)); err != nil {
		return fmt.Errorf("prune samples: %w", err)
	}

	if err := s.checkFreeze(ctx, now); err != nil {
		return fmt.Errorf("freeze check: %w", err)
	}

	log.Printf("ingest[%s]: cycle complete", run)
	return nil
}

// checkFreeze raises a throttled freeze alert when a sub-zero temperature
// sample landed within the last hour and watering is enabled.
func (s *Service) checkFreeze(ctx context.Context, now time.Time) error {
	types := []store.SampleType{store.TypeMinTemperature, store.TypeTemperature}
	event, err := s.store.FirstSampleBelow(ctx, types, now.Add(-time.Hour), 0.0)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	settings, err := s.store.Settings(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoSettings) {
			return nil
		}
		return err
	}
	if !settings.WaterEnabled {
		return nil
	}

	message := fmt.Sprintf(
		"Warning: Below freezing temperature (%.2f C) at %s. Turn off the water and drain the system!",
		event.Value, event.Time.Format(time.RFC3339),
	)
	return s.notifier.Notify("freeze", message, true)
}
