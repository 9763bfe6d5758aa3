package notify

import (
	"log"
	"sync"
	"time"
)

// Subject is the fixed subject line for device alerts.
const Subject = "Water Control Temperature Alert"

const (
	maxSendsPerWindow = 3
	window            = 24 * time.Hour
)

type counter struct {
	lastSent time.Time
	count    int
}

// Throttler rate-limits outbound alerts to at most three sends per alert
// type within a trailing 24-hour window. Counters live only as long as the
// process; a restart clears throttling history.
type Throttler struct {
	mu       sync.Mutex
	counters map[string]counter

	mailer  Mailer
	all     []string
	primary []string
	now     func() time.Time
}

func NewThrottler(mailer Mailer, all, primary []string) *Throttler {
	return &Throttler{
		counters: make(map[string]counter),
		mailer:   mailer,
		all:      all,
		primary:  primary,
		now:      time.Now,
	}
}

// Notify dispatches message for alertType unless the type has already been
// sent three times within the window. The counter is advanced before the
// send attempt, so a failed send is not silently retried against a fresh
// count. broadcastAll selects the full recipient list over the primary one.
func (t *Throttler) Notify(alertType, message string, broadcastAll bool) error {
	t.mu.Lock()
	now := t.now()
	c, tracked := t.counters[alertType]

	send := true
	switch {
	case !tracked:
		t.counters[alertType] = counter{lastSent: now, count: 1}
	case now.Sub(c.lastSent) < window && c.count >= maxSendsPerWindow:
		send = false
	case now.Sub(c.lastSent) < window:
		t.counters[alertType] = counter{lastSent: now, count: c.count + 1}
	default:
		// Window elapsed; start over.
		t.counters[alertType] = counter{lastSent: now, count: 1}
	}
	t.mu.Unlock()

	if !send {
		log.Printf("notify: %q alert suppressed, %d already sent in the last 24h", alertType, maxSendsPerWindow)
		return nil
	}

	recipients := t.primary
	if broadcastAll {
		recipients = t.all
	}
	return t.mailer.Send(recipients, Subject, message)
}
