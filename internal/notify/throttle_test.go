package notify

import (
	"errors"
	"testing"
	"time"
)

type sentMail struct {
	recipients []string
	subject    string
	body       string
}

type fakeMailer struct {
	sends []sentMail
	err   error
}

func (f *fakeMailer) Send(recipients []string, subject, body string) error {
	f.sends = append(f.sends, sentMail{recipients: recipients, subject: subject, body: body})
	return f.err
}

func newTestThrottler(m Mailer) (*Throttler, *time.Time) {
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	t := NewThrottler(m, []string{"all-1@example.com", "all-2@example.com"}, []string{"primary@example.com"})
	t.now = func() time.Time { return now }
	return t, &now
}

func TestNotifyThrottlesAfterThreeSends(t *testing.T) {
	mailer := &fakeMailer{}
	th, now := newTestThrottler(mailer)

	for i := 0; i < 3; i++ {
		if err := th.Notify("freeze", "brr", true); err != nil {
			t.Fatalf("notify %d: %v", i, err)
		}
		*now = now.Add(10 * time.Minute)
	}
	if len(mailer.sends) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(mailer.sends))
	}

	// Fourth event inside the window is suppressed.
	if err := th.Notify("freeze", "brr", true); err != nil {
		t.Fatalf("suppressed notify: %v", err)
	}
	if len(mailer.sends) != 3 {
		t.Fatalf("expected suppression, got %d sends", len(mailer.sends))
	}

	// 25 hours after the first event the window has lapsed; counting restarts.
	*now = time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC)
	if err := th.Notify("freeze", "brr", true); err != nil {
		t.Fatalf("notify after window: %v", err)
	}
	if len(mailer.sends) != 4 {
		t.Fatalf("expected send after window reset, got %d sends", len(mailer.sends))
	}

	// The reset counter allows two more sends before throttling again.
	for i := 0; i < 2; i++ {
		if err := th.Notify("freeze", "brr", true); err != nil {
			t.Fatalf("notify after reset %d: %v", i, err)
		}
	}
	if err := th.Notify("freeze", "brr", true); err != nil {
		t.Fatalf("suppressed notify: %v", err)
	}
	if len(mailer.sends) != 6 {
		t.Fatalf("expected 6 sends total, got %d", len(mailer.sends))
	}
}

func TestNotifyRecipientSelection(t *testing.T) {
	mailer := &fakeMailer{}
	th, _ := newTestThrottler(mailer)

	if err := th.Notify("freeze", "brr", true); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := th.Notify("status", "ok", false); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(mailer.sends) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(mailer.sends))
	}
	if len(mailer.sends[0].recipients) != 2 {
		t.Fatalf("broadcast should use the full list, got %v", mailer.sends[0].recipients)
	}
	if len(mailer.sends[1].recipients) != 1 || mailer.sends[1].recipients[0] != "primary@example.com" {
		t.Fatalf("non-broadcast should use the primary list, got %v", mailer.sends[1].recipients)
	}
	if mailer.sends[0].subject != Subject {
		t.Fatalf("unexpected subject %q", mailer.sends[0].subject)
	}
}

func TestNotifySendFailureStillCounts(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	th, now := newTestThrottler(mailer)

	// The counter advances before the send attempt, so a failed send
	// consumes a slot instead of being retried against a fresh count.
	if err := th.Notify("freeze", "brr", true); err == nil {
		t.Fatal("expected send error to propagate")
	}

	mailer.err = nil
	for i := 0; i < 2; i++ {
		*now = now.Add(10 * time.Minute)
		if err := th.Notify("freeze", "brr", true); err != nil {
			t.Fatalf("notify %d: %v", i, err)
		}
	}

	// Three attempts are on the counter; the fourth is suppressed.
	*now = now.Add(10 * time.Minute)
	if err := th.Notify("freeze", "brr", true); err != nil {
		t.Fatalf("suppressed notify: %v", err)
	}
	if len(mailer.sends) != 3 {
		t.Fatalf("expected 3 attempted sends, got %d", len(mailer.sends))
	}
}

func TestNotifyTracksTypesIndependently(t *testing.T) {
	mailer := &fakeMailer{}
	th, _ := newTestThrottler(mailer)

	for i := 0; i < 4; i++ {
		if err := th.Notify("freeze", "brr", true); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if err := th.Notify("status", "ok", false); err != nil {
		t.Fatalf("notify: %v", err)
	}

	// freeze capped at 3, status unaffected by freeze's counter.
	if len(mailer.sends) != 4 {
		t.Fatalf("expected 4 sends, got %d", len(mailer.sends))
	}
}
