package client

import (
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sitefolio/backend/internal/model"
)

type sentryRecorder struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (r *sentryRecorder) beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func newTestSentryReporter(t *testing.T) (*SentryReporter, *sentryRecorder) {
	t.Helper()
	rec := &sentryRecorder{}
	c, err := sentry.NewClient(sentry.ClientOptions{BeforeSend: rec.beforeSend})
	if err != nil {
		t.Fatalf("sentry.NewClient: %v", err)
	}
	return NewSentryReporter(sentry.NewHub(c, sentry.NewScope())), rec
}

func TestSentryReporterTagsEvent(t *testing.T) {
	r, rec := newTestSentryReporter(t)
	r.NotifyAsync(model.SecurityEvent{
		Type:       model.EventRefreshReplay,
		Kind:       model.KindAdmin,
		PublicID:   "000003",
		IP:         "10.9.9.9",
		OccurredAt: time.Now(),
	})

	if len(rec.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Level != sentry.LevelWarning {
		t.Fatalf("level = %s", ev.Level)
	}
	if ev.Tags["security_event"] != string(model.EventRefreshReplay) || ev.Tags["principal_kind"] != "admin" || ev.Tags["principal_id"] != "000003" {
		t.Fatalf("unexpected tags %v", ev.Tags)
	}
	for _, key := range []string{"device", "risk_level"} {
		if _, ok := ev.Tags[key]; ok {
			t.Fatalf("tag %q must not be sent", key)
		}
		if _, ok := ev.Extra[key]; ok {
			t.Fatalf("extra %q must not be sent", key)
		}
	}
}

func TestSentryReporterScopeDoesNotLeak(t *testing.T) {
	r, rec := newTestSentryReporter(t)
	r.NotifyAsync(model.SecurityEvent{Type: model.EventAccountLocked, Kind: model.KindUser, PublicID: "000001", LockedFor: time.Hour})
	r.NotifyAsync(model.SecurityEvent{Type: model.EventRefreshReplay})

	if len(rec.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.events))
	}
	if _, ok := rec.events[1].Tags["principal_id"]; ok {
		t.Fatalf("tags from the first event leaked: %v", rec.events[1].Tags)
	}
}

func TestSentryReporterUnconfigured(t *testing.T) {
	var nilReporter *SentryReporter
	nilReporter.NotifyAsync(model.SecurityEvent{Type: model.EventAccountLocked})

	r := NewSentryReporter(sentry.NewHub(nil, sentry.NewScope()))
	if r.IsConfigured() {
		t.Fatalf("hub without client should be unconfigured")
	}
	r.NotifyAsync(model.SecurityEvent{Type: model.EventAccountLocked})
}

type countingNotifier struct{ n int }

func (c *countingNotifier) NotifyAsync(model.SecurityEvent) { c.n++ }

func TestNotifiersFanOut(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	Notifiers{a, b}.NotifyAsync(model.SecurityEvent{Type: model.EventAccountUnlocked})
	if a.n != 1 || b.n != 1 {
		t.Fatalf("every notifier should receive the event: %d %d", a.n, b.n)
	}
}
