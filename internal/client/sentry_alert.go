// Sentry 보안 이벤트 리포터 및 알림 fan-out

package client

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/sitefolio/backend/internal/model"
)

// SecurityNotifier는 보안 이벤트를 비동기로 전달하는 알림 채널
type SecurityNotifier interface {
	NotifyAsync(ev model.SecurityEvent)
}

// SentryReporter records security events as warning-level Sentry messages
// tagged with the event type and the principal. Device and risk level are
// never attached.
type SentryReporter struct {
	hub *sentry.Hub
}

func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	return &SentryReporter{hub: hub}
}

// Sentry가 초기화되지 않았으면 false
func (r *SentryReporter) IsConfigured() bool {
	return r != nil && r.hub != nil && r.hub.Client() != nil
}

// CaptureMessage는 transport에 넘기기만 하므로 호출 흐름을 막지 않음
func (r *SentryReporter) NotifyAsync(ev model.SecurityEvent) {
	if !r.IsConfigured() {
		return
	}
	hub := r.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTag("security_event", string(ev.Type))
		if ev.PublicID != "" {
			scope.SetTag("principal_kind", string(ev.Kind))
			scope.SetTag("principal_id", ev.PublicID)
		}
		if ev.LockedFor > 0 {
			scope.SetExtra("locked_for", ev.LockedFor.String())
		}
	})
	hub.CaptureMessage(fmt.Sprintf("security event: %s", ev.Type))
}

// Notifiers fans one event out to every configured channel.
type Notifiers []SecurityNotifier

func (n Notifiers) NotifyAsync(ev model.SecurityEvent) {
	for _, notifier := range n {
		notifier.NotifyAsync(ev)
	}
}
