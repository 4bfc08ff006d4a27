// Slack 보안 이벤트 메시지 관련 메서드 정의

package client

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sitefolio/backend/internal/model"
)

// 보안 이벤트를 Slack으로 전송
//
// 같은 계정의 이벤트는 하나의 쓰레드로 묶음:
//   - account_locked / refresh_device_mismatch: 쓰레드가 있으면 답글, 없으면 새 메시지 후 thread_ts 저장
//   - account_unlocked: 기존 쓰레드에 답글로 전송 후 thread_ts 삭제
//   - 계정을 알 수 없는 이벤트는 쓰레드 없이 단독 메시지
//
// 설정되지 않았으면 아무것도 하지 않음
func (c *SlackClient) NotifySecurityEvent(ctx context.Context, ev model.SecurityEvent) error {
	if !c.IsConfigured() {
		return nil
	}

	key := string(ev.Kind) + "/" + ev.PublicID
	fields := []SlackField{
		{Title: "Principal", Value: fmt.Sprintf("%s %s", ev.Kind, ev.PublicID), Short: true},
		{Title: "IP", Value: valueOrDash(ev.IP), Short: true},
		{Title: "Time", Value: ev.OccurredAt.UTC().Format(time.RFC3339), Short: true},
	}
	if ev.LockedFor > 0 {
		fields = append(fields, SlackField{Title: "Locked for", Value: ev.LockedFor.Round(time.Second).String(), Short: true})
	}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color:  colorByEvent(ev.Type),
				Title:  titleByEvent(ev.Type),
				Fields: fields,
				Footer: "sitefolio",
				Ts:     ev.OccurredAt.Unix(),
			},
		},
	}
	threaded := ev.PublicID != ""
	if threaded {
		if threadTS, ok := c.threadTS(key); ok {
			msg.ThreadTS = threadTS
		}
	}

	resp, err := c.send(ctx, msg)
	if err != nil {
		return err
	}

	switch {
	case !threaded:
	case ev.Type == model.EventAccountUnlocked:
		c.deleteThreadTS(key)
	case msg.ThreadTS == "" && resp.TS != "":
		c.storeThreadTS(key, resp.TS)
	}
	return nil
}

// NotifyAsync는 요청 처리 흐름을 막지 않도록 별도 goroutine에서 전송
func (c *SlackClient) NotifyAsync(ev model.SecurityEvent) {
	if !c.IsConfigured() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.NotifySecurityEvent(ctx, ev); err != nil {
			log.Printf("[SecurityAlert] Failed to send %s for %s %s: %v", ev.Type, ev.Kind, ev.PublicID, err)
		}
	}()
}

func colorByEvent(t model.SecurityEventType) string {
	switch t {
	case model.EventRefreshReplay:
		return "#dc3545" // red
	case model.EventAccountLocked:
		return "#ffc107" // yellow
	default:
		return "#36a64f" // green
	}
}

func titleByEvent(t model.SecurityEventType) string {
	switch t {
	case model.EventRefreshReplay:
		return "🚨 Refresh token used from a different device (revoked)"
	case model.EventAccountLocked:
		return "🔒 Account locked after repeated failed logins"
	case model.EventAccountUnlocked:
		return "✅ Account unlocked by an administrator"
	default:
		return string(t)
	}
}

func valueOrDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
