package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/seanmcnab/habitd/internal/model"
	"github.com/seanmcnab/habitd/internal/store"
)

// sentRetention bounds the fired-key log. Keys embed the calendar day, so
// anything this old can never suppress a current notification.
const sentRetention = 7 * 24 * time.Hour

// Surface receives notification requests keyed by an idempotency key. A
// second request with the same key must be suppressed, so callers may ask
// again freely.
type Surface interface {
	Notify(title, body, dedupeKey string, meta map[string]string) error
}

type sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

// WebPushSurface fans a notification out to every registered browser
// subscription, suppressing repeats through the persistent sent-key log.
// Subscriptions the push service reports as gone are pruned on the spot.
type WebPushSurface struct {
	service sender
	push    *store.PushStore
	logger  *slog.Logger
}

func NewWebPushSurface(service *Service, push *store.PushStore, logger *slog.Logger) *WebPushSurface {
	return &WebPushSurface{service: service, push: push, logger: logger}
}

// Notify delivers a notification at most once per dedupe key. A failed send
// to one endpoint never blocks the others; the key is recorded once any
// delivery attempt has been made.
func (s *WebPushSurface) Notify(title, body, dedupeKey string, meta map[string]string) error {
	sent, err := s.push.WasSent(dedupeKey)
	if err != nil {
		return fmt.Errorf("check dedupe key: %w", err)
	}
	if sent {
		return nil
	}

	subs, err := s.push.List()
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	payload := Payload{
		Title: title,
		Body:  body,
		URL:   meta["url"],
		Tag:   dedupeKey,
	}

	for i := range subs {
		sub := &subs[i]
		if err := s.service.Send(sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
					s.logger.Error("prune expired subscription", "endpoint", sub.Endpoint, "error", err)
				}
			} else {
				s.logger.Error("send push", "endpoint", sub.Endpoint, "error", err)
			}
		}
	}

	if err := s.push.RecordSent(dedupeKey); err != nil {
		return err
	}
	if err := s.push.CleanupSent(time.Now().Add(-sentRetention)); err != nil {
		s.logger.Error("cleanup sent log", "error", err)
	}
	return nil
}
