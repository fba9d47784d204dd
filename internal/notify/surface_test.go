package notify

import (
	"log/slog"
	"testing"
	"time"

	"github.com/seanmcnab/habitd/internal/database"
	"github.com/seanmcnab/habitd/internal/model"
	"github.com/seanmcnab/habitd/internal/store"
)

type fakeSender struct {
	sent       []Payload
	expiredFor map[string]bool
}

func (f *fakeSender) Send(sub *model.PushSubscription, payload Payload) error {
	if f.expiredFor[sub.Endpoint] {
		return ErrExpired
	}
	f.sent = append(f.sent, payload)
	return nil
}

func setupSurface(t *testing.T) (*WebPushSurface, *fakeSender, *store.PushStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ps := store.NewPushStore(db)
	sender := &fakeSender{}
	surface := &WebPushSurface{service: sender, push: ps, logger: slog.Default()}
	return surface, sender, ps
}

func TestNotifySendsToAllSubscriptions(t *testing.T) {
	surface, sender, ps := setupSurface(t)

	ps.CreateSubscription("https://push.example/a", "k", "a", "")
	ps.CreateSubscription("https://push.example/b", "k", "a", "")

	err := surface.Notify("Time for: Meditate", "Don't forget", "habit-h1-2024-01-03", map[string]string{"url": "/"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sender.sent))
	}
	if sender.sent[0].Tag != "habit-h1-2024-01-03" {
		t.Errorf("tag = %q, want dedupe key", sender.sent[0].Tag)
	}
	if sender.sent[0].Title != "Time for: Meditate" {
		t.Errorf("title = %q", sender.sent[0].Title)
	}
}

func TestNotifySuppressesRepeatKey(t *testing.T) {
	surface, sender, ps := setupSurface(t)
	ps.CreateSubscription("https://push.example/a", "k", "a", "")

	key := "habit-h1-2024-01-03"
	if err := surface.Notify("t", "b", key, nil); err != nil {
		t.Fatalf("first notify: %v", err)
	}
	if err := surface.Notify("t", "b", key, nil); err != nil {
		t.Fatalf("second notify: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Errorf("expected exactly 1 send for repeated key, got %d", len(sender.sent))
	}
}

func TestNotifyDifferentDaysFireSeparately(t *testing.T) {
	surface, sender, ps := setupSurface(t)
	ps.CreateSubscription("https://push.example/a", "k", "a", "")

	surface.Notify("t", "b", "habit-h1-2024-01-03", nil)
	surface.Notify("t", "b", "habit-h1-2024-01-04", nil)

	if len(sender.sent) != 2 {
		t.Errorf("expected 2 sends for distinct day keys, got %d", len(sender.sent))
	}
}

func TestNotifyPrunesExpiredSubscription(t *testing.T) {
	surface, sender, ps := setupSurface(t)
	sender.expiredFor = map[string]bool{"https://push.example/dead": true}

	ps.CreateSubscription("https://push.example/dead", "k", "a", "")
	ps.CreateSubscription("https://push.example/alive", "k", "a", "")

	if err := surface.Notify("t", "b", "habit-h1-2024-01-03", nil); err != nil {
		t.Fatalf("notify: %v", err)
	}

	// Live endpoint still got the notification
	if len(sender.sent) != 1 {
		t.Errorf("expected 1 send, got %d", len(sender.sent))
	}

	// Dead endpoint was pruned
	sub, err := ps.GetByEndpoint("https://push.example/dead")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sub != nil {
		t.Error("expected expired subscription to be deleted")
	}
}

func TestNotifyPrunesOldSentKeys(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ps := store.NewPushStore(db)
	surface := &WebPushSurface{service: &fakeSender{}, push: ps, logger: slog.Default()}

	// A key fired well past the retention window
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	if _, err := db.Exec(
		`INSERT INTO sent_notifications (dedupe_key, sent_at) VALUES (?, ?)`,
		"habit-h1-2024-01-03", old,
	); err != nil {
		t.Fatalf("seed old key: %v", err)
	}

	if err := surface.Notify("t", "b", "habit-h1-2024-02-10", nil); err != nil {
		t.Fatalf("notify: %v", err)
	}

	sent, err := ps.WasSent("habit-h1-2024-01-03")
	if err != nil {
		t.Fatalf("was sent: %v", err)
	}
	if sent {
		t.Error("expected stale key to be pruned")
	}

	sent, err = ps.WasSent("habit-h1-2024-02-10")
	if err != nil {
		t.Fatalf("was sent: %v", err)
	}
	if !sent {
		t.Error("fresh key must survive the prune")
	}
}

func TestNotifyNoSubscriptionsStillRecordsKey(t *testing.T) {
	surface, sender, ps := setupSurface(t)

	if err := surface.Notify("t", "b", "habit-h1-2024-01-03", nil); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected no sends, got %d", len(sender.sent))
	}

	sent, err := ps.WasSent("habit-h1-2024-01-03")
	if err != nil {
		t.Fatalf("was sent: %v", err)
	}
	if !sent {
		t.Error("key should be recorded even with no subscribers")
	}
}
