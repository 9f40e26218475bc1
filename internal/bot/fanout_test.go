package bot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot/models"
)

func TestDispatchTickBroadcasts(t *testing.T) {
	w, client, _, s := newTestWorker(t)
	ctx := context.Background()

	if err := s.AddChannel(ctx, "100"); err != nil {
		t.Fatalf("AddChannel() error = %v", err)
	}
	if err := s.AddChannel(ctx, "200"); err != nil {
		t.Fatalf("AddChannel() error = %v", err)
	}
	if err := s.AddRequest(ctx, "req-1", "Alice", "AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("AddRequest() error = %v", err)
	}

	w.dispatchTick(ctx)

	// One message per registered chat.
	if len(client.sent) != 2 {
		t.Fatalf("sent = %d messages, want 2", len(client.sent))
	}
	for _, params := range client.sent {
		if !strings.Contains(params.Text, "Alice") || !strings.Contains(params.Text, "AA:BB:CC:DD:EE:FF") {
			t.Errorf("prompt text = %q, want name and mac", params.Text)
		}
		markup, ok := params.ReplyMarkup.(*models.InlineKeyboardMarkup)
		if !ok {
			t.Fatalf("ReplyMarkup type = %T", params.ReplyMarkup)
		}
		// One combined message: a row of accept options plus a deny row.
		if len(markup.InlineKeyboard) != 2 {
			t.Fatalf("keyboard rows = %d, want 2", len(markup.InlineKeyboard))
		}
		if len(markup.InlineKeyboard[0]) != 2 {
			t.Fatalf("accept buttons = %d, want 2", len(markup.InlineKeyboard[0]))
		}
		if markup.InlineKeyboard[0][0].Text != "1 hour" || markup.InlineKeyboard[0][1].Text != "1 day" {
			t.Errorf("accept labels = %q, %q", markup.InlineKeyboard[0][0].Text, markup.InlineKeyboard[0][1].Text)
		}
		var payload callbackPayload
		if err := json.Unmarshal([]byte(markup.InlineKeyboard[1][0].CallbackData), &payload); err != nil {
			t.Fatalf("deny payload not JSON: %v", err)
		}
		if payload.Duration != "-1" || payload.ID != "req-1" {
			t.Errorf("deny payload = %+v", payload)
		}
	}

	// One notification row per chat.
	notifications, err := s.ListNotifications(ctx, "req-1")
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("notifications = %d, want 2", len(notifications))
	}

	// The request is claimed; a second tick must not re-broadcast.
	w.dispatchTick(ctx)
	if len(client.sent) != 2 {
		t.Fatalf("sent after second tick = %d, want still 2", len(client.sent))
	}
}

func TestDispatchTickRace(t *testing.T) {
	w, client, _, s := newTestWorker(t)
	ctx := context.Background()

	if err := s.AddChannel(ctx, "100"); err != nil {
		t.Fatalf("AddChannel() error = %v", err)
	}
	if err := s.AddRequest(ctx, "req-race", "Bob", "00:11:22:33:44:55"); err != nil {
		t.Fatalf("AddRequest() error = %v", err)
	}

	// Two ticks racing on the same undispatched request: exactly one
	// broadcast set results.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.dispatchTick(ctx)
		}()
	}
	wg.Wait()

	if got := client.sentCount(); got != 1 {
		t.Fatalf("sent = %d messages, want exactly 1", got)
	}
	notifications, err := s.ListNotifications(ctx, "req-race")
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("notifications = %d, want exactly 1", len(notifications))
	}
}

func TestDispatchSendFailureSkipsNotification(t *testing.T) {
	w, client, _, s := newTestWorker(t)
	ctx := context.Background()
	client.sendErr = errors.New("telegram unavailable")

	if err := s.AddChannel(ctx, "100"); err != nil {
		t.Fatalf("AddChannel() error = %v", err)
	}
	if err := s.AddRequest(ctx, "req-1", "Alice", "AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("AddRequest() error = %v", err)
	}

	w.dispatchTick(ctx)

	// Claimed but undelivered: at-most-once, not exactly-once.
	open, err := s.ListUndispatched(ctx)
	if err != nil {
		t.Fatalf("ListUndispatched() error = %v", err)
	}
	if len(open) != 0 {
		t.Fatal("request still undispatched after failed broadcast")
	}
	notifications, err := s.ListNotifications(ctx, "req-1")
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(notifications) != 0 {
		t.Fatalf("notifications recorded for failed sends: %v", notifications)
	}
}
