package bot

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/hotspot/internal/humanize"
	"github.com/haasonsaas/hotspot/internal/store"
)

// callbackPayload is the compact JSON round-tripped through Telegram's
// callback data. Duration is a string to keep the payload well under
// Telegram's 64-byte callback data limit alongside a 32-char request id.
type callbackPayload struct {
	Duration string `json:"duration"`
	ID       string `json:"id"`
}

// runDispatcher is the fan-out loop. It runs for the lifetime of the worker
// and broadcasts each new request to all registered chats exactly once.
func (w *Worker) runDispatcher(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("dispatcher stopped")
			return
		case <-ticker.C:
			w.dispatchTick(ctx)
		}
	}
}

// dispatchTick claims and broadcasts every undispatched request. The claim
// happens strictly before any send: a crash mid-broadcast leaves the request
// dispatched and possibly under-notified, never double-broadcast.
func (w *Worker) dispatchTick(ctx context.Context) {
	open, err := w.store.ListUndispatched(ctx)
	if err != nil {
		w.logger.Error("list undispatched requests", "error", err)
		return
	}

	for _, request := range open {
		claimed, err := w.store.ClaimDispatch(ctx, request.ID)
		if err != nil {
			w.logger.Error("claim dispatch", "error", err, "request_id", request.ID)
			continue
		}
		if !claimed {
			// Another worker instance won this request.
			continue
		}
		w.broadcast(ctx, request)
	}
}

func (w *Worker) broadcast(ctx context.Context, request store.Request) {
	channels, err := w.store.ListChannels(ctx)
	if err != nil {
		w.logger.Error("list channels", "error", err, "request_id", request.ID)
		return
	}
	if len(channels) == 0 {
		w.logger.Warn("no registered chats, request will not be seen", "request_id", request.ID)
		return
	}

	keyboard, err := w.buildKeyboard(request.ID)
	if err != nil {
		w.logger.Error("build keyboard", "error", err, "request_id", request.ID)
		return
	}

	text := w.translate("bot.access_requested", map[string]string{
		"name": request.Name,
		"mac":  request.MAC,
	}) + "\n\n" + w.translate("bot.confirm_access", nil)

	if w.metrics != nil {
		w.metrics.RequestsDispatched.Inc()
	}

	for _, channel := range channels {
		chatID, err := strconv.ParseInt(channel.ChatID, 10, 64)
		if err != nil {
			w.logger.Error("invalid chat id in store", "chat_id", channel.ChatID)
			continue
		}

		message, err := w.client.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID:      chatID,
			Text:        text,
			ReplyMarkup: keyboard,
		})
		if err != nil {
			// Other chats still get notified.
			w.logger.Error("send approval prompt", "error", err,
				"request_id", request.ID, "chat_id", chatID)
			if w.metrics != nil {
				w.metrics.TransportErrors.Inc()
			}
			continue
		}

		if err := w.store.RecordNotification(ctx, request.ID, channel.ChatID,
			strconv.Itoa(message.ID)); err != nil {
			w.logger.Error("record notification", "error", err,
				"request_id", request.ID, "chat_id", chatID)
			continue
		}
		if w.metrics != nil {
			w.metrics.NotificationsSent.Inc()
		}
	}

	w.logger.Info("request broadcast", "request_id", request.ID, "chats", len(channels))
}

// buildKeyboard lays out one row of accept-duration buttons labeled with
// humanized durations, and a deny row.
func (w *Worker) buildKeyboard(requestID string) (*models.InlineKeyboardMarkup, error) {
	var acceptRow []models.InlineKeyboardButton
	for _, minutes := range w.config.AcceptOptions {
		label, err := humanize.Minutes(w.translator, w.config.Locale, minutes)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(callbackPayload{
			Duration: strconv.Itoa(minutes),
			ID:       requestID,
		})
		if err != nil {
			return nil, err
		}
		acceptRow = append(acceptRow, models.InlineKeyboardButton{
			Text:         label,
			CallbackData: string(data),
		})
	}

	denyData, err := json.Marshal(callbackPayload{
		Duration: strconv.Itoa(denyDuration),
		ID:       requestID,
	})
	if err != nil {
		return nil, err
	}
	denyRow := []models.InlineKeyboardButton{{
		Text:         w.translate("bot.deny_access", nil),
		CallbackData: string(denyData),
	}}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{acceptRow, denyRow},
	}, nil
}
