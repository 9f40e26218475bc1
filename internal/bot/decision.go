package bot

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/hotspot/internal/humanize"
	"github.com/haasonsaas/hotspot/internal/store"
)

// handleDecision reacts to an approver pressing one of the inline buttons.
// The confirmation record is the linearization point: whoever inserts it
// wins, everyone else stops before touching the controller or any message.
func (w *Worker) handleDecision(ctx context.Context, update *models.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}

	// Telegram shows a spinner until the callback is answered; acknowledge
	// before doing any work.
	if _, err := w.client.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	}); err != nil {
		w.logger.Warn("answer callback query", "error", err)
	}

	var payload callbackPayload
	if err := json.Unmarshal([]byte(query.Data), &payload); err != nil {
		w.logger.Error("malformed callback payload", "error", err, "data", query.Data)
		return
	}
	minutes, err := strconv.Atoi(payload.Duration)
	if err != nil {
		w.logger.Error("malformed callback duration", "error", err, "data", query.Data)
		return
	}

	request, err := w.store.GetRequest(ctx, payload.ID)
	if errors.Is(err, store.ErrNotFound) {
		w.logger.Warn("decision for unknown request", "request_id", payload.ID)
		return
	}
	if err != nil {
		w.logger.Error("get request", "error", err, "request_id", payload.ID)
		return
	}

	approver := approverName(query.From)

	err = w.store.RecordConfirmation(ctx, request.ID, minutes, approver)
	if errors.Is(err, store.ErrAlreadyConfirmed) {
		// Another approver decided first; their outcome stands.
		w.logger.Info("request already decided", "request_id", request.ID)
		return
	}
	if err != nil {
		w.logger.Error("record confirmation", "error", err, "request_id", request.ID)
		return
	}

	granted := minutes > 0
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	if w.metrics != nil {
		w.metrics.Decisions.WithLabelValues(outcome).Inc()
	}
	w.logger.Info("decision recorded",
		"request_id", request.ID, "outcome", outcome,
		"minutes", minutes, "approver", approver)

	if granted && w.authorizer != nil {
		// The confirmation and message edits proceed even when the
		// controller call fails; the failure is only logged.
		if err := w.authorizer.AuthorizeGuest(ctx, request.MAC, minutes); err != nil {
			w.logger.Error("controller authorize failed", "error", err,
				"request_id", request.ID, "mac", request.MAC)
			if w.metrics != nil {
				w.metrics.ControllerErrors.Inc()
			}
		}
	}

	w.editBroadcasts(ctx, request, minutes, approver)
}

// editBroadcasts rewrites every prompt sent for the request so no chat is
// left with live buttons for an already-decided request.
func (w *Worker) editBroadcasts(ctx context.Context, request *store.Request, minutes int, approver string) {
	notifications, err := w.store.ListNotifications(ctx, request.ID)
	if err != nil {
		w.logger.Error("list notifications", "error", err, "request_id", request.ID)
		return
	}

	text := w.translate("bot.access_requested", map[string]string{
		"name": request.Name,
		"mac":  request.MAC,
	}) + "\n\n"

	if minutes > 0 {
		readable, err := humanize.Minutes(w.translator, w.config.Locale, minutes)
		if err != nil {
			w.logger.Error("format duration", "error", err, "minutes", minutes)
			readable = strconv.Itoa(minutes)
		}
		text += w.translate("bot.access_granted", map[string]string{
			"approver": approver,
			"duration": readable,
		})
	} else {
		text += w.translate("bot.access_denied", map[string]string{
			"approver": approver,
		})
	}

	for _, n := range notifications {
		chatID, err := strconv.ParseInt(n.ChatID, 10, 64)
		if err != nil {
			w.logger.Error("invalid chat id in store", "chat_id", n.ChatID)
			continue
		}
		messageID, err := strconv.Atoi(n.MessageID)
		if err != nil {
			w.logger.Error("invalid message id in store", "message_id", n.MessageID)
			continue
		}

		if _, err := w.client.EditMessageText(ctx, &tgbot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: messageID,
			Text:      text,
		}); err != nil {
			// One failing edit must not abort the others.
			w.logger.Error("edit broadcast message", "error", err,
				"request_id", request.ID, "chat_id", chatID)
			if w.metrics != nil {
				w.metrics.TransportErrors.Inc()
			}
		}
	}
}
