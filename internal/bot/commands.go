package bot

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/hotspot/internal/store"
)

// handleRegister gates which chats receive access-request broadcasts. A chat
// is added once on a correct password; every later /register is a no-op
// regardless of the password given.
func (w *Worker) handleRegister(ctx context.Context, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := strings.Fields(update.Message.Text)[1:]
	if len(args) == 0 {
		w.reply(ctx, chatID, w.translate("bot.register_password_required", nil))
		return
	}
	password := args[0]

	channels, err := w.store.ListChannels(ctx)
	if err != nil {
		w.logger.Error("list channels", "error", err)
		return
	}
	key := strconv.FormatInt(chatID, 10)
	for _, c := range channels {
		if c.ChatID == key {
			w.reply(ctx, chatID, w.translate("bot.register_already_registered", nil))
			return
		}
	}

	if subtle.ConstantTimeCompare([]byte(password), []byte(w.config.Password)) != 1 {
		// No lockout or backoff; the password gates a low-value action.
		w.logger.Warn("registration attempt with wrong password", "chat_id", chatID)
		w.reply(ctx, chatID, w.translate("bot.register_wrong_password", nil))
		return
	}

	err = w.store.AddChannel(ctx, key)
	if errors.Is(err, store.ErrChannelExists) {
		// Lost a race against a concurrent registration of the same chat.
		w.reply(ctx, chatID, w.translate("bot.register_already_registered", nil))
		return
	}
	if err != nil {
		w.logger.Error("add channel", "error", err, "chat_id", chatID)
		return
	}

	w.logger.Info("chat registered", "chat_id", chatID)
	w.reply(ctx, chatID, w.translate("bot.register_success", nil))
}

func (w *Worker) handleStart(ctx context.Context, update *models.Update) {
	if update.Message == nil {
		return
	}
	w.reply(ctx, update.Message.Chat.ID, w.translate("bot.start_tooltip", nil))
}

func (w *Worker) handleHelp(ctx context.Context, update *models.Update) {
	if update.Message == nil {
		return
	}
	w.reply(ctx, update.Message.Chat.ID, w.translate("bot.help_tooltip", nil))
}
