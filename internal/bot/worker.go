// Package bot runs the Telegram side of the approval pipeline: chat
// registration, the fan-out loop broadcasting new requests to registered
// chats, and the decision handler applying an approver's choice.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/hotspot/internal/i18n"
	"github.com/haasonsaas/hotspot/internal/observability"
	"github.com/haasonsaas/hotspot/internal/store"
	"github.com/haasonsaas/hotspot/internal/unifi"
)

// denyDuration is the sentinel carried in the deny button's callback payload.
const denyDuration = -1

// Config holds configuration for the Telegram worker.
type Config struct {
	// Token is the bot token from @BotFather (required).
	Token string

	// Password is the shared secret checked by /register (required).
	Password string

	// AcceptOptions are the grant durations (minutes) offered as buttons.
	AcceptOptions []int

	// PollInterval is the fan-out loop tick interval.
	PollInterval time.Duration

	// Locale used for all bot messages.
	Locale string

	// Logger is an optional slog.Logger instance.
	Logger *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if c.Password == "" {
		return fmt.Errorf("registration password is required")
	}
	for _, opt := range c.AcceptOptions {
		if opt <= 0 {
			return fmt.Errorf("accept option %d is not a positive minute count", opt)
		}
	}
	if len(c.AcceptOptions) == 0 {
		c.AcceptOptions = []int{60, 1440, 4320, 10080}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.Locale == "" {
		c.Locale = i18n.FallbackLocale
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Worker is the Telegram approval worker. It shares state with the portal
// only through the store.
type Worker struct {
	config     Config
	client     BotClient
	store      store.Store
	authorizer unifi.Authorizer
	translator *i18n.Translator
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewWorker creates a worker that connects to Telegram on Run.
func NewWorker(config Config, st store.Store, authorizer unifi.Authorizer, translator *i18n.Translator, metrics *observability.Metrics) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	return &Worker{
		config:     config,
		store:      st,
		authorizer: authorizer,
		translator: translator,
		metrics:    metrics,
		logger:     config.Logger.With("component", "bot"),
	}, nil
}

// Run connects to Telegram, registers all handlers, starts the fan-out loop
// and blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.client == nil {
		b, err := tgbot.New(w.config.Token)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		w.client = newRealBotClient(b)
	}

	w.client.RegisterHandler(tgbot.HandlerTypeMessageText, "/register", tgbot.MatchTypePrefix, w.wrap(w.handleRegister))
	w.client.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypePrefix, w.wrap(w.handleStart))
	w.client.RegisterHandler(tgbot.HandlerTypeMessageText, "/help", tgbot.MatchTypePrefix, w.wrap(w.handleHelp))
	w.client.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, "", tgbot.MatchTypePrefix, w.wrap(w.handleDecision))

	go w.runDispatcher(ctx)

	w.logger.Info("telegram worker started", "poll_interval", w.config.PollInterval)
	w.client.Start(ctx)
	return nil
}

// wrap adapts a worker method to the bot library's handler signature. Handlers
// go through the injected client, never the raw bot, so tests can drive them
// directly.
func (w *Worker) wrap(handler func(ctx context.Context, update *models.Update)) tgbot.HandlerFunc {
	return func(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
		handler(ctx, update)
	}
}

func (w *Worker) translate(key string, args map[string]string) string {
	return w.translator.Translate(w.config.Locale, key, args)
}

func (w *Worker) reply(ctx context.Context, chatID int64, text string) {
	if _, err := w.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		w.logger.Error("send reply", "error", err, "chat_id", chatID)
		if w.metrics != nil {
			w.metrics.TransportErrors.Inc()
		}
	}
}

// approverName composes a display identity from the Telegram user's first
// name, last name and username.
func approverName(user models.User) string {
	var b strings.Builder
	b.WriteString(user.FirstName)
	if user.LastName != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(user.LastName)
	}
	if user.Username != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("(@" + user.Username + ")")
	}
	return b.String()
}
