package bot

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// BotClient wraps the Telegram bot operations the worker uses. The interface
// allows mock injection in tests while delegating to the real bot in
// production.
type BotClient interface {
	// SendMessage sends a text message, optionally with an inline keyboard.
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)

	// EditMessageText rewrites a previously sent message in place.
	EditMessageText(ctx context.Context, params *tgbot.EditMessageTextParams) (*models.Message, error)

	// AnswerCallbackQuery acknowledges an inline button press.
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)

	// RegisterHandler registers a handler for a message or callback pattern.
	RegisterHandler(handlerType tgbot.HandlerType, pattern string, matchType tgbot.MatchType, handler tgbot.HandlerFunc)

	// Start begins long polling and blocks until the context is cancelled.
	Start(ctx context.Context)
}

// realBotClient wraps a *tgbot.Bot to implement BotClient.
type realBotClient struct {
	bot *tgbot.Bot
}

func newRealBotClient(b *tgbot.Bot) BotClient {
	return &realBotClient{bot: b}
}

func (r *realBotClient) SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	return r.bot.SendMessage(ctx, params)
}

func (r *realBotClient) EditMessageText(ctx context.Context, params *tgbot.EditMessageTextParams) (*models.Message, error) {
	return r.bot.EditMessageText(ctx, params)
}

func (r *realBotClient) AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error) {
	return r.bot.AnswerCallbackQuery(ctx, params)
}

func (r *realBotClient) RegisterHandler(handlerType tgbot.HandlerType, pattern string, matchType tgbot.MatchType, handler tgbot.HandlerFunc) {
	r.bot.RegisterHandler(handlerType, pattern, matchType, handler)
}

func (r *realBotClient) Start(ctx context.Context) {
	r.bot.Start(ctx)
}
