package bot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/hotspot/internal/i18n"
	"github.com/haasonsaas/hotspot/internal/store"
)

// fakeBotClient records every transport operation.
type fakeBotClient struct {
	mu       sync.Mutex
	nextID   int
	sent     []*tgbot.SendMessageParams
	edited   []*tgbot.EditMessageTextParams
	answered []string
	sendErr  error
	editErr  error
}

func (f *fakeBotClient) SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, params)
	return &models.Message{ID: f.nextID}, nil
}

func (f *fakeBotClient) EditMessageText(ctx context.Context, params *tgbot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edited = append(f.edited, params)
	return &models.Message{}, nil
}

func (f *fakeBotClient) AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, params.CallbackQueryID)
	return true, nil
}

func (f *fakeBotClient) RegisterHandler(handlerType tgbot.HandlerType, pattern string, matchType tgbot.MatchType, handler tgbot.HandlerFunc) {
}

func (f *fakeBotClient) Start(ctx context.Context) {
	<-ctx.Done()
}

func (f *fakeBotClient) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeAuthorizer records controller calls.
type fakeAuthorizer struct {
	mu    sync.Mutex
	calls []struct {
		mac     string
		minutes int
	}
	err error
}

func (f *fakeAuthorizer) AuthorizeGuest(ctx context.Context, mac string, minutes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, struct {
		mac     string
		minutes int
	}{mac, minutes})
	return f.err
}

func (f *fakeAuthorizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestWorker(t *testing.T) (*Worker, *fakeBotClient, *fakeAuthorizer, store.Store) {
	t.Helper()
	tr, err := i18n.New("en")
	if err != nil {
		t.Fatalf("i18n.New() error = %v", err)
	}
	s := store.NewMemoryStore()
	client := &fakeBotClient{}
	auth := &fakeAuthorizer{}
	w, err := NewWorker(Config{
		Token:         "test-token",
		Password:      "correct-horse",
		AcceptOptions: []int{60, 1440},
		PollInterval:  time.Millisecond,
		Locale:        "en",
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, s, auth, tr, nil)
	if err != nil {
		t.Fatalf("NewWorker() error = %v", err)
	}
	w.client = client
	return w, client, auth, s
}

func textUpdate(chatID int64, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			Text: text,
			Chat: models.Chat{ID: chatID},
		},
	}
}

func callbackUpdate(data string) *models.Update {
	return &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-1",
			Data: data,
			From: models.User{FirstName: "Jane", LastName: "Admin", Username: "jadmin"},
		},
	}
}

func decisionData(t *testing.T, requestID string, minutes int) string {
	t.Helper()
	data, err := json.Marshal(callbackPayload{Duration: strconv.Itoa(minutes), ID: requestID})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return string(data)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Token: "t", Password: "p"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval default = %v", cfg.PollInterval)
	}
	if len(cfg.AcceptOptions) != 4 {
		t.Errorf("AcceptOptions default = %v", cfg.AcceptOptions)
	}

	bad := Config{Token: "t", Password: "p", AcceptOptions: []int{0}}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted non-positive accept option")
	}
	missing := Config{Password: "p"}
	if err := missing.Validate(); err == nil {
		t.Error("Validate() accepted missing token")
	}
}

func TestApproverName(t *testing.T) {
	tests := []struct {
		user models.User
		want string
	}{
		{models.User{FirstName: "Jane", LastName: "Admin", Username: "jadmin"}, "Jane Admin (@jadmin)"},
		{models.User{FirstName: "Jane"}, "Jane"},
		{models.User{FirstName: "Jane", Username: "jadmin"}, "Jane (@jadmin)"},
	}
	for _, tt := range tests {
		if got := approverName(tt.user); got != tt.want {
			t.Errorf("approverName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}
