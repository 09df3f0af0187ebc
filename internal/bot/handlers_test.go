package bot

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/panel-bom/internal/dialog"
	"github.com/Spok95/panel-bom/internal/domain/bom"
	"github.com/Spok95/panel-bom/internal/refresh"
)

func TestParsePositive(t *testing.T) {
	v, err := parsePositive(" 62,5 ")
	require.NoError(t, err)
	assert.Equal(t, 62.5, v)

	_, err = parsePositive("abc")
	require.Error(t, err)
	_, err = parsePositive("0")
	require.Error(t, err)
	_, err = parsePositive("-3")
	require.Error(t, err)
}

func TestSummary(t *testing.T) {
	p := bom.PanelBOM{
		Items: []bom.LineItem{
			{Type: bom.TypeMPCB, TotalPrice: decimal.RequireFromString("110")},
			{Type: bom.TypeContactor, Missing: true},
		},
		Warnings: []bom.Warning{{Category: "contactor", Message: "no Contactor"}},
	}
	s := summary(p, dialog.Settings{CableLengthM: 50, Voltage: 380})
	assert.Contains(t, s, "Позиций: 2, итого: 110.00")
	assert.Contains(t, s, "Трасса 50 м, 380 В")
	assert.Contains(t, s, "contactor: no Contactor")

	s = summary(bom.PanelBOM{}, dialog.Settings{CableLengthM: 12.5, Voltage: 400})
	assert.NotContains(t, s, "⚠️")
}

func TestMainKeyboard(t *testing.T) {
	kb := mainKeyboard(true)
	require.Len(t, kb.Keyboard, 2)
	assert.Equal(t, btnRefresh, kb.Keyboard[1][0].Text)

	kb = mainKeyboard(false)
	for _, row := range kb.Keyboard {
		for _, btn := range row {
			assert.NotEqual(t, btnRefresh, btn.Text)
		}
	}
}

type refresherStub struct{ running bool }

func (r refresherStub) Start(context.Context) (<-chan refresh.Result, error) {
	return make(chan refresh.Result, 1), nil
}

func (r refresherStub) Running() bool { return r.running }

func TestCanRefresh(t *testing.T) {
	assert.False(t, (&Bot{}).canRefresh(1))

	open := &Bot{refresher: refresherStub{}}
	assert.True(t, open.canRefresh(1))

	admin := &Bot{refresher: refresherStub{}, adminChat: 42}
	assert.True(t, admin.canRefresh(42))
	assert.False(t, admin.canRefresh(1))
}

// fakeTelegram отвечает ok на любой метод Bot API и запоминает имена методов.
type fakeTelegram struct {
	mu      sync.Mutex
	methods []string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	f.mu.Lock()
	f.methods = append(f.methods, method)
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if method == "getMe" {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bom","username":"bom_bot"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
}

func (f *fakeTelegram) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

type statesStub struct {
	mu    sync.Mutex
	calls int
}

func (s *statesStub) touch() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *statesStub) Get(context.Context, int64) (*dialog.Item, error) {
	s.touch()
	return &dialog.Item{}, nil
}

func (s *statesStub) SetState(context.Context, int64, dialog.State) error {
	s.touch()
	return nil
}

func (s *statesStub) SaveSettings(context.Context, int64, dialog.Settings) error {
	s.touch()
	return nil
}

func (s *statesStub) ResetSettings(context.Context, int64) error {
	s.touch()
	return nil
}

func newTestBot(t *testing.T, states StateStore) (*Bot, *fakeTelegram) {
	t.Helper()
	tg := &fakeTelegram{}
	srv := httptest.NewServer(tg)
	t.Cleanup(srv.Close)

	api, err := tgbotapi.NewBotAPIWithClient("test-token", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	log := slog.New(slog.DiscardHandler)
	return New(api, log, states, nil, bom.DefaultUsages(), nil, 0, dialog.Settings{CableLengthM: 50, Voltage: 380}), tg
}

func TestOnCallback_WithoutMessage(t *testing.T) {
	states := &statesStub{}
	b, tg := newTestBot(t, states)

	upd := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb1", Data: "set:reset"}}
	assert.NotPanics(t, func() { b.onCallback(context.Background(), upd) })
	assert.NotPanics(t, func() { b.onCallback(context.Background(), tgbotapi.Update{}) })

	assert.Zero(t, states.calls)
	assert.Contains(t, tg.called(), "answerCallbackQuery")
	assert.NotContains(t, tg.called(), "editMessageText")
}

func TestOnCallback_SetLength(t *testing.T) {
	states := &statesStub{}
	b, tg := newTestBot(t, states)

	upd := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb2",
		Data:    "set:length",
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: 100}},
	}}
	b.onCallback(context.Background(), upd)

	assert.Equal(t, 1, states.calls)
	assert.Contains(t, tg.called(), "editMessageText")
}
