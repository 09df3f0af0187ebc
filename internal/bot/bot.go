package bot

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/panel-bom/internal/dialog"
	"github.com/Spok95/panel-bom/internal/domain/bom"
	"github.com/Spok95/panel-bom/internal/refresh"
)

type StateStore interface {
	Get(ctx context.Context, chatID int64) (*dialog.Item, error)
	SetState(ctx context.Context, chatID int64, state dialog.State) error
	SaveSettings(ctx context.Context, chatID int64, s dialog.Settings) error
	ResetSettings(ctx context.Context, chatID int64) error
}

type BOMBuilder interface {
	BuildTransportPanel(ctx context.Context, motors []bom.MotorQty, cableLengthM, voltage float64) (bom.PanelBOM, error)
}

type Refresher interface {
	Start(ctx context.Context) (<-chan refresh.Result, error)
	Running() bool
}

type Bot struct {
	api       *tgbotapi.BotAPI
	log       *slog.Logger
	states    StateStore
	builder   BOMBuilder
	usages    bom.Usages
	refresher Refresher
	adminChat int64
	defaults  dialog.Settings
	files     *http.Client
}

func New(api *tgbotapi.BotAPI, log *slog.Logger,
	statesRepo StateStore, builder BOMBuilder, usages bom.Usages,
	refresher Refresher, adminChatID int64, defaults dialog.Settings) *Bot {

	return &Bot{
		api: api, log: log, states: statesRepo,
		builder: builder, usages: usages,
		refresher: refresher, adminChat: adminChatID,
		defaults: defaults,
		files:    &http.Client{Timeout: time.Minute},
	}
}

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				b.onMessage(ctx, upd)
			} else if upd.CallbackQuery != nil {
				b.onCallback(ctx, upd)
			}
		}
	}
}

// canRefresh: обновлять цены может только админский чат, если он задан.
func (b *Bot) canRefresh(chatID int64) bool {
	return b.refresher != nil && (b.adminChat == 0 || b.adminChat == chatID)
}
