package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/panel-bom/internal/dialog"
	"github.com/Spok95/panel-bom/internal/domain/bom"
	"github.com/Spok95/panel-bom/internal/refresh"
	"github.com/Spok95/panel-bom/internal/report"
)

const maxMotorFileSize = 5 << 20

func (b *Bot) onMessage(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	chatID := msg.Chat.ID

	if msg.Document != nil {
		b.handleMotorFile(ctx, chatID, msg.Document)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case msg.IsCommand() && msg.Command() == "start", msg.IsCommand() && msg.Command() == "help", text == btnHelp:
		b.setState(ctx, chatID, dialog.StateIdle)
		b.reply(chatID, b.helpText())
		return
	case msg.IsCommand() && msg.Command() == "settings", text == btnSettings:
		b.showSettings(ctx, chatID)
		return
	case msg.IsCommand() && msg.Command() == "refresh", text == btnRefresh:
		b.startRefresh(ctx, chatID)
		return
	case msg.IsCommand() && msg.Command() == "bom", text == btnBuild:
		b.askMotorFile(ctx, chatID)
		return
	}

	st, err := b.states.Get(ctx, chatID)
	if err != nil {
		b.log.Error("get state failed", "chat_id", chatID, "err", err)
		b.reply(chatID, "Не удалось прочитать состояние, попробуйте ещё раз.")
		return
	}
	switch st.State {
	case dialog.StateAwaitLength, dialog.StateAwaitVoltage:
		b.handleSettingInput(ctx, chatID, st, text)
	case dialog.StateAwaitMotorFile:
		b.reply(chatID, "Жду Excel-файл со списком двигателей (колонки usage, power_kw, qty).")
	default:
		b.reply(chatID, "Не понял. "+b.helpText())
	}
}

func (b *Bot) onCallback(ctx context.Context, upd tgbotapi.Update) {
	cb := upd.CallbackQuery
	if cb == nil {
		return
	}
	b.ack(cb)
	// кнопка под сообщением inline-режима или слишком старым сообщением: чата нет
	if cb.Message == nil || cb.Message.Chat == nil {
		b.log.Debug("callback without message", "data", cb.Data)
		return
	}
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	switch cb.Data {
	case "set:length":
		b.setState(ctx, chatID, dialog.StateAwaitLength)
		b.replaceInline(chatID, msgID, "Введите длину кабельной трассы, м:")
	case "set:voltage":
		b.setState(ctx, chatID, dialog.StateAwaitVoltage)
		b.replaceInline(chatID, msgID, "Введите напряжение сети, В:")
	case "set:reset":
		if err := b.states.ResetSettings(ctx, chatID); err != nil {
			b.log.Error("reset settings failed", "chat_id", chatID, "err", err)
		}
		b.replaceInline(chatID, msgID, settingsText(b.defaults))
	case "nav:cancel":
		b.setState(ctx, chatID, dialog.StateIdle)
		b.replaceInline(chatID, msgID, "Отменено.")
	default:
		b.log.Debug("unknown callback", "data", cb.Data)
	}
}

func (b *Bot) helpText() string {
	return "Бот считает спецификацию щита управления транспортным оборудованием.\n\n" +
		"1. «" + btnBuild + "» пришлёт шаблон Excel.\n" +
		"2. Заполните usage, power_kw, qty и отправьте файл обратно.\n" +
		"3. В ответ придёт спецификация с ценами.\n\n" +
		"Назначения: " + strings.Join(b.usages.Names(), ", ") + "\n" +
		"/settings: длина трассы и напряжение, /refresh: обновить цены."
}

func (b *Bot) setState(ctx context.Context, chatID int64, st dialog.State) {
	if err := b.states.SetState(ctx, chatID, st); err != nil {
		b.log.Error("set state failed", "chat_id", chatID, "state", st, "err", err)
	}
}

func (b *Bot) settings(ctx context.Context, chatID int64) dialog.Settings {
	st, err := b.states.Get(ctx, chatID)
	if err != nil {
		b.log.Error("get state failed", "chat_id", chatID, "err", err)
		return b.defaults
	}
	return st.Settings(b.defaults)
}

func settingsText(s dialog.Settings) string {
	return fmt.Sprintf("Текущие настройки:\nдлина трассы: %s м\nнапряжение: %s В",
		strconv.FormatFloat(s.CableLengthM, 'f', -1, 64),
		strconv.FormatFloat(s.Voltage, 'f', -1, 64))
}

func (b *Bot) showSettings(ctx context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, settingsText(b.settings(ctx, chatID)))
	msg.ReplyMarkup = settingsKeyboard()
	b.send(msg)
}

// parsePositive принимает число с точкой или запятой, строго больше нуля.
func parsePositive(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("%q не число", text)
	}
	if v <= 0 {
		return 0, errors.New("значение должно быть больше нуля")
	}
	return v, nil
}

func (b *Bot) handleSettingInput(ctx context.Context, chatID int64, st *dialog.Item, text string) {
	v, err := parsePositive(text)
	if err != nil {
		msg := tgbotapi.NewMessage(chatID, "Ошибка: "+err.Error()+". Введите ещё раз.")
		msg.ReplyMarkup = navKeyboard(true)
		b.send(msg)
		return
	}
	s := st.Settings(b.defaults)
	if st.State == dialog.StateAwaitLength {
		s.CableLengthM = v
	} else {
		s.Voltage = v
	}
	if err := b.states.SaveSettings(ctx, chatID, s); err != nil {
		b.log.Error("save settings failed", "chat_id", chatID, "err", err)
		b.reply(chatID, "Не удалось сохранить настройки.")
		return
	}
	b.reply(chatID, "Сохранено.\n"+settingsText(s))
}

func (b *Bot) askMotorFile(ctx context.Context, chatID int64) {
	b.setState(ctx, chatID, dialog.StateAwaitMotorFile)

	var buf bytes.Buffer
	if err := report.MotorTemplate(&buf, b.usages); err != nil {
		b.log.Error("motor template failed", "err", err)
		b.reply(chatID, "Ошибка формирования шаблона.")
		return
	}
	b.sendXLSX(chatID, "motors.xlsx", buf.Bytes(),
		"Заполните power_kw и qty для нужных назначений и отправьте файл обратно. "+
			settingsText(b.settings(ctx, chatID)))
}

func (b *Bot) handleMotorFile(ctx context.Context, chatID int64, doc *tgbotapi.Document) {
	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".xlsx") {
		b.reply(chatID, "Нужен файл .xlsx.")
		return
	}
	if doc.FileSize > maxMotorFileSize {
		b.reply(chatID, "Файл слишком большой.")
		return
	}
	data, err := b.fetchDocument(ctx, doc.FileID, maxMotorFileSize)
	if errors.Is(err, errFileTooLarge) {
		b.reply(chatID, "Файл слишком большой.")
		return
	}
	if err != nil {
		b.log.Error("download failed", "chat_id", chatID, "err", err)
		b.reply(chatID, "Не удалось скачать файл.")
		return
	}

	motors, err := report.ReadMotors(bytes.NewReader(data), b.usages)
	if err != nil {
		b.reply(chatID, "Ошибка в файле: "+err.Error())
		return
	}

	s := b.settings(ctx, chatID)
	panel, err := b.builder.BuildTransportPanel(ctx, motors, s.CableLengthM, s.Voltage)
	if err != nil {
		b.log.Error("build bom failed", "chat_id", chatID, "err", err)
		b.reply(chatID, "Не удалось рассчитать щит: "+err.Error())
		return
	}

	var buf bytes.Buffer
	if err := report.WriteBOM(&buf, panel); err != nil {
		b.log.Error("write bom failed", "err", err)
		b.reply(chatID, "Ошибка записи файла.")
		return
	}
	b.sendXLSX(chatID, fmt.Sprintf("panel_bom_%s.xlsx", time.Now().Format("20060102_150405")),
		buf.Bytes(), summary(panel, s))
	b.setState(ctx, chatID, dialog.StateIdle)
}

func summary(p bom.PanelBOM, s dialog.Settings) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Позиций: %d, итого: %s\n", len(p.Items), p.Total().StringFixed(2))
	fmt.Fprintf(&sb, "Трасса %s м, %s В",
		strconv.FormatFloat(s.CableLengthM, 'f', -1, 64),
		strconv.FormatFloat(s.Voltage, 'f', -1, 64))
	if len(p.Warnings) > 0 {
		fmt.Fprintf(&sb, "\n⚠️ Не подобрано: %d", len(p.Warnings))
		for _, w := range p.Warnings {
			fmt.Fprintf(&sb, "\n• %s: %s", w.Category, w.Message)
		}
	}
	return sb.String()
}

// startRefresh запускает обновление цен. Кнопка пропадает до прихода
// результата, результат сообщается один раз.
func (b *Bot) startRefresh(ctx context.Context, chatID int64) {
	if !b.canRefresh(chatID) {
		b.reply(chatID, "Обновление цен недоступно.")
		return
	}
	ch, err := b.refresher.Start(ctx)
	if errors.Is(err, refresh.ErrInFlight) {
		b.reply(chatID, "Обновление цен уже идёт.")
		return
	}
	if err != nil {
		b.log.Error("refresh start failed", "err", err)
		b.reply(chatID, "Не удалось запустить обновление цен.")
		return
	}
	b.reply(chatID, "Обновление цен запущено.")

	go func() {
		res, ok := <-ch
		if !ok {
			return
		}
		if res.Err != nil {
			b.reply(chatID, "Обновление цен не удалось: "+res.Err.Error())
			return
		}
		b.reply(chatID, fmt.Sprintf("Цены обновлены: %d позиций.", res.Merged))
	}()
}
