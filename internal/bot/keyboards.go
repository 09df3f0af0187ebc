package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	btnBuild    = "📄 Рассчитать щит"
	btnSettings = "⚙️ Настройки"
	btnRefresh  = "🔄 Обновить цены"
	btnHelp     = "❓ Помощь"
)

func navKeyboard(cancel bool) tgbotapi.InlineKeyboardMarkup {
	row := []tgbotapi.InlineKeyboardButton{}
	if cancel {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✖️ Отменить", "nav:cancel"))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Длина кабеля", "set:length"),
			tgbotapi.NewInlineKeyboardButtonData("Напряжение", "set:voltage"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Сбросить", "set:reset"),
		),
	)
}

// mainKeyboard Нижняя панель. Кнопки обновления цен нет, пока обновление идёт.
func mainKeyboard(withRefresh bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBuild),
			tgbotapi.NewKeyboardButton(btnSettings),
		),
	}
	second := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnHelp)}
	if withRefresh {
		second = append([]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnRefresh)}, second...)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(second...))

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func (b *Bot) menu(chatID int64) tgbotapi.ReplyKeyboardMarkup {
	return mainKeyboard(b.canRefresh(chatID) && !b.refresher.Running())
}
