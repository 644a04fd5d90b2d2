package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/reminderbot/internal/domain"
)

// Confirmation keyboard for a pending reminder
func confirmKeyboard(token string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Yes, add", "confirm:"+token),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel:"+token),
		),
	)
}

// One delete button per reminder
func listKeyboard(rules []*domain.Rule) *tgbotapi.InlineKeyboardMarkup {
	if len(rules) == 0 {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range rules {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 #%d %s", r.ID, truncate(r.Recurrence.Message, 25)),
				fmt.Sprintf("del:%d", r.ID),
			),
		))
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
