package bot

import (
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tazhate/reminderbot/internal/service"
)

const helpText = `Available commands:

/add <description> - Add a new reminder
/list - Show all your reminders
/delete <id> - Delete a reminder
/export - Download your reminders as an iCalendar file

You can also just send the description without /add.

Example: /add Daily at 07:05 remind me to take my medication`

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.reply(chatID, "Hello! I'm a reminder bot. "+helpText)
	case "help":
		b.reply(chatID, helpText)
	case "add":
		b.cmdAdd(chatID, userID, args)
	case "list":
		b.cmdList(chatID, userID)
	case "delete":
		b.cmdDelete(chatID, userID, args)
	case "export":
		b.cmdExport(chatID, userID)
	default:
		b.reply(chatID, "Unknown command. /help lists the commands")
	}
}

func (b *Bot) cmdAdd(chatID, userID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /add <reminder description>")
		return
	}
	b.proposeReminder(userID, chatID, args)
}

func (b *Bot) cmdList(chatID, userID int64) {
	rules, err := b.reminders.List(userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to list reminders")
		b.reply(chatID, "❌ Could not load your reminders.")
		return
	}

	text := b.reminders.FormatList(rules)
	if kb := listKeyboard(rules); kb != nil {
		if err := b.SendMessageWithKeyboard(chatID, text, *kb); err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send list")
		}
		return
	}
	b.reply(chatID, text)
}

func (b *Bot) cmdDelete(chatID, userID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /delete <id>")
		return
	}

	id, err := strconv.ParseInt(strings.Fields(args)[0], 10, 64)
	if err != nil {
		b.reply(chatID, "ID must be a number.")
		return
	}
	b.reply(chatID, b.deleteReminder(userID, id))
}

func (b *Bot) cmdExport(chatID, userID int64) {
	data, err := b.reminders.Export(userID)
	if errors.Is(err, service.ErrNoReminders) {
		b.reply(chatID, "You don't have any reminders yet.")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to export reminders")
		b.reply(chatID, "❌ Could not export your reminders.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "reminders.ics", Bytes: data})
	doc.Caption = "📅 Your reminders"
	if _, err := b.api.Send(doc); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send export")
	}
}
