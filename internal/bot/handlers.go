package bot

import (
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tazhate/reminderbot/internal/storage"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !b.cfg.IsAllowedUser(userID) {
		b.reply(chatID, "⛔ Access denied")
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	// plain text is an /add
	b.proposeReminder(userID, chatID, text)
}

// proposeReminder parses text and asks the user to confirm the interpretation
func (b *Bot) proposeReminder(userID, chatID int64, text string) {
	rec, err := b.reminders.Parse(text)
	if err != nil {
		b.reply(chatID, b.reminders.FormatParseFailure())
		return
	}

	token := b.pending.Put(pendingReminder{
		OwnerID:    userID,
		ChannelID:  chatID,
		Recurrence: rec,
		Text:       text,
	})

	log.Debug().Int64("user_id", userID).Int("pending", b.pending.Len()).Msg("Reminder awaiting confirmation")

	if err := b.SendMessageWithKeyboard(chatID, b.reminders.FormatInterpretation(rec), confirmKeyboard(token)); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send confirmation")
	}
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	msgID := callback.Message.MessageID

	if !b.cfg.IsAllowedUser(userID) {
		b.answerCallback(callback.ID, "⛔ Access denied")
		return
	}
	b.answerCallback(callback.ID, "")

	action, arg, _ := strings.Cut(callback.Data, ":")

	switch action {
	case "confirm":
		p, ok := b.pending.Take(arg, userID)
		if !ok {
			b.editMessage(chatID, msgID, "This reminder has already been processed.")
			return
		}

		rule, err := b.reminders.Confirm(p.OwnerID, p.ChannelID, p.Recurrence)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("Failed to add reminder")
			b.editMessage(chatID, msgID, "❌ Could not save the reminder, please try again.")
			return
		}
		b.editMessage(chatID, msgID, "✅ Reminder has been added! ID: "+strconv.FormatInt(rule.ID, 10))

	case "cancel":
		// someone else's tap leaves the proposal open for its owner
		if !b.pending.Discard(arg, userID) {
			return
		}
		b.editMessage(chatID, msgID, "❌ Adding reminder cancelled.")

	case "del":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return
		}
		b.editMessage(chatID, msgID, b.deleteReminder(userID, id))
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		log.Debug().Err(err).Msg("Failed to answer callback")
	}
}

// deleteReminder returns the text to show the user
func (b *Bot) deleteReminder(userID, id int64) string {
	err := b.reminders.Delete(userID, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "No reminder found with that ID."
	case err != nil:
		log.Error().Err(err).Int64("rule_id", id).Msg("Failed to delete reminder")
		return "❌ Could not delete the reminder, please try again."
	default:
		return "Reminder has been deleted."
	}
}
