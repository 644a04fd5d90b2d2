package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tazhate/reminderbot/config"
	"github.com/tazhate/reminderbot/internal/metrics"
	"github.com/tazhate/reminderbot/internal/scheduler"
	"github.com/tazhate/reminderbot/internal/service"
)

const webhookPath = "/bot"

// Timers exposes the scheduler's live timers
type Timers interface {
	Entries() ([]scheduler.Entry, error)
}

type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       *config.Config
	reminders *service.ReminderService
	timers    Timers
	pending   *Pending
	updates   chan tgbotapi.Update
	server    *http.Server
}

func New(cfg *config.Config, reminders *service.ReminderService, timers Timers) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")

	bot := &Bot{
		api:       api,
		cfg:       cfg,
		reminders: reminders,
		timers:    timers,
		pending:   NewPending(cfg.PendingMax, cfg.PendingTTL),
		updates:   make(chan tgbotapi.Update, 100),
	}

	// Set bot commands (menu button)
	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "add", Description: "➕ Add a reminder"},
		{Command: "list", Description: "📋 Your reminders"},
		{Command: "delete", Description: "🗑 Delete a reminder"},
		{Command: "export", Description: "📅 Export as iCalendar"},
		{Command: "help", Description: "❓ Help"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Warn().Err(err).Msg("Failed to set commands")
	}
}

// SetupWebhook registers WebhookURL with Telegram, or removes any webhook
// when the bot runs on long polling.
func (b *Bot) SetupWebhook() error {
	if !b.cfg.UseWebhook() {
		if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		return nil
	}

	webhookURL := b.cfg.WebhookURL + webhookPath

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		log.Warn().Str("error", info.LastErrorMessage).Msg("Webhook reported an earlier error")
	}

	log.Info().Str("url", webhookURL).Msg("Webhook set")
	return nil
}

// Handler serves health, metrics, the webhook and the REST API
func (b *Bot) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())

	if b.cfg.UseWebhook() {
		mux.HandleFunc(webhookPath, b.handleWebhook)
	}

	b.setupAPI(mux)
	return mux
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Warn().Err(err).Msg("Bad webhook update")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	select {
	case b.updates <- *update:
	case <-r.Context().Done():
	}
}

// Serve runs the HTTP server until ctx is cancelled
func (b *Bot) Serve(ctx context.Context) error {
	b.server = &http.Server{
		Addr:              ":" + b.cfg.ServerPort,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", b.cfg.ServerPort).Msg("Starting HTTP server")
		if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return b.server.Shutdown(shutdownCtx)
	}
}

// Start consumes updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	var updates <-chan tgbotapi.Update = b.updates
	if !b.cfg.UseWebhook() {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = b.api.GetUpdatesChan(u)
		defer b.api.StopReceivingUpdates()
		log.Info().Msg("Polling for updates")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

// SendMessage delivers plain text; it is the scheduler's delivery sink
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) editMessage(chatID int64, msgID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	if _, err := b.api.Send(edit); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to edit message")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
