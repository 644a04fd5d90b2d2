package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tazhate/reminderbot/config"
	"github.com/tazhate/reminderbot/internal/bot"
	"github.com/tazhate/reminderbot/internal/calendar"
	"github.com/tazhate/reminderbot/internal/domain"
	"github.com/tazhate/reminderbot/internal/parser"
	"github.com/tazhate/reminderbot/internal/scheduler"
	"github.com/tazhate/reminderbot/internal/service"
	"github.com/tazhate/reminderbot/internal/storage"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	root := &cobra.Command{
		Use:           "reminderbot",
		Short:         "Telegram bot for recurring reminders",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "parse <sentence>",
		Short:   "Show how a sentence is understood, without storing it",
		Example: `  reminderbot parse "Every Monday at 10:00 remind me to water the plants"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return parse(cmd, strings.Join(args, " "))
		},
	})

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("reminderbot failed")
	}
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setLogLevel(cfg.LogLevel)

	store, err := storage.Open(cfg.DatabasePath, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	sched := scheduler.New(nil, cfg.Timezone)

	var mirror service.Mirror
	if cfg.CalDAVUsername != "" && cfg.CalDAVPassword != "" {
		mirror = calendar.NewMirror(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar, cfg.Timezone)
		log.Info().Msg("CalDAV mirror enabled")
	}

	reminderSvc := service.NewReminderService(store, sched, mirror, cfg.Timezone)

	tgBot, err := bot.New(cfg, reminderSvc, sched)
	if err != nil {
		return fmt.Errorf("init bot: %w", err)
	}
	sched.SetSender(tgBot)

	if err := tgBot.SetupWebhook(); err != nil {
		return fmt.Errorf("setup webhook: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})

	// no update is handled before every stored reminder has its timer
	n, err := reminderSvc.Recover()
	if err != nil {
		stop()
		g.Wait()
		return fmt.Errorf("startup recovery: %w", err)
	}
	log.Info().Int("reminders", n).Msg("Reminders recovered")

	g.Go(func() error {
		return tgBot.Start(ctx)
	})
	g.Go(func() error {
		return tgBot.Serve(ctx)
	})

	log.Info().Str("tz", cfg.Timezone.String()).Bool("webhook", cfg.UseWebhook()).Msg("reminderbot started")

	err = g.Wait()
	sched.Wait()
	log.Info().Msg("reminderbot stopped")
	return err
}

func parse(cmd *cobra.Command, text string) error {
	rec, err := parser.Parse(text)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Could not understand the reminder. Try formats:")
		for _, ex := range parser.Examples {
			fmt.Fprintln(cmd.ErrOrStderr(), "  -", ex)
		}
		return err
	}

	kind, params, err := domain.EncodeParams(rec.Schedule)
	if err != nil {
		return err
	}
	rrule, err := calendar.RRule(rec.Schedule)
	if err != nil {
		return err
	}
	next, err := scheduler.NextFire(rec.Schedule, time.Now(), time.Local)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "When:    %s\n", rec.Description())
	fmt.Fprintf(out, "Message: %s\n", rec.Message)
	fmt.Fprintf(out, "Kind:    %s %s\n", kind, params)
	fmt.Fprintf(out, "RRULE:   %s\n", rrule)
	fmt.Fprintf(out, "Next:    %s\n", next.Format(time.RFC1123))
	return nil
}
