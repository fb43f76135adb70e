package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kharvd/gpt-telegram-bot/internal/bot"
	"github.com/kharvd/gpt-telegram-bot/internal/logutil"
	"github.com/kharvd/gpt-telegram-bot/internal/session"
	"github.com/kharvd/gpt-telegram-bot/llm"
	"github.com/kharvd/gpt-telegram-bot/providers/openai"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the long-poll bot loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token (or GPTBOT_TELEGRAM_BOT_TOKEN).")
	cmd.Flags().String("telegram-base-url", "https://api.telegram.org", "Telegram API base URL.")
	cmd.Flags().Duration("poll-timeout", 30*time.Second, "Long-poll timeout for getUpdates.")
	cmd.Flags().Duration("task-timeout", 5*time.Minute, "Per-update handling timeout.")
	cmd.Flags().Int("max-concurrency", 4, "Max updates handled concurrently across chats.")
	cmd.Flags().Duration("idle-timeout", 10*time.Minute, "Evict a chat's worker after this long without updates.")
	cmd.Flags().String("openai-base-url", "", "OpenAI-compatible API base URL (defaults to api.openai.com).")
	cmd.Flags().String("sessions-backend", "memory", "Session store backend: memory|file.")
	cmd.Flags().String("sessions-dir", "", "State directory for the file backend.")
	cmd.Flags().Int("edit-threshold", 0, "Buffered characters required before a streaming message edit.")

	_ = viper.BindPFlag("telegram.bot_token", cmd.Flags().Lookup("telegram-bot-token"))
	_ = viper.BindPFlag("telegram.base_url", cmd.Flags().Lookup("telegram-base-url"))
	_ = viper.BindPFlag("telegram.poll_timeout", cmd.Flags().Lookup("poll-timeout"))
	_ = viper.BindPFlag("telegram.task_timeout", cmd.Flags().Lookup("task-timeout"))
	_ = viper.BindPFlag("telegram.max_concurrency", cmd.Flags().Lookup("max-concurrency"))
	_ = viper.BindPFlag("telegram.idle_timeout", cmd.Flags().Lookup("idle-timeout"))
	_ = viper.BindPFlag("openai.base_url", cmd.Flags().Lookup("openai-base-url"))
	_ = viper.BindPFlag("sessions.backend", cmd.Flags().Lookup("sessions-backend"))
	_ = viper.BindPFlag("sessions.dir", cmd.Flags().Lookup("sessions-dir"))
	_ = viper.BindPFlag("telegram.edit_threshold", cmd.Flags().Lookup("edit-threshold"))

	return cmd
}

func runServe(cmd *cobra.Command) error {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return err
	}

	store, err := sessionStoreFromViper(cmd)
	if err != nil {
		return err
	}

	openaiBaseURL := strings.TrimSpace(viper.GetString("openai.base_url"))
	b, err := bot.New(bot.Options{
		Token:   strings.TrimSpace(viper.GetString("telegram.bot_token")),
		BaseURL: strings.TrimSpace(viper.GetString("telegram.base_url")),
		Store:   store,
		NewLLMClient: func(apiKey string) llm.StreamClient {
			return openai.New(openaiBaseURL, apiKey)
		},
		Logger:        logger,
		EditThreshold: viper.GetInt("telegram.edit_threshold"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return b.RunPollLoop(ctx, bot.PollOptions{
		PollTimeout:    viper.GetDuration("telegram.poll_timeout"),
		TaskTimeout:    viper.GetDuration("telegram.task_timeout"),
		MaxConcurrency: viper.GetInt("telegram.max_concurrency"),
		IdleTimeout:    viper.GetDuration("telegram.idle_timeout"),
	})
}

func sessionStoreFromViper(cmd *cobra.Command) (session.Store, error) {
	backend := strings.ToLower(strings.TrimSpace(viper.GetString("sessions.backend")))
	switch backend {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "file":
		dir := strings.TrimSpace(viper.GetString("sessions.dir"))
		if dir == "" {
			return nil, fmt.Errorf("sessions.backend=file requires sessions.dir")
		}
		store := session.NewFileStore(dir)
		if err := store.Ensure(cmd.Context()); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown sessions.backend: %s", backend)
	}
}
