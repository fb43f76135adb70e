// Package bot routes inbound Telegram updates to the session store and the
// streaming chat-completion reply flow.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/kharvd/gpt-telegram-bot/internal/session"
	"github.com/kharvd/gpt-telegram-bot/llm"
)

const (
	greetingReply      = "Hi! How can I help you today?"
	clearedReply       = "🗑️ Chat cleared."
	nothingToRerun     = "Nothing to rerun."
	missingTokenReply  = "Please set the OpenAI API key using the /token OPENAI_API_KEY command."
	placeholderMessage = "..."
)

// Commands is the menu registered with Telegram at startup.
var Commands = []BotCommand{
	{Command: "start", Description: "Start the conversation"},
	{Command: "token", Description: "Set OpenAI API token"},
	{Command: "clear", Description: "Clear the conversation"},
	{Command: "rerun", Description: "Rerun the conversation"},
	{Command: "model", Description: "Set the model"},
	{Command: "temp", Description: "Set the temperature"},
	{Command: "top_p", Description: "Set the top_p"},
	{Command: "params", Description: "Show the current parameters"},
}

type chatAPI interface {
	sendMessage(ctx context.Context, chatID int64, text string, replyToMessageID int64) (int64, error)
	editMessageText(ctx context.Context, chatID, messageID int64, text string) error
	sendChatAction(ctx context.Context, chatID int64, action string) error
}

type Options struct {
	// Token is the Telegram bot token.
	Token string
	// BaseURL overrides the Telegram API endpoint (tests).
	BaseURL string
	// HTTPClient is shared by all Telegram calls; a 60s-timeout client is
	// used when nil.
	HTTPClient *http.Client

	Store session.Store
	// NewLLMClient builds a stream client for the per-user credential.
	NewLLMClient func(apiKey string) llm.StreamClient
	Logger       *slog.Logger

	// EditThreshold is the coalescer flush threshold in bytes; the default
	// is coalesce.DefaultThreshold.
	EditThreshold int
}

type Bot struct {
	api       *telegramAPI
	chat      chatAPI
	store     session.Store
	newLLM    func(apiKey string) llm.StreamClient
	logger    *slog.Logger
	threshold int
}

func New(opts Options) (*Bot, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("missing telegram bot token")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("missing session store")
	}
	if opts.NewLLMClient == nil {
		return nil, fmt.Errorf("missing llm client factory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	api := newTelegramAPI(opts.HTTPClient, opts.BaseURL, opts.Token)
	return &Bot{
		api:       api,
		chat:      api,
		store:     opts.Store,
		newLLM:    opts.NewLLMClient,
		logger:    logger,
		threshold: opts.EditThreshold,
	}, nil
}

// RegisterCommands publishes the command menu (the long-poll mode calls this
// once at startup).
func (b *Bot) RegisterCommands(ctx context.Context) error {
	return b.api.setMyCommands(ctx, Commands)
}

// HandleUpdate processes one inbound update: either an administrative
// command or a plain chat message that triggers the streaming reply flow.
// The session is loaded at the start and saved before returning, so state
// survives even when the reply flow fails midway.
func (b *Bot) HandleUpdate(ctx context.Context, update Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" || msg.From.IsBot {
		return nil
	}

	userID := msg.From.ID
	chatID := msg.Chat.ID

	if cmd, arg, ok := parseCommand(text); ok {
		return b.handleCommand(ctx, chatID, msg.MessageID, userID, cmd, arg)
	}
	return b.handleChatMessage(ctx, chatID, msg.MessageID, userID, text)
}

func (b *Bot) handleChatMessage(ctx context.Context, chatID, messageID, userID int64, text string) error {
	sess, err := b.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	sess.History = append(sess.History, session.Turn{Role: llm.RoleUser, Content: text})

	reply, respondErr := b.respond(ctx, chatID, messageID, &sess)
	if respondErr == nil {
		sess.History = append(sess.History, session.Turn{Role: llm.RoleAssistant, Content: reply})
	}
	if err := b.store.Put(ctx, userID, sess); err != nil {
		return err
	}
	return respondErr
}

func (b *Bot) handleCommand(ctx context.Context, chatID, messageID, userID int64, cmd, arg string) error {
	switch cmd {
	case "start":
		return b.reply(ctx, chatID, greetingReply)
	case "token":
		if arg == "" {
			return b.reply(ctx, chatID, "Usage: /token OPENAI_API_KEY")
		}
		return b.mutateSession(ctx, chatID, userID, func(sess *session.Session) string {
			sess.Credential = arg
			return fmt.Sprintf("Set token to %s.", arg)
		})
	case "clear":
		return b.mutateSession(ctx, chatID, userID, func(sess *session.Session) string {
			sess.History = nil
			return clearedReply
		})
	case "rerun":
		return b.handleRerun(ctx, chatID, messageID, userID)
	case "model", "temp", "top_p":
		if arg == "" {
			return b.reply(ctx, chatID, fmt.Sprintf("Usage: /%s VALUE", cmd))
		}
		key := overrideKey(cmd)
		return b.mutateSession(ctx, chatID, userID, func(sess *session.Session) string {
			sess.SetOverride(key, arg)
			return fmt.Sprintf("Set %s to %s. Current overrides: %s", key, arg, formatOverrides(sess.Overrides))
		})
	case "params":
		sess, err := b.store.Get(ctx, userID)
		if err != nil {
			return err
		}
		return b.reply(ctx, chatID, "Current params: "+formatOverrides(sess.Overrides))
	default:
		// Unknown commands are ignored, same as unhandled update kinds.
		return nil
	}
}

func (b *Bot) handleRerun(ctx context.Context, chatID, messageID, userID int64) error {
	sess, err := b.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	sess.PopTrailingAssistantTurns()

	if len(sess.History) == 0 {
		if err := b.store.Put(ctx, userID, sess); err != nil {
			return err
		}
		return b.reply(ctx, chatID, nothingToRerun)
	}

	reply, respondErr := b.respond(ctx, chatID, messageID, &sess)
	if respondErr == nil {
		sess.History = append(sess.History, session.Turn{Role: llm.RoleAssistant, Content: reply})
	}
	if err := b.store.Put(ctx, userID, sess); err != nil {
		return err
	}
	return respondErr
}

// mutateSession loads, mutates, saves, then sends the confirmation produced
// by the mutation.
func (b *Bot) mutateSession(ctx context.Context, chatID, userID int64, fn func(*session.Session) string) error {
	sess, err := b.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	confirmation := fn(&sess)
	if err := b.store.Put(ctx, userID, sess); err != nil {
		return err
	}
	return b.reply(ctx, chatID, confirmation)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) error {
	_, err := b.chat.sendMessage(ctx, chatID, text, 0)
	return err
}

// parseCommand splits "/cmd@BotName arg" into its command name and argument.
func parseCommand(text string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	rest := strings.TrimPrefix(text, "/")
	name, arg, _ := strings.Cut(rest, " ")
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(arg), true
}

// overrideKey maps the short command name to its override mapping key.
func overrideKey(cmd string) string {
	if cmd == "temp" {
		return "temperature"
	}
	return cmd
}

// formatOverrides renders the override mapping in stable key order.
func formatOverrides(overrides map[string]string) string {
	if len(overrides) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+overrides[k])
	}
	return strings.Join(parts, ", ")
}
