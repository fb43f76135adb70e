package bot

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/kharvd/gpt-telegram-bot/internal/coalesce"
	"github.com/kharvd/gpt-telegram-bot/internal/session"
	"github.com/kharvd/gpt-telegram-bot/llm"
)

// ErrMissingCredential aborts the reply flow before the completion adapter
// is called; the user gets the instructional reply instead.
var ErrMissingCredential = errors.New("bot: openai api key not set")

// respond streams a completion for the session history into a single edited
// Telegram message and returns the final reply text. The placeholder message
// is created before streaming begins and stays untouched when the reply
// trims to empty.
func (b *Bot) respond(ctx context.Context, chatID, replyToMessageID int64, sess *session.Session) (string, error) {
	if sess.Credential == "" {
		if err := b.reply(ctx, chatID, missingTokenReply); err != nil {
			return "", err
		}
		return "", ErrMissingCredential
	}

	req, err := requestFromSession(sess)
	if err != nil {
		return "", err
	}

	_ = b.chat.sendChatAction(ctx, chatID, "typing")

	placeholderID, err := b.chat.sendMessage(ctx, chatID, placeholderMessage, replyToMessageID)
	if err != nil {
		return "", err
	}

	client := b.newLLM(sess.Credential)
	stream, err := client.ChatStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer func() { _ = stream.Close() }()

	collector := coalesce.NewCollector(b.threshold, func(ctx context.Context, text string) error {
		return b.chat.editMessageText(ctx, chatID, placeholderID, text)
	})
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if err := collector.Add(ctx, fragment); err != nil {
			return "", err
		}
	}
	return collector.Finish(ctx)
}

// requestFromSession resolves the model/temperature/top_p overrides against
// their defaults and snapshots the history into a completion request.
func requestFromSession(sess *session.Session) (llm.Request, error) {
	req := llm.Request{
		Model:       llm.DefaultModel,
		Temperature: llm.DefaultTemperature,
		TopP:        llm.DefaultTopP,
	}
	if v, ok := sess.Overrides["model"]; ok && v != "" {
		req.Model = v
	}
	if v, ok := sess.Overrides["temperature"]; ok && v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return llm.Request{}, err
		}
		req.Temperature = parsed
	}
	if v, ok := sess.Overrides["top_p"]; ok && v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return llm.Request{}, err
		}
		req.TopP = parsed
	}

	req.Messages = make([]llm.Message, 0, len(sess.History))
	for _, turn := range sess.History {
		req.Messages = append(req.Messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return req, nil
}
