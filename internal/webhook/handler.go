// Package webhook processes a single Telegram update delivered as an HTTP
// event, for the stateless hosted mode.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kharvd/gpt-telegram-bot/internal/bot"
)

const secretTokenHeader = "x-telegram-bot-api-secret-token"

// ErrUnauthorized reports a missing or mismatched webhook secret token.
var ErrUnauthorized = errors.New("webhook: invalid secret token")

// UpdateHandler is the piece of the bot the webhook needs.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update bot.Update) error
}

type Handler struct {
	Bot UpdateHandler
	// SecretToken must match the x-telegram-bot-api-secret-token header set
	// when the webhook was registered.
	SecretToken string
	Logger      *slog.Logger
}

// HandleEvent verifies the secret token, decodes the update, and runs it
// through the bot. Update-processing errors (a missing credential, an
// upstream failure after the placeholder exists) are logged and swallowed so
// Telegram does not re-deliver an update the bot already acted on; only
// authorization and decode failures propagate to the host runtime.
func (h *Handler) HandleEvent(ctx context.Context, headers map[string]string, body []byte) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if strings.TrimSpace(h.SecretToken) == "" {
		return fmt.Errorf("webhook secret token is not configured")
	}
	if headerValue(headers, secretTokenHeader) != h.SecretToken {
		logger.Error("webhook_invalid_secret_token")
		return ErrUnauthorized
	}

	var update bot.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}

	logger.Info("webhook_update", "update_id", update.UpdateID)
	if err := h.Bot.HandleUpdate(ctx, update); err != nil {
		logger.Error("update_handle_error",
			"update_id", update.UpdateID,
			"error", err.Error(),
		)
	}
	return nil
}

// headerValue looks the header up case-insensitively; API gateways differ in
// the casing they deliver.
func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
