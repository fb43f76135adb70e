// Lambda entrypoint for the stateless webhook mode: one invocation processes
// one Telegram update, with sessions persisted in DynamoDB.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/kharvd/gpt-telegram-bot/internal/bot"
	"github.com/kharvd/gpt-telegram-bot/internal/session"
	"github.com/kharvd/gpt-telegram-bot/internal/webhook"
	"github.com/kharvd/gpt-telegram-bot/llm"
	"github.com/kharvd/gpt-telegram-bot/providers/openai"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	handler, err := newHandler(context.Background(), logger)
	if err != nil {
		logger.Error("lambda_init_error", "error", err.Error())
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
		err := handler.HandleEvent(ctx, event.Headers, []byte(event.Body))
		switch {
		case err == nil:
			return events.LambdaFunctionURLResponse{StatusCode: http.StatusOK}, nil
		case errors.Is(err, webhook.ErrUnauthorized):
			return events.LambdaFunctionURLResponse{StatusCode: http.StatusUnauthorized}, nil
		default:
			logger.Error("lambda_handle_error", "error", err.Error())
			return events.LambdaFunctionURLResponse{StatusCode: http.StatusInternalServerError}, nil
		}
	})
}

func newHandler(ctx context.Context, logger *slog.Logger) (*webhook.Handler, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	store := session.NewDynamoStore(
		dynamodb.NewFromConfig(awsCfg),
		strings.TrimSpace(os.Getenv("SESSIONS_TABLE")),
	)

	openaiBaseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	b, err := bot.New(bot.Options{
		Token: strings.TrimSpace(os.Getenv("TELEGRAM_API_TOKEN")),
		Store: store,
		NewLLMClient: func(apiKey string) llm.StreamClient {
			return openai.New(openaiBaseURL, apiKey)
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	return &webhook.Handler{
		Bot:         b,
		SecretToken: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_API_SECRET_TOKEN")),
		Logger:      logger,
	}, nil
}
