package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kharvd/gpt-telegram-bot/internal/worker"
)

type PollOptions struct {
	PollTimeout    time.Duration
	TaskTimeout    time.Duration
	MaxConcurrency int
	// IdleTimeout evicts a chat's worker loop after it has been quiet for
	// this long, so the worker map does not grow for the process lifetime.
	IdleTimeout time.Duration
}

type updateJob struct {
	Update        Update
	CorrelationID string
}

const chatQueueDepth = 16

func normalizePollOptions(opts PollOptions) PollOptions {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 5 * time.Minute
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 10 * time.Minute
	}
	return opts
}

// RunPollLoop long-polls getUpdates until the context is canceled. Updates
// are dispatched to one worker goroutine per chat, so a chat's messages are
// handled in order while distinct chats proceed concurrently under a shared
// semaphore. Handler errors are logged and never crash the loop.
func (b *Bot) RunPollLoop(ctx context.Context, opts PollOptions) error {
	opts = normalizePollOptions(opts)

	var me *User
	var err error
	for {
		me, err = b.api.getMe(ctx)
		if err == nil {
			break
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			b.logger.Info("telegram_stop", "reason", "context_canceled")
			return nil
		}
		b.logger.Warn("telegram_get_me_error", "error", err.Error())
		select {
		case <-ctx.Done():
			b.logger.Info("telegram_stop", "reason", "context_canceled")
			return nil
		case <-time.After(2 * time.Second):
		}
	}

	if err := b.RegisterCommands(ctx); err != nil {
		b.logger.Warn("telegram_set_commands_error", "error", err.Error())
	}

	b.logger.Info("telegram_start",
		"bot_username", me.Username,
		"bot_id", me.ID,
		"poll_timeout", opts.PollTimeout.String(),
		"task_timeout", opts.TaskTimeout.String(),
		"max_concurrency", opts.MaxConcurrency,
		"idle_timeout", opts.IdleTimeout.String(),
	)

	var (
		mu     sync.Mutex
		loops  = make(map[int64]*worker.Loop[updateJob])
		offset int64
	)
	sem := make(chan struct{}, opts.MaxConcurrency)
	workersCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	loopFor := func(chatID int64) *worker.Loop[updateJob] {
		mu.Lock()
		defer mu.Unlock()
		if l, ok := loops[chatID]; ok && !l.Stopped() {
			return l
		}
		var l *worker.Loop[updateJob]
		l = worker.Start(workersCtx, sem, worker.Config{
			Buffer:    chatQueueDepth,
			IdleAfter: opts.IdleTimeout,
			OnStop: func() {
				mu.Lock()
				defer mu.Unlock()
				if loops[chatID] == l {
					delete(loops, chatID)
				}
			},
		}, func(ctx context.Context, job updateJob) {
			b.handleJob(ctx, job, opts.TaskTimeout)
		})
		loops[chatID] = l
		return l
	}

	for {
		updates, next, err := b.api.getUpdates(ctx, offset, opts.PollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				b.logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			}
			if !isTelegramPollTimeoutError(err) {
				b.logger.Warn("telegram_updates_error", "error", err.Error())
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(2 * time.Second):
				}
			}
			continue
		}
		offset = next

		for _, update := range updates {
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			job := updateJob{Update: update, CorrelationID: uuid.NewString()}
			for {
				err := loopFor(update.Message.Chat.ID).Enqueue(ctx, job)
				if errors.Is(err, worker.ErrStopped) {
					// The loop idled out between lookup and enqueue; a fresh
					// one replaces it on the next lookup.
					continue
				}
				if err != nil {
					b.logger.Warn("telegram_enqueue_error",
						"chat_id", update.Message.Chat.ID,
						"correlation_id", job.CorrelationID,
						"error", err.Error(),
					)
				}
				break
			}
		}
	}
}

func (b *Bot) handleJob(ctx context.Context, job updateJob, taskTimeout time.Duration) {
	taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	start := time.Now()
	err := b.HandleUpdate(taskCtx, job.Update)
	if err != nil {
		b.logger.Error("update_handle_error",
			"update_id", job.Update.UpdateID,
			"correlation_id", job.CorrelationID,
			"duration", time.Since(start).String(),
			"error", err.Error(),
		)
		return
	}
	b.logger.Debug("update_handled",
		"update_id", job.Update.UpdateID,
		"correlation_id", job.CorrelationID,
		"duration", time.Since(start).String(),
	)
}
