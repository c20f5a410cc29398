// Package telegram provides a chat command surface for the map view via the
// Telegram Bot API. Commands from the configured chat step the sequence and
// the bot replies with the resulting period and the largest symbols.
//
// Replies use MarkdownV2 and are delivered with retry logic, so a transient
// API failure does not lose the answer to a command.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/symbolmap/internal/logger"
	"github.com/rewired-gh/symbolmap/internal/sequence"
	"github.com/rewired-gh/symbolmap/internal/view"
)

// MapView is the part of *view.View the bot drives.
type MapView interface {
	Forward() (sequence.Transition, view.State)
	Reverse() (sequence.Transition, view.State)
	Jump(i int) (sequence.Transition, view.State)
	State() view.State
}

// botAPI is the subset of *tgbotapi.BotAPI used by the client.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client handles Telegram commands and replies
type Client struct {
	bot            botAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot botAPI, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Run polls for commands until ctx is cancelled. Messages from other chats
// are ignored.
func (c *Client) Run(ctx context.Context, v MapView) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.bot.GetUpdatesChan(u)
	defer c.bot.StopReceivingUpdates()

	logger.Info("Telegram command surface started for chat %d", c.chatID)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Telegram command surface stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.Message
			if msg == nil || msg.Chat == nil || msg.Chat.ID != c.chatID || !msg.IsCommand() {
				continue
			}

			logger.Debug("Telegram command /%s %q", msg.Command(), msg.CommandArguments())
			reply := HandleCommand(v, msg.Command(), msg.CommandArguments())
			if err := c.Send(ctx, reply); err != nil {
				logger.Error("Failed to reply to /%s: %v", msg.Command(), err)
			}
		}
	}
}

// Send sends a MarkdownV2 message to the configured chat
func (c *Client) Send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}
