// Package telegram delivers alert notifications via the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/boostwatch/boostwatch/internal/alerting"
	"github.com/boostwatch/boostwatch/internal/storage"
)

// RecentAlerter supplies history rows for the /recent command.
type RecentAlerter interface {
	RecentAlerts(limit int) ([]storage.Alert, error)
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	limiter        *rate.Limiter
	history        RecentAlerter
}

// NewClient creates a new Telegram client. messagesPerMinute paces outbound
// sends below Telegram's flood limits.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, messagesPerMinute int) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

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
	if messagesPerMinute <= 0 {
		messagesPerMinute = 20
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		limiter:        rate.NewLimiter(rate.Limit(float64(messagesPerMinute)/60.0), 1),
	}, nil
}

// AttachHistory wires the alert history consulted by the /recent command.
func (c *Client) AttachHistory(h RecentAlerter) {
	c.history = h
}

// ListenForCommands starts a goroutine that polls for Telegram updates and
// handles bot commands. It returns immediately; the goroutine stops when
// ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "recent":
		text := "No alerts recorded yet\\."
		if c.history != nil {
			if alerts, err := c.history.RecentAlerts(5); err == nil {
				text = formatRecentAlerts(alerts)
			}
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, text)
		reply.ParseMode = "MarkdownV2"
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	_ = c.limiter.Wait(context.Background())

	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendAlert delivers one decision (value bet, odds move, or removal) to the
// configured chat.
func (c *Client) SendAlert(d alerting.Decision) error {
	return c.sendMarkdownV2(FormatAlert(d))
}

// SendError sends a cycle-failure notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Watcher error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Watcher recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendFatal sends a final diagnostic before the process exits. Best effort:
// one attempt, no retries, the process is already on its way out.
func (c *Client) SendFatal(reason error) error {
	msg := tgbotapi.NewMessage(c.chatID, fmt.Sprintf("🛑 *Watcher terminating*\n`%s`", escapeMarkdownV2(reason.Error())))
	msg.ParseMode = "MarkdownV2"
	_, err := c.bot.Send(msg)
	return err
}
