// Package telegram sends panel load failure and recovery notifications via the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/electionmap/internal/models"
)

// PanelStatus is the per-panel line of the /status reply.
type PanelStatus struct {
	ID       string
	Title    string
	Totals   models.VoteTotals
	Err      string
	LoadedAt time.Time
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
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

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// /status replies with the panels reported by status. It returns immediately; the goroutine
// stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, status func() []PanelStatus) {
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
					c.handleCommand(update.Message, status)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, status func() []PanelStatus) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "status":
		if status == nil {
			return
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, formatStatus(status(), time.Now()))
		reply.ParseMode = "MarkdownV2"
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
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

// SendError reports a failed panel load.
// Call this only on the first occurrence of a consecutive failure sequence.
func (c *Client) SendError(panelID string, loadErr error) error {
	return c.sendMarkdownV2(formatError(panelID, loadErr))
}

// SendRecovery reports the first successful load after consecutive failures.
func (c *Client) SendRecovery(panelID string, failureCount int) error {
	return c.sendMarkdownV2(formatRecovery(panelID, failureCount))
}

func formatError(panelID string, loadErr error) string {
	kind := models.KindOf(loadErr)
	if kind == "" {
		kind = "unknown"
	}
	return fmt.Sprintf("⚠️ *Panel %s failed to load* \\(%s\\)\n`%s`",
		escapeMarkdownV2(panelID), escapeMarkdownV2(string(kind)), escapeMarkdownV2(loadErr.Error()))
}

func formatRecovery(panelID string, failureCount int) string {
	return fmt.Sprintf("✅ *Panel %s recovered* after %d consecutive failure\\(s\\)",
		escapeMarkdownV2(panelID), failureCount)
}

func formatStatus(panels []PanelStatus, now time.Time) string {
	if len(panels) == 0 {
		return "No panels configured"
	}
	var b strings.Builder
	b.WriteString("📊 *Panels*\n\n")
	for _, p := range panels {
		name := p.Title
		if name == "" {
			name = p.ID
		}
		fmt.Fprintf(&b, "*%s*\n", escapeMarkdownV2(name))
		switch {
		case p.Err != "":
			fmt.Fprintf(&b, "   ⚠️ %s\n", escapeMarkdownV2(p.Err))
		case p.LoadedAt.IsZero():
			b.WriteString("   not loaded yet\n")
		default:
			fmt.Fprintf(&b, "   Harris %d · Trump %d, loaded %s\n",
				p.Totals.Harris, p.Totals.Trump, escapeMarkdownV2(humanize.RelTime(p.LoadedAt, now, "ago", "from now")))
		}
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
