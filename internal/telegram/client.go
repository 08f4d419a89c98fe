// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tornwatch/tornwatch/internal/alerts"
	"github.com/tornwatch/tornwatch/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
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

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and
// handles bot commands. It returns immediately; the goroutine stops when ctx
// is cancelled.
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

// SendError sends a cycle error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Watch cycle error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Watcher recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendActivity sends a digest of newly detected activity events.
func (c *Client) SendActivity(accountID string, events []models.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Activity* — %s\n\n", escapeMarkdownV2(accountID))
	for _, ev := range events {
		b.WriteString(formatEvent(ev))
		b.WriteByte('\n')
	}
	return c.sendMarkdownV2(b.String())
}

// SendTrades sends inferred buy/sell notifications with profit attribution.
func (c *Client) SendTrades(accountID string, buys []*models.BuyRecord, sells []*models.SellRecord) error {
	if len(buys) == 0 && len(sells) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "💱 *Trades* — %s\n\n", escapeMarkdownV2(accountID))
	for _, buy := range buys {
		fmt.Fprintf(&b, "🛒 Bought %d× %s @ \\$%s \\(\\$%s total, %s\\)\n",
			buy.Qty,
			escapeMarkdownV2(buy.ItemName),
			escapeMarkdownV2(humanize.Comma(buy.UnitPrice)),
			escapeMarkdownV2(humanize.Comma(buy.TotalCost)),
			escapeMarkdownV2(buy.Region))
	}
	for _, sell := range sells {
		if sell.Profit != nil {
			fmt.Fprintf(&b, "💰 Sold %d× item %d for \\$%s net — profit \\$%s\n",
				sell.Qty, sell.ItemID,
				escapeMarkdownV2(humanize.Comma(sell.NetRevenue)),
				escapeMarkdownV2(humanize.Comma(*sell.Profit)))
		} else {
			fmt.Fprintf(&b, "💰 Sold %d× item %d for \\$%s net — no matching buy history\n",
				sell.Qty, sell.ItemID,
				escapeMarkdownV2(humanize.Comma(sell.NetRevenue)))
		}
	}
	return c.sendMarkdownV2(b.String())
}

// SendRestock sends a fired restock trigger.
func (c *Client) SendRestock(trigger alerts.Trigger) error {
	text := fmt.Sprintf("🔔 *Restock* — %s has %d× %s in stock",
		escapeMarkdownV2(trigger.Rule.Country),
		trigger.Stock,
		escapeMarkdownV2(trigger.Rule.ItemName))
	return c.sendMarkdownV2(text)
}

func formatEvent(ev models.ActivityEvent) string {
	switch ev.Type {
	case models.EventEnergyUsed:
		return fmt.Sprintf("⚡ Used %d energy \\(%d left\\)", ev.Delta, ev.Current)
	case models.EventEnergyFull:
		return "⚡ Energy bar full"
	case models.EventNerveUsed:
		return fmt.Sprintf("😤 Used %d nerve \\(%d left\\)", ev.Delta, ev.Current)
	case models.EventCrimeReward:
		return fmt.Sprintf("🦹 Crime paid \\$%s", escapeMarkdownV2(humanize.Comma(ev.Delta)))
	case models.EventTravelDepart:
		return fmt.Sprintf("✈️ Departed for %s", escapeMarkdownV2(ev.Detail))
	case models.EventTravelArrive:
		return fmt.Sprintf("🛬 Arrived in %s", escapeMarkdownV2(ev.Detail))
	case models.EventWalletChange:
		return fmt.Sprintf("💵 Wallet moved \\$%s", escapeMarkdownV2(humanize.Comma(ev.Delta)))
	case models.EventJobPoints:
		return fmt.Sprintf("🏢 \\+%d job points", ev.Delta)
	case models.EventJobChange:
		return fmt.Sprintf("🏢 New job: %s", escapeMarkdownV2(ev.Detail))
	default:
		return escapeMarkdownV2(string(ev.Type))
	}
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
