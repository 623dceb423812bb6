package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cohortdash/internal/model"
)

// TelegramNotifier sends run reports as Telegram messages.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier authenticates against the Bot API.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) Send(_ context.Context, report model.RunReport) error {
	msg := tgbotapi.NewMessage(n.chatID, FormatReport(report))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// FormatReport renders a RunReport as a Telegram HTML message.
func FormatReport(report model.RunReport) string {
	var b strings.Builder

	status := "✅"
	if !report.Success {
		status = "❌"
	}
	fmt.Fprintf(&b, "%s <b>%s</b>\n", status, html.EscapeString(report.JobName))
	fmt.Fprintf(&b, "Duration: %dms\n", report.DurationMs)
	fmt.Fprintf(&b, "At: %s\n", html.EscapeString(report.Timestamp))

	d := report.Details
	if d.Error != "" {
		fmt.Fprintf(&b, "\nError: <code>%s</code>\n", html.EscapeString(d.Error))
	}
	if d.NewsletterTitle != "" {
		fmt.Fprintf(&b, "Newsletter: %s\n", html.EscapeString(d.NewsletterTitle))
	}
	if d.NewsletterURL != "" {
		fmt.Fprintf(&b, "URL: %s\n", html.EscapeString(d.NewsletterURL))
	}
	if d.SectionsProcessed > 0 {
		fmt.Fprintf(&b, "Sections: %d\n", d.SectionsProcessed)
	}
	if d.EventCount > 0 {
		fmt.Fprintf(&b, "Events: %d\n", d.EventCount)
	}
	if len(d.Warnings) > 0 {
		b.WriteString("\n⚠️ Warnings:\n")
		for _, w := range d.Warnings {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(w))
		}
	}

	return b.String()
}
