package dispatch

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"showcheck/group"
)

// telegramAPI is the subset of the bot API used here.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts the batch as an HTML message to one chat.
type Telegram struct {
	api    telegramAPI
	chatID int64
}

// NewTelegram creates a Telegram channel authenticated with token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

// Name identifies the channel in logs.
func (*Telegram) Name() string {
	return "telegram"
}

// Send posts one message listing every card.
func (t *Telegram) Send(_ context.Context, cards []group.Card) error {
	if len(cards) == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(t.chatID, formatTelegram(cards))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func formatTelegram(cards []group.Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%d new show(s) available</b>\n", len(cards))
	for _, c := range cards {
		b.WriteString("\n")
		fmt.Fprintf(&b, "[%s] <b>%s</b>", html.EscapeString(string(c.Source)), html.EscapeString(c.Name))
		if c.Rare {
			b.WriteString(" ⭐ rare")
		}
		b.WriteString("\n")
		for _, s := range c.Slots {
			label := s.Date.String()
			if s.Time != "" {
				label += " " + s.Time
			}
			if s.Link != "" {
				fmt.Fprintf(&b, "• <a href=\"%s\">%s</a>\n", html.EscapeString(s.Link), html.EscapeString(label))
			} else {
				fmt.Fprintf(&b, "• %s\n", html.EscapeString(label))
			}
		}
	}
	return b.String()
}
