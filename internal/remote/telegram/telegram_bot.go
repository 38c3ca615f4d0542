package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/minelurk/minelurk/internal/bot"
	"github.com/minelurk/minelurk/internal/event"
)

type Bot struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	manager *bot.SupervisorManager
	logger  *slog.Logger
}

func (b *Bot) Start(ctx context.Context) error {
	offset, err := b.getLatestOffset()
	if err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(offset)
	u.Timeout = 5
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			for range updates {
			}
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil || update.Message.Chat.ID != b.chatID {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(update.Message.Text)) {
			case "/status", "status":
				b.replyStatus()
			}
		}
	}
}

func (b *Bot) replyStatus() {
	var sb strings.Builder
	for name, st := range b.manager.StatusAll() {
		line := fmt.Sprintf("%s: %s", name, st.State)
		if st.Identity != "" {
			line += fmt.Sprintf(" as %s", st.Identity)
		}
		if st.LastError != "" {
			line += fmt.Sprintf(" (last error: %s)", st.LastError)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		sb.WriteString("No profiles configured.")
	}

	msg := tgbotapi.NewMessage(b.chatID, sb.String())
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Error("failed to send Telegram status reply", slog.Any("error", err))
	}
}

// Handle forwards supervisor events to the configured chat as plain text.
func (b *Bot) Handle(_ context.Context, e event.Event) error {
	text := e.Message()
	if sup := e.Supervisor(); sup != "" {
		text = fmt.Sprintf("[%s] %s", sup, text)
	}
	_, err := b.bot.Send(tgbotapi.NewMessage(b.chatID, text))
	return err
}

func (b *Bot) getLatestOffset() (int, error) {
	upds, err := b.bot.GetUpdates(tgbotapi.NewUpdate(-1))
	if err != nil {
		return 0, err
	}
	offset := 0
	if len(upds) > 0 {
		offset = upds[0].UpdateID + 1
	}
	return offset, nil
}
