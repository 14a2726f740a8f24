// Package notify delivers standings digests to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/publisher"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the subset of *tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot    Sender
	chatID int64
	logger zerolog.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("username", bot.Self.UserName).Msg("✓ Telegram bot authorized")
	return NewTelegramNotifierWithSender(bot, chatID, logger), nil
}

func NewTelegramNotifierWithSender(bot Sender, chatID int64, logger zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}
}

func (t *TelegramNotifier) SendMessage(text string) error {
	if t.chatID == 0 {
		return fmt.Errorf("chat ID not set")
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error().Err(err).Msg("error sending message")
		return err
	}
	return nil
}

// Publish posts the new table whenever standings change. Other events are
// ignored.
func (t *TelegramNotifier) Publish(_ context.Context, ev publisher.Event) error {
	if ev.Type != publisher.EventStandingsUpdated {
		return nil
	}
	return t.SendMessage(FormatStandings(ev.LeagueID, ev.Period, ev.Standings))
}

var _ publisher.Sink = (*TelegramNotifier)(nil)

// FormatStandings renders a standings table as a Markdown message.
func FormatStandings(leagueName string, through int, entries []league.StandingsEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s standings*", leagueName)
	if through > 0 {
		fmt.Fprintf(&b, " _(through period %d)_", through)
	}
	b.WriteString("\n\n")

	if len(entries) == 0 {
		b.WriteString("No finalized periods yet.")
		return b.String()
	}

	b.WriteString("```\n")
	fmt.Fprintf(&b, "%-3s %-16s %-8s %9s\n", "#", "Team", "W-L-T", "PF")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-3d %-16s %-8s %9s\n",
			e.Rank, truncate(e.TeamID, 16), fmt.Sprintf("%d-%d-%d", e.Wins, e.Losses, e.Ties), e.PointsFor.StringFixed(2))
	}
	b.WriteString("```")
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
