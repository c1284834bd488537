package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"trade_desk/internal/models"
	"trade_desk/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender — то, что нужно форвардеру от бота. *tgbot.BotAPI подходит как есть.
type Sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

// PositionsFunc отдаёт текущие позиции движка для команды /positions.
type PositionsFunc func() map[string]models.PositionState

// Telegram пересылает важные записи журнала в чат и отвечает на /positions.
type Telegram struct {
	bot       Sender
	api       *tgbot.BotAPI // nil в тестах — тогда команды не слушаем
	chatID    int64
	minSev    models.Severity
	positions PositionsFunc
}

func NewTelegram(token string, chatID int64, minSev models.Severity, positions PositionsFunc) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, api: b, chatID: chatID, minSev: minSev, positions: positions}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Error("[TG] send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

var severityEmoji = map[models.Severity]string{
	models.SeverityInfo:    "ℹ️",
	models.SeveritySuccess: "✅",
	models.SeverityWarning: "⚠️",
	models.SeverityError:   "❗️",
}

// Forward — отправить запись, если она не ниже порога.
func (t *Telegram) Forward(e models.LogEntry) {
	if e.Severity.Rank() < t.minSev.Rank() {
		return
	}
	t.Sendf("%s %s", severityEmoji[e.Severity], e.Message)
}

// Run читает журнал до отмены ctx. Если есть живой бот — ещё и long-polling команд.
func (t *Telegram) Run(ctx context.Context, entries <-chan models.LogEntry) {
	var updates tgbot.UpdatesChannel
	if t.api != nil {
		u := tgbot.NewUpdate(0)
		u.Timeout = 30
		u.AllowedUpdates = []string{"message"}
		updates = t.api.GetUpdatesChan(u)
		defer t.api.StopReceivingUpdates()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			t.Forward(e)
		case upd := <-updates:
			if upd.Message != nil && upd.Message.Chat != nil &&
				upd.Message.Chat.ID == t.chatID && upd.Message.IsCommand() {
				switch upd.Message.Command() {
				case "positions":
					t.Send(t.formatPositions())
				}
			}
		}
	}
}

func (t *Telegram) formatPositions() string {
	if t.positions == nil {
		return "📭 Позиций нет"
	}
	ps := t.positions()
	syms := make([]string, 0, len(ps))
	for s, p := range ps {
		if p.Stance != models.SideNone {
			syms = append(syms, s)
		}
	}
	if len(syms) == 0 {
		return "📭 Открытых позиций нет"
	}
	sort.Strings(syms)

	var b strings.Builder
	b.WriteString("📊 Позиции:\n")
	for _, s := range syms {
		p := ps[s]
		entry := "n/a"
		if p.EntryPrice != nil {
			entry = fmt.Sprintf("%.2f", *p.EntryPrice)
		}
		fmt.Fprintf(&b, "- %s [%s] entry=%s strength=%.0f\n", s, p.Stance, entry, p.SignalStrength)
	}
	return b.String()
}
