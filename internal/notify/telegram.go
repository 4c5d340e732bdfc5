package notify

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sprachlab/sprachlab/internal/progress"
)

// sender is the Telegram API surface the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier pushes progress digests to Telegram chats.
type Notifier struct {
	api    sender
	logger *slog.Logger
}

func NewNotifier(token string, logger *slog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return &Notifier{api: api, logger: logger}, nil
}

func newNotifierWithSender(api sender, logger *slog.Logger) *Notifier {
	return &Notifier{api: api, logger: logger}
}

// SendDigest formats a dashboard as a daily digest message.
func (n *Notifier) SendDigest(chatID int64, d progress.Dashboard) error {
	msg := tgbotapi.NewMessage(chatID, formatDigest(d))
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("sending digest to chat %d: %w", chatID, err)
	}
	return nil
}

func formatDigest(d progress.Dashboard) string {
	var b strings.Builder
	b.WriteString("*Dein Lernstand*\n\n")
	fmt.Fprintf(&b, "Prüfungsbereitschaft: *%d/100*\n", d.PrepScore)
	if d.StreakDays > 0 {
		fmt.Fprintf(&b, "Lernserie: *%d* Tage\n", d.StreakDays)
	}
	fmt.Fprintf(&b, "Wortschatz: %d gelernt, %d gemeistert\n", d.VocabTotal, d.VocabMastered)

	if len(d.SkillAverages) > 0 {
		b.WriteString("\n")
		skills := make([]string, 0, len(d.SkillAverages))
		for skill := range d.SkillAverages {
			skills = append(skills, skill)
		}
		sort.Strings(skills)
		for _, skill := range skills {
			fmt.Fprintf(&b, "%s: %.0f%%\n", skillLabel(skill), d.SkillAverages[skill])
		}
	}

	if len(d.GrammarSummary) > 0 {
		fmt.Fprintf(&b, "\nHäufigste Fehlerkategorie: %s (%d)\n",
			d.GrammarSummary[0].Category, d.GrammarSummary[0].Count)
	}
	return b.String()
}

func skillLabel(skill string) string {
	switch skill {
	case "listening":
		return "Hören"
	case "reading":
		return "Lesen"
	case "writing":
		return "Schreiben"
	case "speaking":
		return "Sprechen"
	}
	return skill
}
