package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/boostwatch/boostwatch/internal/alerting"
	"github.com/boostwatch/boostwatch/internal/fingerprint"
	"github.com/boostwatch/boostwatch/internal/storage"
)

// FormatAlert renders one decision as a Telegram MarkdownV2 message.
func FormatAlert(d alerting.Decision) string {
	switch d.Action {
	case alerting.ActionRenotify:
		return formatValueAlert("📈 *Boosted odds moved*", d, true)
	case alerting.ActionRemove:
		return formatRemoval(d.Entry)
	default:
		return formatValueAlert("🚀 *Value bet spotted*", d, false)
	}
}

func formatValueAlert(header string, d alerting.Decision, withPrior bool) string {
	q := d.Assessment.Quote

	message := header + "\n\n"
	if q.Sport != "" {
		message += fmt.Sprintf("🏟 %s\n", escapeMarkdownV2(q.Sport))
	}
	message += fmt.Sprintf("*%s*\n", escapeMarkdownV2(q.EventID))
	message += fmt.Sprintf("🎯 %s \\| %s\n", escapeMarkdownV2(q.MarketName), escapeMarkdownV2(q.SelectionName))

	evStr := escapeMarkdownV2(fmt.Sprintf("%+.1f%%", d.Assessment.ExpectedValue*100))
	if withPrior {
		message += fmt.Sprintf("💰 was %s, now *%s* \\(EV %s\\)\n",
			escapeMarkdownV2(formatOdds(d.PreviousOdds)),
			escapeMarkdownV2(formatOdds(q.BoostedOdds)),
			evStr)
	} else {
		message += fmt.Sprintf("💰 %s → *%s* \\(EV %s\\)\n",
			escapeMarkdownV2(formatOdds(q.FairOddsEstimate)),
			escapeMarkdownV2(formatOdds(q.BoostedOdds)),
			evStr)
	}

	message += fmt.Sprintf("🕒 %s\n", escapeMarkdownV2(q.ScrapedAt.Format("2006-01-02 15:04:05")))
	return message
}

func formatRemoval(e *fingerprint.TrackedEntry) string {
	message := "❌ *Promotion removed*\n\n"
	if e.Sport != "" {
		message += fmt.Sprintf("🏟 %s\n", escapeMarkdownV2(e.Sport))
	}
	message += fmt.Sprintf("*%s*\n", escapeMarkdownV2(e.EventID))
	message += fmt.Sprintf("🎯 %s \\| %s\n", escapeMarkdownV2(e.MarketName), escapeMarkdownV2(e.SelectionName))
	message += fmt.Sprintf("💰 last listed at %s\n", escapeMarkdownV2(formatOdds(e.LastOdds)))
	message += fmt.Sprintf("🕒 last seen %s\n", escapeMarkdownV2(e.LastSeenAt.Format("2006-01-02 15:04:05")))
	return message
}

// formatRecentAlerts renders the /recent command reply.
func formatRecentAlerts(alerts []storage.Alert) string {
	if len(alerts) == 0 {
		return "No alerts recorded yet\\."
	}
	message := "🗒 *Recent alerts*\n\n"
	for i, a := range alerts {
		message += fmt.Sprintf("%d\\. %s \\| %s @ %s \\(%s\\)\n",
			i+1,
			escapeMarkdownV2(a.EventID),
			escapeMarkdownV2(a.SelectionName),
			escapeMarkdownV2(formatOdds(a.BoostedOdds)),
			escapeMarkdownV2(a.CreatedAt.Format("01-02 15:04")),
		)
	}
	return message
}

func formatOdds(odds float64) string {
	return strconv.FormatFloat(odds, 'f', 2, 64)
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
