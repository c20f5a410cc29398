package telegram

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/symbolmap/internal/sequence"
	"github.com/rewired-gh/symbolmap/internal/view"
)

// topSymbols is how many markers a reply lists.
const topSymbols = 5

const helpText = "*Commands*\n" +
	"/forward \\- next period\n" +
	"/reverse \\- previous period\n" +
	"/jump \\<n\\|period\\> \\- go to position n \\(1\\-based\\) or a period label\n" +
	"/state \\- current period and largest symbols"

// HandleCommand runs one chat command against the view and returns the
// MarkdownV2 reply.
func HandleCommand(v MapView, command, args string) string {
	switch command {
	case "forward", "next":
		return formatTransition(v.Forward())
	case "reverse", "back", "prev":
		return formatTransition(v.Reverse())
	case "jump":
		i, err := parseTarget(v.State(), args)
		if err != nil {
			return escapeMarkdownV2(err.Error()) + "\n\n" + helpText
		}
		return formatTransition(v.Jump(i))
	case "state":
		return formatState(v.State())
	case "start", "help":
		return helpText
	default:
		return escapeMarkdownV2(fmt.Sprintf("Unknown command /%s", command)) + "\n\n" + helpText
	}
}

// parseTarget resolves a 1-based position or a period key/label to an index.
// Out-of-range positions are passed through so the controller clamps them.
func parseTarget(s view.State, args string) (int, error) {
	arg := strings.TrimSpace(args)
	if arg == "" {
		return 0, fmt.Errorf("missing target")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		return n - 1, nil
	}
	for i, p := range s.Periods {
		if strings.EqualFold(arg, p.Key) || strings.EqualFold(arg, p.Label) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown period %q", arg)
}

func formatTransition(tr sequence.Transition, s view.State) string {
	var b strings.Builder
	b.WriteString(formatState(s))
	if tr.Clamped {
		b.WriteString("\n_target was out of range and has been clamped_")
	}
	if n := tr.Report.SkippedCount(); n > 0 {
		b.WriteString(escapeMarkdownV2(fmt.Sprintf("\n%d symbols kept their previous size (no data)", n)))
	}
	return b.String()
}

// formatState formats the current period and the largest symbols
func formatState(s view.State) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🗺 *%s* %s\n",
		escapeMarkdownV2(s.Label),
		escapeMarkdownV2(fmt.Sprintf("(%d/%d)", s.Index+1, len(s.Periods)))))
	b.WriteString(escapeMarkdownV2(fmt.Sprintf("%d symbols, %s radius", len(s.Markers), s.Formula)))
	b.WriteString("\n")

	current := make([]int, 0, len(s.Markers))
	for i, m := range s.Markers {
		if m.Attribute == s.Attribute {
			current = append(current, i)
		}
	}
	sort.SliceStable(current, func(a, b int) bool {
		return s.Markers[current[a]].Value > s.Markers[current[b]].Value
	})
	if len(current) > topSymbols {
		current = current[:topSymbols]
	}

	if len(current) > 0 {
		b.WriteString("\n")
	}
	for rank, i := range current {
		m := s.Markers[i]
		b.WriteString(fmt.Sprintf("%d\\. %s: *%s*\n",
			rank+1,
			escapeMarkdownV2(m.Identity),
			escapeMarkdownV2(humanize.Commaf(m.Value))))
	}

	return strings.TrimRight(b.String(), "\n")
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
