package tui

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bassamadnan/xmail/mailapi"
)

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	if maxLen < 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// formatMailDate shortens an RFC 5322 date for the list. Dates the parser
// does not understand are shown verbatim.
func formatMailDate(date string, now time.Time) string {
	if date == "" {
		return "???"
	}
	t, err := mail.ParseDate(date)
	if err != nil {
		return date
	}
	t = t.In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("Jan02")
}

// shortSender drops the address part of "Name <addr>".
func shortSender(from string) string {
	if idx := strings.Index(from, "<"); idx > 0 {
		return strings.TrimSpace(from[:idx])
	}
	return from
}

// formatMailListItem renders one summary as a four line box. textWidth is
// the width of the text between the vertical bars.
func formatMailListItem(s mailapi.Summary, isSelected bool, textWidth int, now time.Time) string {
	boxCharStyle, subjectStyle, secondaryTextStyle := NormalBoxCharStyle, NormalSubjectStyle, NormalSecondaryTextStyle
	itemBlockStyle := MailListItemStyle
	if isSelected {
		boxCharStyle, subjectStyle, secondaryTextStyle = SelectedBoxCharStyle, SelectedSubjectStyle, SelectedSecondaryTextStyle
		itemBlockStyle = SelectedMailListItemStyle
	}

	subject := s.Subject
	if subject == "" {
		subject = "(No Subject)"
	}
	subjectText := pad(truncate(subject, textWidth), textWidth)

	from := shortSender(s.From)
	if from == "" {
		from = "(Unknown Sender)"
	}
	from = "from: " + from
	dateStr := formatMailDate(s.Date, now)

	maxFromLen := textWidth - lipgloss.Width(dateStr) - 1
	var secondary string
	if maxFromLen < 1 {
		secondary = truncate(dateStr, textWidth)
	} else {
		secondary = fmt.Sprintf("%s %s", truncate(from, maxFromLen), dateStr)
	}
	secondaryText := pad(truncate(secondary, textWidth), textWidth)

	horizontalBar := strings.Repeat(BoxHorizontal, textWidth+2)
	lines := []string{
		boxCharStyle.Render(BoxTopLeft + horizontalBar + BoxTopRight),
		boxCharStyle.Render(BoxVertical) + " " + subjectStyle.Render(subjectText) + " " + boxCharStyle.Render(BoxVertical),
		boxCharStyle.Render(BoxVertical) + " " + secondaryTextStyle.Render(secondaryText) + " " + boxCharStyle.Render(BoxVertical),
		boxCharStyle.Render(BoxBottomLeft + horizontalBar + BoxBottomRight),
	}
	return itemBlockStyle.Render(strings.Join(lines, "\n"))
}

func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
