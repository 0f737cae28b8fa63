package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"wallet-flow/internal/event"
	"wallet-flow/internal/notify"
	"wallet-flow/internal/txflow"
)

var (
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	purple = lipgloss.Color("99")
	dim    = lipgloss.Color("243")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(green)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	accentStyle  = lipgloss.NewStyle().Foreground(purple)
	mutedStyle   = lipgloss.NewStyle().Foreground(dim)
	stateStyle   = lipgloss.NewStyle().Bold(true).Width(12)
)

func styleState(s string) string {
	switch txflow.State(s) {
	case txflow.StateSuccess:
		return stateStyle.Foreground(green).Render(s)
	case txflow.StateError:
		return stateStyle.Foreground(red).Render(s)
	case txflow.StatePending, txflow.StateBroadcasting, txflow.StateSigning:
		return stateStyle.Foreground(yellow).Render(s)
	default:
		return stateStyle.Foreground(purple).Render(s)
	}
}

// renderEvent 一行展示一次状态转移
func renderEvent(e event.TransactionTransitioned) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s -> %s %s",
		mutedStyle.Render(e.FlowID),
		styleState(e.From),
		styleState(e.To),
		accentStyle.Render(e.Event))
	if e.TxHash != "" && txflow.State(e.To) == txflow.StatePending {
		b.WriteString(" " + mutedStyle.Render(e.TxHash))
	}
	if e.Error != "" {
		b.WriteString(" " + errorStyle.Render(e.Error))
	}
	if e.RetryScheduled {
		b.WriteString(" " + warnStyle.Render(fmt.Sprintf("retry #%d in %dms", e.RetryCount, e.RetryInMs)))
	}
	return b.String()
}

func renderNotification(n notify.Notification) string {
	var mark string
	switch n.Priority {
	case notify.PriorityError:
		mark = errorStyle.Render("✗")
	case notify.PriorityWarning:
		mark = warnStyle.Render("!")
	case notify.PrioritySuccess:
		mark = successStyle.Render("✓")
	default:
		mark = accentStyle.Render("●")
	}
	line := mark + " " + n.Message
	if n.Action != nil {
		line += " " + mutedStyle.Render("["+n.Action.Label+"]")
	}
	return line
}
