package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmynk/saferound/internal/calculator"
	"github.com/mmynk/saferound/internal/estimator"
	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/notify"
	"github.com/mmynk/saferound/internal/reaction"
)

var (
	green    = lipgloss.Color("#a6e3a1")
	yellow   = lipgloss.Color("#f9e2af")
	red      = lipgloss.Color("#f38ba8")
	sapphire = lipgloss.Color("#74c7ec")
	subtext  = lipgloss.Color("#a6adc8")
	peach    = lipgloss.Color("#fab387")

	titleStyle  = lipgloss.NewStyle().Foreground(sapphire).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(subtext)
	hotStyle    = lipgloss.NewStyle().Foreground(peach).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(red)
	promptStyle = lipgloss.NewStyle().Foreground(sapphire)

	statusStyles = map[models.BACStatus]lipgloss.Style{
		models.BACStatusGreen:  lipgloss.NewStyle().Foreground(green).Bold(true),
		models.BACStatusYellow: lipgloss.NewStyle().Foreground(yellow).Bold(true),
		models.BACStatusRed:    lipgloss.NewStyle().Foreground(red).Bold(true),
	}
)

func renderBAC(bac float64, status models.BACStatus) string {
	style, ok := statusStyles[status]
	if !ok {
		style = statusStyles[calculator.Classify(bac)]
	}
	return style.Render("BAC "+calculator.FormatBAC(bac)) + "  " + calculator.StatusText(bac)
}

func renderResult(res estimator.Result) string {
	var b strings.Builder
	b.WriteString(renderBAC(res.Reading.Value, res.Status))
	b.WriteString("\n")
	if res.FromOracle {
		b.WriteString(res.Guidance)
	} else {
		b.WriteString(mutedStyle.Render(res.Guidance))
	}
	if res.NotifyGuardian {
		b.WriteString("\n")
		b.WriteString(hotStyle.Render("Consider notifying your group."))
	}
	return b.String()
}

func renderRoster(r models.GroupRoster) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Group " + r.Code))
	if len(r.Members) == 0 {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("no members loaded"))
	}
	for _, m := range r.Members {
		fmt.Fprintf(&b, "\n- %s %s", memberName(m), mutedStyle.Render("("+m.UserID+")"))
	}
	return b.String()
}

func renderGroups(groups []models.GroupSummary) string {
	if len(groups) == 0 {
		return mutedStyle.Render("no groups")
	}
	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("%s  %s  %s", titleStyle.Render(g.Code), g.Name,
			mutedStyle.Render(fmt.Sprintf("%d members, id %s", g.MemberCount, g.GroupID))))
	}
	return strings.Join(lines, "\n")
}

func renderToast(t notify.Toast) string {
	if t.OK {
		return statusStyles[models.BACStatusGreen].Render(t.Message)
	}
	return hotStyle.Render(t.Message)
}

func renderSnapshot(s reaction.Snapshot) string {
	done := len(s.Trials)
	switch {
	case s.State == reaction.Finished:
		var sum int64
		for _, tr := range s.Trials {
			sum += tr.LatencyMs
		}
		avg := float64(sum) / float64(max(done, 1))
		return titleStyle.Render(fmt.Sprintf("Average %.0f ms", avg)) + mutedStyle.Render(" (redo to start over)")
	case s.Pausing:
		return fmt.Sprintf("%d ms  %s", s.ScoreMs, mutedStyle.Render(fmt.Sprintf("trial %d/%d", done, models.ReactionTrialsPerSession)))
	case s.State == reaction.Ready:
		return hotStyle.Render("GO! type react")
	case s.State == reaction.Waiting:
		return mutedStyle.Render("Wait for it...")
	case s.State == reaction.Early:
		return errorStyle.Render("Too early!") + mutedStyle.Render(" type react to try again")
	default:
		return mutedStyle.Render(fmt.Sprintf("Reaction test %d/%d, type react to start", done, models.ReactionTrialsPerSession))
	}
}

func memberName(m models.Member) string {
	if name := strings.TrimSpace(m.Name); name != "" {
		return name
	}
	if name := strings.TrimSpace(m.FirstName + " " + m.LastName); name != "" {
		return name
	}
	return m.UserID
}
