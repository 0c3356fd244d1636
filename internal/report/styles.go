package report

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles defines the visual theme for terminal report output.
// Lipgloss automatically degrades to no-color when output is not a TTY.
type Styles struct {
	// Header is used for section headers (e.g. "=== repo ===").
	Header lipgloss.Style

	// SubHeader is used for secondary information lines.
	SubHeader lipgloss.Style

	// HiddenRisk through SafeZone color-code risk categories.
	HiddenRisk        lipgloss.Style
	RefactorCandidate lipgloss.Style
	LowValue          lipgloss.Style
	SafeZone          lipgloss.Style

	// TableHeader styles the header row of tables.
	TableHeader lipgloss.Style

	// TableCell styles regular table cells.
	TableCell lipgloss.Style

	// SummaryLabel styles summary line labels.
	SummaryLabel lipgloss.Style

	// Pass styles PASS indicators.
	Pass lipgloss.Style

	// Fail styles FAIL indicators and failed repositories.
	Fail lipgloss.Style

	// Border is used for table borders.
	Border lipgloss.Style

	// Muted is used for de-emphasized text.
	Muted lipgloss.Style
}

// DefaultStyles returns the default color scheme for terminal reports.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		SubHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		HiddenRisk:        lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		RefactorCandidate: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		LowValue:          lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		SafeZone:          lipgloss.NewStyle().Foreground(lipgloss.Color("40")),

		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		TableCell:   lipgloss.NewStyle().PaddingRight(1),

		SummaryLabel: lipgloss.NewStyle().Bold(true).Width(20),

		Pass: lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true),
		Fail: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),

		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// RiskStyle returns the style for a risk category string.
func (s Styles) RiskStyle(category string) lipgloss.Style {
	switch category {
	case "Hidden Risk":
		return s.HiddenRisk
	case "Refactor Candidate":
		return s.RefactorCandidate
	case "Low Value":
		return s.LowValue
	case "Safe Zone":
		return s.SafeZone
	default:
		return s.Muted
	}
}
