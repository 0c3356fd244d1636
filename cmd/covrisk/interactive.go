package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/risklab/covrisk/internal/aggregate"
	"github.com/risklab/covrisk/internal/report"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Styles for the TUI.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tuiHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	tuiBorderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))

	failureStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

// resultsModel is the Bubble Tea model for browsing analysis results.
type resultsModel struct {
	results  []aggregate.RepoResult
	viewport viewport.Model
	help     help.Model
	keys     keyMap
	ready    bool
	content  string
}

func newResultsModel(results []aggregate.RepoResult, failures []aggregate.RepoFailure) resultsModel {
	return resultsModel{
		results: results,
		help:    help.New(),
		keys:    defaultKeyMap,
		content: renderResultsContent(results, failures),
	}
}

func renderResultsContent(results []aggregate.RepoResult, failures []aggregate.RepoFailure) string {
	var sb strings.Builder

	totalRows := 0
	hidden := 0
	for _, res := range results {
		totalRows += len(res.Rows)
		hidden += hiddenRiskCount(res.Rows)
	}

	sb.WriteString(titleStyle.Render(
		fmt.Sprintf("covrisk: %d repository(ies), %d function(s), %d hidden risk",
			len(results), totalRows, hidden)))
	sb.WriteString("\n\n")

	styles := report.DefaultStyles()

	for _, res := range results {
		sb.WriteString(tuiHeaderStyle.Render(fmt.Sprintf("=== %s ===", res.Repo)))
		sb.WriteString("\n")
		sb.WriteString(statusStyle.Render(fmt.Sprintf("    %d function(s), %d on shortlist",
			len(res.Rows), len(res.TopK))))
		sb.WriteString("\n")

		if len(res.Rows) == 0 {
			sb.WriteString(statusStyle.Render("    No functions in dataset."))
			sb.WriteString("\n\n")
			continue
		}

		rows := make([][]string, 0, len(res.Rows))
		for _, row := range res.Rows {
			method := row.MethodName
			if len(method) > 28 {
				method = method[:25] + "..."
			}
			rows = append(rows, []string{
				string(row.RiskCategory),
				fmt.Sprintf("%g%% %s", row.CoveragePercent, row.CoverageBucket),
				method,
				row.FilePath,
			})
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(tuiBorderStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return tuiHeaderStyle
				}
				if col == 0 && row >= 0 && row < len(rows) {
					return styles.RiskStyle(rows[row][0])
				}
				return lipgloss.NewStyle()
			}).
			Headers("RISK", "COVERAGE", "FUNCTION", "FILE").
			Rows(rows...)

		sb.WriteString(t.String())
		sb.WriteString("\n\n")
	}

	for _, f := range failures {
		sb.WriteString(failureStyle.Render(fmt.Sprintf("=== %s FAILED ===", f.Repo)))
		sb.WriteString("\n")
		sb.WriteString(statusStyle.Render("    " + f.Err.Error()))
		sb.WriteString("\n\n")
	}

	return sb.String()
}

func (m resultsModel) Init() tea.Cmd {
	return nil
}

func (m resultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 0
		footerHeight := 2
		verticalMargin := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargin)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargin
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m resultsModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := statusStyle.Render(
		fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)) +
		" " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractiveResults launches the Bubble Tea TUI for browsing
// analysis results.
func runInteractiveResults(results []aggregate.RepoResult, failures []aggregate.RepoFailure) error {
	model := newResultsModel(results, failures)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
