package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/compkgs/pkg/report"
)

// List styles
var (
	listDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	listHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// browseCommand creates the browse command, an interactive view of the last
// stored report.
func (c *CLI) browseCommand() *cobra.Command {
	var (
		file        string
		missingOnly bool
	)

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the components of the last report",
		Long: `Browse the components of the last stored report (or of --report) in the
terminal. Press m to show only components with missing packages and enter to
see a component's packages and requirements.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBrowse(cmd.Context(), file, missingOnly)
		},
	}
	cmd.Flags().StringVar(&file, "report", "", "JSON report file instead of the store")
	cmd.Flags().BoolVarP(&missingOnly, "missing", "m", false, "start with unsupported components only")

	return cmd
}

func (c *CLI) runBrowse(ctx context.Context, file string, missingOnly bool) error {
	var rep *report.Report
	if file != "" {
		var err error
		if rep, err = report.ReadFile(file); err != nil {
			return err
		}
	} else {
		cfg, err := c.loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if rep, err = st.Latest(ctx); err != nil {
			return fmt.Errorf("%w (run '%s generate' first)", err, appName)
		}
	}
	if len(rep.Components) == 0 {
		printInfo("Report %s has no components", rep.RunID)
		return nil
	}

	m := NewBrowseModel(rep)
	if missingOnly {
		m = m.toggleMissing()
	}
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// =============================================================================
// BrowseModel - Interactive report browser
// =============================================================================

// BrowseModel is the bubbletea model for browsing a report.
type BrowseModel struct {
	Report      *report.Report
	Rows        []report.ComponentResult
	MissingOnly bool
	Detail      bool
	Cursor      int
	Height      int
	Offset      int
}

// NewBrowseModel creates a browser showing every component of rep.
func NewBrowseModel(rep *report.Report) BrowseModel {
	return BrowseModel{Report: rep, Rows: rep.Components, Height: 15}
}

func (m BrowseModel) toggleMissing() BrowseModel {
	m.MissingOnly = !m.MissingOnly
	m.Rows = m.Report.Components
	if m.MissingOnly {
		m.Rows = m.Report.Unsupported()
	}
	m.Cursor, m.Offset = 0, 0
	return m
}

// Selected returns the component under the cursor.
func (m BrowseModel) Selected() (report.ComponentResult, bool) {
	if m.Cursor >= len(m.Rows) {
		return report.ComponentResult{}, false
	}
	return m.Rows[m.Cursor], true
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.Detail {
				m.Detail = false
				return m, nil
			}
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "m":
			m = m.toggleMissing()
		case "enter":
			m.Detail = !m.Detail
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m BrowseModel) View() string {
	if m.Detail {
		return m.detailView()
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Home Assistant " + m.Report.Version))
	b.WriteString("  ")
	b.WriteString(listDimStyle.Render(summaryLine(m.Report.Summary)))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  m missing only  q quit"))
	b.WriteString("\n\n")

	if len(m.Rows) == 0 {
		b.WriteString(StyleSuccess.Render("All components are supported"))
		b.WriteString("\n")
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Rows))
	rows := make([][]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		r := m.Rows[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		tested := ""
		if r.Tested {
			tested = "✓"
		}
		missing := strings.Join(r.Missing, " ")
		if missing == "" {
			missing = "—"
		}
		rows = append(rows, []string{cursor, r.Domain, fmt.Sprint(len(r.Attrs)), tested, missing})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Component", "Packages", "Tests", "Missing").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return listHeaderStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Rows) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if idx == m.Cursor {
				base = base.Bold(true)
			}
			if col == 2 || col == 3 {
				return base.Foreground(colorGray)
			}
			if m.Rows[idx].Supported() {
				return base.Foreground(colorGreen)
			}
			return base.Foreground(colorRed)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Rows))))
	return b.String()
}

func (m BrowseModel) detailView() string {
	r, ok := m.Selected()
	if !ok {
		return ""
	}

	var b strings.Builder
	status := StyleSuccess.Render("supported")
	if !r.Supported() {
		status = StyleWarning.Render("missing inputs")
	}
	b.WriteString(StyleTitle.Render(r.Domain) + "  " + status)
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("esc back  q quit"))
	b.WriteString("\n\n")

	section := func(title string, items []string, style lipgloss.Style) {
		if len(items) == 0 {
			return
		}
		b.WriteString(listHeaderStyle.Render(title))
		b.WriteString("\n")
		for _, item := range items {
			b.WriteString("  " + style.Render(item) + "\n")
		}
		b.WriteString("\n")
	}
	section("Packages", r.Attrs, StyleValue)
	section("Extras", r.ExtraAttrs, StyleValue)
	section("Missing", r.Missing, StyleWarning)
	section("Requirements", r.Requirements, listDimStyle)
	return b.String()
}
