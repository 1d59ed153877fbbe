// Package browse is the terminal browser over stored job postings.
package browse

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobsift/internal/model"
)

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(1, 0, 1, 2)

	itemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	selectedItemStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24")).
				Padding(0, 0, 0, 2)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(14)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

type browseModel struct {
	postings []model.JobPosting
	cursor   int
	view     viewState
	detail   viewport.Model
	width    int
	height   int
	ready    bool
}

// Run opens the posting browser over the given postings, already sorted by
// descending relevance.
func Run(postings []model.JobPosting) error {
	m := browseModel{postings: postings}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detail = viewport.New(msg.Width-4, msg.Height-6)
		m.ready = true
		if m.view == viewDetail {
			m.detail.SetContent(m.renderDetail())
		}
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}
	return m, nil
}

func (m browseModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.postings)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		if len(m.postings) == 0 {
			return m, nil
		}
		m.view = viewDetail
		if m.ready {
			m.detail.SetContent(m.renderDetail())
			m.detail.SetYOffset(0)
		}
		return m, nil
	}
	return m, nil
}

func (m browseModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		if url := m.postings[m.cursor].ApplyURL; url != "" {
			openURL(url)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m browseModel) View() string {
	if m.view == viewDetail && m.ready {
		p := m.postings[m.cursor]
		header := titleStyle.Render(fmt.Sprintf("%s — %s", p.Title, p.Company))
		hint := hintStyle.Render("o open link · esc back · q quit")
		return header + "\n" + m.detail.View() + "\n" + hint
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("JobSift — %d postings", len(m.postings))))
	b.WriteString("\n")

	if len(m.postings) == 0 {
		b.WriteString(itemStyle.Render("nothing stored yet — run a scan first"))
	}

	visible := m.visibleRange()
	for i := visible[0]; i < visible[1]; i++ {
		p := m.postings[i]
		line := fmt.Sprintf("%3.0f%%  %s — %s", p.Relevance*100, p.Title, p.Company)
		sub := p.Location
		if p.Remote {
			sub = "remote · " + sub
		}
		if i == m.cursor {
			b.WriteString(selectedItemStyle.Render("▸ " + line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString("\n")
		b.WriteString(itemStyle.Render(subtitleStyle.Render("     " + sub)))
		b.WriteString("\n")
	}

	b.WriteString(hintStyle.Render("j/k move · enter detail · q quit"))
	return b.String()
}

// visibleRange windows the list to the terminal height (two lines per item).
func (m browseModel) visibleRange() [2]int {
	if !m.ready {
		return [2]int{0, len(m.postings)}
	}
	rows := (m.height - 6) / 2
	if rows < 1 {
		rows = 1
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := start + rows
	if end > len(m.postings) {
		end = len(m.postings)
	}
	return [2]int{start, end}
}

func (m browseModel) renderDetail() string {
	p := m.postings[m.cursor]

	var b strings.Builder
	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label) + value + "\n")
	}

	location := p.Location
	if p.Remote {
		location += " (remote)"
	}
	row("Relevance", fmt.Sprintf("%.0f%%", p.Relevance*100))
	row("Location", location)
	row("Source", p.Source)
	row("Salary", p.Salary)
	row("Apply", p.ApplyURL)
	if p.PostedAt != nil {
		row("Posted", p.PostedAt.Format("2006-01-02"))
	}

	if p.Description != "" {
		b.WriteString("\n" + p.Description + "\n")
	}
	if len(p.Requirements) > 0 {
		b.WriteString("\nRequirements:\n")
		for _, req := range p.Requirements {
			b.WriteString("  • " + req + "\n")
		}
	}
	return b.String()
}

// openURL opens the URL in the OS default browser, best effort.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}
