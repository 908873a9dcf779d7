// Package tui is a terminal picker over the connection list: filter, pick one
// to connect, or delete.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"conman/internal/models"
)

// Store is the part of the manager the picker needs.
type Store interface {
	List() []models.Connection
	Remove(name string) error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	kindStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	emptyStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))
	confirmPrompt = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// Model is the bubbletea model.
type Model struct {
	store     Store
	all       []models.Connection
	visible   []models.Connection
	cursor    int
	filter    textinput.Model
	filtering bool
	confirm   string
	status    string
	isError   bool
	selected  string
	height    int
}

// New builds a picker over s.
func New(s Store) Model {
	ti := textinput.New()
	ti.Placeholder = "type to filter"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	m := Model{store: s, filter: ti}
	m.reload()
	return m
}

// Selected is the name chosen with enter, "" if the user quit.
func (m Model) Selected() string {
	return m.selected
}

func (m *Model) reload() {
	m.all = m.store.List()
	m.applyFilter()
}

func (m *Model) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = lo.Filter(m.all, func(c models.Connection, _ int) bool {
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Address()), q) ||
			strings.Contains(string(c.Kind()), q)
	})
	if m.cursor >= len(m.visible) {
		m.cursor = max(0, len(m.visible)-1)
	}
}

func (m Model) current() (models.Connection, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return models.Connection{}, false
	}
	return m.visible[m.cursor], true
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if m.confirm != "" {
			return m.updateConfirm(msg)
		}
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status, m.isError = "", false
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(0, len(m.visible)-1)
	case "/":
		m.filtering = true
		m.filter.Focus()
		return m, textinput.Blink
	case "enter":
		c, ok := m.current()
		if !ok {
			m.status, m.isError = "Please select a connection.", true
			return m, nil
		}
		m.selected = c.Name
		return m, tea.Quit
	case "d", "delete":
		c, ok := m.current()
		if !ok {
			m.status, m.isError = "Please select a connection to remove.", true
			return m, nil
		}
		m.confirm = c.Name
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	name := m.confirm
	m.confirm = ""
	if msg.String() != "y" {
		m.status = "Kept " + name
		return m, nil
	}
	if err := m.store.Remove(name); err != nil {
		m.status, m.isError = err.Error(), true
		return m, nil
	}
	m.status = "Removed " + name
	m.reload()
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Connections"))
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		if len(m.all) == 0 {
			b.WriteString(emptyStyle.Render("  no connections yet; add one with `conman add`"))
		} else {
			b.WriteString(emptyStyle.Render("  nothing matches the filter"))
		}
		b.WriteString("\n")
	}
	start, end := m.window()
	for i := start; i < end; i++ {
		c := m.visible[i]
		line := fmt.Sprintf("%s %s", c.Name, kindStyle.Render("("+string(c.Kind())+")"))
		if addr := c.Address(); addr != "" {
			line += kindStyle.Render("  " + addr)
		}
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.confirm != "":
		b.WriteString(confirmPrompt.Render(fmt.Sprintf("Remove %s? (y/n)", m.confirm)))
	case m.filtering || m.filter.Value() != "":
		b.WriteString(m.filter.View())
	case m.status != "" && m.isError:
		b.WriteString(errorStyle.Render(m.status))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	default:
		b.WriteString(helpStyle.Render("enter connect · / filter · d delete · q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

// window returns the slice of rows that fit the terminal around the cursor.
func (m Model) window() (int, int) {
	rows := len(m.visible)
	if m.height <= 6 || rows <= m.height-6 {
		return 0, rows
	}
	size := m.height - 6
	start := m.cursor - size/2
	start = max(0, min(start, rows-size))
	return start, start + size
}

// Run shows the picker and returns the chosen name, "" when the user quit.
func Run(s Store, opts ...tea.ProgramOption) (string, error) {
	final, err := tea.NewProgram(New(s), opts...).Run()
	if err != nil {
		return "", err
	}
	return final.(Model).Selected(), nil
}
