// Package tui implements the Bubble Tea review interface over a session
// store.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/crdash/internal/analysis"
	"github.com/sprite-ai/crdash/internal/diff"
	"github.com/sprite-ai/crdash/internal/model"
	"github.com/sprite-ai/crdash/internal/session"
)

// stateChangedMsg tells the model the store has moved on.
type stateChangedMsg struct{}

// detailReserve is the number of change view lines kept for the detail
// of the change under the cursor.
const detailReserve = 3

// Model is the top-level Bubble Tea model for a review.
type Model struct {
	store   *session.Store
	hl      *diff.Highlighter
	changed <-chan struct{}

	state    session.State
	files    []string
	findings map[findingKey]analysis.Finding

	// UI state
	width      int
	height     int
	viewHeight int // rows available to the panels

	fileIndex    int
	cursor       int // change index within the current file
	scrollOffset int
	rows         []changeRow

	showHelp bool
}

// New creates a review model over store. hl may be nil to disable
// highlighting.
func New(store *session.Store, hl *diff.Highlighter) Model {
	m := Model{store: store, hl: hl}
	m.setState(store.Snapshot())
	return m
}

func (m *Model) setState(st session.State) {
	m.state = st
	m.files = st.FileNames()
	m.findings = indexFindings(analysis.Review(st.ModifiedCode, st.UploadedFiles.CodeFiles).Findings)

	if m.fileIndex >= len(m.files) {
		m.fileIndex = max(len(m.files)-1, 0)
	}
	m.updateRows()
}

func (m *Model) updateRows() {
	if len(m.files) == 0 {
		m.rows = nil
	} else {
		m.rows = buildRows(m.hl, m.state, m.files[m.fileIndex], m.findings)
	}
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
	m.ensureVisible()
}

func (m Model) currentFile() string {
	if len(m.files) == 0 {
		return ""
	}
	return m.files[m.fileIndex]
}

func (m *Model) dispatch(a session.Action) {
	m.setState(m.store.Dispatch(a))
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForChange(m.changed)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewHeight = m.height - 4 // status bar + borders
		m.ensureVisible()
		return m, nil

	case stateChangedMsg:
		m.setState(m.store.Snapshot())
		return m, waitForChange(m.changed)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
				m.ensureVisible()
			}

		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.ensureVisible()
			}

		case key.Matches(msg, keys.NextFile):
			if m.fileIndex < len(m.files)-1 {
				m.fileIndex++
				m.cursor, m.scrollOffset = 0, 0
				m.updateRows()
			}

		case key.Matches(msg, keys.PrevFile):
			if m.fileIndex > 0 {
				m.fileIndex--
				m.cursor, m.scrollOffset = 0, 0
				m.updateRows()
			}

		case key.Matches(msg, keys.Toggle):
			if len(m.rows) > 0 {
				m.dispatch(session.ToggleLine{File: m.currentFile(), Line: m.rows[m.cursor].Change.Line})
			}

		case key.Matches(msg, keys.AcceptFile):
			if f := m.currentFile(); f != "" {
				m.dispatch(session.AcceptFile{File: f})
			}

		case key.Matches(msg, keys.RejectFile):
			if f := m.currentFile(); f != "" {
				m.dispatch(session.RejectFile{File: f})
			}

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
		}
	}

	return m, nil
}

func (m Model) visibleRows() int {
	return max(m.viewHeight-2-detailReserve, 1)
}

func (m *Model) ensureVisible() {
	visible := m.visibleRows()
	switch {
	case m.cursor < m.scrollOffset:
		m.scrollOffset = m.cursor
	case m.cursor >= m.scrollOffset+visible:
		m.scrollOffset = m.cursor - visible + 1
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	// Layout: file list on left, changes on right
	fileListWidth := m.fileListWidth()
	changeWidth := m.width - fileListWidth - 1 // -1 for gap

	fileList := m.renderFileList(fileListWidth, m.height-2)
	changeView := m.renderChangeView(changeWidth, m.height-2)

	main := lipgloss.JoinHorizontal(lipgloss.Top, fileList, " ", changeView)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) fileListWidth() int {
	// Calculate based on longest filename, capped
	maxLen := 20
	for _, name := range m.files {
		if len(name) > maxLen {
			maxLen = len(name)
		}
	}
	w := maxLen + 12 // badge + counts + padding
	if w > m.width/3 {
		w = m.width / 3
	}
	if w < 20 {
		w = 20
	}
	return w
}

// fileCounts returns how many changes of file have a decision, and how many
// there are.
func (m Model) fileCounts(file string) (reviewed, total int) {
	for _, c := range m.state.ModifiedCode[file].Changes {
		if m.state.Ledger.Line(file, c.Line) != model.DecisionPending {
			reviewed++
		}
		total++
	}
	return reviewed, total
}

func (m Model) renderFileList(width, height int) string {
	var b strings.Builder

	for i, name := range m.files {
		maxName := width - 12
		if maxName > 0 && len(name) > maxName {
			name = "…" + name[len(name)-maxName+1:]
		}

		reviewed, total := m.fileCounts(m.files[i])
		line := fmt.Sprintf("%-*s %d/%d", maxName, name, reviewed, total)

		style := fileItemStyle
		if i == m.fileIndex {
			style = fileItemSelectedStyle
		}
		b.WriteString(decisionBadge(m.state.FileDecision(m.files[i])) + " ")
		b.WriteString(style.Width(width - 6).Render(line))
		if i < len(m.files)-1 {
			b.WriteByte('\n')
		}
	}

	return fileListStyle.Width(width).Height(height - 2).Render(b.String())
}

func (m Model) renderChangeView(width, height int) string {
	innerHeight := height - 2
	if len(m.files) == 0 {
		return changeViewStyle.Width(width).Height(innerHeight).Render("No suggested changes")
	}

	innerWidth := width - 4 // borders + padding

	var b strings.Builder
	b.WriteString(fileHeaderStyle.Render(m.currentFile()))
	b.WriteByte('\n')

	end := min(m.scrollOffset+m.visibleRows(), len(m.rows))
	for i := m.scrollOffset; i < end; i++ {
		b.WriteString(styleRow(m.rows[i], innerWidth, i == m.cursor))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}

	if len(m.rows) > 0 {
		if detail := detailLines(m.rows[m.cursor], innerWidth); len(detail) > 0 {
			b.WriteString("\n\n")
			b.WriteString(strings.Join(detail, "\n"))
		}
	}

	return changeViewStyle.Width(width).Height(innerHeight).Render(b.String())
}

func (m Model) renderStatusBar() string {
	p := m.state.ReviewProgress

	left := fmt.Sprintf(" File %d/%d", m.fileIndex+1, len(m.files))
	if len(m.rows) > 0 {
		left += fmt.Sprintf("  Change %d/%d", m.cursor+1, len(m.rows))
	}

	right := fmt.Sprintf("✓%d ✗%d ·%d  %d%% reviewed  ? help ",
		p.AcceptedChanges, p.RejectedChanges, p.PendingChanges, p.Percent())

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(fileHeaderStyle.Render("crdash review: keyboard shortcuts"))
	b.WriteString("\n\n")

	for _, kb := range []key.Binding{
		keys.Up, keys.Down, keys.NextFile, keys.PrevFile,
		keys.Toggle, keys.AcceptFile, keys.RejectFile, keys.Help, keys.Quit,
	} {
		h := kb.Help()
		b.WriteString(fmt.Sprintf("  %s  %s\n", helpKeyStyle.Width(12).Render(h.Key), h.Desc))
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))

	return b.String()
}

// Run starts the review interface and returns the session state when the
// user quits. Dispatches made by other goroutines while it runs are picked
// up as they happen.
func Run(store *session.Store, hl *diff.Highlighter) (session.State, error) {
	changed := make(chan struct{}, 1)
	unsub := store.Subscribe(func(session.Event) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsub()

	m := New(store, hl)
	m.changed = changed
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return store.Snapshot(), err
}
