package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fenilsonani/dataguard/internal/session"
	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/internal/ui/components"
	"github.com/fenilsonani/dataguard/internal/ui/styles"
	uiutils "github.com/fenilsonani/dataguard/internal/ui/utils"
	"github.com/fenilsonani/dataguard/pkg/utils"
)

// row is one visible line of the flattened tree
type row struct {
	node  *tree.Node
	depth int
}

// TreeViewModel browses the forest. Expanding a not-traversed directory
// starts a lazy scan; the app's refresh tick repaints its growing totals.
type TreeViewModel struct {
	svc      session.Service
	keys     KeyMap
	rows     []row
	cursor   int
	offset   int
	pageSize int
	sortBy   tree.SortBy
	width    int
	height   int
	info     *components.InfoPanel
}

// NewTreeViewModel creates a tree view over the service's forest
func NewTreeViewModel(svc session.Service, keys KeyMap, width, height int) *TreeViewModel {
	m := &TreeViewModel{
		svc:      svc,
		keys:     keys,
		sortBy:   tree.SortBySize,
		width:    width,
		height:   height,
		pageSize: uiutils.CalculatePageSize(height),
	}
	m.Refresh()
	return m
}

// Refresh rebuilds the visible rows, keeping the cursor on the same directory
func (m *TreeViewModel) Refresh() {
	selected := m.Selected()

	m.rows = m.rows[:0]
	for _, root := range m.svc.Forest().Roots() {
		m.appendRows(root, 0)
	}

	if selected != nil {
		for i, r := range m.rows {
			if r.node == selected {
				m.cursor = i
				break
			}
		}
	}
	m.clamp()
}

func (m *TreeViewModel) appendRows(n *tree.Node, depth int) {
	m.rows = append(m.rows, row{node: n, depth: depth})
	if !n.Expanded() {
		return
	}
	for _, c := range tree.Sorted(n.Children(), m.sortBy) {
		m.appendRows(c, depth+1)
	}
}

// Selected returns the directory under the cursor
func (m *TreeViewModel) Selected() *tree.Node {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].node
}

// Rows returns the number of visible rows
func (m *TreeViewModel) Rows() int {
	return len(m.rows)
}

// SortBy returns the current child order
func (m *TreeViewModel) SortBy() tree.SortBy {
	return m.sortBy
}

// InfoVisible reports whether the details panel is open
func (m *TreeViewModel) InfoVisible() bool {
	return m.info != nil && m.info.IsVisible()
}

// clamp keeps cursor and offset inside the row list and the page
func (m *TreeViewModel) clamp() {
	m.cursor = max(min(m.cursor, len(m.rows)-1), 0)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.pageSize {
		m.offset = m.cursor - m.pageSize + 1
	}
	m.offset = max(m.offset, 0)
}

// Update handles navigation and expand/collapse
func (m *TreeViewModel) Update(msg tea.Msg) (*TreeViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.pageSize = uiutils.CalculatePageSize(msg.Height)
		m.clamp()

	case tea.KeyMsg:
		if m.InfoVisible() {
			if key.Matches(msg, m.keys.Info, m.keys.Back) {
				m.info.SetVisible(false)
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Up):
			m.cursor--
		case key.Matches(msg, m.keys.Down):
			m.cursor++
		case key.Matches(msg, m.keys.PageUp):
			m.cursor -= m.pageSize
		case key.Matches(msg, m.keys.PageDown):
			m.cursor += m.pageSize
		case key.Matches(msg, m.keys.Top):
			m.cursor = 0
		case key.Matches(msg, m.keys.Bottom):
			m.cursor = len(m.rows) - 1
		case key.Matches(msg, m.keys.Expand):
			return m, m.expand()
		case key.Matches(msg, m.keys.Collapse):
			m.collapse()
		case key.Matches(msg, m.keys.Sort):
			m.sortBy = (m.sortBy + 1) % (tree.SortByCount + 1)
			m.Refresh()
			return m, statusCmd("Sorted by "+m.sortBy.String(), false)
		case key.Matches(msg, m.keys.Info):
			if n := m.Selected(); n != nil {
				m.info = components.NodeInfoPanel(n, m.width)
				m.info.SetVisible(true)
			}
		case key.Matches(msg, m.keys.Mode):
			if n := m.Selected(); n != nil {
				return m, func() tea.Msg { return OpenOverrideMsg{Node: n, Kind: OverrideMode} }
			}
		case key.Matches(msg, m.keys.Priority):
			if n := m.Selected(); n != nil {
				return m, func() tea.Msg { return OpenOverrideMsg{Node: n, Kind: OverridePriority} }
			}
		}
		m.clamp()
	}

	return m, nil
}

// expand opens the selected directory, or steps into it when already open
func (m *TreeViewModel) expand() tea.Cmd {
	n := m.Selected()
	if n == nil || !hasChildren(n) {
		return nil
	}
	if n.Expanded() {
		if n.NumChildren() > 0 {
			m.cursor++
			m.clamp()
		}
		return nil
	}

	lazy := m.svc.Expand(n)
	m.Refresh()
	if lazy {
		return statusCmd("Scanning "+n.Path()+"...", false)
	}
	return nil
}

// collapse closes the selected directory, or moves to its parent
func (m *TreeViewModel) collapse() {
	n := m.Selected()
	if n == nil {
		return
	}
	if n.Expanded() {
		m.svc.Collapse(n)
		m.Refresh()
		return
	}
	if p := n.Parent(); p != nil {
		for i, r := range m.rows {
			if r.node == p {
				m.cursor = i
				break
			}
		}
	}
}

func hasChildren(n *tree.Node) bool {
	return n.NumChildren() > 0 || n.HasSubdirs()
}

// View renders the visible page of rows
func (m *TreeViewModel) View() string {
	if m.InfoVisible() {
		return m.info.Render()
	}

	var b strings.Builder
	nameWidth := max(m.width-44, 20)

	header := fmt.Sprintf("  %-*s %10s %10s  %-13s %s", nameWidth, "Directory", "Size", "Files", "Mode", "Pri")
	b.WriteString(styles.DimStyle.Render(header))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(styles.HelpStyle.Render("  No roots configured"))
		b.WriteString("\n")
	}

	end := min(m.offset+m.pageSize, len(m.rows))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(m.rows[i], i == m.cursor, nameWidth))
		b.WriteString("\n")
	}

	if len(m.rows) > m.pageSize {
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("  %d-%d of %d", m.offset+1, end, len(m.rows))))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *TreeViewModel) renderRow(r row, selected bool, nameWidth int) string {
	n := r.node

	prefix := strings.Repeat("  ", r.depth) + styles.ExpandMarker(n.Expanded(), hasChildren(n))
	name := n.Name()
	if avail := nameWidth - lipgloss.Width(prefix); len(name) > avail {
		name = uiutils.TruncateMiddle(name, max(avail, 3))
	}
	label := prefix + name
	if pad := nameWidth - lipgloss.Width(label); pad > 0 {
		label += strings.Repeat(" ", pad)
	}

	known := n.Known()
	size := utils.FormatSizeOrUnknown(n.Total().Size, known)
	files := "unknown"
	if known {
		files = fmt.Sprintf("%d", n.Total().Files)
	}
	if n.NotTraversed() && n.Expanded() {
		size, files = "scanning", ""
	}

	resolved := n.ModeNoInherit()
	mode := resolved.String()
	if n.ModeManual() != tree.ModeAuto {
		mode += "*"
	}
	if n.Mixed() {
		mode += "~"
	}

	line := fmt.Sprintf("%s %10s %10s  %s %s",
		label, size, files,
		styles.ModeStyle(resolved).Render(fmt.Sprintf("%-13s", mode)),
		styles.PriorityIcon(n.Priority()))

	if selected {
		return styles.SelectedStyle.Render("→ ") + line
	}
	return "  " + line
}

// StatusMsg shows a transient message in the status bar
type StatusMsg struct {
	Text    string
	IsError bool
}

func statusCmd(text string, isError bool) tea.Cmd {
	return func() tea.Msg { return StatusMsg{Text: text, IsError: isError} }
}
