package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/internal/ui/styles"
	"github.com/fenilsonani/dataguard/pkg/utils"
)

// InfoPanel represents a contextual information panel
type InfoPanel struct {
	title   string
	content []InfoItem
	visible bool
	width   int
}

// InfoItem represents a single piece of information
type InfoItem struct {
	Label string
	Value string
}

// NewInfoPanel creates a new info panel
func NewInfoPanel(title string, width int) *InfoPanel {
	return &InfoPanel{
		title: title,
		width: width,
	}
}

// AddItem adds an information item to the panel
func (p *InfoPanel) AddItem(label, value string) {
	p.content = append(p.content, InfoItem{Label: label, Value: value})
}

// SetVisible sets the visibility of the panel
func (p *InfoPanel) SetVisible(visible bool) {
	p.visible = visible
}

// IsVisible returns whether the panel is visible
func (p *InfoPanel) IsVisible() bool {
	return p.visible
}

// Items returns the panel rows
func (p *InfoPanel) Items() []InfoItem {
	return p.content
}

// Render renders the info panel
func (p *InfoPanel) Render() string {
	if !p.visible || len(p.content) == 0 {
		return ""
	}

	// Half the terminal, clamped to 40..80 columns
	panelWidth := min(max(p.width/2, 40), 80)

	panelStyle := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(styles.FocusBorder).
		Padding(1, 2).
		Width(panelWidth)

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Underline(true)
	labelStyle := lipgloss.NewStyle().
		Foreground(styles.Secondary).
		Bold(true)

	var content strings.Builder
	content.WriteString(titleStyle.Render(p.title))
	content.WriteString("\n\n")

	for i, item := range p.content {
		content.WriteString(labelStyle.Render(item.Label) + ": ")
		content.WriteString(item.Value)
		if i < len(p.content)-1 {
			content.WriteString("\n")
		}
	}

	content.WriteString("\n\n")
	content.WriteString(styles.HelpStyle.Render("Press 'i' or 'esc' to close"))

	return panelStyle.Render(content.String())
}

// NodeInfoPanel creates an info panel describing a directory
func NodeInfoPanel(n *tree.Node, width int) *InfoPanel {
	panel := NewInfoPanel("Directory Information", width)
	known := n.Known()

	panel.AddItem("Path", n.Path())
	panel.AddItem("Files", countOrUnknown(n.Total().Files, known))
	panel.AddItem("Size", utils.FormatSizeOrUnknown(n.Total().Size, known))
	panel.AddItem("Excluded", utils.FormatSizeOrUnknown(n.Excluded().Size, known))
	panel.AddItem("Direct", fmt.Sprintf("%s in %s files",
		utils.FormatSizeOrUnknown(n.Direct().Size, known), countOrUnknown(n.Direct().Files, known)))

	lastWrite := "never"
	if t := n.MaxWriteTime(); !t.IsZero() {
		lastWrite = fmt.Sprintf("%s (%s)", humanize.Time(t), t.Format("2006-01-02 15:04"))
	}
	panel.AddItem("Last write", lastWrite)

	panel.AddItem("Mode", describeMode(n))
	panel.AddItem("Priority", describePriority(n))
	if n.Mixed() {
		panel.AddItem("Mixed", "some subdirectories use a different mode")
	}
	if n.NotTraversed() {
		panel.AddItem("Scan", "not traversed yet; expand to scan")
	}
	return panel
}

func describeMode(n *tree.Node) string {
	resolved := n.ModeNoInherit()
	var source string
	switch {
	case n.ModeManual() != tree.ModeAuto:
		source = "manual " + n.ModeManual().String()
	case n.ModeAutoValue() == tree.ModeInherit:
		source = "inherited"
	default:
		source = "automatic"
	}
	return fmt.Sprintf("%s (%s)", styles.ModeStyle(resolved).Render(resolved.String()), source)
}

func describePriority(n *tree.Node) string {
	if n.PriorityManual() != tree.PriorityAuto {
		return n.Priority().String() + " (manual)"
	}
	return n.Priority().String() + " (automatic)"
}

func countOrUnknown(n int64, known bool) string {
	if !known {
		return "unknown"
	}
	return humanize.Comma(n)
}
