package models

import (
	"fmt"
	"strings"
	"time"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fenilsonani/dataguard/internal/progress"
	"github.com/fenilsonani/dataguard/internal/ui/styles"
	uiutils "github.com/fenilsonani/dataguard/internal/ui/utils"
	"github.com/fenilsonani/dataguard/pkg/utils"
)

// ScanViewModel shows the full scan while it runs
type ScanViewModel struct {
	spinner   spinner.Model
	bar       bprogress.Model
	progress  *progress.ScanProgress
	startTime time.Time
	width     int
}

// NewScanViewModel creates a new scan view model
func NewScanViewModel(width int) *ScanViewModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	return &ScanViewModel{
		spinner:   s,
		bar:       bprogress.New(bprogress.WithDefaultGradient()),
		startTime: time.Now(),
		width:     width,
	}
}

// Init starts the spinner
func (m *ScanViewModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m *ScanViewModel) Update(msg tea.Msg) (*ScanViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ScanProgressMsg:
		m.progress = msg.Progress
	}

	return m, nil
}

// View renders the scan view
func (m *ScanViewModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Scanning"))
	b.WriteString("\n\n")

	b.WriteString(m.spinner.View())
	b.WriteString(" Building the directory tree... ")
	b.WriteString(styles.DimStyle.Render(fmt.Sprintf("(%s)", progress.FormatDuration(time.Since(m.startTime)))))
	b.WriteString("\n\n")

	if p := m.progress; p != nil {
		if p.RootsTotal > 0 {
			m.bar.Width = min(max(m.width-10, 20), 60)
			b.WriteString(m.bar.ViewAs(float64(p.RootsDone) / float64(p.RootsTotal)))
			b.WriteString(fmt.Sprintf("  %d/%d roots\n\n", p.RootsDone, p.RootsTotal))
		}

		if p.CurrentPath != "" {
			b.WriteString(styles.DimStyle.Render("Current: "))
			b.WriteString(styles.FilePathStyle.Render(uiutils.TruncatePath(p.CurrentPath, max(m.width-12, 30))))
			b.WriteString("\n\n")
		}

		b.WriteString(fmt.Sprintf("%s directories, %s files, %s\n",
			styles.BoldStyle.Render(fmt.Sprintf("%d", p.DirsScanned)),
			styles.BoldStyle.Render(fmt.Sprintf("%d", p.FilesFound)),
			styles.FileSizeStyle.Render(utils.FormatBytes(p.TotalSize))))
		if p.Skipped > 0 {
			b.WriteString(styles.DimStyle.Render(fmt.Sprintf("%d hidden or system entries skipped\n", p.Skipped)))
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("c cancel (roots become excluded, expand to scan parts) • q quit"))
	return b.String()
}

// ScanProgressMsg carries one progress update from the scanner
type ScanProgressMsg struct {
	Progress *progress.ScanProgress
}
