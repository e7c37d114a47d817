// Package reporter renders a classified tree as text, JSON or YAML
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/dataguard/internal/scanner"
	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/pkg/utils"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
)

// ParseFormat validates a format name
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML, FormatSummary:
		return f, nil
	case "":
		return FormatSummary, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Reporter handles report generation
type Reporter struct {
	writer   io.Writer
	format   OutputFormat
	maxDepth int
	sortBy   tree.SortBy
	now      func() time.Time
}

// New creates a new Reporter. maxDepth limits how far below each root the
// table and structured formats descend; a negative value means no limit.
func New(writer io.Writer, format OutputFormat, maxDepth int, sortBy tree.SortBy) *Reporter {
	return &Reporter{
		writer:   writer,
		format:   format,
		maxDepth: maxDepth,
		sortBy:   sortBy,
		now:      time.Now,
	}
}

// Report renders the forest. result may be nil when no full scan has run.
func (r *Reporter) Report(forest *tree.Forest, result *scanner.Result) error {
	switch r.format {
	case FormatTable:
		return r.reportTable(forest)
	case FormatJSON:
		return r.reportJSON(forest, result)
	case FormatYAML:
		return r.reportYAML(forest, result)
	case FormatSummary:
		return r.reportSummary(forest, result)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// reportSummary prints one block per root plus the scan counters
func (r *Reporter) reportSummary(forest *tree.Forest, result *scanner.Result) error {
	fmt.Fprintf(r.writer, "=== Snapshot Summary ===\n")
	var total, excluded tree.Stats
	for _, root := range forest.Roots() {
		known := root.Known()
		fmt.Fprintf(r.writer, "%s\n", root.Path())
		fmt.Fprintf(r.writer, "  Mode: %s, Priority: %s\n", modeLabel(root), root.Priority())
		fmt.Fprintf(r.writer, "  Files: %s, Size: %s\n",
			countOrUnknown(root.Total().Files, known), utils.FormatSizeOrUnknown(root.Total().Size, known))
		fmt.Fprintf(r.writer, "  Excluded: %s, Backed up: %s\n",
			utils.FormatSizeOrUnknown(root.Excluded().Size, known),
			utils.FormatSizeOrUnknown(root.Total().Size-root.Excluded().Size, known))
		if known {
			total = total.Add(root.Total())
			excluded = excluded.Add(root.Excluded())
		}
	}

	fmt.Fprintf(r.writer, "\nTotal: %d files, %s (%s excluded)\n",
		total.Files, utils.FormatBytes(total.Size), utils.FormatBytes(excluded.Size))

	if result != nil {
		fmt.Fprintf(r.writer, "Scanned %d directories in %s\n", result.DirsScanned, result.Duration.Round(time.Millisecond))
		if result.Cancelled {
			fmt.Fprintf(r.writer, "Scan was cancelled; totals are partial\n")
		}
		if result.ErrorCount > 0 {
			fmt.Fprintf(r.writer, "\n%s", scanner.FormatErrorSummary(result.Errors))
		}
	}
	return nil
}

// reportTable prints an indented tree with one directory per row
func (r *Reporter) reportTable(forest *tree.Forest) error {
	fmt.Fprintf(r.writer, "%-50s | %8s | %10s | %10s | %-11s | %-8s | %s\n",
		"Path", "Files", "Size", "Excluded", "Mode", "Priority", "Last write")
	fmt.Fprintf(r.writer, "%s\n", strings.Repeat("-", 120))

	for _, root := range forest.Roots() {
		r.walk(root, func(n *tree.Node, depth int) {
			label := n.Name()
			if depth > 0 {
				label = strings.Repeat("  ", depth) + label
			}
			if len(label) > 50 {
				label = "..." + label[len(label)-47:]
			}

			known := n.Known()
			lastWrite := "-"
			if t := n.MaxWriteTime(); !t.IsZero() {
				lastWrite = t.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(r.writer, "%-50s | %8s | %10s | %10s | %-11s | %-8s | %s\n",
				label,
				countOrUnknown(n.Total().Files, known),
				utils.FormatSizeOrUnknown(n.Total().Size, known),
				utils.FormatSizeOrUnknown(n.Excluded().Size, known),
				modeLabel(n),
				n.Priority(),
				lastWrite)
		})
	}
	return nil
}

// walk visits n and its sorted descendants down to the depth limit
func (r *Reporter) walk(n *tree.Node, fn func(*tree.Node, int)) {
	var visit func(*tree.Node, int)
	visit = func(n *tree.Node, depth int) {
		fn(n, depth)
		if r.maxDepth >= 0 && depth >= r.maxDepth {
			return
		}
		for _, c := range tree.Sorted(n.Children(), r.sortBy) {
			visit(c, depth+1)
		}
	}
	visit(n, 0)
}

// NodeReport is the structured form of one directory
type NodeReport struct {
	Path          string        `json:"path" yaml:"path"`
	Mode          string        `json:"mode" yaml:"mode"`
	EffectiveMode string        `json:"effective_mode" yaml:"effective_mode"`
	ManualMode    string        `json:"manual_mode,omitempty" yaml:"manual_mode,omitempty"`
	Priority      string        `json:"priority" yaml:"priority"`
	Mixed         bool          `json:"mixed,omitempty" yaml:"mixed,omitempty"`
	Known         bool          `json:"known" yaml:"known"`
	Files         int64         `json:"files" yaml:"files"`
	Size          int64         `json:"size" yaml:"size"`
	SizeFormatted string        `json:"size_formatted" yaml:"size_formatted"`
	ExcludedFiles int64         `json:"excluded_files" yaml:"excluded_files"`
	ExcludedSize  int64         `json:"excluded_size" yaml:"excluded_size"`
	LastWrite     *time.Time    `json:"last_write,omitempty" yaml:"last_write,omitempty"`
	Children      []*NodeReport `json:"children,omitempty" yaml:"children,omitempty"`
}

// Snapshot is the structured report document
type Snapshot struct {
	Timestamp   string        `json:"timestamp" yaml:"timestamp"`
	DirsScanned int64         `json:"dirs_scanned" yaml:"dirs_scanned"`
	Errors      int           `json:"errors" yaml:"errors"`
	Cancelled   bool          `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	Roots       []*NodeReport `json:"roots" yaml:"roots"`
}

// BuildSnapshot converts the forest into its structured form
func (r *Reporter) BuildSnapshot(forest *tree.Forest, result *scanner.Result) *Snapshot {
	snap := &Snapshot{Timestamp: r.now().Format(time.RFC3339)}
	if result != nil {
		snap.DirsScanned = result.DirsScanned
		snap.Errors = result.ErrorCount
		snap.Cancelled = result.Cancelled
	}
	for _, root := range forest.Roots() {
		snap.Roots = append(snap.Roots, r.nodeReport(root, 0))
	}
	return snap
}

func (r *Reporter) nodeReport(n *tree.Node, depth int) *NodeReport {
	nr := &NodeReport{
		Path:          n.Path(),
		Mode:          n.Mode().String(),
		EffectiveMode: n.ModeNoInherit().String(),
		Priority:      n.Priority().String(),
		Mixed:         n.Mixed(),
		Known:         n.Known(),
	}
	if m := n.ModeManual(); m != tree.ModeAuto {
		nr.ManualMode = m.String()
	}
	if nr.Known {
		nr.Files, nr.Size = n.Total().Files, n.Total().Size
		nr.ExcludedFiles, nr.ExcludedSize = n.Excluded().Files, n.Excluded().Size
		nr.SizeFormatted = utils.FormatBytes(nr.Size)
	} else {
		nr.SizeFormatted = "unknown"
	}
	if t := n.MaxWriteTime(); !t.IsZero() {
		t = t.UTC()
		nr.LastWrite = &t
	}
	if r.maxDepth < 0 || depth < r.maxDepth {
		for _, c := range tree.Sorted(n.Children(), r.sortBy) {
			nr.Children = append(nr.Children, r.nodeReport(c, depth+1))
		}
	}
	return nr
}

// reportJSON generates a JSON report
func (r *Reporter) reportJSON(forest *tree.Forest, result *scanner.Result) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r.BuildSnapshot(forest, result))
}

// reportYAML generates a YAML report
func (r *Reporter) reportYAML(forest *tree.Forest, result *scanner.Result) error {
	encoder := yaml.NewEncoder(r.writer)
	defer encoder.Close()
	return encoder.Encode(r.BuildSnapshot(forest, result))
}

// SaveToFile saves the report to a file
func SaveToFile(forest *tree.Forest, result *scanner.Result, path string, format OutputFormat, maxDepth int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	return New(file, format, maxDepth, tree.SortByName).Report(forest, result)
}

// modeLabel shows the resolved mode, marking manual overrides and mixed subtrees
func modeLabel(n *tree.Node) string {
	label := n.Mode().String()
	if n.ModeManual() != tree.ModeAuto {
		label += "*"
	}
	if n.Mixed() {
		label += "~"
	}
	return label
}

func countOrUnknown(n int64, known bool) string {
	if !known {
		return "unknown"
	}
	return fmt.Sprintf("%d", n)
}
