package classifier

import (
	"testing"
	"time"

	"github.com/fenilsonani/dataguard/internal/config"
	"github.com/fenilsonani/dataguard/internal/tree"
	"github.com/fenilsonani/dataguard/pkg/utils"
)

var scanStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// leaf creates root/<name> with the given direct stats, merged into the root
// the way the scanner does before classification runs.
func leaf(t *testing.T, name string, size int64, lastWrite time.Time) (*tree.Node, *tree.Node) {
	t.Helper()

	root := tree.NewRoot("/data")
	n := root.InsertChild(name)
	n.MarkScanStarted()
	files := int64(0)
	if size > 0 {
		files = 1
	}
	n.ApplyScan(tree.Stats{Files: files, Size: size}, lastWrite)
	root.MarkScanStarted()
	root.WidenMaxWrite(lastWrite)
	return root, n
}

func daysAgo(d int) time.Time {
	return scanStart.Add(-time.Duration(d) * 24 * time.Hour)
}

// =============================================================================
// Threshold scenarios
// =============================================================================

func TestClassifyThresholdScenarios(t *testing.T) {
	tests := []struct {
		name      string
		dir       string
		size      int64
		lastWrite time.Time
		rule      Rule
		mode      tree.Mode
		priority  tree.Priority
	}{
		{"empty leaf", "empty", 0, time.Time{}, RuleNoWrites, tree.ModeInherit, tree.PriorityNormal},
		{"stale and large", "old", 20 * utils.MB, daysAgo(200), RuleStale, tree.ModeFrozen, tree.PriorityLow},
		{"stale and small", "old-small", 5 * utils.MB, daysAgo(200), RuleStale, tree.ModeFrozen, tree.PriorityNormal},
		{"recent and below ceiling", "work", 500 * utils.MB, daysAgo(2), RuleActive, tree.ModeNormal, tree.PriorityHigh},
		{"recent but huge", "media", 2 * utils.GB, daysAgo(2), RuleActive, tree.ModeNormal, tree.PriorityNormal},
		{"a month old", "notes", utils.MB, daysAgo(30), RuleActive, tree.ModeNormal, tree.PriorityNormal},
		{"photos marker", "Photos2023", utils.MB, daysAgo(1), RuleMarker, tree.ModeAppendOnly, tree.PriorityLow},
		{"backup marker", "OldBackups", 0, time.Time{}, RuleMarker, tree.ModeAppendOnly, tree.PriorityLow},
		{"small git", ".git", 10 * utils.MB, daysAgo(1), RuleActive, tree.ModeNormal, tree.PriorityHigh},
		{"large git", ".git", 150 * utils.MB, daysAgo(1), RuleLargeVCS, tree.ModeExcluded, tree.PriorityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, n := leaf(t, tt.dir, tt.size, tt.lastWrite)
			c := New(DefaultSettings(), scanStart)

			if got := c.Classify(n); got != tt.rule {
				t.Errorf("rule = %v, want %v", got, tt.rule)
			}
			if got := n.ModeAutoValue(); got != tt.mode {
				t.Errorf("mode = %v, want %v", got, tt.mode)
			}
			if got := n.Priority(); got != tt.priority {
				t.Errorf("priority = %v, want %v", got, tt.priority)
			}
		})
	}
}

func TestLargeVCSExcludesParentAggregate(t *testing.T) {
	root, git := leaf(t, ".git", 150*utils.MB, daysAgo(1))
	objects := git.InsertChild("objects")
	objects.SetModeAuto(tree.ModeNormal)

	New(DefaultSettings(), scanStart).Classify(git)

	if got := root.Excluded().Size; got != 150*utils.MB {
		t.Errorf("parent excluded size = %d, want %d", got, 150*utils.MB)
	}
	if objects.ModeAutoValue() != tree.ModeInherit {
		t.Errorf("descendant mode = %v, want inherit", objects.ModeAutoValue())
	}
	if objects.ModeNoInherit() != tree.ModeExcluded {
		t.Errorf("descendant resolves to %v", objects.ModeNoInherit())
	}
}

func TestMarkerForcesDescendants(t *testing.T) {
	root := tree.NewRoot("/data")
	photos := root.InsertChild("Photos2023")
	trip := photos.InsertChild("trip")
	trip.SetModeAuto(tree.ModeFrozen)
	trip.SetPriorityAuto(tree.PriorityHigh)
	trip.ApplyScan(tree.Stats{Files: 3, Size: 300}, daysAgo(400))
	photos.ApplyScan(tree.Stats{}, daysAgo(400))

	New(DefaultSettings(), scanStart).Classify(photos)

	if photos.ModeAutoValue() != tree.ModeAppendOnly || photos.Priority() != tree.PriorityLow {
		t.Errorf("photos = %v/%v", photos.ModeAutoValue(), photos.Priority())
	}
	if trip.ModeAutoValue() != tree.ModeInherit || trip.Priority() != tree.PriorityNormal {
		t.Errorf("descendant = %v/%v, want inherit/normal", trip.ModeAutoValue(), trip.Priority())
	}
	if photos.Mixed() {
		t.Error("forced subtree should not be mixed")
	}
}

func TestTooDeepInheritsButChecksMixed(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxAutoDepth = 0

	root := tree.NewRoot("/data")
	deep := root.InsertChild("deep")
	child := deep.InsertChild("child")
	child.SetModeAuto(tree.ModeFrozen)

	if got := New(settings, scanStart).Classify(deep); got != RuleTooDeep {
		t.Fatalf("rule = %v", got)
	}
	if deep.ModeAutoValue() != tree.ModeInherit {
		t.Errorf("mode = %v", deep.ModeAutoValue())
	}
	if !deep.Mixed() {
		t.Error("mixed check should still run below the depth limit")
	}
}

func TestFutureWritesDoNotGoNegative(t *testing.T) {
	_, n := leaf(t, "future", utils.MB, scanStart.Add(time.Hour))
	if got := New(DefaultSettings(), scanStart).Classify(n); got != RuleActive {
		t.Errorf("rule = %v", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		_, n := leaf(t, "stable", 20*utils.MB, daysAgo(200))
		c := New(DefaultSettings(), scanStart)
		c.Classify(n)
		if n.ModeAutoValue() != tree.ModeFrozen || n.Priority() != tree.PriorityLow {
			t.Fatalf("run %d: %v/%v", i, n.ModeAutoValue(), n.Priority())
		}
	}
}

func TestFromConfigRejectsBadSizes(t *testing.T) {
	cc := config.GetDefault().Classifier
	cc.VCSExcludeSize = "huge"
	if _, err := FromConfig(cc); err == nil {
		t.Error("expected error for invalid size")
	}
}

func TestFromConfigNormalisesMarkers(t *testing.T) {
	cc := config.GetDefault().Classifier
	cc.AppendOnlyMarkers = []string{" Archive ", ""}
	s, err := FromConfig(cc)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.AppendOnlyMarkers) != 1 || s.AppendOnlyMarkers[0] != "archive" {
		t.Errorf("markers = %v", s.AppendOnlyMarkers)
	}
}
