package progress

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSubscribeReceivesUpdates(t *testing.T) {
	pr := NewProgressReporter()
	ch := pr.Subscribe()

	update := &ScanProgress{Phase: PhaseScanning, Root: "/data", RootsTotal: 1}
	pr.UpdateScanProgress(update)

	select {
	case got := <-ch:
		if got != update {
			t.Errorf("received %+v, want %+v", got, update)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for update")
	}

	if pr.GetScanProgress() != update {
		t.Error("GetScanProgress should return the last update")
	}

	pr.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestUpdateDoesNotBlockOnFullListener(t *testing.T) {
	pr := NewProgressReporter()
	_ = pr.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pr.UpdateScanProgress(&ScanProgress{Phase: PhaseScanning})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("UpdateScanProgress blocked on a full listener")
	}
}

func TestNilReporterIsNoop(t *testing.T) {
	var pr *ProgressReporter
	pr.UpdateScanProgress(&ScanProgress{})
}

func TestFormatScanProgress(t *testing.T) {
	start := time.Now()
	tests := []struct {
		name     string
		p        *ScanProgress
		contains string
	}{
		{"nil", nil, "Initializing"},
		{"scanning", &ScanProgress{Phase: PhaseScanning, Root: "/data", RootsTotal: 2, FilesFound: 3, StartTime: start}, "Scanning /data (1/2)"},
		{"complete", &ScanProgress{Phase: PhaseComplete, DirsScanned: 4, FilesFound: 9, StartTime: start}, "4 dirs, 9 files"},
		{"cancelled", &ScanProgress{Phase: PhaseCancelled, DirsScanned: 7}, "cancelled after 7"},
		{"error", &ScanProgress{Phase: PhaseError, Error: errors.New("boom")}, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatScanProgress(tt.p); !strings.Contains(got, tt.contains) {
				t.Errorf("FormatScanProgress = %q, want it to contain %q", got, tt.contains)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m30s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h2m3s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.expected {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.expected)
		}
	}
}
