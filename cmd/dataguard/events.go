package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fenilsonani/dataguard/internal/daemon"
	"github.com/fenilsonani/dataguard/internal/journal"
	"github.com/fenilsonani/dataguard/internal/watcher"
)

var (
	eventsLimit int
	eventsJSON  bool
	ackBatch    string
	ackAll      bool
	keepDays    int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect and acknowledge journaled changes",
	Long: `The daemon journals every dispatched change. Changes stay pending until a
backup run acknowledges them; acknowledged changes are pruned after
journal_keep_days.`,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending changes, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(func(ctx context.Context, j *journal.Journal) error {
			entries, err := j.Pending(ctx, eventsLimit)
			if err != nil {
				return err
			}

			if eventsJSON {
				out := make([]eventView, 0, len(entries))
				for _, e := range entries {
					out = append(out, newEventView(e))
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			if len(entries) == 0 {
				fmt.Println("No pending changes")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%6d  %s  %-6s %s\n", e.ID, e.Event.At.Format("2006-01-02 15:04:05"), e.Event.Kind, describePath(e.Event))
			}
			return nil
		})
	},
}

var eventsAckCmd = &cobra.Command{
	Use:   "ack [id...]",
	Short: "Mark changes as consumed",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && ackBatch == "" && !ackAll {
			return errors.New("pass event IDs, --batch or --all")
		}

		return withJournal(func(ctx context.Context, j *journal.Journal) error {
			var acked int64
			switch {
			case ackAll:
				pending, err := j.Pending(ctx, 0)
				if err != nil {
					return err
				}
				ids := make([]int64, 0, len(pending))
				for _, e := range pending {
					ids = append(ids, e.ID)
				}
				if acked, err = j.Ack(ctx, ids...); err != nil {
					return err
				}
			case ackBatch != "":
				n, err := j.AckBatch(ctx, ackBatch)
				if err != nil {
					return err
				}
				acked = n
			default:
				ids := make([]int64, 0, len(args))
				for _, arg := range args {
					id, err := strconv.ParseInt(arg, 10, 64)
					if err != nil {
						return fmt.Errorf("invalid event ID %q", arg)
					}
					ids = append(ids, id)
				}
				n, err := j.Ack(ctx, ids...)
				if err != nil {
					return err
				}
				acked = n
			}
			fmt.Printf("Acknowledged %s changes\n", humanize.Comma(acked))
			return nil
		})
	},
}

var eventsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete acknowledged changes older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(func(ctx context.Context, j *journal.Journal) error {
			days := keepDays
			if days < 0 {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				days = cfg.Daemon.JournalKeepDays
			}
			n, err := j.Prune(ctx, time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %s acknowledged changes older than %d days\n", humanize.Comma(n), days)
			return nil
		})
	},
}

var eventsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many changes are pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(func(ctx context.Context, j *journal.Journal) error {
			pending, total, err := j.Counts(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Journal:  %s\n", j.Path())
			fmt.Printf("Pending:  %s\n", humanize.Comma(int64(pending)))
			fmt.Printf("Total:    %s\n", humanize.Comma(int64(total)))
			if info, err := os.Stat(j.Path()); err == nil {
				fmt.Printf("Size:     %s\n", humanize.IBytes(uint64(info.Size())))
			}
			return nil
		})
	},
}

// eventView is the JSON shape of one journal entry
type eventView struct {
	ID           int64         `json:"id"`
	BatchID      string        `json:"batch_id"`
	DispatchedAt time.Time     `json:"dispatched_at"`
	Event        watcher.Event `json:"event"`
}

func newEventView(e journal.Entry) eventView {
	return eventView{ID: e.ID, BatchID: e.BatchID, DispatchedAt: e.DispatchedAt, Event: e.Event}
}

func describePath(e watcher.Event) string {
	if e.Kind == watcher.KindRename || e.Kind == watcher.KindMove {
		return e.Path() + " -> " + e.NewPath()
	}
	return e.Path()
}

// withJournal opens the configured journal for the duration of fn
func withJournal(fn func(context.Context, *journal.Journal) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	path, err := daemon.JournalPath(cfg)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no journal at %s; has the daemon run yet?", path)
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	return fn(context.Background(), j)
}

func init() {
	eventsListCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 100, "maximum number of changes (0 for all)")
	eventsListCmd.Flags().BoolVar(&eventsJSON, "json", false, "print JSON")

	eventsAckCmd.Flags().StringVar(&ackBatch, "batch", "", "acknowledge every change of a batch")
	eventsAckCmd.Flags().BoolVar(&ackAll, "all", false, "acknowledge every pending change")

	eventsPruneCmd.Flags().IntVar(&keepDays, "keep-days", -1, "retention in days (default from config)")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsAckCmd)
	eventsCmd.AddCommand(eventsPruneCmd)
	eventsCmd.AddCommand(eventsStatsCmd)
}
