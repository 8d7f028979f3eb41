package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"ttscraper/pkg/checkpoint"
	"ttscraper/pkg/ui"
)

// checkpointCmd represents the checkpoint command
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and remove saved progress",
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved checkpoints",
	RunE:  runCheckpointList,
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete saved checkpoints",
	Long: `Delete saved checkpoints.

By default every checkpoint is removed. With --complete-only, snapshots of
unfinished videos are kept so they can still be resumed.`,
	RunE: runCheckpointClear,
}

var completeOnly bool

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)

	checkpointCmd.PersistentFlags().StringVar(&checkpointDir, "checkpoint-dir", "", "checkpoint directory (default from config)")
	checkpointClearCmd.Flags().BoolVar(&completeOnly, "complete-only", false, "only remove checkpoints of finished videos")
}

func openCheckpointStore() (*checkpoint.Store, error) {
	cfg, err := loadConfig(map[string]interface{}{"checkpoint-dir": checkpointDir})
	if err != nil {
		return nil, err
	}
	return checkpoint.NewStore(cfg.Checkpoint.Directory, nil)
}

func runCheckpointList(cmd *cobra.Command, args []string) error {
	store, err := openCheckpointStore()
	if err != nil {
		return err
	}

	summaries, err := store.List()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		ui.PrintInfo("No checkpoints", store.Dir())
		return nil
	}

	ui.PrintInfo("Checkpoints", store.Dir())
	w := tabwriter.NewWriter(ui.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKER\tVIDEO\tAUTHOR\tCOMMENTS\tBATCH\tCURSOR\tSTATE\tSAVED")
	for _, s := range summaries {
		state := "resumable"
		if s.IsComplete {
			state = "complete"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			s.WorkerID, s.TargetID, s.Label, s.TotalItems, s.BatchNumber, s.Cursor, state,
			s.SavedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runCheckpointClear(cmd *cobra.Command, args []string) error {
	store, err := openCheckpointStore()
	if err != nil {
		return err
	}

	removed, err := store.Clear(completeOnly)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Removed %d checkpoint(s) from %s", removed, store.Dir()))
	return nil
}
