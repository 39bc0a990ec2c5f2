package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"scribe/internal/workflow"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Transcribe every pending file in a blob folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime(true)
			if err != nil {
				return err
			}
			defer rt.Close()

			lock := flock.New(rt.cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire batch lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another batch run holds %s", rt.cfg.LockPath())
			}
			defer lock.Unlock()

			summary, err := rt.runner.ProcessFolder(cmd.Context(), folderOrDefault(folder, rt.cfg))
			printBatchSummary(cmd, summary)
			if err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d file(s) failed", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Blob folder to process (default storage.audio_folder)")
	return cmd
}

func printBatchSummary(cmd *cobra.Command, summary workflow.BatchSummary) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	if len(summary.Results) > 0 {
		rows := make([][]string, 0, len(summary.Results))
		for _, res := range summary.Results {
			comment := res.Comment
			if res.Err != nil && comment == "" {
				comment = res.Err.Error()
			}
			rows = append(rows, []string{res.Ref, res.Status.DisplayName(), comment, yesNo(res.Deleted)})
		}
		fmt.Fprintln(out, renderTable([]string{"Ref", "Status", "Comment", "Deleted"}, rows, nil, colorize))
	}
	totals := [][]string{
		{"Files", strconv.Itoa(summary.Total)},
		{"Completed", strconv.Itoa(summary.Completed)},
		{"Skipped", strconv.Itoa(summary.Skipped)},
		{"Deferred", strconv.Itoa(summary.Deferred)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Deleted", strconv.Itoa(summary.Deleted)},
		{"Duration", summary.Duration.Round(time.Millisecond).String()},
	}
	fmt.Fprintln(out, renderTable([]string{"Batch " + summary.Folder, ""}, totals, []columnAlignment{alignLeft, alignRight}, colorize))
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
