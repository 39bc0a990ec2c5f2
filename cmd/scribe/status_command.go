package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"scribe/internal/report"
)

// statusEntry is the --json shape of one blob.
type statusEntry struct {
	Ref            string `json:"ref"`
	Name           string `json:"name"`
	Tracked        bool   `json:"tracked"`
	Status         string `json:"status,omitempty"`
	Comment        string `json:"comment,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Compute        string `json:"compute,omitempty"`
	TranscriptName string `json:"transcriptName,omitempty"`
	TranscriptRef  string `json:"transcriptRef,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var folder string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the job state of every file in a blob folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime(false)
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := report.Collect(cmd.Context(), rt.blobs, rt.syncer(), folderOrDefault(folder, rt.cfg))
			if err != nil {
				return err
			}
			if asJSON {
				entries := make([]statusEntry, 0, len(rows))
				for _, row := range rows {
					entries = append(entries, statusEntry{
						Ref:            row.Ref,
						Name:           row.Name,
						Tracked:        row.Tracked,
						Status:         string(row.Status),
						Comment:        row.Comment,
						Quality:        row.Quality,
						Compute:        row.Compute,
						TranscriptName: row.TranscriptName,
						TranscriptRef:  row.TranscriptRef,
					})
				}
				return printEntries(cmd.OutOrStdout(), entries)
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No files found")
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				table = append(table, []string{row.Name, row.StatusLabel(), truncate(row.Comment, 60), row.TranscriptName})
			}
			fmt.Fprintln(out, renderTable([]string{"File", "Status", "Comment", "Transcript"}, table, nil, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Blob folder to inspect (default storage.audio_folder)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	var folder, outPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export folder status to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime(false)
			if err != nil {
				return err
			}
			defer rt.Close()

			target := folderOrDefault(folder, rt.cfg)
			rows, err := report.Collect(cmd.Context(), rt.blobs, rt.syncer(), target)
			if err != nil {
				return err
			}
			if err := report.WriteXLSX(rows, target, outPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d row(s) to %s\n", len(rows), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Blob folder to report on (default storage.audio_folder)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "scribe-status.xlsx", "Workbook path")
	return cmd
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// printEntries writes entries as an indented JSON array. Refs and comments
// are emitted verbatim, without HTML escaping.
func printEntries(w io.Writer, entries []statusEntry) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
