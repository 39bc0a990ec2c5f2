package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/tracker"
	"scribe/internal/workflow"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var quality, compute string

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Store a local audio file and transcribe it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve audio path: %w", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("audio file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("audio file: %s is a directory", path)
			}

			rt, err := ctx.openRuntime(true)
			if err != nil {
				return err
			}
			defer rt.Close()

			quality = firstNonEmpty(quality, rt.cfg.Transcription.Quality)
			compute = firstNonEmpty(compute, rt.cfg.Transcription.Compute)
			source := tracker.UploadSource(filepath.Base(path), path, info.Size())
			job, err := rt.runner.BeginJobWithSettings(cmd.Context(), source, quality, compute)
			if err != nil {
				return err
			}
			return runJob(cmd, rt.runner, job)
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Model quality key (default from config)")
	cmd.Flags().StringVar(&compute, "compute", "", "Compute precision key (default from config)")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <ref>",
		Short: "Continue the job stored with an existing blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime(true)
			if err != nil {
				return err
			}
			defer rt.Close()

			job, err := rt.runner.BeginJob(cmd.Context(), tracker.ExternalSource(strings.TrimSpace(args[0])))
			if err != nil {
				return err
			}
			record := rt.runner.CurrentState(job)
			if record.Status.IsTerminal() {
				fmt.Fprintln(cmd.OutOrStdout(), renderStatusLine(args[0], kindForStatus(record.Status),
					"already "+record.Status.DisplayName(), shouldColorize(cmd.OutOrStdout())))
				return nil
			}
			return runJob(cmd, rt.runner, job)
		},
	}
}

// runJob drives job to a terminal status, printing each step as it lands.
func runJob(cmd *cobra.Command, runner *workflow.Runner, job *workflow.Job) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for {
		status, err := runner.Advance(cmd.Context(), job)
		record := runner.CurrentState(job)
		fmt.Fprintln(out, renderStatusLine(status.DisplayName(), kindForStatus(status), record.Comment, colorize))
		if status == tracker.StatusTranscriptionFailed {
			return fmt.Errorf("transcription failed: %s", record.Comment)
		}
		if err != nil {
			return err
		}
		if status.IsTerminal() {
			if record.TranscriptName != "" {
				fmt.Fprintf(out, "Transcript: %s\n", record.TranscriptName)
			}
			return nil
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
