package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/makeasinger/studio/internal/model"
)

const defaultLyrics = "Ami tomay bhalobashi\nKeno je mon amar hasi"

type songFlags struct {
	tempo       int
	key         string
	style       string
	lyrics      string
	instruments []string
}

func (f *songFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.tempo, "tempo", 90, "Tempo in BPM")
	cmd.Flags().StringVar(&f.key, "key", "A minor", "Musical key")
	cmd.Flags().StringVar(&f.style, "style", "Romantic", "Song style")
	cmd.Flags().StringVar(&f.lyrics, "lyrics", defaultLyrics, "Lyrics, one line per sung phrase")
	cmd.Flags().StringSliceVar(&f.instruments, "instruments", []string{"Piano", "Strings"}, "Instruments to generate stems for")
}

func newProjectCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	var name string
	var durationSec int
	var song songFlags

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ctx.client().CreateProject(cmd.Context(), &model.ProjectCreateRequest{
				Name:        name,
				Tempo:       song.tempo,
				Key:         song.key,
				Style:       song.style,
				DurationSec: durationSec,
				Instruments: song.instruments,
				Lyrics:      song.lyrics,
			})
			if err != nil {
				return fmt.Errorf("create project: %w", err)
			}
			if *ctx.jsonOut {
				return writeJSON(cmd, model.ProjectCreateResponse{ProjectID: id})
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "E2E Test", "Project name")
	create.Flags().IntVar(&durationSec, "duration", 60, "Song duration in seconds")
	song.register(create)

	cmd.AddCommand(create)
	return cmd
}

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var projectID, voiceID, aspect string
	var lengthSec int
	var wait bool
	var song songFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Run the full song pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api := ctx.client()
			out := cmd.OutOrStdout()

			if projectID == "" {
				id, err := api.CreateProject(cmd.Context(), &model.ProjectCreateRequest{
					Name:        "E2E Test",
					Tempo:       song.tempo,
					Key:         song.key,
					Style:       song.style,
					Instruments: song.instruments,
					Lyrics:      song.lyrics,
				})
				if err != nil {
					return fmt.Errorf("create project: %w", err)
				}
				projectID = id
				if !*ctx.jsonOut {
					fmt.Fprintln(out, "Project:", projectID)
				}
			}

			submitted, err := api.CreateSong(cmd.Context(), &model.CreateRequest{
				ProjectID:      projectID,
				Tempo:          song.tempo,
				Key:            song.key,
				Style:          song.style,
				Lyrics:         song.lyrics,
				Instruments:    song.instruments,
				LengthSec:      lengthSec,
				VoiceProfileID: voiceID,
				AspectRatio:    aspect,
			})
			if err != nil {
				return fmt.Errorf("submit create job: %w", err)
			}
			if !wait {
				if *ctx.jsonOut {
					return writeJSON(cmd, submitted)
				}
				fmt.Fprintln(out, "Job:", submitted.JobID)
				return nil
			}
			if !*ctx.jsonOut {
				fmt.Fprintln(out, "Job:", submitted.JobID)
			}

			job, err := api.waitForJob(cmd.Context(), submitted.JobID, ctx.pollInterval, func(j *model.Job) {
				if !*ctx.jsonOut {
					fmt.Fprintln(out, progressLine(j))
				}
			})
			if err != nil {
				return fmt.Errorf("wait for job: %w", err)
			}
			if err := printJob(cmd, ctx, job); err != nil {
				return err
			}
			if job.Status == model.JobStatusError {
				return fmt.Errorf("job %s failed: %s", job.ID, job.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Existing project id (a new project is created when empty)")
	cmd.Flags().StringVar(&voiceID, "voice", "", "Voice profile id")
	cmd.Flags().StringVar(&aspect, "aspect", "", "Video aspect ratio")
	cmd.Flags().IntVar(&lengthSec, "length", 0, "Instrumental length in seconds")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the job finishes")
	song.register(cmd)

	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status <jobId>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := ctx.client()
			jobID := strings.TrimSpace(args[0])

			if !watch {
				job, err := api.JobStatus(cmd.Context(), jobID)
				if err != nil {
					return fmt.Errorf("get job: %w", err)
				}
				return printJob(cmd, ctx, job)
			}

			job, err := api.waitForJob(cmd.Context(), jobID, ctx.pollInterval, func(j *model.Job) {
				if !*ctx.jsonOut {
					fmt.Fprintln(cmd.OutOrStdout(), progressLine(j))
				}
			})
			if err != nil {
				return fmt.Errorf("watch job: %w", err)
			}
			return printJob(cmd, ctx, job)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll until the job finishes")

	return cmd
}

func newInFlightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inflight",
		Short: "List jobs that have not finished",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().InFlight(cmd.Context())
			if err != nil {
				return fmt.Errorf("list in-flight jobs: %w", err)
			}
			if *ctx.jsonOut {
				return writeJSON(cmd, resp)
			}
			if resp.Count == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs in flight")
				return nil
			}
			rows := make([][]string, 0, len(resp.Jobs))
			for i, id := range resp.Jobs {
				rows = append(rows, []string{strconv.Itoa(i + 1), id})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "Job"}, rows, []columnAlignment{alignRight, alignLeft}))
			return nil
		},
	}
}

func progressLine(j *model.Job) string {
	return fmt.Sprintf("status=%s progress=%d message=%s", j.Status, j.Progress, j.Message)
}

func printJob(cmd *cobra.Command, ctx *commandContext, job *model.Job) error {
	if *ctx.jsonOut {
		return writeJSON(cmd, job)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Job", "Type", "Status", "Progress", "Message"},
		[][]string{{job.ID, string(job.Type), string(job.Status), strconv.Itoa(job.Progress) + "%", job.Message}},
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))

	if len(job.Result) == 0 {
		return nil
	}
	keys := make([]string, 0, len(job.Result))
	for k := range job.Result {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, formatValue(job.Result[k])})
	}
	fmt.Fprintln(out, renderTable([]string{"Result", "Value"}, rows, nil))
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, "\n")
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
