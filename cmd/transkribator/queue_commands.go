package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"transkribator/internal/api"
	"transkribator/internal/pipeline"
	"transkribator/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueReleaseCommand(ctx))
	queueCmd.AddCommand(newQueueEnqueueCommand(ctx))
	queueCmd.AddCommand(newQueueEnqueueMediaCommand(ctx))

	return queueCmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store queue.Store) error {
				stats, err := api.NewJobService(store).Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stats)
				}
				if stats.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					buildStatsRows(stats),
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		jobTypes []string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := queue.ListFilter{JobTypes: jobTypes, Limit: limit}
			for _, raw := range statuses {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q (expected one of %s)", raw, statusList())
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withStore(cmd.Context(), func(store queue.Store) error {
				items, err := api.NewJobService(store).List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				items = api.SortJobsNewestFirst(items)
				if asJSON {
					return writeJSON(cmd, api.JobListResponse{Jobs: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Type", "Status", "Progress", "Attempts", "Worker", "Created"},
					buildListRows(items, shouldColorize(out)),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringSliceVarP(&jobTypes, "type", "t", nil, "Filter by job type (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of jobs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(store queue.Store) error {
				item, err := api.NewJobService(store).Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if asJSON {
					return writeJSON(cmd, item)
				}
				printJob(cmd, *item)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newQueueReleaseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "release <id>...",
		Short: "Return in-progress jobs to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseJobID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withStore(cmd.Context(), func(store queue.Store) error {
				result, err := api.ReleaseJobsByID(cmd.Context(), api.NewStoreActions(store), ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, job := range result.Jobs {
					switch job.Outcome {
					case api.ReleaseUpdated:
						fmt.Fprintf(out, "Job %d released\n", job.ID)
					case api.ReleaseNotFound:
						fmt.Fprintf(out, "Job %d not found\n", job.ID)
					default:
						fmt.Fprintf(out, "Job %d is %s; not released\n", job.ID, job.PriorStatus)
					}
				}
				fmt.Fprintf(out, "Released %d job(s)\n", result.UpdatedCount)
				return nil
			})
		},
	}
}

func newQueueEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		jobType string
		userID  int64
		noteID  int64
		payload string
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a job with a raw JSON payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobType = strings.TrimSpace(jobType)
			if jobType == "" {
				return errors.New("--type is required")
			}
			params := queue.EnqueueParams{UserID: userID, JobType: jobType}
			if payload != "" {
				if !json.Valid([]byte(payload)) {
					return errors.New("--payload must be valid JSON")
				}
				params.Payload = json.RawMessage(payload)
			}
			if cmd.Flags().Changed("note-id") {
				params.NoteID = &noteID
			}
			return ctx.withStore(cmd.Context(), func(store queue.Store) error {
				job, err := store.Enqueue(cmd.Context(), params)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued job %d (%s)\n", job.ID, job.JobType)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&jobType, "type", "t", "", "Job type")
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "Owning user id")
	cmd.Flags().Int64Var(&noteID, "note-id", 0, "Associated note id")
	cmd.Flags().StringVarP(&payload, "payload", "p", "", "JSON payload")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newQueueEnqueueMediaCommand(ctx *commandContext) *cobra.Command {
	var (
		userID    int64
		chatID    int64
		messageID int64
		noteID    int64
		payload   pipeline.MediaPayload
	)

	cmd := &cobra.Command{
		Use:   "enqueue-media",
		Short: "Enqueue a media processing job",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("chat-id") {
				payload.ChatID = &chatID
			}
			if flags.Changed("message-id") {
				payload.MessageID = &messageID
			}
			if flags.Changed("note-id") {
				payload.NoteID = &noteID
			}
			return ctx.withStore(cmd.Context(), func(store queue.Store) error {
				job, err := pipeline.EnqueueMedia(cmd.Context(), store, userID, payload)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued job %d (%s)\n", job.ID, job.JobType)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "Owning user id")
	cmd.Flags().StringVar(&payload.FileID, "file-id", "", "Telegram file id")
	cmd.Flags().StringVar(&payload.FileUniqueID, "file-unique-id", "", "Telegram file unique id")
	cmd.Flags().StringVar(&payload.FileName, "file-name", "", "Original file name")
	cmd.Flags().Int64Var(&chatID, "chat-id", 0, "Chat to deliver the transcript to")
	cmd.Flags().Int64Var(&messageID, "message-id", 0, "Source message id")
	cmd.Flags().Int64Var(&noteID, "note-id", 0, "Associated note id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("file-id")
	return cmd
}

func parseJobID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", raw)
	}
	return id, nil
}

func statusList() string {
	names := make([]string, 0, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}
