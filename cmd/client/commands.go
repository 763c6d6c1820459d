package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"discord-chat-manager/internal/adapters/exporter"
	"discord-chat-manager/internal/apiclient"
	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/server/usecase"
)

func newSearchCmd() *cobra.Command {
	var target targetFlags
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search messages of a guild, channel or DM",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := target.request()
			if err != nil {
				return err
			}
			return cli.runJob(cmd.Context(), "search", req, true)
		},
	}
	target.register(cmd)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var (
		target targetFlags
		cfg    domain.DeleteConfig
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete messages, attachments or reactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := target.request()
			if err != nil {
				return err
			}
			if !cfg.Attachments && !cfg.Messages && !cfg.Reactions {
				return errors.New("укажите --messages, --attachments или --reactions")
			}
			if !yes && !cli.confirm("Delete matching messages?") {
				return nil
			}
			return cli.runJob(cmd.Context(), "delete", usecase.DeleteRequest{SearchRequest: req, Config: cfg}, false)
		},
	}
	target.register(cmd)
	fs := cmd.Flags()
	fs.BoolVar(&cfg.Messages, "messages", false, "delete message text")
	fs.BoolVar(&cfg.Attachments, "attachments", false, "delete attachments")
	fs.BoolVar(&cfg.Reactions, "reactions", false, "remove reactions")
	fs.StringSliceVar(&cfg.ReactingUserIDs, "reacting-user", nil, "users whose reactions are removed")
	fs.StringSliceVar(&cfg.Emojis, "emoji", nil, "emojis to remove (name or name:id)")
	fs.BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newEditCmd() *cobra.Command {
	var (
		target targetFlags
		text   string
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Replace the text of matching messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := target.request()
			if err != nil {
				return err
			}
			if text == "" {
				return errors.New("укажите --text")
			}
			if !yes && !cli.confirm("Edit matching messages?") {
				return nil
			}
			return cli.runJob(cmd.Context(), "edit", usecase.EditRequest{SearchRequest: req, Text: text}, false)
		},
	}
	target.register(cmd)
	cmd.Flags().StringVar(&text, "text", "", "replacement text")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	var (
		guilds   []string
		channels []string
		criteria criteriaFlags
		yes      bool
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove your messages from guilds and DMs",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := criteria.criteria()
			if err != nil {
				return err
			}
			if len(guilds) == 0 && len(channels) == 0 {
				return errors.New("укажите --guild или --channel")
			}
			if !yes && !cli.confirm(fmt.Sprintf("Purge %d guild(s) and %d DM(s)?", len(guilds), len(channels))) {
				return nil
			}
			return cli.runJob(cmd.Context(), "purge", usecase.PurgeRequest{GuildIDs: guilds, ChannelIDs: channels, Criteria: c}, false)
		},
	}
	cmd.Flags().StringSliceVar(&guilds, "guild", nil, "guild IDs")
	cmd.Flags().StringSliceVar(&channels, "channel", nil, "DM channel IDs")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	criteria.register(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		target targetFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export messages with media into an archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := target.request()
			if err != nil {
				return err
			}
			return cli.runJob(cmd.Context(), "export", usecase.ExportRequest{SearchRequest: req, Format: domain.ExportFormat(format)}, false)
		},
	}
	target.register(cmd)
	cmd.Flags().StringVar(&format, "format", "", "json, csv, html or xlsx (server default when empty)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show task status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := cli.api.GetTaskStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s: %s %s\n", status.TaskID, status.Kind, status.Status, status.StatusText)
			if status.ErrorMessage != "" {
				fmt.Printf("error: %s\n", status.ErrorMessage)
			}
			return nil
		},
	}
}

func newResultCmd() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "result [task-id]",
		Short: "Print a page of a finished task result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.printResult(cmd.Context(), args[0], page, true)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "result page")
	return cmd
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [task-id]",
		Short: "Stop a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.api.CancelTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Cancellation requested.")
			return nil
		},
	}
}

// runJob запускает задачу, следит за ней и печатает результат. Ctrl+C отменяет задачу на сервере.
func (a *app) runJob(parent context.Context, kind string, req any, showMessages bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	started, err := a.api.StartTask(ctx, kind, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Task %s started\n", started.TaskID)

	var (
		lastText string
		seen     int
	)
	_, err = a.api.WaitTask(ctx, started.TaskID, a.cfg.PollInterval, func(s *apiclient.TaskStatusResponse) {
		if s.StatusText != "" && s.StatusText != lastText {
			lastText = s.StatusText
			fmt.Fprintln(os.Stderr, s.StatusText)
		}
		fresh := min(s.NotificationsTotal-seen, len(s.Notifications))
		if fresh > 0 {
			for _, n := range s.Notifications[len(s.Notifications)-fresh:] {
				fmt.Fprintf(os.Stderr, "! %s\n", n.Message)
			}
		}
		seen = s.NotificationsTotal
	})
	if errors.Is(err, context.Canceled) {
		if cancelErr := a.api.CancelTask(context.Background(), started.TaskID); cancelErr != nil {
			return fmt.Errorf("failed to cancel task %s: %w", started.TaskID, cancelErr)
		}
		fmt.Fprintf(os.Stderr, "Task %s cancelled\n", started.TaskID)
		return nil
	}
	if err != nil {
		return err
	}

	return a.printResult(context.Background(), started.TaskID, 1, showMessages)
}

func (a *app) printResult(ctx context.Context, taskID string, page int, showMessages bool) error {
	res, err := a.api.GetTaskResult(ctx, taskID, page, a.cfg.PageSize)
	if err != nil {
		return err
	}

	if showMessages || len(res.Data) > 0 {
		console := exporter.NewConsoleExporter(os.Stdout, a.cfg.Render.Author, a.cfg.Render.Content)
		if err := console.Export(res.Data, res.Pagination.TotalItems); err != nil {
			return err
		}
		if res.Pagination.TotalPages > 1 {
			fmt.Printf("Page %d of %d\n", res.Pagination.CurrentPage, res.Pagination.TotalPages)
		}
	}
	if len(res.Result) > 0 && string(res.Result) != "null" {
		fmt.Printf("Result (%s): %s\n", res.Status, res.Result)
		printArchive(res.Result)
	}
	return nil
}

// printArchive печатает расположение и размер архива, если итог - отчет экспорта.
func printArchive(raw json.RawMessage) {
	var report struct {
		Location string `json:"location"`
		Bytes    int64  `json:"bytes"`
	}
	if err := json.Unmarshal(raw, &report); err != nil || report.Location == "" {
		return
	}
	fmt.Printf("Archive: %s (%s)\n", report.Location, humanize.Bytes(uint64(report.Bytes)))
}

func (a *app) confirm(question string) bool {
	ok, err := a.term.Confirm(question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "confirmation failed: %v\n", err)
		return false
	}
	return ok
}
