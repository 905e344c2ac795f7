package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jw6ventures/powerchat/internal/config"
	"github.com/jw6ventures/powerchat/internal/ics"
	"github.com/jw6ventures/powerchat/internal/store"
)

// openStore connects to the configured database. Tests swap it for a fake.
var openStore = func(ctx context.Context) (*store.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("create db pool: %w", err)
	}
	return store.New(pool), pool.Close, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "powerchatctl",
		Short:        "Operate a PowerChat deployment",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd(), icsCmd(), taskCmd())
	return root
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func icsCmd() *cobra.Command {
	var (
		params ics.MeetingParameters
		uid    string
		zone   string
	)
	cmd := &cobra.Command{
		Use:     "ics",
		Short:   "Print a calendar event document",
		Example: "  powerchatctl ics --date 2025-03-20 --time 09:00 --name \"Quarterly Review\"",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(zone)
			if err != nil {
				return fmt.Errorf("timezone %q: %w", zone, err)
			}
			if uid == "" {
				uid = uuid.NewString()
			}
			doc, err := ics.Build(uid, params, loc)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), doc)
			return err
		},
	}
	cmd.Flags().StringVar(&params.Date, "date", "", "Meeting date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&params.Time, "time", "", "Start time (HH:mm)")
	cmd.Flags().StringVar(&params.MeetingName, "name", "", "Meeting name")
	cmd.Flags().StringVar(&params.MeetingContext, "context", "", "Optional description")
	cmd.Flags().StringVar(&uid, "uid", "", "Event UID (random when empty)")
	cmd.Flags().StringVar(&zone, "tz", "UTC", "Timezone of --date and --time")
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect assistant tasks",
	}
	cmd.AddCommand(taskShowCmd())
	return cmd
}

type taskView struct {
	ID           string         `yaml:"id" json:"id"`
	UserID       int64          `yaml:"user_id" json:"user_id"`
	Type         string         `yaml:"type" json:"type"`
	InvocationID string         `yaml:"invocation_id,omitempty" json:"invocation_id,omitempty"`
	Status       string         `yaml:"status" json:"status"`
	CreatedAt    time.Time      `yaml:"created_at" json:"created_at"`
	Parameters   map[string]any `yaml:"parameters" json:"parameters"`
	Result       any            `yaml:"result,omitempty" json:"result,omitempty"`
}

func taskShowCmd() *cobra.Command {
	var (
		format  string
		withICS bool
	)
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored task and its calendar document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			task, err := st.Tasks.GetByID(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("task %s not found", args[0])
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := writeTask(out, format, task); err != nil {
				return err
			}
			if !withICS {
				return nil
			}

			var params ics.MeetingParameters
			_ = json.Unmarshal(task.Parameters, &params)
			doc, err := ics.Build(task.ID, params, nil)
			if err != nil {
				fmt.Fprintf(out, "# no calendar document: %v\n", err)
				return nil
			}
			fmt.Fprintln(out, "---")
			_, err = io.WriteString(out, doc)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "Output format: yaml or json")
	cmd.Flags().BoolVar(&withICS, "ics", true, "Also print the calendar document")
	return cmd
}

func writeTask(w io.Writer, format string, task *store.Task) error {
	view := taskView{
		ID:           task.ID,
		UserID:       task.UserID,
		Type:         task.TaskType,
		InvocationID: task.InvocationID,
		Status:       string(task.Status),
		CreatedAt:    task.CreatedAt.UTC(),
	}
	if len(task.Parameters) > 0 {
		if err := json.Unmarshal(task.Parameters, &view.Parameters); err != nil {
			return fmt.Errorf("decode parameters: %w", err)
		}
	}
	if len(task.Result) > 0 {
		if err := json.Unmarshal(task.Result, &view.Result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
