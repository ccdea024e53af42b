package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jerry-enebeli/offline"
	apimodel "github.com/jerry-enebeli/offline/api/model"
	"github.com/jerry-enebeli/offline/model"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// queueCommands inspects and drives the persisted queue from the command line.
func queueCommands(app *offlineInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "inspect and manage queued actions",
	}

	cmd.AddCommand(queueListCommand(app))
	cmd.AddCommand(queueEnqueueCommand(app))
	cmd.AddCommand(queueProcessCommand(app))
	cmd.AddCommand(queueRetryCommand(app))
	cmd.AddCommand(queueRemoveCommand(app))
	cmd.AddCommand(queueClearCommand(app))

	return cmd
}

func queueListCommand(app *offlineInstance) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list queued actions in replay order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apimodel.ValidateStatus(status); err != nil {
				return err
			}
			queue := app.offline.Queue()
			if status != "" {
				return printJSON(cmd.OutOrStdout(), queue.GetActionsByStatus(model.ActionStatus(status)))
			}
			return printJSON(cmd.OutOrStdout(), queue.GetQueue())
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only list actions with this status")
	return cmd
}

func queueEnqueueCommand(app *offlineInstance) *cobra.Command {
	var (
		req        apimodel.EnqueueAction
		actionType string
		payload    string
		priority   int
		maxRetries int
	)
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "record a mutation for later replay",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Type = model.ActionType(actionType)
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &req.Payload); err != nil {
					return fmt.Errorf("invalid payload: %w", err)
				}
			}
			if cmd.Flags().Changed("priority") {
				req.Priority = &priority
			}
			if cmd.Flags().Changed("max-retries") {
				req.MaxRetries = &maxRetries
			}
			if err := req.ValidateEnqueueAction(); err != nil {
				return err
			}

			id := app.offline.Queue().Enqueue(cmd.Context(), req.Type, req.Endpoint, req.Payload, req.Method, req.ToOptions())
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&actionType, "type", "", "CREATE, UPDATE, DELETE or PATCH")
	cmd.Flags().StringVar(&req.Endpoint, "endpoint", "", "path or URL the action is replayed against")
	cmd.Flags().StringVar(&req.Method, "method", "", "HTTP method, defaults by type")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON object sent as the request body")
	cmd.Flags().IntVar(&priority, "priority", 0, "higher replays first")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "attempts before the action fails for good")
	cmd.Flags().StringVar(&req.TempID, "temp-id", "", "temp id of the entity a CREATE makes")
	cmd.Flags().StringVar(&req.DedupeKey, "dedupe-key", "", "coalesce with a pending action carrying the same key")
	return cmd
}

func queueProcessCommand(app *offlineInstance) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "replay pending actions now",
		RunE: func(cmd *cobra.Command, args []string) error {
			results := app.offline.Queue().ProcessQueue(cmd.Context())
			if results == nil {
				results = []model.SyncResult{}
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
}

func queueRetryCommand(app *offlineInstance) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "move failed actions with retries left back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue := app.offline.Queue()
			queue.RetryAll(cmd.Context())
			return printJSON(cmd.OutOrStdout(), queue.Stats())
		},
	}
}

func queueRemoveCommand(app *offlineInstance) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "remove an action from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.offline.Queue().Dequeue(cmd.Context(), args[0]) {
				return fmt.Errorf("action %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func queueClearCommand(app *offlineInstance) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "prune synced, failed or all actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := apimodel.ParseClearScope(scope)
			if err != nil {
				return err
			}
			removed := clearQueue(cmd, app.offline.Queue(), s)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d actions\n", removed)
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "synced", "synced, failed or all")
	return cmd
}

func clearQueue(cmd *cobra.Command, queue *offline.QueueManager, scope apimodel.ClearScope) int {
	switch scope {
	case apimodel.ScopeFailed:
		return queue.ClearFailed(cmd.Context())
	case apimodel.ScopeAll:
		return queue.ClearAll(cmd.Context())
	default:
		return queue.ClearSynced(cmd.Context())
	}
}
