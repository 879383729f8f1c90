package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/devapi/pkg/audit"
	"github.com/newtron-network/devapi/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View the audit log of device operations.

Every configure, delete, list and dry-run toggle is logged with:
  - Timestamp
  - Device affected
  - Operation performed
  - Outcome (applied, dry run, failed)
  - Client address

Examples:
  devapi audit list --device 192.0.2.1
  devapi audit list --last 24h
  devapi audit list --operation delete_loopback --failures`,
}

var (
	auditDevice    string
	auditOperation string
	auditLast      string
	auditLimit     int
	auditFailures  bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if appSettings.Audit.Path == "" {
			return fmt.Errorf("no audit log configured: set audit.path or DEVAPI_AUDIT_LOG")
		}

		filter := audit.Filter{
			Device:      auditDevice,
			Operation:   auditOperation,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		logger, err := audit.NewFileLogger(appSettings.Audit.Path, audit.RotationConfig{})
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer logger.Close()

		events, err := logger.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(events)
		}

		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No audit events found")
			return nil
		}

		t := cli.NewTable(cmd.OutOrStdout(), "TIMESTAMP", "DEVICE", "OPERATION", "STATUS", "DURATION", "CLIENT")
		for _, event := range events {
			t.Row(
				event.Timestamp.Format("2006-01-02 15:04:05"),
				dashIfEmpty(event.Device),
				event.Operation,
				eventStatus(event),
				event.Duration.Round(time.Millisecond).String(),
				dashIfEmpty(event.ClientIP),
			)
		}
		return t.Flush()
	},
}

func eventStatus(event *audit.Event) string {
	switch {
	case event.DryRun:
		return yellow("dry-run")
	case !event.Success:
		if event.Kind != "" {
			return red("failed") + " (" + string(event.Kind) + ")"
		}
		return red("failed")
	default:
		return green("ok")
	}
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	auditListCmd.Flags().StringVar(&auditDevice, "device", "", "Filter by device host")
	auditListCmd.Flags().StringVar(&auditOperation, "operation", "", "Filter by operation")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 30m, 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")

	auditCmd.AddCommand(auditListCmd)
}
