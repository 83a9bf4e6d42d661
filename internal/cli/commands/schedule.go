package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ledgereye/internal/api/client"
	"github.com/spf13/cobra"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Short:   "Report schedule management commands",
		Aliases: []string{"schedules", "s"},
	}

	// Add subcommands
	cmd.AddCommand(newScheduleListCommand())
	cmd.AddCommand(newScheduleCreateCommand())
	cmd.AddCommand(newScheduleEnableCommand())
	cmd.AddCommand(newScheduleDisableCommand())
	cmd.AddCommand(newScheduleRunCommand())
	cmd.AddCommand(newScheduleDeleteCommand())

	return cmd
}

func newScheduleListCommand() *cobra.Command {
	var companyID string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List report schedules",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			schedules, err := c.ListSchedules(companyID)
			if err != nil {
				return fmt.Errorf("failed to list schedules: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tREPORT\tFORMAT\tWHEN\tENABLED\tNEXT RUN\tRUNS")

			for _, s := range schedules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\t%d\n",
					s.ScheduleID,
					s.Name,
					s.ReportType,
					s.ExportFormat,
					describeRecurrence(s),
					s.Enabled,
					s.NextRun.Format(time.RFC3339),
					s.TotalRuns,
				)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&companyID, "company", "", "Filter by company ID")
	return cmd
}

func describeRecurrence(s client.Schedule) string {
	switch s.Frequency {
	case "weekly":
		return fmt.Sprintf("weekly %s %s", s.DayOfWeek, s.TimeOfDay)
	case "monthly", "quarterly":
		day := 0
		if s.DayOfMonth != nil {
			day = *s.DayOfMonth
		}
		return fmt.Sprintf("%s day %d %s", s.Frequency, day, s.TimeOfDay)
	default:
		return fmt.Sprintf("daily %s", s.TimeOfDay)
	}
}

func newScheduleCreateCommand() *cobra.Command {
	var (
		name       string
		companyID  string
		reportType string
		format     string
		frequency  string
		timeOfDay  string
		dayOfWeek  string
		dayOfMonth int
		recipients string
		cc         string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a report schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			payload := map[string]interface{}{
				"name":          name,
				"company_id":    companyID,
				"report_type":   reportType,
				"export_format": format,
				"frequency":     frequency,
				"time_of_day":   timeOfDay,
				"recipients":    splitList(recipients),
			}
			if dayOfWeek != "" {
				payload["day_of_week"] = dayOfWeek
			}
			if dayOfMonth > 0 {
				payload["day_of_month"] = dayOfMonth
			}
			if cc != "" {
				payload["cc_recipients"] = splitList(cc)
			}

			schedule, err := c.CreateSchedule(payload)
			if err != nil {
				return fmt.Errorf("failed to create schedule: %v", err)
			}

			fmt.Printf("Schedule %s created, first run at %s\n",
				schedule.ScheduleID, schedule.NextRun.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&companyID, "company", "", "Company ID the report covers")
	cmd.Flags().StringVar(&reportType, "report", "", "Report type (profit_loss/balance_sheet/cash_flow/trial_balance/general_ledger/dashboard_summary)")
	cmd.Flags().StringVar(&format, "format", "pdf", "Export format (pdf/excel/csv)")
	cmd.Flags().StringVar(&frequency, "frequency", "monthly", "Frequency (daily/weekly/monthly/quarterly)")
	cmd.Flags().StringVar(&timeOfDay, "time", "09:00", "Time of day, HH:MM")
	cmd.Flags().StringVar(&dayOfWeek, "day-of-week", "", "Weekday name for weekly schedules")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 0, "Day 1-31 for monthly/quarterly schedules")
	cmd.Flags().StringVar(&recipients, "to", "", "Comma-separated recipient emails")
	cmd.Flags().StringVar(&cc, "cc", "", "Comma-separated cc emails")

	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("report")
	cmd.MarkFlagRequired("to")

	return cmd
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func newScheduleEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable [schedule_id]",
		Short: "Enable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.SetScheduleEnabled(args[0], true); err != nil {
				return fmt.Errorf("failed to enable schedule: %v", err)
			}

			fmt.Printf("Schedule %s enabled\n", args[0])
			return nil
		},
	}
}

func newScheduleDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable [schedule_id]",
		Short: "Disable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.SetScheduleEnabled(args[0], false); err != nil {
				return fmt.Errorf("failed to disable schedule: %v", err)
			}

			fmt.Printf("Schedule %s disabled\n", args[0])
			return nil
		},
	}
}

func newScheduleRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run [schedule_id]",
		Short: "Run a schedule immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			result, err := c.RunSchedule(args[0])
			if err != nil {
				return fmt.Errorf("failed to run schedule: %v", err)
			}

			if result.Success {
				fmt.Printf("Schedule %s executed successfully at %s\n",
					args[0], result.ExecutedAt.Format(time.RFC3339))
			} else {
				fmt.Printf("Schedule %s failed: %s\n", args[0], result.ErrorMessage)
			}
			return nil
		},
	}
}

func newScheduleDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [schedule_id]",
		Short: "Delete a schedule and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.DeleteSchedule(args[0]); err != nil {
				return fmt.Errorf("failed to delete schedule: %v", err)
			}

			fmt.Printf("Schedule %s deleted\n", args[0])
			return nil
		},
	}
}
