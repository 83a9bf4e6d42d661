package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ledgereye/internal/api/client"
	"github.com/spf13/cobra"
)

func NewHistoryCommand() *cobra.Command {
	var (
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:     "history [schedule_id]",
		Short:   "Show a schedule's execution history",
		Aliases: []string{"h"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			result, err := c.ScheduleHistory(args[0], page, pageSize)
			if err != nil {
				return fmt.Errorf("failed to fetch history: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "EXECUTED AT\tREPORT\tFORMAT\tRECIPIENTS\tRESULT\tERROR")

			for _, item := range result.Items {
				status := "Success"
				if !item.Success {
					status = "Failed"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					item.ExecutedAt.Format(time.RFC3339),
					item.ReportType,
					item.ExportFormat,
					item.RecipientsCount,
					status,
					item.ErrorMessage,
				)
			}

			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Printf("\nPage %d (%d total executions)\n", result.Page, result.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Executions per page")

	return cmd
}
