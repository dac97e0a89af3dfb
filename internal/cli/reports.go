package cli

import (
	"fmt"
	"io"

	"empathy-assessment-service/internal/config"
	pginfra "empathy-assessment-service/internal/infra/postgres"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewReportsCmd lists archived assessments from Postgres.
func NewReportsCmd(v *viper.Viper) *cobra.Command {
	var (
		agentID string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List archived assessment reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v.GetString("config"))
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			db := openBun(cfg)
			defer db.Close()

			rows, err := pginfra.NewReportStore(db).ListReports(cmd.Context(), agentID, limit)
			if err != nil {
				return err
			}
			if v.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			renderReportRows(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "only list reports for this agent")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reports")
	return cmd
}

func renderReportRows(out io.Writer, rows []pginfra.ReportRow) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Session", "Agent", "Status", "Mode", "Items", "Total", "Finished"})
	for _, r := range rows {
		status := r.Status
		if !r.Complete && r.StopReason != "" {
			status += " (" + r.StopReason + ")"
		}
		tw.AppendRow(table.Row{
			r.SessionID, r.AgentID, status, r.Mode,
			fmt.Sprintf("%d/%d", r.ItemsCompleted, r.TotalItems),
			r.TotalScore, r.FinishedAt.Format("2006-01-02 15:04:05"),
		})
	}
	tw.Render()
}
