package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"empathy-assessment-service/internal/config"
	"empathy-assessment-service/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRunCmd administers one assessment in-process against the configured subject.
func NewRunCmd(v *viper.Viper) *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one assessment against the configured subject and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v.GetString("config"))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rt, err := buildRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			session, err := rt.service.Start(ctx, agentID)
			if err != nil {
				return err
			}
			_, runErr := rt.service.Run(ctx, session.ID())
			snap := session.Snapshot()

			out := cmd.OutOrStdout()
			if v.GetBool("json") {
				if err := printJSON(out, snap); err != nil {
					return err
				}
			} else {
				renderRun(out, snap)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "local-agent", "identifier of the agent under test")
	return cmd
}

func renderRun(out io.Writer, snap domain.Snapshot) {
	items := table.NewWriter()
	items.SetOutputMirror(out)
	items.AppendHeader(table.Row{"Item", "Subscale", "Input", "Emotion", "Perspective", "Mirroring", "Context", "Score", "Reversed"})
	ids := make([]int, 0, len(snap.Results))
	for id := range snap.Results {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		res := snap.Results[id]
		items.AppendRow(table.Row{
			res.ItemID, res.Subscale, res.Input,
			fmt.Sprintf("%.3f", res.Features.EmotionalRecognition),
			fmt.Sprintf("%.3f", res.Features.PerspectiveTaking),
			fmt.Sprintf("%.3f", res.Features.EmotionalMirroring),
			fmt.Sprintf("%.3f", res.Features.ContextualUnderstanding),
			res.ItemScore, res.Reversed,
		})
	}
	items.Render()

	if snap.Report != nil {
		renderReport(out, snap.SessionID, *snap.Report)
	}
}

func renderReport(out io.Writer, sessionID string, report domain.ScoreReport) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetTitle(fmt.Sprintf("Assessment %s (%s scale)", sessionID, report.Scale))
	tw.AppendHeader(table.Row{"Subscale", "Score", "Answered", "Note"})
	degraded := make(map[domain.Subscale]bool, len(report.Degraded))
	for _, s := range report.Degraded {
		degraded[s] = true
	}
	for _, s := range domain.Subscales() {
		note := ""
		if degraded[s] {
			note = "no answers (sentinel)"
		}
		tw.AppendRow(table.Row{s, report.SubscaleScore(s), report.ItemsAnswered[s], note})
	}
	tw.AppendFooter(table.Row{"Total", report.TotalScore, fmt.Sprintf("%d/%d", report.ItemsCompleted, report.TotalItems), stopNote(report)})
	tw.Render()
}

func stopNote(report domain.ScoreReport) string {
	if report.Complete {
		return "complete"
	}
	if report.StopReason != "" {
		return "incomplete: " + report.StopReason
	}
	return "incomplete"
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
