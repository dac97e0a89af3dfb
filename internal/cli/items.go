package cli

import (
	"fmt"
	"io"

	"empathy-assessment-service/internal/config"
	"empathy-assessment-service/internal/domain"
	pginfra "empathy-assessment-service/internal/infra/postgres"
	"empathy-assessment-service/internal/itembank"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewItemsCmd lists the item bank and seeds it into Postgres.
func NewItemsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List the assessment item bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v.GetString("config"))
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			items, err := rt.items.LoadItems(cmd.Context())
			if err != nil {
				return err
			}
			bank, err := itembank.New(items)
			if err != nil {
				return err
			}
			if v.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), bank.Items())
			}
			renderItems(cmd.OutOrStdout(), bank.Items())
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Upsert the built-in item bank into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v.GetString("config"))
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			items := itembank.Default()
			if err := pginfra.NewItemLoader(pool).SeedItems(cmd.Context(), items); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d items\n", len(items))
			return nil
		},
	})
	return cmd
}

func renderItems(out io.Writer, items []domain.AssessmentItem) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"ID", "Subscale", "Reverse", "Prompt"})
	for _, item := range items {
		tw.AppendRow(table.Row{item.ID, item.Subscale, item.ReverseScored, item.PromptText})
	}
	tw.Render()
}
