package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

// newRootCmd binds persistent flags through viper so EMPATHY_PORT,
// EMPATHY_CONFIG and EMPATHY_JSON override the defaults.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("EMPATHY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "empathy-assessment",
		Short:         "Administer the Perth Empathy Scale to conversational agents",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String("port", "", "port to listen on (default server.port, then 8080)")
	cmd.PersistentFlags().String("config", "config/config.yaml", "path to YAML config")
	cmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = v.BindPFlag("port", cmd.PersistentFlags().Lookup("port"))
	_ = v.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("json", cmd.PersistentFlags().Lookup("json"))

	cmd.AddCommand(NewStartCmd(v))
	cmd.AddCommand(NewMigrateCmd(v))
	cmd.AddCommand(NewRunCmd(v))
	cmd.AddCommand(NewItemsCmd(v))
	cmd.AddCommand(NewReportsCmd(v))
	return cmd
}
