package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/pgready/internal/envcheck"
	"github.com/vvka-141/pgready/internal/tui"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Validate environment variables without contacting the database",
	Long: `Env runs only the environment validation step of 'pgready check':
required variables, DATABASE_URL structure, secret strength, base URLs,
optional integrations and placeholder values.

Missing optional integrations are warnings; everything else that is wrong
is an error and produces exit code 10.`,
	Example: `  pgready env
  pgready env --production --env-file .env.production --output json`,
	Args: cobra.NoArgs,
	RunE: runEnv,
}

type envFlagValues struct {
	env    environmentFlags
	output string
}

var envFlags envFlagValues

func init() {
	rootCmd.AddCommand(envCmd)
	registerEnvironmentFlags(envCmd, &envFlags.env)
	envCmd.Flags().StringVarP(&envFlags.output, "output", "o", outputText,
		"Report format: text or json")
	_ = envCmd.RegisterFlagCompletionFunc("output", completeOutputFormats)
}

// resetEnvFlags restores flag defaults between tests.
func resetEnvFlags() {
	envFlags = envFlagValues{output: outputText}
}

func runEnv(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	if err := validateOutputFormat(envFlags.output); err != nil {
		return err
	}

	cfg, err := loadProjectConfig(envFlags.env.configPath, verbose)
	if err != nil {
		return err
	}
	lookup, err := buildLookup(envFlags.env.envFiles, verbose)
	if err != nil {
		return err
	}
	production := resolveProduction(envFlags.env.production, cfg, lookup)

	report := envcheck.New(lookup, production, envcheck.WithRequired(cfg.Required...)).Validate()

	out := cmd.OutOrStdout()
	if envFlags.output == outputJSON {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, tui.RenderEnvironment(report))
	}
	return report.Err()
}
