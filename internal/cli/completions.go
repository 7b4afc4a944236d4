package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/vvka-141/pgready/internal/logging"
)

// authMethods contains the values accepted by --auth-method.
var authMethods = []string{"standard", "aws", "google", "azure"}

// completeAuthMethods provides shell completion for --auth-method.
func completeAuthMethods(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return matchPrefix(authMethods, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeOutputFormats provides shell completion for --output.
func completeOutputFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return matchPrefix([]string{outputText, outputJSON}, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeExportFormats provides shell completion for --export.
func completeExportFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	formats := []string{string(logging.FormatJSON), string(logging.FormatCSV)}
	return matchPrefix(formats, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func matchPrefix(values []string, toComplete string) []string {
	var matches []string
	for _, v := range values {
		if strings.HasPrefix(v, toComplete) {
			matches = append(matches, v)
		}
	}
	return matches
}
