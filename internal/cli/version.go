package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "bootci version %s\n", orDefault(a.versionInfo.Version, "dev"))
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", orDefault(a.versionInfo.Commit, "unknown"))
			fmt.Fprintf(cmd.OutOrStdout(), "built: %s\n", orDefault(a.versionInfo.Date, "unknown"))
			return nil
		},
	}
}

func (a *App) versionString() string {
	v := orDefault(a.versionInfo.Version, "dev")
	if v == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", v, orDefault(a.versionInfo.Commit, "unknown"), orDefault(a.versionInfo.Date, "unknown"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
