package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X github.com/user/layered-api-go/cmd/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "layered-api %s (commit %s, %s)\n", Version, Commit, runtime.Version())
		},
	}
}
