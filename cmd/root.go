// Package cmd wires the command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/layered-api-go/cmd/export"
	"github.com/user/layered-api-go/cmd/serve"
	"github.com/user/layered-api-go/cmd/version"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "layered-api",
		Short: "Layered REST API server",
		Long: `A REST API with a layered handler, service and repository architecture.

Available commands:
  serve    - Start the HTTP server
  openapi  - Write the OpenAPI document without starting the server
  version  - Print version information

Examples:
  layered-api serve --config deployment.toml
  layered-api openapi --output docs/openapi.json`,
		SilenceUsage: true,
	}
	root.AddCommand(serve.NewServeCommand())
	root.AddCommand(export.NewOpenAPICommand())
	root.AddCommand(version.NewVersionCommand())
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
