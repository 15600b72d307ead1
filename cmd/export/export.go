// Package export implements the openapi command, which writes the API document without
// opening the database or listening on a port.
package export

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/user/layered-api-go/config"
	"github.com/user/layered-api-go/logging"
	"github.com/user/layered-api-go/server"
	"github.com/user/layered-api-go/users"
)

const (
	configFlag = "config"
	outputFlag = "output"
)

var openAPIFlags = map[string]cobraflags.Flag{
	configFlag: &cobraflags.StringFlag{
		Name:  configFlag,
		Value: config.DefaultPath,
		Usage: "Path to the TOML configuration file",
	},
	outputFlag: &cobraflags.StringFlag{
		Name:  outputFlag,
		Value: "",
		Usage: "Output file. Defaults to application.openapi_file from the configuration",
	},
}

func NewOpenAPICommand() *cobra.Command {
	openAPICmd := &cobra.Command{
		Use:   "openapi",
		Short: "Write the OpenAPI document",
		RunE:  openAPICommand,
	}
	cobraflags.RegisterMap(openAPICmd, openAPIFlags)
	return openAPICmd
}

func openAPICommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(openAPIFlags[configFlag].GetString())
	if err != nil {
		return err
	}
	output := openAPIFlags[outputFlag].GetString()
	if output == "" {
		output = cfg.Application.OpenAPIFile
	}
	if output == "" {
		return fmt.Errorf("no output file: pass --%s or set application.openapi_file", outputFlag)
	}

	// Route tables do not touch the session source, so no database is opened.
	srv, err := server.New(cfg, logging.Nop(), users.NewHandlers(nil, logging.Nop().App))
	if err != nil {
		return err
	}
	if err := srv.ExportOpenAPI(output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OpenAPI document written to %s\n", output)
	return nil
}
