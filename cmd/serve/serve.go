package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/user/layered-api-go/config"
	"github.com/user/layered-api-go/db"
	"github.com/user/layered-api-go/logging"
	"github.com/user/layered-api-go/server"
	"github.com/user/layered-api-go/users"
)

const configFlag = "config"

var serveFlags = map[string]cobraflags.Flag{
	configFlag: &cobraflags.StringFlag{
		Name:  configFlag,
		Value: config.DefaultPath,
		Usage: "Path to the TOML configuration file",
	},
}

func NewServeCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Load the configuration, open the database, create missing tables, write the
OpenAPI document and serve HTTP until SIGINT or SIGTERM is received.`,
		RunE: serveCommand,
	}
	cobraflags.RegisterMap(serveCmd, serveFlags)
	return serveCmd
}

func serveCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(serveFlags[configFlag].GetString())
	if err != nil {
		return err
	}

	logs, err := logging.Setup(cfg.Logging, cfg.AppName())
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logs.Close()

	log := logs.Component("bootstrap")
	log.Info().
		Str("app", cfg.AppName()).
		Str("version", cfg.Application.Version).
		Str("database", cfg.DBType()).
		Msg("starting")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := db.Open(ctx, cfg.Database, logs.App)
	if err != nil {
		log.Error().Err(err).Msg("failed to open database")
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}()

	if err := manager.CreateTables(ctx, users.Table); err != nil {
		log.Error().Err(err).Msg("failed to create tables")
		return err
	}

	srv, err := server.New(cfg, logs, users.NewHandlers(manager, logs.App))
	if err != nil {
		log.Error().Err(err).Msg("failed to build server")
		return err
	}
	if path := cfg.Application.OpenAPIFile; path != "" {
		if err := srv.ExportOpenAPI(path); err != nil {
			log.Error().Err(err).Msg("failed to export OpenAPI document")
			return err
		}
	}

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}
