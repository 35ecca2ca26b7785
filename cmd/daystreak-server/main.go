package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/logger"
)

var CLI struct {
	Globals

	Version kong.VersionFlag
	LogDir  string `help:"Directory holding the server log." type:"path" default:"~/.config/daystreak" env:"DAYSTREAK_LOG_DIR"`
	Debug   bool   `help:"Enable debug logging."`
	JSONLog bool   `name:"json-log" help:"Write logs as JSON lines."`

	Serve    ServeCmd   `cmd:"" help:"Run the sync server." default:"1"`
	Migrate  MigrateCmd `cmd:"" help:"Apply pending database migrations."`
	Token    TokenCmd   `cmd:"" help:"Mint an access token for development."`
	Database struct {
		Set   DatabaseSetCmd   `cmd:"" help:"Store the database connection in the OS keyring."`
		Clear DatabaseClearCmd `cmd:"" help:"Remove the stored database connection."`
	} `cmd:"" help:"Manage the stored database connection."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName+"-server"),
		kong.Description("Sync server for daystreak habit data"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{
			"version":        constants.Version,
			"retention_cron": constants.DefaultRetentionCron,
		},
	)

	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug,
		ConfigDir: CLI.LogDir,
		Name:      constants.AppName + "-server",
		Stderr:    true,
		JSON:      CLI.JSONLog,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	apperrors.Fatal(ctx.Run(&CLI.Globals))
}
