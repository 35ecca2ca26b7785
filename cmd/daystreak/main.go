package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Local store path (.json selects the JSON document store)." type:"path" default:"${config_path}" env:"DAYSTREAK_CONFIG"`
	Server  string `help:"Sync server URL." default:"${server_url}" env:"DAYSTREAK_SERVER"`
	Debug   bool   `help:"Enable debug logging to stderr."`

	Init  cli.InitCmd  `cmd:"" help:"Initialize daystreak storage."`
	Today cli.TodayCmd `cmd:"" help:"Show today's habits, mood and reflection." default:"1"`
	Done  cli.DoneCmd  `cmd:"" help:"Toggle a habit's completion for a day."`
	Mood  cli.MoodCmd  `cmd:"" help:"Record a day's mood."`
	Habit struct {
		Add     cli.HabitAddCmd     `cmd:"" help:"Add a new habit."`
		Edit    cli.HabitEditCmd    `cmd:"" help:"Edit a habit created today."`
		Delete  cli.HabitDeleteCmd  `cmd:"" help:"Delete a habit created today."`
		Archive cli.HabitArchiveCmd `cmd:"" help:"Archive or restore a habit."`
		List    cli.HabitListCmd    `cmd:"" help:"List habits with their streaks."`
	} `cmd:"" help:"Manage habits."`
	Reflect  cli.ReflectCmd  `cmd:"" help:"Write a short reflection for a day."`
	Stats    cli.StatsCmd    `cmd:"" help:"Show streak and completion insights."`
	Calendar cli.CalendarCmd `cmd:"" help:"Show daily completion rates."`
	Account  struct {
		Login   cli.AccountLoginCmd   `cmd:"" help:"Sign in with an access token."`
		Logout  cli.AccountLogoutCmd  `cmd:"" help:"Sign out and continue as guest."`
		Status  cli.AccountStatusCmd  `cmd:"" help:"Show account and sync status."`
		Migrate cli.AccountMigrateCmd `cmd:"" help:"Merge local guest data into the signed in account."`
	} `cmd:"" help:"Manage the sync account."`
	Sync     cli.SyncCmd     `cmd:"" help:"Write pending changes now."`
	Prune    cli.PruneCmd    `cmd:"" help:"Remove log entries older than the retention horizon."`
	Validate cli.ValidateCmd `cmd:"" help:"Check local data for conflicts."`
	Doctor   cli.DoctorCmd   `cmd:"" help:"Run health checks."`
	Backup   struct {
		Create  cli.BackupCreateCmd  `cmd:"" help:"Create a backup of the local store."`
		List    cli.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore cli.BackupRestoreCmd `cmd:"" help:"Restore the local store from a backup."`
	} `cmd:"" help:"Manage local backups."`
	Diag cli.DebugCmd `cmd:"" name:"debug" help:"Debug commands for troubleshooting."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Daily habit streak tracker"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":     constants.Version,
			"config_path": constants.DefaultConfigPath,
			"server_url":  constants.DefaultServerURL,
		},
	)

	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug,
		ConfigDir: filepath.Dir(CLI.Config),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	logger.Debug("Starting", "command", ctx.Command(), "config", CLI.Config)

	appCtx := cli.NewContext(cli.NewStore(CLI.Config), CLI.Server)
	apperrors.Fatal(ctx.Run(appCtx))
}
