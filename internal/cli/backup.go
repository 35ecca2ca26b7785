package cli

import (
	"fmt"
	"path/filepath"

	"github.com/julianstephens/daystreak/internal/backup"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/lockfile"
	"github.com/julianstephens/daystreak/internal/logger"
)

func (c *Context) requireBackups() (*backup.Manager, error) {
	mgr, ok := c.backupManager()
	if !ok {
		return nil, fmt.Errorf("backups are only available for SQLite stores, %s is a JSON document", c.Store.GetConfigPath())
	}
	if err := c.Store.Load(); err != nil {
		return nil, err
	}
	return mgr, nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *Context) error {
	mgr, err := ctx.requireBackups()
	if err != nil {
		return err
	}
	defer ctx.Store.Close()

	path, err := mgr.CreateBackup()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	ctx.printf("%s Backup created: %s\n", checkMark(true), filepath.Base(path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *Context) error {
	mgr, err := ctx.requireBackups()
	if err != nil {
		return err
	}
	defer ctx.Store.Close()

	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		ctx.println("No backups found.")
		ctx.printf("Backups are stored in: %s\n", mgr.GetBackupDir())
		return nil
	}

	ctx.printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), constants.MaxBackups)
	for _, b := range backups {
		ctx.printf("  %s  %s  (%.1f KB)\n",
			b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), float64(b.Size)/1024.0)
	}
	ctx.printf("\nBackup directory: %s\n", mgr.GetBackupDir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *BackupRestoreCmd) Run(ctx *Context) error {
	mgr, err := ctx.requireBackups()
	if err != nil {
		return err
	}
	path, err := mgr.Resolve(c.BackupFile)
	if err != nil {
		ctx.Store.Close()
		return err
	}

	if !c.Yes {
		ok, err := ctx.prompt().Confirm(
			fmt.Sprintf("Restore from %s?", filepath.Base(path)),
			"This replaces your current local data. A backup of it is created first.",
		)
		if err != nil {
			ctx.Store.Close()
			return err
		}
		if !ok {
			ctx.Store.Close()
			ctx.println("Restore cancelled.")
			return nil
		}
	}

	lock, err := lockfile.Acquire(filepath.Dir(ctx.Store.GetConfigPath()))
	if err != nil {
		ctx.Store.Close()
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("Failed to release lock", "error", err)
		}
	}()

	if err := ctx.Store.Close(); err != nil {
		logger.Warn("Failed to close database before restore", "error", err)
	}
	if err := mgr.RestoreBackup(path); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	ctx.printf("%s Local data restored from %s\n", checkMark(true), filepath.Base(path))
	return nil
}
