package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/lockfile"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
	"github.com/julianstephens/daystreak/internal/validation"
)

const doctorHealthTimeout = 5 * time.Second

type DoctorCmd struct {
	Offline bool `help:"Skip the sync server health check."`
}

type healthChecker interface {
	Health(ctx context.Context) error
}

func (cmd *DoctorCmd) Run(ctx *Context) error {
	ctx.println("Running diagnostics...")
	ctx.println()

	hasError := false
	check := func(label string, err error) bool {
		if err != nil {
			ctx.println(failLine(label))
			ctx.printf("   Error: %v\n", err)
			hasError = true
			return false
		}
		ctx.println(okLine(label))
		return true
	}
	warn := func(label string, err error) {
		if err != nil {
			ctx.println(warnLine(label))
			ctx.printf("   %v\n", err)
			return
		}
		ctx.println(okLine(label))
	}

	reachable := check("Local store reachable", ctx.Store.Load())
	if reachable {
		defer ctx.Store.Close()
		check("Schema version", checkSchemaVersion(ctx))
		check("Data validation", checkValidation(ctx))
	} else {
		ctx.println("⊘ Data validation: SKIPPED (local store not reachable)")
	}
	warn("Session lock", checkLock(ctx))
	warn("Backups present", checkBackupsPresent(ctx))
	warn("Keyring available", checkKeyring())
	if !cmd.Offline {
		warn("Sync server reachable", checkServer(ctx))
	}

	ctx.println()
	if hasError {
		ctx.println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.println("All diagnostics passed!")
	return nil
}

func checkSchemaVersion(ctx *Context) error {
	store, ok := ctx.Store.(*sqlite.Store)
	if !ok {
		// the JSON document has no schema
		return nil
	}
	current, latest, err := store.SchemaVersion()
	if err != nil {
		return err
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	if current < latest {
		return fmt.Errorf("database schema version (%d) is behind (%d), run 'daystreak init'", current, latest)
	}
	return nil
}

func checkValidation(ctx *Context) error {
	doc, err := ctx.Store.LoadData()
	if err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	result := validation.ValidateSnapshot(doc.Data)
	if result.HasConflicts() {
		return fmt.Errorf("found %d conflicts, run 'daystreak validate' for details", len(result.Conflicts))
	}
	return nil
}

func checkLock(ctx *Context) error {
	lock, err := lockfile.Acquire(filepath.Dir(ctx.Store.GetConfigPath()))
	if errors.Is(err, lockfile.ErrLocked) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to check lock: %w", err)
	}
	return lock.Release()
}

func checkBackupsPresent(ctx *Context) error {
	mgr, ok := ctx.backupManager()
	if !ok {
		return nil
	}
	latest, found, err := mgr.Latest()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if !found {
		return fmt.Errorf("no backups found in %s, run 'daystreak backup create'", mgr.GetBackupDir())
	}
	if age := ctx.now().Sub(latest.Timestamp); age > 14*24*time.Hour {
		return fmt.Errorf("latest backup is %d days old", int(age.Hours()/24))
	}
	return nil
}

func checkKeyring() error {
	if !keyring.IsAvailable() {
		return keyring.ErrKeyringUnavailable
	}
	return nil
}

func checkServer(ctx *Context) error {
	hc, ok := ctx.remote().(healthChecker)
	if !ok {
		return nil
	}
	cctx, cancel := context.WithTimeout(context.Background(), doctorHealthTimeout)
	defer cancel()
	if err := hc.Health(cctx); err != nil {
		return fmt.Errorf("%s: %w", ctx.ServerURL, err)
	}
	return nil
}
