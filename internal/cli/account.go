package cli

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/julianstephens/daystreak/internal/session"
)

type AccountLoginCmd struct {
	Token   string `help:"Access token issued for your account. Prompted for when omitted." env:"DAYSTREAK_TOKEN"`
	Account string `help:"Label shown for the account, e.g. your email."`
}

func (c *AccountLoginCmd) Run(ctx *Context) error {
	token := c.Token
	if token == "" {
		var err error
		token, err = ctx.prompt().Secret("Access token")
		if err != nil {
			return err
		}
	}

	return ctx.withSession(func(cctx context.Context, s *session.Session) error {
		result, err := s.Login(cctx, token, c.Account)
		if s.State() == session.Authenticated {
			ctx.printf("%s Signed in to %s\n", checkMark(true), ctx.ServerURL)
		}
		printMigration(ctx, result)
		return err
	})
}

func printMigration(ctx *Context, r session.MigrationResult) {
	if r.Backup != "" {
		ctx.printf("Local data backed up to %s\n", filepath.Base(r.Backup))
	}
	if r.Migrated {
		ctx.printf("Merged guest data into your account: %d habits, %d days\n", r.Habits, r.Days)
	}
}

type AccountLogoutCmd struct{}

func (c *AccountLogoutCmd) Run(ctx *Context) error {
	return ctx.withSession(func(cctx context.Context, s *session.Session) error {
		if st := s.State(); st != session.Authenticated && st != session.Offline {
			ctx.println("Not signed in.")
			return nil
		}
		if err := s.Logout(cctx); err != nil {
			return err
		}
		ctx.println("Signed out. Continuing with local guest data.")
		return nil
	})
}

type AccountStatusCmd struct{}

func (c *AccountStatusCmd) Run(ctx *Context) error {
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		meta := s.Meta()
		ctx.printf("Mode:       %s\n", s.State())
		if st := s.State(); st == session.Authenticated || st == session.Offline {
			account := s.Account()
			if account == "" {
				account = "(unnamed)"
			}
			ctx.printf("Account:    %s\n", account)
			ctx.printf("Server:     %s\n", ctx.ServerURL)
		}
		if s.State() == session.Offline {
			ctx.printf("%s Server unreachable: %s\n", warnStyle.Render("⚠"), s.SyncStatus().LastError)
		}
		ctx.printf("Guest id:   %s\n", meta.GuestID)
		ctx.printf("Last sync:  %s\n", formatOptionalTime(meta.LastSyncAt))
		ctx.printf("Migrated:   %s\n", formatOptionalTime(meta.MigratedAt))
		ctx.printf("Local data: %s\n", ctx.Store.GetConfigPath())
		return nil
	})
}

type AccountMigrateCmd struct{}

func (c *AccountMigrateCmd) Run(ctx *Context) error {
	return ctx.withSession(func(cctx context.Context, s *session.Session) error {
		result, err := s.Migrate(cctx)
		if errors.Is(err, session.ErrNotAuthenticated) {
			return errors.New("sign in with 'daystreak account login' before migrating")
		}
		if err != nil {
			return err
		}
		if !result.Migrated {
			ctx.println("Nothing to migrate.")
			return nil
		}
		printMigration(ctx, result)
		return nil
	})
}

type SyncCmd struct{}

func (c *SyncCmd) Run(ctx *Context) error {
	return ctx.withSession(func(cctx context.Context, s *session.Session) error {
		if err := s.Reconnect(cctx); err != nil {
			return err
		}
		if err := s.Flush(cctx); err != nil {
			return err
		}
		st := s.SyncStatus()
		where := "local store"
		if s.State() == session.Authenticated {
			where = ctx.ServerURL
		}
		ctx.printf("Sync state: %s (%s)\n", st.State, where)
		last := st.LastSavedAt
		if last == nil && s.State() == session.Authenticated {
			last = s.Meta().LastSyncAt
		}
		ctx.printf("Last saved: %s\n", formatOptionalTime(last))
		return nil
	})
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
