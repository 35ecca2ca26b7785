package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/daystreak/internal/session"
	"github.com/julianstephens/daystreak/internal/utils"
)

type DebugCmd struct {
	DBPath   DebugDBPathCmd   `cmd:"" help:"Show local store path."`
	DumpDay  DebugDumpDayCmd  `cmd:"" help:"Dump a day's log entry as JSON."`
	DumpData DebugDumpDataCmd `cmd:"" help:"Dump the working snapshot as JSON."`
}

func (c *Context) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	c.println(string(b))
	return nil
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *Context) error {
	return ctx.printJSON(map[string]string{"path": ctx.Store.GetConfigPath()})
}

type DebugDumpDayCmd struct {
	Day string `arg:"" help:"Day to dump (YYYY-MM-DD, today or yesterday)." default:"today"`
}

func (cmd *DebugDumpDayCmd) Run(ctx *Context) error {
	day, err := utils.ResolveDay(cmd.Day, ctx.now())
	if err != nil {
		return err
	}
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		entry, err := s.Entry(day)
		if err != nil {
			return err
		}
		return ctx.printJSON(map[string]any{"day": day, "entry": entry})
	})
}

type DebugDumpDataCmd struct{}

func (cmd *DebugDumpDataCmd) Run(ctx *Context) error {
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		snap, err := s.Snapshot()
		if err != nil {
			return err
		}
		return ctx.printJSON(snap)
	})
}
