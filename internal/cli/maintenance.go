package cli

import (
	"context"
	"errors"

	"github.com/julianstephens/daystreak/internal/session"
	"github.com/julianstephens/daystreak/internal/utils"
)

type ValidateCmd struct {
	Fix bool `help:"Repair the detected conflicts."`
}

func (c *ValidateCmd) Run(ctx *Context) error {
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		ctx.println("Validating habits and completion log...")
		result, err := s.Validate()
		if err != nil {
			return err
		}
		ctx.println()
		ctx.println(result.FormatReport())
		if !result.HasConflicts() {
			return nil
		}
		if !c.Fix {
			ctx.println("Run 'daystreak validate --fix' to repair them.")
			return errors.New("validation found conflicts")
		}

		actions, err := s.Repair()
		if err != nil {
			return err
		}
		ctx.println("Applied fixes:")
		for _, a := range actions {
			ctx.printf("- %s\n", a.Action)
		}
		return nil
	})
}

type PruneCmd struct{}

func (c *PruneCmd) Run(ctx *Context) error {
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		removed, err := s.Prune()
		if err != nil {
			return err
		}
		removed += s.PrunedOnStart()
		cutoff := utils.RetentionCutoff(ctx.now())
		if removed == 0 {
			ctx.printf("No entries before %s.\n", cutoff)
			return nil
		}
		ctx.printf("Removed %d entries before %s.\n", removed, cutoff)
		return nil
	})
}
