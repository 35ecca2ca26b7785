package cli

import (
	"context"
	"fmt"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/session"
	"github.com/julianstephens/daystreak/internal/utils"
)

type DoneCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
	Day   string `help:"Day to mark (YYYY-MM-DD, today or yesterday)." default:"today"`
}

func (c *DoneCmd) Run(ctx *Context) error {
	day, err := utils.ResolveDay(c.Day, ctx.now())
	if err != nil {
		return err
	}
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		h, done, err := s.Toggle(c.Habit, day)
		if err != nil {
			return err
		}
		if done {
			ctx.printf("%s %s done for %s\n", checkMark(true), h.Name, day)
		} else {
			ctx.printf("%s %s unmarked for %s\n", checkMark(false), h.Name, day)
		}
		ctx.printf("Current streak: %s\n", streakStyle.Render(fmt.Sprintf("%d", s.CurrentStreak())))
		return nil
	})
}

type MoodCmd struct {
	Score int    `arg:"" optional:"" help:"Mood score (1-5)."`
	Day   string `help:"Day to record (YYYY-MM-DD, today or yesterday)." default:"today"`
	Clear bool   `help:"Remove the recorded mood."`
}

func (c *MoodCmd) Run(ctx *Context) error {
	day, err := utils.ResolveDay(c.Day, ctx.now())
	if err != nil {
		return err
	}
	if !c.Clear && c.Score == 0 {
		return fmt.Errorf("a mood score between %d and %d is required", constants.MoodMin, constants.MoodMax)
	}
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		if c.Clear {
			if err := s.ClearMood(day); err != nil {
				return err
			}
			ctx.printf("Cleared mood for %s\n", day)
			return nil
		}
		if err := s.SetMood(day, c.Score); err != nil {
			return err
		}
		ctx.printf("Mood for %s: %s\n", day, moodLabel(&c.Score))
		return nil
	})
}

type ReflectCmd struct {
	Text string `arg:"" help:"Reflection text. An empty string removes it."`
	Day  string `help:"Day to record (YYYY-MM-DD, today or yesterday)." default:"today"`
}

func (c *ReflectCmd) Run(ctx *Context) error {
	day, err := utils.ResolveDay(c.Day, ctx.now())
	if err != nil {
		return err
	}
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		stored, err := s.SetReflection(day, c.Text)
		if err != nil {
			return err
		}
		switch {
		case stored == "":
			ctx.printf("Cleared reflection for %s\n", day)
		case stored != c.Text:
			ctx.printf("Saved reflection for %s (%s)\n", day,
				warnStyle.Render(fmt.Sprintf("truncated to %d characters", constants.MaxReflectionRunes)))
		default:
			ctx.printf("Saved reflection for %s\n", day)
		}
		return nil
	})
}

type TodayCmd struct {
	Day string `help:"Day to show (YYYY-MM-DD, today or yesterday)." default:"today"`
}

func (c *TodayCmd) Run(ctx *Context) error {
	now := ctx.now()
	day, err := utils.ResolveDay(c.Day, now)
	if err != nil {
		return err
	}
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		hs, err := s.Habits(false)
		if err != nil {
			return err
		}
		entry, err := s.Entry(day)
		if err != nil {
			return err
		}

		ctx.println(titleStyle.Render(day))
		if len(hs) == 0 {
			ctx.println("No habits yet. Add one with 'daystreak habit add <name>'.")
		}
		done := 0
		for _, h := range hs {
			if utils.DayKey(h.CreatedAt) > day {
				continue
			}
			has := entry.Has(h.ID)
			if has {
				done++
			}
			line := fmt.Sprintf("  %s %s", checkMark(has), h.Name)
			if h.TimeHint != "" {
				line += pendingStyle.Render("  @" + h.TimeHint)
			}
			ctx.println(line)
		}

		ctx.println()
		ctx.printf("Completed: %d\n", done)
		ctx.printf("Mood: %s\n", moodLabel(entry.Mood))
		if entry.Reflection != "" {
			ctx.printf("Reflection: %s\n", entry.Reflection)
		}
		ctx.printf("Current streak: %s\n", streakStyle.Render(fmt.Sprintf("%d", s.CurrentStreak())))
		return nil
	})
}
