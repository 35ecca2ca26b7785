package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/daystreak/internal/habits"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/session"
)

type HabitAddCmd struct {
	Name        string `arg:"" help:"Habit name."`
	Category    string `help:"Category (Health, Study, Mental, Lifestyle)." enum:"Health,Study,Mental,Lifestyle" default:"Lifestyle"`
	Description string `help:"Optional description."`
	Time        string `help:"Optional time of day hint, e.g. 'morning' or '07:30'."`
	Priority    int    `help:"Priority: 0 normal, 1 important, 2 very important." default:"0"`
}

func (c *HabitAddCmd) Run(ctx *Context) error {
	category := models.Category(c.Category)
	if category == "" {
		category = models.CategoryLifestyle
	}
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		h, err := s.AddHabit(models.Habit{
			Name:        c.Name,
			Description: c.Description,
			Category:    category,
			TimeHint:    c.Time,
			Priority:    models.Priority(c.Priority),
		})
		if err != nil {
			return err
		}
		ctx.printf("Added habit: %s (%s)\n", h.Name, h.ID)
		return nil
	})
}

type HabitEditCmd struct {
	Habit       string  `arg:"" help:"Habit name or id."`
	Name        *string `help:"New name."`
	Category    *string `help:"New category (Health, Study, Mental, Lifestyle)."`
	Description *string `help:"New description."`
	Time        *string `help:"New time of day hint."`
	Priority    *int    `help:"New priority (0-2)."`
}

func (c *HabitEditCmd) changes() habits.Changes {
	ch := habits.Changes{
		Name:        c.Name,
		Description: c.Description,
		TimeHint:    c.Time,
	}
	if c.Category != nil {
		cat := models.Category(*c.Category)
		ch.Category = &cat
	}
	if c.Priority != nil {
		p := models.Priority(*c.Priority)
		ch.Priority = &p
	}
	return ch
}

func (c *HabitEditCmd) Run(ctx *Context) error {
	ch := c.changes()
	if ch.IsEmpty() {
		return fmt.Errorf("nothing to change, pass at least one of --name, --category, --description, --time or --priority")
	}
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		h, err := s.UpdateHabit(c.Habit, ch)
		if err != nil {
			return err
		}
		ctx.printf("Updated habit: %s\n", h.Name)
		return nil
	})
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
	Yes   bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *HabitDeleteCmd) Run(ctx *Context) error {
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		h, err := s.Habit(c.Habit)
		if err != nil {
			return err
		}
		if !c.Yes {
			ok, err := ctx.prompt().Confirm(
				fmt.Sprintf("Delete %q?", h.Name),
				"Every completion of this habit is removed as well.",
			)
			if err != nil {
				return err
			}
			if !ok {
				ctx.println("Delete cancelled.")
				return nil
			}
		}
		_, touched, err := s.DeleteHabit(h.ID)
		if err != nil {
			return err
		}
		ctx.printf("Deleted habit: %s (%d days updated)\n", h.Name, touched)
		return nil
	})
}

type HabitArchiveCmd struct {
	Habit   string `arg:"" help:"Habit name or id."`
	Restore bool   `help:"Restore an archived habit instead."`
}

func (c *HabitArchiveCmd) Run(ctx *Context) error {
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		h, err := s.SetArchived(c.Habit, !c.Restore)
		if err != nil {
			return err
		}
		if h.IsArchived {
			ctx.printf("Archived habit: %s\n", h.Name)
		} else {
			ctx.printf("Restored habit: %s\n", h.Name)
		}
		return nil
	})
}

type HabitListCmd struct {
	All bool `short:"a" help:"Include archived habits."`
	IDs bool `help:"Show habit ids."`
}

func (c *HabitListCmd) Run(ctx *Context) error {
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		statuses, err := s.Statuses(c.All)
		if err != nil {
			return err
		}
		if len(statuses) == 0 {
			ctx.println("No habits yet. Add one with 'daystreak habit add <name>'.")
			return nil
		}

		now := ctx.now()
		for _, st := range statuses {
			var flags []string
			if st.IsArchived {
				flags = append(flags, "archived")
			}
			if habits.CanEdit(st.Habit, now) {
				flags = append(flags, "editable")
			}
			line := fmt.Sprintf("%s %-24s %-10s %-14s streak %d (best %d, total %d)",
				checkMark(st.CompletedToday), st.Name, categoryLabel(st.Category), st.Priority,
				st.CurrentStreak, st.LongestStreak, st.TotalCompletions)
			if st.TimeHint != "" {
				line += "  @" + st.TimeHint
			}
			if len(flags) > 0 {
				line += "  [" + strings.Join(flags, ", ") + "]"
			}
			if c.IDs {
				line += "  " + st.ID
			}
			ctx.println(line)
		}
		ctx.printf("\n%d habits\n", len(statuses))
		return nil
	})
}
