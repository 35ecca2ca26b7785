package cli

import (
	"context"
	"fmt"

	"github.com/julianstephens/daystreak/internal/session"
	"github.com/julianstephens/daystreak/internal/utils"
)

type StatsCmd struct{}

func (c *StatsCmd) Run(ctx *Context) error {
	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		in, err := s.Insights()
		if err != nil {
			return err
		}
		ctx.println(titleStyle.Render("Insights"))
		ctx.printf("  Current streak:     %s\n", streakStyle.Render(fmt.Sprintf("%d days", in.CurrentStreak)))
		ctx.printf("  Best streak:        %d days\n", in.BestStreak)
		ctx.printf("  Weekly average:     %.1f%% %s\n", in.WeeklyAverage*100, rateBar(in.WeeklyAverage))
		ctx.printf("  Completed today:    %d of %d\n", in.CompletedToday, in.ActiveHabits)
		ctx.printf("  Days tracked:       %d\n", in.TotalDaysTracked)
		return nil
	})
}

type CalendarCmd struct {
	Days int    `help:"Number of days to show, ending at --to." default:"14"`
	To   string `help:"Last day to show (YYYY-MM-DD, today or yesterday)." default:"today"`
}

func (c *CalendarCmd) Run(ctx *Context) error {
	if c.Days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	to, err := utils.ResolveDay(c.To, ctx.now())
	if err != nil {
		return err
	}
	from := utils.AddDays(to, -(c.Days - 1))

	return ctx.withSession(func(_ context.Context, s *session.Session) error {
		rates, err := s.DayRates(from, to)
		if err != nil {
			return err
		}
		for _, r := range rates {
			if r.Applicable == 0 {
				ctx.printf("%s  %s  -\n", r.Day, rateBar(0))
				continue
			}
			ctx.printf("%s  %s  %d/%d\n", r.Day, rateBar(r.Rate), r.Completed, r.Applicable)
		}
		return nil
	})
}
