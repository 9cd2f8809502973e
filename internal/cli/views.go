package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"timecast/internal/schedule"
)

const timelineStep = 30

// dayArg parses an optional yyyy-MM-dd argument, defaulting to today.
func dayArg(a *app, args []string) (time.Time, error) {
	if len(args) == 0 {
		return schedule.DayKey(a.svc.Now()), nil
	}
	d, err := time.ParseInLocation(schedule.DateLayout, args[0], a.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected yyyy-MM-dd", args[0])
	}
	return d, nil
}

func newDayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "day [yyyy-MM-dd]",
		Short: "Show the day timeline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				day, err := dayArg(a, args)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderDay(day, a.svc.Day(day), a.svc.Window(), timelineStep))
				return nil
			})
		},
	}
}

func newWeekCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "week [yyyy-MM-dd]",
		Short: "Show the week containing a day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				day, err := dayArg(a, args)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderWeek(a.svc.WeekStartOf(day), a.svc.Week(day)))
				return nil
			})
		},
	}
}

func newMonthCmd(opts *rootOptions) *cobra.Command {
	var shift int
	cmd := &cobra.Command{
		Use:   "month [yyyy-MM]",
		Short: "Show the month grid",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				now := a.svc.Now()
				year, month := now.Year(), now.Month()
				if len(args) == 1 {
					t, err := time.Parse("2006-01", args[0])
					if err != nil {
						return fmt.Errorf("invalid month %q, expected yyyy-MM", args[0])
					}
					year, month = t.Year(), t.Month()
				}
				year, month = schedule.ShiftMonth(year, month, shift)
				fmt.Fprint(cmd.OutOrStdout(), renderMonth(a.svc.Month(year, month)))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&shift, "shift", 0, "Months to move from the chosen month (-1 previous, 1 next)")
	return cmd
}
