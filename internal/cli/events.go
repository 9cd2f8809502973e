package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"timecast/internal/model"
	"timecast/internal/schedule"
)

// withApp loads the config, opens the app for a short-lived command and
// closes it afterwards.
func withApp(opts *rootOptions, fn func(a *app) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

// reportWrite prints the outcome of a create, edit or move. A reminder
// failure is printed as a warning; any other error is returned.
func reportWrite(out io.Writer, verb string, ev model.Event, err error) error {
	var ae *schedule.AlarmError
	if err != nil && !errors.As(err, &ae) {
		return errors.New(schedule.UserMessage(err))
	}
	fmt.Fprintln(out, pad+okStyle.Render(verb)+" "+renderEvent(ev))
	if ae != nil {
		fmt.Fprintln(out, pad+warnStyle.Render(schedule.UserMessage(ae)))
	}
	return nil
}

// eventFlags binds the form fields of an event to flags.
func eventFlags(cmd *cobra.Command, in *schedule.Input) {
	f := cmd.Flags()
	f.StringVarP(&in.Date, "date", "d", "", "Day of the event (yyyy-MM-dd, default today)")
	f.StringVarP(&in.Start, "start", "s", "", "Start time (HH:mm)")
	f.StringVarP(&in.End, "end", "e", "", "End time (HH:mm)")
	f.StringVarP(&in.Type, "type", "t", "", "Work, Personal, Family, Outdoor or Other")
	f.StringVarP(&in.Location, "location", "l", "", "Where it happens")
	f.StringVar(&in.Description, "description", "", "Free text notes")
	f.StringVarP(&in.Reminder, "reminder", "r", "", `Reminder lead: "None", "5", "10", "30" or "60" minutes`)
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var in schedule.Input
	cmd := &cobra.Command{
		Use:   "add <title...>",
		Short: "Create an event",
		Long:  "Create an event. Overlapping another event on the same day is rejected.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				in.Title = strings.Join(args, " ")
				if in.Date == "" {
					in.Date = a.svc.Now().Format(schedule.DateLayout)
				}
				ev, err := a.svc.Create(in)
				return reportWrite(cmd.OutOrStdout(), "Created", ev, err)
			})
		},
	}
	eventFlags(cmd, &in)
	return cmd
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	var in schedule.Input
	var title string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an event",
		Long:  "Replace an event's fields. Fields without a flag keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				cur, err := a.svc.Get(args[0])
				if err != nil {
					return errors.New(schedule.UserMessage(err))
				}
				merged := mergeInput(schedule.InputFromEvent(cur), in, cmd.Flags().Changed)
				if cmd.Flags().Changed("title") {
					merged.Title = title
				}
				ev, err := a.svc.Update(cur.ID, merged)
				return reportWrite(cmd.OutOrStdout(), "Updated", ev, err)
			})
		},
	}
	eventFlags(cmd, &in)
	cmd.Flags().StringVar(&title, "title", "", "New title")
	return cmd
}

// mergeInput overlays the flags that were set on base.
func mergeInput(base, flags schedule.Input, changed func(string) bool) schedule.Input {
	set := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	set("date", &base.Date, flags.Date)
	set("start", &base.Start, flags.Start)
	set("end", &base.End, flags.End)
	set("type", &base.Type, flags.Type)
	set("location", &base.Location, flags.Location)
	set("description", &base.Description, flags.Description)
	set("reminder", &base.Reminder, flags.Reminder)
	return base
}

func newMoveCmd(opts *rootOptions) *cobra.Command {
	var date, to string
	var offset int
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move an event on the timeline",
		Long: "Move an event keeping its duration. --offset is minutes below the top of the\n" +
			"timeline window; --to is the new start time. --date moves it to another day.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				drop, err := dropOffset(a.svc.Window(), cmd.Flags().Changed("offset"), offset, to)
				if err != nil {
					return err
				}
				var day time.Time
				if date != "" {
					if day, err = time.ParseInLocation(schedule.DateLayout, date, a.loc); err != nil {
						return fmt.Errorf("invalid date %q, expected yyyy-MM-dd", date)
					}
				}
				ev, err := a.svc.Move(args[0], day, drop)
				return reportWrite(cmd.OutOrStdout(), "Moved", ev, err)
			})
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Target day (yyyy-MM-dd)")
	cmd.Flags().StringVar(&to, "to", "", "New start time (HH:mm)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Drop offset in minutes from the window top")
	return cmd
}

// dropOffset resolves --offset / --to into minutes below the window top.
func dropOffset(win schedule.Window, hasOffset bool, offset int, to string) (int, error) {
	switch {
	case hasOffset && to != "":
		return 0, errors.New("use either --offset or --to")
	case hasOffset:
		return offset, nil
	case to != "":
		m, err := schedule.ParseClock(to)
		if err != nil {
			return 0, err
		}
		return m - win.StartMinutes, nil
	default:
		return 0, errors.New("--offset or --to is required")
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an event",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ev, err := a.svc.Get(args[0])
				if err != nil {
					return errors.New(schedule.UserMessage(err))
				}
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), yes, fmt.Sprintf("Delete %q on %s?", ev.Title, ev.Date.Format(schedule.DateLayout))) {
					fmt.Fprintln(cmd.OutOrStdout(), pad+dimStyle.Render("Cancelled"))
					return nil
				}
				if err := a.svc.Delete(ev.ID); err != nil {
					return errors.New(schedule.UserMessage(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), pad+okStyle.Render("Deleted")+" "+renderEvent(ev))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}

// confirm asks on a terminal. The prompt is skipped with --yes or when
// stdin is not a terminal (scripts).
func confirm(in io.Reader, out io.Writer, yes bool, question string) bool {
	if yes {
		return true
	}
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return true
	}
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				events := a.svc.List()
				if date != "" {
					day, err := time.ParseInLocation(schedule.DateLayout, date, a.loc)
					if err != nil {
						return fmt.Errorf("invalid date %q, expected yyyy-MM-dd", date)
					}
					filtered := events[:0]
					for _, ev := range events {
						if schedule.SameDay(ev.Date, day) {
							filtered = append(filtered, ev)
						}
					}
					events = filtered
				}
				fmt.Fprint(cmd.OutOrStdout(), renderEvents(events))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Only events on this day (yyyy-MM-dd)")
	return cmd
}
