package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"timecast/internal/fsutil"
	"timecast/internal/ics"
	appLog "timecast/internal/log"
	"timecast/internal/model"
	"timecast/internal/schedule"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all events as iCalendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				body := ics.Export(a.svc.List(), a.svc.Now())
				if output == "" || output == "-" {
					_, err := io.WriteString(cmd.OutOrStdout(), body)
					return err
				}
				if err := fsutil.WriteFileAtomic(output, []byte(body)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), pad+okStyle.Render("Exported")+" "+output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

// importWindow is the recurrence expansion range used by import and sync.
type importWindow struct {
	days     int
	backfill int
}

func (w *importWindow) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&w.days, "days", 365, "Expand recurring events this many days ahead")
	cmd.Flags().IntVar(&w.backfill, "backfill", 30, "Include occurrences this many days back")
}

func (w importWindow) config(a *app) ics.ExpandConfig {
	now := a.svc.Now()
	return ics.ExpandConfig{
		Location:   a.loc,
		RangeStart: now.AddDate(0, 0, -w.backfill),
		RangeEnd:   now.AddDate(0, 0, w.days),
	}
}

func printImport(out io.Writer, res schedule.ImportResult) {
	fmt.Fprintf(out, "%s%s added=%d replaced=%d", pad, okStyle.Render("Imported"), res.Added, res.Replaced)
	if res.Conflicts > 0 {
		fmt.Fprint(out, warnStyle.Render(fmt.Sprintf(" skipped=%d (overlap)", res.Conflicts)))
	}
	fmt.Fprintln(out)
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var win importWindow
	cmd := &cobra.Command{
		Use:   "import <file.ics|->",
		Short: "Import events from an iCalendar file",
		Long: "Import timed events from an .ics file. Recurring events are expanded; all-day\n" +
			"and multi-day entries are skipped. Re-importing replaces earlier copies.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				events, err := readCalendar(cmd.InOrStdin(), args[0], win.config(a))
				if err != nil {
					return err
				}
				res, err := a.svc.Import(events)
				if err != nil {
					return errors.New(schedule.UserMessage(err))
				}
				printImport(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	win.bind(cmd)
	return cmd
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var win importWindow
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import every configured ICS feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				sources := ics.SourcesFromConfig(a.cfg.ICS)
				if len(sources) == 0 {
					return errors.New("no ICS feeds configured")
				}
				fetcher := ics.NewFetcher(a.cfg.ICSCacheDir, nil)
				events, feedErr := ics.Sync(cmd.Context(), fetcher, sources, win.config(a))
				if feedErr != nil {
					appLog.Error("sync: one or more feeds failed", feedErr)
					fmt.Fprintln(cmd.ErrOrStderr(), pad+errStyle.Render(feedErr.Error()))
				}
				res, err := a.svc.Import(events)
				if err != nil {
					return errors.New(schedule.UserMessage(err))
				}
				printImport(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	win.bind(cmd)
	return cmd
}

// readCalendar reads path, or stdin when path is "-".
func readCalendar(stdin io.Reader, path string, cfg ics.ExpandConfig) ([]model.Event, error) {
	if path != "-" {
		return ics.ReadFile(path, cfg)
	}
	body, err := io.ReadAll(stdin)
	if err != nil {
		return nil, err
	}
	return ics.ReadEvents(ics.Source{ID: "stdin"}, body, cfg)
}
