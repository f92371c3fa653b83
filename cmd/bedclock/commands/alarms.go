package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/bedclock/internal/alarm"
	"github.com/chaz8081/bedclock/internal/kv"
)

var alarmsCmd = &cobra.Command{
	Use:   "alarms",
	Short: "List, set and delete alarms",
}

var alarmsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored alarms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAlarms(func(store *alarm.Store) error {
			recs := store.All()
			if len(recs) == 0 {
				fmt.Println("No alarms.")
				return nil
			}
			w := newTabWriter()
			fmt.Fprintln(w, "ID\tTIME\tDAYS\tON\tSNOOZE\tSOUND\tLABEL")
			for _, r := range recs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%v\t%v\t%s\t%s\n",
					r.ID, r.TimeString(), r.Days, r.Eligible(), r.SnoozeEnabled, r.Sound, r.Label)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if next, at, ok := alarm.Next(recs, time.Now()); ok {
				fmt.Printf("\nNext: alarm %d at %s\n", next.ID, at.Format("Mon 15:04"))
			}
			return nil
		})
	},
}

var (
	setDays     string
	setSound    string
	setLabel    string
	setBottom   string
	setNoSnooze bool
	setDisabled bool
)

var alarmsSetCmd = &cobra.Command{
	Use:   "set <id> <HH:MM>",
	Short: "Create or replace an alarm",
	Long: `Create or replace the alarm in slot id (0-9).

Days is a comma separated list of day names (mon,tue,...), or one of
"daily", "weekdays", "weekends", "once" or a decimal day mask.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid alarm id %q", args[0])
		}
		t, err := time.Parse("15:04", args[1])
		if err != nil {
			return fmt.Errorf("invalid time %q, want HH:MM", args[1])
		}
		days, err := alarm.ParseWeekdays(setDays)
		if err != nil {
			return err
		}
		rec := alarm.Record{
			ID:             id,
			Hour:           t.Hour(),
			Minute:         t.Minute(),
			Days:           days,
			Enabled:        !setDisabled,
			Sound:          setSound,
			Label:          setLabel,
			SnoozeEnabled:  !setNoSnooze,
			BottomRowLabel: setBottom,
		}
		return withAlarms(func(store *alarm.Store) error {
			if err := store.Set(rec); err != nil {
				return err
			}
			fmt.Printf("Alarm %d set for %s (%s)\n", rec.ID, rec.TimeString(), rec.Days)
			return nil
		})
	},
}

var alarmsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an alarm",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid alarm id %q", args[0])
		}
		return withAlarms(func(store *alarm.Store) error {
			if err := store.Delete(id); err != nil {
				return err
			}
			fmt.Printf("Alarm %d deleted\n", id)
			return nil
		})
	},
}

func init() {
	alarmsSetCmd.Flags().StringVar(&setDays, "days", "daily", "days the alarm rings on")
	alarmsSetCmd.Flags().StringVar(&setSound, "sound", "tone1", "built-in tone or stored sound file")
	alarmsSetCmd.Flags().StringVar(&setLabel, "label", "", "label shown while ringing")
	alarmsSetCmd.Flags().StringVar(&setBottom, "bottom", "", "bottom row text shown while ringing")
	alarmsSetCmd.Flags().BoolVar(&setNoSnooze, "no-snooze", false, "a click dismisses instead of snoozing")
	alarmsSetCmd.Flags().BoolVar(&setDisabled, "disabled", false, "store the alarm switched off")

	alarmsCmd.AddCommand(alarmsListCmd)
	alarmsCmd.AddCommand(alarmsSetCmd)
	alarmsCmd.AddCommand(alarmsDeleteCmd)
}

func withAlarms(fn func(*alarm.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store := alarm.NewStore(kv.NewPrefs(db, alarm.Namespace))
	if err := store.Load(); err != nil {
		return fmt.Errorf("loading alarms: %w", err)
	}
	return fn(store)
}
