package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaz8081/bedclock/internal/display"
	"github.com/chaz8081/bedclock/internal/kv"
)

var displayCmd = &cobra.Command{
	Use:   "display",
	Short: "Set the custom message and bottom label",
}

var displayMessageCmd = &cobra.Command{
	Use:   "message [text]",
	Short: "Show or set the custom message line",
	Long:  "Show the custom message, or set it. An empty string clears it.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDisplay(func(t *display.Terminal) error {
			if len(args) == 0 {
				fmt.Println(t.Message())
				return nil
			}
			return t.SetMessage(args[0])
		})
	},
}

var displayLabelCmd = &cobra.Command{
	Use:   "label [text]",
	Short: "Show or set the bottom label",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDisplay(func(t *display.Terminal) error {
			if len(args) == 0 {
				fmt.Println(t.BottomLabel())
				return nil
			}
			return t.SetBottomLabel(strings.TrimSpace(args[0]))
		})
	},
}

func init() {
	displayCmd.AddCommand(displayMessageCmd)
	displayCmd.AddCommand(displayLabelCmd)
}

func withDisplay(fn func(*display.Terminal) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(display.NewTerminal(io.Discard, kv.NewPrefs(db, display.Namespace)))
}
