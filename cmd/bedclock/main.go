// Command bedclock runs the bedside alarm clock and edits its stored
// alarms, sounds and settings.
//
// Usage:
//
//	bedclock [--config path] <command> [args]
//
// Commands:
//
//	run      - run the clock (default)
//	alarms   - list, set and delete alarms
//	sounds   - list, add and remove alarm sound files
//	display  - set the custom message and bottom label
//	config   - write or show the configuration
//
// The alarm, sound and display commands open the clock's database
// directly, so stop a running clock first.
package main

import (
	"fmt"
	"os"

	"github.com/chaz8081/bedclock/cmd/bedclock/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
