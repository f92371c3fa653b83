// Command test-button is a manual test for the snooze button.
// It polls a GPIO line through the debouncer and prints every press,
// release and double click until interrupted.
//
// Usage:
//
//	go run ./cmd/test-button --chip gpiochip0 --line 17 [--debounce 50ms]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/chaz8081/bedclock/internal/button"
)

func main() {
	chip := flag.String("chip", "gpiochip0", "GPIO chip name")
	line := flag.Int("line", 17, "GPIO line offset")
	debounce := flag.Duration("debounce", button.DefaultDebounce, "debounce interval")
	window := flag.Duration("window", button.DefaultDoubleClickWindow, "double click window")
	flag.Parse()

	pin, err := button.NewGPIOReader(*chip, *line)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	btn, err := button.New(pin, button.WithDebounce(*debounce), button.WithDoubleClickWindow(*window))
	if err != nil {
		pin.Close()
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer btn.Close()

	fmt.Printf("Watching %s line %d (debounce %v, double click %v)\n", *chip, *line, *debounce, *window)
	fmt.Println("Press the button. Ctrl+C to quit.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	presses := 0
	for {
		select {
		case <-sig:
			fmt.Printf("\n%d presses\n", presses)
			return
		case <-tick.C:
		}

		if err := btn.Update(); err != nil {
			fmt.Printf("read error: %v\n", err)
			continue
		}
		if btn.WasPressed() {
			presses++
			fmt.Printf("[%s] pressed (#%d)\n", time.Now().Format("15:04:05.000"), presses)
		}
		if btn.WasDoubleClicked() {
			fmt.Printf("[%s] double click\n", time.Now().Format("15:04:05.000"))
		}
		if btn.WasReleased() {
			fmt.Printf("[%s] released after %v (pressed at %s)\n", time.Now().Format("15:04:05.000"),
				btn.PressDuration().Round(time.Millisecond), btn.LastPressTime().Format("15:04:05.000"))
		}
	}
}
