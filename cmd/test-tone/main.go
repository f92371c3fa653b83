// Command test-tone is a manual test for audio output.
// It plays one pass of a built-in tone pattern, or a stored sound file
// for a few seconds, through the same coordinator the clock uses.
//
// Usage:
//
//	go run ./cmd/test-tone [--tone tone1|tone2|tone3] [--file name --dir path] [--volume 70]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chaz8081/bedclock/internal/audio"
	"github.com/chaz8081/bedclock/internal/files"
)

func main() {
	tone := flag.String("tone", "tone1", "built-in tone to play")
	file := flag.String("file", "", "stored sound file to play instead of a tone")
	dir := flag.String("dir", ".", "directory holding sound files")
	volume := flag.Int("volume", 70, "volume 0-100")
	seconds := flag.Int("seconds", 5, "how long to play a file")
	flag.Parse()

	sounds, err := files.New(*dir, 0)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	opts := audio.DefaultOptions()
	opts.Volume = *volume

	hw, err := audio.NewMalgoHardware(opts.ChunkFrames * 8)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer hw.Close()

	coord := audio.NewCoordinator(hw, sounds, opts)
	defer coord.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coord.Run(ctx, time.Millisecond)

	if *file != "" {
		fmt.Printf("Playing %s for %ds at volume %d...\n", *file, *seconds, coord.Volume())
		if err := coord.PlayFile(*file, true); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		time.Sleep(time.Duration(*seconds) * time.Second)
		coord.Stop()
		fmt.Println("\nDone!")
		return
	}

	pattern, ok := audio.BuiltinTone(*tone)
	if !ok {
		fmt.Printf("Error: unknown tone %q\n", *tone)
		os.Exit(1)
	}
	fmt.Printf("Playing %s at volume %d...\n", *tone, coord.Volume())
	for _, b := range pattern {
		if b.Freq <= 0 {
			time.Sleep(b.On + b.Off)
			continue
		}
		fmt.Printf("  %d Hz for %v\n", b.Freq, b.On)
		if err := coord.PlayTone(ctx, b.Freq, b.On); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		time.Sleep(b.Off)
	}

	fmt.Println("\nDone!")
}
