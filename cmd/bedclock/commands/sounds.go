package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chaz8081/bedclock/internal/audio"
	"github.com/chaz8081/bedclock/internal/files"
)

var soundsCmd = &cobra.Command{
	Use:   "sounds",
	Short: "List, add and remove alarm sound files",
}

var soundsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sound files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSounds()
		if err != nil {
			return err
		}
		infos, err := store.List()
		if err != nil {
			return err
		}
		w := newTabWriter()
		fmt.Fprintln(w, "NAME\tSIZE")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%d\n", info.Name, info.Size)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if free, err := store.FreeSpace(); err == nil {
			fmt.Printf("\n%d files, %d bytes free\n", len(infos), free)
		}
		return nil
	},
}

var soundName string

var soundsAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Copy an MP3 or WAV file into the sound store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := soundName
		if name == "" {
			name = filepath.Base(args[0])
		}
		if !audio.IsSupportedFile(name) {
			return fmt.Errorf("%s: unsupported format, want one of %v", name, audio.SupportedExtensions)
		}
		store, err := openSounds()
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		n, err := store.Add(name, f)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%d bytes)\n", name, n)
		return nil
	},
}

var soundsFetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download an MP3 or WAV file into the sound store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSounds()
		if err != nil {
			return err
		}
		fmt.Printf("  Downloading %s\n", args[0])
		n, err := store.Download(cmd.Context(), nil, args[0], soundName, os.Stdout)
		if err != nil {
			return err
		}
		fmt.Printf("  Stored %d bytes\n", n)
		return nil
	},
}

var soundsRemoveCmd = &cobra.Command{
	Use:     "rm <name>",
	Aliases: []string{"delete"},
	Short:   "Remove a stored sound file",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSounds()
		if err != nil {
			return err
		}
		if err := store.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

func init() {
	soundsAddCmd.Flags().StringVar(&soundName, "name", "", "name to store the file under (default is the file's base name)")
	soundsFetchCmd.Flags().StringVar(&soundName, "name", "", "name to store the file under (default is the last URL element)")

	soundsCmd.AddCommand(soundsListCmd)
	soundsCmd.AddCommand(soundsAddCmd)
	soundsCmd.AddCommand(soundsFetchCmd)
	soundsCmd.AddCommand(soundsRemoveCmd)
}

func openSounds() (*files.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return files.New(cfg.SoundsDir(), cfg.Storage.SoundsQuota)
}
