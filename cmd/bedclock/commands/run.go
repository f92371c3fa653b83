package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/bedclock/internal/alarm"
	"github.com/chaz8081/bedclock/internal/app"
	"github.com/chaz8081/bedclock/internal/audio"
	"github.com/chaz8081/bedclock/internal/ble"
	"github.com/chaz8081/bedclock/internal/button"
	"github.com/chaz8081/bedclock/internal/clock"
	"github.com/chaz8081/bedclock/internal/config"
	"github.com/chaz8081/bedclock/internal/display"
	"github.com/chaz8081/bedclock/internal/files"
	"github.com/chaz8081/bedclock/internal/frontlight"
	"github.com/chaz8081/bedclock/internal/kv"
	"github.com/chaz8081/bedclock/internal/mqtt"
)

// bleCommandTimeout bounds how long a BLE write waits for the main loop.
const bleCommandTimeout = 2 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the alarm clock",
	Long: `Run the alarm clock until interrupted.

Without a button.chip in the config, pressing Enter acts as the button.`,
	Args: cobra.NoArgs,
	RunE: runClock,
}

func runClock(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("[APP] starting bedclock", "data_dir", cfg.Storage.DataDir)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	alarms := alarm.NewStore(kv.NewPrefs(db, alarm.Namespace))
	if err := alarms.Load(); err != nil {
		return fmt.Errorf("loading alarms: %w", err)
	}
	slog.Info("[ALARM] alarms loaded", "count", alarms.Len())

	sounds, err := files.New(cfg.SoundsDir(), cfg.Storage.SoundsQuota)
	if err != nil {
		return fmt.Errorf("opening sounds dir: %w", err)
	}

	hw, err := audio.NewMalgoHardware(cfg.Audio.ChunkFrames * 8)
	if err != nil {
		return fmt.Errorf("initializing audio: %w", err)
	}
	defer hw.Close()
	coord := audio.NewCoordinator(hw, sounds, audio.Options{
		SampleRate:  cfg.Audio.SampleRate,
		ChunkFrames: cfg.Audio.ChunkFrames,
		LockTimeout: cfg.Audio.LockTimeout,
		Volume:      cfg.Audio.Volume,
	})
	defer coord.Close()

	settings := kv.NewPrefs(db, app.SettingsNamespace)
	light, err := openFrontlight(cfg, settings)
	if err != nil {
		return err
	}
	defer light.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pin, err := openButton(ctx, cfg)
	if err != nil {
		return err
	}
	btn, err := button.New(pin,
		button.WithDebounce(cfg.Button.Debounce),
		button.WithDoubleClickWindow(cfg.Button.DoubleClickWindow),
	)
	if err != nil {
		return fmt.Errorf("initializing button: %w", err)
	}
	defer btn.Close()

	var theme []display.Option
	if !cfg.Display.Color {
		theme = append(theme, display.WithTheme(display.PlainTheme))
	}
	screen := display.NewTerminal(os.Stdout, kv.NewPrefs(db, display.Namespace),
		append(theme, display.WithClear(true))...)

	var events mqtt.Publisher = mqtt.Nop{}
	if cfg.MQTT.Enabled {
		client, err := mqtt.Dial(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		})
		if err != nil {
			return fmt.Errorf("connecting to mqtt: %w", err)
		}
		events = client
		slog.Info("[MQTT] publishing", "broker", cfg.MQTT.Broker, "prefix", cfg.MQTT.TopicPrefix)
	}
	defer events.Close()

	opts := app.DefaultOptions()
	opts.Snooze = cfg.Alarm.Snooze
	opts.RingTimeout = cfg.Alarm.RingTimeout
	opts.ToneBurst = cfg.Audio.ToneBurst
	opts.DoubleClickWindow = cfg.Button.DoubleClickWindow
	opts.Format12h = cfg.Display.Format12h

	a, err := app.New(app.Deps{
		Clock:    clock.New(),
		Alarms:   alarms,
		Settings: settings,
		Audio:    coord,
		Files:    sounds,
		Button:   btn,
		Display:  screen,
		Light:    light,
		Events:   events,
	}, opts)
	if err != nil {
		return err
	}

	go coord.Run(ctx, cfg.Audio.DecodeInterval)

	if cfg.BLE.Enabled {
		srv := ble.NewServer(ble.NewHandler(a, a.Exec, bleCommandTimeout), cfg.BLE.DeviceName, cfg.BLE.MTU)
		if err := srv.Start(); err != nil {
			if errors.Is(err, ble.ErrUnsupported) {
				slog.Warn("[BLE] not available on this platform")
			} else {
				slog.Warn("[BLE] failed to start", "error", err)
			}
		} else {
			defer srv.Stop()
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-a.Changes():
						srv.Refresh()
					}
				}
			}()
		}
	}

	err = a.Run(ctx)
	slog.Info("[APP] shutting down")
	return err
}

func openFrontlight(cfg *config.Config, prefs *kv.Prefs) (*frontlight.Manager, error) {
	var pwm frontlight.PWM = frontlight.NopPWM{}
	if cfg.Frontlight.PWMChip >= 0 {
		p, err := frontlight.OpenSysfsPWM(cfg.Frontlight.PWMChip, cfg.Frontlight.PWMChannel, cfg.Frontlight.Period)
		if err != nil {
			return nil, fmt.Errorf("opening frontlight: %w", err)
		}
		pwm = p
	}
	seed := !prefs.Has(frontlight.PrefKey)
	light, err := frontlight.NewManager(pwm, prefs)
	if err != nil {
		pwm.Close()
		return nil, fmt.Errorf("initializing frontlight: %w", err)
	}
	if seed {
		if err := light.SetBrightness(cfg.Frontlight.Brightness); err != nil {
			slog.Warn("[LIGHT] initial brightness not applied", "error", err)
		}
	}
	return light, nil
}

// openButton returns the GPIO button, or Enter on stdin when no chip is
// configured.
func openButton(ctx context.Context, cfg *config.Config) (button.PinReader, error) {
	if cfg.Button.Chip != "" {
		r, err := button.NewGPIOReader(cfg.Button.Chip, cfg.Button.Line)
		if err != nil {
			return nil, fmt.Errorf("opening button: %w", err)
		}
		return r, nil
	}

	slog.Info("[APP] no button chip configured, press Enter to click")
	fake := button.NewFakeReader()
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if ctx.Err() != nil {
				return
			}
			fake.Set(true)
			time.Sleep(cfg.Button.Debounce * 3)
			fake.Set(false)
		}
	}()
	return fake, nil
}
