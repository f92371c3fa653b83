package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Button     ButtonConfig     `yaml:"button"`
	Audio      AudioConfig      `yaml:"audio"`
	Alarm      AlarmConfig      `yaml:"alarm"`
	Storage    StorageConfig    `yaml:"storage"`
	Display    DisplayConfig    `yaml:"display"`
	Frontlight FrontlightConfig `yaml:"frontlight"`
	BLE        BLEConfig        `yaml:"ble"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
}

// ButtonConfig holds the alarm button settings. An empty chip runs the
// clock without a physical button.
type ButtonConfig struct {
	Chip              string        `yaml:"chip"` // e.g. "gpiochip0"
	Line              int           `yaml:"line"`
	Debounce          time.Duration `yaml:"debounce"`
	DoubleClickWindow time.Duration `yaml:"double_click_window"`
}

// AudioConfig holds playback settings.
type AudioConfig struct {
	SampleRate     int           `yaml:"sample_rate"`
	Volume         int           `yaml:"volume"` // 0-100, used until changed over BLE
	ChunkFrames    int           `yaml:"chunk_frames"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
	DecodeInterval time.Duration `yaml:"decode_interval"`
	ToneFrequency  int           `yaml:"tone_frequency"` // test tone
	ToneBurst      time.Duration `yaml:"tone_burst"`
}

// AlarmConfig holds the ringing behaviour.
type AlarmConfig struct {
	Snooze      time.Duration `yaml:"snooze"`
	RingTimeout time.Duration `yaml:"ring_timeout"`
}

// StorageConfig holds the on-disk locations. An empty sounds_dir means
// <data_dir>/sounds.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	SoundsDir   string `yaml:"sounds_dir"`
	SoundsQuota int64  `yaml:"sounds_quota"` // bytes
}

// DisplayConfig holds the clock face settings.
type DisplayConfig struct {
	Format12h bool `yaml:"format_12h"`
	Color     bool `yaml:"color"`
}

// FrontlightConfig holds the PWM backlight settings. A negative chip
// disables the PWM output.
type FrontlightConfig struct {
	PWMChip    int           `yaml:"pwm_chip"`
	PWMChannel int           `yaml:"pwm_channel"`
	Period     time.Duration `yaml:"period"`
	Brightness int           `yaml:"brightness"` // 0-100, used until changed over BLE
}

// BLEConfig holds the GATT peripheral settings.
type BLEConfig struct {
	Enabled    bool   `yaml:"enabled"`
	DeviceName string `yaml:"device_name"`
	MTU        int    `yaml:"mtu"`
}

// MQTTConfig holds the optional event publisher settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // e.g. "tcp://localhost:1883"
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bedclock")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with the values the clock ships with.
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "bedclock")

	return &Config{
		LogLevel: "info",
		Button: ButtonConfig{
			Line:              0,
			Debounce:          50 * time.Millisecond,
			DoubleClickWindow: 700 * time.Millisecond,
		},
		Audio: AudioConfig{
			SampleRate:     44100,
			Volume:         70,
			ChunkFrames:    128,
			LockTimeout:    time.Second,
			DecodeInterval: time.Millisecond,
			ToneFrequency:  1000,
			ToneBurst:      50 * time.Millisecond,
		},
		Alarm: AlarmConfig{
			Snooze:      5 * time.Minute,
			RingTimeout: 10 * time.Minute,
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			SoundsQuota: 8 << 20,
		},
		Display: DisplayConfig{
			Format12h: true,
			Color:     true,
		},
		Frontlight: FrontlightConfig{
			PWMChip:    -1,
			PWMChannel: 0,
			Period:     time.Millisecond,
			Brightness: 50,
		},
		BLE: BLEConfig{
			Enabled:    true,
			DeviceName: "ESP32-L Alarm2",
			MTU:        512,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "bedclock",
			TopicPrefix: "bedclock",
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in storage paths is expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Storage.DataDir = expandTilde(cfg.Storage.DataDir)
	cfg.Storage.SoundsDir = expandTilde(cfg.Storage.SoundsDir)

	return cfg, nil
}

// SoundsDir returns where uploaded sound files live.
func (c *Config) SoundsDir() string {
	if c.Storage.SoundsDir != "" {
		return c.Storage.SoundsDir
	}
	return filepath.Join(c.Storage.DataDir, "sounds")
}

// DBDir returns the directory of the settings database.
func (c *Config) DBDir() string {
	return filepath.Join(c.Storage.DataDir, "db")
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Button.Chip != "" && c.Button.Line < 0 {
		return fmt.Errorf("button.line must be >= 0")
	}
	if c.Button.Debounce <= 0 {
		return fmt.Errorf("button.debounce must be > 0")
	}
	if c.Button.DoubleClickWindow <= c.Button.Debounce {
		return fmt.Errorf("button.double_click_window must be longer than button.debounce")
	}

	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("audio.volume must be 0-100, got %d", c.Audio.Volume)
	}
	if c.Audio.ChunkFrames <= 0 {
		return fmt.Errorf("audio.chunk_frames must be > 0")
	}
	if c.Audio.LockTimeout <= 0 || c.Audio.DecodeInterval <= 0 || c.Audio.ToneBurst <= 0 {
		return fmt.Errorf("audio.lock_timeout, decode_interval and tone_burst must be > 0")
	}
	if c.Audio.ToneFrequency <= 0 {
		return fmt.Errorf("audio.tone_frequency must be > 0")
	}

	if c.Alarm.Snooze < time.Minute {
		return fmt.Errorf("alarm.snooze must be at least 1m, got %v", c.Alarm.Snooze)
	}
	if c.Alarm.RingTimeout <= 0 {
		return fmt.Errorf("alarm.ring_timeout must be > 0")
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	if c.Storage.SoundsQuota <= 0 {
		return fmt.Errorf("storage.sounds_quota must be > 0")
	}

	if c.Frontlight.Brightness < 0 || c.Frontlight.Brightness > 100 {
		return fmt.Errorf("frontlight.brightness must be 0-100, got %d", c.Frontlight.Brightness)
	}
	if c.Frontlight.PWMChip >= 0 && c.Frontlight.Period <= 0 {
		return fmt.Errorf("frontlight.period must be > 0")
	}

	if c.BLE.Enabled {
		if c.BLE.DeviceName == "" {
			return fmt.Errorf("ble.device_name must not be empty")
		}
		if c.BLE.MTU < 23 {
			return fmt.Errorf("ble.mtu must be >= 23, got %d", c.BLE.MTU)
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker must not be empty")
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "#+") {
			return fmt.Errorf("mqtt.topic_prefix must be non-empty and free of wildcards, got %q", c.MQTT.TopicPrefix)
		}
	}

	return nil
}

// ParseLogLevel maps a log_level value to a slog level. Unknown values
// give info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

const defaultHeader = `# bedclock configuration
#
# Durations use Go syntax (50ms, 5m). Leave button.chip empty to run
# without a GPIO button; set frontlight.pwm_chip to -1 to disable PWM.

`

// WriteDefault writes the default config to path, or to DefaultConfigPath
// when path is empty. It returns the written path, or "" if a file already
// exists there.
func WriteDefault(path string) (string, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
