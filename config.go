package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults shared by the flag set, viper and the repair of invalid fields
const (
	defaultColor            = "2"
	defaultColorMode        = "manual"
	defaultMaxWidth         = 45
	defaultErrorTTLMs       = 4000
	defaultPadding          = 15
	defaultWidthPixels      = 300
	defaultWidthColumns     = 13
	defaultMaxLengthWithArt = 22
	defaultMaxLengthNoArt   = 36
	defaultUIRefreshMs      = 100
	defaultPollIntervalMs   = 1000
	defaultDebounceMs       = 60
	defaultVolumeStep       = 5
	defaultSeekStepSeconds  = 10
	defaultCallTimeoutMs    = 2000
	defaultLogLevel         = "info"
)

// Config holds all application configuration
type Config struct {
	UI struct {
		Color      string `mapstructure:"color"`
		ColorMode  string `mapstructure:"color_mode"`
		MaxWidth   int    `mapstructure:"max_width"`
		ErrorTTLMs int    `mapstructure:"error_ttl_ms"`
	} `mapstructure:"ui"`
	Artwork struct {
		Enabled      bool `mapstructure:"enabled"`
		Padding      int  `mapstructure:"padding"`
		WidthPixels  int  `mapstructure:"width_pixels"`
		WidthColumns int  `mapstructure:"width_columns"`
	} `mapstructure:"artwork"`
	Text struct {
		MaxLengthWithArt int `mapstructure:"max_length_with_art"`
		MaxLengthNoArt   int `mapstructure:"max_length_no_art"`
	} `mapstructure:"text"`
	Timing struct {
		UIRefreshMs    int `mapstructure:"ui_refresh_ms"`
		PollIntervalMs int `mapstructure:"poll_interval_ms"`
	} `mapstructure:"timing"`
	Volume struct {
		Optimistic bool `mapstructure:"optimistic"`
		DebounceMs int  `mapstructure:"debounce_ms"`
		Step       int  `mapstructure:"step"`
	} `mapstructure:"volume"`
	Media struct {
		SeekStepSeconds float64 `mapstructure:"seek_step_seconds"`
	} `mapstructure:"media"`
	Control struct {
		CallTimeoutMs int `mapstructure:"call_timeout_ms"`
	} `mapstructure:"control"`
	Log struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"log"`
}

// syncOptions maps the session settings onto SyncOptions. A debounce of 0
// means every value is sent immediately.
func (c Config) syncOptions() SyncOptions {
	debounce := time.Duration(c.Volume.DebounceMs) * time.Millisecond
	if debounce == 0 {
		debounce = -1
	}
	return SyncOptions{
		PollInterval:     time.Duration(c.Timing.PollIntervalMs) * time.Millisecond,
		OptimisticVolume: c.Volume.Optimistic,
		VolumeDebounce:   debounce,
	}
}

// SafeConfig wraps Config with thread-safe access
type SafeConfig struct {
	mu  sync.RWMutex
	cfg Config
}

// Get returns a copy of the current config (thread-safe read)
func (sc *SafeConfig) Get() Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.cfg
}

// Set updates the config (thread-safe write)
func (sc *SafeConfig) Set(cfg Config) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cfg = cfg
}

var config = &SafeConfig{}

// Config file changed notification
type configReloadMsg struct{}

var configChangeChan = make(chan struct{}, 1)

// Watch for config file changes
func watchConfigCmd() tea.Cmd {
	return func() tea.Msg {
		<-configChangeChan
		return configReloadMsg{}
	}
}

// configError describes one invalid config field
type configError struct {
	field   string
	message string
}

func (e configError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.message)
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true,
}

// isValidColor accepts ANSI codes 0-255 and #RGB / #RRGGBB hex colors
func isValidColor(color string) bool {
	if color == "" {
		return false
	}
	if color[0] == '#' {
		hex := color[1:]
		if len(hex) != 3 && len(hex) != 6 {
			return false
		}
		for _, c := range hex {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
				return false
			}
		}
		return true
	}
	n, err := strconv.Atoi(color)
	if err != nil || strconv.Itoa(n) != color {
		return false
	}
	return n >= 0 && n <= 255
}

// validateConfig checks every field and returns one error per invalid field
func validateConfig(cfg *Config) []error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, configError{field: field, message: fmt.Sprintf(format, args...)})
	}

	if !isValidColor(cfg.UI.Color) {
		add("ui.color", "invalid color format '%s'", cfg.UI.Color)
	}
	if cfg.UI.ColorMode != "manual" && cfg.UI.ColorMode != "auto" {
		add("ui.color_mode", "must be 'manual' or 'auto' (got '%s')", cfg.UI.ColorMode)
	}
	if cfg.UI.MaxWidth < 20 || cfg.UI.MaxWidth > 200 {
		add("ui.max_width", "must be between 20 and 200 (got %d)", cfg.UI.MaxWidth)
	}
	if cfg.UI.ErrorTTLMs < 500 || cfg.UI.ErrorTTLMs > 60000 {
		add("ui.error_ttl_ms", "must be between 500 and 60000 (got %d)", cfg.UI.ErrorTTLMs)
	}

	if cfg.Artwork.Padding < 0 {
		add("artwork.padding", "must not be negative (got %d)", cfg.Artwork.Padding)
	} else if cfg.Artwork.Padding >= cfg.UI.MaxWidth {
		add("artwork.padding", "must be smaller than ui.max_width (got %d)", cfg.Artwork.Padding)
	}
	if cfg.Artwork.WidthPixels < 50 || cfg.Artwork.WidthPixels > 1000 {
		add("artwork.width_pixels", "must be between 50 and 1000 (got %d)", cfg.Artwork.WidthPixels)
	}
	if cfg.Artwork.WidthColumns < 1 || cfg.Artwork.WidthColumns > 50 {
		add("artwork.width_columns", "must be between 1 and 50 (got %d)", cfg.Artwork.WidthColumns)
	}

	if cfg.Text.MaxLengthWithArt < 5 || cfg.Text.MaxLengthWithArt > 200 {
		add("text.max_length_with_art", "must be between 5 and 200 (got %d)", cfg.Text.MaxLengthWithArt)
	}
	if cfg.Text.MaxLengthNoArt < 5 || cfg.Text.MaxLengthNoArt > 200 {
		add("text.max_length_no_art", "must be between 5 and 200 (got %d)", cfg.Text.MaxLengthNoArt)
	}

	if cfg.Timing.UIRefreshMs < 10 || cfg.Timing.UIRefreshMs > 5000 {
		add("timing.ui_refresh_ms", "must be between 10 and 5000 (got %d)", cfg.Timing.UIRefreshMs)
	}
	if cfg.Timing.PollIntervalMs < 100 || cfg.Timing.PollIntervalMs > 60000 {
		add("timing.poll_interval_ms", "must be between 100 and 60000 (got %d)", cfg.Timing.PollIntervalMs)
	}

	if cfg.Volume.DebounceMs < 0 || cfg.Volume.DebounceMs > 2000 {
		add("volume.debounce_ms", "must be between 0 and 2000 (got %d)", cfg.Volume.DebounceMs)
	}
	if cfg.Volume.Step < 1 || cfg.Volume.Step > 50 {
		add("volume.step", "must be between 1 and 50 (got %d)", cfg.Volume.Step)
	}
	if cfg.Media.SeekStepSeconds <= 0 || cfg.Media.SeekStepSeconds > 600 {
		add("media.seek_step_seconds", "must be between 0 and 600 (got %g)", cfg.Media.SeekStepSeconds)
	}
	if cfg.Control.CallTimeoutMs < 100 || cfg.Control.CallTimeoutMs > 30000 {
		add("control.call_timeout_ms", "must be between 100 and 30000 (got %d)", cfg.Control.CallTimeoutMs)
	}
	if !validLogLevels[cfg.Log.Level] {
		add("log.level", "unknown level '%s'", cfg.Log.Level)
	}

	return errs
}

// applyDefaultsForInvalidFields resets every field named in errs to its default
func applyDefaultsForInvalidFields(cfg *Config, errs []error) {
	for _, err := range errs {
		var ce configError
		if !errors.As(err, &ce) {
			continue
		}
		switch ce.field {
		case "ui.color":
			cfg.UI.Color = defaultColor
		case "ui.color_mode":
			cfg.UI.ColorMode = defaultColorMode
		case "ui.max_width":
			cfg.UI.MaxWidth = defaultMaxWidth
		case "ui.error_ttl_ms":
			cfg.UI.ErrorTTLMs = defaultErrorTTLMs
		case "artwork.padding":
			cfg.Artwork.Padding = defaultPadding
		case "artwork.width_pixels":
			cfg.Artwork.WidthPixels = defaultWidthPixels
		case "artwork.width_columns":
			cfg.Artwork.WidthColumns = defaultWidthColumns
		case "text.max_length_with_art":
			cfg.Text.MaxLengthWithArt = defaultMaxLengthWithArt
		case "text.max_length_no_art":
			cfg.Text.MaxLengthNoArt = defaultMaxLengthNoArt
		case "timing.ui_refresh_ms":
			cfg.Timing.UIRefreshMs = defaultUIRefreshMs
		case "timing.poll_interval_ms":
			cfg.Timing.PollIntervalMs = defaultPollIntervalMs
		case "volume.debounce_ms":
			cfg.Volume.DebounceMs = defaultDebounceMs
		case "volume.step":
			cfg.Volume.Step = defaultVolumeStep
		case "media.seek_step_seconds":
			cfg.Media.SeekStepSeconds = defaultSeekStepSeconds
		case "control.call_timeout_ms":
			cfg.Control.CallTimeoutMs = defaultCallTimeoutMs
		case "log.level":
			cfg.Log.Level = defaultLogLevel
		}
	}
	// padding may have become invalid after max_width was reset
	if cfg.Artwork.Padding >= cfg.UI.MaxWidth {
		cfg.Artwork.Padding = defaultPadding
	}
}

// printConfigWarnings reports validation errors on stderr
func printConfigWarnings(errs []error) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "Warning: invalid configuration values, using defaults for:")
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "  - %v\n", err)
	}
}

// configDir follows the XDG standard: $XDG_CONFIG_HOME/mixdeck, falling back
// to ~/.config/mixdeck
func configDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "mixdeck")
}

// defineFlags registers the command-line flags. They are bound into viper
// and take precedence over the config file and environment.
func defineFlags(fs *pflag.FlagSet) {
	fs.StringP("color", "c", defaultColor, "Set the desired color (name or hex)")
	fs.Bool("no-artwork", false, "Disable album artwork display")
	fs.Bool("optimistic-volume", false, "Show volume changes before the system confirms them")
	fs.Int("poll-interval", defaultPollIntervalMs, "Media poll interval in milliseconds")
	fs.String("log-level", defaultLogLevel, "Log level (trace, debug, info, warn, error, disabled)")
	fs.String("config", "", "Path to a config file")
}

func newViper(fs *pflag.FlagSet) *viper.Viper {
	v := viper.New()

	// Set defaults
	v.SetDefault("ui.color", defaultColor)
	v.SetDefault("ui.color_mode", defaultColorMode)
	v.SetDefault("ui.max_width", defaultMaxWidth)
	v.SetDefault("ui.error_ttl_ms", defaultErrorTTLMs)
	v.SetDefault("artwork.enabled", true)
	v.SetDefault("artwork.padding", defaultPadding)
	v.SetDefault("artwork.width_pixels", defaultWidthPixels)
	v.SetDefault("artwork.width_columns", defaultWidthColumns)
	v.SetDefault("text.max_length_with_art", defaultMaxLengthWithArt)
	v.SetDefault("text.max_length_no_art", defaultMaxLengthNoArt)
	v.SetDefault("timing.ui_refresh_ms", defaultUIRefreshMs)
	v.SetDefault("timing.poll_interval_ms", defaultPollIntervalMs)
	v.SetDefault("volume.optimistic", false)
	v.SetDefault("volume.debounce_ms", defaultDebounceMs)
	v.SetDefault("volume.step", defaultVolumeStep)
	v.SetDefault("media.seek_step_seconds", defaultSeekStepSeconds)
	v.SetDefault("control.call_timeout_ms", defaultCallTimeoutMs)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.file", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir := configDir(); dir != "" {
		v.AddConfigPath(dir)
	}

	// Environment variable support with MIXDECK_ prefix
	v.SetEnvPrefix("MIXDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
		}
		_ = v.BindPFlag("ui.color", fs.Lookup("color"))
		_ = v.BindPFlag("volume.optimistic", fs.Lookup("optimistic-volume"))
		_ = v.BindPFlag("timing.poll_interval_ms", fs.Lookup("poll-interval"))
		_ = v.BindPFlag("log.level", fs.Lookup("log-level"))
		if f := fs.Lookup("no-artwork"); f != nil && f.Changed {
			v.Set("artwork.enabled", false)
		}
	}
	return v
}

// loadConfig reads, validates and repairs the configuration.
func loadConfig(v *viper.Viper) (Config, error) {
	// Read config file (ignore error if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	if errs := validateConfig(&cfg); len(errs) > 0 {
		printConfigWarnings(errs)
		applyDefaultsForInvalidFields(&cfg, errs)
	}
	return cfg, nil
}

// initConfig loads the configuration into the global SafeConfig and starts
// watching the file. Reloads update the UI; session settings (poll interval,
// volume mode, timeouts) take effect on the next start.
func initConfig(fs *pflag.FlagSet) error {
	v := newViper(fs)
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	config.Set(cfg)

	if v.ConfigFileUsed() == "" {
		return nil
	}

	// Watch for config file changes and live reload
	v.OnConfigChange(func(e fsnotify.Event) {
		var newCfg Config
		if err := v.Unmarshal(&newCfg); err != nil {
			return
		}
		if errs := validateConfig(&newCfg); len(errs) > 0 {
			applyDefaultsForInvalidFields(&newCfg, errs)
		}
		config.Set(newCfg)
		// Config reloaded successfully, notify the app
		select {
		case configChangeChan <- struct{}{}:
		default:
			// Channel full, skip notification
		}
	})
	v.WatchConfig()
	return nil
}
