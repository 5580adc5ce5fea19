// Package config loads the overlay configuration from
// <data_dir>/config.yaml, with defaults for every field.
//
// Platform paths:
//
//	macOS:   ~/Library/Application Support/Hitomi/
//	Windows: %AppData%\Hitomi\
//	Linux:   ~/.config/hitomi/
//
// Override with HITOMI_DATA_DIR environment variable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/neboloop/hitomi/internal/browser"
	"github.com/neboloop/hitomi/internal/chat"
	"github.com/neboloop/hitomi/internal/speech"
	"github.com/neboloop/hitomi/internal/widget"
)

// FileName is the config file inside the data directory.
const FileName = "config.yaml"

// Config is the overlay configuration
type Config struct {
	DataDir  string `yaml:"data_dir"`  // Platform data directory
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	LogDev   bool   `yaml:"log_dev"`   // Console encoder instead of JSON

	Auth    AuthConfig    `yaml:"auth"`
	Chat    ChatConfig    `yaml:"chat"`
	Speech  SpeechConfig  `yaml:"speech"`
	Browser BrowserConfig `yaml:"browser"`
	Widget  WidgetConfig  `yaml:"widget"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AuthConfig points at the hosted auth service.
type AuthConfig struct {
	BaseURL string        `yaml:"base_url"`
	AnonKey string        `yaml:"anon_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// ChatConfig configures the cloud chat client and pipeline.
type ChatConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	Temperature    float64       `yaml:"temperature"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReplyTimeout   time.Duration `yaml:"reply_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"` // Wait for a page snapshot
}

// SpeechConfig configures always-listening.
type SpeechConfig struct {
	AlwaysListening bool          `yaml:"always_listening"`
	RecognizerURL   string        `yaml:"recognizer_url"` // ws:// endpoint; empty disables speech
	Language        string        `yaml:"language"`
	MicGranted      bool          `yaml:"mic_granted"`
	Busy            time.Duration `yaml:"busy_backoff"`
	NoMatch         time.Duration `yaml:"no_match_backoff"`
	Other           time.Duration `yaml:"error_backoff"`
	Min             time.Duration `yaml:"min_backoff"`
	Enable          time.Duration `yaml:"enable_delay"`
	AfterReply      time.Duration `yaml:"after_reply_delay"`
	DeferredFinal   time.Duration `yaml:"deferred_final_delay"`
}

// BrowserConfig selects and configures the page engine.
type BrowserConfig struct {
	Engine          string        `yaml:"engine"` // chrome, fetch or none
	HomeURL         string        `yaml:"home_url"`
	Headless        bool          `yaml:"headless"`
	ChromePath      string        `yaml:"chrome_path"`
	SnapshotTimeout time.Duration `yaml:"snapshot_timeout"`
}

// WidgetConfig holds the screen model and gesture timings.
type WidgetConfig struct {
	Density        float64         `yaml:"density"`
	ScreenWidth    int             `yaml:"screen_width"` // 0 = primary display
	ScreenHeight   int             `yaml:"screen_height"`
	LongPress      time.Duration   `yaml:"long_press"`
	DragThreshold  int             `yaml:"drag_threshold"`
	KeyboardChecks []time.Duration `yaml:"keyboard_checks"`
	DragRetry      time.Duration   `yaml:"drag_retry"`
	BubbleSettle   time.Duration   `yaml:"bubble_settle"`
	Hop            time.Duration   `yaml:"hop"`
	TravelMin      time.Duration   `yaml:"travel_min"`
	TravelMax      time.Duration   `yaml:"travel_max"`
	FrameInterval  time.Duration   `yaml:"frame_interval"`
}

// MetricsConfig configures the /metrics listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dataDir, err := DataDir()
	if err != nil {
		dataDir = ".hitomi"
	}
	timing := widget.DefaultTiming()
	delays := speech.DefaultDelays()
	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		LogDev:   true,
		Auth: AuthConfig{
			Timeout: 20 * time.Second,
		},
		Chat: ChatConfig{
			Model:          chat.DefaultModel,
			Temperature:    chat.DefaultTemperature,
			ConnectTimeout: chat.DefaultConnectTimeout,
			ReplyTimeout:   chat.DefaultReplyTimeout,
			ReadTimeout:    chat.DefaultReadTimeout,
		},
		Speech: SpeechConfig{
			Language:      "en-US",
			MicGranted:    true,
			Busy:          delays.Busy,
			NoMatch:       delays.NoMatch,
			Other:         delays.Other,
			Min:           delays.Min,
			Enable:        delays.Enable,
			AfterReply:    delays.AfterReply,
			DeferredFinal: delays.DeferredFinal,
		},
		Browser: BrowserConfig{
			Engine:          "chrome",
			HomeURL:         browser.DefaultHomeURL,
			Headless:        true,
			SnapshotTimeout: browser.DefaultSnapshotTimeout,
		},
		Widget: WidgetConfig{
			Density:        1,
			LongPress:      timing.LongPress,
			DragThreshold:  timing.DragThreshold,
			KeyboardChecks: timing.KeyboardChecks,
			DragRetry:      timing.DragRetry,
			BubbleSettle:   timing.BubbleSettle,
			Hop:            timing.Hop,
			TravelMin:      timing.TravelMin,
			TravelMax:      timing.TravelMax,
			FrameInterval:  timing.FrameInterval,
		},
	}
}

// DataDir returns the platform-appropriate data directory.
// Set HITOMI_DATA_DIR to override.
func DataDir() (string, error) {
	if dir := os.Getenv("HITOMI_DATA_DIR"); dir != "" {
		return dir, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}

	// Linux: lowercase per XDG convention
	if runtime.GOOS == "linux" {
		return filepath.Join(configDir, "hitomi"), nil
	}
	return filepath.Join(configDir, "Hitomi"), nil
}

// Path returns the config file location for the current data directory.
func Path() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads .env, then the config file from the data directory. A missing
// file yields the defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()
	path, err := Path()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFrom(path)
	if os.IsNotExist(err) {
		cfg = DefaultConfig()
		cfg.expand()
		return cfg, nil
	}
	return cfg, err
}

// LoadFrom loads config from a specific path
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.expand()
	return cfg, cfg.Validate()
}

// expand resolves ~ and environment references.
func (c *Config) expand() {
	if strings.HasPrefix(c.DataDir, "~/") {
		home, _ := os.UserHomeDir()
		c.DataDir = filepath.Join(home, c.DataDir[2:])
	}
	c.Auth.BaseURL = os.ExpandEnv(c.Auth.BaseURL)
	c.Auth.AnonKey = os.ExpandEnv(c.Auth.AnonKey)
	c.Chat.Endpoint = os.ExpandEnv(c.Chat.Endpoint)
	c.Speech.RecognizerURL = os.ExpandEnv(c.Speech.RecognizerURL)
}

// Validate rejects values the overlay cannot run with.
func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case "chrome", "fetch", "none":
	default:
		return fmt.Errorf("browser.engine: unknown engine %q", c.Browser.Engine)
	}
	if c.Widget.Density <= 0 {
		return fmt.Errorf("widget.density must be positive, got %v", c.Widget.Density)
	}
	if c.Chat.ReadTimeout <= c.Browser.SnapshotTimeout {
		return fmt.Errorf("chat.read_timeout (%s) must exceed browser.snapshot_timeout (%s)",
			c.Chat.ReadTimeout, c.Browser.SnapshotTimeout)
	}
	return nil
}

// Save writes the config to <data_dir>/config.yaml
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.DataDir, FileName), data, 0600)
}

// Timing converts the widget section.
func (c *Config) Timing() widget.Timing {
	w := c.Widget
	return widget.Timing{
		LongPress:      w.LongPress,
		DragThreshold:  w.DragThreshold,
		KeyboardChecks: w.KeyboardChecks,
		DragRetry:      w.DragRetry,
		BubbleSettle:   w.BubbleSettle,
		Hop:            w.Hop,
		TravelMin:      w.TravelMin,
		TravelMax:      w.TravelMax,
		FrameInterval:  w.FrameInterval,
	}
}

// Delays converts the speech section.
func (c *Config) Delays() speech.Delays {
	s := c.Speech
	return speech.Delays{
		Busy:          s.Busy,
		NoMatch:       s.NoMatch,
		Other:         s.Other,
		Min:           s.Min,
		Enable:        s.Enable,
		AfterReply:    s.AfterReply,
		DeferredFinal: s.DeferredFinal,
	}
}

// CloudConfig converts the chat section.
func (c *Config) CloudConfig() chat.CloudConfig {
	return chat.CloudConfig{
		Endpoint:       c.Chat.Endpoint,
		AnonKey:        c.Auth.AnonKey,
		Model:          c.Chat.Model,
		Temperature:    c.Chat.Temperature,
		ConnectTimeout: c.Chat.ConnectTimeout,
		ReplyTimeout:   c.Chat.ReplyTimeout,
	}
}
