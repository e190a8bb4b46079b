// Package config loads notecard settings: defaults, then an optional YAML
// file, then NOTECARD_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type SpeechConfig struct {
	Provider        string `yaml:"provider"` // deepgram | none
	Model           string `yaml:"model"`
	EndpointingMs   int    `yaml:"endpointing_ms"`
	InterimResults  bool   `yaml:"interim_results"`
	MaxAlternatives int    `yaml:"max_alternatives"`
}

type AudioConfig struct {
	Device string `yaml:"device"`
}

type NotifyConfig struct {
	Desktop      bool `yaml:"desktop"`
	Sound        bool `yaml:"sound"`
	ToastSeconds int  `yaml:"toast_seconds"`
}

type ClipboardConfig struct {
	CopyOnCreate bool `yaml:"copy_on_create"`
}

type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

type Config struct {
	Locale    string          `yaml:"locale"`
	Speech    SpeechConfig    `yaml:"speech"`
	Audio     AudioConfig     `yaml:"audio"`
	Notify    NotifyConfig    `yaml:"notify"`
	Clipboard ClipboardConfig `yaml:"clipboard"`
	Log       LogConfig       `yaml:"log"`
}

func Default() Config {
	return Config{
		Locale: "pt-BR",
		Speech: SpeechConfig{
			Provider:        "deepgram",
			Model:           "nova-3",
			EndpointingMs:   300,
			InterimResults:  true,
			MaxAlternatives: 1,
		},
		Notify: NotifyConfig{
			Desktop:      false,
			Sound:        true,
			ToastSeconds: 3,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path (if non-empty), applies env overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/notecard/config.yaml (or the OS
// equivalent) when that file exists, otherwise "".
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, "notecard", "config.yaml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Locale, "NOTECARD_LOCALE")
	overrideString(&cfg.Speech.Provider, "NOTECARD_SPEECH_PROVIDER")
	overrideString(&cfg.Speech.Model, "NOTECARD_SPEECH_MODEL")
	overrideInt(&cfg.Speech.EndpointingMs, "NOTECARD_SPEECH_ENDPOINTING_MS")
	overrideBool(&cfg.Speech.InterimResults, "NOTECARD_SPEECH_INTERIM_RESULTS")
	overrideInt(&cfg.Speech.MaxAlternatives, "NOTECARD_SPEECH_MAX_ALTERNATIVES")
	overrideString(&cfg.Audio.Device, "NOTECARD_AUDIO_DEVICE")
	overrideBool(&cfg.Notify.Desktop, "NOTECARD_NOTIFY_DESKTOP")
	overrideBool(&cfg.Notify.Sound, "NOTECARD_NOTIFY_SOUND")
	overrideInt(&cfg.Notify.ToastSeconds, "NOTECARD_NOTIFY_TOAST_SECONDS")
	overrideBool(&cfg.Clipboard.CopyOnCreate, "NOTECARD_CLIPBOARD_COPY_ON_CREATE")
	overrideString(&cfg.Log.Path, "NOTECARD_LOG_PATH")
	overrideString(&cfg.Log.Level, "NOTECARD_LOG_LEVEL")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Locale) == "" {
		return errors.New("locale must not be empty")
	}
	switch cfg.Speech.Provider {
	case "deepgram", "none":
	default:
		return fmt.Errorf("speech.provider must be one of deepgram|none, got %q", cfg.Speech.Provider)
	}
	if cfg.Speech.EndpointingMs < 0 {
		return errors.New("speech.endpointing_ms must be >= 0")
	}
	if cfg.Speech.MaxAlternatives < 1 {
		return errors.New("speech.max_alternatives must be >= 1")
	}
	if cfg.Notify.ToastSeconds <= 0 {
		return errors.New("notify.toast_seconds must be positive")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log.level must be one of debug|info|warn|error")
	}
	return nil
}
