package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "pt-BR", cfg.Locale)
	assert.Equal(t, "deepgram", cfg.Speech.Provider)
	assert.Equal(t, 1, cfg.Speech.MaxAlternatives)
	assert.True(t, cfg.Speech.InterimResults)
	assert.Equal(t, 3, cfg.Notify.ToastSeconds)
}

func TestLoadFileKeepsUnsetDefaults(t *testing.T) {
	p := writeConfig(t, `
locale: en-US
speech:
  model: nova-2
  max_alternatives: 3
clipboard:
  copy_on_create: true
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "en-US", cfg.Locale)
	assert.Equal(t, "nova-2", cfg.Speech.Model)
	assert.Equal(t, 3, cfg.Speech.MaxAlternatives)
	assert.Equal(t, "deepgram", cfg.Speech.Provider, "unset keys keep their defaults")
	assert.Equal(t, 300, cfg.Speech.EndpointingMs)
	assert.True(t, cfg.Clipboard.CopyOnCreate)
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeConfig(t, "locale: en-US\nnotify:\n  sound: true\n")
	t.Setenv("NOTECARD_LOCALE", "es-ES")
	t.Setenv("NOTECARD_NOTIFY_SOUND", "false")
	t.Setenv("NOTECARD_NOTIFY_TOAST_SECONDS", "5")
	t.Setenv("NOTECARD_AUDIO_DEVICE", "USB Mic")
	t.Setenv("NOTECARD_SPEECH_PROVIDER", "none")
	t.Setenv("NOTECARD_LOG_LEVEL", "debug")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "es-ES", cfg.Locale)
	assert.False(t, cfg.Notify.Sound)
	assert.Equal(t, 5, cfg.Notify.ToastSeconds)
	assert.Equal(t, "USB Mic", cfg.Audio.Device)
	assert.Equal(t, "none", cfg.Speech.Provider)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvIgnoresBlankAndMalformed(t *testing.T) {
	t.Setenv("NOTECARD_LOCALE", "  ")
	t.Setenv("NOTECARD_SPEECH_ENDPOINTING_MS", "soon")
	t.Setenv("NOTECARD_NOTIFY_DESKTOP", "maybe")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", cfg.Locale)
	assert.Equal(t, 300, cfg.Speech.EndpointingMs)
	assert.False(t, cfg.Notify.Desktop)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "speech: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty locale":      func(c *Config) { c.Locale = "" },
		"unknown provider":  func(c *Config) { c.Speech.Provider = "whisper" },
		"negative endpoint": func(c *Config) { c.Speech.EndpointingMs = -1 },
		"zero alternatives": func(c *Config) { c.Speech.MaxAlternatives = 0 },
		"zero toast":        func(c *Config) { c.Notify.ToastSeconds = 0 },
		"bad log level":     func(c *Config) { c.Log.Level = "verbose" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, validate(cfg))
		})
	}
	assert.NoError(t, validate(Default()))
}
