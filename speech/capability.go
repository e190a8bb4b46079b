package speech

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"notecard/audio"
)

// Key variables in lookup order; the prefixed one wins.
var deepgramKeyVars = []string{"NOTECARD_DEEPGRAM_API_KEY", "DEEPGRAM_API_KEY"}

// HostConfig configures the production capability.
type HostConfig struct {
	Provider      string // "deepgram" or "none"
	Model         string
	EndpointingMs int
	DeviceName    string

	// OpenAudio defaults to audio.NewContext.
	OpenAudio func() (audio.Context, error)
}

// HostCapability probes the machine each time dictation is requested: an API
// key must be set, an audio backend must be reachable, and at least one
// capture device must exist.
type HostCapability struct {
	cfg HostConfig

	mu   sync.Mutex
	actx audio.Context
}

func NewHostCapability(cfg HostConfig) *HostCapability {
	if cfg.OpenAudio == nil {
		cfg.OpenAudio = audio.NewContext
	}
	return &HostCapability{cfg: cfg}
}

func deepgramKey() string {
	for _, name := range deepgramKeyVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func (h *HostCapability) Lookup() (Recognizer, error) {
	h.mu.Lock()
	cfg := h.cfg
	h.mu.Unlock()

	switch cfg.Provider {
	case "", "deepgram":
	case "none":
		return nil, ErrUnsupported
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrUnsupported, cfg.Provider)
	}

	key := deepgramKey()
	if key == "" {
		return nil, fmt.Errorf("%w: set %s", ErrUnsupported, strings.Join(deepgramKeyVars, " or "))
	}

	actx, err := h.audioContext()
	if err != nil {
		return nil, fmt.Errorf("%w: audio backend: %v", ErrUnsupported, err)
	}
	devices, err := actx.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: listing microphones: %v", ErrUnsupported, err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no microphone found", ErrUnsupported)
	}

	return NewDeepgram(key, actx, DeepgramOptions{
		Model:         cfg.Model,
		EndpointingMs: cfg.EndpointingMs,
		Device:        audio.FindDevice(actx, cfg.DeviceName),
	}), nil
}

// audioContext opens the shared audio context on first success and retries
// on later lookups if it failed.
func (h *HostCapability) audioContext() (audio.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.actx != nil {
		return h.actx, nil
	}
	actx, err := h.cfg.OpenAudio()
	if err != nil {
		return nil, err
	}
	h.actx = actx
	return actx, nil
}

// Devices lists capture devices through the shared audio context.
func (h *HostCapability) Devices() ([]audio.DeviceInfo, error) {
	actx, err := h.audioContext()
	if err != nil {
		return nil, err
	}
	return actx.Devices()
}

// Device returns the configured microphone name; "" means system default.
func (h *HostCapability) Device() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg.DeviceName
}

// SetDevice changes the microphone used by recognizers looked up afterwards.
func (h *HostCapability) SetDevice(name string) {
	h.mu.Lock()
	h.cfg.DeviceName = name
	h.mu.Unlock()
}

func (h *HostCapability) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.actx != nil {
		h.actx.Close()
		h.actx = nil
	}
}
