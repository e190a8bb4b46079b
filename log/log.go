package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const diagFileName = "diagnostics_log.txt"

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	level    = zerolog.InfoLevel
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}
	// Priority 2: NOTECARD_LOG_PATH
	if envPath := os.Getenv("NOTECARD_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}
	return defaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) { dir = d }

func Dir() string { return dir }

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// SetLevel accepts zerolog level names ("debug", "info", "warn", ...).
// It must be called before Init to take effect.
func SetLevel(name string) error {
	if name == "" {
		return nil
	}
	l, err := zerolog.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	level = l
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if logReady {
		return nil
	}
	if err := EnsureDir(); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, diagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	diagFile = f

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", os.Getpid()).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	logReady = false
}

func ready() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return logReady
}

func Debug(msg string) {
	if ready() {
		diagLog.Debug().Msg(msg)
	}
}

func Info(msg string) {
	if ready() {
		diagLog.Info().Msg(msg)
	}
}

func Warn(msg string) {
	if ready() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if ready() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if ready() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if ready() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(provider, locale, version string) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("provider", provider).
		Str("locale", locale).
		Str("version", version).
		Msg("session_start")
}

func SessionEnd(notes int) {
	if !ready() {
		return
	}
	diagLog.Info().Int("notes", notes).Msg("session_end")
}

func DictationStart(provider, device string) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("provider", provider).
		Str("device", device).
		Msg("dictation_start")
}

func DictationStop(reason string, elapsed time.Duration) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("reason", reason).
		Dur("elapsed", elapsed).
		Msg("dictation_stop")
}

// RecognitionError records a mid-session recognizer failure. These never
// reach the user.
func RecognitionError(provider string, err error) {
	if !ready() {
		return
	}
	diagLog.Warn().
		Str("provider", provider).
		Err(err).
		Msg("recognition_error")
}

// NoteCreated logs the shape of a submitted note; the text itself stays out of the log.
func NoteCreated(source string, chars int) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("source", source).
		Int("chars", chars).
		Msg("note_created")
}

type StreamMetricsData struct {
	ConnectMs    float64
	TotalMs      float64
	AudioS       float64
	SentChunks   int
	SentKB       float64
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
	Segments     int
}

func StreamMetrics(m StreamMetricsData) {
	if !ready() {
		return
	}
	diagLog.Info().
		Float64("connect_ms", m.ConnectMs).
		Float64("total_ms", m.TotalMs).
		Float64("audio_s", m.AudioS).
		Int("sent_chunks", m.SentChunks).
		Float64("sent_kb", m.SentKB).
		Int("recv_messages", m.RecvMessages).
		Int("recv_final", m.RecvFinal).
		Int("recv_interim", m.RecvInterim).
		Int("segments", m.Segments).
		Msg("stream_metrics")
}
