//go:build integration

package test_test

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"notecard/clipboard"
)

var (
	testBinary  string
	silencePath string
)

func TestMain(m *testing.M) {
	testBinary = os.Getenv("NOTECARD_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "NOTECARD_TEST_BIN not set; build with: go build -o /tmp/notecard . && NOTECARD_TEST_BIN=/tmp/notecard go test -tags integration ./test")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "notecard-it")
	if err != nil {
		fmt.Fprintf(os.Stderr, "temp dir: %v\n", err)
		os.Exit(1)
	}
	silencePath = filepath.Join(dir, "silence.wav")
	if err := writeSilenceWAV(silencePath, 16000, 1.0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate silence.wav: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func writeSilenceWAV(path string, sampleRate int, durationS float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, int(float64(sampleRate)*durationS)),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

// withoutKeys drops every Deepgram key from the environment.
func withoutKeys(env []string) []string {
	out := env[:0:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, "DEEPGRAM_API_KEY=") || strings.HasPrefix(kv, "NOTECARD_DEEPGRAM_API_KEY=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func runNotecard(t *testing.T, env []string, stdin string, args ...string) (output, logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir, "-locale", "en-US"}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(env, "NOTECARD_NOTIFY_SOUND=false", "NOTECARD_CLIPBOARD_COPY_ON_CREATE=false")

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("notecard exited with error: %v\noutput: %s", err, out)
	}
	return string(out), logDir
}

func readLog(t *testing.T, logDir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, "diagnostics_log.txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read diagnostics: %v", err)
	}
	return string(data)
}

func requireDeepgramKey(t *testing.T) {
	t.Helper()
	if os.Getenv("DEEPGRAM_API_KEY") == "" && os.Getenv("NOTECARD_DEEPGRAM_API_KEY") == "" {
		t.Skip("DEEPGRAM_API_KEY not set")
	}
}

// --- Typing ---

func TestTypedNote(t *testing.T) {
	out, logDir := runNotecard(t, os.Environ(),
		cmds("OPEN", "TYPE hello board", "SUBMIT", "QUIT"), "-test", silencePath)

	if !strings.Contains(out, `CREATED "hello board"`) {
		t.Errorf("missing CREATED line:\n%s", out)
	}
	if !strings.Contains(out, "OK: Note created successfully!") {
		t.Errorf("missing success notification:\n%s", out)
	}
	diag := readLog(t, logDir)
	if !strings.Contains(diag, "note_created") || !strings.Contains(diag, "source=typed") {
		t.Errorf("expected typed note_created in diagnostics:\n%s", diag)
	}
	if strings.Contains(diag, "hello board") {
		t.Error("note text leaked into diagnostics")
	}
}

func TestEmptySubmitRejected(t *testing.T) {
	out, _ := runNotecard(t, os.Environ(), cmds("OPEN", "SUBMIT", "QUIT"), "-test", silencePath)
	if !strings.Contains(out, "EMPTY") {
		t.Errorf("expected EMPTY:\n%s", out)
	}
	if strings.Contains(out, "CREATED") {
		t.Errorf("empty note was created:\n%s", out)
	}
}

// --- Unsupported recognition ---

func TestRecordWithoutKey(t *testing.T) {
	out, _ := runNotecard(t, withoutKeys(os.Environ()),
		cmds("OPEN", "RECORD", "TYPE still typing", "SUBMIT", "QUIT"), "-test", silencePath)

	if !strings.Contains(out, "WARN: Speech recognition is not available") {
		t.Errorf("expected unsupported warning:\n%s", out)
	}
	if strings.Contains(out, "MODE dictating") {
		t.Errorf("entered dictation without a recognizer:\n%s", out)
	}
	if !strings.Contains(out, `CREATED "still typing"`) {
		t.Errorf("typing fallback failed:\n%s", out)
	}
}

func TestRecordProviderNone(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("speech:\n  provider: none\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, _ := runNotecard(t, os.Environ(), cmds("OPEN", "RECORD", "QUIT"),
		"-config", cfgPath, "-test", silencePath)
	if !strings.Contains(out, "WARN: Speech recognition is not available") {
		t.Errorf("expected unsupported warning:\n%s", out)
	}
}

// --- Dictation (live Deepgram) ---

func TestDictationSilence(t *testing.T) {
	requireDeepgramKey(t)
	out, logDir := runNotecard(t, os.Environ(),
		cmds("OPEN", "RECORD", "WAIT_AUDIO_DONE", "SLEEP 500", "STOP", "SUBMIT", "QUIT"),
		"-test", silencePath)

	if !strings.Contains(out, "MODE dictating") || !strings.Contains(out, "MODE editing") {
		t.Errorf("expected dictating then editing:\n%s", out)
	}
	if !strings.Contains(out, "EMPTY") {
		t.Errorf("silence should leave an empty draft:\n%s", out)
	}
	diag := readLog(t, logDir)
	for _, want := range []string{"dictation_start", "dictation_stop", "stream_metrics", "connect_ms"} {
		if !strings.Contains(diag, want) {
			t.Errorf("expected %s in diagnostics", want)
		}
	}
}

// NOTECARD_TEST_SPEECH_WAV points at a 16 kHz mono WAV with spoken English.
func TestDictationSpeech(t *testing.T) {
	requireDeepgramKey(t)
	speech := os.Getenv("NOTECARD_TEST_SPEECH_WAV")
	if speech == "" {
		t.Skip("NOTECARD_TEST_SPEECH_WAV not set")
	}

	sentinel := fmt.Sprintf("notecard-test-sentinel-%d", time.Now().UnixNano())
	clipOK := clipboard.Copy(sentinel) == nil

	out, logDir := runNotecard(t, os.Environ(),
		cmds("OPEN", "RECORD", "WAIT_AUDIO_DONE", "SLEEP 1500", "SUBMIT", "QUIT"), "-test", speech)

	if !strings.Contains(out, "DRAFT ") {
		t.Errorf("no draft updates while dictating:\n%s", out)
	}
	if !strings.Contains(out, "CREATED ") {
		t.Errorf("dictated note not created:\n%s", out)
	}
	if !strings.Contains(readLog(t, logDir), "source=dictated") {
		t.Error("expected dictated note_created in diagnostics")
	}

	if clipOK {
		clip, err := clipboard.Read()
		if err == nil && strings.TrimSpace(clip) != sentinel {
			t.Errorf("clipboard changed with copy_on_create off: %q", clip)
		}
	}
}
