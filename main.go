package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"notecard/audio"
	"notecard/beep"
	"notecard/config"
	"notecard/doctor"
	"notecard/log"
	"notecard/notify"
	"notecard/shutdown"
	"notecard/speech"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func modeLineText(cfg config.Config) string {
	if cfg.Speech.Provider == "none" {
		return "[typing only]"
	}
	return fmt.Sprintf("[%s %s | %s]", cfg.Speech.Provider, cfg.Speech.Model, cfg.Locale)
}

// initCrashLog appends Go runtime crash output to crash_log.txt in the log dir.
func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func run() int {
	configFlag := flag.String("config", "", "YAML config file (default: notecard/config.yaml in the user config dir, if present)")
	localeFlag := flag.String("locale", "", "Dictation language, BCP-47 (e.g. pt-BR, en-US)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven); needs a 16 kHz mono WAV argument")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	logLevelFlag := flag.String("loglevel", "", "log level: debug, info, warn or error")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("notecard %s\n", version)
		return 0
	}

	cfgPath := *configFlag
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *localeFlag != "" {
		cfg.Locale = *localeFlag
	}
	if *deviceFlag != "" {
		cfg.Audio.Device = *deviceFlag
	}
	if *logPathFlag != "" {
		cfg.Log.Path = *logPathFlag
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}

	logPath, err := log.ResolveDir(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *setupFlag && cfg.Audio.Device == "" {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Printf("Error initializing audio: %v\n", err)
			return 1
		}
		dev, err := audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\nFalling back to default device\n", err)
		} else if dev != nil {
			cfg.Audio.Device = dev.Name
		}
		actx.Close()
	}

	hostCfg := speech.HostConfig{
		Provider:      cfg.Speech.Provider,
		Model:         cfg.Speech.Model,
		EndpointingMs: cfg.Speech.EndpointingMs,
		DeviceName:    cfg.Audio.Device,
	}

	var fake *audio.FakeContext
	if *testFlag {
		if flag.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "Usage: notecard -test <wav-file>")
			return 1
		}
		fake, err = audio.NewFakeContext(flag.Arg(0), true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
			return 1
		}
		hostCfg.OpenAudio = func() (audio.Context, error) { return fake, nil }
		beep.Disable()
	}
	if !cfg.Notify.Sound {
		beep.Disable()
	}

	capability := speech.NewHostCapability(hostCfg)
	defer capability.Close()

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	log.SessionStart(cfg.Speech.Provider, cfg.Locale, version)

	if *doctorFlag {
		return doctor.Run(doctor.Options{
			Capability: capability,
			DeviceName: cfg.Audio.Device,
			Locale:     cfg.Locale,
		})
	}

	b := newBoard(cfg.Clipboard.CopyOnCreate)
	defer func() { log.SessionEnd(b.Len()) }()

	if *testFlag {
		err := runHeadless(ctx, os.Stdin, os.Stdout, headlessOptions{
			Capability:      capability,
			Locale:          cfg.Locale,
			InterimResults:  cfg.Speech.InterimResults,
			MaxAlternatives: cfg.Speech.MaxAlternatives,
			Board:           b,
			AudioDone: func() <-chan struct{} {
				if c := fake.LastCapture(); c != nil {
					return c.AudioDone()
				}
				done := make(chan struct{})
				close(done)
				return done
			},
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("headless: %v", err)
			return 1
		}
		return 0
	}

	var notifiers []notify.Notifier
	if cfg.Notify.Sound {
		notifiers = append(notifiers, notify.Sound{})
	}
	if cfg.Notify.Desktop {
		notifiers = append(notifiers, notify.Desktop{})
	}

	p, c := NewTUIProgram(ctx, tuiOptions{
		Capability:      capability,
		Devices:         capability,
		Board:           b,
		Notifiers:       notifiers,
		Locale:          cfg.Locale,
		InterimResults:  cfg.Speech.InterimResults,
		MaxAlternatives: cfg.Speech.MaxAlternatives,
		ToastTTL:        time.Duration(cfg.Notify.ToastSeconds) * time.Second,
		Sounds:          cfg.Notify.Sound,
		ModeLine:        modeLineText(cfg),
	})
	_, err = p.Run()
	// the loop has exited; nothing else touches the composer now
	c.Close()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
