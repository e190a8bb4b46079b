package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"notecard/audio"
	"notecard/beep"
	"notecard/composer"
	"notecard/log"
	"notecard/notify"
	"notecard/speech"
)

type tickMsg time.Time

const maxToasts = 3

type toast struct {
	text  string
	warn  bool
	until time.Time
}

// toaster is the TUI's notifier. Toasts expire after ttl.
type toaster struct {
	ttl    time.Duration
	now    func() time.Time
	toasts []toast
}

func newToaster(ttl time.Duration) *toaster {
	return &toaster{ttl: ttl, now: time.Now}
}

func (t *toaster) Success(msg string) { t.push(msg, false) }
func (t *toaster) Warn(msg string)    { t.push(msg, true) }

func (t *toaster) push(msg string, warn bool) {
	t.toasts = append(t.toasts, toast{text: msg, warn: warn, until: t.now().Add(t.ttl)})
	if len(t.toasts) > maxToasts {
		t.toasts = t.toasts[len(t.toasts)-maxToasts:]
	}
}

// active drops expired toasts and returns the rest.
func (t *toaster) active(now time.Time) []toast {
	kept := t.toasts[:0]
	for _, ts := range t.toasts {
		if now.Before(ts.until) {
			kept = append(kept, ts)
		}
	}
	t.toasts = kept
	return kept
}

// devicePicker switches the microphone used by later dictations.
type devicePicker interface {
	Devices() ([]audio.DeviceInfo, error)
	Device() string
	SetDevice(name string)
}

type tuiOptions struct {
	Capability      speech.Capability
	Devices         devicePicker // nil disables switching
	Board           *board
	Notifiers       []notify.Notifier
	Locale          string
	InterimResults  bool
	MaxAlternatives int
	ToastTTL        time.Duration
	Sounds          bool
	ModeLine        string
}

type tuiModel struct {
	ctx      context.Context
	c        *composer.Composer
	board    *board
	toasts   *toaster
	input    *textarea.Model
	devices  devicePicker
	sounds   bool
	play     func(beep.Cue)
	modeLine string

	dialog        bool
	width, height int
	level         float64
	now           time.Time
}

func newNoteInput() *textarea.Model {
	ta := textarea.New()
	ta.Placeholder = "Type your note..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(60)
	ta.SetHeight(5)
	return &ta
}

func newTUIModel(ctx context.Context, o tuiOptions) tuiModel {
	if o.ToastTTL == 0 {
		o.ToastTTL = 3 * time.Second
	}
	input := newNoteInput()
	toasts := newToaster(o.ToastTTL)
	notifiers := append(notify.Multi{toasts}, o.Notifiers...)

	c := composer.New(o.Board.Create, o.Capability,
		composer.WithLocale(o.Locale),
		composer.WithRecognition(o.InterimResults, o.MaxAlternatives),
		composer.WithNotifier(notifiers),
		composer.WithFocus(func() { input.Focus() }),
	)
	return tuiModel{
		ctx:      ctx,
		c:        c,
		board:    o.Board,
		toasts:   toasts,
		input:    input,
		devices:  o.Devices,
		sounds:   o.Sounds,
		play:     beep.Play,
		modeLine: o.ModeLine,
		now:      time.Now(),
	}
}

func NewTUIProgram(ctx context.Context, o tuiOptions) (*tea.Program, *composer.Composer) {
	m := newTUIModel(ctx, o)
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)), m.c
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(max(20, min(msg.Width-8, 72)))

	case tickMsg:
		m.now = time.Time(msg)
		m.level = 0
		if l, ok := m.c.Session().(speech.Leveler); ok {
			m.level = l.Level()
		}
		return m, tuiTick()

	case sessionEventMsg:
		if m.c.HandleEvent(msg.sess, msg.ev) {
			m.input.SetValue(m.c.Draft())
		}
		return m, waitForSessionEvent(msg.sess)

	case sessionEndMsg:
		// the live session ended on its own
		if msg.sess == m.c.Session() {
			m.stopDictation()
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}

	if !m.dialog {
		switch key {
		case "n", "enter":
			m.dialog = true
			if _, ok := m.c.Mode().(composer.Onboarding); !ok {
				m.input.Focus()
			}
		case "d":
			m.cycleDevice()
		case "q":
			return m.quit()
		}
		return m, nil
	}

	switch key {
	case "esc":
		m.dialog = false
		m.input.Blur()
		return m, nil
	case "ctrl+x":
		m.c.Cancel()
		m.input.Reset()
		m.input.Blur()
		return m, nil
	case "ctrl+s":
		if m.c.Submit() {
			m.input.Reset()
			m.input.Blur()
			m.dialog = false
		}
		return m, nil
	}

	switch m.c.Mode().(type) {
	case composer.Onboarding:
		switch key {
		case "r":
			return m.startDictation()
		case "t":
			m.c.StartEditing()
		case "q":
			return m.quit()
		}
		return m, nil

	case composer.Dictating:
		if key == "enter" || key == "ctrl+r" {
			m.stopDictation()
			return m, nil
		}
	}

	var cmd tea.Cmd
	*m.input, cmd = m.input.Update(msg)
	m.c.Edit(m.input.Value())
	if _, ok := m.c.Mode().(composer.Onboarding); ok {
		m.input.Blur()
	}
	return m, cmd
}

func (m tuiModel) startDictation() (tea.Model, tea.Cmd) {
	// failures are already voiced by the composer's notifier
	if err := m.c.StartDictation(m.ctx); err != nil {
		return m, nil
	}
	m.cue(beep.CueStart)
	m.input.Reset()
	m.input.Focus()
	return m, waitForSessionEvent(m.c.Session())
}

func (m *tuiModel) stopDictation() {
	if m.c.StopDictation() {
		m.cue(beep.CueStop)
	}
	m.input.SetValue(m.c.Draft())
}

func (m tuiModel) cue(c beep.Cue) {
	if m.sounds {
		m.play(c)
	}
}

func (m tuiModel) quit() (tea.Model, tea.Cmd) {
	m.c.Close()
	return m, tea.Quit
}

func (m *tuiModel) cycleDevice() {
	if m.devices == nil {
		return
	}
	devices, err := m.devices.Devices()
	if err != nil || len(devices) == 0 {
		m.toasts.Warn("No microphones found")
		return
	}
	// "" (system default) is the first stop of the cycle
	names := []string{""}
	for _, d := range devices {
		names = append(names, d.Name)
	}
	cur := m.devices.Device()
	next := names[0]
	for i, n := range names {
		if n == cur {
			next = names[(i+1)%len(names)]
			break
		}
	}
	m.devices.SetDevice(next)
	log.Info("device_switch: " + deviceLabel(next))
	m.toasts.Success("Microphone: " + deviceLabel(next))
}

func deviceLabel(name string) string {
	if name == "" {
		return "system default"
	}
	if audio.IsBluetooth(name) {
		return name + " (BT!)"
	}
	return name
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	dialogStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	meterColors = []string{"46", "46", "82", "118", "154", "190", "226", "220", "214", "208", "196", "160"}
	meterStyles []lipgloss.Style
)

func init() {
	for _, c := range meterColors {
		meterStyles = append(meterStyles, lipgloss.NewStyle().Foreground(lipgloss.Color(c)))
	}
}

// renderLevel draws a horizontal meter for an RMS level in 0..1.
func renderLevel(level float64) string {
	// speech rarely exceeds 0.3 RMS
	n := int(min(level/0.3, 1) * float64(len(meterStyles)))
	var b strings.Builder
	for i := range meterStyles {
		if i < n {
			b.WriteString(meterStyles[i].Render("█"))
		} else {
			b.WriteString(dimStyle.Render("·"))
		}
	}
	return b.String()
}

func help(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, keyStyle.Render(pairs[i])+helpStyle.Render(" "+pairs[i+1]))
	}
	return strings.Join(parts, helpStyle.Render(" · "))
}

func (m tuiModel) View() string {
	var lines []string

	header := titleStyle.Render("notecard")
	if m.modeLine != "" {
		header += " " + dimStyle.Render(m.modeLine)
	}
	lines = append(lines, header)
	if m.devices != nil {
		lines = append(lines, dimStyle.Render("mic: "+deviceLabel(m.devices.Device())))
	}
	lines = append(lines, "")

	if m.dialog {
		lines = append(lines, m.dialogView())
	} else {
		lines = append(lines, m.boardView()...)
		if d, ok := m.c.Mode().(composer.Dictating); ok {
			lines = append(lines, "", recStyle.Render(fmt.Sprintf("● dictating %.0fs", m.now.Sub(d.Started).Seconds()))+
				dimStyle.Render(" (n to reopen)"))
		}
	}

	if toasts := m.toasts.active(m.now); len(toasts) > 0 {
		lines = append(lines, "")
		for _, t := range toasts {
			if t.warn {
				lines = append(lines, warnStyle.Render("⚠ "+t.text))
			} else {
				lines = append(lines, successStyle.Render("✓ "+t.text))
			}
		}
	}

	lines = append(lines, "")
	if m.dialog {
		lines = append(lines, helpStyle.Render("notecard "+version))
	} else {
		lines = append(lines, help("n", "new note", "d", "mic", "q", "quit")+helpStyle.Render("  "+version))
	}
	return strings.Join(lines, "\n")
}

func (m tuiModel) boardView() []string {
	notes := m.board.Notes()
	if len(notes) == 0 {
		return []string{dimStyle.Render("No notes yet. Press n to write one.")}
	}
	width := max(m.width-20, 20)
	lines := []string{dimStyle.Render(fmt.Sprintf("%d notes", len(notes)))}
	for _, n := range notes {
		lines = append(lines, "• "+noteStyle.Render(n.Preview(width))+" "+dimStyle.Render(n.Age(m.now)))
	}
	return lines
}

func (m tuiModel) dialogView() string {
	var body []string
	body = append(body, titleStyle.Render("New note"), "")

	switch mode := m.c.Mode().(type) {
	case composer.Onboarding:
		body = append(body,
			"How do you want to write it?",
			"",
			help("r", "record", "t", "type"),
			"",
			help("esc", "close", "ctrl+x", "cancel"),
		)
	case composer.Editing:
		body = append(body,
			m.input.View(),
			"",
			help("ctrl+s", "save", "ctrl+x", "discard", "esc", "hide"),
		)
	case composer.Dictating:
		elapsed := m.now.Sub(mode.Started).Seconds()
		body = append(body,
			recStyle.Render(fmt.Sprintf("● REC %.1fs", max(elapsed, 0)))+"  "+renderLevel(m.level),
			"",
			m.input.View(),
			"",
			help("enter", "stop", "ctrl+s", "save", "ctrl+x", "discard", "esc", "hide"),
		)
	}
	return dialogStyle.Render(strings.Join(body, "\n"))
}
