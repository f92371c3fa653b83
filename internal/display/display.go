// Package display renders the clock face. The Terminal renderer draws it
// with lipgloss in place of an e-ink panel.
package display

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/bedclock/internal/kv"
)

// Namespace holds the persisted message and bottom label.
const Namespace = "display"

const (
	// MaxMessageLen bounds the custom top-row message.
	MaxMessageLen = 100
	// MaxBottomLabelLen bounds the custom bottom-row label.
	MaxBottomLabelLen = 50

	prefMessage     = "customMsg"
	prefBottomLabel = "bottomLabel"
)

// Alarm indicator values for Status.Alarm.
const (
	AlarmNone   = ""
	AlarmSet    = "ALARM"
	AlarmSnooze = "SNOOZE"
)

// Status is the indicator row shown above the clock.
type Status struct {
	BLEConnected bool
	TimeSynced   bool
	Alarm        string
}

// Renderer draws the two screens the clock has.
type Renderer interface {
	ShowClock(timeStr, dateStr, dayStr string, second int)
	ShowRinging(timeStr, label, bottom string)
	SetStatus(s Status)
	SetMessage(msg string) error
	Message() string
	SetBottomLabel(label string) error
	BottomLabel() string
}

// Theme colors the terminal face.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Alert   lipgloss.Color
}

// DefaultTheme is a green face with a red ringing screen.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Alert:   lipgloss.Color("#ff5f5f"),
}

// PlainTheme draws without color.
var PlainTheme = Theme{}

type styles struct {
	frame  lipgloss.Style
	ring   lipgloss.Style
	time   lipgloss.Style
	label  lipgloss.Style
	status lipgloss.Style
	dim    lipgloss.Style
}

func newStyles(t Theme, width int) styles {
	return styles{
		frame: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(t.Primary).
			Width(width).
			Align(lipgloss.Center),
		ring: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(t.Alert).
			Width(width).
			Align(lipgloss.Center),
		time:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(1, 0),
		label:  lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
		status: lipgloss.NewStyle().Foreground(t.Primary),
		dim:    lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Terminal renders frames to a writer, skipping frames identical to the
// last one drawn. It is safe for concurrent use.
type Terminal struct {
	out    io.Writer
	prefs  *kv.Prefs
	width  int
	clear  bool
	theme  Theme
	styles styles

	mu          sync.Mutex
	status      Status
	message     string
	bottomLabel string
	scroll      int
	last        string
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithWidth sets the inner width of the face in cells.
func WithWidth(w int) Option {
	return func(t *Terminal) { t.width = w }
}

// WithTheme overrides DefaultTheme.
func WithTheme(th Theme) Option {
	return func(t *Terminal) { t.theme = th }
}

// WithClear makes every frame clear the screen first.
func WithClear(clear bool) Option {
	return func(t *Terminal) { t.clear = clear }
}

// NewTerminal returns a renderer writing to out. The custom message and
// bottom label are restored from prefs, which may be nil.
func NewTerminal(out io.Writer, prefs *kv.Prefs, opts ...Option) *Terminal {
	t := &Terminal{out: out, prefs: prefs, width: 36, theme: DefaultTheme}
	for _, o := range opts {
		o(t)
	}
	t.styles = newStyles(t.theme, t.width)
	if prefs != nil {
		t.message = prefs.GetString(prefMessage, "")
		t.bottomLabel = prefs.GetString(prefBottomLabel, "")
		if t.message != "" {
			slog.Info("[DISPLAY] restored custom message", "message", t.message)
		}
	}
	return t
}

func (t *Terminal) statusLine() string {
	ble := "---"
	if t.status.BLEConnected {
		ble = "BLE"
	}
	clock := " "
	if !t.status.TimeSynced {
		clock = "?"
	}
	left := t.styles.status.Render(ble + " " + clock)
	right := t.styles.status.Render(t.status.Alarm)
	gap := max(1, t.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

// ShowClock draws the main face. A custom message replaces the weekday on
// the top row and scrolls when wider than the face; the bottom label, if
// set, replaces the date row.
func (t *Terminal) ShowClock(timeStr, dateStr, dayStr string, second int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	top := dayStr
	bottom := dateStr
	if t.message != "" {
		top = t.marquee(t.message)
		bottom = dayStr + " " + dateStr
	}
	if t.bottomLabel != "" {
		bottom = t.bottomLabel
	}

	body := strings.Join([]string{
		t.statusLine(),
		top,
		t.styles.time.Render(timeStr),
		t.styles.dim.Render(secondsBar(second)),
		bottom,
	}, "\n")
	t.draw(t.styles.frame.Render(body))
}

// ShowRinging draws the alarm screen.
func (t *Terminal) ShowRinging(timeStr, label, bottom string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := []string{
		t.styles.label.Render(truncate(label, t.width)),
		t.styles.time.Render(timeStr),
	}
	if bottom != "" {
		lines = append(lines, truncate(bottom, t.width))
	} else {
		lines = append(lines,
			t.styles.dim.Render("Single click: Snooze"),
			t.styles.dim.Render("Double click: Dismiss"))
	}
	t.draw(t.styles.ring.Render(strings.Join(lines, "\n")))
}

func (t *Terminal) draw(frame string) {
	if frame == t.last {
		return
	}
	t.last = frame
	if t.clear {
		fmt.Fprint(t.out, "\x1b[H\x1b[2J")
	}
	fmt.Fprintln(t.out, frame)
}

// marquee returns the visible window of a long message and advances it.
func (t *Terminal) marquee(msg string) string {
	if lipgloss.Width(msg) <= t.width {
		return msg
	}
	loop := []rune(msg + "     ")
	start := t.scroll % len(loop)
	t.scroll++
	window := append(loop[start:], loop[:start]...)
	return truncate(string(window), t.width)
}

// SetStatus updates the indicator row; it is drawn with the next frame.
func (t *Terminal) SetStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// SetMessage sets and persists the top-row message. An empty message
// restores the weekday.
func (t *Terminal) SetMessage(msg string) error {
	msg = truncateRunes(msg, MaxMessageLen)
	t.mu.Lock()
	t.message = msg
	t.scroll = 0
	t.mu.Unlock()
	slog.Info("[DISPLAY] custom message set", "message", msg)
	return t.persist(prefMessage, msg)
}

// Message returns the custom message.
func (t *Terminal) Message() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.message
}

// SetBottomLabel sets and persists the bottom-row label.
func (t *Terminal) SetBottomLabel(label string) error {
	label = truncateRunes(label, MaxBottomLabelLen)
	t.mu.Lock()
	t.bottomLabel = label
	t.mu.Unlock()
	return t.persist(prefBottomLabel, label)
}

// BottomLabel returns the bottom-row label.
func (t *Terminal) BottomLabel() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bottomLabel
}

func (t *Terminal) persist(key, value string) error {
	if t.prefs == nil {
		return nil
	}
	if err := t.prefs.PutString(key, value); err != nil {
		return fmt.Errorf("display: saving %s: %w", key, err)
	}
	return nil
}

// secondsBar shows progress through the minute in twelve 5-second steps.
func secondsBar(second int) string {
	n := max(0, min(12, second/5))
	return strings.Repeat("●", n) + strings.Repeat("○", 12-n)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// truncate cuts s to at most width cells.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := 0
	for i, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width {
			return s[:i]
		}
		w += rw
	}
	return s
}
