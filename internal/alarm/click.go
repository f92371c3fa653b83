package alarm

import "time"

// Action is what a resolved button gesture asks the engine to do.
type Action int

const (
	ActionNone Action = iota
	ActionSnooze
	ActionDismiss
)

func (a Action) String() string {
	switch a {
	case ActionSnooze:
		return "snooze"
	case ActionDismiss:
		return "dismiss"
	}
	return "none"
}

// ClickArbiter decides between snooze (single click) and dismiss (double
// click) while an alarm rings. A double click is only known after its
// second release, so a press is held pending for the click window and
// becomes a snooze only if no double click arrives first.
type ClickArbiter struct {
	window  time.Duration
	pending bool
	since   time.Time
}

// NewClickArbiter returns an arbiter using the given double-click window.
func NewClickArbiter(window time.Duration) *ClickArbiter {
	return &ClickArbiter{window: window}
}

// Press records a press edge. A press while one is already pending
// restarts the window, since it may be the first half of a double click.
func (a *ClickArbiter) Press(now time.Time) {
	a.pending = true
	a.since = now
}

// DoubleClick cancels any pending press and resolves to a dismiss.
func (a *ClickArbiter) DoubleClick() Action {
	a.pending = false
	return ActionDismiss
}

// Poll promotes a pending press to a snooze once the window has passed
// without a double click.
func (a *ClickArbiter) Poll(now time.Time) Action {
	if a.pending && now.Sub(a.since) >= a.window {
		a.pending = false
		return ActionSnooze
	}
	return ActionNone
}

// Pending reports whether a press is waiting on the window.
func (a *ClickArbiter) Pending() bool { return a.pending }

// Reset drops any pending press.
func (a *ClickArbiter) Reset() { a.pending = false }
