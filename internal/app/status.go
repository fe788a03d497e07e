package app

import "time"

// statusTTL is how long a transient status stays visible before it
// self-dismisses.
const statusTTL = 5 * time.Second

type StatusLevel int

const (
	StatusInfo StatusLevel = iota
	StatusWarn
)

// Status is a transient, self-dismissing message, used for dispatch
// outcomes and other non-fatal feedback.
type Status struct {
	Text      string
	Level     StatusLevel
	ExpiresAt time.Time
}

func (o *Orchestrator) pushStatus(text string, level StatusLevel) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, Status{
		Text:      text,
		Level:     level,
		ExpiresAt: o.clock.Now().Add(statusTTL),
	})
}

// Statuses returns the not-yet-expired transient statuses, pruning the
// rest.
func (o *Orchestrator) Statuses() []Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.clock.Now()
	live := o.statuses[:0]
	for _, s := range o.statuses {
		if s.ExpiresAt.After(now) {
			live = append(live, s)
		}
	}
	o.statuses = live

	out := make([]Status, len(live))
	copy(out, live)
	return out
}
