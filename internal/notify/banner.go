// Package notify shows reconciliation notifications to the session user.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/haltwatch/internal/metrics"
)

// DefaultDismissAfter is how long a message stays visible.
const DefaultDismissAfter = 5 * time.Second

// Banner displays the most recent notification and hides it after a
// timeout. It is safe for concurrent use.
type Banner struct {
	dismissAfter time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	current  string
	timer    *time.Timer
	seq      uint64
	onChange []func(string)
}

// NewBanner creates a Banner. dismissAfter <= 0 uses DefaultDismissAfter.
func NewBanner(dismissAfter time.Duration, logger *slog.Logger) *Banner {
	if dismissAfter <= 0 {
		dismissAfter = DefaultDismissAfter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Banner{
		dismissAfter: dismissAfter,
		logger:       logger,
	}
}

// OnChange registers fn to receive the visible message, "" when dismissed.
func (b *Banner) OnChange(fn func(string)) {
	b.mu.Lock()
	b.onChange = append(b.onChange, fn)
	b.mu.Unlock()
}

// Notify shows the last of messages and restarts the auto-dismiss timer.
// Every message is logged.
func (b *Banner) Notify(messages []string) {
	if len(messages) == 0 {
		return
	}
	for _, msg := range messages {
		b.logger.Info("notification", "message", msg)
	}
	metrics.Notifications.Add(float64(len(messages)))

	latest := messages[len(messages)-1]

	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.seq++
	seq := b.seq
	b.current = latest
	b.timer = time.AfterFunc(b.dismissAfter, func() { b.expire(seq) })
	hooks := b.hooks()
	b.mu.Unlock()

	for _, fn := range hooks {
		fn(latest)
	}
}

// Current returns the visible message, or "".
func (b *Banner) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Dismiss hides the message now and cancels the pending auto-dismiss.
func (b *Banner) Dismiss() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.seq++
	changed := b.current != ""
	b.current = ""
	hooks := b.hooks()
	b.mu.Unlock()

	if changed {
		for _, fn := range hooks {
			fn("")
		}
	}
}

// expire clears the message shown by Notify call seq, unless a newer
// message or a Dismiss came first.
func (b *Banner) expire(seq uint64) {
	b.mu.Lock()
	if seq != b.seq {
		b.mu.Unlock()
		return
	}
	b.current = ""
	b.timer = nil
	hooks := b.hooks()
	b.mu.Unlock()

	for _, fn := range hooks {
		fn("")
	}
}

func (b *Banner) hooks() []func(string) {
	return append(([]func(string))(nil), b.onChange...)
}
