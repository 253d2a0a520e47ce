// Package notify delivers advisory user notices (the storefront's toasts).
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Level is the notice severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// User-facing messages for failed cart operations.
const (
	MsgAddFailed    = "Failed to add product to cart. Please try again."
	MsgRemoveFailed = "Failed to remove product from cart."
	MsgUpdateFailed = "Failed to update quantity."
	MsgClearFailed  = "Failed to clear cart."
	MsgMergeFailed  = "We couldn't sync your saved cart. Your items are still here."
)

// Notice is one advisory message.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notice)

func (f Func) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Log writes notices to a slog.Logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "user notice", "severity", string(n.Level), "message", n.Message)
}

// Recorder keeps the most recent notices in a fixed-size ring.
type Recorder struct {
	mu    sync.Mutex
	buf   []Notice
	next  int
	full  bool
	total int
}

// NewRecorder keeps up to size notices. size < 1 is treated as 1.
func NewRecorder(size int) *Recorder {
	if size < 1 {
		size = 1
	}
	return &Recorder{buf: make([]Notice, size)}
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = n
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.total++
}

// Recent returns retained notices, oldest first.
func (r *Recorder) Recent() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Notice{}, r.buf[:r.next]...)
	}
	out := make([]Notice, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Total returns how many notices were ever recorded.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Multi fans a notice out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(ctx, n)
		}
	}
}

// Discard drops every notice.
var Discard Notifier = Func(func(context.Context, Notice) {})
