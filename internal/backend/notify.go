package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"milkadmin/pkg/requestcontext"
)

//go:generate mockgen -source=notify.go -destination=mocks/mocks.go -package=mocks Notifier

// Notifier receives exactly one notification per failed backend call.
type Notifier interface {
	Notify(ctx context.Context, err *APIError)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, *APIError) {}

// Notification is one operator-facing failure message.
type Notification struct {
	ID        uint64    `json:"id"`
	At        time.Time `json:"at"`
	Kind      Kind      `json:"kind"`
	Status    int       `json:"status,omitempty"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Messages  []string  `json:"messages"`
	RequestID string    `json:"request_id,omitempty"`
}

// Feed is a bounded in-memory Notifier. The oldest entries are dropped once
// the limit is reached.
type Feed struct {
	mu      sync.Mutex
	entries []Notification
	next    int
	full    bool
	seq     uint64
	logger  *slog.Logger
	now     func() time.Time
}

type FeedOption func(*Feed)

func WithFeedLogger(logger *slog.Logger) FeedOption {
	return func(f *Feed) {
		f.logger = logger
	}
}

func WithFeedClock(now func() time.Time) FeedOption {
	return func(f *Feed) {
		f.now = now
	}
}

// NewFeed creates a feed retaining at most limit notifications.
func NewFeed(limit int, opts ...FeedOption) *Feed {
	if limit <= 0 {
		limit = 50
	}
	f := &Feed{
		entries: make([]Notification, limit),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Feed) Notify(ctx context.Context, err *APIError) {
	if err == nil {
		return
	}
	messages := err.Messages()
	requestID := requestcontext.RequestID(ctx)

	f.mu.Lock()
	f.seq++
	n := Notification{
		ID:        f.seq,
		At:        f.now(),
		Kind:      err.Kind,
		Status:    err.Status,
		Method:    err.Method,
		Path:      err.Path,
		Messages:  messages,
		RequestID: requestID,
	}
	f.entries[f.next] = n
	f.next = (f.next + 1) % len(f.entries)
	if f.next == 0 {
		f.full = true
	}
	f.mu.Unlock()

	f.logger.WarnContext(ctx, "backend call failed",
		"request_id", requestID,
		"kind", err.Kind,
		"status", err.Status,
		"method", err.Method,
		"path", err.Path,
		"messages", messages,
		"error", err.Err,
	)
}

// Recent returns up to n notifications, newest first. n <= 0 returns all.
func (f *Feed) Recent(n int) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	size := f.next
	if f.full {
		size = len(f.entries)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Notification, 0, n)
	for i := 1; i <= n; i++ {
		idx := (f.next - i + len(f.entries)) % len(f.entries)
		out = append(out, f.entries[idx])
	}
	return out
}

// Len returns how many notifications are retained.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return len(f.entries)
	}
	return f.next
}
