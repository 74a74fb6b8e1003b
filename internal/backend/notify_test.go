package backend

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"milkadmin/pkg/requestcontext"
)

func TestFeed(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	feed := NewFeed(3,
		WithFeedLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithFeedClock(func() time.Time { return now }),
	)

	t.Run("empty feed", func(t *testing.T) {
		assert.Empty(t, feed.Recent(0))
		assert.Zero(t, feed.Len())
	})

	t.Run("records messages newest first", func(t *testing.T) {
		ctx := requestcontext.WithRequestID(context.Background(), "req-1")
		feed.Notify(ctx, &APIError{Kind: KindNotFound, Status: 404, Method: "GET", Path: "product/9", Title: "Product not found"})
		feed.Notify(ctx, &APIError{Kind: KindUnavailable, Method: "GET", Path: "brand"})

		recent := feed.Recent(0)
		assert.Len(t, recent, 2)
		assert.Equal(t, KindUnavailable, recent[0].Kind)
		assert.Equal(t, []string{"Product not found"}, recent[1].Messages)
		assert.Equal(t, "req-1", recent[1].RequestID)
		assert.Equal(t, uint64(1), recent[1].ID)
		assert.Equal(t, now, recent[1].At)
	})

	t.Run("drops the oldest beyond the limit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			feed.Notify(context.Background(), &APIError{Kind: KindServer, Status: 500, Title: "boom"})
		}
		assert.Equal(t, 3, feed.Len())
		recent := feed.Recent(10)
		assert.Len(t, recent, 3)
		assert.Equal(t, uint64(5), recent[0].ID)
		assert.Equal(t, uint64(3), recent[2].ID)
	})

	t.Run("limits the result", func(t *testing.T) {
		assert.Len(t, feed.Recent(1), 1)
	})

	t.Run("ignores nil", func(t *testing.T) {
		feed.Notify(context.Background(), nil)
		assert.Equal(t, uint64(5), feed.Recent(1)[0].ID)
	})
}

func TestResourceOf(t *testing.T) {
	assert.Equal(t, "product", resourceOf("product/delete/7"))
	assert.Equal(t, "orders", resourceOf("/orders?orderId=1"))
	assert.Equal(t, "root", resourceOf(""))
}
