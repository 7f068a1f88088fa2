package async_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/standup/pkg/utils/async"
	"github.com/secmon-lab/standup/pkg/utils/logging"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func newSyncBuffer() *syncBuffer {
	return &syncBuffer{}
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDispatch(t *testing.T) {
	t.Run("runs handler after request context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var called atomic.Bool

		async.Dispatch(ctx, "save", func(ctx context.Context) error {
			gt.NoError(t, ctx.Err())
			called.Store(true)
			return nil
		})
		cancel()

		gt.NoError(t, async.WaitTimeout(time.Second))
		gt.Bool(t, called.Load()).True()
	})

	t.Run("logs handler error with task name", func(t *testing.T) {
		buf := newSyncBuffer()
		ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(buf, nil)))

		async.Dispatch(ctx, "save-report", func(ctx context.Context) error {
			return goerr.New("write failed")
		})

		gt.NoError(t, async.WaitTimeout(time.Second))
		gt.String(t, buf.String()).Contains("write failed")
		gt.String(t, buf.String()).Contains("save-report")
	})

	t.Run("recovers panic", func(t *testing.T) {
		buf := newSyncBuffer()
		ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(buf, nil)))

		async.Dispatch(ctx, "boom", func(ctx context.Context) error {
			panic("unexpected")
		})

		gt.NoError(t, async.WaitTimeout(time.Second))
		gt.String(t, buf.String()).Contains("async task panicked")
	})
}

func TestWaitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	async.Dispatch(context.Background(), "blocked", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	gt.Value(t, async.Wait(ctx)).NotNil()

	close(release)
	gt.NoError(t, async.WaitTimeout(time.Second))
}
