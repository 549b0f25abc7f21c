package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"disputehub/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	mu     sync.Mutex
	queue  []*Message
	acked  []string
	onIdle func()
}

func (f *fakeSource) Consume(string, time.Duration, time.Duration) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		f.onIdle()
		return nil, nil
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeSource) Ack(_ string, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, jobID)
	return nil
}

func TestWorker_AcksOnlyHandledJobs(t *testing.T) {
	source := &fakeSource{queue: []*Message{
		{ID: "1", Data: []byte("ok")},
		{ID: "2", Data: []byte("fail")},
		{ID: "3", Data: []byte("ok")},
	}}
	w := NewWorker(source, config.LmstfyConfig{Queue: "refunds"}, zaptest.NewLogger(t))
	source.onIdle = w.Stop

	var handled []string
	err := w.Run(context.Background(), func(_ context.Context, payload []byte) error {
		handled = append(handled, string(payload))
		if string(payload) == "fail" {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ok", "fail", "ok"}, handled)
	assert.Equal(t, []string{"1", "3"}, source.acked)
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := &fakeSource{onIdle: cancel}
	w := NewWorker(source, config.LmstfyConfig{Queue: "refunds"}, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(context.Context, []byte) error { return nil }) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
