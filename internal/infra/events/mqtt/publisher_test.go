package mqtt

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bryanwahyu/n0dr1e/internal/application"
)

type message struct {
	topic   string
	payload []byte
}

type fakeSender struct {
	mu     sync.Mutex
	msgs   []message
	block  chan struct{}
	closed bool
}

func (f *fakeSender) send(topic string, payload []byte) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, message{topic, payload})
	return nil
}

func (f *fakeSender) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestPublisher(t *testing.T) {
	defer goleak.VerifyNone(t)

	out := &fakeSender{}
	p := newPublisher(out, "/n0dr1e/", discard)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), application.Event{Kind: application.EventScanStarted, UserID: "u1", ScanID: "s1", At: at}))
	require.NoError(t, p.Publish(context.Background(), application.Event{Kind: application.EventThreatResolved, UserID: "u1", ThreatID: "t1", At: at}))
	p.Close()
	p.Close()

	require.Len(t, out.msgs, 2)
	assert.True(t, out.closed)
	assert.Equal(t, "n0dr1e/u1/scan/started", out.msgs[0].topic)
	assert.Equal(t, "n0dr1e/u1/threat/resolved", out.msgs[1].topic)

	var ev application.Event
	require.NoError(t, json.Unmarshal(out.msgs[0].payload, &ev))
	assert.Equal(t, "s1", ev.ScanID)
	assert.True(t, ev.At.Equal(at))
}

func TestPublisher_FullQueueDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t)

	out := &fakeSender{block: make(chan struct{})}
	p := newPublisher(out, "x", discard)

	var full error
	for range queueSize + 2 {
		if err := p.Publish(context.Background(), application.Event{Kind: application.EventScanStopped, UserID: "u1"}); err != nil {
			full = err
		}
	}
	assert.ErrorIs(t, full, ErrQueueFull)

	close(out.block)
	p.Close()
}

func TestPublisher_PublishAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	out := &fakeSender{}
	p := newPublisher(out, "n0dr1e", discard)
	p.Close()

	err := p.Publish(context.Background(), application.Event{Kind: application.EventScanCompleted, UserID: "u1"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, out.msgs)
}

func TestPublisher_ConcurrentPublishAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newPublisher(&fakeSender{}, "n0dr1e", discard)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = p.Publish(context.Background(), application.Event{Kind: application.EventThreatDetected, UserID: "u1"})
			}
		}()
	}
	p.Close()
	wg.Wait()
}
