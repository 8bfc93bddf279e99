// Package mqtt publishes scan and threat lifecycle events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/bryanwahyu/n0dr1e/internal/application"
)

var (
	// ErrQueueFull is returned by Publish when the broker cannot keep up.
	ErrQueueFull = fmt.Errorf("mqtt publish queue full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = fmt.Errorf("mqtt publisher closed")
)

const queueSize = 256

type Options struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// sender is the broker side of the publisher.
type sender interface {
	send(topic string, payload []byte) error
	close()
}

// Publisher implements application.Publisher. Publish only enqueues; one
// goroutine delivers with QoS 0, so a slow broker never stalls a scan.
type Publisher struct {
	out    sender
	prefix string
	logger *slog.Logger

	mu        sync.RWMutex // guards closed and sends on queue
	closed    bool
	queue     chan application.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ application.Publisher = (*Publisher)(nil)

// Connect dials the broker and starts the delivery goroutine.
func Connect(ctx context.Context, o Options, logger *slog.Logger) (*Publisher, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	opts.SetUsername(o.Username)
	opts.SetPassword(o.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", o.Broker, "error", err)
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("connected to mqtt broker", "broker", o.Broker)
	})

	c := paho.NewClient(opts)
	token := c.Connect()
	wait := 30 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		wait = time.Until(dl)
	}
	if !token.WaitTimeout(wait) {
		c.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection error: %w", err)
	}
	return newPublisher(&pahoSender{c: c}, o.TopicPrefix, logger), nil
}

func newPublisher(out sender, prefix string, logger *slog.Logger) *Publisher {
	p := &Publisher{
		out:    out,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
		queue:  make(chan application.Event, queueSize),
	}
	p.wg.Add(1)
	go p.deliver()
	return p
}

// Topic is <prefix>/<user>/<kind>, e.g. n0dr1e/u1/scan/completed.
func Topic(prefix string, ev application.Event) string {
	return prefix + "/" + ev.UserID + "/" + string(ev.Kind)
}

func (p *Publisher) Publish(_ context.Context, ev application.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Publisher) deliver() {
	defer p.wg.Done()
	for ev := range p.queue {
		payload, err := json.Marshal(ev)
		if err != nil {
			p.logger.Warn("encoding event", "kind", ev.Kind, "error", err)
			continue
		}
		topic := Topic(p.prefix, ev)
		if err := p.out.send(topic, payload); err != nil {
			p.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		}
	}
}

// Close drains the queue and disconnects. Later Publish calls return ErrClosed.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
		p.wg.Wait()
		p.out.close()
	})
}

type pahoSender struct{ c paho.Client }

func (s *pahoSender) send(topic string, payload []byte) error {
	if !s.c.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}
	token := s.c.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

func (s *pahoSender) close() { s.c.Disconnect(250) }
