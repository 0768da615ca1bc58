package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/smartvid/smartvid/internal/apperr"
)

const maxBackoff = 30 * time.Second

// Handler processes one render request.
type Handler func(ctx context.Context, ev RenderRequested) error

// Consumer reads render.requested and runs up to Concurrency handlers at
// once.  It reconnects with exponential backoff until its context ends.
type Consumer struct {
	URL         string
	Concurrency int
	Handle      Handler
	Log         *slog.Logger
}

// Run blocks until ctx is cancelled, then waits for in-flight jobs.  The
// concurrency bound spans reconnects.
func (c *Consumer) Run(ctx context.Context) error {
	if c.Handle == nil {
		return errors.New("queue: consumer has no handler")
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	sem := make(chan struct{}, c.Concurrency)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("render-consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn, sem)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.Log.Warn("render-consumer: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, sem chan struct{}) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.Concurrency, 0, false); err != nil {
		c.Log.Warn("render-consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(RenderRequestedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(RenderRequestedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.Log.Info("render-consumer: consuming", "queue", RenderRequestedQueue, "concurrency", c.Concurrency)
	return c.dispatch(ctx, msgs, sem)
}

// dispatch hands deliveries to at most cap(sem) handlers and returns once
// every handler it started has acked or nacked, so the channel is still
// open for them.
func (c *Consumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery, sem chan struct{}) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return ctx.Err()
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				c.handleDelivery(ctx, d)
			}(d)
		}
	}
}

// handleDelivery acks on success.  Malformed messages and permanent
// failures are dropped; a transient failure is requeued once, and a job
// interrupted by shutdown is always requeued.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	ev, err := DecodeRenderRequested(d.Body)
	if err != nil {
		c.Log.Error("render-consumer: drop malformed message", "err", err)
		_ = d.Nack(false, false)
		return
	}
	if err := c.Handle(ctx, ev); err != nil {
		requeue := ctx.Err() != nil || (apperr.Retryable(err) && !d.Redelivered)
		c.Log.Error("render-consumer: job failed",
			"video_id", ev.VideoID, "job_id", ev.JobID, "requeue", requeue, "err", err)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
