// Package eventbus is the publish/subscribe fabric for ingestion-stage
// events (C4): Redis PUBLISH/SUBSCRIBE for SSE fan-out plus a Kafka-backed
// task queue for worker dispatch, both speaking the tagged codec envelope
// so a payload written by either path decodes the same way. Pub/sub is
// grounded on the teacher's internal/workspaces/redis_cache.go
// PublishInvalidation/SubscribeInvalidations pair (channel-per-key,
// buffered forwarding goroutine, Close cancels and drains).
package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kollektiv/internal/codec"
	"kollektiv/internal/domain"
	"kollektiv/internal/observability"
)

// GlobalChannel carries every ContentProcessingEvent regardless of source.
const GlobalChannel = "sources/processing"

func sourceChannel(sourceID fmt.Stringer) string {
	return fmt.Sprintf("sources/%s/events", sourceID)
}

// Bus publishes and subscribes to ContentProcessingEvents over Redis
// pub/sub.
type Bus struct {
	client redis.UniversalClient
	retry  RetryPolicy
}

// RetryPolicy bounds the publisher's retry-on-transient-error behavior, per
// §4.4's "retries on transient connection errors with exponential backoff,
// fails permanently on non-retryable errors".
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second}
}

func New(client redis.UniversalClient) *Bus {
	return &Bus{client: client, retry: DefaultRetryPolicy()}
}

// Publish sends ev on both the global channel and the per-source channel,
// retrying transient connection errors with exponential backoff.
func (b *Bus) Publish(ctx context.Context, ev domain.ContentProcessingEvent) error {
	data, err := codec.EncodeContentProcessingEvent(ev)
	if err != nil {
		return fmt.Errorf("eventbus: encode event: %w", err)
	}
	channels := []string{GlobalChannel, sourceChannel(ev.SourceID)}
	for _, ch := range channels {
		if err := b.publishWithRetry(ctx, ch, data); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) publishWithRetry(ctx context.Context, channel string, data []byte) error {
	delay := b.retry.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= b.retry.MaxAttempts; attempt++ {
		err := b.client.Publish(ctx, channel, data).Err()
		if err == nil {
			return nil
		}
		if !isRetryablePublishError(err) {
			return fmt.Errorf("eventbus: publish %s: %w", channel, err)
		}
		lastErr = err
		observability.LoggerWithTrace(ctx).Warn().
			Err(err).Str("channel", channel).Int("attempt", attempt).Msg("eventbus publish retry")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > b.retry.MaxDelay {
			delay = b.retry.MaxDelay
		}
	}
	return fmt.Errorf("eventbus: publish %s exhausted retries: %w", channel, lastErr)
}

// isRetryablePublishError treats every redis client error as a transient
// connection problem except context cancellation, which the caller already
// owns.
func isRetryablePublishError(err error) bool {
	return err != context.Canceled && err != context.DeadlineExceeded
}

// Subscription is a live per-source event stream plus its teardown.
type Subscription struct {
	Events <-chan domain.ContentProcessingEvent
	Close  func()
}

// SubscribeSource opens a subscription to one source's event channel. The
// returned channel closes when Close is called, the context is cancelled,
// or inactivityTimeout elapses with no events (per §4.4's SSE consumer
// contract); it also closes automatically after delivering a terminal-stage
// event (Completed or Failed).
func SubscribeSource(ctx context.Context, client redis.UniversalClient, sourceID fmt.Stringer, inactivityTimeout time.Duration) *Subscription {
	out := make(chan domain.ContentProcessingEvent, 8)
	sub := client.Subscribe(ctx, sourceChannel(sourceID))
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)
		defer sub.Close()
		timer := time.NewTimer(inactivityTimeout)
		defer timer.Stop()
		ch := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-timer.C:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				decoded, err := codec.Decode([]byte(msg.Payload))
				if err != nil {
					observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("eventbus decode failed")
					continue
				}
				ev, ok := decoded.(domain.ContentProcessingEvent)
				if !ok {
					observability.LoggerWithTrace(ctx).Warn().
						Str("channel", msg.Channel).
						Msgf("eventbus: unexpected payload type %T", decoded)
					continue
				}
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(inactivityTimeout)
				select {
				case out <- ev:
				case <-subCtx.Done():
					return
				}
				if isTerminalStage(ev.Stage) {
					return
				}
			}
		}
	}()

	return &Subscription{Events: out, Close: cancel}
}

func isTerminalStage(stage domain.SourceStage) bool {
	return stage == domain.StageCompleted || stage == domain.StageFailed
}
