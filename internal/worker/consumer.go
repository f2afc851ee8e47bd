package worker

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"

	"kollektiv/internal/codec"
	"kollektiv/internal/eventbus"
	"kollektiv/internal/observability"
)

// Consumer reads dispatched ProcessingTasks off the Kafka-backed queue and
// runs the pipeline for each, grounded on the teacher's
// internal/orchestrator.StartKafkaConsumer read-handle-commit loop
// (enterprise-gated there; Kollektiv's worker process always runs it since
// the dual pubsub/queue split is load-bearing, not optional, per §9).
type Consumer struct {
	reader *kafkago.Reader
	svc    *Services
}

// NewConsumer builds a Consumer reading ProcessingTopic from brokers under
// groupID, so multiple worker processes share the partition assignment.
func NewConsumer(brokers []string, groupID string, svc *Services) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    eventbus.ProcessingTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, svc: svc}
}

// Run blocks, reading and processing one ProcessingTask at a time until ctx
// is cancelled or the reader is closed. Commit happens only after Run's
// pipeline call returns: a mid-run process crash redelivers the task to
// another worker rather than silently dropping it.
func (c *Consumer) Run(ctx context.Context) error {
	log := observability.LoggerWithTrace(ctx)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		decoded, err := codec.Decode(msg.Value)
		if err != nil {
			log.Error().Err(err).Msg("worker: malformed processing task, committing to skip")
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}
		task, ok := decoded.(eventbus.ProcessingTask)
		if !ok {
			log.Error().Msgf("worker: unexpected task payload %T, committing to skip", decoded)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if err := c.svc.Run(ctx, task.SourceID, task.JobID); err != nil {
			log.Error().Err(err).
				Str("source_id", task.SourceID.String()).
				Str("job_id", task.JobID.String()).
				Msg("worker: pipeline run returned an error; leaving task uncommitted for redelivery")
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Msg("worker: failed to commit processed task")
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
