package eventbus

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	msgs []kafkago.Message
}

func (r *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	r.msgs = append(r.msgs, msgs...)
	return nil
}
