package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"kollektiv/internal/codec"
	"kollektiv/internal/domain"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestPublishSubscribe_DeliversAndClosesOnTerminalStage(t *testing.T) {
	client := newTestClient(t)
	bus := New(client)
	sourceID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := SubscribeSource(ctx, client, sourceID, time.Minute)
	defer sub.Close()

	time.Sleep(50 * time.Millisecond) // let SUBSCRIBE register before PUBLISH

	require.NoError(t, bus.Publish(ctx, domain.ContentProcessingEvent{
		SourceID: sourceID, Stage: domain.StageCrawlingStarted, Timestamp: time.Now(),
	}))
	require.NoError(t, bus.Publish(ctx, domain.ContentProcessingEvent{
		SourceID: sourceID, Stage: domain.StageCompleted, Timestamp: time.Now(),
	}))

	var got []domain.SourceStage
	for ev := range sub.Events {
		got = append(got, ev.Stage)
	}
	require.Equal(t, []domain.SourceStage{domain.StageCrawlingStarted, domain.StageCompleted}, got)
}

func TestSubscribeSource_InactivityTimeoutClosesChannel(t *testing.T) {
	client := newTestClient(t)
	sourceID := uuid.New()
	ctx := context.Background()

	sub := SubscribeSource(ctx, client, sourceID, 30*time.Millisecond)
	defer sub.Close()

	_, ok := <-sub.Events
	require.False(t, ok)
}

func TestTaskDispatcher_WritesKeyedTaggedMessage(t *testing.T) {
	rec := &recordingWriter{}
	d := NewTaskDispatcher(rec)
	task := ProcessingTask{JobID: uuid.New(), SourceID: uuid.New()}
	require.NoError(t, d.Dispatch(context.Background(), task))
	require.Len(t, rec.msgs, 1)
	require.Equal(t, task.SourceID.String(), string(rec.msgs[0].Key))

	tag, err := codec.Tag(rec.msgs[0].Value)
	require.NoError(t, err)
	require.Equal(t, TagProcessingTask, tag)

	decoded, err := codec.Decode(rec.msgs[0].Value)
	require.NoError(t, err)
	require.Equal(t, task, decoded)
}
