package codec

import (
	"testing"
	"time"

	"kollektiv/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip_Chunk(t *testing.T) {
	c := domain.Chunk{
		ChunkID:    uuid.New(),
		SourceID:   uuid.New(),
		DocumentID: uuid.New(),
		Headers:    domain.HeaderPath{H1: "Intro", H2: "Overview"},
		Text:       "hello world",
		Content:    "# Intro\nhello world",
		TokenCount: 3,
	}
	b, err := EncodeChunk(c)
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)
	got, ok := decoded.(domain.Chunk)
	require.True(t, ok)
	require.Equal(t, c, got)
}

func TestRoundTrip_ConversationMessage(t *testing.T) {
	msg := domain.ConversationMessage{
		MessageID:      uuid.New(),
		ConversationID: uuid.New(),
		Role:           domain.RoleAssistant,
		Content: []domain.ContentBlock{
			domain.TextBlock{Text: "looking that up"},
			domain.ToolUseBlock{ID: "tu_1", Name: "rag_search", Input: map[string]any{"rag_query": "hello"}},
		},
	}
	b, err := EncodeConversationMessage(msg)
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)
	got, ok := decoded.(domain.ConversationMessage)
	require.True(t, ok)
	require.Equal(t, msg.MessageID, got.MessageID)
	require.Len(t, got.Content, 2)
	require.Equal(t, domain.TextBlock{Text: "looking that up"}, got.Content[0])
}

func TestDecode_UnknownTagFallsBackToMapping(t *testing.T) {
	b := []byte(`{"__type":"some.unregistered.Tag","value":{"a":1}}`)
	decoded, err := Decode(b)
	require.NoError(t, err)
	m, ok := decoded.(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(1), m["a"])
}

func TestDecode_MalformedBytes(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
}

func TestTimestamp_RoundTripsZoneAwareAndNaiveDistinctly(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	aware := NewTimestamp(time.Date(2024, 3, 1, 10, 0, 0, 0, loc))
	naive := NewNaiveTimestamp(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	awareBytes, err := aware.MarshalJSON()
	require.NoError(t, err)
	naiveBytes, err := naive.MarshalJSON()
	require.NoError(t, err)
	require.NotEqual(t, string(awareBytes), string(naiveBytes))

	var awareOut, naiveOut Timestamp
	require.NoError(t, awareOut.UnmarshalJSON(awareBytes))
	require.NoError(t, naiveOut.UnmarshalJSON(naiveBytes))
	require.True(t, awareOut.HasZone)
	require.False(t, naiveOut.HasZone)
	require.True(t, aware.Time.Equal(awareOut.Time))
}
