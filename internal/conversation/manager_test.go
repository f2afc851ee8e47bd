package conversation

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"kollektiv/internal/domain"
	"kollektiv/internal/kv"
	"kollektiv/internal/store"
	"kollektiv/internal/tokencount"
)

// fakeConversationStore and fakeMessageStore stand in for the durable
// repository so these tests don't need a live Postgres pool, matching the
// narrow-interface pattern used by internal/retrieve's VectorIndex.
type fakeConversationStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.Conversation
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{rows: map[uuid.UUID]domain.Conversation{}}
}

func (f *fakeConversationStore) FindByID(_ context.Context, id any) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := id.(uuid.UUID)
	row, ok := f.rows[key]
	if !ok {
		return domain.Conversation{}, &store.EntityNotFoundError{Entity: "conversation", ID: key.String()}
	}
	return row, nil
}

func (f *fakeConversationStore) Save(_ context.Context, entities ...domain.Conversation) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entities {
		f.rows[e.ConversationID] = e
	}
	return entities, nil
}

type fakeMessageStore struct {
	mu   sync.Mutex
	rows []domain.ConversationMessage
}

func (f *fakeMessageStore) Save(_ context.Context, entities ...domain.ConversationMessage) ([]domain.ConversationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, entities...)
	return entities, nil
}

func (f *fakeMessageStore) Find(_ context.Context, filters map[string]any, _ store.FindOptions) ([]domain.ConversationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want, _ := filters["conversation_id"].(uuid.UUID)
	var out []domain.ConversationMessage
	for _, m := range f.rows {
		if m.ConversationID == want {
			out = append(out, m)
		}
	}
	return out, nil
}

func newTestManager(t *testing.T) (*Manager, *fakeConversationStore, *fakeMessageStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := kv.NewRegistry()

	historyRepo, err := kv.NewRepository[domain.ConversationHistory](client, registry, kv.KindConversationHistory)
	require.NoError(t, err)
	pendingRepo, err := kv.NewRepository[domain.ConversationMessage](client, registry, kv.KindPendingMessages)
	require.NoError(t, err)

	tok, err := tokencount.New(tokencount.TokenCacheConfig{})
	require.NoError(t, err)

	convStore := newFakeConversationStore()
	msgStore := &fakeMessageStore{}
	return New(historyRepo, pendingRepo, convStore, msgStore, tok), convStore, msgStore
}

func userMessage(conversationID uuid.UUID, text string) domain.ConversationMessage {
	return domain.ConversationMessage{
		MessageID:      uuid.New(),
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Content:        []domain.ContentBlock{domain.TextBlock{Text: text}},
	}
}

func TestSetupNewConvHistoryTurn_NewConversation(t *testing.T) {
	mgr, convStore, _ := newTestManager(t)
	ctx := context.Background()
	conversationID := uuid.New()
	userID := uuid.New()

	history, err := mgr.SetupNewConvHistoryTurn(ctx, userMessage(conversationID, "hello"), userID)
	require.NoError(t, err)
	require.Equal(t, conversationID, history.ConversationID)
	require.Equal(t, userID, history.UserID)
	require.Len(t, history.Messages, 1)

	conv, err := convStore.FindByID(ctx, conversationID)
	require.NoError(t, err)
	require.Equal(t, userID, conv.UserID)
}

func TestCommitPending_TransfersAndPersists(t *testing.T) {
	mgr, convStore, msgStore := newTestManager(t)
	ctx := context.Background()
	conversationID := uuid.New()
	userID := uuid.New()

	_, err := mgr.SetupNewConvHistoryTurn(ctx, userMessage(conversationID, "hi there"), userID)
	require.NoError(t, err)

	require.NoError(t, mgr.CommitPending(ctx, conversationID))

	pendingAfter, ok, err := mgr.history.Get(ctx, conversationID.String())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, pendingAfter.Messages, 1)

	stillPending, err := mgr.pending.LRange(ctx, conversationID.String(), 0, -1)
	require.NoError(t, err)
	require.Empty(t, stillPending)

	require.Len(t, msgStore.rows, 1)

	conv, err := convStore.FindByID(ctx, conversationID)
	require.NoError(t, err)
	require.Len(t, conv.MessageIDs, 1)
}

func TestCommitPending_AccumulatesAcrossTurns(t *testing.T) {
	mgr, _, msgStore := newTestManager(t)
	ctx := context.Background()
	conversationID := uuid.New()
	userID := uuid.New()

	_, err := mgr.SetupNewConvHistoryTurn(ctx, userMessage(conversationID, "first"), userID)
	require.NoError(t, err)
	require.NoError(t, mgr.CommitPending(ctx, conversationID))

	require.NoError(t, mgr.AddPendingMessage(ctx, userMessage(conversationID, "second")))
	require.NoError(t, mgr.CommitPending(ctx, conversationID))

	history, ok, err := mgr.history.Get(ctx, conversationID.String())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, history.Messages, 2)
	require.Len(t, msgStore.rows, 2)
}

func TestClearPending_RemovesQueueWithoutCommitting(t *testing.T) {
	mgr, _, msgStore := newTestManager(t)
	ctx := context.Background()
	conversationID := uuid.New()
	userID := uuid.New()

	_, err := mgr.SetupNewConvHistoryTurn(ctx, userMessage(conversationID, "oops"), userID)
	require.NoError(t, err)

	require.NoError(t, mgr.ClearPending(ctx, conversationID))

	pending, err := mgr.pending.LRange(ctx, conversationID.String(), 0, -1)
	require.NoError(t, err)
	require.Empty(t, pending)
	require.Empty(t, msgStore.rows)
}

func TestPruneHistory_DropsOldestUnderPressure(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	mgr.maxTokens = 100

	history := domain.ConversationHistory{
		Messages: []domain.ConversationMessage{
			{Role: domain.RoleUser, Content: []domain.ContentBlock{domain.TextBlock{Text: "old"}}},
			{Role: domain.RoleAssistant, Content: []domain.ContentBlock{domain.TextBlock{Text: "new"}}},
		},
		TokenCount: 95,
	}
	pruned := mgr.pruneHistory(history)
	require.Len(t, pruned.Messages, 1)
	require.Equal(t, domain.RoleAssistant, pruned.Messages[0].Role)
}

func TestEstimateBlockTokens_ToolUseCountsNameAndCanonicalInput(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	n := mgr.estimateBlockTokens(domain.ToolUseBlock{
		Name:  "rag_search",
		Input: map[string]any{"rag_query": "hello"},
	})
	require.Greater(t, n, 0)
}
