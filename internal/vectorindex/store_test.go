package vectorindex

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCollectionName_IsDeterministic(t *testing.T) {
	require.Equal(t, "user_abc123", CollectionName("abc123"))
	require.Equal(t, CollectionName("u1"), CollectionName("u1"))
	require.NotEqual(t, CollectionName("u1"), CollectionName("u2"))
}

func TestPointUUID_PassesThroughRealUUIDs(t *testing.T) {
	id := uuid.New().String()
	require.Equal(t, id, pointUUID(id))
}

func TestPointUUID_IsDeterministicForNonUUIDs(t *testing.T) {
	a := pointUUID("chunk-123")
	b := pointUUID("chunk-123")
	require.Equal(t, a, b)
	require.NotEqual(t, "chunk-123", a)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
}
