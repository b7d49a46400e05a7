package repository

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizconnect/internal/domain/repository"
)

// newEmulatorClient connects to the Firestore emulator; each test gets its own project
// so collections never leak between tests.
func newEmulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("set FIRESTORE_EMULATOR_HOST to run Firestore integration tests")
	}

	client, err := firestore.NewClient(context.Background(), "test-"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestFirestoreConversationStore(t *testing.T) {
	runConversationStoreSuite(t, func(t *testing.T) repository.ConversationStore {
		return NewFirestoreConversationStore(newEmulatorClient(t))
	})
}

func TestFirestoreBusinessRepository(t *testing.T) {
	client := newEmulatorClient(t)
	ctx := context.Background()
	_, err := client.Collection("businesses").Doc("biz-1").Set(ctx, map[string]interface{}{"name": "Coffee Corner"})
	require.NoError(t, err)

	repo := NewFirestoreBusinessRepository(client)

	exists, err := repo.Exists(ctx, "biz-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "biz-404")
	require.NoError(t, err)
	assert.False(t, exists)
}
