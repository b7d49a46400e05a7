package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_Put(t *testing.T) {
	s := NewMemoryStorage("local-bucket")

	url, err := s.Put(context.Background(), "attachments/user-1/a.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/local-bucket/attachments/user-1/a.txt", url)

	b, ok := s.Object("attachments/user-1/a.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(b))
}
