package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipanganya/doctime-api/internal/repository"
)

func TestOTPStore(t *testing.T) {
	ctx := context.Background()
	store := NewOTPStore()

	require.NoError(t, store.Save(ctx, "signup", "254712345678", "4321", time.Minute))

	_, err := store.Take(ctx, "reset", "254712345678")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	code, err := store.Take(ctx, "signup", "254712345678")
	require.NoError(t, err)
	assert.Equal(t, "4321", code)

	_, err = store.Take(ctx, "signup", "254712345678")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOTPStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewOTPStore()

	require.NoError(t, store.Save(ctx, "signup", "254700000000", "1111", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := store.Take(ctx, "signup", "254700000000")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
