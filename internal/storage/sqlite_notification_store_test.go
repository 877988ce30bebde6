package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/userhub/internal/storage"
)

func TestSQLiteNotificationStore(t *testing.T) {
	db, _, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := storage.NewSQLiteNotificationStore(db)
	ctx := context.Background()

	t.Run("log and list", func(t *testing.T) {
		entry := storage.NotificationLogEntry{
			EventType: "user.created",
			Provider:  "smtp",
			Subject:   "Welcome to userhub",
			Recipient: "kim@example.com",
			Status:    "sent",
			ErrorMsg:  "",
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, store.LogNotification(ctx, entry))

		list, err := store.ListNotifications(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)

		got := list[0]
		assert.Equal(t, entry.EventType, got.EventType)
		assert.Equal(t, entry.Provider, got.Provider)
		assert.Equal(t, entry.Subject, got.Subject)
		assert.Equal(t, entry.Recipient, got.Recipient)
		assert.Equal(t, entry.Status, got.Status)
		assert.Equal(t, entry.ErrorMsg, got.ErrorMsg)
	})

	t.Run("failed status", func(t *testing.T) {
		entry := storage.NotificationLogEntry{
			EventType: "user.created",
			Provider:  "smtp",
			Subject:   "Welcome to userhub",
			Recipient: "lee@example.com",
			Status:    "failed",
			ErrorMsg:  "connection refused",
			CreatedAt: time.Now().UTC().Add(time.Second),
		}
		require.NoError(t, store.LogNotification(ctx, entry))

		list, err := store.ListNotifications(ctx, 10)
		require.NoError(t, err)
		// Latest entry is first.
		assert.Equal(t, "failed", list[0].Status)
		assert.Equal(t, "connection refused", list[0].ErrorMsg)
	})

	t.Run("default limit", func(t *testing.T) {
		list, err := store.ListNotifications(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("prune removes only old entries", func(t *testing.T) {
		old := storage.NotificationLogEntry{
			EventType: "user.created",
			Provider:  "smtp",
			Status:    "sent",
			CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
		}
		require.NoError(t, store.LogNotification(ctx, old))

		n, err := store.PruneNotifications(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		list, err := store.ListNotifications(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}
