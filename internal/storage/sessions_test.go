package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paperchat/internal/models"
	"paperchat/internal/util"
)

func sessionStores(t *testing.T) map[string]SessionStore {
	t.Helper()
	sqlite, err := NewSQLiteSessionStore(filepath.Join(t.TempDir(), "sessions.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]SessionStore{
		"memory": NewMemorySessionStore(),
		"sqlite": sqlite,
	}
}

func TestSessionStores(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.GetOrCreate(ctx, "nope", nil)
			require.ErrorIs(t, err, util.ErrNotFound)
			require.ErrorIs(t, store.Append(ctx, "nope", models.ChatMessage{Role: models.RoleUser}), util.ErrNotFound)

			sess, err := store.GetOrCreate(ctx, "", []string{"d1", "d2"})
			require.NoError(t, err)
			require.NotEmpty(t, sess.SessionID)
			require.Equal(t, []string{"d1", "d2"}, sess.DocumentIDs)
			require.Empty(t, sess.Messages)

			now := time.Now().UTC().Truncate(time.Second)
			err = store.Append(ctx, sess.SessionID,
				models.ChatMessage{Role: models.RoleUser, Content: "what?", Timestamp: now},
				models.ChatMessage{Role: models.RoleAssistant, Content: "that.", Timestamp: now, Sources: []models.Source{
					{DocumentID: "d1", PageNumber: 2, Section: "Intro", ContentSnippet: "snip", RelevanceScore: 0.8},
				}},
			)
			require.NoError(t, err)

			hist, err := store.History(ctx, sess.SessionID)
			require.NoError(t, err)
			require.Len(t, hist, 2)
			require.Equal(t, models.RoleUser, hist[0].Role)
			require.Equal(t, "that.", hist[1].Content)
			require.Len(t, hist[1].Sources, 1)
			require.Equal(t, 2, hist[1].Sources[0].PageNumber)

			same, err := store.GetOrCreate(ctx, sess.SessionID, nil)
			require.NoError(t, err)
			require.Len(t, same.Messages, 2)

			keep, err := store.GetOrCreate(ctx, "", []string{"d3"})
			require.NoError(t, err)
			require.NoError(t, store.DeleteByDocument(ctx, "d2"))
			_, err = store.Get(ctx, sess.SessionID)
			require.ErrorIs(t, err, util.ErrNotFound)
			_, err = store.Get(ctx, keep.SessionID)
			require.NoError(t, err)
		})
	}
}

func TestSessionStoresConcurrentAppend(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sess, err := store.GetOrCreate(ctx, "", []string{"d"})
			require.NoError(t, err)
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = store.Append(ctx, sess.SessionID,
						models.ChatMessage{Role: models.RoleUser, Content: "q"},
						models.ChatMessage{Role: models.RoleAssistant, Content: "a"})
				}()
			}
			wg.Wait()
			hist, err := store.History(ctx, sess.SessionID)
			require.NoError(t, err)
			require.Len(t, hist, 20)
			for i := 0; i < len(hist); i += 2 {
				require.Equal(t, models.RoleUser, hist[i].Role)
				require.Equal(t, models.RoleAssistant, hist[i+1].Role)
			}
		})
	}
}
