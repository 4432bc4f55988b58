package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/ner"
	"github.com/kart-io/docqa/pkg/component/database"
	dbopts "github.com/kart-io/docqa/pkg/options/database"
	"github.com/kart-io/docqa/pkg/utils/id"
)

func newSQLiteStore(t *testing.T) SessionStore {
	t.Helper()
	opts := dbopts.NewOptions()
	opts.DSN = filepath.Join(t.TempDir(), "docqa.db")
	client, err := database.New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s, err := NewDBStore(client.DB(), true)
	require.NoError(t, err)
	return s
}

func backends(t *testing.T) map[string]func(t *testing.T) SessionStore {
	return map[string]func(t *testing.T) SessionStore{
		BackendMemory:   func(*testing.T) SessionStore { return NewMemoryStore() },
		BackendDatabase: newSQLiteStore,
	}
}

func TestSessionStore_Lifecycle(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			assert.Equal(t, name, s.Name())

			sess, err := s.CreateSession(ctx)
			require.NoError(t, err)
			assert.True(t, id.IsValidUUID(sess.ID))
			assert.False(t, sess.CreatedAt.IsZero())

			ok, err := s.SessionExists(ctx, sess.ID)
			require.NoError(t, err)
			assert.True(t, ok)

			base := time.Now().UTC()
			require.NoError(t, s.AddDocument(ctx, sess.ID, &model.Document{
				ID: "doc-b", Filename: "b.pdf", Text: "second text", AddedAt: base.Add(time.Second),
			}))
			require.NoError(t, s.AddDocument(ctx, sess.ID, &model.Document{
				ID: "doc-a", Filename: "a.png", Text: "first", AddedAt: base,
			}))

			docs, err := s.GetDocuments(ctx, sess.ID)
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, "doc-a", docs[0].ID)
			assert.Equal(t, "doc-b", docs[1].ID)
			assert.Equal(t, len("second text"), docs[1].Size)
			assert.Equal(t, model.NERPending, docs[0].NERStatus)
			assert.Equal(t, sess.ID, docs[0].SessionID)

			text, err := s.GetDocumentText(ctx, sess.ID, "doc-a")
			require.NoError(t, err)
			assert.Equal(t, "first", text)

			_, err = s.GetDocumentText(ctx, sess.ID, "missing")
			assert.ErrorIs(t, err, ErrDocumentNotFound)

			texts, err := s.GetAllTexts(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"doc-a": "first", "doc-b": "second text"}, texts)

			require.NoError(t, s.SetNERStatus(ctx, sess.ID, "doc-a", model.NERProcessing))
			result := &ner.Result{Text: "first", Entities: []ner.Entity{{Text: "first", Label: ner.LabelOrdinal, Start: 0, End: 5}}}
			require.NoError(t, s.SetEntities(ctx, sess.ID, "doc-a", result))

			got, err := s.GetSession(ctx, sess.ID)
			require.NoError(t, err)
			require.Len(t, got.Documents, 2)
			docA := got.Documents["doc-a"]
			assert.Equal(t, model.NERCompleted, docA.NERStatus)
			require.NotNil(t, docA.Entities)
			assert.Equal(t, ner.LabelOrdinal, docA.Entities.Entities[0].Label)
			assert.Nil(t, got.Documents["doc-b"].Entities)

			assert.ErrorIs(t, s.SetNERStatus(ctx, sess.ID, "missing", model.NERFailed), ErrDocumentNotFound)

			deleted, err := s.DeleteSession(ctx, sess.ID)
			require.NoError(t, err)
			assert.True(t, deleted)

			_, err = s.GetSession(ctx, sess.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)
			_, err = s.GetDocuments(ctx, sess.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)

			deleted, err = s.DeleteSession(ctx, sess.ID)
			require.NoError(t, err)
			assert.False(t, deleted)
		})
	}
}

// TestDBStore_UnchangedRowUpdate reports zero affected rows for every update,
// the way MySQL does when the new value equals the stored one.
func TestDBStore_UnchangedRowUpdate(t *testing.T) {
	ctx := context.Background()
	opts := dbopts.NewOptions()
	opts.DSN = filepath.Join(t.TempDir(), "docqa.db")
	client, err := database.New(ctx, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	db := client.DB()
	require.NoError(t, db.Callback().Update().After("gorm:update").Register("test:unchanged_rows", func(tx *gorm.DB) {
		tx.RowsAffected = 0
	}))
	s, err := NewDBStore(db, true)
	require.NoError(t, err)

	sess, err := s.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddDocument(ctx, sess.ID, &model.Document{ID: "doc-a", Filename: "a.txt", Text: "text"}))

	require.NoError(t, s.SetNERStatus(ctx, sess.ID, "doc-a", model.NERProcessing))
	require.NoError(t, s.SetNERStatus(ctx, sess.ID, "doc-a", model.NERProcessing))
	result := &ner.Result{Text: "text"}
	require.NoError(t, s.SetEntities(ctx, sess.ID, "doc-a", result))
	require.NoError(t, s.SetEntities(ctx, sess.ID, "doc-a", result))

	assert.ErrorIs(t, s.SetNERStatus(ctx, sess.ID, "missing", model.NERFailed), ErrDocumentNotFound)
	assert.ErrorIs(t, s.SetEntities(ctx, sess.ID, "missing", result), ErrDocumentNotFound)
}

func TestSessionStore_UnknownSession(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			unknown := id.NewUUID()

			ok, err := s.SessionExists(ctx, unknown)
			require.NoError(t, err)
			assert.False(t, ok)

			err = s.AddDocument(ctx, unknown, &model.Document{ID: "x", Filename: "x.pdf", Text: "t"})
			assert.ErrorIs(t, err, ErrSessionNotFound)

			_, err = s.GetAllTexts(ctx, unknown)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestSessionStore_ListAndCount(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			var created []string
			for i := 0; i < 3; i++ {
				sess, err := s.CreateSession(ctx)
				require.NoError(t, err)
				created = append(created, sess.ID)
			}

			n, err := s.CountSessions(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			ids, err := s.ListSessionIDs(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, created, ids)
		})
	}
}

func TestMemoryStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess, err := s.CreateSession(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docID := id.NewUUID()
			assert.NoError(t, s.AddDocument(ctx, sess.ID, &model.Document{ID: docID, Filename: "f.pdf", Text: "text"}))
			assert.NoError(t, s.SetNERStatus(ctx, sess.ID, docID, model.NERProcessing))
			assert.NoError(t, s.SetEntities(ctx, sess.ID, docID, &ner.Result{Text: "text", Entities: []ner.Entity{}}))
			_, _ = s.GetSession(ctx, sess.ID)
		}()
	}
	wg.Wait()

	docs, err := s.GetDocuments(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 20)
	for _, d := range docs {
		assert.Equal(t, model.NERCompleted, d.NERStatus)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess, err := s.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddDocument(ctx, sess.ID, &model.Document{ID: "d", Filename: "f.pdf", Text: "t"}))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	got.Documents["d"].Text = "mutated"

	text, err := s.GetDocumentText(ctx, sess.ID, "d")
	require.NoError(t, err)
	assert.Equal(t, "t", text)
}
