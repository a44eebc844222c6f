package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(config.StorageConfig{LocalPath: t.TempDir(), LocalBaseURL: "http://localhost:8080/"}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestObjectKeyFormat(t *testing.T) {
	key := ObjectKey(ObjectMeta{ChatID: "c1", FileName: "Invoice.PDF"})
	assert.True(t, strings.HasPrefix(key, "chat/c1/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	key = ObjectKey(ObjectMeta{ChatID: "c1", FileName: "../../etc/passwd"})
	assert.NotContains(t, key, "..")
}

func TestLocalStorageLifecycle(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()

	key, err := store.Put(ctx, []byte("hello"), ObjectMeta{ChatID: "c1", FileName: "note.txt", ContentType: "text/plain"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(store.BasePath(), filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	url, err := store.Presign(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/attachments/"+key, url)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Presign(ctx, key, time.Minute)
	assert.Error(t, err)

	// deleting a missing object is not an error
	assert.NoError(t, store.Delete(ctx, key))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	store := newLocal(t)
	assert.Error(t, store.Delete(context.Background(), "../outside.txt"))
}
