package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func TestKindForFilename(t *testing.T) {
	assert.Equal(t, models.KindImage, KindForFilename("photo.JPG"))
	assert.Equal(t, models.KindVideo, KindForFilename("clip.mp4"))
	assert.Equal(t, models.KindAudio, KindForFilename("note.ogg"))
	assert.Equal(t, models.KindFile, KindForFilename("report.pdf"))
	assert.Equal(t, models.KindFile, KindForFilename("no-extension"))
}

func TestLocalStoreSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)

	obj, err := store.Save(context.Background(), "photo.png", strings.NewReader("content"))
	require.NoError(t, err)

	assert.Equal(t, models.KindImage, obj.Kind)
	assert.Equal(t, int64(7), obj.Size)
	assert.True(t, strings.HasPrefix(obj.URL, "/uploads/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".png"))

	data, err := os.ReadFile(filepath.Join(dir, obj.Key))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestLocalStoreKeysAreUnique(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	first, err := store.Save(context.Background(), "a.txt", strings.NewReader("1"))
	require.NoError(t, err)
	second, err := store.Save(context.Background(), "a.txt", strings.NewReader("2"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
}

func TestLocalStoreDiscardsOriginalName(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	obj, err := store.Save(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotContains(t, obj.Key, "/")
	assert.NotContains(t, obj.Key, "..")
}
