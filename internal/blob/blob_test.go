package blob

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/subject-research/internal/config"
)

func TestLocal_PutGet(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	loc, err := store.Put(ctx, "jobs/abc/raw/0123456789ab.html", []byte("<html></html>"), "text/html")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc, "file://"))
	assert.True(t, strings.HasSuffix(loc, "/jobs/abc/raw/0123456789ab.html"))

	data, err := store.Get(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}

func TestLocal_PutOverwrites(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, "jobs/abc/normalized/1.txt", []byte("first"), "text/plain")
	require.NoError(t, err)
	loc, err := store.Put(ctx, "jobs/abc/normalized/1.txt", []byte("second"), "text/plain")
	require.NoError(t, err)

	data, err := store.Get(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestLocal_EmptyContent(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	loc, err := store.Put(context.Background(), "jobs/abc/normalized/2.txt", nil, "text/plain")
	require.NoError(t, err)
	data, err := store.Get(context.Background(), loc)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestLocal_GetMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "file://"+dir+"/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_RejectsBadKeys(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "jobs/../../escape"} {
		_, err := store.Put(context.Background(), key, []byte("x"), "text/plain")
		assert.Error(t, err, "key %q", key)
	}
}

func TestLocal_RejectsForeignScheme(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "gs://bucket/jobs/a.txt")
	assert.Error(t, err)
}

func TestParseLocation(t *testing.T) {
	scheme, bucket, key, err := parseLocation("gs://research/jobs/1/raw/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "gs", scheme)
	assert.Equal(t, "research", bucket)
	assert.Equal(t, "jobs/1/raw/a.pdf", key)

	_, _, _, err = parseLocation("jobs/1/raw/a.pdf")
	assert.Error(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.BlobConfig{Backend: "s3"})
	assert.Error(t, err)
}

func TestOpen_Local(t *testing.T) {
	store, err := Open(context.Background(), config.BlobConfig{Backend: config.BlobBackendLocal, LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, store)
	assert.NoError(t, store.Close())
}
