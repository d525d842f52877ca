package snapshot

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/dbsnap/errors"
	"github.com/kbukum/dbsnap/storage/local"
)

func TestNew_CopiesInput(t *testing.T) {
	data := []byte("SQLite format 3\x00rest")
	snap := New("baseline", "application/vnd.sqlite3", data)
	data[0] = 'X'

	assert.Equal(t, byte('S'), snap.Bytes()[0])
	assert.Equal(t, int64(len(data)), snap.Size())
	assert.False(t, snap.IsRef())
	assert.Len(t, snap.Digest(), 64)
}

func TestBytes_ReturnsCopy(t *testing.T) {
	snap := New("baseline", "application/octet-stream", []byte("abc"))
	b := snap.Bytes()
	b[0] = 'z'

	assert.Equal(t, []byte("abc"), snap.Bytes())
}

func TestReaderAndWriteTo(t *testing.T) {
	snap := New("baseline", "application/octet-stream", []byte("payload"))

	var buf bytes.Buffer
	n, err := snap.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "payload", buf.String())

	buf.Reset()
	_, err = buf.ReadFrom(snap.Reader())
	require.NoError(t, err)
	assert.Equal(t, "payload", buf.String())
}

func TestRef(t *testing.T) {
	snap := Ref("clean-db-snapshot", "application/x-postgres-template")

	assert.True(t, snap.IsRef())
	assert.Equal(t, "clean-db-snapshot", snap.Name())
	assert.Zero(t, snap.Size())
	assert.NotEmpty(t, snap.Digest())
}

func newArchive(t *testing.T) (*Archive, *local.Storage) {
	t.Helper()
	store, err := local.NewStorage(t.TempDir())
	require.NoError(t, err)
	return NewArchive(store, nil), store
}

func TestArchive_SaveLoad(t *testing.T) {
	ctx := context.Background()
	archive, _ := newArchive(t)
	snap := New("baseline", "application/vnd.sqlite3", []byte("blob"))

	require.NoError(t, archive.Save(ctx, "sqlite", "fp1", snap))

	got, found, err := archive.Load(ctx, "sqlite", "fp1", "baseline", "application/vnd.sqlite3")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snap.Digest(), got.Digest())
	assert.Equal(t, []byte("blob"), got.Bytes())

	_, found, err = archive.Load(ctx, "sqlite", "other", "baseline", "application/vnd.sqlite3")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestArchive_RejectsRef(t *testing.T) {
	archive, _ := newArchive(t)

	err := archive.Save(context.Background(), "postgres", "fp", Ref("tpl", "application/x-postgres-template"))
	assert.True(t, errors.IsSnapshot(err))
}

func TestArchive_DigestMismatch(t *testing.T) {
	ctx := context.Background()
	archive, store := newArchive(t)
	require.NoError(t, archive.Save(ctx, "sqlite", "fp", New("baseline", "x", []byte("good"))))

	require.NoError(t, store.Upload(ctx, Key("sqlite", "fp", "baseline"), strings.NewReader("tampered")))

	_, found, err := archive.Load(ctx, "sqlite", "fp", "baseline", "x")
	assert.False(t, found)
	assert.True(t, errors.IsSnapshot(err))
}

func TestArchive_Delete(t *testing.T) {
	ctx := context.Background()
	archive, _ := newArchive(t)
	require.NoError(t, archive.Save(ctx, "sqlite", "fp", New("baseline", "x", []byte("good"))))

	require.NoError(t, archive.Delete(ctx, "sqlite", "fp", "baseline"))

	_, found, err := archive.Load(ctx, "sqlite", "fp", "baseline", "x")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestArchive_PruneKeepsCurrentFingerprint(t *testing.T) {
	ctx := context.Background()
	archive, store := newArchive(t)
	require.NoError(t, archive.Save(ctx, "sqlite", "old", New("baseline", "x", []byte("v1"))))
	require.NoError(t, archive.Save(ctx, "sqlite", "new", New("baseline", "x", []byte("v2"))))
	require.NoError(t, archive.Save(ctx, "other", "old", New("baseline", "x", []byte("v1"))))

	removed, err := archive.Prune(ctx, "sqlite", "new")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found, err := archive.Load(ctx, "sqlite", "new", "baseline", "x")
	require.NoError(t, err)
	assert.True(t, found)

	files, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, files, 4)
}
