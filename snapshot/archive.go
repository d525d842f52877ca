package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kbukum/dbsnap/errors"
	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/storage"
)

const digestSuffix = ".sha256"

// Archive persists blob snapshots in a storage.Storage keyed by backend,
// schema fingerprint and snapshot name.
type Archive struct {
	store storage.Storage
	log   *logger.Logger
}

// NewArchive creates an archive over store.
func NewArchive(store storage.Storage, log *logger.Logger) *Archive {
	if log == nil {
		log = logger.NewNop()
	}
	return &Archive{store: store, log: log.WithComponent("snapshot.archive")}
}

// Key returns the storage path for a snapshot.
func Key(backend, fingerprint, name string) string {
	return path.Join(backend, fingerprint, name)
}

// Save stores snap. References cannot be archived.
func (a *Archive) Save(ctx context.Context, backend, fingerprint string, snap *Snapshot) error {
	if snap.IsRef() {
		return errors.Snapshot("archive", snap.Name(), fmt.Errorf("snapshot %q is a reference", snap.Name()))
	}
	key := Key(backend, fingerprint, snap.Name())
	if err := a.store.Upload(ctx, key, snap.Reader()); err != nil {
		return errors.Snapshot("archive", snap.Name(), err)
	}
	if err := a.store.Upload(ctx, key+digestSuffix, strings.NewReader(snap.Digest())); err != nil {
		return errors.Snapshot("archive", snap.Name(), err)
	}
	a.log.Debug("snapshot archived", logger.Fields(
		logger.FieldBackend, backend,
		logger.FieldSnapshot, snap.Name(),
		"key", key,
		"size", snap.Size(),
	))
	return nil
}

// Load returns the archived snapshot. found is false when nothing is stored
// under the key. A stored blob whose digest does not match is a SnapshotError.
func (a *Archive) Load(ctx context.Context, backend, fingerprint, name, contentType string) (snap *Snapshot, found bool, err error) {
	key := Key(backend, fingerprint, name)

	want, err := a.read(ctx, key+digestSuffix)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Snapshot("load", name, err)
	}
	data, err := a.read(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Snapshot("load", name, err)
	}

	snap = New(name, contentType, data)
	if snap.Digest() != strings.TrimSpace(string(want)) {
		return nil, false, errors.Snapshot("load", name, fmt.Errorf("digest mismatch for %s", key))
	}
	return snap, true, nil
}

// Delete removes an archived snapshot.
func (a *Archive) Delete(ctx context.Context, backend, fingerprint, name string) error {
	key := Key(backend, fingerprint, name)
	if err := a.store.Delete(ctx, key); err != nil {
		return errors.Snapshot("delete", name, err)
	}
	if err := a.store.Delete(ctx, key+digestSuffix); err != nil {
		return errors.Snapshot("delete", name, err)
	}
	return nil
}

// Prune deletes every archived snapshot of backend whose fingerprint is not
// keep, so a schema change does not leave stale baselines behind. It returns
// the number of objects removed.
func (a *Archive) Prune(ctx context.Context, backend, keep string) (int, error) {
	files, err := a.store.List(ctx, backend+"/")
	if err != nil {
		return 0, errors.Snapshot("prune", backend, err)
	}
	removed := 0
	for _, f := range files {
		fingerprint, _, ok := strings.Cut(strings.TrimPrefix(f.Path, backend+"/"), "/")
		if !ok || fingerprint == keep {
			continue
		}
		if err := a.store.Delete(ctx, f.Path); err != nil {
			return removed, errors.Snapshot("prune", backend, err)
		}
		removed++
	}
	if removed > 0 {
		a.log.Info("stale baselines pruned", logger.Fields(
			logger.FieldBackend, backend,
			"fingerprint", keep,
			"removed", removed,
		))
	}
	return removed, nil
}

func (a *Archive) read(ctx context.Context, key string) ([]byte, error) {
	rc, err := a.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
