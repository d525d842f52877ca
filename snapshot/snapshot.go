package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"
)

// Snapshot is a captured engine state.
type Snapshot struct {
	name        string
	contentType string
	data        []byte
	ref         bool
	digest      string
	createdAt   time.Time
}

// New creates a blob snapshot. data is copied.
func New(name, contentType string, data []byte) *Snapshot {
	buf := make([]byte, len(data))
	copy(buf, data)
	sum := sha256.Sum256(buf)
	return &Snapshot{
		name:        name,
		contentType: contentType,
		data:        buf,
		digest:      hex.EncodeToString(sum[:]),
		createdAt:   time.Now(),
	}
}

// Ref creates a snapshot that names state held by the engine itself.
func Ref(name, contentType string) *Snapshot {
	sum := sha256.Sum256([]byte(name))
	return &Snapshot{
		name:        name,
		contentType: contentType,
		ref:         true,
		digest:      hex.EncodeToString(sum[:]),
		createdAt:   time.Now(),
	}
}

func (s *Snapshot) Name() string         { return s.name }
func (s *Snapshot) ContentType() string  { return s.contentType }
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// IsRef reports whether the snapshot is a named reference without bytes.
func (s *Snapshot) IsRef() bool { return s.ref }

// Size is the blob length in bytes; zero for references.
func (s *Snapshot) Size() int64 { return int64(len(s.data)) }

// Digest is the hex sha256 of the blob, or of the name for references.
func (s *Snapshot) Digest() string { return s.digest }

// Reader returns a read-only view over the blob.
func (s *Snapshot) Reader() io.Reader { return bytes.NewReader(s.data) }

// Bytes returns a copy of the blob.
func (s *Snapshot) Bytes() []byte {
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

// WriteTo writes the blob to w.
func (s *Snapshot) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.data)
	return int64(n), err
}

var _ io.WriterTo = (*Snapshot)(nil)
