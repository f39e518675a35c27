package archive

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SnapshotPrefix namespaces registry snapshots inside an archive.
const SnapshotPrefix = "snapshots/"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewSnapshotKey returns a lexically sortable key of the form snapshots/<ulid>.json.
func NewSnapshotKey(now time.Time) (string, error) {
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("generate snapshot id: %w", err)
	}
	return SnapshotPrefix + id.String() + ".json", nil
}

// WriteSnapshot encodes payload as JSON under a fresh snapshot key.
func WriteSnapshot(ctx context.Context, store Store, now time.Time, payload any) (Info, error) {
	key, err := NewSnapshotKey(now)
	if err != nil {
		return Info{}, err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return store.Put(ctx, key, bytes.NewReader(data))
}

// ReadSnapshot decodes the JSON snapshot stored at key into out.
func ReadSnapshot(ctx context.Context, store Store, key string, out any) error {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return nil
}

// ListSnapshots returns the archived snapshots, oldest first.
func ListSnapshots(ctx context.Context, store Store) ([]Info, error) {
	infos, err := store.List(ctx, SnapshotPrefix)
	if err != nil {
		return nil, err
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") {
			out = append(out, info)
		}
	}
	return out, nil
}
