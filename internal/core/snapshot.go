package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quantumcore/internal/archive"
	"quantumcore/internal/infra/persistence/memory"
	"quantumcore/pkg/domain"
)

// SnapshotFormatVersion is written into every archived snapshot document.
const SnapshotFormatVersion = 1

// SnapshotDocument is the archived JSON form of the registries.
type SnapshotDocument struct {
	Version    int             `json:"version"`
	TakenAt    time.Time       `json:"taken_at"`
	Registries memory.Snapshot `json:"registries"`
}

type snapshotStore interface {
	ExportState() memory.Snapshot
	Restore(ctx context.Context, snapshot memory.Snapshot) error
}

// ErrSnapshotsUnsupported is returned when the store cannot export or restore state.
var ErrSnapshotsUnsupported = errors.New("store does not support snapshots")

func (s *Service) snapshotStore() (snapshotStore, error) {
	store, ok := s.store.(snapshotStore)
	if !ok {
		return nil, ErrSnapshotsUnsupported
	}
	return store, nil
}

// ArchiveSnapshot writes the current registries to dst under a new
// time-ordered key and returns the object info.
func (s *Service) ArchiveSnapshot(ctx context.Context, dst archive.Store) (archive.Info, error) {
	const op = "archive_snapshot"
	var info archive.Info
	_, err := s.instrument(ctx, op, func(ctx context.Context) (Result, error) {
		store, err := s.snapshotStore()
		if err != nil {
			return Result{}, err
		}
		now := s.now()
		doc := SnapshotDocument{Version: SnapshotFormatVersion, TakenAt: now, Registries: store.ExportState()}
		info, err = archive.WriteSnapshot(ctx, dst, now, doc)
		return Result{}, err
	})
	s.recordAudit(ctx, op, info.Key, err)
	return info, err
}

// RestoreSnapshot replaces the registries with the snapshot stored at key.
// Durable stores write the restored state through before returning.
func (s *Service) RestoreSnapshot(ctx context.Context, src archive.Store, key string) (SnapshotDocument, error) {
	const op = "restore_snapshot"
	var doc SnapshotDocument
	_, err := s.instrument(ctx, op, func(ctx context.Context) (Result, error) {
		store, err := s.snapshotStore()
		if err != nil {
			return Result{}, err
		}
		if err := archive.ReadSnapshot(ctx, src, key, &doc); err != nil {
			return Result{}, err
		}
		if err := validateSnapshot(doc); err != nil {
			return Result{}, fmt.Errorf("snapshot %s: %w", key, err)
		}
		return Result{}, store.Restore(ctx, doc.Registries)
	})
	s.recordAudit(ctx, op, key, err)
	return doc, err
}

// ListSnapshots returns the snapshots held by src, oldest first.
func (s *Service) ListSnapshots(ctx context.Context, src archive.Store) ([]archive.Info, error) {
	return archive.ListSnapshots(ctx, src)
}

func validateSnapshot(doc SnapshotDocument) error {
	if doc.Version != SnapshotFormatVersion {
		return fmt.Errorf("unsupported snapshot version %d", doc.Version)
	}
	for id, e := range doc.Registries.Entanglements {
		if want := domain.EntanglementStrength(e.Particle1ID, e.Particle2ID); e.Strength != want {
			return fmt.Errorf("entanglement %d strength %d, expected %d", id, e.Strength, want)
		}
	}
	return nil
}
