package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"quantumcore/internal/archive"
	"quantumcore/internal/infra/persistence/memory"
	"quantumcore/pkg/domain"
)

func seedService(t *testing.T, svc *Service) {
	t.Helper()
	ctx := WithCaller(context.Background(), "alice")
	if _, _, err := svc.AllocateParticle(ctx, "electron"); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, _, err := svc.AllocateParticle(ctx, "photon"); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, _, err := svc.RecordSuperposition(ctx, 1, "up"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, _, err := svc.CreateEntanglement(ctx, 1, 2); err != nil {
		t.Fatalf("entangle: %v", err)
	}
}

func TestArchiveAndRestoreSnapshot(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 9, 9, 9, 9, 9, 0, time.UTC)
	clock := WithClock(ClockFunc(func() time.Time { return fixed }))
	for name, store := range map[string]archive.Store{"memory": archive.NewMemory(), "s3": archive.NewMockS3ForTests()} {
		t.Run(name, func(t *testing.T) {
			src := NewInMemoryService(nil, clock)
			seedService(t, src)
			info, err := src.ArchiveSnapshot(ctx, store)
			if err != nil {
				t.Fatalf("archive: %v", err)
			}
			if !strings.HasPrefix(info.Key, archive.SnapshotPrefix) {
				t.Fatalf("unexpected key %s", info.Key)
			}
			listed, err := src.ListSnapshots(ctx, store)
			if err != nil || len(listed) != 1 || listed[0].Key != info.Key {
				t.Fatalf("unexpected listing %+v %v", listed, err)
			}

			dst := NewInMemoryService(nil, clock)
			doc, err := dst.RestoreSnapshot(ctx, store, info.Key)
			if err != nil {
				t.Fatalf("restore: %v", err)
			}
			if doc.Version != SnapshotFormatVersion || !doc.TakenAt.Equal(fixed) {
				t.Fatalf("unexpected document header %+v", doc)
			}
			if diff := cmp.Diff(src.ListParticleAllocations(), dst.ListParticleAllocations()); diff != "" {
				t.Fatalf("allocations differ (-src +dst):\n%s", diff)
			}
			if diff := cmp.Diff(src.ListSuperpositionStates(), dst.ListSuperpositionStates()); diff != "" {
				t.Fatalf("states differ (-src +dst):\n%s", diff)
			}
			if diff := cmp.Diff(src.ListEntanglements(), dst.ListEntanglements()); diff != "" {
				t.Fatalf("entanglements differ (-src +dst):\n%s", diff)
			}
			next, _, err := dst.AllocateParticle(ctx, "muon")
			if err != nil || next.ID != 3 {
				t.Fatalf("expected counters restored, got id %d err %v", next.ID, err)
			}
		})
	}
}

func TestRestoreSnapshotWritesThroughSQLite(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemory()
	src := NewInMemoryService(nil)
	seedService(t, src)
	info, err := src.ArchiveSnapshot(ctx, store)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	path := filepath.Join(t.TempDir(), "restore.db")
	sq, err := NewSQLiteStore(path, NewDefaultRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := NewService(sq).RestoreSnapshot(ctx, store, info.Key); err != nil {
		t.Fatalf("restore: %v", err)
	}
	_ = sq.Close()

	reopened, err := NewSQLiteStore(path, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	if got := len(reopened.ListParticleAllocations()); got != 2 {
		t.Fatalf("expected 2 persisted allocations, got %d", got)
	}
	if e, ok := reopened.GetEntanglement(1); !ok || e.Strength != 3 {
		t.Fatalf("expected persisted entanglement, got %+v %v", e, ok)
	}
}

func TestRestoreSnapshotRejectsInvalidDocuments(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemory()
	now := time.Now().UTC()
	bad := SnapshotDocument{
		Version: SnapshotFormatVersion,
		Registries: memory.Snapshot{
			Entanglements: map[domain.EntanglementID]domain.Entanglement{1: {ID: 1, Particle1ID: 1, Particle2ID: 2, Strength: 9}},
		},
	}
	tampered, err := archive.WriteSnapshot(ctx, store, now, bad)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	future, err := archive.WriteSnapshot(ctx, store, now, SnapshotDocument{Version: SnapshotFormatVersion + 1})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	svc := NewInMemoryService(nil)
	seedService(t, svc)
	before := svc.ListEntanglements()
	for _, key := range []string{tampered.Key, future.Key} {
		if _, err := svc.RestoreSnapshot(ctx, store, key); err == nil {
			t.Fatalf("expected restore of %s to fail", key)
		}
	}
	if _, err := svc.RestoreSnapshot(ctx, store, "snapshots/absent.json"); !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if diff := cmp.Diff(before, svc.ListEntanglements()); diff != "" {
		t.Fatalf("failed restore changed state:\n%s", diff)
	}
}
