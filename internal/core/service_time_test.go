package core

import (
	"context"
	"testing"
	"time"

	"quantumcore/pkg/domain"
)

func TestClockFuncNowNilFallsBackToUTCTime(t *testing.T) {
	got := ClockFunc(nil).Now()
	if got.IsZero() || got.Location() != time.UTC {
		t.Fatalf("expected non-zero UTC time, got %s", got)
	}
}

func TestClockFuncNowNormalisesToUTC(t *testing.T) {
	expected := time.Date(2024, 7, 4, 12, 34, 56, 0, time.FixedZone("offset", -5*3600))
	got := ClockFunc(func() time.Time { return expected }).Now()
	if !got.Equal(expected) || got.Location() != time.UTC {
		t.Fatalf("expected %s in UTC, got %s", expected.UTC(), got)
	}
}

// fakePersistentStore satisfies PersistentStore without exposing engine or clock hooks.
type fakePersistentStore struct{}

func (fakePersistentStore) RunInTransaction(context.Context, func(Transaction) error) (Result, error) {
	return Result{}, nil
}
func (fakePersistentStore) View(context.Context, func(TransactionView) error) error { return nil }
func (fakePersistentStore) GetParticleAllocation(ParticleID) (ParticleAllocation, bool) {
	return ParticleAllocation{}, false
}
func (fakePersistentStore) ListParticleAllocations() []ParticleAllocation { return nil }
func (fakePersistentStore) GetSuperpositionState(ParticleID) (SuperpositionState, bool) {
	return SuperpositionState{}, false
}
func (fakePersistentStore) ListSuperpositionStates() []SuperpositionState { return nil }
func (fakePersistentStore) GetEntanglement(EntanglementID) (Entanglement, bool) {
	return Entanglement{}, false
}
func (fakePersistentStore) ListEntanglements() []Entanglement { return nil }

type providerStore struct {
	fakePersistentStore
	engine *domain.RulesEngine
	now    func() time.Time
}

func (p *providerStore) RulesEngine() *domain.RulesEngine { return p.engine }

func (p *providerStore) NowFunc() func() time.Time { return p.now }

func TestExtractRulesEngine(t *testing.T) {
	engine := domain.NewRulesEngine()
	if got := extractRulesEngine(NewMemoryStore(engine)); got != engine {
		t.Fatalf("expected engine pointer, got %v", got)
	}
	if extractRulesEngine(fakePersistentStore{}) != nil {
		t.Fatal("expected nil for stores without RulesEngine provider")
	}
}

func TestSelectNowFuncPrefersClock(t *testing.T) {
	expected := time.Date(2030, 5, 6, 7, 8, 9, 0, time.UTC)
	store := &providerStore{now: func() time.Time { return time.Unix(0, 0) }}
	nowFn := selectNowFunc(store, ClockFunc(func() time.Time { return expected }))
	if got := nowFn(); !got.Equal(expected) {
		t.Fatalf("expected clock to win, got %s", got)
	}
}

func TestSelectNowFuncFallsBackToStoreProvider(t *testing.T) {
	expected := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("cet", 3600))
	store := &providerStore{now: func() time.Time { return expected }}
	got := selectNowFunc(store, nil)()
	if !got.Equal(expected) || got.Location() != time.UTC {
		t.Fatalf("expected store time in UTC, got %s", got)
	}
}

func TestSelectNowFuncDefaultsToSystemUTC(t *testing.T) {
	for _, store := range []PersistentStore{fakePersistentStore{}, &providerStore{}} {
		got := selectNowFunc(store, nil)()
		if got.Location() != time.UTC {
			t.Fatalf("expected UTC time, got %s", got.Location())
		}
		if d := time.Since(got); d > time.Second || d < -time.Second {
			t.Fatalf("expected near-current time, got %s", got)
		}
	}
}

func TestWithClockDrivesStoreTimestamps(t *testing.T) {
	fixed := time.Date(2024, 4, 20, 12, 34, 56, 0, time.UTC)
	svc := NewInMemoryService(nil, WithClock(ClockFunc(func() time.Time { return fixed })))
	a, _, err := svc.AllocateParticle(context.Background(), "electron")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if !a.CreatedAt.Equal(fixed) || !a.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected store timestamps from service clock, got %+v", a)
	}
}

func TestServiceOverStoreWithoutHooks(t *testing.T) {
	svc := NewService(fakePersistentStore{})
	if svc.RulesEngine() != nil {
		t.Fatalf("expected nil engine")
	}
	if _, _, err := svc.AllocateParticle(context.Background(), "electron"); err != nil {
		t.Fatalf("allocate on fake store: %v", err)
	}
	if _, err := svc.ArchiveSnapshot(context.Background(), nil); err != ErrSnapshotsUnsupported {
		t.Fatalf("expected ErrSnapshotsUnsupported, got %v", err)
	}
}
