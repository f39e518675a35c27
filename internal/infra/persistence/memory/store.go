// Package memory provides an in-memory implementation of the registry
// persistence store used for tests, ephemeral environments and as the
// transactional core of the durable backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"quantumcore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// ParticleAllocation aliases domain.ParticleAllocation.
	ParticleAllocation = domain.ParticleAllocation
	// SuperpositionState aliases domain.SuperpositionState.
	SuperpositionState = domain.SuperpositionState
	// Entanglement aliases domain.Entanglement.
	Entanglement = domain.Entanglement
	// ParticleID aliases domain.ParticleID.
	ParticleID = domain.ParticleID
	// EntanglementID aliases domain.EntanglementID.
	EntanglementID = domain.EntanglementID
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	allocations      map[ParticleID]ParticleAllocation
	states           map[ParticleID]SuperpositionState
	entanglements    map[EntanglementID]Entanglement
	lastParticleID   ParticleID
	lastEntanglement EntanglementID
}

// Counters records the last identifier handed out by each registry.
type Counters struct {
	LastParticleID     ParticleID     `json:"last_particle_id"`
	LastEntanglementID EntanglementID `json:"last_entanglement_id"`
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Allocations   map[ParticleID]ParticleAllocation `json:"allocations"`
	States        map[ParticleID]SuperpositionState `json:"states"`
	Entanglements map[EntanglementID]Entanglement   `json:"entanglements"`
	Counters      Counters                          `json:"counters"`
}

func newMemoryState() memoryState {
	return memoryState{
		allocations:   make(map[ParticleID]ParticleAllocation),
		states:        make(map[ParticleID]SuperpositionState),
		entanglements: make(map[EntanglementID]Entanglement),
	}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		allocations:      make(map[ParticleID]ParticleAllocation, len(s.allocations)),
		states:           make(map[ParticleID]SuperpositionState, len(s.states)),
		entanglements:    make(map[EntanglementID]Entanglement, len(s.entanglements)),
		lastParticleID:   s.lastParticleID,
		lastEntanglement: s.lastEntanglement,
	}
	for k, v := range s.allocations {
		cloned.allocations[k] = v
	}
	for k, v := range s.states {
		cloned.states[k] = v
	}
	for k, v := range s.entanglements {
		cloned.entanglements[k] = v
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{
		Allocations:   cloned.allocations,
		States:        cloned.states,
		Entanglements: cloned.entanglements,
		Counters: Counters{
			LastParticleID:     cloned.lastParticleID,
			LastEntanglementID: cloned.lastEntanglement,
		},
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Allocations {
		v.ID = k
		state.allocations[k] = v
	}
	for k, v := range s.States {
		v.ParticleID = k
		state.states[k] = v
	}
	for k, v := range s.Entanglements {
		v.ID = k
		state.entanglements[k] = v
	}
	state.lastParticleID = s.Counters.LastParticleID
	state.lastEntanglement = s.Counters.LastEntanglementID
	return state
}

// migrateSnapshot repairs counters that trail the highest stored identifier so
// that imported snapshots never hand out an identifier twice.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	for id := range snapshot.Allocations {
		if id > snapshot.Counters.LastParticleID {
			snapshot.Counters.LastParticleID = id
		}
	}
	for id := range snapshot.Entanglements {
		if id > snapshot.Counters.LastEntanglementID {
			snapshot.Counters.LastEntanglementID = id
		}
	}
	return snapshot
}

// Store provides an in-memory transactional store for the registries.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// CommitFunc writes a candidate state before it becomes visible. An error
// discards the candidate and leaves the store unchanged.
type CommitFunc func(ctx context.Context, snapshot Snapshot) error

// Restore replaces the store state with snapshot.
func (s *Store) Restore(ctx context.Context, snapshot Snapshot) error {
	return s.RestoreWithCommit(ctx, snapshot, nil)
}

// RestoreWithCommit replaces the store state with snapshot once commit
// accepts it. A nil commit always accepts.
func (s *Store) RestoreWithCommit(ctx context.Context, snapshot Snapshot, commit CommitFunc) error {
	next := memoryStateFromSnapshot(migrateSnapshot(snapshot))
	s.mu.Lock()
	defer s.mu.Unlock()
	if commit != nil {
		if err := commit(ctx, snapshotFromMemoryState(next)); err != nil {
			return err
		}
	}
	s.state = next
	return nil
}

// RulesEngine exposes the currently configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider; a nil fn restores the UTC wall clock.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListParticleAllocations() []ParticleAllocation {
	return sortedAllocations(v.state.allocations)
}

func (v transactionView) ListSuperpositionStates() []SuperpositionState {
	return sortedStates(v.state.states)
}

func (v transactionView) ListEntanglements() []Entanglement {
	return sortedEntanglements(v.state.entanglements)
}

func (v transactionView) FindParticleAllocation(id ParticleID) (ParticleAllocation, bool) {
	a, ok := v.state.allocations[id]
	return a, ok
}

func (v transactionView) FindSuperpositionState(id ParticleID) (SuperpositionState, bool) {
	st, ok := v.state.states[id]
	return st, ok
}

func (v transactionView) FindEntanglement(id EntanglementID) (Entanglement, bool) {
	e, ok := v.state.entanglements[id]
	return e, ok
}

// RunInTransaction executes fn against a cloned state. The clone replaces the
// live state only when fn succeeds and no blocking rule fires.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	return s.RunInTransactionWithCommit(ctx, fn, nil)
}

// RunInTransactionWithCommit behaves like RunInTransaction but hands the
// resulting state to commit before swapping it in. When commit fails the
// transaction is discarded, identifiers included.
func (s *Store) RunInTransactionWithCommit(ctx context.Context, fn func(tx Transaction) error, commit CommitFunc) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if commit != nil {
		if err := commit(ctx, snapshotFromMemoryState(tx.state)); err != nil {
			return result, err
		}
	}
	s.state = tx.state
	return result, nil
}

// View executes fn with a read-only snapshot of the current state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) FindParticleAllocation(id ParticleID) (ParticleAllocation, bool) {
	a, ok := tx.state.allocations[id]
	return a, ok
}

func (tx *transaction) FindSuperpositionState(id ParticleID) (SuperpositionState, bool) {
	st, ok := tx.state.states[id]
	return st, ok
}

func (tx *transaction) FindEntanglement(id EntanglementID) (Entanglement, bool) {
	e, ok := tx.state.entanglements[id]
	return e, ok
}

// AllocateParticle stores a new active allocation under the next particle id.
func (tx *transaction) AllocateParticle(owner, particleType string) (ParticleAllocation, error) {
	if owner == "" {
		owner = domain.SentinelOwner
	}
	id := tx.state.lastParticleID + 1
	if _, exists := tx.state.allocations[id]; exists {
		return ParticleAllocation{}, fmt.Errorf("particle %d already exists", id)
	}
	tx.state.lastParticleID = id
	a := ParticleAllocation{
		ID:           id,
		Owner:        owner,
		ParticleType: particleType,
		Active:       true,
		CreatedAt:    tx.now,
		UpdatedAt:    tx.now,
	}
	tx.state.allocations[id] = a
	tx.recordChange(Change{Entity: domain.EntityParticle, Action: domain.ActionCreate, After: a})
	return a, nil
}

// DeactivateParticle clears the active flag when caller owns the allocation.
func (tx *transaction) DeactivateParticle(id ParticleID, caller string) (ParticleAllocation, error) {
	if caller == "" {
		caller = domain.SentinelOwner
	}
	current, ok := tx.state.allocations[id]
	if !ok || current.Owner != caller {
		return ParticleAllocation{}, domain.ErrParticleUnavailable
	}
	before := current
	current.Active = false
	current.UpdatedAt = tx.now
	tx.state.allocations[id] = current
	tx.recordChange(Change{Entity: domain.EntityParticle, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// RecordSuperposition overwrites any previous state for the particle.
func (tx *transaction) RecordSuperposition(st SuperpositionState) (SuperpositionState, error) {
	if st.LastMeasured.IsZero() {
		st.LastMeasured = tx.now
	}
	change := Change{Entity: domain.EntitySuperposition, Action: domain.ActionCreate, After: st}
	if before, ok := tx.state.states[st.ParticleID]; ok {
		change.Action = domain.ActionUpdate
		change.Before = before
	}
	tx.state.states[st.ParticleID] = st
	tx.recordChange(change)
	return st, nil
}

// CreateEntanglement stores a new pairing under the next entanglement id.
func (tx *transaction) CreateEntanglement(particle1ID, particle2ID int64) (Entanglement, error) {
	id := tx.state.lastEntanglement + 1
	if _, exists := tx.state.entanglements[id]; exists {
		return Entanglement{}, fmt.Errorf("entanglement %d already exists", id)
	}
	tx.state.lastEntanglement = id
	e := Entanglement{
		ID:          id,
		Particle1ID: particle1ID,
		Particle2ID: particle2ID,
		Strength:    domain.EntanglementStrength(particle1ID, particle2ID),
		CreatedAt:   tx.now,
	}
	tx.state.entanglements[id] = e
	tx.recordChange(Change{Entity: domain.EntityEntanglement, Action: domain.ActionCreate, After: e})
	return e, nil
}

// Reset clears every registry and rewinds both counters.
func (tx *transaction) Reset() error {
	tx.state = newMemoryState()
	for _, entity := range []domain.EntityType{domain.EntityParticle, domain.EntitySuperposition, domain.EntityEntanglement} {
		tx.recordChange(Change{Entity: entity, Action: domain.ActionReset})
	}
	return nil
}

// GetParticleAllocation retrieves an allocation by id.
func (s *Store) GetParticleAllocation(id ParticleID) (ParticleAllocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.allocations[id]
	return a, ok
}

// ListParticleAllocations returns all allocations ordered by id.
func (s *Store) ListParticleAllocations() []ParticleAllocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedAllocations(s.state.allocations)
}

// GetSuperpositionState retrieves the last recorded state for a particle.
func (s *Store) GetSuperpositionState(id ParticleID) (SuperpositionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.state.states[id]
	return st, ok
}

// ListSuperpositionStates returns all recorded states ordered by particle id.
func (s *Store) ListSuperpositionStates() []SuperpositionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedStates(s.state.states)
}

// GetEntanglement retrieves a pairing by id.
func (s *Store) GetEntanglement(id EntanglementID) (Entanglement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.entanglements[id]
	return e, ok
}

// ListEntanglements returns all pairings ordered by id.
func (s *Store) ListEntanglements() []Entanglement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEntanglements(s.state.entanglements)
}

func sortedAllocations(in map[ParticleID]ParticleAllocation) []ParticleAllocation {
	out := make([]ParticleAllocation, 0, len(in))
	for _, a := range in {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedStates(in map[ParticleID]SuperpositionState) []SuperpositionState {
	out := make([]SuperpositionState, 0, len(in))
	for _, st := range in {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticleID < out[j].ParticleID })
	return out
}

func sortedEntanglements(in map[EntanglementID]Entanglement) []Entanglement {
	out := make([]Entanglement, 0, len(in))
	for _, e := range in {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
