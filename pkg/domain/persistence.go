package domain

import "context"

// Transaction exposes the registry operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	AllocateParticle(owner, particleType string) (ParticleAllocation, error)
	DeactivateParticle(id ParticleID, caller string) (ParticleAllocation, error)
	RecordSuperposition(state SuperpositionState) (SuperpositionState, error)
	CreateEntanglement(particle1ID, particle2ID int64) (Entanglement, error)
	Reset() error
	FindParticleAllocation(id ParticleID) (ParticleAllocation, bool)
	FindSuperpositionState(id ParticleID) (SuperpositionState, bool)
	FindEntanglement(id EntanglementID) (Entanglement, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	RuleView
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetParticleAllocation(id ParticleID) (ParticleAllocation, bool)
	ListParticleAllocations() []ParticleAllocation
	GetSuperpositionState(id ParticleID) (SuperpositionState, bool)
	ListSuperpositionStates() []SuperpositionState
	GetEntanglement(id EntanglementID) (Entanglement, bool)
	ListEntanglements() []Entanglement
}
