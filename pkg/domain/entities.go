// Package domain defines the particle, superposition and entanglement records
// shared by every persistence backend, together with the transaction and rule
// contracts those backends implement.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// EntityType identifies the registry a record belongs to.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityParticle identifies a particle allocation record.
	EntityParticle EntityType = "particle"
	// EntitySuperposition identifies a recorded superposition state.
	EntitySuperposition EntityType = "superposition"
	// EntityEntanglement identifies a particle pairing.
	EntityEntanglement EntityType = "entanglement"
)

// SentinelOwner stands in for the caller that created an allocation when no
// explicit caller is supplied.
const SentinelOwner = "tx-sender"

// StrengthModulus bounds entanglement strength to [0, StrengthModulus).
const StrengthModulus = 100

// ParticleID is the identifier assigned to an allocation by its registry counter.
type ParticleID int64

// EntanglementID is the identifier assigned to a pairing by its registry counter.
type EntanglementID int64

// ErrParticleUnavailable is returned when a deactivation targets a particle that
// does not exist or is owned by someone else. The two cases are not distinguished.
var ErrParticleUnavailable = errors.New("Particle not found or unauthorized") //nolint:staticcheck // message is part of the public contract

// ParticleAllocation is a claimed particle slot.
type ParticleAllocation struct {
	ID           ParticleID `json:"id"`
	Owner        string     `json:"owner"`
	ParticleType string     `json:"particle_type"`
	Active       bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SuperpositionState is the last measured state of a particle. It is keyed by
// the caller supplied particle id rather than a registry counter.
type SuperpositionState struct {
	ParticleID   ParticleID `json:"particle_id"`
	State        string     `json:"state"`
	LastMeasured time.Time  `json:"last_measured"`
}

// Entanglement pairs two particles. Records are immutable once created.
type Entanglement struct {
	ID          EntanglementID `json:"id"`
	Particle1ID int64          `json:"particle1_id"`
	Particle2ID int64          `json:"particle2_id"`
	Strength    int64          `json:"strength"`
	CreatedAt   time.Time      `json:"created_at"`
}

// EntanglementStrength derives the stored strength for a pair of members. The
// result is always in [0, StrengthModulus), including for negative members.
func EntanglementStrength(particle1ID, particle2ID int64) int64 {
	s := (particle1ID%StrengthModulus + particle2ID%StrengthModulus) % StrengthModulus
	if s < 0 {
		s += StrengthModulus
	}
	return s
}

// Change describes a single mutation captured within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured in audit trail.
const (
	// ActionCreate indicates a record was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates a record was updated or overwritten.
	ActionUpdate Action = "update"
	// ActionReset indicates a registry was cleared.
	ActionReset Action = "reset"
)

// ErrNotFound is returned when a transaction helper cannot resolve a record.
type ErrNotFound struct {
	Entity EntityType
	ID     int64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}
