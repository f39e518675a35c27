package core

import "quantumcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	ParticleID         = domain.ParticleID
	EntanglementID     = domain.EntanglementID
	ParticleAllocation = domain.ParticleAllocation
	SuperpositionState = domain.SuperpositionState
	Entanglement       = domain.Entanglement
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityParticle      = domain.EntityParticle
	EntitySuperposition = domain.EntitySuperposition
	EntityEntanglement  = domain.EntityEntanglement
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionReset  = domain.ActionReset
)

// ErrParticleUnavailable re-exports the deactivation failure.
var ErrParticleUnavailable = domain.ErrParticleUnavailable
