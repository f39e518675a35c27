// Package core wires the registry stores, the rules engine and the ambient
// observability hooks into a single Service used by the CLI and tests.
package core

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Service exposes transactional registry operations over a PersistentStore.
type Service struct {
	store   PersistentStore
	engine  *RulesEngine
	clock   Clock
	now     func() time.Time
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger; nil keeps the no-op logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for measurements and audit timestamps.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the span factory.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit sink for mutating operations.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

type rulesEngineProvider interface {
	RulesEngine() *RulesEngine
}

type nowFuncProvider interface {
	NowFunc() func() time.Time
}

type nowFuncSetter interface {
	SetNowFunc(fn func() time.Time)
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		engine:  extractRulesEngine(store),
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.clock != nil {
		if setter, ok := store.(nowFuncSetter); ok {
			setter.SetNowFunc(svc.clock.Now)
		}
	}
	svc.now = selectNowFunc(store, svc.clock)
	return svc
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine installs the default rules.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// RulesEngine returns the engine evaluated by the store, if it exposes one.
func (s *Service) RulesEngine() *RulesEngine { return s.engine }

func extractRulesEngine(store PersistentStore) *RulesEngine {
	if provider, ok := store.(rulesEngineProvider); ok {
		return provider.RulesEngine()
	}
	return nil
}

// selectNowFunc prefers an explicit clock, then the store's time provider,
// then the UTC wall clock.
func selectNowFunc(store PersistentStore, clock Clock) func() time.Time {
	if clock != nil {
		return clock.Now
	}
	if provider, ok := store.(nowFuncProvider); ok {
		if fn := provider.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	return func() time.Time { return time.Now().UTC() }
}

// AllocateParticle claims the next particle id for the context caller.
func (s *Service) AllocateParticle(ctx context.Context, particleType string) (ParticleAllocation, Result, error) {
	const op = "allocate_particle"
	caller := CallerFromContext(ctx)
	var created ParticleAllocation
	res, err := s.run(ctx, op, func(tx Transaction) error {
		var err error
		created, err = tx.AllocateParticle(caller, particleType)
		return err
	})
	s.recordAudit(ctx, op, formatID(int64(created.ID), err), err)
	return created, res, err
}

// GetParticleAllocation returns the allocation for id; false when absent.
func (s *Service) GetParticleAllocation(id ParticleID) (ParticleAllocation, bool) {
	return s.store.GetParticleAllocation(id)
}

// ListParticleAllocations returns all allocations ordered by id.
func (s *Service) ListParticleAllocations() []ParticleAllocation {
	return s.store.ListParticleAllocations()
}

// DeactivateParticle marks the allocation inactive when the context caller owns
// it. Missing and foreign allocations both yield ErrParticleUnavailable.
func (s *Service) DeactivateParticle(ctx context.Context, id ParticleID) (ParticleAllocation, Result, error) {
	const op = "deactivate_particle"
	caller := CallerFromContext(ctx)
	var updated ParticleAllocation
	res, err := s.run(ctx, op, func(tx Transaction) error {
		var err error
		updated, err = tx.DeactivateParticle(id, caller)
		return err
	})
	s.recordAudit(ctx, op, strconv.FormatInt(int64(id), 10), err)
	return updated, res, err
}

// RecordSuperposition overwrites the state stored for particleID.
func (s *Service) RecordSuperposition(ctx context.Context, particleID ParticleID, state string) (SuperpositionState, Result, error) {
	const op = "record_superposition"
	var recorded SuperpositionState
	res, err := s.run(ctx, op, func(tx Transaction) error {
		var err error
		recorded, err = tx.RecordSuperposition(SuperpositionState{
			ParticleID:   particleID,
			State:        state,
			LastMeasured: s.now(),
		})
		return err
	})
	s.recordAudit(ctx, op, strconv.FormatInt(int64(particleID), 10), err)
	return recorded, res, err
}

// GetSuperpositionState returns the last recorded state for particleID.
func (s *Service) GetSuperpositionState(particleID ParticleID) (SuperpositionState, bool) {
	return s.store.GetSuperpositionState(particleID)
}

// ListSuperpositionStates returns all recorded states ordered by particle id.
func (s *Service) ListSuperpositionStates() []SuperpositionState {
	return s.store.ListSuperpositionStates()
}

// CreateEntanglement pairs two particles under the next entanglement id.
// Members are not checked against the allocation registry.
func (s *Service) CreateEntanglement(ctx context.Context, particle1ID, particle2ID int64) (Entanglement, Result, error) {
	const op = "create_entanglement"
	var created Entanglement
	res, err := s.run(ctx, op, func(tx Transaction) error {
		var err error
		created, err = tx.CreateEntanglement(particle1ID, particle2ID)
		return err
	})
	s.recordAudit(ctx, op, formatID(int64(created.ID), err), err)
	return created, res, err
}

// GetEntanglement returns the pairing for id; false when absent.
func (s *Service) GetEntanglement(id EntanglementID) (Entanglement, bool) {
	return s.store.GetEntanglement(id)
}

// ListEntanglements returns all pairings ordered by id.
func (s *Service) ListEntanglements() []Entanglement {
	return s.store.ListEntanglements()
}

// Reset clears all registries and rewinds the identifier counters.
func (s *Service) Reset(ctx context.Context) (Result, error) {
	const op = "reset"
	res, err := s.run(ctx, op, func(tx Transaction) error {
		return tx.Reset()
	})
	s.recordAudit(ctx, op, "", err)
	return res, err
}

// run executes fn in a store transaction wrapped with tracing, metrics and logging.
func (s *Service) run(ctx context.Context, op string, fn func(Transaction) error) (Result, error) {
	return s.instrument(ctx, op, func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, fn)
	})
}

func (s *Service) instrument(ctx context.Context, op string, fn func(context.Context) (Result, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	res, err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	if err != nil {
		var violation RuleViolationError
		if errors.As(err, &violation) {
			for _, v := range violation.Result.Violations {
				s.logger.Warn("rule blocked operation", "operation", op, "rule", v.Rule, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
			}
		}
		s.logger.Error("operation failed", "operation", op, "error", err, "duration", duration)
		return res, err
	}
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", v.Severity, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
	}
	s.logger.Info("operation completed", "operation", op, "duration", duration)
	return res, nil
}

type auditMetadata struct {
	entity EntityType
	action Action
}

var auditOperations = map[string]auditMetadata{
	"allocate_particle":    {entity: EntityParticle, action: ActionCreate},
	"deactivate_particle":  {entity: EntityParticle, action: ActionUpdate},
	"record_superposition": {entity: EntitySuperposition, action: ActionUpdate},
	"create_entanglement":  {entity: EntityEntanglement, action: ActionCreate},
	"reset":                {action: ActionReset},
	"archive_snapshot":     {action: ActionCreate},
	"restore_snapshot":     {action: ActionReset},
}

// recordAudit emits an audit entry for known mutating operations.
func (s *Service) recordAudit(ctx context.Context, op, entityID string, err error) {
	meta, ok := auditOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Timestamp: s.now(),
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Caller:    CallerFromContext(ctx),
		Status:    AuditStatusSuccess,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func formatID(id int64, err error) string {
	if err != nil || id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
