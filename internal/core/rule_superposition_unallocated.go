package core

import (
	"context"
	"fmt"

	"quantumcore/pkg/domain"
)

// NewSuperpositionUnallocatedRule warns when a state is recorded for a particle
// that has no allocation. The recording still commits.
func NewSuperpositionUnallocatedRule() domain.Rule {
	return superpositionUnallocatedRule{}
}

type superpositionUnallocatedRule struct{}

func (superpositionUnallocatedRule) Name() string { return "superposition_unallocated" }

func (r superpositionUnallocatedRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntitySuperposition {
			continue
		}
		st, ok := change.After.(domain.SuperpositionState)
		if !ok {
			continue
		}
		if _, allocated := view.FindParticleAllocation(st.ParticleID); allocated {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("superposition recorded for unallocated particle %d", st.ParticleID),
			Entity:   domain.EntitySuperposition,
			EntityID: int64(st.ParticleID),
		})
	}
	return res, nil
}
