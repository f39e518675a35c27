package core

import (
	"context"
	"fmt"

	"quantumcore/pkg/domain"
)

// NewEntanglementStrengthRule blocks entanglements whose stored strength is not
// the derived (p1+p2) mod 100 value.
func NewEntanglementStrengthRule() domain.Rule {
	return entanglementStrengthRule{}
}

type entanglementStrengthRule struct{}

func (entanglementStrengthRule) Name() string { return "entanglement_strength" }

func (r entanglementStrengthRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityEntanglement {
			continue
		}
		e, ok := change.After.(domain.Entanglement)
		if !ok {
			continue
		}
		want := domain.EntanglementStrength(e.Particle1ID, e.Particle2ID)
		if e.Strength < 0 || e.Strength >= domain.StrengthModulus || e.Strength != want {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("entanglement %d strength %d, expected %d", e.ID, e.Strength, want),
				Entity:   domain.EntityEntanglement,
				EntityID: int64(e.ID),
			})
		}
	}
	return res, nil
}
