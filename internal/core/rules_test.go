package core

import (
	"context"
	"testing"

	"quantumcore/pkg/domain"
)

func TestDefaultRulesHaveUniqueNames(t *testing.T) {
	seen := make(map[string]struct{})
	for _, rule := range defaultRules() {
		name := rule.Name()
		if name == "" {
			t.Fatalf("default rule with empty name: %#v", rule)
		}
		if _, dup := seen[name]; dup {
			t.Fatalf("duplicate default rule name %s", name)
		}
		seen[name] = struct{}{}
	}
	if len(NewDefaultRulesEngine().Rules()) != len(seen) {
		t.Fatalf("default engine should register every default rule")
	}
}

func TestEntanglementStrengthRule(t *testing.T) {
	rule := NewEntanglementStrengthRule()
	cases := []struct {
		name    string
		change  domain.Change
		blocked bool
	}{
		{"derived strength", domain.Change{Entity: domain.EntityEntanglement, After: domain.Entanglement{ID: 1, Particle1ID: 60, Particle2ID: 70, Strength: 30}}, false},
		{"tampered strength", domain.Change{Entity: domain.EntityEntanglement, After: domain.Entanglement{ID: 2, Particle1ID: 1, Particle2ID: 2, Strength: 4}}, true},
		{"out of range", domain.Change{Entity: domain.EntityEntanglement, After: domain.Entanglement{ID: 3, Particle1ID: 50, Particle2ID: 50, Strength: 100}}, true},
		{"negative", domain.Change{Entity: domain.EntityEntanglement, After: domain.Entanglement{ID: 4, Particle1ID: -1, Particle2ID: 0, Strength: -1}}, true},
		{"other entity", domain.Change{Entity: domain.EntityParticle, After: domain.ParticleAllocation{ID: 1}}, false},
		{"unexpected payload", domain.Change{Entity: domain.EntityEntanglement, After: "x"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := rule.Evaluate(context.Background(), nil, []domain.Change{tc.change})
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if res.HasBlocking() != tc.blocked {
				t.Fatalf("expected blocked=%v, got %+v", tc.blocked, res)
			}
			if tc.blocked && res.Violations[0].Rule != "entanglement_strength" {
				t.Fatalf("unexpected rule name %s", res.Violations[0].Rule)
			}
		})
	}
}

func TestSuperpositionUnallocatedRule(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.AllocateParticle("", "electron")
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rule := NewSuperpositionUnallocatedRule()
	err := store.View(ctx, func(view TransactionView) error {
		changes := []domain.Change{
			{Entity: domain.EntitySuperposition, After: domain.SuperpositionState{ParticleID: 1, State: "up"}},
			{Entity: domain.EntitySuperposition, After: domain.SuperpositionState{ParticleID: 9, State: "up"}},
			{Entity: domain.EntityEntanglement, After: domain.Entanglement{ID: 1}},
		}
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return err
		}
		if len(res.Violations) != 1 || res.Violations[0].EntityID != 9 || res.Violations[0].Severity != domain.SeverityWarn {
			t.Fatalf("expected single warning for particle 9, got %+v", res.Violations)
		}
		if res.HasBlocking() {
			t.Fatalf("warning rule must never block")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
