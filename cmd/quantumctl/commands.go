package main

import (
	"github.com/spf13/cobra"

	"quantumcore/internal/core"
	"quantumcore/pkg/domain"
)

// mutation is the JSON envelope printed by mutating commands.
type mutation struct {
	Record     any                `json:"record,omitempty"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

func newAllocateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "allocate <particle-type>",
		Short: "Allocate a new particle owned by the caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			allocation, res, err := a.svc.AllocateParticle(a.context(cmd), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, mutation{Record: allocation, Violations: res.Violations})
		},
	}
}

func newAllocationCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "allocation <id>",
		Short: "Show a particle allocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "particle id")
			if err != nil {
				return err
			}
			allocation, ok := a.svc.GetParticleAllocation(core.ParticleID(id))
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityParticle, ID: id}
			}
			return writeJSON(cmd, allocation)
		},
	}
}

func newDeactivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a particle owned by the caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "particle id")
			if err != nil {
				return err
			}
			allocation, res, err := a.svc.DeactivateParticle(a.context(cmd), core.ParticleID(id))
			if err != nil {
				return err
			}
			return writeJSON(cmd, mutation{Record: allocation, Violations: res.Violations})
		},
	}
}

func newRecordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "record <particle-id> <state>",
		Short: "Record the superposition state of a particle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "particle id")
			if err != nil {
				return err
			}
			state, res, err := a.svc.RecordSuperposition(a.context(cmd), core.ParticleID(id), args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd, mutation{Record: state, Violations: res.Violations})
		},
	}
}

func newStateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state <particle-id>",
		Short: "Show the last recorded superposition state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "particle id")
			if err != nil {
				return err
			}
			state, ok := a.svc.GetSuperpositionState(core.ParticleID(id))
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntitySuperposition, ID: id}
			}
			return writeJSON(cmd, state)
		},
	}
}

func newEntangleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "entangle <particle1-id> <particle2-id>",
		Short: "Entangle two particles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p1, err := parseID(args[0], "particle id")
			if err != nil {
				return err
			}
			p2, err := parseID(args[1], "particle id")
			if err != nil {
				return err
			}
			e, res, err := a.svc.CreateEntanglement(a.context(cmd), p1, p2)
			if err != nil {
				return err
			}
			return writeJSON(cmd, mutation{Record: e, Violations: res.Violations})
		},
	}
}

func newEntanglementCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "entanglement <id>",
		Short: "Show an entanglement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "entanglement id")
			if err != nil {
				return err
			}
			e, ok := a.svc.GetEntanglement(core.EntanglementID(id))
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityEntanglement, ID: id}
			}
			return writeJSON(cmd, e)
		},
	}
}

type registries struct {
	Allocations   []domain.ParticleAllocation `json:"allocations"`
	States        []domain.SuperpositionState `json:"states"`
	Entanglements []domain.Entanglement       `json:"entanglements"`
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd, registries{
				Allocations:   nonNil(a.svc.ListParticleAllocations()),
				States:        nonNil(a.svc.ListSuperpositionStates()),
				Entanglements: nonNil(a.svc.ListEntanglements()),
			})
		},
	}
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear all registries and identifier counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.svc.Reset(a.context(cmd)); err != nil {
				return err
			}
			return writeJSON(cmd, map[string]bool{"reset": true})
		},
	}
}
