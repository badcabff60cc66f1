package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// MutationKind is the kind of change an entity mutator persists.
type MutationKind string

const (
	MutationCreate      MutationKind = "create"
	MutationUpdate      MutationKind = "update"
	MutationMove        MutationKind = "move"
	MutationDelete      MutationKind = "delete"
	MutationHide        MutationKind = "hide"
	MutationReveal      MutationKind = "reveal"
	MutationPublish     MutationKind = "publish"
	MutationTakeOffline MutationKind = "takeoffline"
)

// ParseMutationKind validates a mutation kind name.
func ParseMutationKind(s string) (MutationKind, error) {
	switch k := MutationKind(s); k {
	case MutationCreate, MutationUpdate, MutationMove, MutationDelete,
		MutationHide, MutationReveal, MutationPublish, MutationTakeOffline:
		return k, nil
	default:
		return "", fmt.Errorf("unknown mutation %q", s)
	}
}

// Mutation is one persisted change of an entity.
type Mutation struct {
	Kind   MutationKind
	Entity *ir.Entity

	// Properties lists the changed properties of an update; empty means
	// the whole object.
	Properties []string

	// FromNode is the node a moved entity left.
	FromNode int64
}

// Apply persists a mutation and triggers its event at depth 0 in the
// transaction's channel. Deleted entities are propagated before their row
// is removed, so folder contents can still be found.
func (e *Engine) Apply(ctx context.Context, tx *Tx, m Mutation) error {
	if tx == nil {
		return errors.New("apply: nil transaction")
	}
	ent := m.Entity
	if ent == nil || ent.Ref.Empty() {
		return errors.New("apply: mutation without entity")
	}
	if ent.ReadOnly {
		return NewReadOnlyError(tx.ID(), ent.Ref.String())
	}

	var (
		mask  ir.EventMask
		props []string
	)
	switch m.Kind {
	case MutationCreate:
		mask = ir.EventCreate
	case MutationUpdate:
		mask = ir.EventUpdate
		props = m.Properties
	case MutationMove:
		mask = ir.EventMove
		props = ir.MoveProperties(m.FromNode)
	case MutationDelete:
		mask = ir.EventDelete
	case MutationHide:
		mask = ir.EventHide
	case MutationReveal:
		mask = ir.EventReveal
	case MutationPublish:
		ent.Online = true
		mask = ir.EventUpdate | ir.EventStatusChange
		props = []string{ir.PropOnline}
	case MutationTakeOffline:
		ent.Online = false
		mask = ir.EventUpdate | ir.EventStatusChange
		props = []string{ir.PropOnline}
	default:
		return fmt.Errorf("apply: unknown mutation %q", m.Kind)
	}

	if m.Kind == MutationDelete {
		trigErr := e.TriggerEvent(ctx, tx, ent.Ref, nil, props, mask, 0, tx.ChannelID())
		if trigErr != nil && !IsInterruptedError(trigErr) {
			return trigErr
		}
		if err := e.repo.DeleteEntity(ctx, ent.Ref); err != nil {
			return fmt.Errorf("delete %s: %w", ent.Ref, err)
		}
		if err := tx.RemoveDependencies(ctx, ent.Ref); err != nil {
			return err
		}
		return trigErr
	}

	if err := e.repo.SaveEntity(ctx, ent); err != nil {
		return fmt.Errorf("save %s: %w", ent.Ref, err)
	}
	return e.TriggerEvent(ctx, tx, ent.Ref, nil, props, mask, 0, tx.ChannelID())
}
