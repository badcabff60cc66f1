package engine

import (
	"context"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// kindEffects dispatches the side effects specific to the entity kind.
func (e *Engine) kindEffects(ctx context.Context, sc *scope, ev ir.Event, ent *ir.Entity) error {
	switch ev.Source.Kind {
	case ir.KindFolder:
		if ev.Mask.Has(ir.EventDelete) {
			return e.deleteFolder(ctx, sc, ev, ent)
		}
		if ev.Mask.Has(ir.EventMove) {
			return e.moveFolder(ctx, sc, ev, ent)
		}
		return nil
	case ir.KindPage:
		if statusChanged(ev) {
			return e.pageStatusChanged(ctx, sc, ev, ent)
		}
		return nil
	case ir.KindTag:
		return e.tagChanged(ctx, sc, ev, ent)
	case ir.KindFile, ir.KindImage, ir.KindGeneric:
		return nil
	default:
		return nil
	}
}

// deleteFolder removes the direct pages, files and images of a deleted
// folder and delivers a Delete to them and to every sub-folder. The
// interrupt flag is checked between children.
func (e *Engine) deleteFolder(ctx context.Context, sc *scope, ev ir.Event, ent *ir.Entity) error {
	tx := sc.tx
	for _, kind := range []ir.Kind{ir.KindPage, ir.KindFile, ir.KindImage, ir.KindFolder} {
		children, err := e.repo.Children(ctx, ent.Ref.ID, kind)
		if err != nil {
			return fmt.Errorf("load %s children of %s: %w", kind, ev.Source, err)
		}
		for _, c := range children {
			if tx.Interrupted() {
				return nil
			}
			tx.dirty(c.Ref, ir.ActionRemove, ev.ChannelID)
			if err := e.propagate(ctx, sc, ev.Next(c.Ref, nil, ir.EventDelete)); err != nil {
				return err
			}
		}
	}
	return nil
}

// moveFolder delivers an Update of "url" to every page below a moved folder.
func (e *Engine) moveFolder(ctx context.Context, sc *scope, ev ir.Event, ent *ir.Entity) error {
	pages, err := e.repo.SubtreePages(ctx, ent.Ref.ID)
	if err != nil {
		return fmt.Errorf("load pages below %s: %w", ev.Source, err)
	}
	for _, p := range pages {
		if sc.tx.Interrupted() {
			return nil
		}
		if err := e.propagate(ctx, sc, ev.Next(p.Ref, []string{ir.PropURL}, ir.EventUpdate)); err != nil {
			return err
		}
	}
	return nil
}

// pageStatusChanged refreshes the language set of the page's language
// variants and the variant list of its page variants.
func (e *Engine) pageStatusChanged(ctx context.Context, sc *scope, ev ir.Event, ent *ir.Entity) error {
	cascades := []struct {
		rel  ir.Relation
		prop string
	}{
		{ir.RelationLanguages, ir.PropLanguageSet},
		{ir.RelationVariants, ir.PropPageVariants},
	}
	for _, c := range cascades {
		siblings, err := e.repo.Siblings(ctx, ent, c.rel)
		if err != nil {
			return fmt.Errorf("load %s of %s: %w", c.rel, ev.Source, err)
		}
		for _, s := range siblings {
			if err := e.propagate(ctx, sc, ev.Next(s.Ref, []string{c.prop}, ir.EventUpdate)); err != nil {
				return err
			}
		}
	}
	return nil
}

// tagChanged marks the tag's container modified and tells it its tags
// changed. The Child bit keeps the container from echoing back.
func (e *Engine) tagChanged(ctx context.Context, sc *scope, ev ir.Event, ent *ir.Entity) error {
	if ent.Container == nil || ent.Container.Empty() {
		return nil
	}
	container := *ent.Container
	sc.tx.dirty(container, ir.ActionModify, ev.ChannelID)
	return e.propagate(ctx, sc, ev.Next(container, []string{ir.PropTags}, ir.EventUpdate|ir.EventChild))
}
