package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/cascade/internal/ir"
)

// propagate handles one event: guard checks, then the three phases.
//
//  1. Dirt events only mark the entity and stop.
//  2. Side effects: publish actions, kind handlers, channel handling.
//  3. Dependency fan-out: every dependent gets a Dirt event at depth+1.
func (e *Engine) propagate(ctx context.Context, sc *scope, ev ir.Event) error {
	tx := sc.tx
	if tx.Interrupted() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.limiter.Check(tx.ID(), ev.Source.String(), ev.Depth); err != nil {
		tx.stats.DroppedDepth++
		e.logger.Warn("event dropped",
			"tx", tx.ID(),
			"error", err,
			"path", sc.pathString(),
		)
		return nil
	}
	if !sc.cycles.Enter(ev) {
		tx.stats.SkippedCycles++
		e.logger.Debug("event skipped",
			"error", NewCycleError(tx.ID(), ev.Source.String()),
			"mask", ev.Mask.String(),
			"channel", ev.ChannelID,
		)
		return nil
	}
	defer sc.cycles.Leave(ev)

	tx.stats.Events++
	tx.trace = append(tx.trace, TraceEntry{Seq: e.clock.Next(), Event: ev})
	e.logger.Debug("event",
		"tx", tx.ID(),
		"entity", ev.Source.String(),
		"mask", ev.Mask.String(),
		"props", ev.Properties,
		"depth", ev.Depth,
		"channel", ev.ChannelID,
	)
	sc = sc.push(ev.Source)

	// Phase 1.
	if ev.Mask.Has(ir.EventDirt) {
		tx.dirty(ev.Source, ir.ActionDependency, ev.ChannelID, ev.Properties...)
		return nil
	}

	ent, err := e.repo.Entity(ctx, ev.Source.Kind, ev.Source.ID)
	if err != nil {
		if !errors.Is(err, ir.ErrNotFound) {
			return fmt.Errorf("load %s: %w", ev.Source, err)
		}
		if !ev.Mask.HasAny(ir.EventDelete | ir.EventHide) {
			tx.stats.SkippedStale++
			e.logger.Warn("stale event source",
				"error", NewStaleError(tx.ID(), ev.Source.String(), err),
				"path", sc.pathString(),
			)
			return nil
		}
		// Already gone: remove it and notify its dependents.
		ent = nil
	}

	// Phase 2.
	if err := e.sideEffects(ctx, sc, ev, ent); err != nil {
		return err
	}
	if ev.Mask.Has(ir.EventChild) || tx.Interrupted() {
		return nil
	}
	if ent != nil {
		if err := e.channelEffects(ctx, sc, ev, ent); err != nil {
			return err
		}
		if err := e.refreshParentList(ctx, sc, ev, ent); err != nil {
			return err
		}
		if err := e.fanOutChannels(ctx, sc, ev, ent); err != nil {
			return err
		}
	}

	// Phase 3.
	return e.fanOutDependencies(ctx, sc, ev)
}

// sideEffects runs the publish-level effects of an event. They run even for
// Child events.
func (e *Engine) sideEffects(ctx context.Context, sc *scope, ev ir.Event, ent *ir.Entity) error {
	tx := sc.tx
	kind := ev.Source.Kind
	changed := changedProperties(ev)

	moved := false
	if from, ok := ev.MovedFromNode(); ok && ent != nil && !sc.fanout && from != ent.NodeID {
		if err := e.moveBetweenNodes(ctx, sc, ev, ent, from); err != nil {
			return err
		}
		moved = true
	}

	if ev.Depth == 0 && !moved && (len(changed) == 0 || statusChanged(ev)) {
		if action, ok := publishAction(ev, ent); ok {
			tx.dirty(ev.Source, action, ev.ChannelID)
		}
	}

	if ev.Depth == 0 && kind.Binary() && ir.ContainsProperty(changed, ir.PropBinaryContent) {
		tx.dirty(ev.Source, ir.ActionModify, ev.ChannelID, ir.PropBinaryContent)
	}

	if ent == nil {
		return nil
	}
	return e.kindEffects(ctx, sc, ev, ent)
}

// publishAction maps a depth-0 event onto the action the publish pipeline
// must take for the entity itself.
func publishAction(ev ir.Event, ent *ir.Entity) (ir.Action, bool) {
	kind := ev.Source.Kind
	if !kind.Publishable() {
		return 0, false
	}
	m := ev.Mask
	switch {
	case m.HasAny(ir.EventDelete | ir.EventHide):
		return ir.ActionRemove, true
	case m.Has(ir.EventMove):
		return ir.ActionMove, true
	case m.HasAny(ir.EventCreate | ir.EventReveal | ir.EventUpdate | ir.EventStatusChange):
		if kind == ir.KindPage && ent != nil && !ent.Online {
			if statusChanged(ev) {
				return ir.ActionRemove, true
			}
			return 0, false
		}
		return ir.ActionModify, true
	}
	return 0, false
}

// moveBetweenNodes removes the entity from the node it left and moves it in
// the node it arrived in. A folder takes its direct pages, files and images
// with it. If the node it left no longer exists there is nothing to remove.
func (e *Engine) moveBetweenNodes(ctx context.Context, sc *scope, ev ir.Event, ent *ir.Entity, from int64) error {
	tx := sc.tx
	fromExists := true
	if _, err := e.repo.Node(ctx, from); err != nil {
		if !errors.Is(err, ir.ErrNotFound) {
			return fmt.Errorf("load node %d: %w", from, err)
		}
		tx.stats.SkippedStale++
		e.logger.Warn("stale move source node",
			"error", NewStaleError(tx.ID(), ev.Source.String(), err),
			"node_id", from,
		)
		fromExists = false
	}

	if fromExists {
		tx.dirty(ev.Source, ir.ActionRemove, from)
	}
	tx.dirty(ev.Source, ir.ActionMove, ent.NodeID)

	if ev.Source.Kind != ir.KindFolder {
		return nil
	}
	for _, kind := range []ir.Kind{ir.KindPage, ir.KindFile, ir.KindImage} {
		children, err := e.repo.Children(ctx, ent.Ref.ID, kind)
		if err != nil {
			return fmt.Errorf("load %s children of %s: %w", kind, ev.Source, err)
		}
		for _, c := range children {
			if fromExists {
				tx.dirty(c.Ref, ir.ActionRemove, from)
			}
			tx.dirty(c.Ref, ir.ActionMove, ent.NodeID)
		}
	}
	return nil
}

// channelEffects handles the creation of a localized copy: the variants the
// channel used to inherit disappear from it and from every sub-channel
// that inherited through it.
func (e *Engine) channelEffects(ctx context.Context, sc *scope, ev ir.Event, ent *ir.Entity) error {
	if sc.fanout || !e.multichannel {
		return nil
	}
	if !ev.Mask.HasAny(ir.EventCreate|ir.EventReveal) || !ev.Source.Kind.Hierarchical() || !ent.Multichannel() {
		return nil
	}

	tx := sc.tx
	cs, err := e.repo.ChannelSet(ctx, ent.ChannelSetID)
	if err != nil {
		if errors.Is(err, ir.ErrNotFound) {
			tx.stats.SkippedStale++
			e.logger.Warn("stale channel set",
				"error", NewStaleError(tx.ID(), ev.Source.String(), err),
				"channelset_id", ent.ChannelSetID,
			)
			return nil
		}
		return fmt.Errorf("load channel set of %s: %w", ev.Source, err)
	}

	ch, ok := variantChannel(cs, ent)
	if !ok {
		return nil
	}

	emit := func(ctx context.Context, del ir.Event) error {
		tx.dirty(del.Source, ir.ActionRemove, del.ChannelID)
		return e.propagate(ctx, sc, del)
	}
	affected, err := e.resolver.HandleCreateObjectInChannel(ctx, ev.Source.Kind, ch, cs, ev.Depth, emit)
	if err != nil {
		return fmt.Errorf("create %s in channel %d: %w", ev.Source, ch, err)
	}

	prop := ev.Source.Kind.ChildListProperty()
	if ir.IsEmptyID(ent.FolderID) || prop == "" {
		return nil
	}
	parent := ir.Ref(ir.KindFolder, ent.FolderID)
	for _, a := range affected {
		up := ev.Next(parent, []string{prop}, ir.EventUpdate).InChannel(a)
		if err := e.propagate(ctx, sc, up); err != nil {
			return err
		}
	}
	return nil
}

// variantChannel returns the channel ent is registered for in cs,
// preferring the node it is stored in.
func variantChannel(cs ir.ChannelSet, ent *ir.Entity) (int64, bool) {
	if id, ok := cs.Variant(ent.NodeID); ok && id == ent.Ref.ID {
		return ent.NodeID, true
	}
	channels := make([]int64, 0, len(cs.Variants))
	for ch, id := range cs.Variants {
		if id == ent.Ref.ID {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return 0, false
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels[0], true
}

// refreshParentList delivers an Update of the child list property to the
// parent folder when a hierarchical entity appears, disappears or moves.
// Hide and Reveal change what the list shows, so they refresh it too.
func (e *Engine) refreshParentList(ctx context.Context, sc *scope, ev ir.Event, ent *ir.Entity) error {
	prop := ev.Source.Kind.ChildListProperty()
	if prop == "" || ir.IsEmptyID(ent.FolderID) {
		return nil
	}
	if !ev.Mask.HasAny(ir.EventCreate | ir.EventDelete | ir.EventMove | ir.EventHide | ir.EventReveal) {
		return nil
	}
	parent := ir.Ref(ir.KindFolder, ent.FolderID)
	return e.propagate(ctx, sc, ev.Next(parent, []string{prop}, ir.EventUpdate))
}

// fanOutChannels re-dispatches an event on a multichannel entity to every
// channel that sees the entity by inheritance. Only events raised in the
// entity's own node (or outside any channel) fan out.
func (e *Engine) fanOutChannels(ctx context.Context, sc *scope, ev ir.Event, ent *ir.Entity) error {
	if sc.fanout || !e.multichannel || !ent.Multichannel() {
		return nil
	}
	if ev.ChannelID != 0 && ev.ChannelID != ent.NodeID {
		return nil
	}

	channels, err := e.resolver.InheritingChannels(ctx, ent)
	if err != nil {
		return fmt.Errorf("inheriting channels of %s: %w", ev.Source, err)
	}
	fsc := sc.inChannelFanout()
	for _, ch := range channels {
		if sc.tx.Interrupted() {
			return nil
		}
		if err := e.propagate(ctx, fsc, ev.InChannel(ch)); err != nil {
			return err
		}
	}
	return nil
}

// fanOutDependencies delivers a Dirt event to every dependent of the
// changed properties.
func (e *Engine) fanOutDependencies(ctx context.Context, sc *scope, ev ir.Event) error {
	deps, err := e.graph.AllDependencies(ctx, ev.DependencyObject(), changedProperties(ev), ev.Mask.Corrected(), ev.ChannelID)
	if err != nil {
		return fmt.Errorf("dependencies of %s: %w", ev.DependencyObject(), err)
	}

	for _, d := range deps {
		if sc.tx.Interrupted() {
			return nil
		}
		target, ok := e.resolveDependent(ctx, sc, d.Dependent, ev.ChannelID)
		if !ok {
			continue
		}
		var props []string
		if d.Target.Property != "" {
			props = []string{d.Target.Property}
		}
		if err := e.propagate(ctx, sc, ev.Next(target, props, ir.EventDirt)); err != nil {
			return err
		}
	}
	return nil
}

// resolveDependent loads a dependent and returns the variant visible in
// channelID. Failures are logged and the dependent is skipped.
func (e *Engine) resolveDependent(ctx context.Context, sc *scope, ref ir.EntityRef, channelID int64) (ir.EntityRef, bool) {
	tx := sc.tx
	dep, err := e.repo.Entity(ctx, ref.Kind, ref.ID)
	if err != nil {
		tx.stats.SkippedStale++
		e.logger.Warn("dependent skipped",
			"error", NewStaleError(tx.ID(), ref.String(), err),
			"path", sc.pathString(),
		)
		return ir.EntityRef{}, false
	}

	eff, err := e.resolver.Effective(ctx, dep, channelID)
	if err != nil {
		if errors.Is(err, ir.ErrNotFound) {
			e.logger.Debug("dependent not visible in channel",
				"entity", ref.String(),
				"channel", channelID,
			)
			return ir.EntityRef{}, false
		}
		tx.stats.SkippedStale++
		e.logger.Warn("dependent skipped",
			"entity", ref.String(),
			"channel", channelID,
			"error", err,
		)
		return ir.EntityRef{}, false
	}
	return eff.Ref, true
}

// changedProperties returns the event's properties without the move payload.
func changedProperties(ev ir.Event) []string {
	if _, ok := ev.MovedFromNode(); ok {
		return slices.Clone(ev.Properties[1:])
	}
	return ev.Properties
}

// statusChanged reports whether the event carries a page status change.
func statusChanged(ev ir.Event) bool {
	return ev.Mask.Has(ir.EventStatusChange) ||
		ir.ContainsProperty(ev.Properties, ir.PropOnline) ||
		ir.ContainsProperty(ev.Properties, ir.PropPageStatus)
}
