package channel

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/cascade/internal/ir"
)

// Repository is the persistence collaborator the resolver reads from.
// Implementations return ir.ErrNotFound (possibly wrapped) for missing rows.
type Repository interface {
	Node(ctx context.Context, id int64) (ir.Node, error)
	SubChannels(ctx context.Context, id int64) ([]ir.Node, error)
	ChannelSet(ctx context.Context, id int64) (ir.ChannelSet, error)
	Entity(ctx context.Context, kind ir.Kind, id int64) (*ir.Entity, error)
}

// VisibilityFilter may veto the visibility of an entity in a channel, e.g.
// to hide unpublished pages that were never modified in the channel.
// Returning false makes the entity invisible.
type VisibilityFilter func(channelID int64, e *ir.Entity) bool

// Resolver answers channel identity and visibility questions.
type Resolver struct {
	repo   Repository
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for stale reference warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a resolver over repo.
func NewResolver(repo Repository, opts ...Option) *Resolver {
	r := &Resolver{repo: repo, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Master follows the master chain of e until it reaches a variant without
// a master. An entity outside any channel set is its own master.
//
// A missing master (stale reference) ends the walk at the last variant that
// could be loaded. A data-level loop in the chain resolves to the variant
// with the lowest id on the loop, whichever variant the walk started from.
func (r *Resolver) Master(ctx context.Context, e *ir.Entity) (*ir.Entity, error) {
	if e == nil {
		return nil, fmt.Errorf("master: nil entity")
	}

	current := e
	chain := []*ir.Entity{current}
	seen := mapset.NewThreadUnsafeSet[int64](current.Ref.ID)
	for !current.IsMaster() {
		if seen.Contains(current.MasterID) {
			r.logger.Warn("master chain loops",
				"entity", current.Ref.String(),
				"master_id", current.MasterID,
			)
			return loopMaster(chain, current.MasterID), nil
		}
		next, err := r.repo.Entity(ctx, current.Ref.Kind, current.MasterID)
		if err != nil {
			if errors.Is(err, ir.ErrNotFound) {
				r.logger.Warn("stale master reference",
					"entity", current.Ref.String(),
					"master_id", current.MasterID,
				)
				return current, nil
			}
			return nil, fmt.Errorf("load master of %s: %w", current.Ref, err)
		}
		seen.Add(next.Ref.ID)
		chain = append(chain, next)
		current = next
	}
	return current, nil
}

// loopMaster returns the variant with the lowest id on the loop of chain
// that starts at loopStart.
func loopMaster(chain []*ir.Entity, loopStart int64) *ir.Entity {
	i := slices.IndexFunc(chain, func(v *ir.Entity) bool { return v.Ref.ID == loopStart })
	loop := chain[i:]
	return slices.MinFunc(loop, func(a, b *ir.Entity) int { return cmp.Compare(a.Ref.ID, b.Ref.ID) })
}

// MasterNodes returns the master nodes of a channel, direct master first.
// A node that is not a channel has no master nodes.
func (r *Resolver) MasterNodes(ctx context.Context, channelID int64) ([]ir.Node, error) {
	if ir.IsEmptyID(channelID) {
		return nil, nil
	}
	node, err := r.repo.Node(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("load node %d: %w", channelID, err)
	}

	var masters []ir.Node
	seen := mapset.NewThreadUnsafeSet[int64](node.ID)
	for node.IsChannel() {
		if seen.Contains(node.MasterID) {
			return nil, fmt.Errorf("channel tree loops at node %d", node.MasterID)
		}
		master, err := r.repo.Node(ctx, node.MasterID)
		if err != nil {
			return nil, fmt.Errorf("load master node %d of %d: %w", node.MasterID, node.ID, err)
		}
		seen.Add(master.ID)
		masters = append(masters, master)
		node = master
	}
	return masters, nil
}

// Channels returns the direct sub-channels of a node.
func (r *Resolver) Channels(ctx context.Context, nodeID int64) ([]ir.Node, error) {
	if ir.IsEmptyID(nodeID) {
		return nil, nil
	}
	subs, err := r.repo.SubChannels(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("load channels of %d: %w", nodeID, err)
	}
	return subs, nil
}

// IsChannelOf reports whether channelID is a (transitive) channel of masterID.
func (r *Resolver) IsChannelOf(ctx context.Context, channelID, masterID int64) (bool, error) {
	masters, err := r.MasterNodes(ctx, channelID)
	if err != nil {
		return false, err
	}
	for _, m := range masters {
		if m.ID == masterID {
			return true, nil
		}
	}
	return false, nil
}

// lineage returns channelID followed by its master nodes.
func (r *Resolver) lineage(ctx context.Context, channelID int64) ([]int64, error) {
	masters, err := r.MasterNodes(ctx, channelID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(masters)+1)
	ids = append(ids, channelID)
	for _, m := range masters {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// effectiveID returns the id of the variant of cs visible in channelID: the
// channel's own entry or the entry of its nearest master node.
func (r *Resolver) effectiveID(ctx context.Context, cs ir.ChannelSet, channelID int64) (int64, bool, error) {
	lineage, err := r.lineage(ctx, channelID)
	if err != nil {
		return 0, false, err
	}
	for _, id := range lineage {
		if v, ok := cs.Variant(id); ok {
			return v, true, nil
		}
	}
	return 0, false, nil
}

// Effective returns the variant of e that is visible in channelID. Entities
// outside any channel set are returned unchanged. If no variant is visible
// in the channel the error wraps ir.ErrNotFound.
func (r *Resolver) Effective(ctx context.Context, e *ir.Entity, channelID int64) (*ir.Entity, error) {
	if e == nil {
		return nil, fmt.Errorf("effective: nil entity")
	}
	if !e.Multichannel() || ir.IsEmptyID(channelID) {
		return e, nil
	}

	cs, err := r.repo.ChannelSet(ctx, e.ChannelSetID)
	if err != nil {
		return nil, fmt.Errorf("load channel set %d: %w", e.ChannelSetID, err)
	}
	id, ok, err := r.effectiveID(ctx, cs, channelID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s in channel %d: %w", e.Ref, channelID, ir.ErrNotFound)
	}
	if id == e.Ref.ID {
		return e, nil
	}
	variant, err := r.repo.Entity(ctx, e.Ref.Kind, id)
	if err != nil {
		return nil, fmt.Errorf("load variant %d of %s: %w", id, e.Ref, err)
	}
	return variant, nil
}

// IsVisibleInNode reports whether e is the variant seen in channelID: either
// it is registered for that channel, or it is registered for one of the
// channel's master nodes and no more specific channel overrides it. The
// optional filter may veto visibility.
func (r *Resolver) IsVisibleInNode(ctx context.Context, channelID int64, e *ir.Entity, filter VisibilityFilter) (bool, error) {
	if e == nil {
		return false, nil
	}
	if filter != nil && !filter(channelID, e) {
		return false, nil
	}

	if !e.Multichannel() {
		if ir.IsEmptyID(e.NodeID) || e.NodeID == channelID {
			return true, nil
		}
		return r.IsChannelOf(ctx, channelID, e.NodeID)
	}

	cs, err := r.repo.ChannelSet(ctx, e.ChannelSetID)
	if err != nil {
		if errors.Is(err, ir.ErrNotFound) {
			r.logger.Warn("stale channel set reference",
				"entity", e.Ref.String(),
				"channelset_id", e.ChannelSetID,
			)
			return false, nil
		}
		return false, fmt.Errorf("load channel set %d: %w", e.ChannelSetID, err)
	}
	id, ok, err := r.effectiveID(ctx, cs, channelID)
	if err != nil {
		return false, err
	}
	return ok && id == e.Ref.ID, nil
}

// InheritingChannels returns every channel below the node e lives in that
// sees e by inheritance, in depth-first order. A channel holding its own
// variant hides e from itself and from its whole sub-tree.
func (r *Resolver) InheritingChannels(ctx context.Context, e *ir.Entity) ([]int64, error) {
	if e == nil || !e.Multichannel() || ir.IsEmptyID(e.NodeID) {
		return nil, nil
	}
	cs, err := r.repo.ChannelSet(ctx, e.ChannelSetID)
	if err != nil {
		if errors.Is(err, ir.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load channel set %d: %w", e.ChannelSetID, err)
	}

	var out []int64
	visited := mapset.NewThreadUnsafeSet[int64](e.NodeID)
	var walk func(nodeID int64) error
	walk = func(nodeID int64) error {
		subs, err := r.Channels(ctx, nodeID)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if !visited.Add(sub.ID) {
				continue
			}
			if _, own := cs.Variant(sub.ID); own {
				continue
			}
			out = append(out, sub.ID)
			if err := walk(sub.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(e.NodeID); err != nil {
		return nil, err
	}
	return out, nil
}
