package channel

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/cascade/internal/ir"
)

// Emitter delivers a follow-on event produced by the resolver.
type Emitter func(ctx context.Context, ev ir.Event) error

// HandleCreateObjectInChannel handles the creation of a localized copy of a
// kind object in channelID. Every variant the channel previously inherited
// from a master node is gone from the channel and from each sub-channel that
// has no copy of its own, so a Delete event is emitted for each inherited
// variant in each of those channels, at depth+1. Sub-channels with their own
// copy, and everything below them, are left alone; sibling channels are
// never visited.
//
// Returns the channels the inherited variants disappeared from, starting
// with channelID itself.
func (r *Resolver) HandleCreateObjectInChannel(
	ctx context.Context,
	kind ir.Kind,
	channelID int64,
	cs ir.ChannelSet,
	depth int,
	emit Emitter,
) ([]int64, error) {
	own, _ := cs.Variant(channelID)

	masters, err := r.MasterNodes(ctx, channelID)
	if err != nil {
		return nil, err
	}

	var inherited []int64
	for _, m := range masters {
		id, ok := cs.Variant(m.ID)
		if !ok || id == own {
			continue
		}
		if !containsID(inherited, id) {
			inherited = append(inherited, id)
		}
	}

	affected := []int64{channelID}
	if len(inherited) == 0 {
		return affected, nil
	}

	deleteIn := func(ch int64) error {
		for _, id := range inherited {
			ev := ir.Event{
				Source:    ir.EntityRef{Kind: kind, ID: id, ChannelID: ch},
				Mask:      ir.EventDelete,
				Depth:     depth + 1,
				ChannelID: ch,
			}
			if err := emit(ctx, ev); err != nil {
				return fmt.Errorf("delete inherited %s:%d in channel %d: %w", kind, id, ch, err)
			}
		}
		return nil
	}

	if err := deleteIn(channelID); err != nil {
		return affected, err
	}

	visited := mapset.NewThreadUnsafeSet[int64](channelID)
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
			if _, has := cs.Variant(sub.ID); has {
				continue
			}
			affected = append(affected, sub.ID)
			if err := deleteIn(sub.ID); err != nil {
				return err
			}
			if err := walk(sub.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(channelID); err != nil {
		return affected, err
	}
	return affected, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
