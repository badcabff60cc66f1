package ir

import "fmt"

// IsEmptyID reports whether id denotes "not yet persisted" or "no relation".
func IsEmptyID(id int64) bool {
	return id <= 0
}

// EntityRef identifies one concrete entity variant.
//
// ChannelID is the channel the variant belongs to; 0 means the entity is not
// part of any channel set.
type EntityRef struct {
	Kind      Kind   `json:"kind" yaml:"kind"`
	ID        int64  `json:"id" yaml:"id"`
	GlobalID  string `json:"global_id,omitempty" yaml:"global_id,omitempty"`
	ChannelID int64  `json:"channel_id,omitempty" yaml:"channel_id,omitempty"`
}

// Ref is a shorthand constructor for an EntityRef without channel or global id.
func Ref(kind Kind, id int64) EntityRef {
	return EntityRef{Kind: kind, ID: id}
}

// Empty reports whether the reference points at nothing.
func (r EntityRef) Empty() bool {
	return IsEmptyID(r.ID)
}

// Key returns the identity of the reference without channel and global id.
func (r EntityRef) Key() EntityKey {
	return EntityKey{Kind: r.Kind, ID: r.ID}
}

func (r EntityRef) String() string {
	if r.ChannelID != 0 {
		return fmt.Sprintf("%s:%d@%d", r.Kind, r.ID, r.ChannelID)
	}
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// EntityKey is the comparable (kind, id) identity of an entity.
type EntityKey struct {
	Kind Kind
	ID   int64
}

func (k EntityKey) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}

// Entity is the engine's view of a content object. It carries only the
// relations the propagation engine needs; everything else lives in
// Attributes.
type Entity struct {
	Ref EntityRef `json:"ref" yaml:"ref"`

	// FolderID is the mother folder (for folders: the parent folder).
	FolderID int64 `json:"folder_id,omitempty" yaml:"folder_id,omitempty"`

	// NodeID is the content node (or channel) the object is stored in.
	NodeID int64 `json:"node_id,omitempty" yaml:"node_id,omitempty"`

	// ChannelSetID groups all channel variants of the same master object.
	ChannelSetID int64 `json:"channelset_id,omitempty" yaml:"channelset_id,omitempty"`

	// MasterID is the variant this one localises; empty for masters.
	MasterID int64 `json:"master_id,omitempty" yaml:"master_id,omitempty"`

	// ContentSetID groups language variants of a page.
	ContentSetID int64 `json:"contentset_id,omitempty" yaml:"contentset_id,omitempty"`

	// ContentID groups page variants sharing the same content.
	ContentID int64 `json:"content_id,omitempty" yaml:"content_id,omitempty"`

	// Container is the owner of a tag.
	Container *EntityRef `json:"container,omitempty" yaml:"container,omitempty"`

	Online     bool              `json:"online,omitempty" yaml:"online,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	// ReadOnly is set on entities fetched in non-editable mode.
	ReadOnly bool `json:"-" yaml:"-"`
}

// IsMaster reports whether the entity has no further master variant.
func (e *Entity) IsMaster() bool {
	return IsEmptyID(e.MasterID)
}

// Multichannel reports whether the entity is part of a channel set.
func (e *Entity) Multichannel() bool {
	return !IsEmptyID(e.ChannelSetID)
}

// Attr returns an attribute value, or "" when unset.
func (e *Entity) Attr(name string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[name]
}

// ChannelSet maps channel id to the id of the variant stored in that channel.
// There is at most one entry per channel; a missing entry means the channel
// inherits the variant of its nearest master channel.
type ChannelSet struct {
	ID       int64           `json:"id" yaml:"id"`
	Variants map[int64]int64 `json:"variants" yaml:"variants"`
}

// Variant returns the entity id stored for the channel.
func (cs ChannelSet) Variant(channelID int64) (int64, bool) {
	id, ok := cs.Variants[channelID]
	return id, ok && !IsEmptyID(id)
}

// Node is a content node or a channel. Channels have a master node; the
// channel tree is rooted at nodes without one.
type Node struct {
	ID       int64  `json:"id" yaml:"id"`
	MasterID int64  `json:"master_id,omitempty" yaml:"master_id,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
}

// IsChannel reports whether the node is a channel of some master node.
func (n Node) IsChannel() bool {
	return !IsEmptyID(n.MasterID)
}
