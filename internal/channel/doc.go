// Package channel resolves object identity across the multichannel tree.
//
// A content node may have channels; channels may have channels of their own.
// Every multichannel object belongs to a channel set that maps channel ids to
// the variant stored in that channel. A channel without an entry inherits the
// variant of its nearest master channel that has one.
//
// The resolver answers three kinds of questions:
//   - identity: which variant is the master, which variant is effective in a
//     given channel (Master, Effective)
//   - ancestry: which nodes a channel inherits from, which channels sit below
//     it (MasterNodes, Channels, IsChannelOf, InheritingChannels)
//   - visibility changes: when a localized copy is created, which inherited
//     variants disappear from which channels (HandleCreateObjectInChannel)
//
// The resolver never mutates channel sets; it is a read-only consumer of the
// Repository.
package channel
