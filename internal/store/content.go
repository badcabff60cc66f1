package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveNode inserts or replaces a node.
func (s *Store) SaveNode(ctx context.Context, n ir.Node) error {
	return saveNode(ctx, s.db, n)
}

func saveNode(ctx context.Context, db execer, n ir.Node) error {
	if ir.IsEmptyID(n.ID) {
		return fmt.Errorf("save node: empty id")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO nodes (id, master_id, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET master_id = excluded.master_id, name = excluded.name
	`, n.ID, n.MasterID, n.Name)
	if err != nil {
		return fmt.Errorf("save node %d: %w", n.ID, err)
	}
	return nil
}

// Node loads a node by id.
func (s *Store) Node(ctx context.Context, id int64) (ir.Node, error) {
	var n ir.Node
	err := s.db.QueryRowContext(ctx, `
		SELECT id, master_id, name FROM nodes WHERE id = ?
	`, id).Scan(&n.ID, &n.MasterID, &n.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Node{}, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Node{}, fmt.Errorf("query node %d: %w", id, err)
	}
	return n, nil
}

// SubChannels returns the direct channels of a node ordered by id.
func (s *Store) SubChannels(ctx context.Context, id int64) ([]ir.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, master_id, name FROM nodes WHERE master_id = ? ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query channels of %d: %w", id, err)
	}
	defer rows.Close()

	nodes := []ir.Node{}
	for rows.Next() {
		var n ir.Node
		if err := rows.Scan(&n.ID, &n.MasterID, &n.Name); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

// SaveChannelSet replaces every variant entry of a channel set.
func (s *Store) SaveChannelSet(ctx context.Context, cs ir.ChannelSet) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return saveChannelSet(ctx, tx, cs)
	})
}

func saveChannelSet(ctx context.Context, db execer, cs ir.ChannelSet) error {
	if ir.IsEmptyID(cs.ID) {
		return fmt.Errorf("save channel set: empty id")
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM channelset_variants WHERE channelset_id = ?`, cs.ID); err != nil {
		return fmt.Errorf("clear channel set %d: %w", cs.ID, err)
	}
	for ch, id := range cs.Variants {
		_, err := db.ExecContext(ctx, `
			INSERT INTO channelset_variants (channelset_id, channel_id, entity_id) VALUES (?, ?, ?)
		`, cs.ID, ch, id)
		if err != nil {
			return fmt.Errorf("save channel set %d entry %d: %w", cs.ID, ch, err)
		}
	}
	return nil
}

// ChannelSet loads a channel set. A set without entries does not exist.
func (s *Store) ChannelSet(ctx context.Context, id int64) (ir.ChannelSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, entity_id FROM channelset_variants
		WHERE channelset_id = ?
		ORDER BY channel_id ASC
	`, id)
	if err != nil {
		return ir.ChannelSet{}, fmt.Errorf("query channel set %d: %w", id, err)
	}
	defer rows.Close()

	cs := ir.ChannelSet{ID: id, Variants: make(map[int64]int64)}
	for rows.Next() {
		var ch, eid int64
		if err := rows.Scan(&ch, &eid); err != nil {
			return ir.ChannelSet{}, fmt.Errorf("scan channel set entry: %w", err)
		}
		cs.Variants[ch] = eid
	}
	if err := rows.Err(); err != nil {
		return ir.ChannelSet{}, fmt.Errorf("iterate channel set: %w", err)
	}
	if len(cs.Variants) == 0 {
		return ir.ChannelSet{}, fmt.Errorf("channel set %d: %w", id, ErrNotFound)
	}
	return cs, nil
}

const entityColumns = `kind, id, global_id, channel_id, folder_id, node_id, channelset_id,
	master_id, contentset_id, content_id, container_kind, container_id, online, attributes`

// SaveEntity inserts or replaces an entity.
func (s *Store) SaveEntity(ctx context.Context, e *ir.Entity) error {
	return saveEntity(ctx, s.db, e)
}

func saveEntity(ctx context.Context, db execer, e *ir.Entity) error {
	if e == nil || e.Ref.Empty() {
		return fmt.Errorf("save entity: empty id")
	}
	attrs, err := marshalAttributes(e.Attributes)
	if err != nil {
		return fmt.Errorf("save entity %s: %w", e.Ref, err)
	}
	var containerKind string
	var containerID int64
	if e.Container != nil {
		containerKind, containerID = string(e.Container.Kind), e.Container.ID
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO entities (`+entityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(e.Ref.Kind),
		e.Ref.ID,
		e.Ref.GlobalID,
		e.Ref.ChannelID,
		e.FolderID,
		e.NodeID,
		e.ChannelSetID,
		e.MasterID,
		e.ContentSetID,
		e.ContentID,
		containerKind,
		containerID,
		boolToInt(e.Online),
		attrs,
	)
	if err != nil {
		return fmt.Errorf("save entity %s: %w", e.Ref, err)
	}
	return nil
}

// DeleteEntity removes an entity row. Deleting a missing row is a no-op.
func (s *Store) DeleteEntity(ctx context.Context, ref ir.EntityRef) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND id = ?`, string(ref.Kind), ref.ID); err != nil {
		return fmt.Errorf("delete entity %s: %w", ref, err)
	}
	return nil
}

// Entity loads an entity by kind and id.
func (s *Store) Entity(ctx context.Context, kind ir.Kind, id int64) (*ir.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entityColumns+` FROM entities WHERE kind = ? AND id = ?
	`, string(kind), id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s:%d: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s:%d: %w", kind, id, err)
	}
	return e, nil
}

// Children returns the entities of kind whose mother folder is folderID.
func (s *Store) Children(ctx context.Context, folderID int64, kind ir.Kind) ([]*ir.Entity, error) {
	return s.queryEntities(ctx, `
		SELECT `+entityColumns+` FROM entities
		WHERE folder_id = ? AND kind = ?
		ORDER BY id ASC
	`, folderID, string(kind))
}

// SubtreePages returns every page below folderID, at any depth, in
// breadth-first folder order.
func (s *Store) SubtreePages(ctx context.Context, folderID int64) ([]*ir.Entity, error) {
	pages := []*ir.Entity{}
	visited := map[int64]bool{folderID: true}
	queue := []int64{folderID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		ps, err := s.Children(ctx, id, ir.KindPage)
		if err != nil {
			return nil, err
		}
		pages = append(pages, ps...)

		subs, err := s.Children(ctx, id, ir.KindFolder)
		if err != nil {
			return nil, err
		}
		for _, f := range subs {
			if !visited[f.Ref.ID] {
				visited[f.Ref.ID] = true
				queue = append(queue, f.Ref.ID)
			}
		}
	}
	return pages, nil
}

// Siblings returns the language variants (RelationLanguages) or page
// variants (RelationVariants) of a page, excluding the page itself.
func (s *Store) Siblings(ctx context.Context, e *ir.Entity, rel ir.Relation) ([]*ir.Entity, error) {
	if e == nil || e.Ref.Kind != ir.KindPage {
		return []*ir.Entity{}, nil
	}
	var column string
	var groupID int64
	switch rel {
	case ir.RelationLanguages:
		column, groupID = "contentset_id", e.ContentSetID
	case ir.RelationVariants:
		column, groupID = "content_id", e.ContentID
	default:
		return nil, fmt.Errorf("siblings: unsupported relation %q", rel)
	}
	if ir.IsEmptyID(groupID) {
		return []*ir.Entity{}, nil
	}
	return s.queryEntities(ctx, `
		SELECT `+entityColumns+` FROM entities
		WHERE kind = 'page' AND `+column+` = ? AND id != ?
		ORDER BY id ASC
	`, groupID, e.Ref.ID)
}

// Related resolves the entities of kind reached from ref through rel.
// It implements depgraph.Relations; channelID is carried into the returned
// references.
func (s *Store) Related(ctx context.Context, from ir.EntityRef, rel ir.Relation, kind ir.Kind, channelID int64) ([]ir.EntityRef, error) {
	if rel == ir.RelationSelf {
		return []ir.EntityRef{from}, nil
	}
	e, err := s.Entity(ctx, from.Kind, from.ID)
	if err != nil {
		return nil, err
	}

	var related []*ir.Entity
	switch rel {
	case ir.RelationParent:
		if kind != ir.KindFolder || ir.IsEmptyID(e.FolderID) {
			return nil, nil
		}
		parent, err := s.Entity(ctx, ir.KindFolder, e.FolderID)
		if err != nil {
			return nil, err
		}
		related = []*ir.Entity{parent}
	case ir.RelationChildren:
		if from.Kind != ir.KindFolder {
			return nil, nil
		}
		if related, err = s.Children(ctx, from.ID, kind); err != nil {
			return nil, err
		}
	case ir.RelationLanguages, ir.RelationVariants:
		if kind != ir.KindPage {
			return nil, nil
		}
		if related, err = s.Siblings(ctx, e, rel); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("related: unknown relation %q", rel)
	}

	refs := make([]ir.EntityRef, 0, len(related))
	for _, r := range related {
		ref := r.Ref
		if channelID != 0 {
			ref.ChannelID = channelID
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *Store) queryEntities(ctx context.Context, query string, args ...any) ([]*ir.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	entities := []*ir.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*ir.Entity, error) {
	var (
		e             ir.Entity
		kind          string
		containerKind string
		containerID   int64
		online        int
		attrs         string
	)
	err := row.Scan(
		&kind,
		&e.Ref.ID,
		&e.Ref.GlobalID,
		&e.Ref.ChannelID,
		&e.FolderID,
		&e.NodeID,
		&e.ChannelSetID,
		&e.MasterID,
		&e.ContentSetID,
		&e.ContentID,
		&containerKind,
		&containerID,
		&online,
		&attrs,
	)
	if err != nil {
		return nil, err
	}
	e.Ref.Kind = ir.Kind(kind)
	e.Online = online != 0
	if containerKind != "" && !ir.IsEmptyID(containerID) {
		e.Container = &ir.EntityRef{Kind: ir.Kind(containerKind), ID: containerID}
	}
	if e.Attributes, err = unmarshalAttributes(attrs); err != nil {
		return nil, err
	}
	return &e, nil
}
