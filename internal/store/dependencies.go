package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

const dependencyColumns = `id, root_kind, root_id, source_kind, source_id, source_property,
	dependent_kind, dependent_id, dependent_property, mask, channel_id`

// ReplaceDependencies replaces every dynamic dependency recorded for root
// with rows, atomically. Rows without an id get their content-addressed id.
func (s *Store) ReplaceDependencies(ctx context.Context, root ir.EntityRef, rows []ir.DependencyRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := removeDependencies(ctx, tx, root); err != nil {
			return err
		}
		for _, row := range rows {
			if err := insertDependency(ctx, tx, root, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveDependencies deletes every dynamic dependency recorded for root.
func (s *Store) RemoveDependencies(ctx context.Context, root ir.EntityRef) error {
	return removeDependencies(ctx, s.db, root)
}

func removeDependencies(ctx context.Context, db execer, root ir.EntityRef) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM dependencies WHERE root_kind = ? AND root_id = ?
	`, string(root.Kind), root.ID)
	if err != nil {
		return fmt.Errorf("remove dependencies of %s: %w", root, err)
	}
	return nil
}

func insertDependency(ctx context.Context, db execer, root ir.EntityRef, row ir.DependencyRow) error {
	row.Root = root
	if row.ID == "" {
		id, err := ir.DependencyRowID(row)
		if err != nil {
			return fmt.Errorf("dependency id: %w", err)
		}
		row.ID = id
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO dependencies (`+dependencyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		row.ID,
		string(root.Kind),
		root.ID,
		string(row.Source.Kind),
		row.Source.ID,
		row.SourceProperty,
		string(row.Dependent.Kind),
		row.Dependent.ID,
		row.DependentProperty,
		int64(row.Mask),
		row.ChannelID,
	)
	if err != nil {
		return fmt.Errorf("insert dependency %s: %w", row.ID, err)
	}
	return nil
}

// DependencyRows returns the rows whose source is the given entity and whose
// channel is 0 or channelID, in insertion order.
func (s *Store) DependencyRows(ctx context.Context, source ir.EntityRef, channelID int64) ([]ir.DependencyRow, error) {
	return s.queryDependencies(ctx, `
		SELECT `+dependencyColumns+` FROM dependencies
		WHERE source_kind = ? AND source_id = ? AND (channel_id = 0 OR channel_id = ?)
		ORDER BY rowid ASC
	`, string(source.Kind), source.ID, channelID)
}

// Dependencies returns every row recorded for root, in insertion order.
func (s *Store) Dependencies(ctx context.Context, root ir.EntityRef) ([]ir.DependencyRow, error) {
	return s.queryDependencies(ctx, `
		SELECT `+dependencyColumns+` FROM dependencies
		WHERE root_kind = ? AND root_id = ?
		ORDER BY rowid ASC
	`, string(root.Kind), root.ID)
}

func (s *Store) queryDependencies(ctx context.Context, query string, args ...any) ([]ir.DependencyRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	deps := []ir.DependencyRow{}
	for rows.Next() {
		var (
			d                                   ir.DependencyRow
			rootKind, sourceKind, dependentKind string
			mask                                int64
		)
		err := rows.Scan(
			&d.ID,
			&rootKind, &d.Root.ID,
			&sourceKind, &d.Source.ID, &d.SourceProperty,
			&dependentKind, &d.Dependent.ID, &d.DependentProperty,
			&mask,
			&d.ChannelID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		d.Root.Kind = ir.Kind(rootKind)
		d.Source.Kind = ir.Kind(sourceKind)
		d.Dependent.Kind = ir.Kind(dependentKind)
		d.Mask = ir.EventMask(mask)
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependencies: %w", err)
	}
	return deps, nil
}
