package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// WriteDirtyMarks merges marks into the publish queue in one transaction.
// A mark for an occupied (kind, id, channel) slot keeps the more severe
// action, unites the property lists and keeps the slot's sequence number.
// It implements dirtyq.Sink.
func (s *Store) WriteDirtyMarks(ctx context.Context, marks []ir.DirtyMark) error {
	if len(marks) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var seq int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM dirty_marks`).Scan(&seq); err != nil {
			return fmt.Errorf("read queue seq: %w", err)
		}

		for _, m := range marks {
			existing, err := readMark(ctx, tx, m.Key())
			switch {
			case errors.Is(err, ErrNotFound):
				seq++
				m.Seq = seq
			case err != nil:
				return err
			default:
				m = existing.Merge(m)
				m.Seq = existing.Seq
			}

			props, err := marshalProperties(m.Properties)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO dirty_marks (kind, id, channel_id, action, properties, seq)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(kind, id, channel_id) DO UPDATE SET
					action = MAX(dirty_marks.action, excluded.action),
					properties = excluded.properties
			`, string(m.Kind), m.ID, m.ChannelID, int(m.Action), props, m.Seq)
			if err != nil {
				return fmt.Errorf("write mark %s: %w", m, err)
			}
		}
		return nil
	})
}

func readMark(ctx context.Context, tx *sql.Tx, key ir.MarkKey) (ir.DirtyMark, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT kind, id, channel_id, action, properties, seq FROM dirty_marks
		WHERE kind = ? AND id = ? AND channel_id = ?
	`, string(key.Kind), key.ID, key.ChannelID)
	m, err := scanMark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.DirtyMark{}, ErrNotFound
	}
	if err != nil {
		return ir.DirtyMark{}, fmt.Errorf("read mark: %w", err)
	}
	return m, nil
}

// DirtyMarks returns the publish queue in first-arrival order.
func (s *Store) DirtyMarks(ctx context.Context) ([]ir.DirtyMark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, channel_id, action, properties, seq FROM dirty_marks
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dirty marks: %w", err)
	}
	defer rows.Close()

	marks := []ir.DirtyMark{}
	for rows.Next() {
		m, err := scanMark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dirty mark: %w", err)
		}
		marks = append(marks, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dirty marks: %w", err)
	}
	return marks, nil
}

// ClearDirtyMarks empties the publish queue and returns how many marks were
// removed.
func (s *Store) ClearDirtyMarks(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dirty_marks`)
	if err != nil {
		return 0, fmt.Errorf("clear dirty marks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear dirty marks: rows affected: %w", err)
	}
	return n, nil
}

func scanMark(row scanner) (ir.DirtyMark, error) {
	var (
		m      ir.DirtyMark
		kind   string
		action int
		props  string
	)
	if err := row.Scan(&kind, &m.ID, &m.ChannelID, &action, &props, &m.Seq); err != nil {
		return ir.DirtyMark{}, err
	}
	m.Kind = ir.Kind(kind)
	m.Action = ir.Action(action)
	p, err := unmarshalProperties(props)
	if err != nil {
		return ir.DirtyMark{}, err
	}
	m.Properties = p
	return m, nil
}

// WriteTransaction records a committed propagation transaction. Writing the
// same id twice is a no-op.
func (s *Store) WriteTransaction(ctx context.Context, rec ir.TxRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, channel_id, user_id, interrupted, events, marks, dropped_depth, skipped_cycles, skipped_stale, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM transactions))
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.ChannelID,
		rec.UserID,
		boolToInt(rec.Interrupted),
		rec.Stats.Events,
		rec.Stats.Marks,
		rec.Stats.DroppedDepth,
		rec.Stats.SkippedCycles,
		rec.Stats.SkippedStale,
	)
	if err != nil {
		return fmt.Errorf("write transaction %s: %w", rec.ID, err)
	}
	return nil
}

// Transactions returns the committed transactions, oldest first.
func (s *Store) Transactions(ctx context.Context) ([]ir.TxRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, user_id, interrupted, events, marks, dropped_depth, skipped_cycles, skipped_stale
		FROM transactions
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	recs := []ir.TxRecord{}
	for rows.Next() {
		var r ir.TxRecord
		var interrupted int
		err := rows.Scan(&r.ID, &r.ChannelID, &r.UserID, &interrupted,
			&r.Stats.Events, &r.Stats.Marks, &r.Stats.DroppedDepth, &r.Stats.SkippedCycles, &r.Stats.SkippedStale)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		r.Interrupted = interrupted != 0
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return recs, nil
}
