package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/followspot/followspot/follows"
)

// SnapshotStore persists the reconciled channel list. Save replaces the whole
// snapshot inside one transaction so readers never observe a partial write.
type SnapshotStore struct {
	DB *sql.DB
}

// Load returns the persisted snapshot in its saved order.
func (s *SnapshotStore) Load(ctx context.Context) ([]follows.Channel, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT channel_id, name, login, icon_url, followed_at, is_live,
		       title, viewer_count, game_title, game_image_url
		FROM follow_snapshot ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	var out []follows.Channel
	for rows.Next() {
		var ch follows.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Login, &ch.IconURL, &ch.FollowedAt,
			&ch.IsLive, &ch.Title, &ch.ViewerCount, &ch.GameTitle, &ch.GameImageURL); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Save replaces the snapshot with the given channels, preserving their order.
func (s *SnapshotStore) Save(ctx context.Context, channels []follows.Channel) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM follow_snapshot`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	for i, ch := range channels {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO follow_snapshot
				(position, channel_id, name, login, icon_url, followed_at,
				 is_live, title, viewer_count, game_title, game_image_url, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())`,
			i, ch.ID, ch.Name, ch.Login, ch.IconURL, ch.FollowedAt,
			ch.IsLive, ch.Title, ch.ViewerCount, ch.GameTitle, ch.GameImageURL); err != nil {
			return fmt.Errorf("insert snapshot row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
