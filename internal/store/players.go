package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// UpsertPlayer records the latest display name seen for a player.
func (s *Store) UpsertPlayer(ctx context.Context, userID uuid.UUID, name string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO players (user_id, last_seen_user_name, last_seen_time)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			last_seen_user_name = EXCLUDED.last_seen_user_name,
			last_seen_time = EXCLUDED.last_seen_time`,
		userID, name,
	)
	if err != nil {
		return fmt.Errorf("upsert player %s: %w", userID, err)
	}
	return nil
}

// PlayerName returns the last seen name of a player, or "" if unknown.
func (s *Store) PlayerName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE((SELECT last_seen_user_name FROM players WHERE user_id = $1), '')`, userID,
	).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("player name %s: %w", userID, err)
	}
	return name, nil
}
