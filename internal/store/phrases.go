package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/polly/internal/moderation"
	"github.com/nidhogg/polly/internal/parrot"
)

// ErrPhraseNotFound is returned when a phrase id does not exist.
var ErrPhraseNotFound = errors.New("phrase not found")

// InsertPhrase appends a learned phrase to the durable log.
func (s *Store) InsertPhrase(ctx context.Context, text string, source uuid.UUID, round int) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO parrot_messages (message_text, source_player, round)
		VALUES ($1, $2, $3)`,
		text, source, round,
	)
	if err != nil {
		return fmt.Errorf("insert phrase: %w", err)
	}
	return nil
}

// QueryPhrases returns up to limit phrases in random order.
func (s *Store) QueryPhrases(ctx context.Context, limit int, excludeBlocked bool) ([]parrot.PhraseRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT parrot_messages_id, message_text, source_player, round, block, created_at
		FROM parrot_messages
		WHERE NOT ($2 AND block)
		ORDER BY random()
		LIMIT $1`, limit, excludeBlocked)
	if err != nil {
		return nil, fmt.Errorf("query phrases: %w", err)
	}
	defer rows.Close()

	var out []parrot.PhraseRecord
	for rows.Next() {
		var r parrot.PhraseRecord
		if err := rows.Scan(&r.ID, &r.Text, &r.Source, &r.Round, &r.Blocked, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan phrase: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query phrases: %w", err)
	}
	return out, nil
}

// SetBlocked flips the moderator block flag of a phrase.
func (s *Store) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE parrot_messages SET block = $2 WHERE parrot_messages_id = $1`, id, blocked)
	if err != nil {
		return fmt.Errorf("set block %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set block %d: %w", id, ErrPhraseNotFound)
	}
	return nil
}

// GetPhrase retrieves one phrase by id.
func (s *Store) GetPhrase(ctx context.Context, id int64) (parrot.PhraseRecord, error) {
	var r parrot.PhraseRecord
	err := s.db.QueryRow(ctx, `
		SELECT parrot_messages_id, message_text, source_player, round, block, created_at
		FROM parrot_messages WHERE parrot_messages_id = $1`, id,
	).Scan(&r.ID, &r.Text, &r.Source, &r.Round, &r.Blocked, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, fmt.Errorf("get phrase %d: %w", id, ErrPhraseNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("get phrase %d: %w", id, err)
	}
	return r, nil
}

// ListPhrases returns the moderation view of the log, newest first, with
// the last known name of each source player.
func (s *Store) ListPhrases(ctx context.Context, q moderation.Query) ([]moderation.Entry, error) {
	var since *time.Time
	if !q.Since.IsZero() {
		since = &q.Since
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.Query(ctx, `
		SELECT m.parrot_messages_id, m.message_text, m.round, m.source_player,
		       COALESCE(p.last_seen_user_name, ''), m.block
		FROM parrot_messages m
		LEFT JOIN players p ON p.user_id = m.source_player
		WHERE ($1 OR NOT m.block)
		  AND ($2::timestamptz IS NULL OR m.created_at >= $2)
		  AND ($3 = '' OR strpos(lower(m.message_text), lower($3)) > 0)
		ORDER BY m.parrot_messages_id DESC
		LIMIT $4`,
		q.IncludeBlocked, since, q.Contains, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list phrases: %w", err)
	}
	defer rows.Close()

	var out []moderation.Entry
	for rows.Next() {
		var e moderation.Entry
		if err := rows.Scan(&e.ID, &e.Text, &e.Round, &e.Source, &e.SourceName, &e.Blocked); err != nil {
			return nil, fmt.Errorf("scan phrase: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list phrases: %w", err)
	}
	return out, nil
}
