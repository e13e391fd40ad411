package storage

import (
	"context"
	"fmt"
	"strings"
)

// allowedSendersQuery skips NULL and empty identifiers.
const allowedSendersQuery = `SELECT sender_id FROM allowed_senders
	WHERE sender_id IS NOT NULL AND sender_id <> '' ORDER BY sender_id`

// AllowedSenders returns the set of sender IDs permitted to use the bot.
func (db *DB) AllowedSenders(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.Pool.Query(ctx, allowedSendersQuery)
	if err != nil {
		return nil, fmt.Errorf("querying allowed senders: %w", pgError(err))
	}
	defer rows.Close()

	result := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning allowed sender: %w", err)
		}
		result[id] = struct{}{}
	}
	return result, rows.Err()
}

// AddAllowedSender adds a sender to the allowlist. Adding twice is a no-op.
func (db *DB) AddAllowedSender(ctx context.Context, senderID string) error {
	if strings.TrimSpace(senderID) == "" {
		return ErrEmptySenderID
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO allowed_senders (sender_id) VALUES ($1) ON CONFLICT DO NOTHING`, senderID)
	if err != nil {
		return fmt.Errorf("adding allowed sender: %w", pgError(err))
	}
	return nil
}

// RemoveAllowedSender removes a sender and reports whether it was present.
func (db *DB) RemoveAllowedSender(ctx context.Context, senderID string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM allowed_senders WHERE sender_id = $1`, senderID)
	if err != nil {
		return false, fmt.Errorf("removing allowed sender: %w", pgError(err))
	}
	return tag.RowsAffected() > 0, nil
}
