package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// dedupeHorizon bounds the event history scanned by AlreadySent.
const dedupeHorizon = 60 * 24 * time.Hour

// PostgresSource reads users and plans from the bot database and records
// sent reminders in its events table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource wraps an existing pool.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Candidates lists active paid users whose plan expiry falls in the
// reminder windows around now.
func (s *PostgresSource) Candidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.telegram_id, COALESCE(u.current_plan, ''), COALESCE(p.display_name, ''),
		       u.plan_expires_at, COALESCE(u.timezone, '')
		FROM users u
		LEFT JOIN plans p ON p.name = u.current_plan
		WHERE u.plan_expires_at IS NOT NULL
		  AND COALESCE(u.current_plan, 'free') <> 'free'
		  AND u.is_active
		  AND u.plan_expires_at >= $1
		  AND u.plan_expires_at <= $2
		ORDER BY u.plan_expires_at, u.id`,
		now.Add(-ExpiredLookback), now.Add(PreExpiryWindow))
	if err != nil {
		return nil, fmt.Errorf("query reminder candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.UserID, &c.TelegramID, &c.Plan, &c.PlanName, &c.ExpiresAt, &c.Timezone); err != nil {
			return nil, fmt.Errorf("scan reminder candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AlreadySent reports whether an event of kind was recorded for this expiry.
// Events with unparseable payloads are ignored.
func (s *PostgresSource) AlreadySent(ctx context.Context, userID int64, kind string, expiresAt time.Time) (bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(payload, '')
		FROM events
		WHERE user_id = $1 AND kind = $2 AND ts >= $3
		ORDER BY ts DESC`,
		userID, kind, expiresAt.Add(-dedupeHorizon))
	if err != nil {
		return false, fmt.Errorf("query reminder events: %w", err)
	}
	defer rows.Close()

	target := ExpiryKey(expiresAt)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return false, fmt.Errorf("scan reminder event: %w", err)
		}
		var payload struct {
			PlanExpiresAt string `json:"plan_expires_at"`
		}
		if raw == "" || json.Unmarshal([]byte(raw), &payload) != nil {
			continue
		}
		if payload.PlanExpiresAt == target {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Record stores a sent reminder.
func (s *PostgresSource) Record(ctx context.Context, userID int64, kind string, expiresAt time.Time) error {
	payload, err := json.Marshal(map[string]string{"plan_expires_at": ExpiryKey(expiresAt)})
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO events (user_id, kind, ts, payload) VALUES ($1, $2, $3, $4)`,
		userID, kind, time.Now().UTC(), string(payload)); err != nil {
		return fmt.Errorf("record reminder event: %w", err)
	}
	return nil
}
