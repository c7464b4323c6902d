package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore writes entries to the tracking_logs table.
type PGStore struct {
	DB pgQuerier
}

const insertAttemptSQL = `INSERT INTO tracking_logs
	(user_id, api_date, api_request, menu_id, api_status, api_error, ip_config, ip_location)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (s PGStore) InsertAttempt(ctx context.Context, e Entry) error {
	_, err := s.DB.Exec(ctx, insertAttemptSQL,
		e.RequesterID, e.Timestamp, e.ContainerNo, e.ProviderLabel,
		string(e.Outcome), toNullText(e.Error), e.CallerIP, e.IPLocation,
	)
	if err != nil {
		return fmt.Errorf("insert tracking log: %w", err)
	}
	return nil
}

const listAttemptsSQL = `SELECT id, user_id, api_date, api_request, menu_id, api_status, api_error, ip_config, ip_location
FROM tracking_logs
WHERE ($1::text = '' OR api_request = $1::text)
ORDER BY id DESC
LIMIT $2 OFFSET $3`

func (s PGStore) ListAttempts(ctx context.Context, f ListFilter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.Query(ctx, listAttemptsSQL, f.ContainerNo, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list tracking logs: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			outcome string
			errText pgtype.Text
		)
		if err := rows.Scan(&e.ID, &e.RequesterID, &e.Timestamp, &e.ContainerNo, &e.ProviderLabel,
			&outcome, &errText, &e.CallerIP, &e.IPLocation); err != nil {
			return nil, fmt.Errorf("scan tracking log: %w", err)
		}
		e.Outcome = Outcome(outcome)
		if errText.Valid {
			msg := errText.String
			e.Error = &msg
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func toNullText(value *string) pgtype.Text {
	if value == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *value, Valid: true}
}
