// Package schedule supplies the batch scheduler with pending requests and
// dispatches each one to the tracking service.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/container-tracker/internal/tracking"
)

// DefaultSourceTimeout bounds one page fetch from the origin API.
const DefaultSourceTimeout = 30 * time.Second

// PendingSource returns one page of requests awaiting notification. A page
// shorter than limit is the last one.
type PendingSource interface {
	Page(ctx context.Context, offset, limit int) ([]tracking.Request, error)
}

type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore reads active rows from the schedules table.
type PGStore struct {
	DB rowsQuerier
}

const activeSchedulesSQL = `SELECT container_no, email_to, user_id
FROM schedules
WHERE active
ORDER BY id
LIMIT $1 OFFSET $2`

func (s PGStore) Page(ctx context.Context, offset, limit int) ([]tracking.Request, error) {
	if limit <= 0 {
		return []tracking.Request{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.DB.Query(ctx, activeSchedulesSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	defer rows.Close()

	out := make([]tracking.Request, 0, limit)
	for rows.Next() {
		var (
			req  tracking.Request
			user pgtype.Text
		)
		if err := rows.Scan(&req.ContainerNo, &req.EmailTo, &user); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		if user.Valid {
			req.RequesterID = user.String
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// HTTPSource pages pending requests through the origin API's
// GET /api/schedules/active route.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
	// Timeout defaults to DefaultSourceTimeout.
	Timeout time.Duration
}

type activeEnvelope struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Data    []tracking.Request `json:"data"`
}

func (s HTTPSource) Page(ctx context.Context, offset, limit int) ([]tracking.Request, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	target := strings.TrimRight(s.BaseURL, "/") + "/api/schedules/active?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := clientOrDefault(s.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("schedule: fetch active page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("schedule: read active page: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schedule: active page returned status %d", resp.StatusCode)
	}
	var env activeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("schedule: decode active page: %w", err)
	}
	if env.Data == nil {
		return []tracking.Request{}, nil
	}
	return env.Data, nil
}

func clientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}
