// Package registry resolves tracking provider ids to endpoint templates.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Static serves endpoints from configuration. The map is copied on
// construction and never mutated afterwards.
type Static struct {
	endpoints map[string]string
}

// NewStatic builds a Static registry from id → endpoint pairs.
func NewStatic(endpoints map[string]string) Static {
	copied := make(map[string]string, len(endpoints))
	for id, url := range endpoints {
		if id = strings.TrimSpace(id); id != "" && strings.TrimSpace(url) != "" {
			copied[id] = strings.TrimSpace(url)
		}
	}
	return Static{endpoints: copied}
}

func (s Static) Endpoint(_ context.Context, providerID string) (string, bool, error) {
	url, ok := s.endpoints[providerID]
	return url, ok, nil
}

// Len reports how many providers have an endpoint.
func (s Static) Len() int { return len(s.endpoints) }

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore reads enabled endpoints from the tracking_endpoints table.
type PGStore struct {
	DB rowQuerier
}

const endpointSQL = `SELECT endpoint_url FROM tracking_endpoints WHERE menu_id = $1 AND enabled LIMIT 1`

func (s PGStore) Endpoint(ctx context.Context, providerID string) (string, bool, error) {
	if s.DB == nil {
		return "", false, errors.New("registry: database not configured")
	}
	var url string
	err := s.DB.QueryRow(ctx, endpointSQL, providerID).Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("registry lookup %s: %w", providerID, err)
	}
	url = strings.TrimSpace(url)
	return url, url != "", nil
}

type source interface {
	Endpoint(ctx context.Context, providerID string) (string, bool, error)
}

// Layered consults Override first and falls back to Base. Environment
// overrides take precedence over rows in the database.
type Layered struct {
	Override source
	Base     source
}

func (l Layered) Endpoint(ctx context.Context, providerID string) (string, bool, error) {
	if l.Override != nil {
		url, ok, err := l.Override.Endpoint(ctx, providerID)
		if err != nil || ok {
			return url, ok, err
		}
	}
	if l.Base == nil {
		return "", false, nil
	}
	return l.Base.Endpoint(ctx, providerID)
}
