package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Mearman/mcp-wayback-machine/internal/core"
)

var _ core.ResponseCache = (*Store)(nil)

// Get returns the cached response stored under key, or nil when the key is
// missing or expired.
func (s *Store) Get(ctx context.Context, key string) (*core.CachedResponse, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("cache key is required")
	}

	var (
		statusCode int
		headerJSON sql.NullString
		body       []byte
		storedAt   int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT status_code, header_json, body, stored_at
		FROM response_cache
		WHERE cache_key = ? AND expires_at > ?
	`, key, s.now().UnixMilli())

	if err := row.Scan(&statusCode, &headerJSON, &body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached response: %w", err)
	}

	header := http.Header{}
	if headerJSON.Valid && headerJSON.String != "" {
		if err := json.Unmarshal([]byte(headerJSON.String), &header); err != nil {
			return nil, fmt.Errorf("decode cached headers: %w", err)
		}
	}

	return &core.CachedResponse{
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
		StoredAt:   time.UnixMilli(storedAt).UTC(),
	}, nil
}

// Set stores resp under key for ttl. Expired rows are purged first, then the
// oldest rows are evicted until the byte budget holds. Entries larger than
// the whole budget are skipped.
func (s *Store) Set(ctx context.Context, key string, resp *core.CachedResponse, ttl time.Duration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key is required")
	}
	if resp == nil {
		return errors.New("cached response is required")
	}
	if ttl <= 0 {
		return nil
	}

	size := resp.Size()
	if s.MaxSize > 0 && size > s.MaxSize {
		return nil
	}

	headerJSON, err := json.Marshal(resp.Header)
	if err != nil {
		return fmt.Errorf("encode cached headers: %w", err)
	}

	now := s.now()
	storedAt := resp.StoredAt
	if storedAt.IsZero() {
		storedAt = now
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM response_cache WHERE expires_at <= ?`, now.UnixMilli()); err != nil {
		return fmt.Errorf("purge expired responses: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO response_cache (cache_key, status_code, header_json, body, size, stored_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			status_code = excluded.status_code,
			header_json = excluded.header_json,
			body = excluded.body,
			size = excluded.size,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at
	`, key, resp.StatusCode, string(headerJSON), resp.Body, size, storedAt.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("store cached response: %w", err)
	}

	return s.evict(ctx, key)
}

// Clear removes every cached response.
func (s *Store) Clear(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM response_cache`); err != nil {
		return fmt.Errorf("clear response cache: %w", err)
	}
	return nil
}

// TotalSize reports the stored body bytes.
func (s *Store) TotalSize(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	var total sql.NullInt64
	if err := s.DB.QueryRowContext(ctx, `SELECT SUM(size) FROM response_cache`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum response cache: %w", err)
	}
	return total.Int64, nil
}

func (s *Store) evict(ctx context.Context, keep string) error {
	if s.MaxSize <= 0 {
		return nil
	}

	for {
		total, err := s.TotalSize(ctx)
		if err != nil {
			return err
		}
		if total <= s.MaxSize {
			return nil
		}

		res, err := s.DB.ExecContext(ctx, `
			DELETE FROM response_cache WHERE cache_key = (
				SELECT cache_key FROM response_cache
				WHERE cache_key != ?
				ORDER BY stored_at ASC
				LIMIT 1
			)
		`, keep)
		if err != nil {
			return fmt.Errorf("evict cached response: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil
		}
	}
}
