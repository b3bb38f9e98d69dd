// Package store persists quotes, batch quotes, catalog refresh audits and API keys in SQLite.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/renoprice/internal/catalog"
	"github.com/Simplici0/renoprice/internal/pricing"
)

const timeLayout = "2006-01-02 15:04:05"

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the quote database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New returns a Store using db. Migrations must already be applied.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Quote is a saved single-line estimate.
type Quote struct {
	ID        string           `json:"id"`
	BatchID   string           `json:"batch_id,omitempty"`
	CreatedAt string           `json:"created_at"`
	Title     string           `json:"title,omitempty"`
	Request   json.RawMessage  `json:"request"`
	Estimate  pricing.Estimate `json:"estimate"`
}

// Batch is a saved multi-trade estimate.
type Batch struct {
	ID        string              `json:"id"`
	CreatedAt string              `json:"created_at"`
	Title     string              `json:"title,omitempty"`
	Result    pricing.BatchResult `json:"result"`
}

// Refresh is one row of the price refresh audit trail.
type Refresh struct {
	ID          int64  `json:"id"`
	RefreshedOn string `json:"refreshed_on"`
	Factor      string `json:"factor"`
	JobTypes    int    `json:"job_types"`
	Source      string `json:"source"`
	CreatedAt   string `json:"created_at"`
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// SaveQuote stores est with the request that produced it.
func (s *Store) SaveQuote(ctx context.Context, title string, request any, est pricing.Estimate) (Quote, error) {
	reqJSON, err := json.Marshal(request)
	if err != nil {
		return Quote{}, fmt.Errorf("encode quote request: %w", err)
	}
	q := Quote{
		ID:        uuid.NewString(),
		CreatedAt: s.timestamp(),
		Title:     title,
		Request:   reqJSON,
		Estimate:  est,
	}
	if err := insertQuote(ctx, s.db, q); err != nil {
		return Quote{}, err
	}
	return q, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertQuote(ctx context.Context, ex execer, q Quote) error {
	estJSON, err := json.Marshal(q.Estimate)
	if err != nil {
		return fmt.Errorf("encode quote estimate: %w", err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO quotes (id, batch_id, created_at, title, job_type, region, total, request_json, estimate_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.ID, nullString(q.BatchID), q.CreatedAt, nullString(q.Title), q.Estimate.JobType, q.Estimate.Region,
		q.Estimate.Total, string(q.Request), string(estJSON))
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

// SaveBatch stores res and each of its lines as quotes linked to the batch, in one transaction.
// requests must be in the same order as res.Lines.
func (s *Store) SaveBatch(ctx context.Context, title string, requests []any, res pricing.BatchResult) (Batch, error) {
	if len(requests) != len(res.Lines) {
		return Batch{}, fmt.Errorf("save batch: %d requests for %d lines", len(requests), len(res.Lines))
	}
	reqJSON, err := json.Marshal(requests)
	if err != nil {
		return Batch{}, fmt.Errorf("encode batch request: %w", err)
	}
	resJSON, err := json.Marshal(res)
	if err != nil {
		return Batch{}, fmt.Errorf("encode batch result: %w", err)
	}

	b := Batch{ID: uuid.NewString(), CreatedAt: s.timestamp(), Title: title, Result: res}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Batch{}, fmt.Errorf("begin batch transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO batches (id, created_at, title, trade_count, total, request_json, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.CreatedAt, nullString(title), res.TradeCount, res.TotalTotal, string(reqJSON), string(resJSON)); err != nil {
		return Batch{}, fmt.Errorf("insert batch: %w", err)
	}

	for i, line := range res.Lines {
		lineReq, err := json.Marshal(requests[i])
		if err != nil {
			return Batch{}, fmt.Errorf("encode batch line %d request: %w", i+1, err)
		}
		q := Quote{
			ID:        uuid.NewString(),
			BatchID:   b.ID,
			CreatedAt: b.CreatedAt,
			Title:     title,
			Request:   lineReq,
			Estimate:  line,
		}
		if err := insertQuote(ctx, tx, q); err != nil {
			return Batch{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Batch{}, fmt.Errorf("commit batch transaction: %w", err)
	}
	return b, nil
}

// GetQuote returns the quote with id, or ErrNotFound.
func (s *Store) GetQuote(ctx context.Context, id string) (Quote, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(batch_id, ''), created_at, COALESCE(title, ''), request_json, estimate_json
		FROM quotes
		WHERE id = ?
	`, id)
	q, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Quote{}, ErrNotFound
	}
	if err != nil {
		return Quote{}, fmt.Errorf("get quote %s: %w", id, err)
	}
	return q, nil
}

// ListQuotes returns saved quotes newest first. A non-empty query filters on title, job type
// and region.
func (s *Store) ListQuotes(ctx context.Context, query string) ([]Quote, error) {
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(batch_id, ''), created_at, COALESCE(title, ''), request_json, estimate_json
		FROM quotes
		WHERE (? = '' OR COALESCE(title, '') LIKE ? OR job_type LIKE ? OR region LIKE ?)
		ORDER BY datetime(created_at) DESC, rowid DESC
	`, query, search, search, search)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	quotes := make([]Quote, 0)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	return quotes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuote(sc scanner) (Quote, error) {
	var (
		q       Quote
		reqJSON string
		estJSON string
	)
	if err := sc.Scan(&q.ID, &q.BatchID, &q.CreatedAt, &q.Title, &reqJSON, &estJSON); err != nil {
		return Quote{}, err
	}
	q.Request = json.RawMessage(reqJSON)
	if err := json.Unmarshal([]byte(estJSON), &q.Estimate); err != nil {
		return Quote{}, fmt.Errorf("decode quote %s estimate: %w", q.ID, err)
	}
	return q, nil
}

// GetBatch returns the batch with id, or ErrNotFound.
func (s *Store) GetBatch(ctx context.Context, id string) (Batch, error) {
	var (
		b       Batch
		resJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, COALESCE(title, ''), result_json
		FROM batches
		WHERE id = ?
	`, id).Scan(&b.ID, &b.CreatedAt, &b.Title, &resJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	if err != nil {
		return Batch{}, fmt.Errorf("get batch %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(resJSON), &b.Result); err != nil {
		return Batch{}, fmt.Errorf("decode batch %s result: %w", id, err)
	}
	return b, nil
}

// RecordRefresh appends a price refresh to the audit trail.
func (s *Store) RecordRefresh(ctx context.Context, res catalog.RefreshResult, source string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_refreshes (refreshed_on, factor, job_types, source, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, res.RefreshedOn, res.Factor.String(), res.JobTypes, source, s.timestamp())
	if err != nil {
		return fmt.Errorf("insert price refresh: %w", err)
	}
	return nil
}

// LatestRefresh returns the most recent audit row, or ErrNotFound.
func (s *Store) LatestRefresh(ctx context.Context) (Refresh, error) {
	var r Refresh
	err := s.db.QueryRowContext(ctx, `
		SELECT id, refreshed_on, factor, job_types, source, created_at
		FROM price_refreshes
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&r.ID, &r.RefreshedOn, &r.Factor, &r.JobTypes, &r.Source, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Refresh{}, ErrNotFound
	}
	if err != nil {
		return Refresh{}, fmt.Errorf("get latest price refresh: %w", err)
	}
	return r, nil
}

// HashAPIKey returns the stored form of an API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// LookupAPIKey returns the name registered for an active key, or ErrNotFound.
func (s *Store) LookupAPIKey(ctx context.Context, key string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `
		SELECT name FROM api_keys WHERE key_hash = ? AND active = TRUE
	`, HashAPIKey(key)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup api key: %w", err)
	}
	return name, nil
}

// CountAPIKeys returns the number of active keys.
func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys WHERE active = TRUE`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count api keys: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
