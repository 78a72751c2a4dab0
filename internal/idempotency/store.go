package idempotency

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrInProgress is returned when another request holding the same
// (user_id, key) pair has inserted the processing marker but not yet saved
// its response. Callers should retry shortly; they must never proceed with
// duplicate work.
var ErrInProgress = errors.New("a request with this idempotency key is already in progress")

// SavedResponse is the HTTP response persisted against a completed
// idempotency record and replayed verbatim on retries.
type SavedResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Store persists idempotency records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates an idempotency store on the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// BeginOrReturn attempts to claim (userID, key) for the current request.
//
// If the pair is unseen, it opens a transaction, inserts the processing
// marker inside it, and returns the open transaction; the caller performs
// its writes on that transaction and must finish with Complete (which
// commits) or roll it back. If a completed record already exists, the saved
// response is returned and the caller must perform no further work. If the
// record exists but is still processing, ErrInProgress is returned.
//
// A concurrent request with the same pair blocks on the marker row until
// the first transaction commits, then observes the conflict — the unique
// primary key does the mutual exclusion, not application state.
func (s *Store) BeginOrReturn(ctx context.Context, userID string, key Key) (*sql.Tx, *SavedResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin idempotency transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO idempotency (user_id, idempotency_key, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, idempotency_key) DO NOTHING
	`, userID, key.String())
	if err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("insert processing marker: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("read rows affected: %w", err)
	}
	if inserted == 1 {
		return tx, nil, nil
	}

	// Marker already present: either a finished request (replay its
	// response) or one still in flight (conflict).
	tx.Rollback()
	saved, err := s.savedResponse(ctx, userID, key)
	if err != nil {
		return nil, nil, err
	}
	return nil, saved, nil
}

// Complete persists the response onto the processing marker and commits the
// transaction. The issue insert, the delivery fan-out, and this update all
// become visible in a single commit; a crash before this point leaves no
// trace of the request.
func (s *Store) Complete(ctx context.Context, tx *sql.Tx, userID string, key Key, resp *SavedResponse) error {
	headers, err := json.Marshal(resp.Headers)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("marshal response headers: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE idempotency
		SET response_status_code = $3,
		    response_headers = $4,
		    response_body = $5
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key.String(), resp.StatusCode, headers, resp.Body)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save response: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("read rows affected: %w", err)
	}
	if updated != 1 {
		tx.Rollback()
		return fmt.Errorf("expected to update one idempotency record, updated %d", updated)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit idempotency transaction: %w", err)
	}
	return nil
}

func (s *Store) savedResponse(ctx context.Context, userID string, key Key) (*SavedResponse, error) {
	var (
		status      sql.NullInt64
		headersJSON []byte
		body        []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT response_status_code, response_headers, response_body
		FROM idempotency
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key.String()).Scan(&status, &headersJSON, &body)
	if err == sql.ErrNoRows {
		// The marker was rolled back between our insert attempt and this
		// read; the competing request failed. Treat as in-progress so the
		// client retries.
		return nil, ErrInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("load saved response: %w", err)
	}
	if !status.Valid {
		return nil, ErrInProgress
	}

	headers := http.Header{}
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &headers); err != nil {
			return nil, fmt.Errorf("decode saved response headers: %w", err)
		}
	}
	return &SavedResponse{
		StatusCode: int(status.Int64),
		Headers:    headers,
		Body:       body,
	}, nil
}
