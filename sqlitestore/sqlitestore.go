// Package sqlitestore is the reference hishel.Storage backend: a local,
// dependency-light store backed by modernc.org/sqlite (a pure-Go driver,
// so this package never requires cgo). It reproduces the chunked,
// tee-on-write body storage of the original hishel SQLite backend: a
// request or response body is split into fixed-size chunks as it is
// read, each chunk persisted as its own streams row, terminated by a
// zero-length sentinel chunk that marks the stream complete.
package sqlitestore

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/herrors"

	_ "modernc.org/sqlite"
)

// chunkSize bounds how much of a body is buffered in memory per streams
// row written or read.
const chunkSize = 32 * 1024

const (
	kindRequest  = "request"
	kindResponse = "response"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id          TEXT PRIMARY KEY,
	cache_key   TEXT NOT NULL,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	req_header  BLOB,
	complete    INTEGER NOT NULL DEFAULT 0,
	status_code INTEGER,
	resp_header BLOB,
	request_time  INTEGER,
	response_time INTEGER,
	created_at  INTEGER NOT NULL,
	ttl_nanos   INTEGER NOT NULL DEFAULT 0,
	deleted_at  INTEGER
);
CREATE INDEX IF NOT EXISTS idx_entries_cache_key ON entries(cache_key);
CREATE INDEX IF NOT EXISTS idx_entries_deleted_at ON entries(deleted_at);

CREATE TABLE IF NOT EXISTS streams (
	entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	kind     TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	chunk    BLOB NOT NULL,
	PRIMARY KEY (entry_id, kind, seq)
);
`

// Store is a hishel.Storage backend over a SQLite database file (or
// in-memory database, with path ":memory:").
type Store struct {
	db *sql.DB
}

// Open creates or attaches to the SQLite database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", herrors.ErrStorage, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite does not support concurrent writers on one handle
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enabling foreign keys: %v", herrors.ErrStorage, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", herrors.ErrStorage, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) CreatePair(ctx context.Context, cacheKey string, req hishel.Request) (hishel.IncompletePair, error) {
	id := uuid.New()
	createdAt := time.Now()

	reqHeader, err := encodeHeader(req.Header)
	if err != nil {
		return hishel.IncompletePair{}, err
	}

	urlStr := ""
	if req.URL != nil {
		urlStr = req.URL.String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return hishel.IncompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (id, cache_key, method, url, req_header, complete, created_at, ttl_nanos)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		id.String(), cacheKey, req.Method, urlStr, reqHeader, createdAt.UnixNano(), int64(req.Metadata.TTL))
	if err != nil {
		return hishel.IncompletePair{}, fmt.Errorf("%w: inserting entry: %v", herrors.ErrStorage, err)
	}

	if err := writeStream(ctx, tx, id, kindRequest, req.Body); err != nil {
		return hishel.IncompletePair{}, err
	}

	if err := tx.Commit(); err != nil {
		return hishel.IncompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}

	return hishel.IncompletePair{
		Pair: hishel.Pair{
			ID:      id,
			Request: req,
			Meta:    hishel.PairMeta{CreatedAt: createdAt},
		},
	}, nil
}

func (s *Store) AddResponse(ctx context.Context, id uuid.UUID, resp hishel.Response) (hishel.CompletePair, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	defer tx.Rollback()

	var complete int
	err = tx.QueryRowContext(ctx, `SELECT complete FROM entries WHERE id = ?`, id.String()).Scan(&complete)
	if err == sql.ErrNoRows {
		return hishel.CompletePair{}, herrors.ErrNotFound
	}
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	if complete != 0 {
		return hishel.CompletePair{}, herrors.ErrAlreadyComplete
	}

	respHeader, err := encodeHeader(resp.Header)
	if err != nil {
		return hishel.CompletePair{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE entries SET complete = 1, status_code = ?, resp_header = ?, request_time = ?, response_time = ? WHERE id = ?`,
		resp.StatusCode, respHeader, resp.Metadata.RequestTime.UnixNano(), resp.Metadata.ResponseTime.UnixNano(), id.String())
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: updating entry: %v", herrors.ErrStorage, err)
	}

	if err := writeStream(ctx, tx, id, kindResponse, resp.Body); err != nil {
		return hishel.CompletePair{}, err
	}

	if err := tx.Commit(); err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}

	return s.readPair(ctx, id)
}

func (s *Store) GetPairs(ctx context.Context, cacheKey string) ([]hishel.CompletePair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM entries WHERE cache_key = ? AND complete = 1 AND deleted_at IS NULL ORDER BY response_time DESC`,
		cacheKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	pairs := make([]hishel.CompletePair, 0, len(ids))
	for _, id := range ids {
		pair, err := s.readPair(ctx, id)
		if err != nil {
			if err == herrors.ErrNotFound || err == herrors.ErrCorrupt {
				continue
			}
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (s *Store) UpdatePair(ctx context.Context, id uuid.UUID, fn func(hishel.CompletePair) (hishel.CompletePair, error)) (hishel.CompletePair, error) {
	current, err := s.readPair(ctx, id)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	updated, err := fn(current)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	if updated.ID != id {
		return hishel.CompletePair{}, herrors.ErrIDMismatch
	}

	respHeader, err := encodeHeader(updated.Response.Header)
	if err != nil {
		return hishel.CompletePair{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE entries SET status_code = ?, resp_header = ?, request_time = ?, response_time = ?, created_at = ? WHERE id = ?`,
		updated.Response.StatusCode, respHeader,
		updated.Response.Metadata.RequestTime.UnixNano(), updated.Response.Metadata.ResponseTime.UnixNano(),
		updated.Meta.CreatedAt.UnixNano(),
		id.String())
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: updating entry: %v", herrors.ErrStorage, err)
	}

	if updated.Response.Body != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM streams WHERE entry_id = ? AND kind = ?`, id.String(), kindResponse); err != nil {
			return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
		}
		if err := writeStream(ctx, tx, id, kindResponse, updated.Response.Body); err != nil {
			return hishel.CompletePair{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return s.readPair(ctx, id)
}

func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UnixNano(), id.String())
	if err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

// Cleanup soft-deletes entries whose ttl_nanos has elapsed since created_at,
// hard-deletes entries soft-deleted past hishel.HardDeleteGrace, and reaps
// entries left incomplete for over an hour (abandoned CreatePair calls
// whose AddResponse never arrived). The TTL comparison is recomputed
// against created_at on every call rather than against a precomputed
// absolute expiry, so a RefreshTTLOnAccess bump of created_at (via
// UpdatePair) naturally extends retention without a separate column.
func (s *Store) Cleanup(ctx context.Context) error {
	now := time.Now().UnixNano()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE entries SET deleted_at = ? WHERE deleted_at IS NULL AND ttl_nanos > 0 AND created_at + ttl_nanos < ?`,
		now, now); err != nil {
		return fmt.Errorf("%w: soft-deleting expired entries: %v", herrors.ErrStorage, err)
	}

	deadline := time.Now().Add(-hishel.HardDeleteGrace).UnixNano()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE deleted_at IS NOT NULL AND deleted_at < ?`, deadline); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}

	staleIncomplete := time.Now().Add(-time.Hour).UnixNano()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE complete = 0 AND created_at < ?`, staleIncomplete); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) readPair(ctx context.Context, id uuid.UUID) (hishel.CompletePair, error) {
	var (
		cacheKey, method, urlStr             string
		reqHeaderRaw, respHeaderRaw          []byte
		complete                             int
		statusCode                           sql.NullInt64
		requestTimeNanos, responseTimeNanos  sql.NullInt64
		createdAtNanos                       int64
		deletedAtNanos                       sql.NullInt64
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT cache_key, method, url, req_header, complete, status_code, resp_header, request_time, response_time, created_at, deleted_at
		 FROM entries WHERE id = ?`, id.String())
	err := row.Scan(&cacheKey, &method, &urlStr, &reqHeaderRaw, &complete, &statusCode, &respHeaderRaw,
		&requestTimeNanos, &responseTimeNanos, &createdAtNanos, &deletedAtNanos)
	if err == sql.ErrNoRows {
		return hishel.CompletePair{}, herrors.ErrNotFound
	}
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	if complete == 0 {
		return hishel.CompletePair{}, herrors.ErrCorrupt
	}

	reqHeader, err := decodeHeader(reqHeaderRaw)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	respHeader, err := decodeHeader(respHeaderRaw)
	if err != nil {
		return hishel.CompletePair{}, err
	}

	reqBody, err := readStream(ctx, s.db, id, kindRequest)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	respBody, ok, err := readStreamChecked(ctx, s.db, id, kindResponse)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	if !ok {
		return hishel.CompletePair{}, herrors.ErrCorrupt
	}

	var deletedAt *time.Time
	if deletedAtNanos.Valid {
		t := time.Unix(0, deletedAtNanos.Int64)
		deletedAt = &t
	}

	var parsedURL *url.URL
	if urlStr != "" {
		parsedURL, _ = url.Parse(urlStr)
	}

	return hishel.CompletePair{
		Pair: hishel.Pair{
			ID: id,
			Request: hishel.Request{
				Method: method,
				URL:    parsedURL,
				Header: reqHeader,
				Body:   io.NopCloser(bytes.NewReader(reqBody)),
			},
			Meta: hishel.PairMeta{
				CreatedAt: time.Unix(0, createdAtNanos),
				DeletedAt: deletedAt,
			},
		},
		CacheKey: cacheKey,
		Response: hishel.Response{
			StatusCode: int(statusCode.Int64),
			Header:     respHeader,
			Body:       io.NopCloser(bytes.NewReader(respBody)),
			Metadata: hishel.ResponseMetadata{
				RequestTime:  time.Unix(0, requestTimeNanos.Int64),
				ResponseTime: time.Unix(0, responseTimeNanos.Int64),
			},
		},
	}, nil
}

// writeStream tees body into the streams table chunkSize bytes at a time,
// appending a zero-length sentinel row once the body is exhausted (or
// immediately, for a nil body). A partially written stream with no
// sentinel row is what readStreamChecked treats as corrupt.
func writeStream(ctx context.Context, tx *sql.Tx, id uuid.UUID, kind string, body io.ReadCloser) error {
	if body != nil {
		defer body.Close()
	}
	seq := 0
	if body != nil {
		buf := make([]byte, chunkSize)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				if _, execErr := tx.ExecContext(ctx,
					`INSERT INTO streams (entry_id, kind, seq, chunk) VALUES (?, ?, ?, ?)`,
					id.String(), kind, seq, chunk); execErr != nil {
					return fmt.Errorf("%w: writing stream chunk: %v", herrors.ErrStorage, execErr)
				}
				seq++
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("%w: reading body: %v", herrors.ErrStorage, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO streams (entry_id, kind, seq, chunk) VALUES (?, ?, ?, ?)`,
		id.String(), kind, seq, []byte{}); err != nil {
		return fmt.Errorf("%w: writing stream terminator: %v", herrors.ErrStorage, err)
	}
	return nil
}

func readStream(ctx context.Context, db *sql.DB, id uuid.UUID, kind string) ([]byte, error) {
	body, ok, err := readStreamChecked(ctx, db, id, kind)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, herrors.ErrCorrupt
	}
	return body, nil
}

// readStreamChecked reads chunks in seq order and stops at the first
// zero-length chunk. ok is false when no terminator was ever found,
// meaning the write was interrupted (crash, killed process) and the
// stream is corrupt.
func readStreamChecked(ctx context.Context, db *sql.DB, id uuid.UUID, kind string) (body []byte, ok bool, err error) {
	rows, err := db.QueryContext(ctx,
		`SELECT chunk FROM streams WHERE entry_id = ? AND kind = ? ORDER BY seq ASC`,
		id.String(), kind)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	defer rows.Close()

	var buf bytes.Buffer
	for rows.Next() {
		var chunk []byte
		if err := rows.Scan(&chunk); err != nil {
			return nil, false, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
		}
		if len(chunk) == 0 {
			return buf.Bytes(), true, nil
		}
		buf.Write(chunk)
	}
	return nil, false, nil
}

func encodeHeader(h http.Header) ([]byte, error) {
	var buf bytes.Buffer
	if err := h.Write(&buf); err != nil {
		return nil, fmt.Errorf("%w: encoding header: %v", herrors.ErrStorage, err)
	}
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

func decodeHeader(raw []byte) (http.Header, error) {
	if len(raw) == 0 {
		return make(http.Header), nil
	}
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: decoding header: %v", herrors.ErrStorage, err)
	}
	return http.Header(mimeHeader), nil
}

var _ hishel.Storage = (*Store)(nil)
