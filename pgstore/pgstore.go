// Package pgstore provides a hishel.Storage backend over PostgreSQL, via
// github.com/jackc/pgx/v5's pgxpool. Bodies are stored as single bytea
// columns rather than chunked streams: pgx already streams bytea values
// to and from the wire, so chunking would only buy back what sqlitestore
// needs chunking for in the first place (bounding memory while tee-writing
// a body it cannot otherwise size in advance before INSERT).
package pgstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/herrors"
)

const schema = `
CREATE TABLE IF NOT EXISTS hishel_entries (
	id            UUID PRIMARY KEY,
	cache_key     TEXT NOT NULL,
	method        TEXT NOT NULL,
	url           TEXT NOT NULL,
	req_header    BYTEA,
	req_body      BYTEA,
	complete      BOOLEAN NOT NULL DEFAULT FALSE,
	status_code   INTEGER,
	resp_header   BYTEA,
	resp_body     BYTEA,
	request_time  TIMESTAMPTZ,
	response_time TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL,
	deleted_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS hishel_entries_cache_key_idx ON hishel_entries(cache_key);
`

// Store is a hishel.Storage backed by a PostgreSQL table.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL using connString and ensures the schema
// exists.
func Open(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to postgres: %v", herrors.ErrStorage, err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", herrors.ErrStorage, err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreatePair(ctx context.Context, cacheKey string, req hishel.Request) (hishel.IncompletePair, error) {
	id := uuid.New()
	createdAt := time.Now()

	reqHeader, reqBody, err := encodeReqBody(req)
	if err != nil {
		return hishel.IncompletePair{}, err
	}
	urlStr := ""
	if req.URL != nil {
		urlStr = req.URL.String()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO hishel_entries (id, cache_key, method, url, req_header, req_body, complete, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`,
		id, cacheKey, req.Method, urlStr, reqHeader, reqBody, createdAt)
	if err != nil {
		return hishel.IncompletePair{}, fmt.Errorf("%w: inserting entry: %v", herrors.ErrStorage, err)
	}

	return hishel.IncompletePair{
		Pair: hishel.Pair{ID: id, Request: req, Meta: hishel.PairMeta{CreatedAt: createdAt}},
	}, nil
}

func (s *Store) AddResponse(ctx context.Context, id uuid.UUID, resp hishel.Response) (hishel.CompletePair, error) {
	var complete bool
	err := s.pool.QueryRow(ctx, `SELECT complete FROM hishel_entries WHERE id = $1`, id).Scan(&complete)
	if err == pgx.ErrNoRows {
		return hishel.CompletePair{}, herrors.ErrNotFound
	}
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	if complete {
		return hishel.CompletePair{}, herrors.ErrAlreadyComplete
	}

	respHeader, respBody, err := encodeRespBody(resp)
	if err != nil {
		return hishel.CompletePair{}, err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE hishel_entries SET complete = TRUE, status_code = $1, resp_header = $2, resp_body = $3, request_time = $4, response_time = $5 WHERE id = $6 AND complete = FALSE`,
		resp.StatusCode, respHeader, respBody, resp.Metadata.RequestTime, resp.Metadata.ResponseTime, id)
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: updating entry: %v", herrors.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return hishel.CompletePair{}, herrors.ErrAlreadyComplete
	}
	return s.readPair(ctx, id)
}

func (s *Store) GetPairs(ctx context.Context, cacheKey string) ([]hishel.CompletePair, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM hishel_entries WHERE cache_key = $1 AND complete = TRUE AND deleted_at IS NULL ORDER BY response_time DESC`,
		cacheKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	pairs := make([]hishel.CompletePair, 0, len(ids))
	for _, id := range ids {
		pair, err := s.readPair(ctx, id)
		if err != nil {
			if err == herrors.ErrNotFound {
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

	respHeader, respBody, err := encodeRespBody(updated.Response)
	if err != nil {
		return hishel.CompletePair{}, err
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE hishel_entries SET status_code = $1, resp_header = $2, resp_body = $3, request_time = $4, response_time = $5 WHERE id = $6`,
		updated.Response.StatusCode, respHeader, respBody,
		updated.Response.Metadata.RequestTime, updated.Response.Metadata.ResponseTime, id)
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: updating entry: %v", herrors.ErrStorage, err)
	}
	return s.readPair(ctx, id)
}

func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE hishel_entries SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) Cleanup(ctx context.Context) error {
	deadline := time.Now().Add(-hishel.HardDeleteGrace)
	if _, err := s.pool.Exec(ctx, `DELETE FROM hishel_entries WHERE deleted_at IS NOT NULL AND deleted_at < $1`, deadline); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	staleIncomplete := time.Now().Add(-time.Hour)
	if _, err := s.pool.Exec(ctx, `DELETE FROM hishel_entries WHERE complete = FALSE AND created_at < $1`, staleIncomplete); err != nil {
		return fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) readPair(ctx context.Context, id uuid.UUID) (hishel.CompletePair, error) {
	var (
		cacheKey, method, urlStr  string
		reqHeaderRaw, reqBody     []byte
		complete                  bool
		statusCode                *int
		respHeaderRaw, respBody   []byte
		requestTime, responseTime *time.Time
		createdAt                 time.Time
		deletedAt                 *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT cache_key, method, url, req_header, req_body, complete, status_code, resp_header, resp_body, request_time, response_time, created_at, deleted_at
		 FROM hishel_entries WHERE id = $1`, id).
		Scan(&cacheKey, &method, &urlStr, &reqHeaderRaw, &reqBody, &complete, &statusCode, &respHeaderRaw, &respBody, &requestTime, &responseTime, &createdAt, &deletedAt)
	if err == pgx.ErrNoRows {
		return hishel.CompletePair{}, herrors.ErrNotFound
	}
	if err != nil {
		return hishel.CompletePair{}, fmt.Errorf("%w: %v", herrors.ErrStorage, err)
	}
	if !complete {
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

	var parsedURL *url.URL
	if urlStr != "" {
		parsedURL, _ = url.Parse(urlStr)
	}
	status := 0
	if statusCode != nil {
		status = *statusCode
	}
	var reqT, respT time.Time
	if requestTime != nil {
		reqT = *requestTime
	}
	if responseTime != nil {
		respT = *responseTime
	}

	return hishel.CompletePair{
		Pair: hishel.Pair{
			ID: id,
			Request: hishel.Request{
				Method: method,
				URL:    parsedURL,
				Header: reqHeader,
				Body:   newNopBody(reqBody),
			},
			Meta: hishel.PairMeta{CreatedAt: createdAt, DeletedAt: deletedAt},
		},
		CacheKey: cacheKey,
		Response: hishel.Response{
			StatusCode: status,
			Header:     respHeader,
			Body:       newNopBody(respBody),
			Metadata: hishel.ResponseMetadata{
				RequestTime:  reqT,
				ResponseTime: respT,
			},
		},
	}, nil
}

var _ hishel.Storage = (*Store)(nil)

func encodeReqBody(req hishel.Request) (header, body []byte, err error) {
	header, err = encodeHeader(req.Header)
	if err != nil {
		return nil, nil, err
	}
	if req.Body != nil {
		body, err = readAllAndClose(req.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading request body: %v", herrors.ErrStorage, err)
		}
	}
	return header, body, nil
}

func encodeRespBody(resp hishel.Response) (header, body []byte, err error) {
	header, err = encodeHeader(resp.Header)
	if err != nil {
		return nil, nil, err
	}
	if resp.Body != nil {
		body, err = readAllAndClose(resp.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading response body: %v", herrors.ErrStorage, err)
		}
	}
	return header, body, nil
}

func encodeHeader(h http.Header) ([]byte, error) {
	if h == nil {
		h = make(http.Header)
	}
	var buf writeBuffer
	if err := h.Write(&buf); err != nil {
		return nil, fmt.Errorf("%w: encoding header: %v", herrors.ErrStorage, err)
	}
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}
