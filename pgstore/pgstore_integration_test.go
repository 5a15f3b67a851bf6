//go:build integration

package pgstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hishelgo/hishel"
)

const (
	skipIntegrationMsg = "skipping integration test; use -tags=integration to enable"
	postgresImage      = "postgres:18.0-alpine3.22"
	postgresPassword   = "testpassword"
	postgresUser       = "testuser"
	postgresDB         = "testdb"
)

func setupPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_DB":       postgresDB,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, host, port.Port(), postgresDB)
}

func newStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip(skipIntegrationMsg)
	}
	ctx := context.Background()
	connString := setupPostgres(ctx, t)
	s, err := Open(ctx, connString)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CreateAddGetRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	incomplete, err := s.CreatePair(ctx, "key-a", hishel.Request{
		Method: http.MethodGet,
		Body:   io.NopCloser(strings.NewReader("req body")),
	})
	if err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	if _, err := s.AddResponse(ctx, incomplete.ID, hishel.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader("resp body")),
	}); err != nil {
		t.Fatalf("AddResponse: %v", err)
	}

	pairs, err := s.GetPairs(ctx, "key-a")
	if err != nil || len(pairs) != 1 {
		t.Fatalf("GetPairs: %v, %d pairs", err, len(pairs))
	}
	body, _ := io.ReadAll(pairs[0].Response.Body)
	if string(body) != "resp body" {
		t.Errorf("response body = %q", body)
	}
}

func TestStore_UpdatePairReplacesResponse(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	incomplete, _ := s.CreatePair(ctx, "key-a", hishel.Request{Method: http.MethodGet})
	s.AddResponse(ctx, incomplete.ID, hishel.Response{StatusCode: 200})

	updated, err := s.UpdatePair(ctx, incomplete.ID, func(cp hishel.CompletePair) (hishel.CompletePair, error) {
		cp.Response.StatusCode = 304
		return cp, nil
	})
	if err != nil {
		t.Fatalf("UpdatePair: %v", err)
	}
	if updated.Response.StatusCode != 304 {
		t.Errorf("expected 304, got %d", updated.Response.StatusCode)
	}
}

func TestStore_RemoveHidesFromGetPairs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	incomplete, _ := s.CreatePair(ctx, "key-a", hishel.Request{Method: http.MethodGet})
	s.AddResponse(ctx, incomplete.ID, hishel.Response{StatusCode: 200})

	if err := s.Remove(ctx, incomplete.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	pairs, _ := s.GetPairs(ctx, "key-a")
	if len(pairs) != 0 {
		t.Errorf("expected removed pair to be invisible, got %d", len(pairs))
	}
}

func TestStore_CleanupReapsPastGrace(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	incomplete, _ := s.CreatePair(ctx, "key-a", hishel.Request{Method: http.MethodGet})
	s.AddResponse(ctx, incomplete.ID, hishel.Response{StatusCode: 200})
	s.Remove(ctx, incomplete.ID)

	past := time.Now().Add(-2 * hishel.HardDeleteGrace)
	if _, err := s.pool.Exec(ctx, `UPDATE hishel_entries SET deleted_at = $1 WHERE id = $2`, past, incomplete.ID); err != nil {
		t.Fatalf("backdating deleted_at: %v", err)
	}

	if err := s.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := s.readPair(ctx, incomplete.ID); err == nil {
		t.Error("expected the entry to be hard-deleted after Cleanup")
	}
}
