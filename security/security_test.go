package security

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/hishelgo/hishel"
	"github.com/hishelgo/hishel/memstore"
)

func TestHashKey_IsDeterministicAndNonReversible(t *testing.T) {
	h1 := HashKey("https://example.com/secret")
	h2 := HashKey("https://example.com/secret")
	if h1 != h2 {
		t.Error("expected HashKey to be deterministic")
	}
	if h1 == "https://example.com/secret" {
		t.Error("expected HashKey to not return the plaintext")
	}
	if len(h1) != 64 {
		t.Errorf("expected a 64-char hex SHA-256 digest, got %d chars", len(h1))
	}
}

func TestWrap_RequiresInner(t *testing.T) {
	if _, err := Wrap(Config{}); err == nil {
		t.Error("expected an error for a nil Inner")
	}
}

func TestWrap_WithoutPassphraseStoresPlaintext(t *testing.T) {
	inner := memstore.New()
	s, err := Wrap(Config{Inner: inner})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	ctx := context.Background()

	pair, err := s.CreatePair(ctx, "https://example.com/a", hishel.Request{Method: http.MethodGet})
	if err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	if _, err := s.AddResponse(ctx, pair.ID, hishel.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader("plaintext")),
	}); err != nil {
		t.Fatalf("AddResponse: %v", err)
	}

	innerPairs, err := inner.GetPairs(ctx, HashKey("https://example.com/a"))
	if err != nil || len(innerPairs) != 1 {
		t.Fatalf("expected the inner store to be keyed by the hashed key, got %v, %d pairs", err, len(innerPairs))
	}
	raw, _ := io.ReadAll(innerPairs[0].Response.Body)
	if string(raw) != "plaintext" {
		t.Errorf("expected the body to be stored unencrypted, got %q", raw)
	}
}

func TestWrap_WithPassphraseEncryptsAtRest(t *testing.T) {
	inner := memstore.New()
	s, err := Wrap(Config{Inner: inner, Passphrase: "correct horse battery staple"})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	ctx := context.Background()

	pair, err := s.CreatePair(ctx, "https://example.com/a", hishel.Request{Method: http.MethodGet})
	if err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	complete, err := s.AddResponse(ctx, pair.ID, hishel.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader("secret body")),
	})
	if err != nil {
		t.Fatalf("AddResponse: %v", err)
	}
	plain, _ := io.ReadAll(complete.Response.Body)
	if string(plain) != "secret body" {
		t.Errorf("expected the caller-visible body to be decrypted, got %q", plain)
	}

	innerPairs, _ := inner.GetPairs(ctx, HashKey("https://example.com/a"))
	ciphertext, _ := io.ReadAll(innerPairs[0].Response.Body)
	if string(ciphertext) == "secret body" {
		t.Error("expected the body at rest to be encrypted, not plaintext")
	}

	pairs, err := s.GetPairs(ctx, "https://example.com/a")
	if err != nil || len(pairs) != 1 {
		t.Fatalf("GetPairs: %v, %d pairs", err, len(pairs))
	}
	roundTripped, _ := io.ReadAll(pairs[0].Response.Body)
	if string(roundTripped) != "secret body" {
		t.Errorf("expected GetPairs to decrypt transparently, got %q", roundTripped)
	}
}

func TestWrap_WrongPassphraseFailsToDecrypt(t *testing.T) {
	inner := memstore.New()
	writer, err := Wrap(Config{Inner: inner, Passphrase: "correct horse battery staple"})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	ctx := context.Background()
	pair, _ := writer.CreatePair(ctx, "https://example.com/a", hishel.Request{Method: http.MethodGet})
	writer.AddResponse(ctx, pair.ID, hishel.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader("secret body")),
	})

	reader, err := Wrap(Config{Inner: inner, Passphrase: "wrong passphrase"})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	pairs, err := reader.GetPairs(ctx, "https://example.com/a")
	if err != nil {
		t.Fatalf("GetPairs: %v", err)
	}
	if len(pairs) != 0 {
		t.Error("expected a pair encrypted with a different key to be silently excluded, not decrypted")
	}
}
