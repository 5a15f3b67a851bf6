// Package security wraps a hishel.Storage to add SHA-256 cache-key hashing
// (always enabled) and optional AES-256-GCM encryption of stored bodies,
// keyed by a passphrase run through scrypt.
package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"

	"github.com/hishelgo/hishel"
)

const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLength = 32
	nonceSize = 12
)

// Storage wraps inner, hashing cache keys and optionally encrypting stored
// bodies.
type Storage struct {
	inner hishel.Storage
	gcm   cipher.AEAD
}

// Config configures a Storage.
type Config struct {
	// Inner is the Storage to wrap.
	Inner hishel.Storage
	// Passphrase, if non-empty, enables AES-256-GCM encryption of stored
	// bodies, derived via scrypt. Leave empty for hashing only.
	Passphrase string
}

// Wrap builds a security Storage around cfg.Inner.
func Wrap(cfg Config) (*Storage, error) {
	if cfg.Inner == nil {
		return nil, fmt.Errorf("security: Inner cache cannot be nil")
	}
	s := &Storage{inner: cfg.Inner}
	if cfg.Passphrase != "" {
		if err := s.initEncryption(cfg.Passphrase); err != nil {
			return nil, fmt.Errorf("security: initializing encryption: %w", err)
		}
	}
	return s, nil
}

func (s *Storage) initEncryption(passphrase string) error {
	salt := sha256.Sum256([]byte("hishel-security-salt-v1"))
	key, err := scrypt.Key([]byte(passphrase), salt[:], scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	s.gcm = gcm
	return nil
}

// HashKey derives a deterministic, non-reversible cache key from key using
// SHA-256, so the plaintext request URL never reaches the backend.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (s *Storage) encrypt(body io.ReadCloser) (io.ReadCloser, error) {
	if body == nil || s.gcm == nil {
		return body, nil
	}
	defer body.Close()
	plain, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("security: reading body: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("security: generating nonce: %w", err)
	}
	sealed := s.gcm.Seal(nonce, nonce, plain, nil)
	return io.NopCloser(bytes.NewReader(sealed)), nil
}

func (s *Storage) decrypt(body io.ReadCloser) (io.ReadCloser, error) {
	if body == nil || s.gcm == nil {
		return body, nil
	}
	defer body.Close()
	sealed, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("security: reading body: %w", err)
	}
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("security: ciphertext too short")
	}
	nonce, ct := sealed[:nonceSize], sealed[nonceSize:]
	plain, err := s.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decrypting body: %w", err)
	}
	return io.NopCloser(bytes.NewReader(plain)), nil
}

func (s *Storage) CreatePair(ctx context.Context, cacheKey string, req hishel.Request) (hishel.IncompletePair, error) {
	body, err := s.encrypt(req.Body)
	if err != nil {
		return hishel.IncompletePair{}, err
	}
	req.Body = body
	pair, err := s.inner.CreatePair(ctx, HashKey(cacheKey), req)
	if err != nil {
		return hishel.IncompletePair{}, err
	}
	if pair.Request.Body, err = s.decrypt(pair.Request.Body); err != nil {
		return hishel.IncompletePair{}, err
	}
	return pair, nil
}

func (s *Storage) AddResponse(ctx context.Context, id uuid.UUID, resp hishel.Response) (hishel.CompletePair, error) {
	body, err := s.encrypt(resp.Body)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	resp.Body = body
	pair, err := s.inner.AddResponse(ctx, id, resp)
	if err != nil {
		return hishel.CompletePair{}, err
	}
	return s.decryptPair(pair)
}

func (s *Storage) GetPairs(ctx context.Context, cacheKey string) ([]hishel.CompletePair, error) {
	pairs, err := s.inner.GetPairs(ctx, HashKey(cacheKey))
	if err != nil {
		return nil, err
	}
	out := make([]hishel.CompletePair, 0, len(pairs))
	for _, p := range pairs {
		decoded, err := s.decryptPair(p)
		if err != nil {
			continue
		}
		out = append(out, decoded)
	}
	return out, nil
}

func (s *Storage) UpdatePair(ctx context.Context, id uuid.UUID, fn func(hishel.CompletePair) (hishel.CompletePair, error)) (hishel.CompletePair, error) {
	pair, err := s.inner.UpdatePair(ctx, id, func(current hishel.CompletePair) (hishel.CompletePair, error) {
		decoded, err := s.decryptPair(current)
		if err != nil {
			return hishel.CompletePair{}, err
		}
		updated, err := fn(decoded)
		if err != nil {
			return hishel.CompletePair{}, err
		}
		reqBody, err := s.encrypt(updated.Request.Body)
		if err != nil {
			return hishel.CompletePair{}, err
		}
		updated.Request.Body = reqBody
		body, err := s.encrypt(updated.Response.Body)
		if err != nil {
			return hishel.CompletePair{}, err
		}
		updated.Response.Body = body
		return updated, nil
	})
	if err != nil {
		return hishel.CompletePair{}, err
	}
	return s.decryptPair(pair)
}

func (s *Storage) Remove(ctx context.Context, id uuid.UUID) error { return s.inner.Remove(ctx, id) }
func (s *Storage) Cleanup(ctx context.Context) error              { return s.inner.Cleanup(ctx) }
func (s *Storage) Close() error                                   { return s.inner.Close() }

func (s *Storage) decryptPair(p hishel.CompletePair) (hishel.CompletePair, error) {
	var err error
	if p.Request.Body, err = s.decrypt(p.Request.Body); err != nil {
		return hishel.CompletePair{}, err
	}
	if p.Response.Body, err = s.decrypt(p.Response.Body); err != nil {
		return hishel.CompletePair{}, err
	}
	return p, nil
}

var _ hishel.Storage = (*Storage)(nil)
