package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitbridge/gitbridge/internal/credential"
)

// CredentialStore reads and writes user-provisioned tokens. Tokens are
// encrypted at rest with AES-256-GCM; the store implements the credstore port
// for the token manager's read path.
type CredentialStore struct {
	pool *pgxpool.Pool
	key  []byte
}

// NewCredentialStore creates a credential store using the given encryption key
// (see credential.DeriveKey).
func NewCredentialStore(pool *pgxpool.Pool, key []byte) *CredentialStore {
	return &CredentialStore{pool: pool, key: key}
}

// Lookup returns the decrypted token for (service, owner).
func (s *CredentialStore) Lookup(ctx context.Context, service, owner string) (string, bool, error) {
	var encrypted []byte
	err := s.pool.QueryRow(ctx,
		`SELECT encrypted_token FROM user_credentials WHERE service = $1 AND owner = $2`,
		service, owner,
	).Scan(&encrypted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup credential %s/%s: %w", service, owner, err)
	}
	return s.decrypt(encrypted)
}

// First returns the oldest stored token for the service, any owner.
func (s *CredentialStore) First(ctx context.Context, service string) (string, bool, error) {
	var encrypted []byte
	err := s.pool.QueryRow(ctx,
		`SELECT encrypted_token FROM user_credentials WHERE service = $1 ORDER BY created_at ASC LIMIT 1`,
		service,
	).Scan(&encrypted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("first credential %s: %w", service, err)
	}
	return s.decrypt(encrypted)
}

// Save upserts the token for (service, owner), encrypting it before storage.
func (s *CredentialStore) Save(ctx context.Context, service, owner, token string) error {
	encrypted, err := credential.Encrypt([]byte(token), s.key)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO user_credentials (service, owner, encrypted_token)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (service, owner)
		 DO UPDATE SET encrypted_token = EXCLUDED.encrypted_token, updated_at = now()`,
		service, owner, encrypted)
	if err != nil {
		return fmt.Errorf("save credential %s/%s: %w", service, owner, err)
	}
	return nil
}

// Delete removes the stored token for (service, owner). Deleting a credential
// that does not exist is not an error.
func (s *CredentialStore) Delete(ctx context.Context, service, owner string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM user_credentials WHERE service = $1 AND owner = $2`,
		service, owner)
	if err != nil {
		return fmt.Errorf("delete credential %s/%s: %w", service, owner, err)
	}
	return nil
}

// StoredCredential is the metadata row for a stored token. The token itself
// is never included.
type StoredCredential struct {
	Service   string
	Owner     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// List returns metadata for every stored credential, ordered by service then
// owner.
func (s *CredentialStore) List(ctx context.Context) ([]StoredCredential, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT service, owner, created_at, updated_at FROM user_credentials ORDER BY service, owner`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []StoredCredential
	for rows.Next() {
		var c StoredCredential
		if err := rows.Scan(&c.Service, &c.Owner, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *CredentialStore) decrypt(encrypted []byte) (string, bool, error) {
	plaintext, err := credential.Decrypt(encrypted, s.key)
	if err != nil {
		return "", false, fmt.Errorf("decrypt credential: %w", err)
	}
	return string(plaintext), true, nil
}
