package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	trailhead "github.com/eugener/trailhead/internal"
)

// GetCredential retrieves the stored credential for an athlete.
func (s *Store) GetCredential(ctx context.Context, athleteID int64) (*trailhead.Credential, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT athlete_id, access_token, refresh_token, expires_at, updated_at
		 FROM credentials WHERE athlete_id = ?`, athleteID,
	)
	return scanCredential(row)
}

// ListCredentials returns all stored credentials.
func (s *Store) ListCredentials(ctx context.Context) ([]*trailhead.Credential, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT athlete_id, access_token, refresh_token, expires_at, updated_at
		 FROM credentials ORDER BY athlete_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*trailhead.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// UpsertCredential inserts or fully replaces an athlete's credential.
func (s *Store) UpsertCredential(ctx context.Context, cred *trailhead.Credential) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO credentials (athlete_id, access_token, refresh_token, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(athlete_id) DO UPDATE SET
		   access_token=excluded.access_token,
		   refresh_token=excluded.refresh_token,
		   expires_at=excluded.expires_at,
		   updated_at=excluded.updated_at`,
		cred.AthleteID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// UpdateTokens writes a refreshed token triple for an existing athlete.
func (s *Store) UpdateTokens(ctx context.Context, athleteID int64, tok *trailhead.Token) error {
	result, err := s.write.ExecContext(ctx,
		`UPDATE credentials SET access_token=?, refresh_token=?, expires_at=?, updated_at=?
		 WHERE athlete_id=?`,
		tok.AccessToken, tok.RefreshToken, tok.ExpiresAt,
		time.Now().UTC().Format(time.RFC3339), athleteID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, "credential")
}

// DeleteCredential removes an athlete's credential.
func (s *Store) DeleteCredential(ctx context.Context, athleteID int64) error {
	result, err := s.write.ExecContext(ctx,
		`DELETE FROM credentials WHERE athlete_id=?`, athleteID)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, "credential")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*trailhead.Credential, error) {
	var c trailhead.Credential
	var updatedAt string
	err := row.Scan(&c.AthleteID, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential: %w", trailhead.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func checkRowsAffected(result sql.Result, entity string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, trailhead.ErrNotFound)
	}
	return nil
}
