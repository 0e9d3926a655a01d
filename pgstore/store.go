// Package pgstore provides a Postgres-backed IdentityProvider and Ledger for
// deployments that keep identities and the attempt trail in the relational
// store instead of Redis. Migrations are embedded and run with goose.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/securefs/facegate"
	"github.com/securefs/facegate/pgstore/migrations"
)

const pgUniqueViolation = "23505"

// Store implements facegate.IdentityProvider and facegate.Ledger over
// database/sql with the pgx driver.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the pgx stdlib driver and pings the database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &Store{db: db}, nil
}

// RunMigrations applies the embedded schema with goose.
func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetIdentity(ctx context.Context, name string) (*facegate.IdentityRecord, error) {
	query :=
		`SELECT name, role, credential_digest, template_ref, created_at, last_login
		 FROM identities
		 WHERE name = $1
		 `

	rec := &facegate.IdentityRecord{}
	var templateRef sql.NullString
	var lastLogin sql.NullTime
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&rec.Name, &rec.Role, &rec.CredentialDigest, &templateRef, &rec.CreatedAt, &lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, facegate.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	rec.TemplateRef = templateRef.String
	if lastLogin.Valid {
		t := lastLogin.Time
		rec.LastLogin = &t
	}

	return rec, nil
}

func (s *Store) CreateIdentity(ctx context.Context, input facegate.CreateIdentityInput) (*facegate.IdentityRecord, error) {
	query :=
		`INSERT INTO identities (name, role, credential_digest)
		 VALUES ($1, $2, $3)
		 RETURNING created_at
		 `

	rec := &facegate.IdentityRecord{
		Name:             input.Name,
		Role:             input.Role,
		CredentialDigest: input.CredentialDigest,
	}
	err := s.db.QueryRowContext(ctx, query,
		input.Name, input.Role, input.CredentialDigest).Scan(&rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, facegate.ErrIdentityExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (s *Store) UpdateCredentialDigest(ctx context.Context, name, digest string) error {
	query :=
		`UPDATE identities SET credential_digest = $2
		 WHERE name = $1
		 `
	return s.execExpectingRow(ctx, query, name, digest)
}

func (s *Store) UpdateTemplateRef(ctx context.Context, name, ref string) error {
	query :=
		`UPDATE identities SET template_ref = NULLIF($2, '')
		 WHERE name = $1
		 `
	return s.execExpectingRow(ctx, query, name, ref)
}

func (s *Store) UpdateLastLogin(ctx context.Context, name string, at time.Time) error {
	query :=
		`UPDATE identities SET last_login = $2
		 WHERE name = $1
		 `
	return s.execExpectingRow(ctx, query, name, at)
}

func (s *Store) DeleteIdentity(ctx context.Context, name string) error {
	query :=
		`DELETE FROM identities
		 WHERE name = $1
		 `
	return s.execExpectingRow(ctx, query, name)
}

func (s *Store) execExpectingRow(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return facegate.ErrIdentityNotFound
	}
	return nil
}
