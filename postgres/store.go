// Package postgres implements sessionauth.Store on PostgreSQL through
// database/sql and the pgx stdlib driver. The schema is managed by goose
// with migrations embedded in the binary.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/maccas-one/sessionauth"
	"github.com/maccas-one/sessionauth/internal/dbx"
	"github.com/maccas-one/sessionauth/postgres/migrations"
	"github.com/maccas-one/sessionauth/role"
	"github.com/maccas-one/sessionauth/session"
	"github.com/pressly/goose/v3"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store is a PostgreSQL-backed sessionauth.Store.
type Store struct {
	db *sql.DB
}

var _ sessionauth.Store = (*Store)(nil)

// Open connects to dsn with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

const userColumns = `id, username, password_hash, roles, active, config, created_at`

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*sessionauth.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE lower(username) = lower($1)
		 `
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*sessionauth.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 `
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func scanUser(row *sql.Row) (*sessionauth.User, error) {
	var (
		u      sessionauth.User
		roles  int16
		config []byte
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &roles, &u.Active, &config, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sessionauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	set, err := role.FromRaw(uint8(roles))
	if err != nil {
		return nil, fmt.Errorf("db error: user %s: %w", u.ID, err)
	}
	u.Roles = set

	if len(config) > 0 {
		var c sessionauth.UserConfig
		if err := json.Unmarshal(config, &c); err != nil {
			return nil, fmt.Errorf("db error: user %s config: %w", u.ID, err)
		}
		u.Config = &c
	}
	return &u, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	query :=
		`SELECT id, user_id, impersonator_user_id, access_token, created_at, expires_at FROM sessions
		 WHERE id = $1
		 `

	var (
		sess         session.Session
		impersonator sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID, &sess.UserID, &impersonator, &sess.AccessToken, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	sess.ImpersonatorUserID = impersonator.String
	return &sess, nil
}

// WithinTx runs fn in one READ COMMITTED transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx sessionauth.StoreTx) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &txStore{db: tx})
	})
}

type txStore struct {
	db dbx.DBTX
}

func (t *txStore) CreateUser(ctx context.Context, u *sessionauth.User) error {
	query :=
		`INSERT INTO users (id, username, password_hash, roles, active, config, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 `

	var config any
	if u.Config != nil {
		b, err := json.Marshal(u.Config)
		if err != nil {
			return fmt.Errorf("encode user config: %w", err)
		}
		config = string(b)
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := t.db.ExecContext(ctx, query,
		u.ID, u.Username, u.PasswordHash, int16(u.Roles.Raw()), u.Active, config, createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sessionauth.ErrUsernameTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (t *txStore) SaveSession(ctx context.Context, s *session.Session) error {
	query :=
		`INSERT INTO sessions (id, user_id, impersonator_user_id, access_token, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 `

	impersonator := sql.NullString{String: s.ImpersonatorUserID, Valid: s.ImpersonatorUserID != ""}
	_, err := t.db.ExecContext(ctx, query,
		s.ID, s.UserID, impersonator, s.AccessToken, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (t *txStore) SetUserActive(ctx context.Context, id string, active bool) error {
	query :=
		`UPDATE users SET active = $2
		 WHERE id = $1
		 `

	res, err := t.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return sessionauth.ErrUserNotFound
	}
	return nil
}
