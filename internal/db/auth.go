package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sitefolio/backend/internal/auth"
	"github.com/sitefolio/backend/internal/model"
)

func principalTable(kind model.Kind) string {
	if kind == model.KindAdmin {
		return "admins"
	}
	return "users"
}

func (db *Postgres) EnsureAuthSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS counters (
			name TEXT PRIMARY KEY,
			seq BIGINT NOT NULL DEFAULT 0
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS admin_logs (
			id BIGSERIAL PRIMARY KEY,
			admin_id BIGINT NOT NULL,
			public_id TEXT NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			detail JSONB NOT NULL DEFAULT '{}'::jsonb,
			ip TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS admin_logs_admin_id_idx ON admin_logs(admin_id, created_at)`,
	}
	for _, table := range []string{"users", "admins"} {
		queries = append(queries, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			public_id TEXT NOT NULL UNIQUE,
			email TEXT UNIQUE,
			phone TEXT UNIQUE,
			nickname TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive', 'suspended')),
			role INT NOT NULL DEFAULT 0,
			failed_attempts INT NOT NULL DEFAULT 0 CHECK (failed_attempts BETWEEN 0 AND %d),
			risk_level INT NOT NULL DEFAULT 0 CHECK (risk_level >= 0),
			lock_until TIMESTAMPTZ,
			last_login_time TIMESTAMPTZ,
			last_login_ip TEXT NOT NULL DEFAULT '',
			register_ip TEXT NOT NULL DEFAULT '',
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`, table, auth.MaxFailedAttempts))
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

const principalColumns = `
	id, public_id, COALESCE(email, ''), COALESCE(phone, ''), nickname, password_hash,
	status, role, failed_attempts, risk_level, lock_until, last_login_time,
	last_login_ip, register_ip, is_deleted, created_at, updated_at
`

func scanPrincipal(row pgx.Row, kind model.Kind) (*model.Principal, error) {
	p := model.Principal{Kind: kind}
	var status string
	err := row.Scan(
		&p.ID,
		&p.PublicID,
		&p.Email,
		&p.Phone,
		&p.Nickname,
		&p.PasswordHash,
		&status,
		&p.Role,
		&p.FailedAttempts,
		&p.RiskLevel,
		&p.LockUntil,
		&p.LastLoginTime,
		&p.LastLoginIP,
		&p.RegisterIP,
		&p.IsDeleted,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.Status(status)
	return &p, nil
}

// CreatePrincipal mints the public id and inserts the record in one
// transaction. If the insert fails the counter increment is rolled back,
// so no id is issued without a record.
func (db *Postgres) CreatePrincipal(ctx context.Context, kind model.Kind, in model.NewPrincipal) (*model.Principal, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	seq, err := NextSequence(ctx, tx, kind.CounterName())
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (public_id, email, phone, nickname, password_hash, role, register_ip, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, NOW(), NOW())
		RETURNING %s
	`, principalTable(kind), principalColumns)

	p, err := scanPrincipal(tx.QueryRow(ctx, query,
		FormatPublicID(seq),
		strings.ToLower(strings.TrimSpace(in.Email)),
		strings.TrimSpace(in.Phone),
		in.Nickname,
		in.PasswordHash,
		in.Role,
		in.RegisterIP,
	), kind)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// FindPrincipalByIdentifier matches exactly one column, chosen by the
// identifier's form (see model.ParseIdentifier).
func (db *Postgres) FindPrincipalByIdentifier(ctx context.Context, kind model.Kind, identifier string) (*model.Principal, error) {
	var column string
	idType, value := model.ParseIdentifier(identifier)
	switch idType {
	case model.IdentifierPublicID:
		column = "public_id"
	case model.IdentifierEmail:
		column = "email"
	case model.IdentifierPhone:
		column = "phone"
	default:
		return nil, pgx.ErrNoRows
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE is_deleted = FALSE AND %s = $1
	`, principalColumns, principalTable(kind), column)
	return scanPrincipal(db.Pool.QueryRow(ctx, query, value), kind)
}

func (db *Postgres) FindPrincipalByID(ctx context.Context, kind model.Kind, id int64) (*model.Principal, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND is_deleted = FALSE
	`, principalColumns, principalTable(kind))
	return scanPrincipal(db.Pool.QueryRow(ctx, query, id), kind)
}

// RecordLoginFailure locks the principal's row, applies fn to its lock
// state and writes the result back. Only this row is locked, so failures
// for other principals never wait on each other.
func (db *Postgres) RecordLoginFailure(ctx context.Context, kind model.Kind, id int64, fn func(auth.LockState) auth.LockState) (auth.LockState, error) {
	table := principalTable(kind)

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return auth.LockState{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var state auth.LockState
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT failed_attempts, risk_level, lock_until
		FROM %s
		WHERE id = $1
		FOR UPDATE
	`, table), id).Scan(&state.FailedAttempts, &state.RiskLevel, &state.LockUntil)
	if err != nil {
		return auth.LockState{}, err
	}

	next := fn(state)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET failed_attempts = $2, risk_level = $3, lock_until = $4, updated_at = NOW()
		WHERE id = $1
	`, table), id, next.FailedAttempts, next.RiskLevel, next.LockUntil); err != nil {
		return auth.LockState{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return auth.LockState{}, err
	}
	return next, nil
}

// RecordLoginSuccess clears the failure counter and stamps the login.
// risk_level is left alone.
func (db *Postgres) RecordLoginSuccess(ctx context.Context, kind model.Kind, id int64, ip string, at time.Time) error {
	_, err := db.Pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET failed_attempts = 0, last_login_time = $2, last_login_ip = $3, updated_at = NOW()
		WHERE id = $1
	`, principalTable(kind)), id, at, ip)
	return err
}

// UnlockPrincipal lifts a lock by hand. risk_level is kept.
func (db *Postgres) UnlockPrincipal(ctx context.Context, kind model.Kind, publicID string) (*model.Principal, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET failed_attempts = 0, lock_until = NULL, updated_at = NOW()
		WHERE public_id = $1 AND is_deleted = FALSE
		RETURNING %s
	`, principalTable(kind), principalColumns)
	return scanPrincipal(db.Pool.QueryRow(ctx, query, publicID), kind)
}

func (db *Postgres) SetPrincipalStatus(ctx context.Context, kind model.Kind, publicID string, status model.Status) error {
	tag, err := db.Pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = $2, updated_at = NOW()
		WHERE public_id = $1 AND is_deleted = FALSE
	`, principalTable(kind)), publicID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountPrincipals is used at startup to decide whether to seed an admin.
func (db *Postgres) CountPrincipals(ctx context.Context, kind model.Kind) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE is_deleted = FALSE`, principalTable(kind))).Scan(&n)
	return n, err
}
