package db

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sitefolio/backend/internal/auth"
	"github.com/sitefolio/backend/internal/config"
	"github.com/sitefolio/backend/internal/model"
)

func TestFormatPublicID(t *testing.T) {
	tests := []struct {
		seq  int64
		want string
	}{
		{seq: 1, want: "000001"},
		{seq: 42, want: "000042"},
		{seq: 999999, want: "999999"},
		{seq: 1234567, want: "1234567"},
	}
	for _, tt := range tests {
		if got := FormatPublicID(tt.seq); got != tt.want {
			t.Fatalf("FormatPublicID(%d) = %q, want %q", tt.seq, got, tt.want)
		}
	}
}

func TestBuildPostgresURL(t *testing.T) {
	got, err := buildPostgresURL(config.PostgresConfig{
		Host:     "db",
		Port:     "5432",
		User:     "app",
		Password: "p@ss",
		Database: "sitefolio",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("buildPostgresURL: %v", err)
	}
	if got != "postgres://app:p%40ss@db:5432/sitefolio?sslmode=disable" {
		t.Fatalf("unexpected url %q", got)
	}

	if _, err := buildPostgresURL(config.PostgresConfig{Host: "db", Port: "5432"}); err == nil {
		t.Fatalf("expected error without user/database")
	}

	got, _ = buildPostgresURL(config.PostgresConfig{DatabaseURL: "postgres://x/y"})
	if got != "postgres://x/y" {
		t.Fatalf("DATABASE_URL should win, got %q", got)
	}
}

// 실제 PostgreSQL이 필요한 테스트: TEST_DATABASE_URL이 없으면 건너뜀
func newIntegrationDB(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPostgresPool(ctx, config.PostgresConfig{DatabaseURL: dsn})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	pg := &Postgres{Pool: pool}
	if err := pg.EnsureAuthSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, q := range []string{`TRUNCATE users, admins, admin_logs RESTART IDENTITY`, `DELETE FROM counters`} {
		if _, err := pool.Exec(ctx, q); err != nil {
			t.Fatalf("reset: %v", err)
		}
	}
	return pg
}

func TestCreatePrincipalConcurrentIntegration(t *testing.T) {
	pg := newIntegrationDB(t)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := pg.CreatePrincipal(ctx, model.KindUser, model.NewPrincipal{
				Email:        fmt.Sprintf("u%d@example.com", i),
				PasswordHash: "x",
			})
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			ids <- p.PublicID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d ids, want %d", len(seen), n)
	}
}

func TestCreatePrincipalRollbackIntegration(t *testing.T) {
	pg := newIntegrationDB(t)
	ctx := context.Background()

	if _, err := pg.CreatePrincipal(ctx, model.KindUser, model.NewPrincipal{Email: "dup@example.com", PasswordHash: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := pg.CreatePrincipal(ctx, model.KindUser, model.NewPrincipal{Email: "dup@example.com", PasswordHash: "x"})
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	p, err := pg.CreatePrincipal(ctx, model.KindUser, model.NewPrincipal{Email: "next@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.PublicID != "000002" {
		t.Fatalf("failed insert consumed an id: got %s", p.PublicID)
	}
}

func TestRecordLoginFailureIntegration(t *testing.T) {
	pg := newIntegrationDB(t)
	ctx := context.Background()

	p, err := pg.CreatePrincipal(ctx, model.KindAdmin, model.NewPrincipal{Email: "a@example.com", PasswordHash: "x", Role: model.RoleSuperAdmin})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	policy := auth.DefaultLockoutPolicy()
	now := time.Now()
	var state auth.LockState
	for i := 0; i < auth.DefaultLockThreshold; i++ {
		state, err = pg.RecordLoginFailure(ctx, model.KindAdmin, p.ID, func(s auth.LockState) auth.LockState {
			next, _ := policy.Failure(s, now)
			return next
		})
		if err != nil {
			t.Fatalf("RecordLoginFailure: %v", err)
		}
	}
	if state.LockUntil == nil || state.RiskLevel != 1 {
		t.Fatalf("expected lock, got %+v", state)
	}

	if err := pg.RecordLoginSuccess(ctx, model.KindAdmin, p.ID, "10.0.0.1", now); err != nil {
		t.Fatalf("RecordLoginSuccess: %v", err)
	}
	got, err := pg.FindPrincipalByIdentifier(ctx, model.KindAdmin, "A@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.FailedAttempts != 0 || got.RiskLevel != 1 || got.LastLoginIP != "10.0.0.1" {
		t.Fatalf("unexpected state %+v", got)
	}

	if _, err := pg.FindPrincipalByID(ctx, model.KindUser, p.ID); err != pgx.ErrNoRows {
		t.Fatalf("admin id must not resolve in the users table, got %v", err)
	}
}

func TestFindPrincipalByIdentifierIntegration(t *testing.T) {
	pg := newIntegrationDB(t)
	ctx := context.Background()

	a, err := pg.CreatePrincipal(ctx, model.KindUser, model.NewPrincipal{Email: "a@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := pg.CreatePrincipal(ctx, model.KindUser, model.NewPrincipal{Phone: "+821012345678", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		identifier string
		want       int64
	}{
		{identifier: a.PublicID, want: a.ID},
		{identifier: "A@Example.com", want: a.ID},
		{identifier: b.PublicID, want: b.ID},
		{identifier: "+821012345678", want: b.ID},
	}
	for _, tt := range tests {
		got, err := pg.FindPrincipalByIdentifier(ctx, model.KindUser, tt.identifier)
		if err != nil {
			t.Fatalf("find %q: %v", tt.identifier, err)
		}
		if got.ID != tt.want {
			t.Fatalf("find %q = id %d, want %d", tt.identifier, got.ID, tt.want)
		}
	}

	if _, err := pg.FindPrincipalByIdentifier(ctx, model.KindUser, "guest"); !IsNoRows(err) {
		t.Fatalf("expected no rows, got %v", err)
	}
}
