package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sitefolio/backend/internal/auth"
	"github.com/sitefolio/backend/internal/model"
)

func seedAdmin(t *testing.T, env *testEnv, email string, role int) (*model.Principal, *model.AuthUser) {
	t.Helper()
	hash, err := env.svc.hasher.Hash(context.Background(), "admin-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	p, err := env.store.CreatePrincipal(context.Background(), model.KindAdmin, model.NewPrincipal{
		Email:        email,
		Nickname:     "admin",
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return p, &model.AuthUser{ID: p.ID, PublicID: p.PublicID, Kind: model.KindAdmin}
}

func TestAdminLoginAndLogoutAreAudited(t *testing.T) {
	env := newTestEnv(t)
	seedAdmin(t, env, "root@example.com", model.RoleSuperAdmin)

	tokens, p, err := env.svc.Login(context.Background(), LoginInput{
		Kind:       model.KindAdmin,
		Identifier: "root@example.com",
		Password:   "admin-password",
		Device:     "Mozilla/5.0",
		IP:         "10.0.0.2",
	})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if p.Kind != model.KindAdmin || p.PublicID != "000001" {
		t.Fatalf("unexpected admin %+v", p)
	}
	if err := env.svc.Logout(context.Background(), tokens.RefreshToken, "10.0.0.2"); err != nil {
		t.Fatalf("logout: %v", err)
	}

	types := env.store.logTypes()
	if len(types) != 2 || types[0] != model.AdminLogLogin || types[1] != model.AdminLogLogout {
		t.Fatalf("unexpected admin log %v", types)
	}
}

func TestUserAndAdminSequencesAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "u@example.com", "password-123")
	admin, _ := seedAdmin(t, env, "a@example.com", model.RoleAdmin)

	if user.PublicID != "000001" || admin.PublicID != "000001" {
		t.Fatalf("each kind has its own sequence: user=%s admin=%s", user.PublicID, admin.PublicID)
	}
}

func TestCreateAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, super := seedAdmin(t, env, "root@example.com", model.RoleSuperAdmin)
	_, plain := seedAdmin(t, env, "ops@example.com", model.RoleAdmin)

	in := CreateAdminInput{Email: "new@example.com", Nickname: "newbie", Password: "password-123", Role: model.RoleAdmin}

	if _, err := env.svc.CreateAdmin(context.Background(), plain, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("plain admin should be forbidden, got %v", err)
	}
	userActor := &model.AuthUser{ID: super.ID, PublicID: super.PublicID, Kind: model.KindUser}
	if _, err := env.svc.CreateAdmin(context.Background(), userActor, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user should be forbidden, got %v", err)
	}

	created, err := env.svc.CreateAdmin(context.Background(), super, in)
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if created.PublicID != "000003" || created.Role != model.RoleAdmin {
		t.Fatalf("unexpected admin %+v", created)
	}
	if _, err := env.svc.CreateAdmin(context.Background(), super, in); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	logs, err := env.svc.ListAdminLogs(context.Background(), super, 10)
	if err != nil {
		t.Fatalf("ListAdminLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Type != model.AdminLogCreateAdmin || logs[0].Detail["newAdminId"] != "000003" {
		t.Fatalf("unexpected logs %+v", logs)
	}
}

func TestUnlockPrincipalKeepsRisk(t *testing.T) {
	env := newTestEnv(t)
	_, admin := seedAdmin(t, env, "root@example.com", model.RoleAdmin)
	user := env.register(t, "a@example.com", "password-123")

	for i := 0; i < auth.DefaultLockThreshold; i++ {
		_, _ = env.login("a@example.com", "wrong-password")
	}
	if _, err := env.login("a@example.com", "password-123"); !errors.Is(err, auth.ErrAccountLocked) {
		t.Fatalf("expected lock, got %v", err)
	}

	if _, err := env.svc.UnlockPrincipal(context.Background(), admin, model.KindUser, user.PublicID, "10.0.0.2"); err != nil {
		t.Fatalf("UnlockPrincipal: %v", err)
	}
	if _, err := env.login("a@example.com", "password-123"); err != nil {
		t.Fatalf("login after unlock: %v", err)
	}
	if stored := env.store.get(model.KindUser, user.PublicID); stored.RiskLevel != 1 {
		t.Fatalf("RiskLevel = %d, want 1", stored.RiskLevel)
	}

	if _, err := env.svc.UnlockPrincipal(context.Background(), admin, model.KindUser, "999999", ""); !errors.Is(err, auth.ErrNoSuchPrincipal) {
		t.Fatalf("expected ErrNoSuchPrincipal, got %v", err)
	}

	types := env.notifier.types()
	if len(types) != 2 || types[1] != model.EventAccountUnlocked {
		t.Fatalf("unexpected notifications %v", types)
	}
}

func TestSetPrincipalStatus(t *testing.T) {
	env := newTestEnv(t)
	_, admin := seedAdmin(t, env, "root@example.com", model.RoleAdmin)
	user := env.register(t, "a@example.com", "password-123")
	ctx := context.Background()

	if err := env.svc.SetPrincipalStatus(ctx, admin, model.KindUser, user.PublicID, model.StatusSuspended, "10.0.0.2"); err != nil {
		t.Fatalf("SetPrincipalStatus: %v", err)
	}
	if _, err := env.login("a@example.com", "password-123"); !errors.Is(err, auth.ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}

	if err := env.svc.SetPrincipalStatus(ctx, admin, model.KindUser, user.PublicID, model.StatusActive, "10.0.0.2"); err != nil {
		t.Fatalf("SetPrincipalStatus: %v", err)
	}
	if _, err := env.login("a@example.com", "password-123"); err != nil {
		t.Fatalf("login after reactivation: %v", err)
	}

	if err := env.svc.SetPrincipalStatus(ctx, admin, model.KindAdmin, admin.PublicID, model.StatusInactive, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin must not change own status, got %v", err)
	}
	if err := env.svc.SetPrincipalStatus(ctx, admin, model.KindUser, "999999", model.StatusInactive, ""); !errors.Is(err, auth.ErrNoSuchPrincipal) {
		t.Fatalf("expected ErrNoSuchPrincipal, got %v", err)
	}

	types := env.store.logTypes()
	if len(types) != 2 || types[0] != model.AdminLogSetStatus || types[1] != model.AdminLogSetStatus {
		t.Fatalf("unexpected admin log %v", types)
	}
}

func TestPlainAdminCannotOperateOnAdmins(t *testing.T) {
	env := newTestEnv(t)
	root, super := seedAdmin(t, env, "root@example.com", model.RoleSuperAdmin)
	ops, plain := seedAdmin(t, env, "ops@example.com", model.RoleAdmin)
	ctx := context.Background()

	if err := env.svc.SetPrincipalStatus(ctx, plain, model.KindAdmin, root.PublicID, model.StatusSuspended, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("plain admin suspending a super admin: expected ErrForbidden, got %v", err)
	}
	if got := env.store.get(model.KindAdmin, root.PublicID).Status; got != model.StatusActive {
		t.Fatalf("super admin status changed to %s", got)
	}
	if _, err := env.svc.UnlockPrincipal(ctx, plain, model.KindAdmin, root.PublicID, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("plain admin unlocking an admin: expected ErrForbidden, got %v", err)
	}

	// users are still fair game for a plain admin
	user := env.register(t, "a@example.com", "password-123")
	if err := env.svc.SetPrincipalStatus(ctx, plain, model.KindUser, user.PublicID, model.StatusInactive, ""); err != nil {
		t.Fatalf("plain admin on user: %v", err)
	}

	if err := env.svc.SetPrincipalStatus(ctx, super, model.KindAdmin, ops.PublicID, model.StatusSuspended, ""); err != nil {
		t.Fatalf("super admin on admin: %v", err)
	}
	if got := env.store.get(model.KindAdmin, ops.PublicID).Status; got != model.StatusSuspended {
		t.Fatalf("ops status = %s, want suspended", got)
	}
}

func TestEnsureAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.EnsureAdmin(ctx, "", "", ""); err != nil {
		t.Fatalf("EnsureAdmin without credentials: %v", err)
	}
	if n, _ := env.store.CountPrincipals(ctx, model.KindAdmin); n != 0 {
		t.Fatalf("no admin should be created, got %d", n)
	}

	if err := env.svc.EnsureAdmin(ctx, "root@example.com", "admin-password", ""); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if err := env.svc.EnsureAdmin(ctx, "other@example.com", "admin-password", ""); err != nil {
		t.Fatalf("EnsureAdmin second run: %v", err)
	}
	if n, _ := env.store.CountPrincipals(ctx, model.KindAdmin); n != 1 {
		t.Fatalf("expected exactly one admin, got %d", n)
	}
	if p := env.store.get(model.KindAdmin, "000001"); p.Role != model.RoleSuperAdmin {
		t.Fatalf("bootstrap admin should be super admin, got role %d", p.Role)
	}
}
