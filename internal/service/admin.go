package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sitefolio/backend/internal/auth"
	"github.com/sitefolio/backend/internal/db"
	"github.com/sitefolio/backend/internal/model"
)

type CreateAdminInput struct {
	Email    string
	Nickname string
	Password string
	Role     int
	IP       string
}

// CreateAdmin is reserved for super admins. The acting admin is re-read from
// the store so a demoted or disabled admin cannot keep using an old token.
func (s *AuthService) CreateAdmin(ctx context.Context, actor *model.AuthUser, in CreateAdminInput) (*model.Principal, error) {
	if actor == nil || actor.Kind != model.KindAdmin {
		return nil, ErrForbidden
	}
	operator, err := s.activePrincipal(ctx, model.KindAdmin, actor.ID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if operator.Role != model.RoleSuperAdmin {
		return nil, ErrForbidden
	}

	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") || len(email) > 100 {
		return nil, ErrInvalidInput
	}
	if len(in.Password) < minPasswordLength || len(in.Password) > maxPasswordLength {
		return nil, ErrInvalidInput
	}
	if in.Role != model.RoleAdmin && in.Role != model.RoleSuperAdmin {
		return nil, ErrInvalidInput
	}
	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" || len([]rune(nickname)) > maxNicknameLength {
		return nil, ErrInvalidInput
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreatePrincipal(ctx, model.KindAdmin, model.NewPrincipal{
		Email:        email,
		Nickname:     nickname,
		PasswordHash: hash,
		Role:         in.Role,
		RegisterIP:   in.IP,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, auth.Unavailable("create admin", err)
	}

	s.audit(ctx, model.AdminLog{
		AdminID:     operator.ID,
		PublicID:    operator.PublicID,
		Type:        model.AdminLogCreateAdmin,
		Description: "create admin",
		Detail:      map[string]any{"newAdminId": created.PublicID, "role": created.Role},
		IP:          in.IP,
	})
	log.Printf("[Admin] %s created admin %s (role=%d)", operator.PublicID, created.PublicID, created.Role)
	return created, nil
}

// UnlockPrincipal clears a lock before it expires. The risk level stays.
func (s *AuthService) UnlockPrincipal(ctx context.Context, actor *model.AuthUser, kind model.Kind, publicID, ip string) (*model.Principal, error) {
	if actor == nil || actor.Kind != model.KindAdmin {
		return nil, ErrForbidden
	}
	operator, err := s.activePrincipal(ctx, model.KindAdmin, actor.ID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if strings.TrimSpace(publicID) == "" {
		return nil, ErrInvalidInput
	}
	if !canOperate(operator, kind) {
		return nil, ErrForbidden
	}

	p, err := s.store.UnlockPrincipal(ctx, kind, publicID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, auth.ErrNoSuchPrincipal
		}
		return nil, auth.Unavailable("unlock principal", err)
	}

	s.audit(ctx, model.AdminLog{
		AdminID:     operator.ID,
		PublicID:    operator.PublicID,
		Type:        model.AdminLogUnlock,
		Description: "unlock account",
		Detail:      map[string]any{"kind": string(kind), "publicId": p.PublicID},
		IP:          ip,
	})
	s.notify(model.SecurityEvent{
		Type:       model.EventAccountUnlocked,
		Kind:       kind,
		PublicID:   p.PublicID,
		IP:         ip,
		OccurredAt: s.now(),
	})
	return p, nil
}

// SetPrincipalStatus activates or disables an account. Disabled accounts
// fail login and refresh with ErrAccountDisabled; an admin cannot change
// their own status.
func (s *AuthService) SetPrincipalStatus(ctx context.Context, actor *model.AuthUser, kind model.Kind, publicID string, status model.Status, ip string) error {
	if actor == nil || actor.Kind != model.KindAdmin {
		return ErrForbidden
	}
	operator, err := s.activePrincipal(ctx, model.KindAdmin, actor.ID)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrForbidden
		}
		return err
	}
	if strings.TrimSpace(publicID) == "" {
		return ErrInvalidInput
	}
	if kind == model.KindAdmin && publicID == operator.PublicID {
		return ErrForbidden
	}
	if !canOperate(operator, kind) {
		return ErrForbidden
	}

	if err := s.store.SetPrincipalStatus(ctx, kind, publicID, status); err != nil {
		if db.IsNoRows(err) {
			return auth.ErrNoSuchPrincipal
		}
		return auth.Unavailable("set principal status", err)
	}

	s.audit(ctx, model.AdminLog{
		AdminID:     operator.ID,
		PublicID:    operator.PublicID,
		Type:        model.AdminLogSetStatus,
		Description: "set account status",
		Detail:      map[string]any{"kind": string(kind), "publicId": publicID, "status": string(status)},
		IP:          ip,
	})
	log.Printf("[Admin] %s set %s %s status=%s", operator.PublicID, kind, publicID, status)
	return nil
}

// 다른 관리자 계정은 superAdmin만 조작 가능
func canOperate(operator *model.Principal, target model.Kind) bool {
	return target != model.KindAdmin || operator.Role == model.RoleSuperAdmin
}

// ListAdminLogs returns the caller's own audit trail, newest first.
func (s *AuthService) ListAdminLogs(ctx context.Context, actor *model.AuthUser, limit int) ([]model.AdminLog, error) {
	if actor == nil || actor.Kind != model.KindAdmin {
		return nil, ErrForbidden
	}
	logs, err := s.store.ListAdminLogs(ctx, actor.ID, limit)
	if err != nil {
		return nil, auth.Unavailable("list admin logs", err)
	}
	return logs, nil
}

// EnsureAdmin seeds a super admin when the admins table is empty.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, nickname string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		log.Printf("[Admin] ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}

	count, err := s.store.CountPrincipals(ctx, model.KindAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	if strings.TrimSpace(nickname) == "" {
		nickname = "admin"
	}
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return err
	}
	created, err := s.store.CreatePrincipal(ctx, model.KindAdmin, model.NewPrincipal{
		Email:        email,
		Nickname:     nickname,
		PasswordHash: hash,
		Role:         model.RoleSuperAdmin,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	log.Printf("[Admin] Bootstrap super admin created (%s)", created.PublicID)
	return nil
}
