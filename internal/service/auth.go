// 인증 및 세션 수명주기 비즈니스 로직
//
// 로그인 흐름:
//  1. identifier(publicId / email / phone)로 principal 조회
//  2. 상태 확인 (active 아니면 거부)
//  3. 잠금 확인 (lockUntil > now 이면 비밀번호 검증 없이 거부)
//  4. 비밀번호 검증
//     - 실패: LockoutPolicy로 실패 횟수 증가, 임계값 도달 시 잠금
//     - 성공: 실패 횟수 초기화 (riskLevel 유지), access/refresh token 발급
//
// refresh 흐름: refresh token을 회전(rotate)시키고 access token 재발급
// 기기 지문이 다르면 refresh token을 즉시 폐기

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sitefolio/backend/internal/auth"
	"github.com/sitefolio/backend/internal/db"
	"github.com/sitefolio/backend/internal/model"
)

const (
	minPasswordLength = 10
	maxPasswordLength = 72
	maxNicknameLength = 10
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

type principalStore interface {
	CreatePrincipal(ctx context.Context, kind model.Kind, in model.NewPrincipal) (*model.Principal, error)
	FindPrincipalByIdentifier(ctx context.Context, kind model.Kind, identifier string) (*model.Principal, error)
	FindPrincipalByID(ctx context.Context, kind model.Kind, id int64) (*model.Principal, error)
	RecordLoginFailure(ctx context.Context, kind model.Kind, id int64, fn func(auth.LockState) auth.LockState) (auth.LockState, error)
	RecordLoginSuccess(ctx context.Context, kind model.Kind, id int64, ip string, at time.Time) error
	UnlockPrincipal(ctx context.Context, kind model.Kind, publicID string) (*model.Principal, error)
	SetPrincipalStatus(ctx context.Context, kind model.Kind, publicID string, status model.Status) error
	CountPrincipals(ctx context.Context, kind model.Kind) (int64, error)
	InsertAdminLog(ctx context.Context, entry model.AdminLog) error
	ListAdminLogs(ctx context.Context, adminID int64, limit int) ([]model.AdminLog, error)
}

type refreshStore interface {
	Register(ctx context.Context, token string, rec model.RefreshRecord) error
	Rotate(ctx context.Context, oldToken, device string) (string, model.RefreshRecord, error)
	Lookup(ctx context.Context, token string) (model.RefreshRecord, error)
	Revoke(ctx context.Context, token string) error
}

type securityNotifier interface {
	NotifyAsync(ev model.SecurityEvent)
}

type LoginInput struct {
	Kind       model.Kind
	Identifier string
	Password   string
	Device     string
	IP         string
}

type RegisterInput struct {
	Email    string
	Phone    string
	Nickname string
	Password string
	IP       string
}

type AuthService struct {
	store       principalStore
	refresh     refreshStore
	notifier    securityNotifier
	tokens      *auth.TokenIssuer
	hasher      *auth.Hasher
	policy      auth.LockoutPolicy
	allowSignup bool
	cookieCfg   CookieConfig
	now         func() time.Time
}

func NewAuthService(store principalStore, refresh refreshStore, notifier securityNotifier, settings AuthSettings) (*AuthService, error) {
	return newAuthService(store, refresh, notifier, settings, time.Now)
}

func newAuthService(store principalStore, refresh refreshStore, notifier securityNotifier, settings AuthSettings, now func() time.Time) (*AuthService, error) {
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Keys:        settings.SigningKeys,
		ActiveKeyID: settings.ActiveKeyID,
		Issuer:      settings.Issuer,
		AccessTTL:   settings.AccessTTL,
		Now:         now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}

	hasher, err := auth.NewHasher(settings.BcryptCost, settings.HashConcurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}

	return &AuthService{
		store:       store,
		refresh:     refresh,
		notifier:    notifier,
		tokens:      tokens,
		hasher:      hasher,
		policy:      settings.Lockout,
		allowSignup: settings.AllowSignup,
		cookieCfg:   settings.Cookie,
		now:         now,
	}, nil
}

func (s *AuthService) AllowSignup() bool {
	return s.allowSignup
}

func (s *AuthService) CookieConfig() CookieConfig {
	return s.cookieCfg
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.Principal, error) {
	if !s.allowSignup {
		return nil, ErrForbidden
	}
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" {
		nickname = "guest"
	}

	p, err := s.store.CreatePrincipal(ctx, model.KindUser, model.NewPrincipal{
		Email:        in.Email,
		Phone:        in.Phone,
		Nickname:     nickname,
		PasswordHash: hash,
		RegisterIP:   in.IP,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, auth.Unavailable("create user", err)
	}

	log.Printf("[Auth] Registered user %s", p.PublicID)
	return p, nil
}

// Login checks credentials and, on success, issues an access token and a
// refresh token bound to in.Device.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (model.Tokens, *model.Principal, error) {
	if strings.TrimSpace(in.Identifier) == "" || in.Password == "" || len(in.Password) > maxPasswordLength {
		return model.Tokens{}, nil, ErrInvalidInput
	}

	p, err := s.store.FindPrincipalByIdentifier(ctx, in.Kind, in.Identifier)
	if err != nil {
		if db.IsNoRows(err) {
			s.hasher.Burn(ctx, in.Password)
			return model.Tokens{}, nil, auth.ErrNoSuchPrincipal
		}
		return model.Tokens{}, nil, auth.Unavailable("find principal", err)
	}

	if p.Status != model.StatusActive {
		return model.Tokens{}, nil, auth.ErrAccountDisabled
	}

	now := s.now()
	if locked, remaining := s.policy.Locked(lockStateOf(p), now); locked {
		return model.Tokens{}, nil, &auth.AccountLockedError{Until: *p.LockUntil, RetryAfter: remaining}
	}

	ok, err := s.hasher.Verify(ctx, in.Password, p.PasswordHash)
	if err != nil {
		return model.Tokens{}, nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return model.Tokens{}, nil, s.recordFailure(ctx, p, in.IP, now)
	}

	if err := s.store.RecordLoginSuccess(ctx, p.Kind, p.ID, in.IP, now); err != nil {
		return model.Tokens{}, nil, auth.Unavailable("record login", err)
	}
	p.FailedAttempts = 0
	p.LastLoginTime = &now
	p.LastLoginIP = in.IP

	tokens, err := s.issueTokens(ctx, p, in.Device)
	if err != nil {
		return model.Tokens{}, nil, err
	}

	if p.Kind == model.KindAdmin {
		s.audit(ctx, model.AdminLog{
			AdminID:     p.ID,
			PublicID:    p.PublicID,
			Type:        model.AdminLogLogin,
			Description: "admin login",
			Detail:      map[string]any{"loginTime": now.UTC().Format(time.RFC3339), "loginIP": in.IP},
			IP:          in.IP,
		})
	}

	return tokens, p, nil
}

// recordFailure counts a failed attempt under the principal's row lock.
// If another request locked the account in the meantime the attempt is
// not counted again.
func (s *AuthService) recordFailure(ctx context.Context, p *model.Principal, ip string, now time.Time) error {
	var outcome error
	justLocked := false

	_, err := s.store.RecordLoginFailure(ctx, p.Kind, p.ID, func(st auth.LockState) auth.LockState {
		if locked, remaining := s.policy.Locked(st, now); locked {
			outcome = &auth.AccountLockedError{Until: *st.LockUntil, RetryAfter: remaining}
			return st
		}
		next, result := s.policy.Failure(st, now)
		outcome = result
		justLocked = errors.Is(result, auth.ErrAccountLocked)
		return next
	})
	if err != nil {
		return auth.Unavailable("record login failure", err)
	}

	if justLocked {
		var locked *auth.AccountLockedError
		if errors.As(outcome, &locked) {
			log.Printf("[Auth] Locked %s %s for %s", p.Kind, p.PublicID, locked.RetryAfter)
			s.notify(model.SecurityEvent{
				Type:       model.EventAccountLocked,
				Kind:       p.Kind,
				PublicID:   p.PublicID,
				IP:         ip,
				LockedFor:  locked.RetryAfter,
				OccurredAt: now,
			})
		}
	}
	return outcome
}

// Refresh rotates the refresh token and issues a new access token. The
// presented token is unusable afterwards whatever the outcome.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, device, ip string) (model.Tokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return model.Tokens{}, auth.ErrTokenNotFound
	}

	newRefresh, rec, err := s.refresh.Rotate(ctx, refreshToken, device)
	if err != nil {
		if errors.Is(err, auth.ErrDeviceMismatch) {
			log.Printf("[Auth] Refresh token presented from a different device; revoked (kind=%s id=%s ip=%s)", rec.Kind, rec.PublicID, ip)
			s.notify(model.SecurityEvent{
				Type:       model.EventRefreshReplay,
				Kind:       rec.Kind,
				PublicID:   rec.PublicID,
				IP:         ip,
				OccurredAt: s.now(),
			})
		}
		return model.Tokens{}, err
	}

	p, err := s.activePrincipal(ctx, rec.Kind, rec.PrincipalID)
	if err != nil {
		_ = s.refresh.Revoke(ctx, newRefresh)
		if db.IsNoRows(err) {
			return model.Tokens{}, auth.ErrTokenNotFound
		}
		return model.Tokens{}, err
	}

	access, expiresAt, err := s.tokens.IssueAccessToken(subjectOf(p), auth.Expiry{})
	if err != nil {
		_ = s.refresh.Revoke(ctx, newRefresh)
		return model.Tokens{}, err
	}

	return model.Tokens{
		AccessToken:  access,
		RefreshToken: newRefresh,
		ExpiresIn:    int64(expiresAt.Sub(s.now()).Seconds()),
	}, nil
}

// Logout revokes the refresh token. Unknown or already revoked tokens are
// not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken, ip string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	rec, lookupErr := s.refresh.Lookup(ctx, refreshToken)
	if err := s.refresh.Revoke(ctx, refreshToken); err != nil {
		return err
	}

	if lookupErr == nil && rec.Kind == model.KindAdmin {
		s.audit(ctx, model.AdminLog{
			AdminID:     rec.PrincipalID,
			PublicID:    rec.PublicID,
			Type:        model.AdminLogLogout,
			Description: "admin logout",
			IP:          ip,
		})
	}
	return nil
}

// VerifyAccessToken is stateless: it never touches a store.
func (s *AuthService) VerifyAccessToken(token string) (*model.AuthUser, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}
	kind, err := model.ParseKind(claims.Kind)
	if err != nil {
		return nil, auth.ErrTokenMalformed
	}
	return &model.AuthUser{
		ID:       claims.PrincipalID(),
		PublicID: claims.PublicID,
		Kind:     kind,
	}, nil
}

// Me loads the principal behind a verified access token.
func (s *AuthService) Me(ctx context.Context, user *model.AuthUser) (*model.Principal, error) {
	p, err := s.activePrincipal(ctx, user.Kind, user.ID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, auth.ErrNoSuchPrincipal
		}
		return nil, err
	}
	return p, nil
}

// activePrincipal returns the principal only if it may hold a session.
func (s *AuthService) activePrincipal(ctx context.Context, kind model.Kind, id int64) (*model.Principal, error) {
	p, err := s.store.FindPrincipalByID(ctx, kind, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, err
		}
		return nil, auth.Unavailable("find principal", err)
	}
	if p.Status != model.StatusActive {
		return nil, auth.ErrAccountDisabled
	}
	if locked, remaining := s.policy.Locked(lockStateOf(p), s.now()); locked {
		return nil, &auth.AccountLockedError{Until: *p.LockUntil, RetryAfter: remaining}
	}
	return p, nil
}

func (s *AuthService) issueTokens(ctx context.Context, p *model.Principal, device string) (model.Tokens, error) {
	access, expiresAt, err := s.tokens.IssueAccessToken(subjectOf(p), auth.Expiry{})
	if err != nil {
		return model.Tokens{}, err
	}

	refreshToken, err := auth.NewRefreshToken()
	if err != nil {
		return model.Tokens{}, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.refresh.Register(ctx, refreshToken, model.RefreshRecord{
		PrincipalID: p.ID,
		Kind:        p.Kind,
		PublicID:    p.PublicID,
		Device:      device,
		Valid:       true,
	}); err != nil {
		return model.Tokens{}, err
	}

	return model.Tokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(expiresAt.Sub(s.now()).Seconds()),
	}, nil
}

func (s *AuthService) audit(ctx context.Context, entry model.AdminLog) {
	if err := s.store.InsertAdminLog(ctx, entry); err != nil {
		log.Printf("[Auth] Failed to write admin log %s for %s: %v", entry.Type, entry.PublicID, err)
	}
}

func (s *AuthService) notify(ev model.SecurityEvent) {
	if s.notifier != nil {
		s.notifier.NotifyAsync(ev)
	}
}

func lockStateOf(p *model.Principal) auth.LockState {
	return auth.LockState{
		FailedAttempts: p.FailedAttempts,
		RiskLevel:      p.RiskLevel,
		LockUntil:      p.LockUntil,
	}
}

func subjectOf(p *model.Principal) auth.Subject {
	return auth.Subject{
		PrincipalID: p.ID,
		PublicID:    p.PublicID,
		Kind:        string(p.Kind),
	}
}

func validateRegistration(in RegisterInput) error {
	email := strings.TrimSpace(in.Email)
	phone := strings.TrimSpace(in.Phone)
	if email == "" && phone == "" {
		return ErrInvalidInput
	}
	if email != "" && (!strings.Contains(email, "@") || len(email) > 100) {
		return ErrInvalidInput
	}
	if phone != "" && !model.ValidPhone(phone) {
		return ErrInvalidInput
	}
	if len([]rune(strings.TrimSpace(in.Nickname))) > maxNicknameLength {
		return ErrInvalidInput
	}
	if len(in.Password) < minPasswordLength || len(in.Password) > maxPasswordLength {
		return ErrInvalidInput
	}
	return nil
}
