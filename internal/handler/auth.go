package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/sitefolio/backend/internal/auth"
	"github.com/sitefolio/backend/internal/model"
	"github.com/sitefolio/backend/internal/service"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register godoc
// @Summary Register a new user
// @Description Sign up when ALLOW_SIGNUP is true. Does not log in.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "E-mail or phone, nickname and password"
// @Success 201 {object} model.PrincipalResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	p, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Nickname: req.Nickname,
		Password: req.Password,
		IP:       c.ClientIP(),
	})
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.PrincipalResponse{Principal: p.View()})
}

// Login godoc
// @Summary Login
// @Description identifier is a public id (digits), e-mail (contains @) or E.164 phone (+...). kind defaults to user.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Kind, identifier and password"
// @Success 200 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 423 {object} model.AuthLockedResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	kind, err := model.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tokens, _, err := h.svc.Login(c.Request.Context(), service.LoginInput{
		Kind:       kind,
		Identifier: req.Identifier,
		Password:   req.Password,
		Device:     deviceFingerprint(c),
		IP:         c.ClientIP(),
	})
	if err != nil {
		writeAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, tokens.RefreshToken)
	c.JSON(http.StatusOK, model.AuthResponse{
		AccessToken: tokens.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   tokens.ExpiresIn,
	})
}

// Refresh godoc
// @Summary Refresh access token
// @Description Uses and rotates the refresh token cookie (sitefolio_refresh).
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.svc.CookieConfig().Name)
	tokens, err := h.svc.Refresh(c.Request.Context(), refreshToken, deviceFingerprint(c), c.ClientIP())
	if err != nil {
		// 회전에 실패한 토큰은 더 이상 쓸 수 없으므로 쿠키도 정리
		if !errors.Is(err, auth.ErrStoreUnavailable) {
			h.clearRefreshCookie(c)
		}
		writeTokenError(c, err, "invalid refresh token")
		return
	}

	h.setRefreshCookie(c, tokens.RefreshToken)
	c.JSON(http.StatusOK, model.AuthResponse{
		AccessToken: tokens.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   tokens.ExpiresIn,
	})
}

// Logout godoc
// @Summary Logout
// @Description Revokes refresh token (if present) and clears cookie.
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthLogoutResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.svc.CookieConfig().Name)
	if err := h.svc.Logout(c.Request.Context(), refreshToken, c.ClientIP()); err != nil {
		sentry.CaptureException(err)
	}
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, model.AuthLogoutResponse{Status: "logged_out"})
}

// Config godoc
// @Summary Get auth config
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthConfigResponse
// @Router /api/v1/auth/config [get]
func (h *AuthHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, model.AuthConfigResponse{
		AllowSignup: h.svc.AllowSignup(),
	})
}

// Me godoc
// @Summary Get current principal
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.AuthMeResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 423 {object} model.AuthLockedResponse
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	p, err := h.svc.Me(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, auth.ErrNoSuchPrincipal) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AuthMeResponse{Principal: p.View()})
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, token, cfg.MaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
}

// deviceFingerprint binds a refresh token to the client that obtained it.
func deviceFingerprint(c *gin.Context) string {
	return c.Request.UserAgent()
}

// writeAuthError maps service errors to responses. Unknown principal and
// wrong password look identical to the client.
func writeAuthError(c *gin.Context, err error) {
	var locked *auth.AccountLockedError
	switch {
	case errors.As(err, &locked):
		retryAfter := int64(math.Ceil(locked.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		c.JSON(http.StatusLocked, model.AuthLockedResponse{
			Error:      "account locked",
			RetryAfter: retryAfter,
		})
	case errors.Is(err, auth.ErrNoSuchPrincipal), errors.Is(err, auth.ErrBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, auth.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, auth.ErrStoreUnavailable):
		sentry.CaptureException(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// 클라이언트가 끊었거나 요청 시간 초과: 서버 오류가 아니므로 Sentry 제외
		c.AbortWithStatus(http.StatusRequestTimeout)
	default:
		sentry.CaptureException(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}

// writeTokenError handles token failures. Expiry is the only case a client
// can act on, so every other failure gets the same generic message.
func writeTokenError(c *gin.Context, err error, generic string) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token_expired"})
	case errors.Is(err, auth.ErrTokenNotFound),
		errors.Is(err, auth.ErrDeviceMismatch),
		errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenSignatureInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": generic})
	default:
		writeAuthError(c, err)
	}
}
