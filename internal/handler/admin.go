package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitefolio/backend/internal/auth"
	"github.com/sitefolio/backend/internal/model"
	"github.com/sitefolio/backend/internal/service"
)

type AdminHandler struct {
	svc *service.AuthService
}

func NewAdminHandler(svc *service.AuthService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// CreateAdmin godoc
// @Summary Create an admin
// @Description Super admins only.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.CreateAdminRequest true "New admin"
// @Success 201 {object} model.PrincipalResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/v1/admin/admins [post]
func (h *AdminHandler) CreateAdmin(c *gin.Context) {
	var req model.CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	created, err := h.svc.CreateAdmin(c.Request.Context(), GetAuthUser(c), service.CreateAdminInput{
		Email:    req.Email,
		Nickname: req.Nickname,
		Password: req.Password,
		Role:     req.Role,
		IP:       c.ClientIP(),
	})
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.PrincipalResponse{Principal: created.View()})
}

// UnlockPrincipal godoc
// @Summary Unlock a locked account
// @Description Clears the lock and failure count. The risk level is kept.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param kind path string true "user or admin"
// @Param publicId path string true "Public id"
// @Success 200 {object} model.PrincipalResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/admin/principals/{kind}/{publicId}/unlock [post]
func (h *AdminHandler) UnlockPrincipal(c *gin.Context) {
	kind, err := model.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
		return
	}

	p, err := h.svc.UnlockPrincipal(c.Request.Context(), GetAuthUser(c), kind, c.Param("publicId"), c.ClientIP())
	if err != nil {
		if errors.Is(err, auth.ErrNoSuchPrincipal) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.PrincipalResponse{Principal: p.View()})
}

// SetPrincipalStatus godoc
// @Summary Change an account's status
// @Description active, inactive or suspended. Non-active accounts cannot log in or refresh.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "user or admin"
// @Param publicId path string true "Public id"
// @Param request body model.SetStatusRequest true "New status"
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/admin/principals/{kind}/{publicId}/status [put]
func (h *AdminHandler) SetPrincipalStatus(c *gin.Context) {
	kind, err := model.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
		return
	}
	var req model.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	if err := h.svc.SetPrincipalStatus(c.Request.Context(), GetAuthUser(c), kind, c.Param("publicId"), status, c.ClientIP()); err != nil {
		if errors.Is(err, auth.ErrNoSuchPrincipal) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: string(status)})
}

// ListAdminLogs godoc
// @Summary List the caller's admin audit log
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max entries (default 20, max 100)"
// @Success 200 {object} model.AdminLogsResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/v1/admin/logs [get]
func (h *AdminHandler) ListAdminLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	logs, err := h.svc.ListAdminLogs(c.Request.Context(), GetAuthUser(c), limit)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	views := make([]model.AdminLogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, model.AdminLogView{
			ID:          l.ID,
			Type:        l.Type,
			Description: l.Description,
			Detail:      l.Detail,
			IP:          l.IP,
			CreatedAt:   l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, model.AdminLogsResponse{Logs: views})
}
