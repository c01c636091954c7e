package handler

import (
	"net/http"
	"strconv"
	"time"

	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/token"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /auth/sessions と管理者向け監査ログのHTTP
type SessionHandler struct {
	uc     *usecase.AuthUsecase
	tokens *token.Service
}

// DI
func NewSessionHandler(uc *usecase.AuthUsecase, tokens *token.Service) *SessionHandler {
	return &SessionHandler{uc: uc, tokens: tokens}
}

type RevokeAllRequest struct {
	// 指定すると今の端末のセッションだけ残す
	KeepRefreshToken string `json:"keep_refresh_token,omitempty"`
}

func (h *SessionHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/auth/sessions", middleware.AuthJWT(h.tokens))

	g.GET("", h.List)
	g.DELETE("/:id", h.Revoke)
	g.POST("/revoke-all", h.RevokeAll)

	admin := e.Group("/admin", middleware.AuthJWT(h.tokens), middleware.AdminRoleGuard())
	admin.GET("/audit-logs", h.ListAuditLogs)
}

// ListはGET /auth/sessions のハンドラ
func (h *SessionHandler) List(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
	}

	out, err := h.uc.ListSessions(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// RevokeはDELETE /auth/sessions/:id のハンドラ
func (h *SessionHandler) Revoke(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.RevokeSession(c.Request().Context(), userID, c.Param("id"), clientMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// RevokeAllはPOST /auth/sessions/revoke-all のハンドラ。
// keep_refresh_tokenを出せばその端末だけ生かす。
func (h *SessionHandler) RevokeAll(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req RevokeAllRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	exceptJTI := ""
	if req.KeepRefreshToken != "" {
		claims, err := h.tokens.Verify(c.Request().Context(), req.KeepRefreshToken, token.TypeRefresh)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid keep_refresh_token"})
		}
		// 他人のtokenで除外指定させない
		if owner, err := claims.UserID(); err != nil || owner != userID {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid keep_refresh_token"})
		}
		exceptJTI = claims.ID
	}

	out, err := h.uc.RevokeAllSessions(c.Request().Context(), userID, exceptJTI, clientMeta(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// ListAuditLogsはGET /admin/audit-logs のハンドラ（ADMIN限定）
func (h *SessionHandler) ListAuditLogs(c echo.Context) error {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
	}

	filter := repository.AuditLogFilter{Limit: limit, Offset: offset}

	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user_id"})
		}
		filter.UserID = &id
	}
	if v := c.QueryParam("action"); v != "" {
		action := model.AuditAction(v)
		filter.Action = &action
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
		}
		filter.CreatedFrom = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
		}
		filter.CreatedTo = &t
	}

	out, err := h.uc.ListAuditLogs(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
