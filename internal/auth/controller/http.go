package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/errolitolopez/user-access-manager/internal/auth/domain"
	"github.com/errolitolopez/user-access-manager/internal/platform/validation"
	"github.com/errolitolopez/user-access-manager/internal/security/identity"
	udomain "github.com/errolitolopez/user-access-manager/internal/users/domain"
)

type Controller struct {
	svc   domain.Service
	users udomain.Repository
	jwtMW echo.MiddlewareFunc
}

func New(svc domain.Service, users udomain.Repository) *Controller {
	return &Controller{svc: svc, users: users}
}

// WithJWT sets the middleware guarding authenticated routes.
func (h *Controller) WithJWT(mw echo.MiddlewareFunc) *Controller { h.jwtMW = mw; return h }

// Register mounts auth routes under /api/v1.
func (h *Controller) Register(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/auth/login", h.login)
	if h.jwtMW != nil {
		g.GET("/me", h.me, h.jwtMW)
	}
}

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Controller) login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}

	res, err := h.svc.Authenticate(c.Request().Context(), domain.AuthenticateInput{
		Username:   req.Username,
		Password:   req.Password,
		ClientAddr: identity.ClientAddress(c.Request()),
	})
	if err != nil {
		return c.JSON(statusFor(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Controller) me(c echo.Context) error {
	actor, ok := identity.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing subject"})
	}
	u, err := h.users.FindByUsername(c.Request().Context(), actor)
	if errors.Is(err, udomain.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unknown subject"})
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": domain.ErrUnavailable.Error()})
	}
	return c.JSON(http.StatusOK, u.Summary())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAccountExpired),
		errors.Is(err, domain.ErrAccountDisabled),
		errors.Is(err, domain.ErrAccountLocked):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
