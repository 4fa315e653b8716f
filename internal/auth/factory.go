package auth

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	adomain "github.com/errolitolopez/user-access-manager/internal/audit/domain"
	ausvc "github.com/errolitolopez/user-access-manager/internal/audit/service"
	ctrl "github.com/errolitolopez/user-access-manager/internal/auth/controller"
	mw "github.com/errolitolopez/user-access-manager/internal/auth/middleware"
	svc "github.com/errolitolopez/user-access-manager/internal/auth/service"
	"github.com/errolitolopez/user-access-manager/internal/config"
	"github.com/errolitolopez/user-access-manager/internal/logger"
	"github.com/errolitolopez/user-access-manager/internal/security/token"
	sdomain "github.com/errolitolopez/user-access-manager/internal/settings/domain"
	urepo "github.com/errolitolopez/user-access-manager/internal/users/repository"
)

// Registrar wires the authentication slice: repository, orchestrator,
// token service, audit cooldown, HTTP controller, and the JWT guard
// other slices can reuse.
type Registrar struct {
	ctrl  *ctrl.Controller
	jwtMW echo.MiddlewareFunc
}

func NewRegistrar(pg *pgxpool.Pool, settings sdomain.Service, tokens *token.Service, cooldown *ausvc.Cooldown, pub adomain.Publisher, cfg config.Config) *Registrar {
	users := urepo.New(pg)
	authSvc := svc.New(users, settings, tokens, cooldown, pub, logger.Component(logger.New(cfg.AppEnv), "auth"))
	jwtMW := mw.NewJWT(tokens, cooldown, pub)
	authCtrl := ctrl.New(authSvc, users).WithJWT(jwtMW)
	return &Registrar{ctrl: authCtrl, jwtMW: jwtMW}
}

func (r *Registrar) Register(e *echo.Echo) {
	r.ctrl.Register(e)
}

// JWT exposes the bearer-token guard for routes outside this slice.
func (r *Registrar) JWT() echo.MiddlewareFunc { return r.jwtMW }
