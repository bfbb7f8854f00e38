package middleware

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const (
	ContextKeyToken  = "token"
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "role"

	RoleAdmin = "admin"
)

type Authenticator struct {
	JWTSecret []byte
}

func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{JWTSecret: secret}
}

// RequireAuth accepts the access token from the cookie or a bearer header
// and stores the caller's id and role on the context.
func (a *Authenticator) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		SigningKey:    a.JWTSecret,
		SigningMethod: "HS256",
		ContextKey:    ContextKeyToken,
		TokenLookup:   "cookie:" + tokens.CookieName + ",header:Authorization:Bearer ",
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(tokens.AccessClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if errors.Is(err, echojwt.ErrJWTMissing) {
				return echo.NewHTTPError(http.StatusUnauthorized, "login required")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		},
	})
	return verify(func(c echo.Context) error {
		tkn, ok := c.Get(ContextKeyToken).(*jwt.Token)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
		claims, ok := tkn.Claims.(*tokens.AccessClaims)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
		c.Set(ContextKeyUserID, id)
		c.Set(ContextKeyRole, claims.Role)
		return next(c)
	})
}

func (a *Authenticator) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return a.RequireAuth(func(c echo.Context) error {
		if !IsAdmin(c) {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	})
}

func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(ContextKeyUserID).(uuid.UUID)
	return id, ok
}

func IsAdmin(c echo.Context) bool {
	role, _ := c.Get(ContextKeyRole).(string)
	return role == RoleAdmin
}
