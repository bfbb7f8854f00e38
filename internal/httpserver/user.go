package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

type UserHTTP struct {
	Svc *service.UserService
}

// startSession sets the session cookie and returns the user with the token.
func startSession(c echo.Context, status int, s *service.Session) error {
	c.SetCookie(tokens.CreateCookie(s.Token, s.Expires))
	return c.JSON(status, transport.AuthResponse{User: s.User, Token: s.Token})
}

func (h *UserHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.register")

	var req transport.RegisterRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "register_failed", "invalid body", err)
	}
	s, err := h.Svc.Register(ctx, req)
	if err != nil {
		return fail(l, "register_failed", "cannot register user", err)
	}
	l.Info("register_success", "user_id", s.User.ID)
	return startSession(c, http.StatusCreated, s)
}

func (h *UserHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.login")

	var req transport.LoginRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "login_failed", "please enter email and password", err)
	}
	s, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(l, "login_failed", "cannot login", err)
	}
	return startSession(c, http.StatusOK, s)
}

func (h *UserHTTP) Logout(c echo.Context) error {
	c.SetCookie(tokens.DeleteCookie())
	return c.JSON(http.StatusOK, transport.Message{Message: "logged out"})
}

func (h *UserHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.forgot_password")

	var req transport.ForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "forgot_password_failed", "invalid body", err)
	}
	if err := h.Svc.ForgotPassword(ctx, req.Email); err != nil {
		return fail(l, "forgot_password_failed", "cannot send reset email", err)
	}
	return c.JSON(http.StatusOK, transport.Message{Message: "email sent to " + req.Email})
}

func (h *UserHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.reset_password")

	var req transport.ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "reset_password_failed", "invalid body", err)
	}
	s, err := h.Svc.ResetPassword(ctx, c.Param("token"), req)
	if err != nil {
		return fail(l, "reset_password_failed", "cannot reset password", err)
	}
	return startSession(c, http.StatusOK, s)
}

func (h *UserHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.me")

	userID, _ := middleware.UserID(c)
	u, err := h.Svc.Me(ctx, userID)
	if err != nil {
		return fail(l, "me_failed", "cannot load user", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"user": u})
}

func (h *UserHTTP) UpdatePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.update_password")

	var req transport.UpdatePasswordRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "update_password_failed", "invalid body", err)
	}
	userID, _ := middleware.UserID(c)

	s, err := h.Svc.UpdatePassword(ctx, userID, req)
	if err != nil {
		return fail(l, "update_password_failed", "cannot update password", err)
	}
	return startSession(c, http.StatusOK, s)
}

func (h *UserHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.update_profile")

	var req transport.UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "update_profile_failed", "invalid body", err)
	}
	userID, _ := middleware.UserID(c)

	u, err := h.Svc.UpdateProfile(ctx, userID, req)
	if err != nil {
		return fail(l, "update_profile_failed", "cannot update profile", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"user": u})
}

func (h *UserHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.list_users")

	users, err := h.Svc.ListUsers(ctx)
	if err != nil {
		return fail(l, "list_users_failed", "cannot list users", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"users": users})
}

func (h *UserHTTP) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.get_user")

	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return fail(l, "get_user_failed", "id is not a uuid", err)
	}
	u, err := h.Svc.GetUser(ctx, id)
	if err != nil {
		return fail(l, "get_user_failed", "cannot get user", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"user": u})
}

func (h *UserHTTP) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.update_user")

	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return fail(l, "update_user_failed", "id is not a uuid", err)
	}
	var req transport.AdminUpdateUserRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "update_user_failed", "invalid body", err)
	}

	u, err := h.Svc.AdminUpdateUser(ctx, id, req)
	if err != nil {
		return fail(l, "update_user_failed", "cannot update user", err)
	}
	l.Info("update_user_success", "user_id", u.ID, "role", u.Role)
	return c.JSON(http.StatusOK, map[string]any{"user": u})
}

func (h *UserHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.delete_user")

	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return fail(l, "delete_user_failed", "id is not a uuid", err)
	}
	if err := h.Svc.DeleteUser(ctx, id); err != nil {
		return fail(l, "delete_user_failed", "cannot delete user", err)
	}
	l.Info("delete_user_success", "user_id", id)
	return c.JSON(http.StatusOK, transport.Message{Message: "user deleted"})
}
