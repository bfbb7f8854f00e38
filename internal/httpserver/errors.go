package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/apperr"
)

// Validator plugs go-playground/validator into echo's Context.Validate.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (cv *Validator) Validate(i any) error {
	if err := cv.v.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}

// bind decodes the request into req and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid body: %v", apperr.ErrValidation, err)
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a uuid", apperr.ErrValidation, what)
	}
	return id, nil
}

// fail logs err under event and converts it to an HTTP error. Client errors
// carry the error text, server errors only the reason.
func fail(l *slog.Logger, event, reason string, err error) error {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "reason", reason, "error", err)
		return echo.NewHTTPError(status, reason)
	}
	l.Warn(event, "status", status, "reason", reason, "error", err)
	return echo.NewHTTPError(status, err.Error())
}
