package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/storefront/pkg/logging"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/middleware/metrics"
)

type Deps struct {
	ProductHandler *ProductHTTP
	OrderHandler   *OrderHTTP
	UserHandler    *UserHTTP
	JWTSecret      []byte

	// AuthRateLimit is the requests per second allowed per client on the
	// login, register and password routes. Zero disables the limit.
	AuthRateLimit float64
	Ready         func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		if err := d.Ready(c.Request().Context()); err != nil {
			logging.FromContext(c.Request().Context()).Error("readiness_failed", "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", metrics.Handler())

	authMW := middleware.NewAuthenticator(d.JWTSecret)
	api := e.Group("/api/v1")

	var limited []echo.MiddlewareFunc
	if d.AuthRateLimit > 0 {
		store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(d.AuthRateLimit),
			Burst:     max(1, int(d.AuthRateLimit)),
			ExpiresIn: 3 * time.Minute,
		})
		limited = append(limited, echomw.RateLimiter(store))
	}

	p := d.ProductHandler
	api.GET("/products", p.GetProducts)
	api.GET("/products/search", p.SearchProducts)
	api.GET("/product/:id", p.GetProduct)
	api.GET("/reviews", p.GetReviews)
	api.PUT("/review", p.UpsertReview, authMW.RequireAuth)
	api.DELETE("/reviews", p.DeleteReview, authMW.RequireAuth)

	o := d.OrderHandler
	api.POST("/order/new", o.CreateOrder, authMW.RequireAuth)
	api.GET("/order/:id", o.GetOrder, authMW.RequireAuth)
	api.GET("/orders/me", o.MyOrders, authMW.RequireAuth)

	u := d.UserHandler
	api.POST("/register", u.Register, limited...)
	api.POST("/login", u.Login, limited...)
	api.GET("/logout", u.Logout)
	api.POST("/password/forgot", u.ForgotPassword, limited...)
	api.PUT("/password/reset/:token", u.ResetPassword, limited...)

	api.GET("/me", u.Me, authMW.RequireAuth)
	api.PUT("/password/update", u.UpdatePassword, authMW.RequireAuth)
	api.PUT("/me/update", u.UpdateProfile, authMW.RequireAuth)

	admin := api.Group("/admin", authMW.RequireAdmin)
	admin.GET("/products", p.AdminProducts)
	admin.POST("/product/new", p.CreateProduct)
	admin.PUT("/product/:id", p.UpdateProduct)
	admin.DELETE("/product/:id", p.DeleteProduct)

	admin.GET("/orders", o.AllOrders)
	admin.PUT("/order/:id", o.UpdateOrder)
	admin.DELETE("/order/:id", o.DeleteOrder)

	admin.GET("/users", u.ListUsers)
	admin.GET("/user/:id", u.GetUser)
	admin.PUT("/user/:id", u.UpdateUser)
	admin.DELETE("/user/:id", u.DeleteUser)
}
