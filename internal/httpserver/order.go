package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	var req transport.CreateOrderRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "create_order_failed", "invalid body", err)
	}
	userID, _ := middleware.UserID(c)

	o, err := h.Svc.CreateOrder(ctx, userID, req)
	if err != nil {
		return fail(l, "create_order_failed", "cannot create order", err)
	}
	l.Info("create_order_success", "order_id", o.ID)
	return c.JSON(http.StatusCreated, o)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return fail(l, "get_order_failed", "id is not a uuid", err)
	}
	userID, _ := middleware.UserID(c)

	o, err := h.Svc.GetOrder(ctx, id, userID, middleware.IsAdmin(c))
	if err != nil {
		return fail(l, "get_order_failed", "cannot get order", err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) MyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.my_orders")

	userID, _ := middleware.UserID(c)
	orders, err := h.Svc.MyOrders(ctx, userID)
	if err != nil {
		return fail(l, "my_orders_failed", "cannot list orders", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"orders": orders})
}

func (h *OrderHTTP) AllOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.all_orders")

	out, err := h.Svc.AllOrders(ctx)
	if err != nil {
		return fail(l, "all_orders_failed", "cannot list orders", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHTTP) UpdateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_order")

	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return fail(l, "update_order_failed", "id is not a uuid", err)
	}
	var req transport.UpdateOrderRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "update_order_failed", "invalid body", err)
	}

	o, err := h.Svc.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return fail(l, "update_order_failed", "cannot update order", err)
	}
	l.Info("update_order_success", "order_id", o.ID, "order_status", o.Status)
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) DeleteOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.delete_order")

	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return fail(l, "delete_order_failed", "id is not a uuid", err)
	}
	if err := h.Svc.DeleteOrder(ctx, id); err != nil {
		return fail(l, "delete_order_failed", "cannot delete order", err)
	}
	l.Info("delete_order_success", "order_id", id)
	return c.JSON(http.StatusOK, transport.Message{Message: "order deleted"})
}
