package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
)

type ProductHTTP struct {
	Svc *service.ProductService
}

func (h *ProductHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	list, err := h.Svc.ListProducts(ctx, c.QueryParams())
	if err != nil {
		return fail(l, "get_products_failed", "cannot list products", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *ProductHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search_products")

	page, _ := strconv.Atoi(c.QueryParam("page"))
	list, err := h.Svc.SearchProducts(ctx, c.QueryParam("q"), page)
	if err != nil {
		return fail(l, "search_products_failed", "cannot search products", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *ProductHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_product")

	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return fail(l, "get_product_failed", "id is not a uuid", err)
	}
	p, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return fail(l, "get_product_failed", "cannot get product", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHTTP) AdminProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.admin_products")

	items, err := h.Svc.AdminProducts(ctx)
	if err != nil {
		return fail(l, "admin_products_failed", "cannot list products", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"products": items})
}

func (h *ProductHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create_product")

	var req transport.CreateProductRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "create_product_failed", "invalid body", err)
	}
	userID, _ := middleware.UserID(c)

	p, err := h.Svc.CreateProduct(ctx, userID, req)
	if err != nil {
		return fail(l, "create_product_failed", "cannot create product", err)
	}
	l.Info("create_product_success", "product_id", p.ID)
	return c.JSON(http.StatusCreated, p)
}

func (h *ProductHTTP) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.update_product")

	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return fail(l, "update_product_failed", "id is not a uuid", err)
	}
	var req transport.UpdateProductRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "update_product_failed", "invalid body", err)
	}

	p, err := h.Svc.UpdateProduct(ctx, id, req)
	if err != nil {
		return fail(l, "update_product_failed", "cannot update product", err)
	}
	l.Info("update_product_success", "product_id", p.ID)
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete_product")

	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		return fail(l, "delete_product_failed", "id is not a uuid", err)
	}
	if err := h.Svc.DeleteProduct(ctx, id); err != nil {
		return fail(l, "delete_product_failed", "cannot delete product", err)
	}
	l.Info("delete_product_success", "product_id", id)
	return c.JSON(http.StatusOK, transport.Message{Message: "product deleted"})
}

func (h *ProductHTTP) UpsertReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.upsert_review")

	var req transport.ReviewRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "upsert_review_failed", "invalid body", err)
	}
	userID, _ := middleware.UserID(c)

	p, err := h.Svc.UpsertReview(ctx, userID, req)
	if err != nil {
		return fail(l, "upsert_review_failed", "cannot save review", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHTTP) GetReviews(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_reviews")

	id, err := parseID(c.QueryParam("id"), "id")
	if err != nil {
		return fail(l, "get_reviews_failed", "id is not a uuid", err)
	}
	reviews, err := h.Svc.ListReviews(ctx, id)
	if err != nil {
		return fail(l, "get_reviews_failed", "cannot list reviews", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"reviews": reviews})
}

func (h *ProductHTTP) DeleteReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete_review")

	reviewID, err := parseID(c.QueryParam("id"), "id")
	if err != nil {
		return fail(l, "delete_review_failed", "id is not a uuid", err)
	}
	productID, err := parseID(c.QueryParam("productId"), "productId")
	if err != nil {
		return fail(l, "delete_review_failed", "productId is not a uuid", err)
	}
	userID, _ := middleware.UserID(c)

	p, err := h.Svc.DeleteReview(ctx, productID, reviewID, userID, middleware.IsAdmin(c))
	if err != nil {
		return fail(l, "delete_review_failed", "cannot delete review", err)
	}
	return c.JSON(http.StatusOK, p)
}
