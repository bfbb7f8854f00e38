package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/mailer"
	"github.com/Skotchmaster/storefront/internal/media"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

var testSecret = []byte("http-test-secret-0123")

type fakeHost struct {
	mu      sync.Mutex
	n       int
	uploads []string
}

func (f *fakeHost) Upload(_ context.Context, file, folder string, _ media.UploadOptions) (models.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	f.uploads = append(f.uploads, file)
	id := fmt.Sprintf("%s/%d", folder, f.n)
	return models.Image{PublicID: id, URL: "https://img.test/" + id}, nil
}

func (f *fakeHost) Delete(context.Context, string) error { return nil }

type testServer struct {
	e    *echo.Echo
	repo *repo.GormRepo
	host *fakeHost
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, models.All()...))
	t.Cleanup(func() { _ = db.Close(gdb) })

	r := repo.New(gdb)
	host := &fakeHost{}
	e := echo.New()
	e.Validator = NewValidator()
	Register(e, &Deps{
		ProductHandler: &ProductHTTP{Svc: &service.ProductService{Repo: r, Images: host, Events: events.Nop{}}},
		OrderHandler:   &OrderHTTP{Svc: &service.OrderService{Repo: r, Events: events.Nop{}}},
		UserHandler: &UserHTTP{Svc: &service.UserService{
			Repo:        r,
			Images:      host,
			Mailer:      mailer.Log{},
			Events:      events.Nop{},
			JWTSecret:   testSecret,
			JWTExpire:   time.Hour,
			FrontendURL: "http://shop.test",
		}},
		JWTSecret: testSecret,
		Ready:     r.Ping,
	})
	return &testServer{e: e, repo: r, host: host}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// user stores a user with the given role and returns an access token for it.
func (s *testServer) user(t *testing.T, role, email string) (uuid.UUID, string) {
	t.Helper()
	pw, err := hash.HashPassword("password1")
	require.NoError(t, err)
	u := &models.User{Name: "Test", Email: email, PasswordHash: pw, Role: role}
	require.NoError(t, s.repo.CreateUser(context.Background(), u))
	tok, err := tokens.CreateAccessToken(testSecret, role, u.ID.String(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	return u.ID, tok
}

func (s *testServer) product(t *testing.T, name string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Description: "d", Price: 10, Category: "Laptop", Stock: stock}
	require.NoError(t, s.repo.CreateProduct(context.Background(), p))
	return p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", nil, "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", nil, "").Code)
}

func TestGetProducts_Page(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 10; i++ {
		s.product(t, fmt.Sprintf("item %02d", i), 1)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/products?page=2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[transport.ProductList](t, rec)
	assert.Equal(t, int64(10), list.TotalCount)
	assert.Equal(t, int64(10), list.FilteredCount)
	assert.Equal(t, 8, list.PageSize)
	assert.Equal(t, 2, list.Page)
	assert.Len(t, list.Products, 2)
}

func TestGetProducts_UnknownFilter(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products?color=red", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProduct_NotFound(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/product/"+uuid.NewString(), nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/product/42", nil, "").Code)
}

func TestAdminRoutes_RoleChecks(t *testing.T) {
	s := newTestServer(t)
	_, userTok := s.user(t, models.RoleUser, "user@example.com")
	_, adminTok := s.user(t, models.RoleAdmin, "admin@example.com")

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"bad token", "not-a-jwt", http.StatusUnauthorized},
		{"user", userTok, http.StatusForbidden},
		{"admin", adminTok, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/api/v1/admin/products", "/api/v1/admin/orders", "/api/v1/admin/users"} {
				rec := s.do(t, http.MethodGet, path, nil, tt.token)
				assert.Equal(t, tt.want, rec.Code, path)
			}
		})
	}
}

func TestCreateProduct_ImagesStringOrList(t *testing.T) {
	s := newTestServer(t)
	_, adminTok := s.user(t, models.RoleAdmin, "admin@example.com")

	for _, images := range []string{`"data:image/png;base64,AAAA"`, `["data:image/png;base64,AAAA"]`} {
		body := `{"name":"Phone","description":"d","price":5,"category":"Mobile","stock":2,"images":` + images + `}`
		rec := s.do(t, http.MethodPost, "/api/v1/admin/product/new", body, adminTok)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		p := decode[models.Product](t, rec)
		require.Len(t, p.Images, 1)
		assert.True(t, strings.HasPrefix(p.Images[0].PublicID, media.FolderProducts+"/"))
	}
	assert.Equal(t, []string{"data:image/png;base64,AAAA", "data:image/png;base64,AAAA"}, s.host.uploads)
}

func TestCreateProduct_Validation(t *testing.T) {
	s := newTestServer(t)
	_, adminTok := s.user(t, models.RoleAdmin, "admin@example.com")

	tests := []struct {
		name string
		body string
	}{
		{"missing price", `{"name":"Phone","description":"d","category":"Mobile","stock":2}`},
		{"negative price", `{"name":"Phone","description":"d","price":-1,"category":"Mobile","stock":2}`},
		{"images not strings", `{"name":"Phone","description":"d","price":1,"category":"Mobile","stock":2,"images":7}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/admin/product/new", tt.body, adminTok)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	s := newTestServer(t)
	_, adminTok := s.user(t, models.RoleAdmin, "admin@example.com")
	p := s.product(t, "Phone", 2)

	rec := s.do(t, http.MethodPut, "/api/v1/admin/product/"+p.ID.String(), map[string]any{"price": 7.5}, adminTok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[models.Product](t, rec)
	assert.Equal(t, 7.5, got.Price)
	assert.Equal(t, "Phone", got.Name)

	rec = s.do(t, http.MethodDelete, "/api/v1/admin/product/"+p.ID.String(), nil, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/product/"+p.ID.String(), nil, "").Code)
}

func TestReviews(t *testing.T) {
	s := newTestServer(t)
	_, annTok := s.user(t, models.RoleUser, "ann@example.com")
	_, bobTok := s.user(t, models.RoleUser, "bob@example.com")
	p := s.product(t, "Phone", 2)

	body := map[string]any{"product_id": p.ID.String(), "rating": 4, "comment": "ok"}
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPut, "/api/v1/review", body, "").Code)

	rec := s.do(t, http.MethodPut, "/api/v1/review", body, annTok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 4.0, decode[models.Product](t, rec).Ratings)

	rec = s.do(t, http.MethodGet, "/api/v1/reviews?id="+p.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	reviews := decode[struct {
		Reviews []models.Review `json:"reviews"`
	}](t, rec).Reviews
	require.Len(t, reviews, 1)

	path := fmt.Sprintf("/api/v1/reviews?id=%s&productId=%s", reviews[0].ID, p.ID)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, path, nil, bobTok).Code)

	rec = s.do(t, http.MethodDelete, path, nil, annTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[models.Product](t, rec).NumOfReviews)
}

func orderBody(productID uuid.UUID, qty int, total float64) map[string]any {
	return map[string]any{
		"shipping_info": map[string]any{
			"address": "1 Main St", "city": "Springfield", "state": "IL",
			"country": "US", "pin_code": "62701", "phone_no": "5551234567",
		},
		"order_items": []map[string]any{
			{"product": productID.String(), "name": "Phone", "price": 10, "quantity": qty, "image": ""},
		},
		"payment_info":   map[string]any{"id": "pi_1", "status": "succeeded"},
		"items_price":    10 * float64(qty),
		"tax_price":      1,
		"shipping_price": 0,
		"total_price":    total,
	}
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestServer(t)
	_, annTok := s.user(t, models.RoleUser, "ann@example.com")
	_, bobTok := s.user(t, models.RoleUser, "bob@example.com")
	_, adminTok := s.user(t, models.RoleAdmin, "admin@example.com")
	p := s.product(t, "Phone", 5)

	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodPost, "/api/v1/order/new", orderBody(p.ID, 2, 99), annTok).Code)

	rec := s.do(t, http.MethodPost, "/api/v1/order/new", orderBody(p.ID, 2, 21), annTok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[models.Order](t, rec)
	assert.Equal(t, models.StatusProcessing, o.Status)
	assert.NotNil(t, o.PaidAt)

	orderPath := "/api/v1/order/" + o.ID.String()
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, orderPath, nil, annTok).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, orderPath, nil, bobTok).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, orderPath, nil, adminTok).Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/me", nil, bobTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct {
		Orders []models.Order `json:"orders"`
	}](t, rec).Orders)

	adminPath := "/api/v1/admin/order/" + o.ID.String()
	rec = s.do(t, http.MethodPut, adminPath, map[string]any{"status": "Delivered"}, adminTok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, decode[models.Order](t, rec).DeliveredAt)

	got, err := s.repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	rec = s.do(t, http.MethodPut, adminPath, map[string]any{"status": "Shipped"}, adminTok)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/admin/orders", nil, adminTok)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[transport.AdminOrders](t, rec)
	assert.Len(t, all.Orders, 1)
	assert.Equal(t, 21.0, all.TotalAmount)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, adminPath, nil, adminTok).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, orderPath, nil, adminTok).Code)
}

func TestSession_RegisterLoginLogout(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/register",
		map[string]any{"name": "Ann", "email": "ann@example.com", "password": "password1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	auth := decode[transport.AuthResponse](t, rec)
	assert.Equal(t, "ann@example.com", auth.User.Email)
	assert.NotEmpty(t, auth.Token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tokens.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(cookies[0])
	me := httptest.NewRecorder()
	s.e.ServeHTTP(me, req)
	assert.Equal(t, http.StatusOK, me.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/register",
		map[string]any{"name": "Ann", "email": "ann@example.com", "password": "password1"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/login", map[string]any{"email": "ann@example.com", "password": "wrong-pass"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/login", map[string]any{"email": "ann@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/login", map[string]any{"email": "ann@example.com", "password": "password1"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/logout", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestAdminUpdateUser_Role(t *testing.T) {
	s := newTestServer(t)
	annID, annTok := s.user(t, models.RoleUser, "ann@example.com")
	_, adminTok := s.user(t, models.RoleAdmin, "admin@example.com")
	path := "/api/v1/admin/user/" + annID.String()

	rec := s.do(t, http.MethodPut, path, map[string]any{"name": "Ann", "email": "ann@example.com", "role": "root"}, adminTok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, path, map[string]any{"name": "Ann", "email": "ann@example.com", "role": "admin"}, adminTok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	u, err := s.repo.GetUser(context.Background(), annID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	// the old token still carries the user role
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/admin/users", nil, annTok).Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, path, nil, adminTok).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, nil, adminTok).Code)
}

func TestAuthRateLimit(t *testing.T) {
	gdb, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, models.All()...))
	t.Cleanup(func() { _ = db.Close(gdb) })
	r := repo.New(gdb)

	e := echo.New()
	e.Validator = NewValidator()
	Register(e, &Deps{
		ProductHandler: &ProductHTTP{Svc: &service.ProductService{Repo: r}},
		OrderHandler:   &OrderHTTP{Svc: &service.OrderService{Repo: r}},
		UserHandler:    &UserHTTP{Svc: &service.UserService{Repo: r, JWTSecret: testSecret, JWTExpire: time.Hour}},
		JWTSecret:      testSecret,
		AuthRateLimit:  0.001,
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"email":"x@example.com","password":"y"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusUnauthorized, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}
