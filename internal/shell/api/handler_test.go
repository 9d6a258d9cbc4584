package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artpar/storefront/internal/core/cart"
	"github.com/artpar/storefront/internal/core/checkout"
	"github.com/artpar/storefront/internal/core/domain"
	"github.com/artpar/storefront/internal/shell/api/resources"
	"github.com/artpar/storefront/internal/shell/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonAPIContentType = "application/vnd.api+json"

// =============================================================================
// Test Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testHandlerConfig() HandlerConfig {
	cfg := DefaultHandlerConfig()
	cfg.BcryptCost = 4
	cfg.AllowSellerSignup = true
	return cfg
}

func setupTestAPI(t *testing.T, s store.Store, cfg HandlerConfig) http.Handler {
	t.Helper()
	return SetupAPI(APIConfig{Store: s, Handler: cfg, Logger: testLogger()})
}

// testClient replays the cookies a browser would keep between requests.
type testClient struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newTestClient(t *testing.T, h http.Handler) *testClient {
	return &testClient{t: t, handler: h, cookies: make(map[string]*http.Cookie)}
}

func (c *testClient) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		if strings.HasPrefix(path, "/api/v1/products") {
			req.Header.Set("Content-Type", jsonAPIContentType)
		} else {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createUser(t *testing.T, s store.Store, email string, role domain.Role) *domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := &domain.User{
		ID:           "user-" + strings.Split(email, "@")[0],
		Email:        email,
		Name:         "Test User",
		PasswordHash: "unused",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func createProduct(t *testing.T, s store.Store, sellerID, name, price, category string, published bool) *domain.Product {
	t.Helper()
	p, err := domain.NewProduct(name, decimal.RequireFromString(price), sellerID)
	require.NoError(t, err)
	p.Category = category
	p.Published = published
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

// signup registers an account through the API and keeps its session cookie.
func (c *testClient) signup(email, role string) UserResponse {
	c.t.Helper()
	rec := c.do("POST", "/api/v1/auth/signup", SignupRequest{
		Email:    email,
		Password: "correct-horse",
		Name:     "Test User",
		Role:     role,
	})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeJSON[UserResponse](c.t, rec)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// failingStore wraps a store and fails the selected operations.
type failingStore struct {
	store.Store
	failPing  bool
	failSlots bool
}

var errBoom = errors.New("disk I/O error")

func (f *failingStore) Ping(ctx context.Context) error {
	if f.failPing {
		return errBoom
	}
	return f.Store.Ping(ctx)
}

func (f *failingStore) PutCartSlot(ctx context.Context, key string, payload []byte) error {
	if f.failSlots {
		return errBoom
	}
	return f.Store.PutCartSlot(ctx, key, payload)
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealth(t *testing.T) {
	c := newTestClient(t, setupTestAPI(t, newTestStore(t), testHandlerConfig()))

	rec := c.do("GET", "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "healthy", decodeJSON[HealthResponse](t, rec).Status)
}

func TestReady(t *testing.T) {
	s := &failingStore{Store: newTestStore(t)}
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))

	rec := c.do("GET", "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeJSON[ReadyResponse](t, rec).Checks["database"])

	s.failPing = true
	rec = c.do("GET", "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeJSON[ReadyResponse](t, rec)
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "failed", resp.Checks["database"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := setupTestAPI(t, newTestStore(t), testHandlerConfig())

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req_fixed")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req_fixed", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_"))
}

// =============================================================================
// Catalog Tests
// =============================================================================

func TestCatalog_ListsPublishedOnly(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	createProduct(t, s, seller.ID, "Oak Chair", "79.00", "Furniture", true)
	createProduct(t, s, seller.ID, "Pine Table", "120.00", "Furniture", true)
	createProduct(t, s, seller.ID, "Secret Lamp", "30.00", "Lighting", false)
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))

	rec := c.do("GET", "/api/v1/catalog/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[ListProductsResponse](t, rec)
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Products, 2)
	assert.Equal(t, 50, resp.Limit)
	for _, p := range resp.Products {
		assert.NotEqual(t, "Secret Lamp", p.Name)
	}

	rec = c.do("GET", "/api/v1/catalog/products?limit=1&offset=1", nil)
	resp = decodeJSON[ListProductsResponse](t, rec)
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Products, 1)
	assert.Equal(t, 1, resp.Offset)
}

func TestCatalog_CategoryFilter(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	createProduct(t, s, seller.ID, "Oak Chair", "79.00", "Furniture", true)
	createProduct(t, s, seller.ID, "Desk Lamp", "30.00", "Lighting", true)
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))

	rec := c.do("GET", "/api/v1/catalog/products?category=Lighting", nil)
	resp := decodeJSON[ListProductsResponse](t, rec)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Desk Lamp", resp.Products[0].Name)

	rec = c.do("GET", "/api/v1/catalog/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decodeJSON[ListCategoriesResponse](t, rec)
	require.Len(t, cats.Categories, 2)
	assert.Equal(t, "furniture", cats.Categories[0].Slug)
	assert.Equal(t, 1, cats.Categories[0].Count)
}

func TestCatalog_GetBySlug(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	createProduct(t, s, seller.ID, "Oak Chair", "79.00", "Furniture", true)
	createProduct(t, s, seller.ID, "Secret Lamp", "30.00", "Lighting", false)
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))

	rec := c.do("GET", "/api/v1/catalog/products/oak-chair", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decodeJSON[ProductResponse](t, rec)
	assert.Equal(t, "Oak Chair", p.Name)
	assertMoney(t, "79.00", p.Price)

	rec = c.do("GET", "/api/v1/catalog/products/secret-lamp", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product_not_found", decodeJSON[ErrorResponse](t, rec).Code)

	rec = c.do("GET", "/api/v1/catalog/products/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Cart Tests
// =============================================================================

func TestCart_EmptyCartIssuesCookie(t *testing.T) {
	c := newTestClient(t, setupTestAPI(t, newTestStore(t), testHandlerConfig()))

	rec := c.do("GET", "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, c.cookies, CartCookie)
	assert.True(t, c.cookies[CartCookie].HttpOnly)

	resp := decodeJSON[CartResponse](t, rec)
	assert.Empty(t, resp.Items)
	assert.Equal(t, 0, resp.Count)
	assertMoney(t, "0", resp.Summary.Subtotal)
	assertMoney(t, "0", resp.Summary.Taxes)
	assertMoney(t, "20", resp.Summary.Shipping)
	assertMoney(t, "20", resp.Summary.Total)
	assert.Contains(t, rec.Body.String(), `"items":[]`)

	// The cookie is issued once
	token := c.cookies[CartCookie].Value
	c.do("GET", "/api/v1/cart", nil)
	assert.Equal(t, token, c.cookies[CartCookie].Value)
}

func TestCart_AddItemAndSummary(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	chair := createProduct(t, s, seller.ID, "Oak Chair", "50.00", "Furniture", true)
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))

	rec := c.do("POST", "/api/v1/cart/items", map[string]interface{}{"product_id": chair.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeJSON[CartResponse](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Oak Chair", resp.Items[0].Name)
	assert.Equal(t, 2, resp.Count)
	assertMoney(t, "100", resp.Summary.Subtotal)
	assertMoney(t, "20", resp.Summary.Shipping)
	assertMoney(t, "10", resp.Summary.Taxes)
	assertMoney(t, "130", resp.Summary.Total)
	assert.Equal(t, "standard", resp.Summary.Option)
	assert.Empty(t, resp.Warning)

	// Adding the same product again merges into one line
	rec = c.do("POST", "/api/v1/cart/items", `{"product_id":"`+chair.ID+`","quantity":"1"}`)
	resp = decodeJSON[CartResponse](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 3, resp.Items[0].Quantity)

	// Quantity defaults to one
	rec = c.do("POST", "/api/v1/cart/items", map[string]string{"product_id": chair.ID})
	resp = decodeJSON[CartResponse](t, rec)
	assert.Equal(t, 4, resp.Items[0].Quantity)
}

func TestCart_AddItemRejections(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	hidden := createProduct(t, s, seller.ID, "Secret Lamp", "30.00", "Lighting", false)
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))

	tests := []struct {
		name     string
		path     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"unknown product", "/api/v1/cart/items", map[string]string{"product_id": "missing"}, http.StatusNotFound, "product_not_found"},
		{"unpublished product", "/api/v1/cart/items", map[string]string{"product_id": hidden.ID}, http.StatusNotFound, "product_not_found"},
		{"missing product id", "/api/v1/cart/items", map[string]string{}, http.StatusBadRequest, "validation_error"},
		{"invalid json", "/api/v1/cart/items", "{", http.StatusBadRequest, "validation_error"},
		{"invalid shipping", "/api/v1/cart/items?shipping=overnight", map[string]string{"product_id": hidden.ID}, http.StatusBadRequest, "invalid_shipping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.do("POST", tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeJSON[ErrorResponse](t, rec).Code)
		})
	}
}

func TestCart_FreeShippingBoundary(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	exact := createProduct(t, s, seller.ID, "Walnut Desk", "200.00", "Furniture", true)
	under := createProduct(t, s, seller.ID, "Maple Desk", "199.99", "Furniture", true)
	h := setupTestAPI(t, s, testHandlerConfig())

	t.Run("at threshold", func(t *testing.T) {
		c := newTestClient(t, h)
		rec := c.do("POST", "/api/v1/cart/items", map[string]string{"product_id": exact.ID})
		resp := decodeJSON[CartResponse](t, rec)
		assertMoney(t, "0", resp.Summary.Shipping)
		assert.True(t, resp.Summary.FreeShipping)
		assertMoney(t, "220", resp.Summary.Total)

		rec = c.do("GET", "/api/v1/cart?shipping=express", nil)
		resp = decodeJSON[CartResponse](t, rec)
		assertMoney(t, "15", resp.Summary.Shipping)
		assert.False(t, resp.Summary.FreeShipping)
		assert.Equal(t, "express", resp.Summary.Option)
	})

	t.Run("below threshold", func(t *testing.T) {
		c := newTestClient(t, h)
		rec := c.do("POST", "/api/v1/cart/items", map[string]string{"product_id": under.ID})
		resp := decodeJSON[CartResponse](t, rec)
		assertMoney(t, "20", resp.Summary.Shipping)
		assert.False(t, resp.Summary.FreeShipping)
		assertMoney(t, "20", resp.Summary.Taxes)
		assertMoney(t, "239.99", resp.Summary.Total)
	})
}

func TestCart_UpdateQuantityClamps(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	chair := createProduct(t, s, seller.ID, "Oak Chair", "50.00", "Furniture", true)
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))
	c.do("POST", "/api/v1/cart/items", map[string]string{"product_id": chair.ID})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"number", `{"quantity":5}`, 5},
		{"numeric string", `{"quantity":"3"}`, 3},
		{"zero clamps", `{"quantity":0}`, 1},
		{"negative clamps", `{"quantity":"-4"}`, 1},
		{"garbage clamps", `{"quantity":"lots"}`, 1},
		{"ceiling", `{"quantity":9999}`, cart.MaxQuantity},
		{"above ceiling clamps", `{"quantity":"9223372036854775807"}`, cart.MaxQuantity},
		{"beyond int clamps", `{"quantity":100000000000000000000}`, cart.MaxQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.do("PATCH", "/api/v1/cart/items/"+chair.ID, tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			resp := decodeJSON[CartResponse](t, rec)
			require.Len(t, resp.Items, 1)
			assert.Equal(t, tt.want, resp.Items[0].Quantity)
		})
	}

	rec := c.do("PATCH", "/api/v1/cart/items/"+chair.ID, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown lines are left alone
	rec = c.do("PATCH", "/api/v1/cart/items/missing", `{"quantity":2}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[CartResponse](t, rec).Items, 1)
}

func TestCart_AddSaturatesAtCeiling(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	chair := createProduct(t, s, seller.ID, "Oak Chair", "50.00", "Furniture", true)
	lamp := createProduct(t, s, seller.ID, "Desk Lamp", "30.00", "Lighting", true)
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))

	c.do("POST", "/api/v1/cart/items", map[string]string{"product_id": lamp.ID})
	c.do("POST", "/api/v1/cart/items", `{"product_id":"`+chair.ID+`","quantity":9223372036854775807}`)
	rec := c.do("POST", "/api/v1/cart/items", map[string]string{"product_id": chair.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[CartResponse](t, rec)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, cart.MaxQuantity, resp.Items[1].Quantity)
	assertMoney(t, "499980", resp.Summary.Subtotal)

	// A later request reads the same cart back
	rec = c.do("GET", "/api/v1/cart", nil)
	resp = decodeJSON[CartResponse](t, rec)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, cart.MaxQuantity, resp.Items[1].Quantity)
	assert.Empty(t, resp.Warning)
}

func TestCart_ConcurrentAddsFromOneBrowser(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	chair := createProduct(t, s, seller.ID, "Oak Chair", "50.00", "Furniture", true)
	handler := setupTestAPI(t, s, testHandlerConfig())
	c := newTestClient(t, handler)
	c.do("GET", "/api/v1/cart", nil)
	cookie := c.cookies[CartCookie]
	require.NotNil(t, cookie)

	const adds = 20
	codes := make([]int, adds)
	var wg sync.WaitGroup
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest("POST", "/api/v1/cart/items",
				strings.NewReader(`{"product_id":"`+chair.ID+`"}`))
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	resp := decodeJSON[CartResponse](t, c.do("GET", "/api/v1/cart", nil))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, adds, resp.Items[0].Quantity)
}

func TestCart_RemoveAndClear(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	chair := createProduct(t, s, seller.ID, "Oak Chair", "50.00", "Furniture", true)
	lamp := createProduct(t, s, seller.ID, "Desk Lamp", "30.00", "Lighting", true)
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))
	c.do("POST", "/api/v1/cart/items", map[string]string{"product_id": chair.ID})
	c.do("POST", "/api/v1/cart/items", map[string]string{"product_id": lamp.ID})

	rec := c.do("DELETE", "/api/v1/cart/items/"+chair.ID, nil)
	resp := decodeJSON[CartResponse](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, lamp.ID, resp.Items[0].ID)

	rec = c.do("DELETE", "/api/v1/cart/items/missing", nil)
	assert.Len(t, decodeJSON[CartResponse](t, rec).Items, 1)

	rec = c.do("DELETE", "/api/v1/cart", nil)
	resp = decodeJSON[CartResponse](t, rec)
	assert.Empty(t, resp.Items)
	assert.Equal(t, 0, resp.Count)

	rec = c.do("GET", "/api/v1/cart", nil)
	assert.Empty(t, decodeJSON[CartResponse](t, rec).Items)
}

func TestCart_PersistsPerBrowser(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	chair := createProduct(t, s, seller.ID, "Oak Chair", "50.00", "Furniture", true)
	h := setupTestAPI(t, s, testHandlerConfig())

	alice := newTestClient(t, h)
	bob := newTestClient(t, h)
	alice.do("POST", "/api/v1/cart/items", map[string]interface{}{"product_id": chair.ID, "quantity": 2})

	rec := alice.do("GET", "/api/v1/cart", nil)
	assert.Equal(t, 2, decodeJSON[CartResponse](t, rec).Count)

	rec = bob.do("GET", "/api/v1/cart", nil)
	assert.Equal(t, 0, decodeJSON[CartResponse](t, rec).Count)

	// The slot lives under the namespaced key
	payload, err := s.GetCartSlot(context.Background(), cart.Key(alice.cookies[CartCookie].Value))
	require.NoError(t, err)
	assert.Contains(t, string(payload), chair.ID)
}

func TestCart_MalformedSlotLoadsEmpty(t *testing.T) {
	s := newTestStore(t)
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))
	c.do("GET", "/api/v1/cart", nil)

	key := cart.Key(c.cookies[CartCookie].Value)
	require.NoError(t, s.PutCartSlot(context.Background(), key, []byte(`{"not":"a list"`)))

	rec := c.do("GET", "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[CartResponse](t, rec).Items)
}

func TestCart_PersistFailureWarns(t *testing.T) {
	base := newTestStore(t)
	seller := createUser(t, base, "seller@example.com", domain.RoleSeller)
	chair := createProduct(t, base, seller.ID, "Oak Chair", "50.00", "Furniture", true)
	s := &failingStore{Store: base, failSlots: true}
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))

	rec := c.do("POST", "/api/v1/cart/items", map[string]string{"product_id": chair.ID})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[CartResponse](t, rec)
	assert.Len(t, resp.Items, 1)
	assert.NotEmpty(t, resp.Warning)
}

// =============================================================================
// Checkout Tests
// =============================================================================

func TestCheckoutReview_NotSpecified(t *testing.T) {
	c := newTestClient(t, setupTestAPI(t, newTestStore(t), testHandlerConfig()))

	rec := c.do("POST", "/api/v1/checkout/review", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeJSON[CheckoutReviewResponse](t, rec)
	assert.Equal(t, checkout.NotSpecified, resp.Shipping)
	assert.Equal(t, checkout.NotSpecified, resp.Address)
	assert.False(t, resp.CanPay)
	assert.Contains(t, resp.Warnings, checkout.WarnEmptyCart)
	assert.Contains(t, resp.Warnings, checkout.WarnNoShipping)
	assert.Contains(t, resp.Warnings, checkout.WarnNoAddress)
}

func TestCheckoutReview_Complete(t *testing.T) {
	s := newTestStore(t)
	seller := createUser(t, s, "seller@example.com", domain.RoleSeller)
	chair := createProduct(t, s, seller.ID, "Oak Chair", "50.00", "Furniture", true)
	c := newTestClient(t, setupTestAPI(t, s, testHandlerConfig()))
	c.do("POST", "/api/v1/cart/items", map[string]string{"product_id": chair.ID})

	rec := c.do("POST", "/api/v1/checkout/review", map[string]interface{}{
		"shipping": "express",
		"address": checkout.Address{
			Name: "Ada Lovelace", Line1: "12 St James's Square",
			City: "London", PostalCode: "SW1Y 4JH", Country: "GB",
		},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeJSON[CheckoutReviewResponse](t, rec)
	assert.True(t, resp.CanPay)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, "express", resp.Shipping)
	assert.Equal(t, "Ada Lovelace, 12 St James's Square, London, SW1Y 4JH, GB", resp.Address)
	require.Len(t, resp.Items, 1)
	assertMoney(t, "15", resp.Summary.Shipping)
	assertMoney(t, "70", resp.Summary.Total)
}

func TestCheckoutReview_IncompleteAddressAndBadShipping(t *testing.T) {
	c := newTestClient(t, setupTestAPI(t, newTestStore(t), testHandlerConfig()))

	rec := c.do("POST", "/api/v1/checkout/review", map[string]interface{}{
		"address": map[string]string{"name": "Ada"},
	})
	resp := decodeJSON[CheckoutReviewResponse](t, rec)
	assert.Equal(t, checkout.NotSpecified, resp.Address)
	assert.Contains(t, resp.Warnings, checkout.WarnAddressIncomplete)

	rec = c.do("POST", "/api/v1/checkout/review", map[string]string{"shipping": "teleport"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_shipping", decodeJSON[ErrorResponse](t, rec).Code)
}

// =============================================================================
// Auth Tests
// =============================================================================

func TestAuth_SignupMeLogout(t *testing.T) {
	c := newTestClient(t, setupTestAPI(t, newTestStore(t), testHandlerConfig()))

	user := c.signup("Ada@Example.com", "")
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "buyer", user.Role)
	require.Contains(t, c.cookies, "storefront_session")

	rec := c.do("GET", "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, decodeJSON[UserResponse](t, rec).ID)

	rec = c.do("POST", "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, c.cookies, "storefront_session")

	rec = c.do("GET", "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_LoggedOutTokenIsRejected(t *testing.T) {
	c := newTestClient(t, setupTestAPI(t, newTestStore(t), testHandlerConfig()))
	c.signup("ada@example.com", "")
	stolen := *c.cookies["storefront_session"]

	c.do("POST", "/api/v1/auth/logout", nil)
	c.cookies[stolen.Name] = &stolen

	rec := c.do("GET", "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_SignupRejections(t *testing.T) {
	cfg := testHandlerConfig()
	cfg.AllowSellerSignup = false
	c := newTestClient(t, setupTestAPI(t, newTestStore(t), cfg))
	c.signup("ada@example.com", "")

	tests := []struct {
		name     string
		body     SignupRequest
		wantCode int
		wantErr  string
	}{
		{"duplicate email", SignupRequest{Email: "ADA@example.com", Password: "correct-horse", Name: "Ada"}, http.StatusConflict, "email_taken"},
		{"short password", SignupRequest{Email: "bob@example.com", Password: "short", Name: "Bob"}, http.StatusBadRequest, "validation_error"},
		{"bad email", SignupRequest{Email: "bob", Password: "correct-horse", Name: "Bob"}, http.StatusBadRequest, "validation_error"},
		{"unknown role", SignupRequest{Email: "bob@example.com", Password: "correct-horse", Name: "Bob", Role: "owner"}, http.StatusBadRequest, "validation_error"},
		{"admin role", SignupRequest{Email: "bob@example.com", Password: "correct-horse", Name: "Bob", Role: "admin"}, http.StatusForbidden, "role_forbidden"},
		{"seller disabled", SignupRequest{Email: "bob@example.com", Password: "correct-horse", Name: "Bob", Role: "seller"}, http.StatusForbidden, "role_forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestClient(t, c.handler).do("POST", "/api/v1/auth/signup", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeJSON[ErrorResponse](t, rec).Code)
		})
	}
}

func TestAuth_Login(t *testing.T) {
	h := setupTestAPI(t, newTestStore(t), testHandlerConfig())
	newTestClient(t, h).signup("ada@example.com", "")

	c := newTestClient(t, h)
	rec := c.do("POST", "/api/v1/auth/login", LoginRequest{Email: "ada@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decodeJSON[ErrorResponse](t, rec).Code)

	rec = c.do("POST", "/api/v1/auth/login", LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do("POST", "/api/v1/auth/login", LoginRequest{Email: " ADA@example.com ", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, c.cookies, "storefront_session")

	rec = c.do("GET", "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// Product Resource Tests
// =============================================================================

type jsonAPIDocument struct {
	Data struct {
		Type       string          `json:"type"`
		ID         string          `json:"id"`
		Attributes json.RawMessage `json:"attributes"`
	} `json:"data"`
}

type jsonAPIList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

func productDocument(id string, attrs map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{"type": "products", "attributes": attrs}
	if id != "" {
		data["id"] = id
	}
	return map[string]interface{}{"data": data}
}

func TestProducts_CreateRequiresSeller(t *testing.T) {
	h := setupTestAPI(t, newTestStore(t), testHandlerConfig())
	attrs := map[string]interface{}{"name": "Oak Chair", "price": "79.00", "published": true}

	rec := newTestClient(t, h).do("POST", "/api/v1/products", productDocument("", attrs))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	buyer := newTestClient(t, h)
	buyer.signup("buyer@example.com", "")
	rec = buyer.do("POST", "/api/v1/products", productDocument("", attrs))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	seller := newTestClient(t, h)
	sellerUser := seller.signup("seller@example.com", "seller")
	rec = seller.do("POST", "/api/v1/products", productDocument("", attrs))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	doc := decodeJSON[jsonAPIDocument](t, rec)
	assert.Equal(t, "products", doc.Data.Type)
	assert.NotEmpty(t, doc.Data.ID)
	var created resources.Product
	require.NoError(t, json.Unmarshal(doc.Data.Attributes, &created))
	assert.Equal(t, "oak-chair", created.Slug)
	assert.Equal(t, sellerUser.ID, created.SellerID)
	assertMoney(t, "79", created.Price)

	// Published products show up in the storefront
	rec = buyer.do("GET", "/api/v1/catalog/products/oak-chair", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Same name, same slug
	rec = seller.do("POST", "/api/v1/products", productDocument("", attrs))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProducts_CreateValidates(t *testing.T) {
	h := setupTestAPI(t, newTestStore(t), testHandlerConfig())
	seller := newTestClient(t, h)
	seller.signup("seller@example.com", "seller")

	rec := seller.do("POST", "/api/v1/products", productDocument("", map[string]interface{}{"name": "X", "price": "5"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = seller.do("POST", "/api/v1/products", productDocument("", map[string]interface{}{"name": "Oak Chair", "price": "-1"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProducts_OwnershipRules(t *testing.T) {
	s := newTestStore(t)
	h := setupTestAPI(t, s, testHandlerConfig())

	owner := newTestClient(t, h)
	ownerUser := owner.signup("owner@example.com", "seller")
	rival := newTestClient(t, h)
	rival.signup("rival@example.com", "seller")

	chair := createProduct(t, s, ownerUser.ID, "Oak Chair", "79.00", "Furniture", true)
	draft := createProduct(t, s, ownerUser.ID, "Draft Stool", "20.00", "Furniture", false)

	update := productDocument(chair.ID, map[string]interface{}{"name": "Oak Armchair", "price": "99.50", "published": true})

	rec := rival.do("PATCH", "/api/v1/products/"+chair.ID, update)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = rival.do("GET", "/api/v1/products/"+draft.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = rival.do("DELETE", "/api/v1/products/"+chair.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = owner.do("PATCH", "/api/v1/products/"+chair.ID, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got, err := s.GetProduct(context.Background(), chair.ID)
	require.NoError(t, err)
	assert.Equal(t, "oak-armchair", got.Slug)
	assertMoney(t, "99.50", got.Price)

	rec = owner.do("GET", "/api/v1/products/"+draft.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = owner.do("DELETE", "/api/v1/products/"+chair.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err = s.GetProduct(context.Background(), chair.ID)
	assert.True(t, store.IsNotFound(err))
}

func TestProducts_FindAllScopesBySeller(t *testing.T) {
	s := newTestStore(t)
	h := setupTestAPI(t, s, testHandlerConfig())

	owner := newTestClient(t, h)
	ownerUser := owner.signup("owner@example.com", "seller")
	other := createUser(t, s, "other@example.com", domain.RoleSeller)

	createProduct(t, s, ownerUser.ID, "Oak Chair", "79.00", "Furniture", true)
	createProduct(t, s, ownerUser.ID, "Draft Stool", "20.00", "Furniture", false)
	createProduct(t, s, other.ID, "Desk Lamp", "30.00", "Lighting", true)

	rec := owner.do("GET", "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decodeJSON[jsonAPIList](t, rec)
	assert.Len(t, list.Data, 2)
	assert.EqualValues(t, 2, list.Meta["total"])

	rec = newTestClient(t, h).do("GET", "/api/v1/products", nil)
	list = decodeJSON[jsonAPIList](t, rec)
	assert.Len(t, list.Data, 2, "anonymous callers see published products only")
}

// =============================================================================
// Role Assignment Tests
// =============================================================================

func TestAssignRole(t *testing.T) {
	s := newTestStore(t)
	h := setupTestAPI(t, s, testHandlerConfig())

	admin := newTestClient(t, h)
	adminUser := admin.signup("admin@example.com", "")
	require.NoError(t, s.UpdateUserRole(context.Background(), adminUser.ID, domain.RoleAdmin))

	buyer := newTestClient(t, h)
	buyerUser := buyer.signup("buyer@example.com", "")

	rec := buyer.do("POST", "/api/v1/users/"+buyerUser.ID+"/role", map[string]string{"role": "seller"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, jsonAPIContentType, rec.Header().Get("Content-Type"))

	rec = buyer.do("POST", "/api/v1/users/"+adminUser.ID+"/role", map[string]string{"role": "buyer"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = admin.do("POST", "/api/v1/users/"+buyerUser.ID+"/role", map[string]string{"role": "seller"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"role":"seller"`)

	// The new role applies on the buyer's next request
	rec = buyer.do("GET", "/api/v1/auth/me", nil)
	assert.Equal(t, "seller", decodeJSON[UserResponse](t, rec).Role)

	rec = admin.do("POST", "/api/v1/users/missing/role", map[string]string{"role": "seller"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = admin.do("POST", "/api/v1/users/"+buyerUser.ID+"/role", map[string]string{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = newTestClient(t, h).do("POST", "/api/v1/users/"+buyerUser.ID+"/role", map[string]string{"role": "buyer"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// OpenAPI Tests
// =============================================================================

func TestOpenAPIDocument(t *testing.T) {
	c := newTestClient(t, setupTestAPI(t, newTestStore(t), testHandlerConfig()))

	rec := c.do("GET", "/openapi.json", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Info  map[string]interface{}            `json:"info"`
		Paths map[string]map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Storefront API", doc.Info["title"])
	assert.Contains(t, doc.Paths, "/api/v1/products")
	assert.Contains(t, doc.Paths, "/api/v1/products/{id}")
	assert.Contains(t, doc.Paths["/api/v1/cart/items/{id}"], "patch")
	assert.Contains(t, doc.Paths["/api/v1/cart"], "delete")
	assert.Contains(t, doc.Paths, "/api/v1/checkout/review")
}

func TestUnknownRouteIs404(t *testing.T) {
	c := newTestClient(t, setupTestAPI(t, newTestStore(t), testHandlerConfig()))

	rec := c.do("GET", "/api/v1/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
