// Package api provides HTTP handlers for the storefront API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/storefront/internal/core/auth"
	"github.com/artpar/storefront/internal/core/cart"
	"github.com/artpar/storefront/internal/core/checkout"
	"github.com/artpar/storefront/internal/core/domain"
	"github.com/artpar/storefront/internal/core/pricing"
	"github.com/artpar/storefront/internal/core/validation"
	apimw "github.com/artpar/storefront/internal/shell/api/middleware"
	"github.com/artpar/storefront/internal/shell/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// CartCookie carries the browser's cart token.
const CartCookie = "storefront_cart"

// =============================================================================
// Handler
// =============================================================================

// HandlerConfig holds the storefront behaviour settings.
type HandlerConfig struct {
	Pricing           pricing.Config
	SessionTTL        time.Duration
	CartTTL           time.Duration
	SecureCookies     bool
	AllowSellerSignup bool
	BcryptCost        int
}

// DefaultHandlerConfig returns default handler settings.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		Pricing:    pricing.DefaultConfig(),
		SessionTTL: 7 * 24 * time.Hour,
		CartTTL:    30 * 24 * time.Hour,
		BcryptCost: 12,
	}
}

// Handler provides HTTP handlers for the storefront.
type Handler struct {
	store  store.Store
	slots  *store.CartSlots
	config HandlerConfig
	logger *slog.Logger

	cartLocks *keyedMutex
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, cfg HandlerConfig, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultHandlerConfig().SessionTTL
	}
	return &Handler{
		store:  s,
		slots:  store.NewCartSlots(s),
		config: cfg,
		logger: l,

		cartLocks: newKeyedMutex(),
	}
}

// Routes returns the router with all routes configured.
// The auth context is expected to be set by an outer AuthMiddleware.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", h.handleListProducts)
			r.Get("/products/{slug}", h.handleGetProduct)
			r.Get("/categories", h.handleListCategories)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.handleGetCart)
			r.Delete("/", h.handleClearCart)
			r.Post("/items", h.handleAddCartItem)
			r.Patch("/items/{id}", h.handleUpdateCartItem)
			r.Delete("/items/{id}", h.handleRemoveCartItem)
		})

		r.Post("/checkout/review", h.handleCheckoutReview)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.handleSignup)
			r.Post("/login", h.handleLogin)
			r.Group(func(r chi.Router) {
				r.Use(apimw.RequireAuth(h.logger))
				r.Post("/logout", h.handleLogout)
				r.Get("/me", h.handleMe)
			})
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := h.store.Ping(r.Context()); err != nil {
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Catalog Handlers
// =============================================================================

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	opts := listOptionsFromQuery(r)
	filter := store.ProductFilter{PublishedOnly: true}
	if category := r.URL.Query().Get("category"); category != "" {
		filter.CategorySlug = domain.Slugify(category)
	}

	products, err := h.store.ListProducts(r.Context(), filter, opts)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list products", "internal_error")
		return
	}
	total, err := h.store.CountProducts(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to count products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list products", "internal_error")
		return
	}

	opts = opts.Normalize()
	resp := ListProductsResponse{
		Products: make([]ProductResponse, 0, len(products)),
		Total:    total,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	}
	for i := range products {
		resp.Products = append(resp.Products, productToResponse(&products[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	product, err := h.store.GetProductBySlug(r.Context(), slug)
	if err != nil {
		if store.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, "product not found", "product_not_found")
			return
		}
		h.logger.Error("failed to get product", "slug", slug, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get product", "internal_error")
		return
	}
	if !product.Published {
		h.writeError(w, http.StatusNotFound, "product not found", "product_not_found")
		return
	}

	h.writeJSON(w, http.StatusOK, productToResponse(product))
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list categories", "internal_error")
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	h.writeJSON(w, http.StatusOK, ListCategoriesResponse{Categories: categories})
}

// =============================================================================
// Cart Handlers
// =============================================================================

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	option, ok := h.shippingFromQuery(w, r)
	if !ok {
		return
	}
	c, release := h.cartFor(w, r)
	defer release()
	h.writeCart(w, c, option, nil)
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	option, ok := h.shippingFromQuery(w, r)
	if !ok {
		return
	}

	var req AddCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		h.writeError(w, http.StatusBadRequest, "product_id is required", "validation_error")
		return
	}

	product, err := h.store.GetProduct(r.Context(), req.ProductID)
	if err != nil && !store.IsNotFound(err) {
		h.logger.Error("failed to get product", "product_id", req.ProductID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to add item", "internal_error")
		return
	}
	if err != nil || !product.Published {
		h.writeError(w, http.StatusNotFound, "product not found", "product_not_found")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = int(*req.Quantity)
	}

	c, release := h.cartFor(w, r)
	defer release()
	err = c.AddItem(r.Context(), cart.Product{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		ImageRef:    product.ImageRef,
		UnitPrice:   product.Price,
	}, quantity)
	h.writeCart(w, c, option, err)
}

func (h *Handler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	option, ok := h.shippingFromQuery(w, r)
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.Quantity == nil {
		h.writeError(w, http.StatusBadRequest, "quantity is required", "validation_error")
		return
	}

	c, release := h.cartFor(w, r)
	defer release()
	err := c.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), int(*req.Quantity))
	h.writeCart(w, c, option, err)
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	option, ok := h.shippingFromQuery(w, r)
	if !ok {
		return
	}
	c, release := h.cartFor(w, r)
	defer release()
	err := c.RemoveItem(r.Context(), chi.URLParam(r, "id"))
	h.writeCart(w, c, option, err)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	option, ok := h.shippingFromQuery(w, r)
	if !ok {
		return
	}
	c, release := h.cartFor(w, r)
	defer release()
	err := c.Clear(r.Context())
	h.writeCart(w, c, option, err)
}

// cartFor returns the loaded cart of the requesting browser, issuing a cart
// cookie when the request has none. The cart stays locked against other
// requests for the same token until release is called, so concurrent
// mutations from one browser apply one after another.
func (h *Handler) cartFor(w http.ResponseWriter, r *http.Request) (c *cart.Store, release func()) {
	token := ""
	if ck, err := r.Cookie(CartCookie); err == nil {
		if _, err := uuid.Parse(ck.Value); err == nil {
			token = ck.Value
		}
	}
	if token == "" {
		token = uuid.NewString()
		cookie := &http.Cookie{
			Name:     CartCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.config.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		}
		if h.config.CartTTL > 0 {
			cookie.MaxAge = int(h.config.CartTTL.Seconds())
		}
		http.SetCookie(w, cookie)
	}

	release = h.cartLocks.lock(token)
	c = cart.New(h.slots, cart.Key(token), h.logger)
	c.Load(r.Context())
	return c, release
}

func (h *Handler) shippingFromQuery(w http.ResponseWriter, r *http.Request) (pricing.Shipping, bool) {
	raw := r.URL.Query().Get("shipping")
	if raw == "" {
		return pricing.ShippingStandard, true
	}
	option, err := pricing.ParseShipping(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_shipping")
		return "", false
	}
	return option, true
}

// writeCart writes the cart state. A persistence failure still answers 200
// with the in-memory cart and a warning.
func (h *Handler) writeCart(w http.ResponseWriter, c *cart.Store, option pricing.Shipping, mutationErr error) {
	items := c.Items()
	resp := CartResponse{
		Items:   nonNilItems(items),
		Count:   c.Count(),
		Summary: summaryToResponse(pricing.Calculate(items, option, h.config.Pricing)),
	}

	if mutationErr != nil {
		var persistErr *cart.PersistError
		if !errors.As(mutationErr, &persistErr) {
			h.logger.Error("cart mutation failed", "cart_key", c.Key(), "error", mutationErr)
			h.writeError(w, http.StatusInternalServerError, "failed to update cart", "internal_error")
			return
		}
		resp.Warning = "cart changes could not be saved"
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Checkout Handlers
// =============================================================================

func (h *Handler) handleCheckoutReview(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	var shipping *pricing.Shipping
	if req.Shipping != nil && strings.TrimSpace(*req.Shipping) != "" {
		option, err := pricing.ParseShipping(*req.Shipping)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_shipping")
			return
		}
		shipping = &option
	}

	c, release := h.cartFor(w, r)
	defer release()
	review := checkout.Prepare(c.Items(), shipping, req.Address, h.config.Pricing)
	h.writeJSON(w, http.StatusOK, reviewToResponse(review))
}

// =============================================================================
// Auth Handlers
// =============================================================================

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	if field, msg := validation.ValidateSignupFields(req.Email, req.Password, req.Name); field != "" {
		h.writeError(w, http.StatusBadRequest, msg, "validation_error")
		return
	}

	role := domain.RoleBuyer
	if req.Role != "" {
		parsed, err := domain.ParseRole(req.Role)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
			return
		}
		role = parsed
	}
	switch {
	case role == domain.RoleAdmin:
		h.writeError(w, http.StatusForbidden, "admin accounts cannot be created by sign-up", "role_forbidden")
		return
	case role == domain.RoleSeller && !h.config.AllowSellerSignup:
		h.writeError(w, http.StatusForbidden, "seller sign-up is disabled", "role_forbidden")
		return
	}

	email, _ := domain.NormalizeEmail(req.Email)
	hash, err := auth.HashPassword(req.Password, h.config.BcryptCost)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create account", "internal_error")
		return
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			h.writeError(w, http.StatusConflict, "email is already registered", "email_taken")
			return
		}
		h.logger.Error("failed to create user", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create account", "internal_error")
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	h.logger.Info("account created", "user_id", user.ID, "role", user.Role)
	h.writeJSON(w, http.StatusCreated, userToResponse(user))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if field, msg := validation.ValidateLoginFields(req.Email, req.Password); field != "" {
		h.writeError(w, http.StatusBadRequest, msg, "validation_error")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if store.IsNotFound(err) {
			h.writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error(), "invalid_credentials")
			return
		}
		h.logger.Error("failed to get user", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to log in", "internal_error")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err.Error(), "invalid_credentials")
			return
		}
		h.logger.Error("failed to check password", "user_id", user.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to log in", "internal_error")
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	h.writeJSON(w, http.StatusOK, userToResponse(user))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())

	if err := h.store.DeleteSession(r.Context(), authCtx.SessionToken); err != nil && !store.IsNotFound(err) {
		h.logger.Error("failed to delete session", "user_id", authCtx.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to log out", "internal_error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())

	user, err := h.store.GetUser(r.Context(), authCtx.UserID)
	if err != nil {
		if store.IsNotFound(err) {
			h.writeError(w, http.StatusUnauthorized, "account no longer exists", "unauthorized")
			return
		}
		h.logger.Error("failed to get user", "user_id", authCtx.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get account", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, userToResponse(user))
}

// startSession creates a session for user and sets the session cookie.
// It writes an error response and returns false on failure.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user *domain.User) bool {
	token, err := auth.NewSessionToken()
	if err != nil {
		h.logger.Error("failed to generate session token", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to start session", "internal_error")
		return false
	}

	now := time.Now().UTC()
	session := &domain.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: now.Add(h.config.SessionTTL),
		CreatedAt: now,
	}
	if err := h.store.CreateSession(r.Context(), session); err != nil {
		h.logger.Error("failed to create session", "user_id", user.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to start session", "internal_error")
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func listOptionsFromQuery(r *http.Request) store.ListOptions {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	return opts
}
