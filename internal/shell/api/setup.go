package api

import (
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/artpar/storefront/internal/shell/api/middleware"
	"github.com/artpar/storefront/internal/shell/api/openapi"
	"github.com/artpar/storefront/internal/shell/api/resources"
	"github.com/artpar/storefront/internal/shell/store"
	"github.com/gorilla/mux"
	"github.com/manyminds/api2go"
)

// =============================================================================
// API Setup
// =============================================================================

// APIConfig holds configuration for the API setup.
type APIConfig struct {
	Store   store.Store
	Handler HandlerConfig
	Logger  *slog.Logger
}

// SetupAPI creates the complete router: the seller JSON:API resources, the
// account actions, the OpenAPI document and the storefront routes.
// Returns an http.Handler that can be used as the server's main handler.
func SetupAPI(cfg APIConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// api2go creates its own internal router
	jsonAPI := api2go.NewAPIWithResolver("v1", api2go.NewStaticResolver("/api"))
	jsonAPI.ContentType = "application/vnd.api+json"

	productResource := resources.NewProductResource(cfg.Store, cfg.Logger)
	roleResource := resources.NewRoleResource(cfg.Store, cfg.Logger)

	jsonAPI.AddResource(resources.Product{}, productResource)

	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(recoveryMiddleware(cfg.Logger))

	authMW := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Resolver: middleware.NewStoreResolver(cfg.Store),
		Logger:   cfg.Logger,
	})
	router.Use(authMW.Handler)

	// Custom actions must be registered before the api2go prefix.
	router.HandleFunc("/api/v1/users/{id}/role", func(w http.ResponseWriter, r *http.Request) {
		resp, err := roleResource.AssignRole(mux.Vars(r)["id"], r)
		writeResponder(w, resp, err, cfg.Logger)
	}).Methods("POST")

	router.HandleFunc("/openapi.json", newOpenAPIGenerator().Handler()).Methods("GET")

	// api2go expects paths without the /api prefix (e.g. /v1/products)
	router.PathPrefix("/api/v1/products").Handler(http.StripPrefix("/api", jsonAPI.Handler()))

	// Everything else is the storefront
	handler := NewHandler(cfg.Store, cfg.Handler, cfg.Logger)
	router.PathPrefix("/").Handler(handler.Routes())

	return router
}

// newOpenAPIGenerator documents every route SetupAPI mounts.
func newOpenAPIGenerator() *openapi.Generator {
	gen := openapi.NewGenerator(
		openapi.WithTitle("Storefront API"),
		openapi.WithVersion("1.0.0"),
		openapi.WithDescription("Catalog, cart, checkout review and seller product management"),
		openapi.WithServer("/"),
	)

	gen.RegisterResource(openapi.ResourceInfo{
		Name:           "products",
		Model:          resources.Product{},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
	})

	endpoints := []openapi.Endpoint{
		{Method: "GET", Path: "/health", Summary: "Liveness check", Tag: "Health", Response: HealthResponse{}},
		{Method: "GET", Path: "/ready", Summary: "Readiness check", Tag: "Health", Response: ReadyResponse{}},

		{Method: "GET", Path: "/api/v1/catalog/products", Summary: "List published products", Tag: "Catalog", Response: ListProductsResponse{}},
		{Method: "GET", Path: "/api/v1/catalog/products/{slug}", Summary: "Get a published product", Tag: "Catalog", Response: ProductResponse{}},
		{Method: "GET", Path: "/api/v1/catalog/categories", Summary: "List categories", Tag: "Catalog", Response: ListCategoriesResponse{}},

		{Method: "GET", Path: "/api/v1/cart", Summary: "Get the cart", Tag: "Cart", Response: CartResponse{}},
		{Method: "DELETE", Path: "/api/v1/cart", Summary: "Empty the cart", Tag: "Cart", Response: CartResponse{}},
		{Method: "POST", Path: "/api/v1/cart/items", Summary: "Add a product to the cart", Tag: "Cart", Request: AddCartItemRequest{}, Response: CartResponse{}},
		{Method: "PATCH", Path: "/api/v1/cart/items/{id}", Summary: "Set a line quantity", Tag: "Cart", Request: UpdateCartItemRequest{}, Response: CartResponse{}},
		{Method: "DELETE", Path: "/api/v1/cart/items/{id}", Summary: "Remove a line", Tag: "Cart", Response: CartResponse{}},

		{Method: "POST", Path: "/api/v1/checkout/review", Summary: "Review the order before payment", Tag: "Checkout", Request: CheckoutReviewRequest{}, Response: CheckoutReviewResponse{}},

		{Method: "POST", Path: "/api/v1/auth/signup", Summary: "Create an account", Tag: "Auth", Status: http.StatusCreated, Request: SignupRequest{}, Response: UserResponse{}},
		{Method: "POST", Path: "/api/v1/auth/login", Summary: "Log in", Tag: "Auth", Request: LoginRequest{}, Response: UserResponse{}},
		{Method: "POST", Path: "/api/v1/auth/logout", Summary: "Log out", Tag: "Auth", Status: http.StatusNoContent},
		{Method: "GET", Path: "/api/v1/auth/me", Summary: "Current account", Tag: "Auth", Response: UserResponse{}},

		{Method: "POST", Path: "/api/v1/users/{id}/role", Summary: "Assign an account role", Tag: "Users", Request: resources.AssignRoleRequest{}, Response: resources.User{}},
	}
	for _, ep := range endpoints {
		gen.RegisterEndpoint(ep)
	}

	return gen
}

// =============================================================================
// Middleware
// =============================================================================

// requestIDMiddleware makes sure every request carries a request ID and
// echoes it in the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
			r.Header.Set("X-Request-ID", reqID)
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and returns a 500 error.
func recoveryMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
					w.Header().Set("Content-Type", "application/vnd.api+json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]interface{}{
						"errors": []map[string]interface{}{
							{
								"status": "500",
								"title":  "Internal Server Error",
								"detail": "An unexpected error occurred",
							},
						},
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// Helpers
// =============================================================================

// writeResponder writes an api2go.Responder to the response writer.
func writeResponder(w http.ResponseWriter, resp api2go.Responder, err error, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/vnd.api+json")

	if err != nil {
		if httpErr, ok := err.(api2go.HTTPError); ok && len(httpErr.Errors) > 0 {
			w.WriteHeader(parseStatus(httpErr.Errors[0].Status))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"errors": httpErr.Errors,
			})
			return
		}
		logger.Error("request error", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []map[string]interface{}{
				{
					"status": "500",
					"title":  "Internal Server Error",
					"detail": "An unexpected error occurred",
				},
			},
		})
		return
	}

	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.WriteHeader(resp.StatusCode())
	if result := resp.Result(); result != nil {
		data := map[string]interface{}{"attributes": result}
		if ident, ok := result.(interface {
			GetID() string
			GetName() string
		}); ok {
			data["type"] = ident.GetName()
			data["id"] = ident.GetID()
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": data,
			"meta": resp.Metadata(),
		})
	}
}

// parseStatus converts a status string to an int.
func parseStatus(status string) int {
	if status == "" {
		return http.StatusInternalServerError
	}
	n := json.Number(status)
	if i, err := n.Int64(); err == nil && i > 0 {
		return int(i)
	}
	return http.StatusInternalServerError
}

// generateRequestID generates a unique request ID.
func generateRequestID() string {
	return "req_" + randomString(12)
}

// randomString generates a cryptographically random string of the given length.
func randomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		idx, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		b[i] = letters[idx.Int64()]
	}
	return string(b)
}
