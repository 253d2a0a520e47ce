// Package handler exposes the cart engine over HTTP (REST and MCP).
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cartsync/internal/auth"
	"cartsync/internal/model"
	"cartsync/internal/notify"
)

// CartService is the consumer contract of the cart controller.
type CartService interface {
	Snapshot() model.State
	AddToCart(ctx context.Context, product map[string]any) error
	RemoveFromCart(ctx context.Context, productID string) error
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
	ClearCart(ctx context.Context) error
	MergeGuestCartAfterLogin(ctx context.Context) ([]model.CartItem, error)
	OnCheckoutSucceeded(ctx context.Context) error
}

// SessionService manages sign-in state.
type SessionService interface {
	Login(ctx context.Context, token string) error
	Logout(ctx context.Context)
	IsAuthenticated() bool
	Check(ctx context.Context)
}

// NoticeSource lists recent user notices.
type NoticeSource interface {
	Recent() []notify.Notice
}

// Config holds handler dependencies. Notices and Gatherer are optional.
type Config struct {
	Cart     CartService
	Session  SessionService
	Notices  NoticeSource
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	cart     CartService
	session  SessionService
	notices  NoticeSource
	gatherer prometheus.Gatherer
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a Handler.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cart:     cfg.Cart,
		session:  cfg.Session,
		notices:  cfg.Notices,
		gatherer: cfg.Gatherer,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Cart
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("POST /cart/items", h.handleAddToCart)
	mux.HandleFunc("PUT /cart/items/{productId}", h.handleUpdateQuantity)
	mux.HandleFunc("DELETE /cart/items/{productId}", h.handleRemoveFromCart)
	mux.HandleFunc("DELETE /cart", h.handleClearCart)
	mux.HandleFunc("POST /cart/merge", h.handleMerge)
	mux.HandleFunc("POST /checkout/succeeded", h.handleCheckoutSucceeded)

	// Session
	mux.HandleFunc("POST /session", h.handleLogin)
	mux.HandleFunc("DELETE /session", h.handleLogout)

	mux.HandleFunc("GET /notifications", h.handleNotifications)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := h.toAPIError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// toAPIError maps engine and backend errors onto the API error taxonomy.
// Uses errors.As/Is so wrapped errors are classified by their cause.
func (h *Handler) toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, auth.ErrTokenExpired):
		return model.NewUnauthorizedError("token expired")
	case errors.Is(err, model.ErrUnauthenticated):
		return model.NewUnauthorizedError("not signed in")
	case errors.Is(err, model.ErrNetwork), errors.Is(err, model.ErrUpstreamError):
		return model.NewUpstreamError("cart backend", err)
	}
	h.logger.Error("internal error", slog.String("error", err.Error()))
	return model.NewInternalError(err)
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// decodeAndValidate decodes the body and runs struct validation tags.
func (h *Handler) decodeAndValidate(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil {
		return err
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return model.NewValidationError(fe.Field(), "failed '"+fe.Tag()+"' check")
		}
		return model.NewValidationError("body", err.Error())
	}
	return nil
}

// newValidator reports field names by their JSON tag.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}
