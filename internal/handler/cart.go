package handler

import (
	"log/slog"
	"net/http"

	"cartsync/internal/model"
	"cartsync/internal/notify"
)

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

type loginRequest struct {
	Token string `json:"token" validate:"required"`
}

// mergeResponse reports the cart after a merge and whether the push succeeded.
type mergeResponse struct {
	model.State
	Synced bool `json:"synced"`
}

type notificationsResponse struct {
	Notifications []notify.Notice `json:"notifications"`
}

// handleGetCart returns the current cart.
// GET /cart
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	h.session.Check(r.Context())
	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleAddToCart adds one unit of a product.
// POST /cart/items
func (h *Handler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.session.Check(ctx)

	var product map[string]any
	if err := decodeJSON(r, &product); err != nil {
		h.writeError(w, err)
		return
	}
	if len(product) == 0 {
		h.writeError(w, model.NewValidationError("body", "product required"))
		return
	}

	if err := h.cart.AddToCart(ctx, product); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleUpdateQuantity sets a line's quantity.
// PUT /cart/items/{productId}
func (h *Handler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.session.Check(ctx)
	productID := r.PathValue("productId")

	var req updateQuantityRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.DebugContext(ctx, "updating quantity",
		slog.String("product_id", productID),
		slog.Int("quantity", req.Quantity),
	)

	if err := h.cart.UpdateQuantity(ctx, productID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleRemoveFromCart drops a line.
// DELETE /cart/items/{productId}
func (h *Handler) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.session.Check(ctx)

	if err := h.cart.RemoveFromCart(ctx, r.PathValue("productId")); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleClearCart empties the cart.
// DELETE /cart
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.session.Check(ctx)

	if err := h.cart.ClearCart(ctx); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleMerge re-triggers the post-login guest cart merge. A failed push
// still answers 200: the cart is usable and synced reports false.
// POST /cart/merge
func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.session.Check(ctx)

	_, err := h.cart.MergeGuestCartAfterLogin(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "guest cart merge did not sync", slog.String("error", err.Error()))
	}

	h.writeJSON(w, http.StatusOK, mergeResponse{State: h.cart.Snapshot(), Synced: err == nil})
}

// handleCheckoutSucceeded clears the cart after payment.
// POST /checkout/succeeded
func (h *Handler) handleCheckoutSucceeded(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.session.Check(ctx)

	if err := h.cart.OnCheckoutSucceeded(ctx); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleLogin stores a bearer token. Sign-in listeners (the cart merge) run
// before the response is written.
// POST /session
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.session.Login(ctx, req.Token); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleLogout drops the bearer token.
// DELETE /session
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleNotifications lists recent user notices, oldest first.
// GET /notifications
func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	resp := notificationsResponse{Notifications: []notify.Notice{}}
	if h.notices != nil {
		resp.Notifications = append(resp.Notifications, h.notices.Recent()...)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Authenticated: h.session.IsAuthenticated(),
	})
}

type healthResponse struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
}
