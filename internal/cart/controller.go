// Package cart owns the in-memory cart and keeps it in step with the local
// store (guests) and the remote cart backend (signed-in users).
//
// Mutations are optimistic: the in-memory cart changes first, persistence
// follows, and a persistence failure restores the snapshot taken before the
// change. At login the guest cart is merged into the user's remote cart at
// most once per session.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"cartsync/internal/gateway"
	"cartsync/internal/metrics"
	"cartsync/internal/model"
	"cartsync/internal/normalize"
	"cartsync/internal/notify"
	"cartsync/internal/reconcile"
)

// LocalStore is the persistence the controller needs. *localstore.Store satisfies it.
type LocalStore interface {
	GuestCart(ctx context.Context) []model.CartItem
	SaveGuestCart(ctx context.Context, items []model.CartItem)
	ClearGuestCart(ctx context.Context)
	CartIdentity(ctx context.Context) string
	SaveCartIdentity(ctx context.Context, id string)
	ClearCartIdentity(ctx context.Context)
}

// Authenticator reports whether a user is signed in. *auth.Session satisfies it.
type Authenticator interface {
	IsAuthenticated() bool
}

// Deps are the controller's collaborators.
type Deps struct {
	Gateway  gateway.Gateway
	Store    LocalStore
	Auth     Authenticator
	Notifier notify.Notifier  // Optional; defaults to notify.Discard
	Metrics  *metrics.Metrics // Optional
	Logger   *slog.Logger     // Optional; defaults to slog.Default
}

// Controller is the single owner of the in-memory cart.
type Controller struct {
	gw       gateway.Gateway
	store    LocalStore
	auth     Authenticator
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// opMu serializes initialize, merge and mutations so no mutation is
	// applied against a cart that an in-flight merge is about to replace.
	opMu        sync.Mutex
	initialized bool
	authed      bool // last authentication state acted upon
	merged      bool // guest cart merged this login session

	mu      sync.RWMutex
	items   []model.CartItem
	cartID  string
	loading bool
}

// New creates a controller. Gateway, Store and Auth are required.
func New(deps Deps) (*Controller, error) {
	if deps.Gateway == nil || deps.Store == nil || deps.Auth == nil {
		return nil, errors.New("cart: gateway, store and auth are required")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		gw:       deps.Gateway,
		store:    deps.Store,
		auth:     deps.Auth,
		notifier: notifier,
		metrics:  deps.Metrics,
		logger:   logger.With("component", "cart"),
		items:    []model.CartItem{},
	}, nil
}

// === Read side ===

// Snapshot returns a consistent copy of the cart and its derived values.
// Guests never see a cart identity, even one kept from an earlier sign-in.
func (c *Controller) Snapshot() model.State {
	authenticated := c.auth.IsAuthenticated()
	c.mu.RLock()
	defer c.mu.RUnlock()
	state := model.State{
		Items:   model.Clone(c.items),
		Count:   model.Count(c.items),
		Total:   model.Total(c.items),
		Loading: c.loading,
	}
	if authenticated && c.cartID != "" {
		id := c.cartID
		state.CartID = &id
	}
	return state
}

// Cart returns a copy of the current items.
func (c *Controller) Cart() []model.CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.Clone(c.items)
}

// CartCount is the sum of quantities.
func (c *Controller) CartCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.Count(c.items)
}

// CartTotal is the sum of price times quantity.
func (c *Controller) CartTotal() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.Total(c.items)
}

// Loading reports whether a fetch or merge is in flight.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// CartID returns the backend cart identity, or "" when none is known.
func (c *Controller) CartID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cartID
}

// === Lifecycle ===

// Initialize builds the cart for the first time. Later calls are no-ops;
// authentication transitions go through OnAuthChanged.
func (c *Controller) Initialize(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.initialized {
		return
	}
	c.initialized = true
	c.authed = c.auth.IsAuthenticated()
	c.setCartID(c.store.CartIdentity(ctx))
	c.initializeLocked(ctx, c.authed)
}

// OnAuthChanged reacts to a sign-in or sign-out. Its signature matches
// auth.Listener. The event is only a prompt: the controller acts on what the
// Authenticator reports now, so a stale or repeated event is a no-op.
func (c *Controller) OnAuthChanged(ctx context.Context, _ bool) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if !c.initialized {
		// Initialize reads the predicate itself.
		return
	}
	authenticated := c.auth.IsAuthenticated()
	if authenticated == c.authed {
		return
	}
	c.authed = authenticated
	c.merged = false

	if authenticated {
		c.logger.Info("user signed in, rebuilding cart")
		c.initializeLocked(ctx, true)
		return
	}

	// The identity stays in memory and in the store for the next sign-in.
	c.logger.Info("user signed out, restoring guest cart")
	c.setItems(c.store.GuestCart(ctx))
}

func (c *Controller) initializeLocked(ctx context.Context, authenticated bool) {
	if !authenticated {
		c.setItems(c.store.GuestCart(ctx))
		return
	}

	guest := c.store.GuestCart(ctx)
	id := c.store.CartIdentity(ctx)
	c.setCartID(id)

	switch {
	case len(guest) > 0 && !c.merged:
		c.mergeLocked(ctx, guest, id)
	case id != "":
		c.fetchLocked(ctx, id)
	default:
		c.setItems(nil)
	}
}

// MergeGuestCartAfterLogin re-triggers the login merge. It merges only when
// a signed-in user has a non-empty guest cart that was not merged yet this
// session; otherwise it refreshes from the backend when an identity is known.
// The returned error reports a failed push; the cart is usable either way.
func (c *Controller) MergeGuestCartAfterLogin(ctx context.Context) ([]model.CartItem, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	authenticated := c.auth.IsAuthenticated()
	guest := c.store.GuestCart(ctx)
	if authenticated && len(guest) > 0 && !c.merged {
		id := c.store.CartIdentity(ctx)
		c.setCartID(id)
		return c.mergeLocked(ctx, guest, id)
	}

	c.metrics.IncMerge(metrics.MergeSkipped)
	if id := c.CartID(); authenticated && id != "" {
		return c.fetchLocked(ctx, id), nil
	}
	return c.Cart(), nil
}

// mergeLocked folds guest into the remote cart and pushes the result.
// The merge flag is set in every outcome so a session never sums the same
// guest cart into the remote cart twice.
func (c *Controller) mergeLocked(ctx context.Context, guest []model.CartItem, id string) ([]model.CartItem, error) {
	c.setLoading(true)
	defer c.setLoading(false)
	defer func() { c.merged = true }()

	var remote []model.CartItem
	if id != "" {
		items, err := c.gw.FetchCart(ctx, id)
		switch {
		case err == nil:
			remote = items
		case model.IsNotFound(err):
			c.dropStaleIdentity(ctx, id)
			id = ""
		default:
			c.logger.Warn("fetching remote cart for merge failed, merging against empty cart", "cart_id", id, "error", err)
		}
	}

	merged := reconcile.Merge(remote, guest)
	if len(merged) == 0 {
		c.setItems(guest)
		c.store.ClearGuestCart(ctx)
		c.metrics.IncMerge(metrics.MergeEmpty)
		return model.Clone(guest), nil
	}

	// Visible before the push so the user sees the merged cart even if it fails.
	c.setItems(merged)

	newID, err := c.gw.ReplaceCart(ctx, merged)
	if err != nil {
		c.metrics.IncMerge(metrics.MergePushFailed)
		c.logger.Warn("pushing merged cart failed", "error", err)
		c.notify(ctx, notify.LevelError, notify.MsgMergeFailed)
		if id != "" {
			return c.fetchLocked(ctx, id), fmt.Errorf("merge guest cart: %w", err)
		}
		c.setItems(guest)
		return model.Clone(guest), fmt.Errorf("merge guest cart: %w", err)
	}

	if newID != "" {
		c.saveIdentity(ctx, newID)
	}
	c.store.ClearGuestCart(ctx)
	c.metrics.IncMerge(metrics.MergeSynced)

	diff := reconcile.DiffLineItems(remote, merged)
	c.logger.Info("guest cart merged",
		"cart_id", c.CartID(),
		"added", len(diff.ToAdd),
		"updated", len(diff.ToUpdate),
		"items", len(merged),
	)
	c.notify(ctx, notify.LevelSuccess, mergeSummary(diff))
	return model.Clone(merged), nil
}

// fetchLocked loads the remote cart into memory. Any failure falls back to
// the guest cart; a 404 also discards the stale identity.
func (c *Controller) fetchLocked(ctx context.Context, id string) []model.CartItem {
	c.setLoading(true)
	defer c.setLoading(false)

	items, err := c.gw.FetchCart(ctx, id)
	if err != nil {
		if model.IsNotFound(err) {
			c.dropStaleIdentity(ctx, id)
		} else {
			c.logger.Warn("fetching remote cart failed, using guest cart", "cart_id", id, "error", err)
		}
		guest := c.store.GuestCart(ctx)
		c.setItems(guest)
		return guest
	}

	c.setItems(items)
	return model.Clone(items)
}

// === Mutations ===

// AddToCart adds one unit of product. product is a raw catalog record in any
// of the accepted field shapes.
func (c *Controller) AddToCart(ctx context.Context, product map[string]any) error {
	item := normalize.Normalize(product, normalize.KindProduct)
	if item.ProductID == "" {
		return model.NewValidationError("productId", "product has no identifier")
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	return c.transact(ctx, "add_to_cart", notify.MsgAddFailed,
		func(items []model.CartItem) ([]model.CartItem, bool) {
			if i := model.IndexOf(items, item.ProductID); i >= 0 {
				items[i].Quantity++
				return items, true
			}
			return append(items, item), true
		},
		c.persist,
	)
}

// UpdateQuantity sets the quantity of productID. Values below 1 are clamped
// to 1; removing a line is an explicit RemoveFromCart. Unknown products are
// ignored.
func (c *Controller) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	return c.transact(ctx, "update_quantity", notify.MsgUpdateFailed,
		func(items []model.CartItem) ([]model.CartItem, bool) {
			i := model.IndexOf(items, productID)
			if i < 0 || items[i].Quantity == quantity {
				return items, false
			}
			items[i].Quantity = quantity
			return items, true
		},
		c.persist,
	)
}

// RemoveFromCart drops productID. Signed-in users with a known cart identity
// get a single-line delete; when that fails the whole cart is replaced
// instead. Only a failure of both reverts the removal.
func (c *Controller) RemoveFromCart(ctx context.Context, productID string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	return c.transact(ctx, "remove_from_cart", notify.MsgRemoveFailed,
		func(items []model.CartItem) ([]model.CartItem, bool) {
			i := model.IndexOf(items, productID)
			if i < 0 {
				return items, false
			}
			return append(items[:i], items[i+1:]...), true
		},
		func(ctx context.Context, items []model.CartItem) error {
			if !c.auth.IsAuthenticated() || c.CartID() == "" {
				return c.persist(ctx, items)
			}
			deleteErr := c.gw.DeleteItem(ctx, productID)
			if deleteErr == nil {
				return nil
			}
			c.logger.Info("single-item delete failed, replacing cart", "product_id", productID, "error", deleteErr)
			if err := c.push(ctx, items); err != nil {
				return multierr.Combine(deleteErr, err)
			}
			return nil
		},
	)
}

// ClearCart empties the cart. The in-memory cart is cleared first and stays
// cleared even if the backend delete fails.
func (c *Controller) ClearCart(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.clearLocked(ctx)
}

// OnCheckoutSucceeded empties the cart after the payment flow completes.
func (c *Controller) OnCheckoutSucceeded(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.logger.Info("checkout succeeded, clearing cart", "cart_id", c.CartID())
	return c.clearLocked(ctx)
}

func (c *Controller) clearLocked(ctx context.Context) error {
	c.setItems(nil)

	id := c.CartID()
	if !c.auth.IsAuthenticated() || id == "" {
		c.store.ClearGuestCart(ctx)
		return nil
	}

	if err := c.gw.DeleteCart(ctx, id); err != nil {
		c.logger.Warn("clearing remote cart failed", "cart_id", id, "error", err)
		c.notify(ctx, notify.LevelError, notify.MsgClearFailed)
		return fmt.Errorf("clear cart: %w", err)
	}
	c.forgetIdentity(ctx)
	return nil
}

// transact applies mutate to a copy of the cart, publishes the result and
// persists it. When persist fails the pre-mutation snapshot is restored.
func (c *Controller) transact(
	ctx context.Context,
	op, failMsg string,
	mutate func([]model.CartItem) ([]model.CartItem, bool),
	persist func(context.Context, []model.CartItem) error,
) error {
	before := c.Cart()
	after, changed := mutate(model.Clone(before))
	if !changed {
		return nil
	}
	c.setItems(after)

	if err := persist(ctx, model.Clone(after)); err != nil {
		c.setItems(before)
		c.metrics.IncRollback(op)
		c.logger.Warn("cart change reverted", "op", op, "error", err)
		c.notify(ctx, notify.LevelError, failMsg)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// persist writes items to the backend for signed-in users, else to the guest slot.
func (c *Controller) persist(ctx context.Context, items []model.CartItem) error {
	if !c.auth.IsAuthenticated() {
		c.store.SaveGuestCart(ctx, items)
		return nil
	}
	return c.push(ctx, items)
}

// push replaces the remote cart and records the identity it returns.
func (c *Controller) push(ctx context.Context, items []model.CartItem) error {
	id, err := c.gw.ReplaceCart(ctx, items)
	if err != nil {
		return err
	}
	if id != "" {
		c.saveIdentity(ctx, id)
	}
	return nil
}

// === State helpers ===

func (c *Controller) setItems(items []model.CartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = model.Clone(items)
}

func (c *Controller) setCartID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cartID = id
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = v
}

func (c *Controller) saveIdentity(ctx context.Context, id string) {
	c.setCartID(id)
	c.store.SaveCartIdentity(ctx, id)
}

func (c *Controller) forgetIdentity(ctx context.Context) {
	c.setCartID("")
	c.store.ClearCartIdentity(ctx)
}

func (c *Controller) dropStaleIdentity(ctx context.Context, id string) {
	c.logger.Info("stored cart identity no longer exists, discarding", "cart_id", id)
	c.metrics.IncStaleIdentity()
	c.forgetIdentity(ctx)
}

func (c *Controller) notify(ctx context.Context, level notify.Level, msg string) {
	c.notifier.Notify(ctx, notify.Notice{Level: level, Message: msg})
}

func mergeSummary(diff *reconcile.LineItemDiff) string {
	switch {
	case len(diff.ToAdd) == 0 && len(diff.ToUpdate) == 0:
		return "Your cart is up to date."
	case len(diff.ToUpdate) == 0:
		return fmt.Sprintf("Cart synced: %d added.", len(diff.ToAdd))
	case len(diff.ToAdd) == 0:
		return fmt.Sprintf("Cart synced: %d updated.", len(diff.ToUpdate))
	}
	return fmt.Sprintf("Cart synced: %d added, %d updated.", len(diff.ToAdd), len(diff.ToUpdate))
}
