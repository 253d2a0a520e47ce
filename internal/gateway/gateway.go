// Package gateway talks to the remote cart backend.
// Implementations translate backend responses into canonical cart items.
package gateway

import (
	"context"

	"cartsync/internal/model"
)

// Gateway abstracts the cart backend's four operations.
//
// Failures are returned as *model.NetworkError (no response) or
// *model.HTTPError (status >= 400). model.IsNotFound reports a stale
// cart identity.
type Gateway interface {
	// FetchCart loads the cart with the given identity, normalized.
	FetchCart(ctx context.Context, cartID string) ([]model.CartItem, error)

	// ReplaceCart overwrites the user's server cart with items and returns the
	// identity the backend assigned. Returns model.ErrUnauthenticated without
	// any I/O when no user is signed in.
	ReplaceCart(ctx context.Context, items []model.CartItem) (string, error)

	// DeleteItem removes one product line from the user's server cart.
	DeleteItem(ctx context.Context, productID string) error

	// DeleteCart deletes the server cart with the given identity.
	DeleteCart(ctx context.Context, cartID string) error
}
