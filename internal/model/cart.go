// Package model defines the canonical cart types and the wire shapes of the cart backend.
package model

// UnknownProductName is the display name used when no upstream alias carries a name.
const UnknownProductName = "Unknown Product"

// === Canonical Types ===

// CartItem is one cart line after normalization.
// ProductID is the unique key within a cart; upstream may send it as a string
// or an integer, so it is always held as an opaque string.
type CartItem struct {
	ProductID  string  `json:"productId"`
	Name       string  `json:"name"`
	PictureURL string  `json:"pictureUrl"`
	Price      float64 `json:"price"`    // Non-negative unit price
	Quantity   int     `json:"quantity"` // Always >= 1
	Brand      string  `json:"brand"`
	Category   string  `json:"category"`
}

// State is the read-only view of a cart handed to the UI layer.
type State struct {
	Items   []CartItem `json:"cart"`
	Count   int        `json:"cartCount"`
	Total   float64    `json:"cartTotal"`
	Loading bool       `json:"loading"`
	CartID  *string    `json:"cartId"` // nil for guests and until the backend assigns an identity
}

// Clone returns a deep copy of items. A nil input yields an empty, non-nil slice
// so JSON surfaces always render an array.
func Clone(items []CartItem) []CartItem {
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}

// IndexOf returns the position of productID in items, or -1.
func IndexOf(items []CartItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// === Wire Types (backend cart resource) ===

// WireItem is the outgoing line shape expected by POST /Cart/Update-Cart.
type WireItem struct {
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	PictureURL   string  `json:"pictureUrl"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	BrandName    string  `json:"brandName"`
	CategoryName string  `json:"categoryName"`
}

// UpdateCartRequest is the full-replace body for POST /Cart/Update-Cart.
type UpdateCartRequest struct {
	DeliveryMethodID int        `json:"deliveryMethodId"`
	ShippingPrice    float64    `json:"shippingPrice"`
	CartItems        []WireItem `json:"cartItems"`
}

// CartResponse is the body of GET /Cart/{cartId} and POST /Cart/Update-Cart.
// Items are kept raw because producers disagree on field names; the
// normalizer maps them onto CartItem.
type CartResponse struct {
	ID        any              `json:"id"` // String or number depending on the backend build
	CartItems []map[string]any `json:"cartItems"`
}
