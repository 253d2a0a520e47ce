// Package normalize maps heterogeneous cart/product shapes onto model.CartItem.
//
// Different upstream producers (the cart backend, the product catalog, older
// persisted guest carts) disagree on field names. Every boundary crossing
// (wire-in, wire-out, local-store-in) goes through this package so that no
// field-fallback chains leak into mutation logic.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"cartsync/internal/model"
)

// Kind selects the input shape being normalized.
type Kind int

const (
	// KindCartItem is a cart line: quantity is taken from the input.
	KindCartItem Kind = iota
	// KindProduct is a catalog product being added: quantity is always 1.
	KindProduct
)

// Alias sets, in precedence order. The first non-empty value wins.
var (
	idAliases       = []string{"id", "productId"}
	nameAliases     = []string{"name", "productName", "title"}
	imageAliases    = []string{"pictureUrl", "imageUrl"}
	brandAliases    = []string{"productBrand", "brandName", "brand"}
	categoryAliases = []string{"productCategory", "categoryName", "category"}
)

// Normalize converts raw into a canonical CartItem. It never panics: missing
// or malformed fields degrade to defaults (name "Unknown Product", price 0,
// quantity 1). A nil map yields an item with an empty ProductID.
func Normalize(raw map[string]any, kind Kind) model.CartItem {
	item := model.CartItem{
		ProductID:  firstString(raw, idAliases),
		Name:       firstString(raw, nameAliases),
		PictureURL: firstString(raw, imageAliases),
		Price:      parsePrice(raw["price"]),
		Quantity:   1,
		Brand:      firstString(raw, brandAliases),
		Category:   firstString(raw, categoryAliases),
	}
	if item.Name == "" {
		item.Name = model.UnknownProductName
	}
	if kind == KindCartItem {
		item.Quantity = parseQuantity(raw["quantity"])
	}
	return item
}

// NormalizeAll normalizes a list of raw items. Entries without an identifier
// are dropped and repeated identifiers are collapsed into the first
// occurrence with quantities summed, so the result honours the unique-key
// invariant even when the producer did not.
func NormalizeAll(raws []map[string]any, kind Kind) []model.CartItem {
	out := make([]model.CartItem, 0, len(raws))
	for _, raw := range raws {
		item := Normalize(raw, kind)
		if item.ProductID == "" {
			continue
		}
		if i := model.IndexOf(out, item.ProductID); i >= 0 {
			out[i].Quantity += item.Quantity
			continue
		}
		out = append(out, item)
	}
	return out
}

// Canonical re-normalizes items that claim to be canonical already, e.g. a
// guest cart read back from local storage written by an older client.
func Canonical(items []model.CartItem) []model.CartItem {
	raws := make([]map[string]any, len(items))
	for i, item := range items {
		raws[i] = FromItem(item)
	}
	return NormalizeAll(raws, KindCartItem)
}

// FromItem renders a canonical item as a raw map using canonical field names.
// Normalize(FromItem(x), KindCartItem) == x for any normalized x.
func FromItem(item model.CartItem) map[string]any {
	return map[string]any{
		"productId":  item.ProductID,
		"name":       item.Name,
		"pictureUrl": item.PictureURL,
		"price":      item.Price,
		"quantity":   item.Quantity,
		"brand":      item.Brand,
		"category":   item.Category,
	}
}

// ToWire re-expands canonical items into the backend's expected field names
// for POST /Cart/Update-Cart.
func ToWire(items []model.CartItem) []model.WireItem {
	out := make([]model.WireItem, 0, len(items))
	for _, item := range items {
		name := item.Name
		if name == "" {
			name = model.UnknownProductName
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		out = append(out, model.WireItem{
			ProductID:    item.ProductID,
			ProductName:  name,
			PictureURL:   item.PictureURL,
			Price:        math.Max(item.Price, 0),
			Quantity:     qty,
			BrandName:    item.Brand,
			CategoryName: item.Category,
		})
	}
	return out
}

// Coalesce fills every empty descriptive field of preferred from fallback.
// Quantity is left untouched; price falls back only when preferred has none.
func Coalesce(preferred, fallback model.CartItem) model.CartItem {
	out := preferred
	if out.Name == "" || out.Name == model.UnknownProductName {
		if fallback.Name != "" {
			out.Name = fallback.Name
		}
	}
	if out.PictureURL == "" {
		out.PictureURL = fallback.PictureURL
	}
	if out.Brand == "" {
		out.Brand = fallback.Brand
	}
	if out.Category == "" {
		out.Category = fallback.Category
	}
	if out.Price <= 0 {
		out.Price = fallback.Price
	}
	return out
}

// Identifier renders an opaque backend identifier (cart id, product id) that
// may arrive as a JSON string or number.
func Identifier(v any) string {
	return toString(v)
}

// === Field parsing ===

// firstString returns the first alias whose value renders to a non-empty string.
func firstString(raw map[string]any, aliases []string) string {
	for _, key := range aliases {
		if s := toString(raw[key]); s != "" {
			return s
		}
	}
	return ""
}

// toString renders identifiers and labels. Integral floats lose their
// fraction so an id sent as 12 and as "12" compare equal.
func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return toString(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	}
	return ""
}

// toFloat parses numbers and numeric strings. ok is false for anything else.
func toFloat(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case int32:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint64:
		f = float64(val)
	case uint32:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parsePrice returns a non-negative price; anything unparsable is 0.
func parsePrice(v any) float64 {
	f, ok := toFloat(v)
	if !ok || f < 0 {
		return 0
	}
	return f
}

// parseQuantity returns a positive integer quantity; anything unparsable
// or below 1 is 1. Fractions truncate ("2.7" -> 2).
func parseQuantity(v any) int {
	f, ok := toFloat(v)
	if !ok || f >= math.MaxInt32 {
		return 1
	}
	q := int(f)
	if q < 1 {
		return 1
	}
	return q
}
