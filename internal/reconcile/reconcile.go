// Package reconcile merges a guest cart into an authenticated cart and
// describes the difference between two cart states.
//
// Both operations are pure: they never fail and never touch storage.
// Failure handling around them belongs to the cart controller.
package reconcile

import (
	"cartsync/internal/model"
	"cartsync/internal/normalize"
)

// Merge reconciles guestItems into remoteItems.
//
// Algorithm:
//  1. Start from a copy of remoteItems (remote is the base)
//  2. For each guest item in guest order: same ProductID in the result →
//     quantities are summed and descriptive fields prefer the guest value
//     when non-empty; otherwise the guest item is appended
//  3. An empty result adopts the guest cart verbatim
//
// Remote items keep their relative order; guest-only items follow in guest
// order. Merge(r, nil) equals r. Quantity conflicts are additive, never
// max/replace: both carts hold independently accumulated user intent.
func Merge(remoteItems, guestItems []model.CartItem) []model.CartItem {
	merged := make([]model.CartItem, 0, len(remoteItems)+len(guestItems))
	for _, item := range remoteItems {
		merged = absorb(merged, item)
	}

	for _, guest := range guestItems {
		merged = absorb(merged, guest)
	}

	if len(merged) == 0 {
		return model.Clone(guestItems)
	}
	return merged
}

// absorb folds incoming into items keyed by ProductID.
// incoming's descriptive fields win when present.
func absorb(items []model.CartItem, incoming model.CartItem) []model.CartItem {
	i := model.IndexOf(items, incoming.ProductID)
	if i < 0 {
		return append(items, incoming)
	}
	existing := items[i]
	combined := normalize.Coalesce(incoming, existing)
	combined.Quantity = existing.Quantity + incoming.Quantity
	items[i] = combined
	return items
}

// LineItemDiff describes how a cart changed between two states.
// Entries follow the order of the state they were found in.
type LineItemDiff struct {
	ToAdd    []ItemToAdd    // Products in after but not before
	ToRemove []ItemToRemove // Products in before but not after
	ToUpdate []ItemToUpdate // Products in both with different quantities
}

// ItemToAdd is a product present only in the later state.
type ItemToAdd struct {
	ProductID string
	Quantity  int
}

// ItemToRemove is a product present only in the earlier state.
type ItemToRemove struct {
	ProductID string
	Quantity  int
}

// ItemToUpdate is a quantity change for a product present in both states.
type ItemToUpdate struct {
	ProductID   string
	OldQuantity int
	NewQuantity int
}

// IsEmpty returns true if no line item changes are needed.
func (d *LineItemDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0 && len(d.ToUpdate) == 0
}

// DiffLineItems computes the delta between before and after.
// Matching is by ProductID. Used to summarize what a merge changed.
func DiffLineItems(before, after []model.CartItem) *LineItemDiff {
	diff := &LineItemDiff{}

	beforeByID := make(map[string]model.CartItem, len(before))
	for _, item := range before {
		beforeByID[item.ProductID] = item
	}
	afterByID := make(map[string]model.CartItem, len(after))
	for _, item := range after {
		afterByID[item.ProductID] = item
	}

	for _, item := range after {
		prev, exists := beforeByID[item.ProductID]
		if !exists {
			diff.ToAdd = append(diff.ToAdd, ItemToAdd{ProductID: item.ProductID, Quantity: item.Quantity})
			continue
		}
		if prev.Quantity != item.Quantity {
			diff.ToUpdate = append(diff.ToUpdate, ItemToUpdate{
				ProductID:   item.ProductID,
				OldQuantity: prev.Quantity,
				NewQuantity: item.Quantity,
			})
		}
	}

	for _, item := range before {
		if _, exists := afterByID[item.ProductID]; !exists {
			diff.ToRemove = append(diff.ToRemove, ItemToRemove{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}

	return diff
}
