package localstore

import (
	"context"
	"encoding/json"
	"log/slog"

	"cartsync/internal/model"
	"cartsync/internal/normalize"
)

// Slot names.
const (
	SlotGuestCart = "guestCart"
	SlotCartID    = "cartId"
	SlotAuthToken = "authToken"
)

// Store exposes the three persistent slots over a KV backend.
//
// Writes are fire-and-forget: a failing backend is logged at warn and the
// in-memory cart stays authoritative for the session.
type Store struct {
	kv     KV
	logger *slog.Logger
}

// New wraps kv. A nil logger uses slog.Default.
func New(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger.With("component", "localstore")}
}

// GuestCart returns the persisted guest cart, re-normalized. A missing slot
// yields an empty cart; an unreadable blob is deleted and yields an empty cart.
func (s *Store) GuestCart(ctx context.Context) []model.CartItem {
	raw, ok, err := s.kv.Get(ctx, SlotGuestCart)
	if err != nil {
		s.logger.Warn("reading guest cart failed", "error", err)
		return []model.CartItem{}
	}
	if !ok || len(raw) == 0 {
		return []model.CartItem{}
	}

	// Decoded as raw maps so carts written with older field names still load.
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn("discarding corrupt guest cart", "error", err)
		s.delete(ctx, SlotGuestCart)
		return []model.CartItem{}
	}
	return normalize.NormalizeAll(items, normalize.KindCartItem)
}

// SaveGuestCart overwrites the guest slot.
func (s *Store) SaveGuestCart(ctx context.Context, items []model.CartItem) {
	data, err := json.Marshal(normalize.Canonical(items))
	if err != nil {
		s.logger.Warn("encoding guest cart failed", "error", err)
		return
	}
	s.set(ctx, SlotGuestCart, data)
}

// ClearGuestCart removes the guest slot.
func (s *Store) ClearGuestCart(ctx context.Context) {
	s.delete(ctx, SlotGuestCart)
}

// CartIdentity returns the stored backend cart id, or "".
func (s *Store) CartIdentity(ctx context.Context) string {
	return s.getString(ctx, SlotCartID)
}

// SaveCartIdentity stores id. An empty id clears the slot.
func (s *Store) SaveCartIdentity(ctx context.Context, id string) {
	if id == "" {
		s.delete(ctx, SlotCartID)
		return
	}
	s.set(ctx, SlotCartID, []byte(id))
}

// ClearCartIdentity removes the stored identity.
func (s *Store) ClearCartIdentity(ctx context.Context) {
	s.delete(ctx, SlotCartID)
}

// AuthToken returns the stored bearer token, or "".
func (s *Store) AuthToken(ctx context.Context) string {
	return s.getString(ctx, SlotAuthToken)
}

// SaveAuthToken stores the bearer token.
func (s *Store) SaveAuthToken(ctx context.Context, token string) {
	s.set(ctx, SlotAuthToken, []byte(token))
}

// ClearAuthToken removes the bearer token.
func (s *Store) ClearAuthToken(ctx context.Context) {
	s.delete(ctx, SlotAuthToken)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) getString(ctx context.Context, slot string) string {
	raw, ok, err := s.kv.Get(ctx, slot)
	if err != nil {
		s.logger.Warn("reading slot failed", "slot", slot, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return string(raw)
}

func (s *Store) set(ctx context.Context, slot string, value []byte) {
	if err := s.kv.Set(ctx, slot, value); err != nil {
		s.logger.Warn("writing slot failed", "slot", slot, "error", err)
	}
}

func (s *Store) delete(ctx context.Context, slot string) {
	if err := s.kv.Delete(ctx, slot); err != nil {
		s.logger.Warn("deleting slot failed", "slot", slot, "error", err)
	}
}
