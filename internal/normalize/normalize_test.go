package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"cartsync/internal/model"
)

func TestNormalize_Aliases(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want model.CartItem
	}{
		{
			name: "backend cart line",
			raw: map[string]any{
				"productId":    float64(12),
				"productName":  "Hydrating Serum",
				"pictureUrl":   "https://cdn.example/serum.png",
				"price":        "24.50",
				"quantity":     float64(2),
				"brandName":    "Glow",
				"categoryName": "Serums",
			},
			want: model.CartItem{
				ProductID: "12", Name: "Hydrating Serum", PictureURL: "https://cdn.example/serum.png",
				Price: 24.5, Quantity: 2, Brand: "Glow", Category: "Serums",
			},
		},
		{
			name: "catalog product shape",
			raw: map[string]any{
				"id":              "p-7",
				"title":           "Night Cream",
				"imageUrl":        "night.png",
				"price":           float64(30),
				"productBrand":    "Luna",
				"productCategory": "Moisturizers",
			},
			want: model.CartItem{
				ProductID: "p-7", Name: "Night Cream", PictureURL: "night.png",
				Price: 30, Quantity: 1, Brand: "Luna", Category: "Moisturizers",
			},
		},
		{
			name: "id wins over productId",
			raw:  map[string]any{"id": "a", "productId": "b", "name": "x"},
			want: model.CartItem{ProductID: "a", Name: "x", Quantity: 1},
		},
		{
			name: "empty alias falls through",
			raw:  map[string]any{"id": "", "productId": "b", "name": "", "productName": "Toner"},
			want: model.CartItem{ProductID: "b", Name: "Toner", Quantity: 1},
		},
		{
			name: "canonical brand and category",
			raw:  map[string]any{"productId": "c", "brand": "B", "category": "C"},
			want: model.CartItem{ProductID: "c", Name: model.UnknownProductName, Quantity: 1, Brand: "B", Category: "C"},
		},
		{
			name: "json.Number fields",
			raw:  map[string]any{"id": json.Number("44"), "price": json.Number("9.99"), "quantity": json.Number("3")},
			want: model.CartItem{ProductID: "44", Name: model.UnknownProductName, Price: 9.99, Quantity: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw, KindCartItem)
			if got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalize_TotalOverMalformedInput(t *testing.T) {
	inputs := []map[string]any{
		nil,
		{},
		{"price": nil, "quantity": nil, "name": nil},
		{"price": "abc", "quantity": "many"},
		{"price": -5.0, "quantity": -3.0},
		{"price": math.NaN(), "quantity": math.Inf(1)},
		{"price": true, "quantity": []any{1}},
		{"id": map[string]any{"nested": 1}, "name": 42.0},
		{"quantity": "0"},
		{"quantity": 1e12},
	}

	for _, raw := range inputs {
		for _, kind := range []Kind{KindCartItem, KindProduct} {
			got := Normalize(raw, kind)
			if got.Price < 0 {
				t.Errorf("Normalize(%v).Price = %v, want >= 0", raw, got.Price)
			}
			if got.Quantity < 1 {
				t.Errorf("Normalize(%v).Quantity = %d, want >= 1", raw, got.Quantity)
			}
			if got.Name == "" {
				t.Errorf("Normalize(%v).Name is empty", raw)
			}
		}
	}
}

func TestNormalize_ProductAlwaysOneUnit(t *testing.T) {
	got := Normalize(map[string]any{"id": "A", "quantity": float64(5)}, KindProduct)
	if got.Quantity != 1 {
		t.Errorf("Quantity = %d, want 1", got.Quantity)
	}
}

func TestNormalize_QuantityParsing(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{float64(3), 3},
		{"4", 4},
		{"2.7", 2},
		{" 6 ", 6},
		{"", 1},
		{"x", 1},
		{float64(0), 1},
		{7, 7},
	}

	for _, tt := range tests {
		got := Normalize(map[string]any{"id": "A", "quantity": tt.in}, KindCartItem).Quantity
		if got != tt.want {
			t.Errorf("quantity %#v = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeAll_DropsAndCollapses(t *testing.T) {
	raws := []map[string]any{
		{"productId": "A", "quantity": float64(1)},
		{"name": "no id"},
		{"id": float64(7), "quantity": float64(2)},
		{"productId": "A", "quantity": float64(4)},
		{"productId": "7", "quantity": float64(1)},
	}

	got := NormalizeAll(raws, KindCartItem)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].ProductID != "A" || got[0].Quantity != 5 {
		t.Errorf("got[0] = %+v, want A x5", got[0])
	}
	if got[1].ProductID != "7" || got[1].Quantity != 3 {
		t.Errorf("got[1] = %+v, want 7 x3", got[1])
	}
}

func TestFromItem_FixedPoint(t *testing.T) {
	item := model.CartItem{
		ProductID: "99", Name: "Cleanser", PictureURL: "c.png",
		Price: 12.75, Quantity: 3, Brand: "Pure", Category: "Cleansers",
	}
	if got := Normalize(FromItem(item), KindCartItem); got != item {
		t.Errorf("Normalize(FromItem(x)) = %+v, want %+v", got, item)
	}
}

func TestToWire(t *testing.T) {
	items := []model.CartItem{
		{ProductID: "A", Name: "Mask", PictureURL: "m.png", Price: 10, Quantity: 2, Brand: "B", Category: "C"},
		{ProductID: "B", Price: -1, Quantity: 0},
	}

	wire := ToWire(items)

	if len(wire) != 2 {
		t.Fatalf("len = %d, want 2", len(wire))
	}
	want := model.WireItem{
		ProductID: "A", ProductName: "Mask", PictureURL: "m.png",
		Price: 10, Quantity: 2, BrandName: "B", CategoryName: "C",
	}
	if wire[0] != want {
		t.Errorf("wire[0] = %+v, want %+v", wire[0], want)
	}
	if wire[1].ProductName != model.UnknownProductName || wire[1].Price != 0 || wire[1].Quantity != 1 {
		t.Errorf("wire[1] not clamped: %+v", wire[1])
	}

	// The wire shape must round-trip through the normalizer.
	body, _ := json.Marshal(wire[0])
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := Normalize(raw, KindCartItem); got != items[0] {
		t.Errorf("wire round trip = %+v, want %+v", got, items[0])
	}
}

func TestCoalesce(t *testing.T) {
	guest := model.CartItem{ProductID: "A", Name: model.UnknownProductName, Quantity: 1, Brand: "Fresh"}
	remote := model.CartItem{ProductID: "A", Name: "Serum", PictureURL: "s.png", Price: 10, Quantity: 2, Brand: "Old", Category: "Serums"}

	got := Coalesce(guest, remote)

	if got.Name != "Serum" || got.PictureURL != "s.png" || got.Category != "Serums" || got.Price != 10 {
		t.Errorf("fallback fields not applied: %+v", got)
	}
	if got.Brand != "Fresh" {
		t.Errorf("Brand = %q, want guest value Fresh", got.Brand)
	}
	if got.Quantity != 1 {
		t.Errorf("Quantity = %d, want untouched 1", got.Quantity)
	}
}

func TestCanonical(t *testing.T) {
	items := []model.CartItem{
		{ProductID: "A", Name: "Serum", Price: 10, Quantity: 1},
		{ProductID: "", Name: "orphan", Quantity: 1},
		{ProductID: "A", Name: "Serum", Price: 10, Quantity: 2},
		{ProductID: "B", Name: "", Price: -3, Quantity: 0},
	}

	got := Canonical(items)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].ProductID != "A" || got[0].Quantity != 3 {
		t.Errorf("got[0] = %+v, want A x3", got[0])
	}
	if got[1].Name != model.UnknownProductName || got[1].Price != 0 || got[1].Quantity != 1 {
		t.Errorf("got[1] = %+v, want defaults applied", got[1])
	}

	// Already canonical input is a fixed point.
	again := Canonical(got)
	for i := range got {
		if again[i] != got[i] {
			t.Errorf("Canonical not idempotent at %d: %+v vs %+v", i, again[i], got[i])
		}
	}
}
