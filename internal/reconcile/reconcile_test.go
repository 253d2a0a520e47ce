package reconcile

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"cartsync/internal/model"
)

func item(id string, qty int, price float64) model.CartItem {
	return model.CartItem{ProductID: id, Name: "Product " + id, Quantity: qty, Price: price}
}

func TestMerge_SimpleScenario(t *testing.T) {
	remote := []model.CartItem{item("A", 2, 10)}
	guest := []model.CartItem{item("A", 1, 10), item("B", 3, 5)}

	got := Merge(remote, guest)

	want := []model.CartItem{item("A", 3, 10), item("B", 3, 5)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge() = %+v, want %+v", got, want)
	}
	if total := model.Total(got); total != 45 {
		t.Errorf("Total = %v, want 45", total)
	}
}

func TestMerge_EmptyGuestIsIdentity(t *testing.T) {
	remote := []model.CartItem{item("C", 1, 3), item("A", 4, 1), item("B", 2, 2)}

	got := Merge(remote, nil)

	if !reflect.DeepEqual(got, remote) {
		t.Errorf("Merge(R, nil) = %+v, want %+v", got, remote)
	}

	// Stable under repeated merges of an already-merged cart.
	again := Merge(got, []model.CartItem{})
	if !reflect.DeepEqual(again, remote) {
		t.Errorf("second Merge(R, []) = %+v, want %+v", again, remote)
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	remote := []model.CartItem{item("A", 2, 10)}
	guest := []model.CartItem{item("A", 1, 10)}

	Merge(remote, guest)

	if remote[0].Quantity != 2 || guest[0].Quantity != 1 {
		t.Errorf("inputs mutated: remote=%+v guest=%+v", remote, guest)
	}
}

func TestMerge_BothEmpty(t *testing.T) {
	got := Merge(nil, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Merge(nil, nil) = %#v, want empty non-nil slice", got)
	}
}

func TestMerge_OrderRemoteThenGuest(t *testing.T) {
	remote := []model.CartItem{item("R1", 1, 1), item("R2", 1, 1)}
	guest := []model.CartItem{item("G2", 1, 1), item("R2", 1, 1), item("G1", 1, 1)}

	got := Merge(remote, guest)

	var ids []string
	for _, it := range got {
		ids = append(ids, it.ProductID)
	}
	want := []string{"R1", "R2", "G2", "G1"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}

func TestMerge_DescriptiveFieldsPreferGuest(t *testing.T) {
	remote := []model.CartItem{{
		ProductID: "A", Name: "Old Name", PictureURL: "old.png",
		Price: 10, Quantity: 1, Brand: "OldBrand", Category: "Serums",
	}}
	guest := []model.CartItem{{
		ProductID: "A", Name: "New Name", PictureURL: "",
		Price: 12, Quantity: 2, Brand: "NewBrand", Category: "",
	}}

	got := Merge(remote, guest)

	want := model.CartItem{
		ProductID: "A", Name: "New Name", PictureURL: "old.png",
		Price: 12, Quantity: 3, Brand: "NewBrand", Category: "Serums",
	}
	if len(got) != 1 || got[0] != want {
		t.Errorf("Merge() = %+v, want [%+v]", got, want)
	}
}

func TestMerge_UnknownNameDoesNotOverrideRemote(t *testing.T) {
	remote := []model.CartItem{{ProductID: "A", Name: "Serum", Quantity: 1}}
	guest := []model.CartItem{{ProductID: "A", Name: model.UnknownProductName, Quantity: 1}}

	got := Merge(remote, guest)

	if got[0].Name != "Serum" {
		t.Errorf("Name = %q, want Serum", got[0].Name)
	}
}

func TestMerge_DuplicateGuestLinesAreSummed(t *testing.T) {
	guest := []model.CartItem{item("A", 1, 1), item("A", 2, 1)}

	got := Merge(nil, guest)

	if len(got) != 1 || got[0].Quantity != 3 {
		t.Errorf("Merge() = %+v, want single A x3", got)
	}
}

// TestMerge_Properties checks the merge invariants over random carts:
// unique keys, additive quantities, guest-only items preserved unchanged.
func TestMerge_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	randomCart := func() []model.CartItem {
		n := rng.Intn(6)
		var out []model.CartItem
		seen := map[string]bool{}
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("P%d", rng.Intn(8))
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, item(id, 1+rng.Intn(5), float64(rng.Intn(50))))
		}
		return out
	}

	for round := 0; round < 500; round++ {
		remote, guest := randomCart(), randomCart()
		got := Merge(remote, guest)

		seen := map[string]bool{}
		for _, it := range got {
			if seen[it.ProductID] {
				t.Fatalf("round %d: duplicate %s in %+v", round, it.ProductID, got)
			}
			seen[it.ProductID] = true
		}

		for _, g := range guest {
			idx := model.IndexOf(got, g.ProductID)
			if idx < 0 {
				t.Fatalf("round %d: guest item %s lost", round, g.ProductID)
			}
			if r := model.IndexOf(remote, g.ProductID); r >= 0 {
				if want := remote[r].Quantity + g.Quantity; got[idx].Quantity != want {
					t.Fatalf("round %d: %s quantity = %d, want %d", round, g.ProductID, got[idx].Quantity, want)
				}
			} else if got[idx] != g {
				t.Fatalf("round %d: guest-only item changed: %+v -> %+v", round, g, got[idx])
			}
		}

		if model.Count(got) != model.Count(remote)+model.Count(guest) {
			t.Fatalf("round %d: unit count not conserved", round)
		}
	}
}

func TestDiffLineItems_EmptyToItems(t *testing.T) {
	after := []model.CartItem{item("prod-1", 2, 1), item("prod-2", 1, 1)}

	diff := DiffLineItems(nil, after)

	if len(diff.ToAdd) != 2 {
		t.Errorf("ToAdd = %d, want 2", len(diff.ToAdd))
	}
	if len(diff.ToRemove) != 0 {
		t.Errorf("ToRemove = %d, want 0", len(diff.ToRemove))
	}
	if len(diff.ToUpdate) != 0 {
		t.Errorf("ToUpdate = %d, want 0", len(diff.ToUpdate))
	}
}

func TestDiffLineItems_ItemsToEmpty(t *testing.T) {
	before := []model.CartItem{item("prod-1", 2, 1), item("prod-2", 1, 1)}

	diff := DiffLineItems(before, nil)

	if len(diff.ToRemove) != 2 {
		t.Errorf("ToRemove = %d, want 2", len(diff.ToRemove))
	}
	if diff.ToRemove[0].ProductID != "prod-1" || diff.ToRemove[1].ProductID != "prod-2" {
		t.Errorf("ToRemove order = %+v, want before order", diff.ToRemove)
	}
}

func TestDiffLineItems_NoChange(t *testing.T) {
	cart := []model.CartItem{item("prod-1", 2, 1)}

	diff := DiffLineItems(cart, cart)

	if !diff.IsEmpty() {
		t.Error("Expected empty diff for identical items")
	}
}

func TestDiffLineItems_MixedOperations(t *testing.T) {
	before := []model.CartItem{
		item("prod-1", 2, 1), // will be removed
		item("prod-2", 1, 1), // will be updated
		item("prod-3", 3, 1), // unchanged
	}
	after := []model.CartItem{
		item("prod-2", 5, 1),
		item("prod-3", 3, 1),
		item("prod-4", 1, 1),
	}

	diff := DiffLineItems(before, after)

	if len(diff.ToAdd) != 1 || diff.ToAdd[0].ProductID != "prod-4" {
		t.Errorf("ToAdd = %+v, want [prod-4]", diff.ToAdd)
	}
	if len(diff.ToRemove) != 1 || diff.ToRemove[0].ProductID != "prod-1" {
		t.Errorf("ToRemove = %+v, want [prod-1]", diff.ToRemove)
	}
	if len(diff.ToUpdate) != 1 {
		t.Fatalf("ToUpdate = %d, want 1", len(diff.ToUpdate))
	}
	if u := diff.ToUpdate[0]; u.ProductID != "prod-2" || u.OldQuantity != 1 || u.NewQuantity != 5 {
		t.Errorf("ToUpdate[0] = %+v, want prod-2 1->5", u)
	}
}

func TestDiffLineItems_MergeSummary(t *testing.T) {
	remote := []model.CartItem{item("A", 2, 10)}
	merged := Merge(remote, []model.CartItem{item("A", 1, 10), item("B", 3, 5)})

	diff := DiffLineItems(remote, merged)

	if len(diff.ToAdd) != 1 || len(diff.ToUpdate) != 1 || len(diff.ToRemove) != 0 {
		t.Errorf("diff = %+v, want 1 add, 1 update", diff)
	}
}
