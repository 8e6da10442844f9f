//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"regexp"
	"testing"
)

const (
	testAPIKey = "integration-test-key"

	seededUserID   = "11111111-1111-1111-1111-111111111111"
	griddleHouseID = "aaaaaaaa-0000-0000-0000-000000000001"
	sakuraBentoID  = "aaaaaaaa-0000-0000-0000-000000000002"
	casaPausedID   = "aaaaaaaa-0000-0000-0000-000000000003"

	burgerItemID = "bbbbbbbb-0000-0000-0000-000000000001"
	bentoItemID  = "bbbbbbbb-0000-0000-0000-000000000011"
)

var pickupCodePattern = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{8}$`)

func placeOrder(t *testing.T) orderResponse {
	t.Helper()

	req := placeOrderRequest{
		UserID:       seededUserID,
		RestaurantID: griddleHouseID,
		Items: []orderItemRequest{
			{MenuItemID: burgerItemID, UnitPrice: "9.50", Quantity: 2},
			{Name: "Fries", UnitPrice: "3.25", Quantity: 1},
		},
	}
	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	return decodeJSON[orderResponse](t, resp)
}

func TestPlaceOrder_NoAuth(t *testing.T) {
	req := placeOrderRequest{
		UserID:       seededUserID,
		RestaurantID: griddleHouseID,
		Items:        []orderItemRequest{{Name: "Fries", UnitPrice: "3.25", Quantity: 1}},
	}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_InvalidKey(t *testing.T) {
	req := placeOrderRequest{
		UserID:       seededUserID,
		RestaurantID: griddleHouseID,
		Items:        []orderItemRequest{{Name: "Fries", UnitPrice: "3.25", Quantity: 1}},
	}
	resp := doPostWithAuth(t, "/api/orders", req, "wrong-key")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	req := placeOrderRequest{
		UserID:       seededUserID,
		RestaurantID: griddleHouseID,
	}
	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_InactiveRestaurant(t *testing.T) {
	req := placeOrderRequest{
		UserID:       seededUserID,
		RestaurantID: casaPausedID,
		Items:        []orderItemRequest{{Name: "Carnitas Taco", UnitPrice: "4.20", Quantity: 1}},
	}
	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_CrossRestaurantItem(t *testing.T) {
	req := placeOrderRequest{
		UserID:       seededUserID,
		RestaurantID: griddleHouseID,
		Items: []orderItemRequest{
			{MenuItemID: bentoItemID, UnitPrice: "13.90", Quantity: 1},
		},
	}
	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	o := placeOrder(t)

	if o.Status != "PENDING" {
		t.Errorf("status: got %q, want PENDING", o.Status)
	}
	if o.Subtotal != "22.25" {
		t.Errorf("subtotal: got %q, want 22.25", o.Subtotal)
	}
	if len(o.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(o.Items))
	}
	if o.Items[0].LineTotal != "19" && o.Items[0].LineTotal != "19.00" {
		t.Errorf("line total: got %q, want 19.00", o.Items[0].LineTotal)
	}
	if o.Items[0].Name != "Classic Burger" {
		t.Errorf("item name snapshot: got %q, want Classic Burger", o.Items[0].Name)
	}
	if !pickupCodePattern.MatchString(o.PickupCode) {
		t.Errorf("pickup code %q does not match expected format", o.PickupCode)
	}
	if o.Payment == nil {
		t.Fatal("payment not created")
	}
	if o.Payment.Status != "PENDING" {
		t.Errorf("payment status: got %q, want PENDING", o.Payment.Status)
	}
	if o.Payment.Amount != o.Total {
		t.Errorf("payment amount %q != order total %q", o.Payment.Amount, o.Total)
	}
}

func TestGetOrder(t *testing.T) {
	placed := placeOrder(t)

	resp := doGetWithAuth(t, "/api/orders/"+placed.ID, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	got := decodeJSON[orderResponse](t, resp)
	if got.ID != placed.ID {
		t.Errorf("id: got %q, want %q", got.ID, placed.ID)
	}
	if got.PickupCode != placed.PickupCode {
		t.Errorf("pickup code changed across reads: %q vs %q", got.PickupCode, placed.PickupCode)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGetWithAuth(t, "/api/orders/00000000-0000-0000-0000-000000000000", testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAddItem_UpdatesTotals(t *testing.T) {
	placed := placeOrder(t)

	resp := doPostWithAuth(t, "/api/orders/"+placed.ID+"/items", orderItemRequest{
		Name: "Vanilla Shake", UnitPrice: "4.75", Quantity: 2,
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	got := decodeJSON[orderResponse](t, resp)
	if len(got.Items) != 3 {
		t.Fatalf("items: got %d, want 3", len(got.Items))
	}
	if got.Subtotal != "31.75" {
		t.Errorf("subtotal: got %q, want 31.75", got.Subtotal)
	}
}

func TestUpdateAndRemoveItem(t *testing.T) {
	placed := placeOrder(t)

	three := 3
	resp := doRequest(t, http.MethodPatch, "/api/orders/"+placed.ID+"/items/"+placed.Items[0].ID, itemUpdateRequest{
		Quantity: &three,
	}, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d", resp.StatusCode)
	}
	got := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if got.Subtotal != "31.75" {
		t.Errorf("subtotal after update: got %q, want 31.75", got.Subtotal)
	}

	resp = doRequest(t, http.MethodDelete, "/api/orders/"+placed.ID+"/items/"+placed.Items[1].ID, nil, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	got = decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if len(got.Items) != 1 {
		t.Fatalf("items after delete: got %d, want 1", len(got.Items))
	}
	if got.Subtotal != "28.5" && got.Subtotal != "28.50" {
		t.Errorf("subtotal after delete: got %q, want 28.50", got.Subtotal)
	}
}

func TestRecalc_Idempotent(t *testing.T) {
	placed := placeOrder(t)

	var totals []string
	for range 2 {
		resp := doPostWithAuth(t, "/api/orders/"+placed.ID+"/recalc", nil, testAPIKey)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		got := decodeJSON[orderResponse](t, resp)
		resp.Body.Close()
		totals = append(totals, got.Total)
	}

	if totals[0] != totals[1] {
		t.Errorf("recalc not idempotent: %q vs %q", totals[0], totals[1])
	}
}

func TestStatusLifecycle(t *testing.T) {
	placed := placeOrder(t)

	for _, next := range []string{"PREPARING", "READY_FOR_PICKUP", "PICKED_UP"} {
		resp := doPostWithAuth(t, "/api/orders/"+placed.ID+"/status", transitionRequest{Status: next}, testAPIKey)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("transition to %s: expected 200, got %d", next, resp.StatusCode)
		}
		got := decodeJSON[orderResponse](t, resp)
		resp.Body.Close()
		if got.Status != next {
			t.Errorf("status: got %q, want %q", got.Status, next)
		}
	}

	// Terminal state rejects further transitions.
	resp := doPostWithAuth(t, "/api/orders/"+placed.ID+"/status", transitionRequest{Status: "PREPARING"}, testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestStatusLifecycle_RejectsSkip(t *testing.T) {
	placed := placeOrder(t)

	resp := doPostWithAuth(t, "/api/orders/"+placed.ID+"/status", transitionRequest{Status: "PICKED_UP"}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestPaymentLifecycle(t *testing.T) {
	placed := placeOrder(t)

	resp := doPostWithAuth(t, "/api/orders/"+placed.ID+"/payment", paymentResultRequest{
		Status: "PAID", TransactionID: "txn_integration_1",
	}, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	p := decodeJSON[paymentResponse](t, resp)
	resp.Body.Close()
	if p.Status != "PAID" {
		t.Errorf("payment status: got %q, want PAID", p.Status)
	}

	// A resolved payment may not be resolved again.
	resp = doPostWithAuth(t, "/api/orders/"+placed.ID+"/payment", paymentResultRequest{
		Status: "REFUNDED", TransactionID: "txn_integration_2",
	}, testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestListOrdersByUser(t *testing.T) {
	placed := placeOrder(t)

	resp := doGetWithAuth(t, "/api/orders?user_id="+seededUserID, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	orders := decodeJSON[[]orderResponse](t, resp)
	var found bool
	for _, o := range orders {
		if o.ID == placed.ID {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("placed order %s not in user's order list", placed.ID)
	}
}

func TestPickupCodes_UniqueAcrossOrders(t *testing.T) {
	seen := make(map[string]string)
	for i := range 5 {
		o := placeOrder(t)
		if prev, ok := seen[o.PickupCode]; ok {
			t.Fatalf("pickup code %q reused by orders %s and %s (iteration %d)", o.PickupCode, prev, o.ID, i)
		}
		seen[o.PickupCode] = o.ID
	}
}

func TestConcurrentAddItem(t *testing.T) {
	placed := placeOrder(t)

	const workers = 4
	errs := make(chan error, workers)
	for range workers {
		go func() {
			resp := doPostWithAuth(t, "/api/orders/"+placed.ID+"/items", orderItemRequest{
				Name: "Miso Soup", UnitPrice: "2.50", Quantity: 1,
			}, testAPIKey)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				errs <- fmt.Errorf("expected 201, got %d", resp.StatusCode)
				return
			}
			errs <- nil
		}()
	}
	for range workers {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}

	resp := doGetWithAuth(t, "/api/orders/"+placed.ID, testAPIKey)
	defer resp.Body.Close()
	got := decodeJSON[orderResponse](t, resp)

	if len(got.Items) != 2+workers {
		t.Errorf("items: got %d, want %d", len(got.Items), 2+workers)
	}
	// 22.25 from placement plus 4 * 2.50.
	if got.Subtotal != "32.25" {
		t.Errorf("subtotal: got %q, want 32.25", got.Subtotal)
	}
}
