package commerce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ostlive/bookingpipe/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(
		WithClientURL(srv.URL),
		WithAdminURL(srv.URL),
		WithAPIKey("test-key"),
		WithBusinessID("biz-1"),
		WithAPISecret(base64.StdEncoding.EncodeToString([]byte("secret-bytes"))),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, srv
}

func TestNewClientRequiresClientURLAndAPIKey(t *testing.T) {
	if _, err := NewClient(WithAPIKey("k")); err == nil {
		t.Error("expected error when client URL missing")
	}
	if _, err := NewClient(WithClientURL("http://example.com")); err == nil {
		t.Error("expected error when API key missing")
	}
}

func TestGuestAuthHeader(t *testing.T) {
	got := guestAuthHeader("my-key")
	want := base64.StdEncoding.EncodeToString([]byte("my-key:"))
	if got != want {
		t.Errorf("guestAuthHeader = %q, want %q", got, want)
	}
}

func TestAdminAuthHeader(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("raw-secret"))
	now := time.Unix(1700000000, 0)

	got, err := adminAuthHeader("api-key", "biz-1", secret, now)
	if err != nil {
		t.Fatalf("adminAuthHeader failed: %v", err)
	}

	payload := fmt.Sprintf("blvd-admin-v1%s%d", "biz-1", now.Unix())
	mac := hmac.New(sha256.New, []byte("raw-secret"))
	mac.Write([]byte(payload))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	want := base64.StdEncoding.EncodeToString([]byte("api-key:" + signature + payload))

	if got != want {
		t.Errorf("adminAuthHeader = %q, want %q", got, want)
	}
}

func TestAdminAuthHeaderRejectsNonBase64Secret(t *testing.T) {
	if _, err := adminAuthHeader("k", "biz", "not base64!!!", time.Now()); err == nil {
		t.Error("expected error for non-base64 secret")
	}
}

func TestListLocationsMapsNodes(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data":{"locations":{"edges":[
			{"node":{"id":"loc-1","name":"Downtown","businessName":"Glow Spa","address":{"city":"Toronto"}}},
			{"node":{"id":"loc-2","name":"","businessName":"Glow Spa North","address":{"city":"Vaughan"}}}
		]}}}`)
	})

	locations, err := client.ListLocations(context.Background())
	if err != nil {
		t.Fatalf("ListLocations failed: %v", err)
	}
	if len(locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(locations))
	}
	if locations[0].ID != "loc-1" || locations[0].Name != "Downtown" || locations[0].City != "Toronto" {
		t.Errorf("unexpected first location: %+v", locations[0])
	}
	if locations[1].Name != "Glow Spa North" {
		t.Errorf("expected businessName fallback, got %q", locations[1].Name)
	}

	wantAuth := "Basic " + guestAuthHeader("test-key")
	if gotAuth != wantAuth {
		t.Errorf("guest call sent auth %q, want %q", gotAuth, wantAuth)
	}
}

func TestListMembershipPlansUsesAdminAuth(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data":{"membershipPlans":{"edges":[
			{"node":{"id":"plan-1","name":"Gold","active":true,"unitPrice":10999,"description":"Monthly gold","category":{"id":"c1","name":"Memberships"}}},
			{"node":{"id":"plan-2","name":"Legacy","active":false,"unitPrice":5000,"description":"","category":{"id":"c1","name":"Memberships"}}}
		]}}}`)
	})
	client.now = func() time.Time { return time.Unix(1700000000, 0) }

	plans, err := client.ListMembershipPlans(context.Background())
	if err != nil {
		t.Fatalf("ListMembershipPlans failed: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].Price != 10999 || !plans[0].Active || plans[0].Category != "Memberships" {
		t.Errorf("unexpected first plan: %+v", plans[0])
	}

	wantHeader, err := adminAuthHeader("test-key", "biz-1", base64.StdEncoding.EncodeToString([]byte("secret-bytes")), time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("adminAuthHeader failed: %v", err)
	}
	if gotAuth != "Basic "+wantHeader {
		t.Errorf("admin call sent auth %q, want %q", gotAuth, "Basic "+wantHeader)
	}
}

func TestCreateCartSendsLocationInput(t *testing.T) {
	var gotBody graphQLRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		fmt.Fprint(w, `{"data":{"createCart":{"cart":{"id":"cart-1","summary":{"subtotal":0,"taxAmount":0,"total":0},"location":{"name":"Downtown"}}}}}`)
	})

	cart, err := client.CreateCart(context.Background(), "loc-1")
	if err != nil {
		t.Fatalf("CreateCart failed: %v", err)
	}
	if cart.ID != "cart-1" || cart.LocationName != "Downtown" {
		t.Errorf("unexpected cart: %+v", cart)
	}

	input, ok := gotBody.Variables["input"].(map[string]any)
	if !ok {
		t.Fatalf("request variables missing input: %v", gotBody.Variables)
	}
	if input["locationId"] != "loc-1" {
		t.Errorf("expected locationId loc-1, got %v", input["locationId"])
	}
}

func TestCreateCartWithoutIDFails(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"createCart":{"cart":{"id":""}}}}`)
	})
	if _, err := client.CreateCart(context.Background(), "loc-1"); err == nil {
		t.Error("expected error when cart ID missing")
	}
}

func TestApplyPromotionCodeReportsRejection(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"addCartOffer":{"offer":{"applied":false,"code":"NOPE"},"cart":{"id":"cart-1","summary":{"discountAmount":0,"subtotal":10999,"taxAmount":0,"total":10999}}}}}`)
	})

	result, err := client.ApplyPromotionCode(context.Background(), "cart-1", "NOPE")
	if err != nil {
		t.Fatalf("ApplyPromotionCode failed: %v", err)
	}
	if result.Applied {
		t.Error("expected rejected promo to report Applied=false")
	}
}

func TestApplyPromotionCodeReportsDiscount(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"addCartOffer":{"offer":{"applied":true,"code":"SAVE10"},"cart":{"id":"cart-1","summary":{"discountAmount":1100,"subtotal":10999,"taxAmount":0,"total":9899}}}}}`)
	})

	result, err := client.ApplyPromotionCode(context.Background(), "cart-1", "SAVE10")
	if err != nil {
		t.Fatalf("ApplyPromotionCode failed: %v", err)
	}
	if !result.Applied || result.Total != 9899 || result.DiscountAmount != 1100 {
		t.Errorf("unexpected promo result: %+v", result)
	}
}

func TestSetClientOnCartSendsClientInformation(t *testing.T) {
	var gotBody graphQLRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		fmt.Fprint(w, `{"data":{"updateCart":{"cart":{"id":"cart-1"}}}}`)
	})

	info := models.ClientInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PhoneNumber: "5551234567"}
	if err := client.SetClientOnCart(context.Background(), "cart-1", info); err != nil {
		t.Fatalf("SetClientOnCart failed: %v", err)
	}

	input := gotBody.Variables["input"].(map[string]any)
	ci := input["clientInformation"].(map[string]any)
	if ci["email"] != "ada@example.com" || ci["firstName"] != "Ada" {
		t.Errorf("unexpected clientInformation payload: %v", ci)
	}
}

func TestAddCardPaymentMethodSelectsCard(t *testing.T) {
	var gotBody graphQLRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		fmt.Fprint(w, `{"data":{"addCartCardPaymentMethod":{"cart":{"id":"cart-1"}}}}`)
	})

	if err := client.AddCardPaymentMethod(context.Background(), "cart-1", "tok_abc"); err != nil {
		t.Fatalf("AddCardPaymentMethod failed: %v", err)
	}

	input := gotBody.Variables["input"].(map[string]any)
	if input["token"] != "tok_abc" {
		t.Errorf("expected token tok_abc, got %v", input["token"])
	}
	if input["select"] != true {
		t.Errorf("expected select=true, got %v", input["select"])
	}
}

func TestCheckoutCartReturnsRawPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"checkoutCart":{"cart":{"id":"cart-1","summary":{"total":10999}}}}}`)
	})

	raw, err := client.CheckoutCart(context.Background(), "cart-1")
	if err != nil {
		t.Fatalf("CheckoutCart failed: %v", err)
	}
	if !strings.Contains(string(raw), "cart-1") {
		t.Errorf("raw checkout payload missing cart ID: %s", raw)
	}
}

func TestCartSummaryNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"cart":null}}`)
	})

	summary, err := client.CartSummary(context.Background(), "cart-gone")
	if err != nil {
		t.Fatalf("CartSummary failed: %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil summary for missing cart, got %+v", summary)
	}
}

func TestCartSummaryMapsFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"cart":{
			"id":"cart-1",
			"selectedItems":[{"item":{"name":"Gold Membership"}}],
			"summary":{"subtotal":10999,"taxAmount":1430,"total":12429},
			"location":{"name":"Downtown"},
			"clientInformation":{"firstName":"Ada","email":"ada@example.com"}
		}}}`)
	})

	summary, err := client.CartSummary(context.Background(), "cart-1")
	if err != nil {
		t.Fatalf("CartSummary failed: %v", err)
	}
	if summary == nil {
		t.Fatal("expected summary, got nil")
	}
	if len(summary.Items) != 1 || summary.Items[0] != "Gold Membership" {
		t.Errorf("unexpected items: %v", summary.Items)
	}
	if summary.Total != 12429 {
		t.Errorf("unexpected total: %d", summary.Total)
	}
	if summary.Client.Email != "ada@example.com" {
		t.Errorf("unexpected client info: %+v", summary.Client)
	}
}

func TestGraphQLErrorsSurfaceAsError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null,"errors":[{"message":"cart is expired"}]}`)
	})

	_, err := client.CartSummary(context.Background(), "cart-1")
	if err == nil {
		t.Fatal("expected GraphQL error to surface")
	}
	if !strings.Contains(err.Error(), "cart is expired") {
		t.Errorf("error should carry GraphQL message, got %v", err)
	}
}

func TestAdminCallRequiresAdminConfig(t *testing.T) {
	client, err := NewClient(WithClientURL("http://example.invalid"), WithAPIKey("k"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := client.ListMembershipPlans(context.Background()); err == nil {
		t.Error("expected error when admin config missing")
	}
}
