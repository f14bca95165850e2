package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ostlive/bookingpipe/internal/models"
)

// Cart is the subset of Boulevard cart state the booking flow consumes.
// Amounts are in cents.
type Cart struct {
	ID           string
	Subtotal     int64
	TaxAmount    int64
	Total        int64
	LocationName string
}

// CartSummaryInfo is a read-only view of a cart for display.
type CartSummaryInfo struct {
	CartID       string            `json:"cart_id"`
	Items        []string          `json:"items,omitempty"`
	Subtotal     int64             `json:"subtotal"`
	TaxAmount    int64             `json:"tax_amount"`
	Total        int64             `json:"total"`
	LocationName string            `json:"location_name,omitempty"`
	Client       models.ClientInfo `json:"client"`
}

type addressNode struct {
	City  string `json:"city"`
	State string `json:"state"`
}

type locationNode struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	BusinessName       string      `json:"businessName"`
	AllowOnlineBooking bool        `json:"allowOnlineBooking"`
	Address            addressNode `json:"address"`
}

type summaryNode struct {
	DiscountAmount int64 `json:"discountAmount"`
	Subtotal       int64 `json:"subtotal"`
	TaxAmount      int64 `json:"taxAmount"`
	Total          int64 `json:"total"`
}

// ListLocations fetches the business locations available for booking.
func (c *Client) ListLocations(ctx context.Context) ([]models.Location, error) {
	var data struct {
		Locations struct {
			Edges []struct {
				Node locationNode `json:"node"`
			} `json:"edges"`
		} `json:"locations"`
	}
	if err := c.doClient(ctx, queryLocations, nil, &data); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	locations := make([]models.Location, 0, len(data.Locations.Edges))
	for _, edge := range data.Locations.Edges {
		name := edge.Node.Name
		if name == "" {
			name = edge.Node.BusinessName
		}
		locations = append(locations, models.Location{
			ID:   edge.Node.ID,
			Name: name,
			City: edge.Node.Address.City,
		})
	}
	slog.Debug("Commerce ListLocations succeeded", "count", len(locations))
	return locations, nil
}

// ListMembershipPlans fetches all membership plans via the admin endpoint.
func (c *Client) ListMembershipPlans(ctx context.Context) ([]models.Plan, error) {
	var data struct {
		MembershipPlans struct {
			Edges []struct {
				Node struct {
					ID          string `json:"id"`
					Name        string `json:"name"`
					Active      bool   `json:"active"`
					UnitPrice   int64  `json:"unitPrice"`
					Description string `json:"description"`
					Category    struct {
						ID   string `json:"id"`
						Name string `json:"name"`
					} `json:"category"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"membershipPlans"`
	}
	if err := c.doAdmin(ctx, queryMembershipPlans, nil, &data); err != nil {
		return nil, fmt.Errorf("failed to list membership plans: %w", err)
	}

	plans := make([]models.Plan, 0, len(data.MembershipPlans.Edges))
	for _, edge := range data.MembershipPlans.Edges {
		plans = append(plans, models.Plan{
			ID:          edge.Node.ID,
			Name:        edge.Node.Name,
			Description: edge.Node.Description,
			Price:       edge.Node.UnitPrice,
			Active:      edge.Node.Active,
			Category:    edge.Node.Category.Name,
		})
	}
	slog.Debug("Commerce ListMembershipPlans succeeded", "count", len(plans))
	return plans, nil
}

// CreateCart creates a cart scoped to the given location.
func (c *Client) CreateCart(ctx context.Context, locationID string) (*Cart, error) {
	variables := map[string]any{
		"input": map[string]any{"locationId": locationID},
	}
	var data struct {
		CreateCart struct {
			Cart struct {
				ID       string      `json:"id"`
				Summary  summaryNode `json:"summary"`
				Location struct {
					Name         string `json:"name"`
					BusinessName string `json:"businessName"`
				} `json:"location"`
			} `json:"cart"`
		} `json:"createCart"`
	}
	if err := c.doClient(ctx, mutationCreateCart, variables, &data); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	if data.CreateCart.Cart.ID == "" {
		return nil, fmt.Errorf("create cart returned no cart ID")
	}

	name := data.CreateCart.Cart.Location.Name
	if name == "" {
		name = data.CreateCart.Cart.Location.BusinessName
	}
	slog.Debug("Commerce CreateCart succeeded", "cartID", data.CreateCart.Cart.ID, "locationID", locationID)
	return &Cart{
		ID:           data.CreateCart.Cart.ID,
		Subtotal:     data.CreateCart.Cart.Summary.Subtotal,
		TaxAmount:    data.CreateCart.Cart.Summary.TaxAmount,
		Total:        data.CreateCart.Cart.Summary.Total,
		LocationName: name,
	}, nil
}

// AddItemToCart adds a membership plan to an existing cart.
func (c *Client) AddItemToCart(ctx context.Context, cartID, itemID string) error {
	variables := map[string]any{
		"input": map[string]any{"id": cartID, "itemId": itemID},
	}
	var data struct {
		AddCartSelectedPurchasableItem struct {
			Cart struct {
				ID            string `json:"id"`
				SelectedItems []struct {
					ID string `json:"id"`
				} `json:"selectedItems"`
			} `json:"cart"`
		} `json:"addCartSelectedPurchasableItem"`
	}
	if err := c.doClient(ctx, mutationAddItemToCart, variables, &data); err != nil {
		return fmt.Errorf("failed to add item to cart: %w", err)
	}
	slog.Debug("Commerce AddItemToCart succeeded", "cartID", cartID, "itemID", itemID, "selectedItems", len(data.AddCartSelectedPurchasableItem.Cart.SelectedItems))
	return nil
}

// ApplyPromotionCode applies an offer code to the cart. A code the backend
// rejects outright surfaces as an error; a code it accepts but does not apply
// is reported with Applied=false.
func (c *Client) ApplyPromotionCode(ctx context.Context, cartID, code string) (*models.PromoResult, error) {
	variables := map[string]any{
		"input": map[string]any{"id": cartID, "offerCode": code},
	}
	var data struct {
		AddCartOffer struct {
			Offer struct {
				Applied bool   `json:"applied"`
				Code    string `json:"code"`
			} `json:"offer"`
			Cart struct {
				ID      string      `json:"id"`
				Summary summaryNode `json:"summary"`
			} `json:"cart"`
		} `json:"addCartOffer"`
	}
	if err := c.doClient(ctx, mutationApplyPromotionCode, variables, &data); err != nil {
		return nil, fmt.Errorf("failed to apply promotion code: %w", err)
	}
	slog.Debug("Commerce ApplyPromotionCode completed", "cartID", cartID, "applied", data.AddCartOffer.Offer.Applied)
	return &models.PromoResult{
		Applied:        data.AddCartOffer.Offer.Applied,
		Total:          data.AddCartOffer.Cart.Summary.Total,
		DiscountAmount: data.AddCartOffer.Cart.Summary.DiscountAmount,
	}, nil
}

// SetClientOnCart attaches client information to the cart before checkout.
func (c *Client) SetClientOnCart(ctx context.Context, cartID string, info models.ClientInfo) error {
	variables := map[string]any{
		"input": map[string]any{
			"id": cartID,
			"clientInformation": map[string]any{
				"firstName":   info.FirstName,
				"lastName":    info.LastName,
				"email":       info.Email,
				"phoneNumber": info.PhoneNumber,
			},
		},
	}
	if err := c.doClient(ctx, mutationSetClientOnCart, variables, nil); err != nil {
		return fmt.Errorf("failed to set client on cart: %w", err)
	}
	slog.Debug("Commerce SetClientOnCart succeeded", "cartID", cartID, "email", info.Email)
	return nil
}

// AddCardPaymentMethod attaches a tokenized card to the cart and selects it.
func (c *Client) AddCardPaymentMethod(ctx context.Context, cartID, token string) error {
	variables := map[string]any{
		"input": map[string]any{"id": cartID, "token": token, "select": true},
	}
	if err := c.doClient(ctx, mutationAddCardPaymentMethod, variables, nil); err != nil {
		return fmt.Errorf("failed to add card payment method: %w", err)
	}
	slog.Debug("Commerce AddCardPaymentMethod succeeded", "cartID", cartID)
	return nil
}

// CheckoutCart performs the final checkout and returns the raw checkout
// payload so the caller can persist it with the booking record.
func (c *Client) CheckoutCart(ctx context.Context, cartID string) (json.RawMessage, error) {
	var data json.RawMessage
	if err := c.doClient(ctx, mutationCheckoutCart, map[string]any{"id": cartID}, &data); err != nil {
		return nil, fmt.Errorf("failed to checkout cart: %w", err)
	}
	slog.Info("Commerce CheckoutCart succeeded", "cartID", cartID)
	return data, nil
}

// CartSummary fetches a read-only view of the cart. Returns (nil, nil) when
// the cart no longer exists or has expired.
func (c *Client) CartSummary(ctx context.Context, cartID string) (*CartSummaryInfo, error) {
	var data struct {
		Cart *struct {
			ID            string `json:"id"`
			SelectedItems []struct {
				Item struct {
					Name string `json:"name"`
				} `json:"item"`
			} `json:"selectedItems"`
			Summary  summaryNode `json:"summary"`
			Location struct {
				Name         string `json:"name"`
				BusinessName string `json:"businessName"`
			} `json:"location"`
			ClientInformation models.ClientInfo `json:"clientInformation"`
		} `json:"cart"`
	}
	if err := c.doClient(ctx, queryCartSummary, map[string]any{"id": cartID}, &data); err != nil {
		return nil, fmt.Errorf("failed to fetch cart summary: %w", err)
	}
	if data.Cart == nil {
		slog.Debug("Commerce CartSummary: cart not found or expired", "cartID", cartID)
		return nil, nil
	}

	items := make([]string, 0, len(data.Cart.SelectedItems))
	for _, it := range data.Cart.SelectedItems {
		items = append(items, it.Item.Name)
	}
	name := data.Cart.Location.Name
	if name == "" {
		name = data.Cart.Location.BusinessName
	}
	return &CartSummaryInfo{
		CartID:       data.Cart.ID,
		Items:        items,
		Subtotal:     data.Cart.Summary.Subtotal,
		TaxAmount:    data.Cart.Summary.TaxAmount,
		Total:        data.Cart.Summary.Total,
		LocationName: name,
		Client:       data.Cart.ClientInformation,
	}, nil
}
