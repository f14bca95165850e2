// Package models defines the core data structures for BookingPipe.
//
// It includes the booking progress record, step identifiers, and the types
// shared across the flow, store, and API modules.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StepID identifies a single step of the membership booking flow.
type StepID string

// Booking flow steps, in dependency order.
const (
	StepGetLocations        StepID = "getLocations"
	StepSelectLocation      StepID = "selectLocation"
	StepCreateCart          StepID = "createCart"
	StepGetMembershipPlans  StepID = "getMembershipPlans"
	StepSelectPlan          StepID = "selectPlan"
	StepAddMembershipToCart StepID = "addMembershipToCart"
	StepApplyPromotionCode  StepID = "applyPromotionCode"
	StepCollectClientInfo   StepID = "collectClientInfo"
	StepSetClientOnCart     StepID = "setClientOnCart"
	StepAddCardPayment      StepID = "addCardPaymentMethod"
	StepCheckoutCart        StepID = "checkoutCart"
	StepBookingComplete     StepID = "bookingComplete"

	// StepEnd is a routing sentinel, never recorded in CompletedSteps.
	StepEnd StepID = "__end__"
)

// PromoState tracks where the promo sub-dialogue left off. The promo step is
// the only step with a cyclic self-loop, so its position must survive a
// suspend/resume cycle.
type PromoState string

const (
	PromoStateNone       PromoState = ""
	PromoStateAskingCode PromoState = "asking_for_code"
	PromoStateRetrying   PromoState = "retrying_code"
)

// Validation error variables shared across modules.
var (
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrEmptyConversationID = errors.New("conversation ID cannot be empty")
	ErrEmptyCardToken      = errors.New("card token cannot be empty")
	ErrAlreadyCheckedOut   = errors.New("checkout already completed for this cart")
	ErrBookingNotReady     = errors.New("booking has no cart or incomplete client info")
	ErrNoProgress          = errors.New("no booking progress found")
)

// CorrelationKey identifies one independent booking attempt. It is the
// namespace for progress records, the per-key lock key, and the token
// rendezvous lookup key.
type CorrelationKey struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

// Validate checks that both components of the key are present.
func (k CorrelationKey) Validate() error {
	if strings.TrimSpace(k.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(k.ConversationID) == "" {
		return ErrEmptyConversationID
	}
	return nil
}

// String renders the key in "userID:conversationID" form for logging and
// map keys.
func (k CorrelationKey) String() string {
	return k.UserID + ":" + k.ConversationID
}

// ClientInfo holds the contact fields collected before checkout.
type ClientInfo struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Merge folds non-empty fields of other into a copy of c. A later partial
// update never erases a previously captured field unless it overwrites it
// with a non-empty value.
func (c ClientInfo) Merge(other ClientInfo) ClientInfo {
	merged := c
	if other.FirstName != "" {
		merged.FirstName = other.FirstName
	}
	if other.LastName != "" {
		merged.LastName = other.LastName
	}
	if other.Email != "" {
		merged.Email = other.Email
	}
	if other.PhoneNumber != "" {
		merged.PhoneNumber = other.PhoneNumber
	}
	return merged
}

// Complete reports whether all four required contact fields are present.
func (c ClientInfo) Complete() bool {
	return c.FirstName != "" && c.LastName != "" && c.Email != "" && c.PhoneNumber != ""
}

// MissingFields lists the human-readable names of absent contact fields.
func (c ClientInfo) MissingFields() []string {
	var missing []string
	if c.FirstName == "" {
		missing = append(missing, "first name")
	}
	if c.LastName == "" {
		missing = append(missing, "last name")
	}
	if c.Email == "" {
		missing = append(missing, "email address")
	}
	if c.PhoneNumber == "" {
		missing = append(missing, "phone number")
	}
	return missing
}

// Location is one bookable business location.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

// Plan is one purchasable membership plan. Price is in cents.
type Plan struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Active      bool   `json:"active"`
	Category    string `json:"category,omitempty"`
}

// PromoResult is the commerce API's answer to a promo code application.
// Total and DiscountAmount are in cents and only meaningful when Applied.
type PromoResult struct {
	Applied        bool  `json:"applied"`
	Total          int64 `json:"total"`
	DiscountAmount int64 `json:"discountAmount"`
}

// BookingData holds the step-scoped fields accumulated while a booking
// progresses. Pointer fields distinguish "never set" from zero.
type BookingData struct {
	SelectedLocationID   string          `json:"selectedLocationId,omitempty"`
	SelectedLocationName string          `json:"selectedLocationName,omitempty"`
	CartID               string          `json:"cartId,omitempty"`
	SelectedPlanID       string          `json:"selectedPlanId,omitempty"`
	SelectedPlanName     string          `json:"selectedPlanName,omitempty"`
	SelectedPlanPrice    int64           `json:"selectedPlanPrice,omitempty"`
	PromoCode            string          `json:"promoCode,omitempty"`
	PromoSkipped         bool            `json:"promoSkipped,omitempty"`
	PromoTotal           *int64          `json:"promoTotal,omitempty"`
	PromoDiscountAmount  *int64          `json:"promoDiscountAmount,omitempty"`
	PromoState           PromoState      `json:"promoState,omitempty"`
	ClientInfo           ClientInfo      `json:"clientInfo"`
	CardToken            string          `json:"cardToken,omitempty"`
	PaymentURL           string          `json:"paymentUrl,omitempty"`
	CheckoutComplete     bool            `json:"checkoutComplete,omitempty"`
	CheckoutResult       json.RawMessage `json:"checkoutResult,omitempty"`
}

// BookingProgress is the persisted record of one booking attempt, keyed by
// CorrelationKey in the store.
type BookingProgress struct {
	CompletedSteps     []StepID    `json:"completed_steps"`
	Data               BookingData `json:"data"`
	AvailableLocations []Location  `json:"available_locations,omitempty"`
	AvailablePlans     []Plan      `json:"available_plans,omitempty"`
	LastUpdated        time.Time   `json:"last_updated"`
}

// NewBookingProgress returns a fresh record with no completed steps.
func NewBookingProgress() *BookingProgress {
	return &BookingProgress{CompletedSteps: []StepID{}}
}

// HasStep reports whether the step has already been recorded as completed.
func (p *BookingProgress) HasStep(step StepID) bool {
	for _, s := range p.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// RecordStep appends the step to CompletedSteps if not already present,
// preserving insertion order. Recording is idempotent.
func (p *BookingProgress) RecordStep(step StepID) {
	if p.HasStep(step) {
		return
	}
	p.CompletedSteps = append(p.CompletedSteps, step)
}

// Clone returns a deep copy of the progress record. Stores hand out copies
// so a caller mutating its snapshot cannot corrupt cached state.
func (p *BookingProgress) Clone() *BookingProgress {
	cp := *p
	cp.CompletedSteps = append([]StepID(nil), p.CompletedSteps...)
	cp.AvailableLocations = append([]Location(nil), p.AvailableLocations...)
	cp.AvailablePlans = append([]Plan(nil), p.AvailablePlans...)
	if p.Data.PromoTotal != nil {
		v := *p.Data.PromoTotal
		cp.Data.PromoTotal = &v
	}
	if p.Data.PromoDiscountAmount != nil {
		v := *p.Data.PromoDiscountAmount
		cp.Data.PromoDiscountAmount = &v
	}
	if p.Data.CheckoutResult != nil {
		cp.Data.CheckoutResult = append(json.RawMessage(nil), p.Data.CheckoutResult...)
	}
	return &cp
}

// EffectiveTotal returns the payable amount in cents: the post-discount
// total when a promo was applied, otherwise the selected plan price.
func (p *BookingProgress) EffectiveTotal() int64 {
	if p.Data.PromoTotal != nil {
		return *p.Data.PromoTotal
	}
	return p.Data.SelectedPlanPrice
}

// FormatCents renders a cent amount as a dollar string, e.g. 10999 -> "109.99".
func FormatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// PromptSpec describes what a suspended step is asking the user for. It is
// returned to the chat surface instead of relying on any in-memory
// continuation state; the next turn re-enters the same step with the reply.
type PromptSpec struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	FreeText    bool   `json:"free_text"`
}
