package flow

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/ostlive/bookingpipe/internal/models"
)

// Messages shown when a commerce call fails. The step is not recorded, so
// the next turn retries it.
const (
	msgLocationsFailed = "I'm having trouble fetching locations. Please try again."
	msgCartFailed      = "Error creating cart. Please try again."
	msgPlansFailed     = "Error fetching plans. Please try again."
	msgAddItemFailed   = "Error adding to cart. Please try again."
	msgClientFailed    = "Error saving your information. Please try again."
	msgPaymentFailed   = "Error adding payment method. Please try again."
	msgCheckoutFailed  = "Error during checkout. Please try again."
)

const contactInfoIntro = "Now I need some information to complete your booking.\n\nPlease enter your first name, last name, email and phone number."

func (e *Engine) execGetLocations(ctx context.Context, p *models.BookingProgress) stepOutcome {
	if p.HasStep(models.StepGetLocations) {
		return stepOutcome{}
	}
	locations, err := e.commerce.ListLocations(ctx)
	if err != nil {
		slog.Error("Engine getLocations failed", "error", err)
		return stepOutcome{messages: []string{msgLocationsFailed}, halt: true}
	}
	if len(locations) == 0 {
		slog.Error("Engine getLocations returned no locations")
		return stepOutcome{messages: []string{msgLocationsFailed}, halt: true}
	}
	p.AvailableLocations = locations
	p.RecordStep(models.StepGetLocations)

	var b strings.Builder
	b.WriteString("Here are our available locations:\n\n")
	for i, loc := range locations {
		b.WriteString(fmt.Sprintf("%d. %s", i+1, loc.Name))
		if loc.City != "" {
			b.WriteString(" - " + loc.City)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nWhich location would you prefer? (Enter number or name)")
	return stepOutcome{messages: []string{b.String()}}
}

func (e *Engine) execSelectLocation(p *models.BookingProgress, tc *turnContext) stepOutcome {
	input := strings.TrimSpace(tc.take())
	if input == "" {
		return stepOutcome{prompt: &models.PromptSpec{
			Action:      "select_location",
			Description: "Please select a location:",
			FreeText:    true,
		}}
	}
	idx := matchOption(input, locationNames(p.AvailableLocations))
	if idx < 0 {
		return stepOutcome{
			messages: []string{fmt.Sprintf("Invalid selection %q. Please choose by number or name:", input)},
			prompt: &models.PromptSpec{
				Action:      "select_location",
				Description: "Please select a location:",
				FreeText:    true,
			},
		}
	}
	loc := p.AvailableLocations[idx]
	p.Data.SelectedLocationID = loc.ID
	p.Data.SelectedLocationName = loc.Name
	p.RecordStep(models.StepSelectLocation)
	slog.Debug("Engine selectLocation matched", "locationID", loc.ID, "name", loc.Name)
	return stepOutcome{messages: []string{fmt.Sprintf("Perfect! You've selected %s.", loc.Name)}}
}

func (e *Engine) execCreateCart(ctx context.Context, p *models.BookingProgress) stepOutcome {
	if p.HasStep(models.StepCreateCart) {
		return stepOutcome{}
	}
	// A cart ID from an earlier failed turn is reused, never recreated.
	if p.Data.CartID == "" {
		cart, err := e.commerce.CreateCart(ctx, p.Data.SelectedLocationID)
		if err != nil {
			slog.Error("Engine createCart failed", "locationID", p.Data.SelectedLocationID, "error", err)
			return stepOutcome{messages: []string{msgCartFailed}, halt: true}
		}
		p.Data.CartID = cart.ID
	}
	p.RecordStep(models.StepCreateCart)
	return stepOutcome{messages: []string{"Cart created! Loading membership plans..."}}
}

func (e *Engine) execGetMembershipPlans(ctx context.Context, p *models.BookingProgress) stepOutcome {
	if p.HasStep(models.StepGetMembershipPlans) {
		return stepOutcome{}
	}
	plans, err := e.commerce.ListMembershipPlans(ctx)
	if err != nil {
		slog.Error("Engine getMembershipPlans failed", "error", err)
		return stepOutcome{messages: []string{msgPlansFailed}, halt: true}
	}
	if len(plans) == 0 {
		slog.Error("Engine getMembershipPlans returned no plans")
		return stepOutcome{messages: []string{msgPlansFailed}, halt: true}
	}
	p.AvailablePlans = plans
	p.RecordStep(models.StepGetMembershipPlans)

	var b strings.Builder
	b.WriteString("Here are our membership plans:\n\n")
	for i, plan := range plans {
		b.WriteString(fmt.Sprintf("%d. %s - $%s", i+1, plan.Name, models.FormatCents(plan.Price)))
		if plan.Description != "" {
			b.WriteString("\n   " + plan.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nWhich plan interests you?")
	return stepOutcome{messages: []string{b.String()}}
}

func (e *Engine) execSelectPlan(p *models.BookingProgress, tc *turnContext) stepOutcome {
	input := strings.TrimSpace(tc.take())
	if input == "" {
		return stepOutcome{prompt: &models.PromptSpec{
			Action:      "select_plan",
			Description: "Please select a membership plan:",
			FreeText:    true,
		}}
	}
	idx := matchOption(input, planNames(p.AvailablePlans))
	if idx < 0 {
		return stepOutcome{
			messages: []string{fmt.Sprintf("Invalid selection %q. Please choose by number or name:", input)},
			prompt: &models.PromptSpec{
				Action:      "select_plan",
				Description: "Please select a membership plan:",
				FreeText:    true,
			},
		}
	}
	plan := p.AvailablePlans[idx]
	p.Data.SelectedPlanID = plan.ID
	p.Data.SelectedPlanName = plan.Name
	p.Data.SelectedPlanPrice = plan.Price
	p.RecordStep(models.StepSelectPlan)
	slog.Debug("Engine selectPlan matched", "planID", plan.ID, "name", plan.Name)
	return stepOutcome{messages: []string{fmt.Sprintf("Excellent! You've selected %s.", plan.Name)}}
}

func (e *Engine) execAddMembershipToCart(ctx context.Context, p *models.BookingProgress) stepOutcome {
	if p.HasStep(models.StepAddMembershipToCart) {
		return stepOutcome{}
	}
	if err := e.commerce.AddItemToCart(ctx, p.Data.CartID, p.Data.SelectedPlanID); err != nil {
		slog.Error("Engine addMembershipToCart failed", "cartID", p.Data.CartID, "planID", p.Data.SelectedPlanID, "error", err)
		return stepOutcome{messages: []string{msgAddItemFailed}, halt: true}
	}
	p.RecordStep(models.StepAddMembershipToCart)
	return stepOutcome{messages: []string{fmt.Sprintf("%s added to cart!", p.Data.SelectedPlanName)}}
}

// execApplyPromotionCode runs the promo sub-dialogue. The sub-state lives in
// Data.PromoState so the dialogue survives suspension: none (asking yes/no),
// asking_for_code, and retrying_code after a rejected code.
func (e *Engine) execApplyPromotionCode(ctx context.Context, p *models.BookingProgress, tc *turnContext) stepOutcome {
	input := strings.TrimSpace(tc.take())
	if input == "" {
		return stepOutcome{prompt: &models.PromptSpec{
			Action:      "promo_code_input",
			Description: promoPromptText(p.Data.PromoState),
			FreeText:    true,
		}}
	}

	lower := strings.ToLower(input)
	switch p.Data.PromoState {
	case models.PromoStateNone:
		switch lower {
		case "yes", "y":
			p.Data.PromoState = models.PromoStateAskingCode
			return stepOutcome{
				messages: []string{"Great! Please enter your promo code:"},
				prompt: &models.PromptSpec{
					Action:      "promo_code_input",
					Description: promoPromptText(models.PromoStateAskingCode),
					FreeText:    true,
				},
			}
		case "no", "n", "skip":
			return e.skipPromo(p)
		}
		// Anything else is treated as the code itself.
	case models.PromoStateRetrying:
		switch lower {
		case "yes", "y":
			p.Data.PromoState = models.PromoStateAskingCode
			return stepOutcome{prompt: &models.PromptSpec{
				Action:      "promo_code_input",
				Description: promoPromptText(models.PromoStateAskingCode),
				FreeText:    true,
			}}
		case "no", "n":
			return e.skipPromo(p)
		}
	}

	return e.applyPromoCode(ctx, p, input)
}

func (e *Engine) skipPromo(p *models.BookingProgress) stepOutcome {
	p.Data.PromoSkipped = true
	p.Data.PromoState = models.PromoStateNone
	p.RecordStep(models.StepApplyPromotionCode)
	return stepOutcome{messages: []string{"No promo code applied.\n\n" + contactInfoIntro}}
}

func (e *Engine) applyPromoCode(ctx context.Context, p *models.BookingProgress, code string) stepOutcome {
	result, err := e.commerce.ApplyPromotionCode(ctx, p.Data.CartID, code)
	if err != nil {
		slog.Error("Engine applyPromotionCode failed", "cartID", p.Data.CartID, "error", err)
		p.Data.PromoState = models.PromoStateRetrying
		return stepOutcome{
			messages: []string{fmt.Sprintf("There was an issue applying the promo code %q.", code)},
			prompt: &models.PromptSpec{
				Action:      "promo_code_input",
				Description: promoPromptText(models.PromoStateRetrying),
				FreeText:    true,
			},
		}
	}
	if !result.Applied {
		p.Data.PromoState = models.PromoStateRetrying
		return stepOutcome{
			messages: []string{fmt.Sprintf("The promo code %q is invalid or expired.", code)},
			prompt: &models.PromptSpec{
				Action:      "promo_code_input",
				Description: promoPromptText(models.PromoStateRetrying),
				FreeText:    true,
			},
		}
	}
	p.Data.PromoCode = code
	p.Data.PromoSkipped = false
	p.Data.PromoTotal = &result.Total
	p.Data.PromoDiscountAmount = &result.DiscountAmount
	p.Data.PromoState = models.PromoStateNone
	p.RecordStep(models.StepApplyPromotionCode)
	slog.Info("Engine promo code applied", "cartID", p.Data.CartID, "code", code, "total", result.Total)
	return stepOutcome{messages: []string{
		fmt.Sprintf("Promo code %q applied successfully! You save $%s.", code, models.FormatCents(result.DiscountAmount)),
		contactInfoIntro,
	}}
}

func promoPromptText(state models.PromoState) string {
	switch state {
	case models.PromoStateAskingCode:
		return "Please enter your promo code:"
	case models.PromoStateRetrying:
		return "Would you like to try another promo code? (yes/no)"
	default:
		return "Do you have a promo code? (yes/no)"
	}
}

// execCollectClientInfo gathers first name, last name, email and phone over
// as many turns as it takes. Once all four are present it emits the booking
// summary with the payment link and suspends until the payment webhook
// completes the flow.
func (e *Engine) execCollectClientInfo(key models.CorrelationKey, p *models.BookingProgress, tc *turnContext) stepOutcome {
	input := strings.TrimSpace(tc.take())
	lower := strings.ToLower(input)
	processed := false
	if input != "" && lower != "ok" && lower != "okk" {
		p.Data.ClientInfo = e.extractor.Extract(input, p.Data.ClientInfo)
		processed = true
	}

	if !p.Data.ClientInfo.Complete() {
		var messages []string
		if processed {
			messages = append(messages, "Thanks! I've recorded that information.")
		}
		return stepOutcome{
			messages: messages,
			prompt: &models.PromptSpec{
				Action:      "collect_client_info",
				Description: clientInfoPrompt(p.Data.ClientInfo),
				FreeText:    true,
			},
		}
	}

	amount := models.FormatCents(p.EffectiveTotal())
	q := url.Values{}
	q.Set("email", p.Data.ClientInfo.Email)
	q.Set("amount", amount)
	q.Set("userId", key.UserID)
	q.Set("conversationId", key.ConversationID)
	p.Data.PaymentURL = strings.TrimSuffix(e.paymentPageURL, "/") + "/checkout/?" + q.Encode()
	p.RecordStep(models.StepCollectClientInfo)
	slog.Info("Engine collectClientInfo complete", "key", key.String(), "amount", amount)

	var b strings.Builder
	b.WriteString("Booking Summary\n\n")
	b.WriteString("Location: " + p.Data.SelectedLocationName + "\n")
	b.WriteString("Plan: " + p.Data.SelectedPlanName + "\n")
	b.WriteString("Name: " + p.Data.ClientInfo.FirstName + " " + p.Data.ClientInfo.LastName + "\n")
	b.WriteString("Email: " + p.Data.ClientInfo.Email + "\n")
	b.WriteString("Phone: " + p.Data.ClientInfo.PhoneNumber + "\n")
	if p.Data.PromoCode != "" {
		b.WriteString("Promo: " + p.Data.PromoCode)
		if p.Data.PromoDiscountAmount != nil {
			b.WriteString(fmt.Sprintf(" (you save $%s)", models.FormatCents(*p.Data.PromoDiscountAmount)))
		}
		b.WriteString("\n")
	}
	b.WriteString("Amount: $" + amount + "\n\n")
	b.WriteString("Please complete your payment here: " + p.Data.PaymentURL + "\n\n")
	b.WriteString("After payment, your membership will be automatically processed.")
	return stepOutcome{messages: []string{b.String()}, paymentURL: p.Data.PaymentURL}
}

func clientInfoPrompt(info models.ClientInfo) string {
	missing := info.MissingFields()
	var b strings.Builder
	have := false
	b.WriteString("I have:\n")
	if info.FirstName != "" {
		b.WriteString("  First name: " + info.FirstName + "\n")
		have = true
	}
	if info.LastName != "" {
		b.WriteString("  Last name: " + info.LastName + "\n")
		have = true
	}
	if info.Email != "" {
		b.WriteString("  Email: " + info.Email + "\n")
		have = true
	}
	if info.PhoneNumber != "" {
		b.WriteString("  Phone: " + info.PhoneNumber + "\n")
		have = true
	}
	if !have {
		b.Reset()
	} else {
		b.WriteString("\n")
	}
	b.WriteString("Please provide your " + strings.Join(missing, ", ") + ":")
	return b.String()
}

func (e *Engine) execSetClientOnCart(ctx context.Context, p *models.BookingProgress) stepOutcome {
	if p.HasStep(models.StepSetClientOnCart) {
		return stepOutcome{}
	}
	if err := e.commerce.SetClientOnCart(ctx, p.Data.CartID, p.Data.ClientInfo); err != nil {
		slog.Error("Engine setClientOnCart failed", "cartID", p.Data.CartID, "error", err)
		return stepOutcome{messages: []string{msgClientFailed}, halt: true}
	}
	p.RecordStep(models.StepSetClientOnCart)
	if p.Data.CardToken != "" {
		// Webhook path: the payment step runs next, no message needed yet.
		return stepOutcome{}
	}
	msg := "Your details are saved."
	if p.Data.PaymentURL != "" {
		msg += " Complete your payment here: " + p.Data.PaymentURL
	}
	return stepOutcome{messages: []string{msg}, paymentURL: p.Data.PaymentURL, halt: true}
}

func (e *Engine) execAddCardPayment(ctx context.Context, p *models.BookingProgress) stepOutcome {
	if p.HasStep(models.StepAddCardPayment) {
		return stepOutcome{}
	}
	if err := e.commerce.AddCardPaymentMethod(ctx, p.Data.CartID, p.Data.CardToken); err != nil {
		slog.Error("Engine addCardPaymentMethod failed", "cartID", p.Data.CartID, "error", err)
		return stepOutcome{messages: []string{msgPaymentFailed}, halt: true}
	}
	p.RecordStep(models.StepAddCardPayment)
	return stepOutcome{messages: []string{"Payment method added successfully!"}}
}

func (e *Engine) execCheckoutCart(ctx context.Context, p *models.BookingProgress) stepOutcome {
	if p.HasStep(models.StepCheckoutCart) || p.Data.CheckoutComplete {
		return stepOutcome{}
	}
	raw, err := e.commerce.CheckoutCart(ctx, p.Data.CartID)
	if err != nil {
		slog.Error("Engine checkoutCart failed", "cartID", p.Data.CartID, "error", err)
		return stepOutcome{messages: []string{msgCheckoutFailed}, halt: true}
	}
	p.Data.CheckoutResult = raw
	p.Data.CheckoutComplete = true
	p.RecordStep(models.StepCheckoutCart)
	slog.Info("Engine checkout complete", "cartID", p.Data.CartID)
	return stepOutcome{messages: []string{"Checkout complete! Your booking is confirmed."}}
}

// execBookingComplete renders the receipt for a finished booking. The clear
// flag tells the turn loop to drop the progress record so the same key can
// start a new booking later.
func (e *Engine) execBookingComplete(p *models.BookingProgress) stepOutcome {
	return stepOutcome{messages: []string{RenderReceipt(p)}, halt: true, done: true, clear: true}
}

// execAwaitPayment answers a user turn that arrives while the booking is
// suspended waiting for the payment webhook.
func (e *Engine) execAwaitPayment(p *models.BookingProgress) stepOutcome {
	msg := "Waiting for your payment to complete."
	if p.Data.PaymentURL != "" {
		msg += " You can pay here: " + p.Data.PaymentURL
	}
	return stepOutcome{messages: []string{msg}, paymentURL: p.Data.PaymentURL, halt: true}
}

// RenderReceipt formats the confirmation shown (and optionally texted) once
// checkout has completed.
func RenderReceipt(p *models.BookingProgress) string {
	var b strings.Builder
	b.WriteString("[RECEIPT] Membership Purchased\n\n")
	b.WriteString("Location: " + p.Data.SelectedLocationName + "\n")
	b.WriteString("Plan: " + p.Data.SelectedPlanName + "\n")
	b.WriteString("Original Price: $" + models.FormatCents(p.Data.SelectedPlanPrice) + "\n")
	if p.Data.PromoCode != "" && p.Data.PromoTotal != nil {
		b.WriteString("After Promo " + p.Data.PromoCode + ": $" + models.FormatCents(*p.Data.PromoTotal) + "\n")
		if p.Data.PromoDiscountAmount != nil {
			b.WriteString("You Saved: $" + models.FormatCents(*p.Data.PromoDiscountAmount) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString("Name: " + p.Data.ClientInfo.FirstName + " " + p.Data.ClientInfo.LastName + "\n")
	b.WriteString("Email: " + p.Data.ClientInfo.Email + "\n")
	b.WriteString("Phone: " + p.Data.ClientInfo.PhoneNumber + "\n\n")
	b.WriteString("A confirmation email will be sent to " + p.Data.ClientInfo.Email + ".")
	return b.String()
}

// matchOption resolves a user's reply against a list of option names. A
// leading integer is a 1-based index; otherwise words from the reply are
// matched against names by case-insensitive containment either way around.
// Returns -1 when nothing matches.
func matchOption(input string, names []string) int {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return -1
	}
	if n, err := strconv.Atoi(fields[0]); err == nil {
		if n >= 1 && n <= len(names) {
			return n - 1
		}
		return -1
	}
	words := strings.Fields(strings.ToLower(input))
	for i, name := range names {
		lowerName := strings.ToLower(name)
		nameWords := strings.Fields(lowerName)
		first := ""
		if len(nameWords) > 0 {
			first = nameWords[0]
		}
		for _, w := range words {
			if strings.Contains(lowerName, w) || (first != "" && strings.Contains(w, first)) {
				return i
			}
		}
	}
	return -1
}

func locationNames(locations []models.Location) []string {
	names := make([]string, len(locations))
	for i, loc := range locations {
		names[i] = loc.Name
	}
	return names
}

func planNames(plans []models.Plan) []string {
	names := make([]string, len(plans))
	for i, plan := range plans {
		names[i] = plan.Name
	}
	return names
}
