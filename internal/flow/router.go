package flow

import "github.com/ostlive/bookingpipe/internal/models"

// Route decides which step runs next. It is a pure function of the progress
// record and the pending user input: no I/O, no clock, no randomness. The
// clauses are ordered from the end of the booking chain backwards, so the
// most advanced completed step wins.
func Route(p *models.BookingProgress, input string) models.StepID {
	if p == nil {
		return models.StepGetLocations
	}
	if p.Data.CheckoutComplete {
		return models.StepBookingComplete
	}
	if len(p.CompletedSteps) == 0 {
		return models.StepGetLocations
	}
	if p.HasStep(models.StepCheckoutCart) {
		return models.StepEnd
	}
	if p.HasStep(models.StepAddCardPayment) {
		return models.StepCheckoutCart
	}
	if p.HasStep(models.StepSetClientOnCart) {
		if p.Data.CardToken != "" {
			return models.StepAddCardPayment
		}
		return models.StepEnd
	}
	if p.HasStep(models.StepCollectClientInfo) {
		return models.StepSetClientOnCart
	}
	if p.HasStep(models.StepApplyPromotionCode) {
		if p.Data.ClientInfo.Complete() {
			return models.StepSetClientOnCart
		}
		return models.StepCollectClientInfo
	}
	if p.HasStep(models.StepAddMembershipToCart) {
		return models.StepApplyPromotionCode
	}
	if p.HasStep(models.StepSelectPlan) {
		return models.StepAddMembershipToCart
	}
	if p.HasStep(models.StepGetMembershipPlans) {
		if p.Data.SelectedPlanID != "" {
			return models.StepAddMembershipToCart
		}
		return models.StepSelectPlan
	}
	if p.HasStep(models.StepCreateCart) {
		return models.StepGetMembershipPlans
	}
	if p.HasStep(models.StepSelectLocation) {
		return models.StepCreateCart
	}
	if p.HasStep(models.StepGetLocations) {
		if p.Data.SelectedLocationID != "" {
			return models.StepCreateCart
		}
		return models.StepSelectLocation
	}
	return models.StepGetLocations
}
