package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"social-signin.app/payments/models"
)

// MerchantDisplayName is what the payment sheet shows as the merchant.
const MerchantDisplayName = "Social Signin App"

// PlatformAndroid enables the extra payment sheet round on plan
// changes; iOS settles the new invoice without one.
const PlatformAndroid = "android"

type State int

const (
	StateUnknown State = iota
	StateLoaded
	StateSubscribing
	StateUpdating
	StateCancelling
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateSubscribing:
		return "subscribing"
	case StateUpdating:
		return "updating"
	case StateCancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}

type Plan struct {
	ID         string
	Name       string
	PriceID    string
	PriceLabel string
}

// DefaultPlans is the catalog the plan picker renders. Price ids are
// placeholders overridden by app configuration.
var DefaultPlans = []Plan{
	{ID: "starter", Name: "Starter", PriceID: "price_starter_monthly", PriceLabel: "$9.99/mo"},
	{ID: "pro", Name: "Pro", PriceID: "price_pro_monthly", PriceLabel: "$19.99/mo"},
	{ID: "business", Name: "Business", PriceID: "price_business_monthly", PriceLabel: "$39.99/mo"},
}

// PaymentSheetParams configures one payment sheet presentation.
type PaymentSheetParams struct {
	MerchantDisplayName       string
	CustomerID                string
	EphemeralKeySecret        string
	PaymentIntentClientSecret string
}

// PaymentConfirmer presents the native payment sheet and blocks until
// the user completes or abandons it.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, params PaymentSheetParams) error
}

// ErrBusy is returned when an operation is attempted while another is
// still in flight.
var ErrBusy = errors.New("another subscription operation is in progress")

// PlanView owns the subscription state shown on the plans screen. All
// mutations go through the backend; the view never assumes an operation
// succeeded until the server confirms it on reload.
type PlanView struct {
	api       *APIClient
	confirmer PaymentConfirmer
	email     string
	platform  string
	plans     []Plan

	// Alert, when set, receives user-facing failure messages.
	Alert func(title, message string)

	busy atomic.Bool

	mutex   sync.RWMutex
	state   State
	current *models.Subscription
}

func NewPlanView(api *APIClient, confirmer PaymentConfirmer, email, platform string) *PlanView {
	return &PlanView{
		api:       api,
		confirmer: confirmer,
		email:     email,
		platform:  platform,
		plans:     DefaultPlans,
		state:     StateUnknown,
	}
}

func (v *PlanView) State() State {
	v.mutex.RLock()
	defer v.mutex.RUnlock()
	return v.state
}

// Current returns the server-confirmed subscription, or nil.
func (v *PlanView) Current() *models.Subscription {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	if v.current == nil {
		return nil
	}
	copied := *v.current
	return &copied
}

// CurrentPlan maps the current subscription's price onto the catalog.
func (v *PlanView) CurrentPlan() *Plan {
	current := v.Current()
	if current == nil {
		return nil
	}
	for i := range v.plans {
		if v.plans[i].PriceID == current.PriceID {
			return &v.plans[i]
		}
	}
	return nil
}

func (v *PlanView) setState(state State) {
	v.mutex.Lock()
	v.state = state
	v.mutex.Unlock()
}

func (v *PlanView) setCurrent(sub *models.Subscription) {
	v.mutex.Lock()
	v.current = sub
	v.state = StateLoaded
	v.mutex.Unlock()
}

func (v *PlanView) alert(title, message string) {
	if v.Alert != nil {
		v.Alert(title, message)
	}
}

// Load refreshes the subscription from the backend.
func (v *PlanView) Load(ctx context.Context) error {
	sub, err := v.api.CurrentSubscription(ctx, v.email)
	if err != nil {
		return err
	}
	v.setCurrent(sub)
	return nil
}

// Subscribe starts a subscription on the plan and walks the user
// through payment confirmation.
func (v *PlanView) Subscribe(ctx context.Context, plan Plan) error {
	if !v.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer v.busy.Store(false)

	v.setState(StateSubscribing)
	defer v.setState(StateLoaded)

	bundle, err := v.api.CreateSubscription(ctx, v.email, plan.PriceID)
	if err != nil {
		v.alert("Subscription failed", err.Error())
		return err
	}

	if err := v.confirmer.Confirm(ctx, PaymentSheetParams{
		MerchantDisplayName:       MerchantDisplayName,
		CustomerID:                bundle.CustomerID,
		EphemeralKeySecret:        bundle.EphemeralKeySecret,
		PaymentIntentClientSecret: bundle.PaymentIntentClientSecret,
	}); err != nil {
		v.alert("Payment not completed", err.Error())
		return err
	}

	return v.Load(ctx)
}

// Update moves the subscription to a new plan. Android re-confirms the
// plan change invoice through the payment sheet; the sheet sometimes
// reports the intent as already settled, which counts as success.
func (v *PlanView) Update(ctx context.Context, plan Plan) error {
	if !v.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer v.busy.Store(false)

	v.setState(StateUpdating)
	defer v.setState(StateLoaded)

	bundle, err := v.api.UpdateSubscription(ctx, v.email, plan.PriceID)
	if err != nil {
		v.alert("Plan change failed", err.Error())
		return err
	}

	if v.platform == PlatformAndroid && bundle.PaymentIntentClientSecret != "" {
		err := v.confirmer.Confirm(ctx, PaymentSheetParams{
			MerchantDisplayName:       MerchantDisplayName,
			CustomerID:                bundle.CustomerID,
			EphemeralKeySecret:        bundle.EphemeralKeySecret,
			PaymentIntentClientSecret: bundle.PaymentIntentClientSecret,
		})
		if err != nil && !isAlreadySucceeded(err) {
			v.alert("Payment not completed", err.Error())
			return err
		}
	}

	return v.Load(ctx)
}

// Cancel ends the subscription.
func (v *PlanView) Cancel(ctx context.Context) error {
	if !v.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer v.busy.Store(false)

	v.setState(StateCancelling)
	defer v.setState(StateLoaded)

	if err := v.api.CancelSubscription(ctx, v.email); err != nil {
		v.alert("Cancellation failed", err.Error())
		return err
	}

	return v.Load(ctx)
}

// isAlreadySucceeded recognizes the payment sheet refusing to confirm
// an intent that already settled server-side.
func isAlreadySucceeded(err error) bool {
	return strings.Contains(err.Error(), "status 'succeeded'")
}
