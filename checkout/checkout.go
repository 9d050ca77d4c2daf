// Package checkout drives a single client-side checkout attempt: it opens a
// payment authorization for the cart, waits for the provider widget to confirm
// it and then clears the cart.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"storefront/cart"
	"storefront/models"
)

type State int

const (
	Idle State = iota
	IntentRequested
	AwaitingConfirmation
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case IntentRequested:
		return "intent_requested"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrUnauthenticated = errors.New("shopper is not signed in")
	ErrIntentFailed    = errors.New("payment authorization failed")
	ErrNotAwaiting     = errors.New("no payment is awaiting confirmation")
)

const (
	msgIntentFailed  = "We couldn't start your payment. Please try again."
	msgConfirmFailed = "We couldn't confirm your payment. Please try again."
)

// Shopper is the signed-in user. An empty UserID means signed out.
type Shopper struct {
	UserID string
}

// Handle is the opaque authorization the provider widget needs.
type Handle struct {
	IntentID     string
	ClientSecret string
	Amount       decimal.Decimal
}

type IntentRequest struct {
	// SessionKey identifies the attempt to the orchestrator only.
	SessionKey string
	Amount     decimal.Decimal
	Items      []models.ManifestItem
}

type IntentCreator interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Handle, error)
}

type OutcomeStatus string

const (
	OutcomeSucceeded      OutcomeStatus = "succeeded"
	OutcomeFailed         OutcomeStatus = "failed"
	OutcomeRequiresAction OutcomeStatus = "requires_action"
)

// Outcome is what the provider widget reports after confirmation.
type Outcome struct {
	Status  OutcomeStatus
	Message string
}

// Confirmer is the provider widget. It exchanges card data with the payment
// network; the orchestrator only sees the outcome.
type Confirmer interface {
	Confirm(ctx context.Context, h Handle) (Outcome, error)
}

// Navigator moves the shopper to the confirmation view.
type Navigator interface {
	ToConfirmation(ctx context.Context, h Handle) error
}

type Options struct {
	// Timeout bounds each collaborator call. Defaults to 15s.
	Timeout time.Duration
}

// Orchestrator is not safe for concurrent use.
type Orchestrator struct {
	intents   IntentCreator
	confirmer Confirmer
	navigator Navigator
	store     cart.Store
	timeout   time.Duration

	state      State
	sessionKey string
	handle     *Handle
	message    string
	cart       *cart.Cart
}

func NewOrchestrator(intents IntentCreator, confirmer Confirmer, navigator Navigator, store cart.Store, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Orchestrator{
		intents:   intents,
		confirmer: confirmer,
		navigator: navigator,
		store:     store,
		timeout:   opts.Timeout,
	}
}

func (o *Orchestrator) State() State { return o.state }

// Message is the text to show the shopper after a failure.
func (o *Orchestrator) Message() string { return o.message }

func (o *Orchestrator) Handle() (Handle, bool) {
	if o.handle == nil {
		return Handle{}, false
	}
	return *o.handle, true
}

// Start opens a payment authorization for c. Starting again for the same
// shopper and cart contents while a confirmation is pending re-uses the open
// authorization instead of requesting a new one.
func (o *Orchestrator) Start(ctx context.Context, shopper Shopper, c *cart.Cart) error {
	if c == nil || c.IsEmpty() {
		return ErrEmptyCart
	}
	if shopper.UserID == "" {
		return ErrUnauthenticated
	}

	manifest := c.Manifest()
	key := models.CheckoutKey(shopper.UserID, manifest, c.Total())
	if o.state == AwaitingConfirmation && o.sessionKey == key {
		return nil
	}

	o.state = IntentRequested
	o.sessionKey = key
	o.handle = nil
	o.message = ""
	o.cart = c

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	h, err := o.intents.CreateIntent(callCtx, IntentRequest{SessionKey: key, Amount: c.Total(), Items: manifest})
	if err != nil {
		o.state = Failed
		o.message = msgIntentFailed
		return fmt.Errorf("%w: %v", ErrIntentFailed, err)
	}

	o.handle = h
	o.state = AwaitingConfirmation
	return nil
}

// Confirm runs the provider confirmation for the open authorization. On
// success the cart is cleared and saved before the shopper is navigated away.
// A failed payment leaves the cart untouched.
func (o *Orchestrator) Confirm(ctx context.Context) (Outcome, error) {
	if o.state != AwaitingConfirmation || o.handle == nil {
		return Outcome{}, ErrNotAwaiting
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	outcome, err := o.confirmer.Confirm(callCtx, *o.handle)
	cancel()
	if err != nil {
		o.state = Failed
		o.message = msgConfirmFailed
		return Outcome{Status: OutcomeFailed, Message: msgConfirmFailed}, err
	}

	switch outcome.Status {
	case OutcomeSucceeded:
		o.cart.Clear()
		if err := o.store.Save(ctx, o.cart); err != nil {
			slog.Error("Failed to save cleared cart", "err", err)
		}
		o.state = Succeeded

		navCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		if err := o.navigator.ToConfirmation(navCtx, *o.handle); err != nil {
			return outcome, fmt.Errorf("failed to show confirmation: %w", err)
		}
	case OutcomeRequiresAction:
		// the widget keeps the shopper on the payment step
	default:
		o.state = Failed
		o.message = outcome.Message
	}
	return outcome, nil
}
