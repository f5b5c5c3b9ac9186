package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutState is a step of the checkout flow.
type CheckoutState string

const (
	StateIdle                    CheckoutState = "idle"
	StateValidating              CheckoutState = "validating"
	StateAwaitingProcessorClient CheckoutState = "awaiting_processor_client"
	StateRequestingSession       CheckoutState = "requesting_session"
	StateRedirecting             CheckoutState = "redirecting"
	StateFailed                  CheckoutState = "failed"
)

// Processing reports whether a checkout is in flight in state s.
func (s CheckoutState) Processing() bool {
	switch s {
	case StateValidating, StateAwaitingProcessorClient, StateRequestingSession, StateRedirecting:
		return true
	}
	return false
}

// CheckoutRequest is sent once to the payment backend.
type CheckoutRequest struct {
	Items CartSnapshot `json:"items"`
	Email string       `json:"email"`
}

// SessionHandle is the opaque payment session ID issued by the backend.
type SessionHandle string

// CheckoutOutcome tells the browser what to do next.
type CheckoutOutcome string

const (
	OutcomeRedirect CheckoutOutcome = "redirect"
	OutcomeLogin    CheckoutOutcome = "login"
	OutcomeFailed   CheckoutOutcome = "failed"
	OutcomeBusy     CheckoutOutcome = "busy"
)

// CheckoutFailedMessage is the only failure text users ever see.
const CheckoutFailedMessage = "An error occurred during checkout. Please try again."

// LoginPath is where anonymous buyers are sent.
const LoginPath = "/login"

// CheckoutResult is the result of one checkout invocation.
type CheckoutResult struct {
	Outcome     CheckoutOutcome `json:"outcome"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	Redirect    *Redirect       `json:"redirect,omitempty"`
	Notice      *Notice         `json:"notice,omitempty"`
	AttemptID   string          `json:"attempt_id,omitempty"`
}

// CheckoutStatus is the busy indicator for one session.
type CheckoutStatus struct {
	State      CheckoutState `json:"state"`
	Processing bool          `json:"processing"`
}

// AttemptStatus is the final status of an audited checkout attempt.
type AttemptStatus string

const (
	AttemptRedirected AttemptStatus = "redirected"
	AttemptFailed     AttemptStatus = "failed"
)

// CheckoutAttempt is the audit record of one checkout that passed validation.
type CheckoutAttempt struct {
	ID                 string          `json:"id"`
	SessionID          string          `json:"session_id"`
	UserID             string          `json:"user_id"`
	BuyerEmail         string          `json:"buyer_email"`
	ItemCount          int             `json:"item_count"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	Status             AttemptStatus   `json:"status"`
	FailureKind        string          `json:"failure_kind,omitempty"`
	ProcessorSessionID string          `json:"processor_session_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	CompletedAt        time.Time       `json:"completed_at"`
}
