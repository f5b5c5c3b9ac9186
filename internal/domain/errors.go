package domain

import "errors"

// Checkout and auth failure kinds. They reach logs, never users.
var (
	ErrProcessorUnavailable   = errors.New("payment processor client unavailable")
	ErrBackend                = errors.New("payment backend request failed")
	ErrMalformedResponse      = errors.New("payment backend response has no session id")
	ErrRedirectRejected       = errors.New("payment processor rejected redirect")
	ErrProviderAuthFailure    = errors.New("identity provider sign-in failed")
	ErrProviderSignOutFailure = errors.New("identity provider sign-out failed")
)

var kindNames = []struct {
	kind error
	name string
}{
	{ErrProcessorUnavailable, "ProcessorUnavailable"},
	{ErrBackend, "BackendError"},
	{ErrMalformedResponse, "MalformedResponse"},
	{ErrRedirectRejected, "RedirectRejected"},
	{ErrProviderAuthFailure, "ProviderAuthFailure"},
	{ErrProviderSignOutFailure, "ProviderSignOutFailure"},
}

// FlowError tags a cause with its failure kind. errors.Is matches both.
type FlowError struct {
	Kind error
	Err  error
}

// NewFlowError wraps err with kind.
func NewFlowError(kind, err error) *FlowError {
	return &FlowError{Kind: kind, Err: err}
}

func (e *FlowError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *FlowError) Unwrap() []error {
	errs := make([]error, 0, 2)
	for _, err := range []error{e.Kind, e.Err} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// FailureKind returns the taxonomy name of err, or "Unknown". The kind of
// the outermost FlowError wins.
func FailureKind(err error) string {
	var fe *FlowError
	if errors.As(err, &fe) {
		err = fe.Kind
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "Unknown"
}
