package notification

import "errors"

// Sentinel errors for the request pipeline. Callers match them with errors.Is.
var (
	// ErrMissingRecord is a validation failure: the payload carried no record.
	ErrMissingRecord = errors.New("no record provided")
	// ErrLookup wraps a failure of the endpoint directory.
	ErrLookup = errors.New("endpoint lookup failed")
	// ErrAuth wraps a failed credential exchange with the token issuer.
	ErrAuth = errors.New("credential exchange failed")
	// ErrDelivery wraps a transport-level failure of a single delivery call.
	ErrDelivery = errors.New("delivery failed")
)
