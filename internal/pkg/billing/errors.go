package billing

import "errors"

// Error taxonomy for webhook processing. Validation failures reject the
// event without mutating billing state; a user that cannot be resolved
// drops the event (a payment event can never create a user).
var (
	ErrValidation     = errors.New("invalid webhook payload")
	ErrUnknownProduct = errors.New("unknown product id")
	ErrUserNotFound   = errors.New("no local user for event")
)
