package services

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

type PaymentRequiredError struct{ Message string }

func (e *PaymentRequiredError) Error() string { return e.Message }

// ErrInsufficientCredits is returned by the credit gate when the balance is
// below one.
var ErrInsufficientCredits = &PaymentRequiredError{Message: "Insufficient credits"}
