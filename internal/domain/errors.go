package domain

import "errors"

// Error kinds. Every domain error wraps exactly one of these so the HTTP layer
// can map it with errors.Is without knowing the specific cause.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNotAllowed       = errors.New("not allowed")
	ErrAlreadySettled   = errors.New("already settled")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInternalError    = errors.New("internal error")
)

// kindError is a specific domain error that unwraps to its kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// NewError creates an error with the given message that matches kind under errors.Is.
func NewError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Kind returns the error kind err belongs to, or nil if it is not a domain error.
func Kind(err error) error {
	for _, k := range []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrInvalidState,
		ErrInvalidOperation,
		ErrNotAllowed,
		ErrAlreadySettled,
		ErrUnauthorized,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Validation constants
const (
	MaxNameLength     = 255
	MaxNotesLength    = 2000
	MinLoanPrincipal  = 1
	MaxMonthlyRate    = 100
	MinTenureMonths   = 1
	MaxTenureMonths   = 360
	PaymentEditWindow = 24 // hours
)
