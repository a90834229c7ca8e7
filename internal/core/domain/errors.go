package domain

import "fmt"

// Error is a domain-level failure identified by a stable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrInsufficientStock = NewError("INSUFFICIENT_STOCK", "insufficient stock")
	ErrNegativeStock     = NewError("NEGATIVE_STOCK", "stock would become negative")
	ErrPersistence       = NewError("PERSISTENCE_FAILURE", "persistence failure")
	ErrValidation        = NewError("VALIDATION_ERROR", "validation error")
	ErrNotFound          = NewError("NOT_FOUND", "not found")
	ErrAlreadyExists     = NewError("ALREADY_EXISTS", "already exists")
	ErrEmptyCart         = NewError("EMPTY_CART", "cart is empty")
	ErrDuplicateRequest  = NewError("DUPLICATE_REQUEST", "duplicate request")
	ErrConflict          = NewError("CONCURRENCY_CONFLICT", "modified by another request")
)

// StockError reports the line that failed the stock check during checkout.
type StockError struct {
	ItemID    string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// Invalid wraps ErrValidation with a description of the offending input.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
