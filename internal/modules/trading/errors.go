package trading

import "errors"

// Domain errors surfaced to handlers. Wrap with fmt.Errorf("...: %w", err)
// to add context; handlers match with errors.Is.
var (
	// ErrEmptyCart is returned when checkout runs against an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoPosition is returned when selling an asset the user does not hold.
	ErrNoPosition = errors.New("no position in asset")
	// ErrOversell is returned when a sell exceeds the held quantity.
	ErrOversell = errors.New("sell quantity exceeds held quantity")
	// ErrInvalidQuantity is returned for zero or negative trade quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)
