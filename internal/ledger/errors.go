package ledger

import "errors"

// Order rejection and failure kinds. All are recoverable: the ledger is
// left untouched and the classification is returned to the caller.
var (
	// ErrSymbolNotFound means neither the asset catalog nor the quote
	// provider could resolve the symbol.
	ErrSymbolNotFound = errors.New("ledger: symbol not found")

	// ErrInvalidQuantity means the resolved share count is non-positive
	// or the size specification was unusable.
	ErrInvalidQuantity = errors.New("ledger: invalid quantity")

	// ErrInvalidKind means the order kind is neither buy nor sell.
	ErrInvalidKind = errors.New("ledger: order kind must be buy or sell")

	// ErrInsufficientFunds means a buy's notional value exceeds cash.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInsufficientShares means a sell exceeds the held quantity.
	ErrInsufficientShares = errors.New("ledger: insufficient shares")

	// ErrNoPosition means a sell against an absent or empty holding.
	ErrNoPosition = errors.New("ledger: no position in this asset")

	// ErrUserNotFound means the order names an unknown user.
	ErrUserNotFound = errors.New("ledger: user not found")

	// ErrConcurrencyConflict means another order for the same
	// (user, asset) pair is in flight. Retryable by the caller.
	ErrConcurrencyConflict = errors.New("ledger: concurrent order in flight")

	// ErrStorageUnavailable wraps persistence failures below the engine.
	// The engine does not retry; retry policy belongs to the caller.
	ErrStorageUnavailable = errors.New("ledger: storage unavailable")

	// ErrPositionNotEmpty means an unwatch was attempted while shares
	// are still held.
	ErrPositionNotEmpty = errors.New("ledger: position not empty")
)
