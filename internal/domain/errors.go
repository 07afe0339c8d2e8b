package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "dial", "read", "postorder")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrConnectionFailed is returned when the stream connection fails. It's usually retriable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrSequenceMismatch is returned when an update does not follow the book's sequence.
	// The book has been flushed and needs a fresh snapshot.
	ErrSequenceMismatch = errors.New("sequence mismatch")

	// ErrNotLive is returned when an update arrives before any snapshot.
	ErrNotLive = errors.New("book not live")

	// ErrUnknownOrder is returned when a trade references an order not in the book.
	ErrUnknownOrder = errors.New("unknown order")

	// ErrVolumeUnderflow is returned when a trade exceeds the resting volume.
	ErrVolumeUnderflow = errors.New("trade exceeds resting volume")

	// ErrUnknownMessage is returned for a feed message of an unsupported shape.
	ErrUnknownMessage = errors.New("unknown message")

	// ErrOrderMarketable is returned when an order would cross the book and
	// marketable orders are refused.
	ErrOrderMarketable = errors.New("order is marketable")

	// ErrOrderNotFound is returned when cancelling an order the exchange does not know.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInsufficientBalance is returned when an order cannot be funded.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNoPrice is returned when the book has no usable price for a conversion.
	ErrNoPrice = errors.New("no price available")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

// NeedsResync reports whether err can only be recovered by a fresh snapshot.
func NeedsResync(err error) bool {
	return errors.Is(err, ErrSequenceMismatch) ||
		errors.Is(err, ErrNotLive) ||
		errors.Is(err, ErrUnknownOrder) ||
		errors.Is(err, ErrVolumeUnderflow)
}
