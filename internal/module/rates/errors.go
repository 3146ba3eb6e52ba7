package rates

import "errors"

// Module errors.
var (
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	ErrInvalidRate     = errors.New("oracle returned invalid rate")
	ErrNonPositiveRate = errors.New("rate must be positive")
)
