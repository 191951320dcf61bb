package sim

import "errors"

var (
	// ErrSessionOver rejects input submitted after the session went terminal.
	ErrSessionOver = errors.New("session is over")

	// ErrTooFast rejects a drop arriving sooner than the minimum interval
	// after the previous accepted drop.
	ErrTooFast = errors.New("drop submitted too fast")

	// ErrInvalidInput rejects an out-of-range or malformed drop.
	ErrInvalidInput = errors.New("invalid drop input")
)
