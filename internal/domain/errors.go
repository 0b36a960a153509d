package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnsupportedMarket  = errors.New("unsupported market")
	ErrInvalidAddress     = errors.New("invalid wallet address")
	ErrOracleUnavailable  = errors.New("oracle account not found")
	ErrMissingField       = errors.New("missing required field")
	ErrLeverageExceedsMax = errors.New("leverage exceeds max")
	ErrDecodeFailure      = errors.New("account decode failed")
	ErrOutOfRange         = errors.New("input out of range")
)

// IsClientError reports whether err belongs to the request-level taxonomy and
// should be reported to callers as a bad request rather than a server fault.
func IsClientError(err error) bool {
	switch {
	case errors.Is(err, ErrUnsupportedMarket),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrOracleUnavailable),
		errors.Is(err, ErrMissingField),
		errors.Is(err, ErrLeverageExceedsMax),
		errors.Is(err, ErrOutOfRange):
		return true
	default:
		return false
	}
}
