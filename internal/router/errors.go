package router

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a non-owner attempts a routing-table mutation.
	ErrUnauthorized = errors.New("unauthorized: sender is not the owner")

	// ErrRouteNotFound is returned when no route is configured for a pair.
	ErrRouteNotFound = errors.New("route not found")

	// ErrInsufficientFunds is returned when attached funds do not cover the declared input.
	ErrInsufficientFunds = errors.New("insufficient funds attached")

	// ErrInvalidArgument is returned for out-of-range tolerances and malformed inputs.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrArithmeticOverflow is returned when price composition or amount scaling
	// exceeds the representable magnitude. Never wraps silently.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrMalformedVenueResponse is returned when a successful trade result carries
	// a missing or undecodable payload.
	ErrMalformedVenueResponse = errors.New("malformed venue response")

	// ErrUnknownCorrelation is returned when a trade result references no pending
	// swap, including redelivery of an already-settled result.
	ErrUnknownCorrelation = errors.New("unknown correlation id")
)

// InvalidRouteError reports why a candidate route failed validation.
type InvalidRouteError struct {
	Reason string
}

func (e *InvalidRouteError) Error() string {
	return fmt.Sprintf("invalid route: %s", e.Reason)
}

// OracleError wraps a failed or unparsable TWAP query.
type OracleError struct {
	Err error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle error: %v", e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// SwapFailedError propagates a venue-reported trade failure.
type SwapFailedError struct {
	Reason string
}

func (e *SwapFailedError) Error() string {
	return fmt.Sprintf("swap failed: %s", e.Reason)
}
