package openmeteo

import "errors"

var (
	// ErrStatus is returned for a non-success HTTP status.
	ErrStatus = errors.New("unexpected status")
	// ErrDecode is returned when the response body is not the expected JSON.
	ErrDecode = errors.New("decode response")
)
