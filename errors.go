package icontrol

import (
	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-icontrol/internal/codec"
	"github.com/lexfrei/go-icontrol/internal/response"
	"github.com/lexfrei/go-icontrol/internal/route"
)

var (
	// ErrEmptyRoute is returned by Call when the operation name has no resource segment.
	ErrEmptyRoute = route.ErrEmptyRoute

	// ErrUnsupportedOperation is returned by Call when the operation name does not start with a verb.
	ErrUnsupportedOperation = route.ErrUnsupportedOperation

	// ErrMalformedJSON marks a response body that is not valid JSON.
	ErrMalformedJSON = codec.ErrMalformedJSON

	// ErrInvalidConfig is returned by NewWithConfig for unusable configuration.
	ErrInvalidConfig = errors.New("invalid client configuration")
)

// APIError is returned when the device answers with a status other than 200.
// Code and Message come from the response body.
type APIError = response.APIError

// IsNotReady reports whether err was caused by a malformed JSON response,
// which usually means the device is still initializing.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrMalformedJSON)
}

// AsAPIError returns the *APIError in err's chain, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
