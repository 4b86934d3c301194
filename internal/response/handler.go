// Package response classifies iControl REST responses into results and errors.
package response

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
)

// APIError is a completed exchange whose status code is not 200.
// Code and Message are copied from the response body; missing fields are empty.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Classify returns nil for status 200 and an *APIError for anything else.
// body is the decoded response payload.
func Classify(statusCode int, body any) error {
	if statusCode == http.StatusOK {
		return nil
	}

	fields, _ := body.(map[string]any)

	return &APIError{
		StatusCode: statusCode,
		Code:       stringField(fields, "code"),
		Message:    stringField(fields, "message"),
	}
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// StatusCoder is implemented by responses that expose their HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// Handle checks err and the status code (expects 200 OK) and ensures data is non-nil.
//
// Usage:
//
//	resp, err := c.Do(ctx, http.MethodGet, path)
//	if err == nil {
//	    err = resp.Decode(&dns)
//	}
//	return response.Handle(resp, &dns, err, "failed to get DNS settings")
func Handle[T any](resp StatusCoder, data *T, err error, errorMsg string) (*T, error) {
	return HandleWithStatus(resp, data, err, errorMsg, http.StatusOK)
}

// HandleWithStatus is like Handle but allows specifying the expected status code.
func HandleWithStatus[T any](resp StatusCoder, data *T, err error, errorMsg string, expectedStatus int) (*T, error) {
	if err != nil {
		return nil, errors.Wrap(err, errorMsg)
	}

	if resp == nil {
		return nil, errors.New("empty response from API")
	}

	if resp.StatusCode() != expectedStatus {
		//nolint:wrapcheck // Creating new error for non-expected status, no source error to wrap
		return nil, errors.Newf("API error: status=%d", resp.StatusCode())
	}

	if data == nil {
		return nil, errors.New("empty response from API")
	}

	return data, nil
}
