// Package codec encodes request bodies and decodes iControl REST responses.
// Decode failures caused by malformed or truncated JSON are marked with
// ErrMalformedJSON so callers can tell them apart from other failures.
package codec

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// ErrMalformedJSON marks a payload that is not valid JSON. BIG-IP returns
// truncated documents while its management service is still starting.
var ErrMalformedJSON = errors.New("malformed or incomplete JSON")

// Encode serializes v to JSON. Byte slices and json.RawMessage are sent as is.
func Encode(v any) ([]byte, error) {
	switch raw := v.(type) {
	case json.RawMessage:
		return raw, nil
	case []byte:
		return raw, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request body")
	}

	return data, nil
}

// Decode parses data into generic JSON values (maps, slices, float64, string, bool).
// An empty payload decodes to nil.
func Decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, markMalformed(err)
	}

	return v, nil
}

// DecodeInto parses data into v. An empty payload leaves v untouched.
func DecodeInto(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return errors.Wrap(err, "failed to decode response body")
		}
		return markMalformed(err)
	}

	return nil
}

func markMalformed(err error) error {
	return errors.Mark(errors.Wrap(err, "failed to decode response body"), ErrMalformedJSON)
}
