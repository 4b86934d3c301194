// Package route resolves symbolic operation names such as "get_sys_dns" into
// an HTTP method and an iControl REST resource path.
package route

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// BasePath is the root of the iControl REST traffic-management namespace.
const BasePath = "/mgmt/tm/"

var (
	// ErrEmptyRoute is returned when a name has no resource segment after the verb.
	ErrEmptyRoute = errors.New("empty route chain")

	// ErrUnsupportedOperation is returned when the leading token of a name is not an HTTP verb.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// verbs maps the leading token of an operation name to its HTTP method.
var verbs = map[string]string{
	"get":    http.MethodGet,
	"delete": http.MethodDelete,
	"post":   http.MethodPost,
	"put":    http.MethodPut,
	"patch":  http.MethodPatch,
}

// Route is the result of resolving an operation name.
type Route struct {
	Method string
	Path   string
}

// Resolve converts an operation name into a Route.
//
// Names are split on underscores ("get_sys_dns") and keep the case of their
// resource tokens. Names without underscores are split on case boundaries
// ("getSysDns") and lower-cased. Both resolve to GET /mgmt/tm/sys/dns.
func Resolve(name string) (Route, error) {
	tokens := tokenize(name)
	if len(tokens) < 2 {
		return Route{}, errors.Wrapf(ErrEmptyRoute, "operation %q", name)
	}

	method, ok := verbs[strings.ToLower(tokens[0])]
	if !ok {
		return Route{}, errors.Wrapf(ErrUnsupportedOperation, "operation %q", name)
	}

	return Route{Method: method, Path: Join(tokens[1:]...)}, nil
}

// Routable reports whether name starts with a recognized verb.
// It does not check that a resource segment follows.
func Routable(name string) bool {
	tokens := tokenize(name)
	if len(tokens) == 0 {
		return false
	}
	_, ok := verbs[strings.ToLower(tokens[0])]
	return ok
}

// Join builds a path under BasePath from resource segments.
func Join(segments ...string) string {
	return BasePath + strings.Join(segments, "/")
}

func tokenize(name string) []string {
	var raw []string
	if strings.Contains(name, "_") {
		raw = strings.Split(name, "_")
	} else {
		raw = splitCamel(name)
	}

	tokens := raw[:0]
	for _, tok := range raw {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// splitCamel splits "getSysDns" into ["get", "sys", "dns"]. An acronym run
// ends before its last upper-case rune when a lower-case rune follows, so
// "getLTMPool" becomes ["get", "ltm", "pool"].
func splitCamel(name string) []string {
	var (
		tokens []string
		start  int
	)

	runes := []rune(name)
	for i := 1; i < len(runes); i++ {
		if isCamelBoundary(runes, i) {
			tokens = append(tokens, strings.ToLower(string(runes[start:i])))
			start = i
		}
	}

	if start < len(runes) {
		tokens = append(tokens, strings.ToLower(string(runes[start:])))
	}

	return tokens
}

func isCamelBoundary(runes []rune, i int) bool {
	if !unicode.IsUpper(runes[i]) {
		return false
	}
	if !unicode.IsUpper(runes[i-1]) {
		return true
	}
	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
