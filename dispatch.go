package icontrol

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-icontrol/internal/route"
)

// Call resolves an operation name into a request and performs it.
// The name's first token is the verb and the rest form the resource path
// under /mgmt/tm/, so these two calls are equivalent:
//
//	client.Call(ctx, "get_sys_dns")
//	client.Get(ctx, "/mgmt/tm/sys/dns")
//
// camelCase names ("getSysDns") are accepted too. A name with no resource
// segment fails with ErrEmptyRoute and one with an unknown verb fails with
// ErrUnsupportedOperation; neither touches the network.
// Bodies passed with WithBody are ignored for GET and DELETE.
func (c *Client) Call(ctx context.Context, name string, opts ...RequestOption) (any, error) {
	rt, err := route.Resolve(name)
	if err != nil {
		c.metrics.RecordError("dispatch", errorKind(err))
		//nolint:wrapcheck // route errors already carry the operation name
		return nil, err
	}

	return bodyOf(c.execute(ctx, rt.Method, rt.Path, opts))
}

// RespondsTo reports whether Call handles name, i.e. whether its first token
// is one of get, delete, post, put or patch.
func (c *Client) RespondsTo(name string) bool {
	return route.Routable(name)
}

// ResourcePath builds a path under /mgmt/tm/ from segments.
//
//	icontrol.ResourcePath("ltm", "pool", "~Common~web") // "/mgmt/tm/ltm/pool/~Common~web"
func ResourcePath(segments ...string) string {
	return route.Join(segments...)
}

func errorKind(err error) string {
	if errors.Is(err, ErrEmptyRoute) {
		return "EmptyRoute"
	}
	return "UnsupportedOperation"
}
