package icontrol

import "context"

// API defines the iControl REST operations of Client.
// This interface enables consumers to create mock implementations for testing.
//
// Example usage with testify/mock:
//
//	type MockClient struct {
//	    mock.Mock
//	}
//
//	func (m *MockClient) Get(ctx context.Context, path string, opts ...icontrol.RequestOption) (any, error) {
//	    args := m.Called(ctx, path)
//	    return args.Get(0), args.Error(1)
//	}
type API interface {
	// Get retrieves the resource at path.
	Get(ctx context.Context, path string, opts ...RequestOption) (any, error)

	// Delete removes the resource at path.
	Delete(ctx context.Context, path string, opts ...RequestOption) (any, error)

	// Post creates a resource under path.
	Post(ctx context.Context, path string, body any, opts ...RequestOption) (any, error)

	// Put replaces the resource at path.
	Put(ctx context.Context, path string, body any, opts ...RequestOption) (any, error)

	// Patch modifies the resource at path.
	Patch(ctx context.Context, path string, body any, opts ...RequestOption) (any, error)

	// Do performs a request and returns the full response.
	Do(ctx context.Context, method, path string, opts ...RequestOption) (*Response, error)

	// Call performs the request named by an operation such as "get_sys_dns".
	Call(ctx context.Context, name string, opts ...RequestOption) (any, error)

	// RespondsTo reports whether Call handles name.
	RespondsTo(name string) bool
}
