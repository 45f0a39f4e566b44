package storage

import (
	"context"
	"fmt"
	"sort"
)

// RequestOptions is the trailing options object every method accepts.
// Zero values mean "not specified".
type RequestOptions struct {
	// TimeoutIntervalInMs bounds a single call. The dispatcher fills it in from
	// the configured default when it is zero.
	TimeoutIntervalInMs int

	// ClientRequestID is sent as x-ms-client-request-id; generated when empty.
	ClientRequestID string

	ContentType string
	Metadata    map[string]string

	// Listing options.
	Prefix     string
	MaxResults int

	// Queue options.
	NumOfMessages     int
	VisibilityTimeout int // seconds
}

// Clone returns a copy that does not share the metadata map with o.
func (o *RequestOptions) Clone() *RequestOptions {
	if o == nil {
		return nil
	}
	c := *o
	if o.Metadata != nil {
		c.Metadata = make(map[string]string, len(o.Metadata))
		for k, v := range o.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Call carries the arguments of a single method invocation.
type Call struct {
	Args    []string
	Options *RequestOptions
}

// Method is a named operation bound to a service handle.
type Method func(ctx context.Context, call *Call) (any, error)

// Service is a credential-bound handle for one service kind.
type Service interface {
	Kind() ServiceKind
	Settings() *Settings
	// Method returns the invocable bound to name, or false if there is none.
	Method(name string) (Method, bool)
	Methods() []string
}

// methodTable maps method names to method expressions of a handle type.
type methodTable[T any] map[string]func(T, context.Context, *Call) (any, error)

func (t methodTable[T]) bind(recv T, name string) (Method, bool) {
	fn, ok := t[name]
	if !ok || fn == nil {
		return nil, false
	}
	return func(ctx context.Context, call *Call) (any, error) {
		if call == nil {
			call = &Call{}
		}
		return fn(recv, ctx, call)
	}, true
}

func (t methodTable[T]) names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// args returns the first n positional arguments or an ArgumentError naming them.
func (c *Call) args(method string, names ...string) ([]string, error) {
	if len(c.Args) < len(names) {
		return nil, &ArgumentError{
			Method: method,
			Reason: fmt.Sprintf("expected arguments %v, got %d", names, len(c.Args)),
		}
	}
	for i, name := range names {
		if c.Args[i] == "" {
			return nil, &ArgumentError{Method: method, Reason: name + " must not be empty"}
		}
	}
	return c.Args[:len(names)], nil
}

// optional returns positional argument i or "".
func (c *Call) optional(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

func (c *Call) opts() *RequestOptions {
	if c.Options == nil {
		return &RequestOptions{}
	}
	return c.Options
}
