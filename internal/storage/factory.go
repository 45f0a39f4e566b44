package storage

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Factory builds service handles. It is safe for concurrent use.
type Factory struct {
	httpClient    *http.Client
	localEndpoint string
	lookupEnv     func(string) (string, bool)
	now           func() time.Time
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithHTTPClient sets the client shared by every handle.
func WithHTTPClient(c *http.Client) FactoryOption {
	return func(f *Factory) { f.httpClient = c }
}

// WithLocalEndpoint sets the emulator address used for development credentials.
func WithLocalEndpoint(endpoint string) FactoryOption {
	return func(f *Factory) { f.localEndpoint = endpoint }
}

// WithLookupEnv replaces os.LookupEnv for the connection string fallback.
func WithLookupEnv(fn func(string) (string, bool)) FactoryOption {
	return func(f *Factory) { f.lookupEnv = fn }
}

// WithClock sets the time source used for request dates.
func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) { f.now = now }
}

// NewFactory returns a factory with the given options applied.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		httpClient:    http.DefaultClient,
		localEndpoint: DefaultLocalEndpoint,
		lookupEnv:     os.LookupEnv,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ResolveSettings applies the connection string precedence: the explicit
// argument, then AZURE_STORAGE_CONNECTION_STRING, then nil meaning default
// development credentials.
func (f *Factory) ResolveSettings(connectionString string) (*Settings, error) {
	if strings.TrimSpace(connectionString) == "" {
		if v, ok := f.lookupEnv(ConnectionStringEnv); ok {
			connectionString = v
		}
	}
	if strings.TrimSpace(connectionString) == "" {
		return nil, nil
	}
	return ParseConnectionString(connectionString)
}

// GetService returns a handle for kind bound to the resolved settings.
func (f *Factory) GetService(kind ServiceKind, connectionString string) (Service, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedServiceKind, int(kind))
	}

	settings, err := f.ResolveSettings(connectionString)
	if err != nil {
		return nil, err
	}
	// UseDevelopmentStorage without a proxy means the emulator this factory targets.
	if settings == nil || (settings.Development && settings.DevelopmentProxy == "") {
		settings = DevelopmentSettings(f.localEndpoint)
	}

	c := client{kind: kind, settings: settings, http: f.httpClient, now: f.now}
	switch kind {
	case Blob:
		return &BlobService{client: c}, nil
	case Queue:
		return &QueueService{client: c}, nil
	default:
		return &TableService{client: c}, nil
	}
}
