package sms

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Credentials are the per-call gateway credentials, already resolved from
// user overrides or system fallback configuration.
type Credentials struct {
	Provider  string
	APIKey    string
	APISecret string
	SenderID  string
}

// Result is the gateway-independent outcome of a send.
type Result struct {
	Success         bool
	Provider        string
	ProviderMessage string
	Err             error
}

// Provider sends a single SMS through one gateway. Implementations translate the
// gateway's own success signal into Result and never retry.
type Provider interface {
	Name() string
	Send(ctx context.Context, phone, message string, creds Credentials) Result
}

const DefaultTimeout = 5 * time.Second

// Option configures an HTTP based provider
type Option func(*httpOptions)

type httpOptions struct {
	client *http.Client
}

// WithHTTPClient replaces the default client (5s timeout, no retries)
func WithHTTPClient(client *http.Client) Option {
	return func(o *httpOptions) {
		o.client = client
	}
}

// WithTimeout sets the timeout of the default client
func WithTimeout(timeout time.Duration) Option {
	return func(o *httpOptions) {
		o.client = &http.Client{Timeout: timeout}
	}
}

func applyOptions(opts []Option) httpOptions {
	o := httpOptions{client: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Registry maps provider names to adapters
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider under its name
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names lists the registered provider names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
