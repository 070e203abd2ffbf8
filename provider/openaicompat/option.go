package openaicompat

import (
	"log/slog"
	"net/http"
)

// Option configures a Provider.
type Option func(*Provider)

// WithName sets the provider name reported by Name() and used in errors.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithHTTPClient replaces the default http.Client, e.g. to set timeouts or
// a custom transport.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithLogger sets a structured logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}
