// Package provider wraps each external data source behind one Signal contract.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/poisignal/internal/model"
)

// Provider fetches evidence about a POI from one source.
//
// Fetch returns (nil, nil) when the source has nothing to say. Any error is a
// provider failure that the caller logs and drops; a cancelled ctx surfaces as
// an error wrapping ctx.Err().
type Provider interface {
	Name() string
	Fetch(ctx context.Context, poi model.Poi) (*model.Signal, error)
}

// ErrDegraded is returned by providers that are currently bypassed
var ErrDegraded = errors.New("provider degraded")

// StatusError is a non-2xx HTTP answer from an upstream
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("API error (%d) from %s: %s", e.Code, e.URL, e.Body)
	}
	return fmt.Sprintf("API error (%d) from %s", e.Code, e.URL)
}

// Registry holds the configured providers in registration order
type Registry struct {
	providers []Provider
	byName    map[string]Provider
}

// NewRegistry creates a registry from the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{byName: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider, replacing one with the same name
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	if _, exists := r.byName[p.Name()]; exists {
		for i, existing := range r.providers {
			if existing.Name() == p.Name() {
				r.providers[i] = p
			}
		}
	} else {
		r.providers = append(r.providers, p)
	}
	r.byName[p.Name()] = p
}

// Get returns the provider with the given name
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// All returns the providers in registration order
func (r *Registry) All() []Provider {
	return append([]Provider(nil), r.providers...)
}

// Names lists provider names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}
