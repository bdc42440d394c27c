// Package provider maps third-party social APIs onto the canonical service shape.
package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
)

// Adapter calls one provider and maps its native response into a domain.Fragment.
//
// Profile returns (nil, nil) when the provider reports the account as absent.
// Metric returns domain.ErrNotFound when the provider has no such metric.
type Adapter interface {
	Service() string
	Family() string
	Profile(ctx context.Context, cred domain.Credential) (*domain.Fragment, error)
	Metric(ctx context.Context, cred domain.Credential, identifier, metric string) (int64, error)
}

// Registry maps service names to adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry registers the adapters. Registering two adapters for the same service panics.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, dup := r.adapters[a.Service()]; dup {
			panic(fmt.Sprintf("provider: adapter %q registered twice", a.Service()))
		}
		r.adapters[a.Service()] = a
	}
	return r
}

// NewDefaultRegistry builds the six built-in adapters from cfg.
func NewDefaultRegistry(cfg Config) *Registry {
	client := func(family string) *Client {
		return NewClient(cfg.Family(family).BaseURL, cfg.Client)
	}
	twitter := client(domain.ProviderTwitter)
	facebook := client(domain.ProviderFacebook)
	google := client(domain.ProviderGoogle)
	instagram := client(domain.ProviderInstagram)

	return NewRegistry(
		NewTwitter(twitter),
		NewFacebook(facebook),
		NewYouTube(google),
		NewGooglePlus(google),
		NewGoogleAnalytics(google),
		NewInstagram(instagram),
	)
}

// Lookup returns the adapter of a service name.
func (r *Registry) Lookup(service string) (Adapter, error) {
	a, ok := r.adapters[domain.NormalizeServiceName(service)]
	if !ok {
		return nil, fmt.Errorf("service %q: %w", service, domain.ErrUnrecognizedService)
	}
	return a, nil
}

// Services lists the registered service names in order.
func (r *Registry) Services() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Families lists the distinct provider families of the registered adapters.
func (r *Registry) Families() []string {
	seen := make(map[string]struct{})
	var families []string
	for _, a := range r.adapters {
		if _, ok := seen[a.Family()]; ok {
			continue
		}
		seen[a.Family()] = struct{}{}
		families = append(families, a.Family())
	}
	sort.Strings(families)
	return families
}

func unsupportedMetric(a Adapter, metric string) error {
	return fmt.Errorf("%s has no metric %q: %w", a.Service(), metric, domain.ErrNotFound)
}
