package providers

import (
	"fmt"
	"strings"
	"time"

	"github.com/domainscout/core/internal/platform/logger"
)

const defaultProviderTimeout = 45 * time.Second

// Registry resolves a job's stored driver_provider/swarm_provider selector
// to a live Provider. Built once at process start from whichever provider
// credentials are present in the environment (SPEC_FULL.md §9); a selector
// with no matching credentials fails fast at job-create time rather than at
// first generation call.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry constructs every adapter whose required env vars are present
// and skips the rest — a deployment only needs to hold secrets for the
// providers it actually intends to use.
func NewRegistry(log *logger.Logger) (*Registry, error) {
	reg := &Registry{providers: map[string]Provider{}}

	if p, err := newClaudeProvider(log); err == nil {
		reg.providers[p.Name()] = p
	}
	if p, err := newDeepseekProvider(log); err == nil {
		reg.providers[p.Name()] = p
	}
	if p, err := newKimiProvider(log); err == nil {
		reg.providers[p.Name()] = p
	}
	if p, err := newCloudflareProvider(log); err == nil {
		reg.providers[p.Name()] = p
	}

	if len(reg.providers) == 0 {
		return nil, fmt.Errorf("providers: no provider credentials configured")
	}
	return reg, nil
}

// NewRegistryForTest builds a Registry directly from a fixed provider set,
// bypassing env-var discovery, for use by tests that need Resolve without
// real provider credentials.
func NewRegistryForTest(providers map[string]Provider) *Registry {
	return &Registry{providers: providers}
}

func (r *Registry) Resolve(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("providers: unknown or unconfigured provider %q", name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	return out
}
