// Package routing turns a feature and an input profile into an ordered
// provider fallback chain. Selection is a pure function of the registry's
// currently-available descriptors and configured size thresholds; no
// network calls happen here.
package routing

import (
	"context"
	"fmt"
	"sort"

	"github.com/davidbz/howl/internal/domain"
)

// SizeTier is the coarse input-size classification used for routing.
type SizeTier string

const (
	TierSmall  SizeTier = "small"
	TierMedium SizeTier = "medium"
	TierLarge  SizeTier = "large"
)

const (
	// DefaultSmallMaxChars and DefaultMediumMaxChars are the size-tier
	// boundaries; both are overridable through configuration.
	DefaultSmallMaxChars  = 20_000
	DefaultMediumMaxChars = 200_000
)

// Config holds the overridable size-tier thresholds.
type Config struct {
	SmallMaxChars  int
	MediumMaxChars int
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		SmallMaxChars:  DefaultSmallMaxChars,
		MediumMaxChars: DefaultMediumMaxChars,
	}
}

// Policy implements the domain.Router interface.
type Policy struct {
	registry domain.ProviderRegistry
	cfg      Config
}

// NewPolicy creates a new routing policy.
func NewPolicy(registry domain.ProviderRegistry, cfg Config) *Policy {
	if cfg.SmallMaxChars == 0 {
		cfg.SmallMaxChars = DefaultSmallMaxChars
	}
	if cfg.MediumMaxChars == 0 {
		cfg.MediumMaxChars = DefaultMediumMaxChars
	}
	return &Policy{
		registry: registry,
		cfg:      cfg,
	}
}

// BuildChain produces the ordered fallback chain for one request. The
// chain always ends with the guaranteed-available baseline provider, so
// it is non-empty whenever at least one provider is registered and
// available. An empty chain means no provider is usable at all.
func (p *Policy) BuildChain(
	ctx context.Context,
	feature domain.Feature,
	profile *domain.ComplexityProfile,
	inputLen int,
	override string,
) *domain.RoutingDecision {
	available := p.registry.Available(ctx)
	if len(available) == 0 {
		return &domain.RoutingDecision{Reason: "no providers available"}
	}

	if override != "" {
		for _, desc := range available {
			if desc.ID == override {
				return &domain.RoutingDecision{
					Chain:  []domain.ProviderDescriptor{desc},
					Reason: fmt.Sprintf("explicit override to %s", override),
				}
			}
		}
		// Unavailable override falls through to normal policy.
	}

	tier := p.sizeTier(inputLen, profile)

	var remote, baseline []domain.ProviderDescriptor
	for _, desc := range available {
		if desc.CostTier == domain.CostTierFree {
			// Adjudication needs real reasoning; its deterministic
			// fallback lives with the caller, not in the chain.
			if feature != domain.FeatureStructureAdjudication {
				baseline = append(baseline, desc)
			}
			continue
		}
		if desc.ContextCharLimit >= inputLen {
			remote = append(remote, desc)
		}
	}

	primary, reason := selectPrimary(feature, tier, remote)

	chain := make([]domain.ProviderDescriptor, 0, len(remote)+len(baseline))
	if primary != nil {
		chain = append(chain, *primary)
	}

	// Alternates follow in ascending cost order; the baseline closes
	// the chain.
	sort.Slice(remote, func(i, j int) bool {
		return remote[i].CostTier.Rank() < remote[j].CostTier.Rank()
	})
	for _, desc := range remote {
		if primary != nil && desc.ID == primary.ID {
			continue
		}
		chain = append(chain, desc)
	}
	chain = append(chain, baseline...)

	if len(chain) == 0 {
		return &domain.RoutingDecision{Reason: "no provider fits the input size"}
	}

	return &domain.RoutingDecision{Chain: chain, Reason: reason}
}

// sizeTier classifies the input purely by length, then lets a high
// complexity bucket bump a small input up one tier.
func (p *Policy) sizeTier(inputLen int, profile *domain.ComplexityProfile) SizeTier {
	tier := TierSmall
	switch {
	case inputLen > p.cfg.MediumMaxChars:
		tier = TierLarge
	case inputLen > p.cfg.SmallMaxChars:
		tier = TierMedium
	}

	if tier == TierSmall && profile != nil &&
		(profile.Bucket == domain.BucketComplex || profile.Bucket == domain.BucketVeryComplex) {
		tier = TierMedium
	}

	return tier
}

func selectPrimary(feature domain.Feature, tier SizeTier, remote []domain.ProviderDescriptor) (*domain.ProviderDescriptor, string) {
	if len(remote) == 0 {
		return nil, "baseline only: no remote provider fits"
	}

	// Graph-shaped output needs the strongest reasoning tier regardless
	// of input size.
	if feature == domain.FeatureDiagram {
		best := maxByCost(remote)
		return best, fmt.Sprintf("feature %s pinned to %s tier provider %s", feature, best.CostTier, best.ID)
	}

	switch tier {
	case TierLarge:
		best := maxByContext(remote)
		return best, fmt.Sprintf("large input routed to widest context provider %s", best.ID)
	case TierSmall:
		best := minByCost(remote)
		return best, fmt.Sprintf("small input routed to %s tier provider %s", best.CostTier, best.ID)
	default:
		best := maxByCost(remote)
		return best, fmt.Sprintf("medium input routed to %s tier provider %s", best.CostTier, best.ID)
	}
}

func maxByCost(descs []domain.ProviderDescriptor) *domain.ProviderDescriptor {
	best := descs[0]
	for _, d := range descs[1:] {
		if d.CostTier.Rank() > best.CostTier.Rank() {
			best = d
		}
	}
	return &best
}

func minByCost(descs []domain.ProviderDescriptor) *domain.ProviderDescriptor {
	best := descs[0]
	for _, d := range descs[1:] {
		if d.CostTier.Rank() < best.CostTier.Rank() {
			best = d
		}
	}
	return &best
}

func maxByContext(descs []domain.ProviderDescriptor) *domain.ProviderDescriptor {
	best := descs[0]
	for _, d := range descs[1:] {
		if d.ContextCharLimit > best.ContextCharLimit {
			best = d
		}
	}
	return &best
}
