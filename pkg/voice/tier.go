// Package voice defines synthesis parameter bundles and the quality tier
// catalog that trades latency and cost against fidelity.
package voice

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Params are the synthesis parameters sent with every TTS request.
type Params struct {
	Stability    float64 `yaml:"stability" json:"stability"`
	Similarity   float64 `yaml:"similarity" json:"similarity"`
	Style        float64 `yaml:"style" json:"style"`
	SpeakerBoost bool    `yaml:"speaker_boost" json:"speaker_boost"`
}

// TierID names a quality tier.
type TierID string

const (
	TierFast     TierID = "fast"
	TierBalanced TierID = "balanced"
	TierPremium  TierID = "premium"
)

// FeatureFlags describe what a tier's model supports.
type FeatureFlags struct {
	SpeakerBoost bool `yaml:"speaker_boost" json:"speaker_boost"`
	StyleControl bool `yaml:"style_control" json:"style_control"`
}

// Tier is one entry of the static quality catalog.
type Tier struct {
	ID             TierID        `yaml:"id" json:"id"`
	ModelID        string        `yaml:"model_id" json:"model_id"`
	ApproxLatency  time.Duration `yaml:"approx_latency" json:"approx_latency"`
	CostMultiplier float64       `yaml:"cost_multiplier" json:"cost_multiplier"`
	Features       FeatureFlags  `yaml:"features" json:"features"`
}

// UnknownTierError is returned for tier ids outside the catalog.
type UnknownTierError struct {
	ID TierID
}

func (e *UnknownTierError) Error() string {
	return fmt.Sprintf("voice: unknown quality tier %q", e.ID)
}

// DefaultTiers is the built-in tier catalog, used until configuration
// supplies one.
func DefaultTiers() []Tier {
	return []Tier{
		{
			ID:             TierFast,
			ModelID:        "turbo-v2",
			ApproxLatency:  400 * time.Millisecond,
			CostMultiplier: 0.5,
			Features:       FeatureFlags{SpeakerBoost: false, StyleControl: false},
		},
		{
			ID:             TierBalanced,
			ModelID:        "multilingual-v2",
			ApproxLatency:  900 * time.Millisecond,
			CostMultiplier: 1.0,
			Features:       FeatureFlags{SpeakerBoost: true, StyleControl: true},
		},
		{
			ID:             TierPremium,
			ModelID:        "studio-v3",
			ApproxLatency:  2500 * time.Millisecond,
			CostMultiplier: 2.0,
			Features:       FeatureFlags{SpeakerBoost: true, StyleControl: true},
		},
	}
}

// Catalog is the tier lookup table, refreshed only out-of-band via Swap.
type Catalog struct {
	snap atomic.Pointer[map[TierID]Tier]
}

// NewCatalog builds a catalog over the given tiers.
func NewCatalog(tiers []Tier) *Catalog {
	c := &Catalog{}
	c.Swap(tiers)
	return c
}

// Swap replaces the whole catalog atomically.
func (c *Catalog) Swap(tiers []Tier) {
	m := make(map[TierID]Tier, len(tiers))
	for _, t := range tiers {
		m[t.ID] = t
	}
	c.snap.Store(&m)
}

// Resolve returns the tier for id. Deterministic and side-effect free.
func (c *Catalog) Resolve(id TierID) (Tier, error) {
	m := *c.snap.Load()
	t, ok := m[id]
	if !ok {
		return Tier{}, &UnknownTierError{ID: id}
	}
	return t, nil
}

// List returns all tiers in the catalog.
func (c *Catalog) List() []Tier {
	m := *c.snap.Load()
	out := make([]Tier, 0, len(m))
	for _, id := range []TierID{TierFast, TierBalanced, TierPremium} {
		if t, ok := m[id]; ok {
			out = append(out, t)
		}
	}
	for id, t := range m {
		switch id {
		case TierFast, TierBalanced, TierPremium:
		default:
			out = append(out, t)
		}
	}
	return out
}

// AdjustParams applies a tier's constraints to a speaker's base parameters.
// Fast disables speaker boost and raises stability by 0.1 (clamped to 1);
// premium forces speaker boost on. Pure function of its inputs.
func AdjustParams(base Params, tier Tier) Params {
	out := base
	switch tier.ID {
	case TierFast:
		out.SpeakerBoost = false
		out.Stability += 0.1
		if out.Stability > 1.0 {
			out.Stability = 1.0
		}
	case TierPremium:
		out.SpeakerBoost = true
	}
	if !tier.Features.StyleControl {
		out.Style = 0
	}
	return out
}
