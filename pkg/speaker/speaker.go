// Package speaker resolves logical roles and names to concrete voice
// profiles. The registry is an immutable snapshot swapped atomically on
// refresh, so in-flight shows never observe a half-updated table.
package speaker

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/airloom/showmix/pkg/voice"
)

// Profile is one configured speaker voice.
type Profile struct {
	// Name is the unique speaker name ("marta", "jens").
	Name string `yaml:"name" json:"name"`

	// VoiceID is the synthesis provider's voice identifier.
	VoiceID string `yaml:"voice_id" json:"voice_id"`

	// Language is a BCP-47 tag ("de", "en-US").
	Language string `yaml:"language" json:"language"`

	// Params are the speaker's default synthesis parameters.
	Params voice.Params `yaml:"params" json:"params"`

	// RoleAliases are logical roles this speaker covers ("weather",
	// "news"). An alias only resolves when the show has the matching
	// category active.
	RoleAliases []string `yaml:"role_aliases,omitempty" json:"role_aliases,omitempty"`

	// SupportedTiers limits the quality tiers this voice works with.
	// Empty means all tiers.
	SupportedTiers []voice.TierID `yaml:"supported_tiers,omitempty" json:"supported_tiers,omitempty"`
}

// SupportsTier reports whether the profile can synthesize at the given tier.
func (p *Profile) SupportsTier(id voice.TierID) bool {
	if len(p.SupportedTiers) == 0 {
		return true
	}
	for _, t := range p.SupportedTiers {
		if t == id {
			return true
		}
	}
	return false
}

// UnknownSpeakerError is returned when no profile matches a name or active
// alias and no primary fallback applies.
type UnknownSpeakerError struct {
	Name string
}

func (e *UnknownSpeakerError) Error() string {
	return fmt.Sprintf("speaker: unknown speaker %q", e.Name)
}

// ResolveOptions scope one resolution to a show.
type ResolveOptions struct {
	// ActiveCategories gates role aliases: an alias resolves only when its
	// role is listed here. This keeps incidental topic mentions from
	// silently switching speakers.
	ActiveCategories []string

	// RoleBindings map a role directly to a speaker name for this show,
	// taking precedence over profile aliases.
	RoleBindings map[string]string

	// Primary is the show's primary speaker name, the fallback when
	// nothing else matches.
	Primary string
}

func (o ResolveOptions) categoryActive(role string) bool {
	for _, c := range o.ActiveCategories {
		if strings.EqualFold(c, role) {
			return true
		}
	}
	return false
}

// Registry is a read-only lookup table over speaker profiles.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	byName  map[string]*Profile
	byAlias map[string]*Profile
	order   []*Profile
}

// NewRegistry builds a registry over the given profiles.
func NewRegistry(profiles []Profile) *Registry {
	r := &Registry{}
	r.Swap(profiles)
	return r
}

// Swap replaces the whole profile table atomically. Earlier lookups keep
// their snapshot.
func (r *Registry) Swap(profiles []Profile) {
	s := &snapshot{
		byName:  make(map[string]*Profile, len(profiles)),
		byAlias: make(map[string]*Profile),
		order:   make([]*Profile, 0, len(profiles)),
	}
	for i := range profiles {
		p := &profiles[i]
		key := strings.ToLower(p.Name)
		if _, dup := s.byName[key]; dup {
			continue
		}
		s.byName[key] = p
		s.order = append(s.order, p)
		for _, alias := range p.RoleAliases {
			a := strings.ToLower(alias)
			if _, dup := s.byAlias[a]; !dup {
				s.byAlias[a] = p
			}
		}
	}
	r.snap.Store(s)
}

// ListActive returns all registered profiles in configuration order.
func (r *Registry) ListActive() []Profile {
	s := r.snap.Load()
	out := make([]Profile, len(s.order))
	for i, p := range s.order {
		out[i] = *p
	}
	return out
}

// Resolve maps a speaker name or role to a profile. Resolution order:
// exact profile name, then show role binding, then profile alias (both only
// when the role's category is active), then the show's primary speaker.
func (r *Registry) Resolve(roleOrName string, opts ResolveOptions) (*Profile, error) {
	s := r.snap.Load()
	key := strings.ToLower(roleOrName)

	if p, ok := s.byName[key]; ok {
		return p, nil
	}

	if opts.categoryActive(key) {
		if bound, ok := opts.RoleBindings[key]; ok {
			if p, found := s.byName[strings.ToLower(bound)]; found {
				return p, nil
			}
			return nil, &UnknownSpeakerError{Name: bound}
		}
		if p, ok := s.byAlias[key]; ok {
			return p, nil
		}
	}

	if opts.Primary != "" {
		if p, ok := s.byName[strings.ToLower(opts.Primary)]; ok {
			return p, nil
		}
	}
	return nil, &UnknownSpeakerError{Name: roleOrName}
}
