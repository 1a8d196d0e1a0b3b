// Package show assembles complete radio shows: it resolves speakers and
// quality tiers, synthesizes script segments concurrently, selects a jingle
// bed, mixes the six-phase timeline, and stores the finished artifact.
// One Orchestrator serves many shows; each Generate call owns its show's
// state and shares only immutable catalog snapshots.
package show

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/airloom/showmix/pkg/voice"
)

// State names a stop of the per-show state machine.
type State string

const (
	StatePending            State = "PENDING"
	StateCollectingSegments State = "COLLECTING_SEGMENTS"
	StateSynthesizing       State = "SYNTHESIZING"
	StateSelectingJingle    State = "SELECTING_JINGLE"
	StateMixing             State = "MIXING"
	StateComplete           State = "COMPLETE"
	StateFailed             State = "FAILED"
)

// ScriptSegment is one ordered piece of spoken script, produced upstream
// and consumed read-only.
type ScriptSegment struct {
	// Index is the zero-based position of the segment in the show.
	Index int `yaml:"index" json:"index"`

	// Speaker is a speaker name or role ("marta", "weather").
	Speaker string `yaml:"speaker" json:"speaker"`

	// Text is the material to synthesize.
	Text string `yaml:"text" json:"text"`

	// Emotion is an optional emotional tag passed through to synthesis.
	Emotion string `yaml:"emotion,omitempty" json:"emotion,omitempty"`

	// EstimatedDuration is the upstream duration estimate, used to size
	// silence fillers.
	EstimatedDuration time.Duration `yaml:"estimated_duration" json:"estimated_duration"`
}

// FillerPolicy decides what replaces a permanently failed segment.
type FillerPolicy string

const (
	// FillerNone fails the show on a permanent synthesis error.
	FillerNone FillerPolicy = ""

	// FillerSilence substitutes silence of the segment's estimated duration.
	FillerSilence FillerPolicy = "silence"

	// FillerAsset substitutes a configured audio asset.
	FillerAsset FillerPolicy = "asset"
)

// Config describes one show request. Immutable after validation.
type Config struct {
	// PrimarySpeaker is the default voice, also the fallback for
	// unresolvable roles.
	PrimarySpeaker string `yaml:"primary_speaker" json:"primary_speaker"`

	// SecondarySpeaker optionally names a second regular voice. Segments
	// may address it as "secondary"; the name is validated up front.
	SecondarySpeaker string `yaml:"secondary_speaker,omitempty" json:"secondary_speaker,omitempty"`

	// RoleSpeakers bind roles to speaker names for this show
	// ("weather" -> "jens"), overriding profile aliases.
	RoleSpeakers map[string]string `yaml:"role_speakers,omitempty" json:"role_speakers,omitempty"`

	// ActiveCategories gate role resolution and constrain jingle selection.
	ActiveCategories []string `yaml:"active_categories,omitempty" json:"active_categories,omitempty"`

	// QualityTier selects the synthesis tier. Empty means balanced.
	QualityTier voice.TierID `yaml:"quality_tier,omitempty" json:"quality_tier,omitempty"`

	// Filler is the policy for permanently failed segments.
	Filler FillerPolicy `yaml:"filler,omitempty" json:"filler,omitempty"`

	// FillerAssetRef is the storage path of the FillerAsset clip.
	FillerAssetRef string `yaml:"filler_asset_ref,omitempty" json:"filler_asset_ref,omitempty"`
}

func (c *Config) tier() voice.TierID {
	if c.QualityTier == "" {
		return voice.TierBalanced
	}
	return c.QualityTier
}

// speakerFor maps the reserved "primary" and "secondary" names to the
// configured speakers; every other name passes through to the registry.
func (c *Config) speakerFor(roleOrName string) string {
	switch strings.ToLower(roleOrName) {
	case "primary":
		if c.PrimarySpeaker != "" {
			return c.PrimarySpeaker
		}
	case "secondary":
		if c.SecondarySpeaker != "" {
			return c.SecondarySpeaker
		}
	}
	return roleOrName
}

// validateSegments checks that segment indexes are contiguous, zero-based,
// and free of duplicates, and returns the segments in index order.
func validateSegments(segments []ScriptSegment) ([]ScriptSegment, error) {
	ordered := make([]ScriptSegment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })
	for i, s := range ordered {
		if s.Index != i {
			return nil, fmt.Errorf("show: segment indexes must be contiguous from 0, got %d at position %d", s.Index, i)
		}
	}
	return ordered, nil
}
