// Package catalog loads the speaker, jingle, and quality-tier catalogs from
// a yaml file and keeps them fresh. Every reload is a full-replace snapshot
// swapped atomically into the live registries, never a partial patch, so
// in-flight shows never observe a torn catalog.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/airloom/showmix/pkg/jingle"
	"github.com/airloom/showmix/pkg/speaker"
	"github.com/airloom/showmix/pkg/voice"
)

// DefaultRefreshInterval is how often the catalogs are reloaded.
const DefaultRefreshInterval = 5 * time.Minute

// file is the on-disk catalog document.
type file struct {
	Speakers []speaker.Profile `yaml:"speakers"`
	Jingles  []jingleEntry     `yaml:"jingles"`
	Tiers    []tierEntry       `yaml:"tiers,omitempty"`
}

// jingleEntry mirrors jingle.Asset with durations in seconds, the unit the
// catalog file uses.
type jingleEntry struct {
	ID           string   `yaml:"id"`
	FileRef      string   `yaml:"file_ref"`
	Format       string   `yaml:"format"`
	DurationS    float64  `yaml:"duration_s"`
	Categories   []string `yaml:"categories,omitempty"`
	QualityScore float64  `yaml:"quality_score"`
}

func (e jingleEntry) asset() jingle.Asset {
	return jingle.Asset{
		ID:           e.ID,
		FileRef:      e.FileRef,
		Format:       e.Format,
		Duration:     time.Duration(e.DurationS * float64(time.Second)),
		Categories:   e.Categories,
		QualityScore: e.QualityScore,
	}
}

// tierEntry mirrors voice.Tier with latency in milliseconds.
type tierEntry struct {
	ID              string             `yaml:"id"`
	ModelID         string             `yaml:"model_id"`
	ApproxLatencyMS int                `yaml:"approx_latency_ms"`
	CostMultiplier  float64            `yaml:"cost_multiplier"`
	Features        voice.FeatureFlags `yaml:"features"`
}

func (e tierEntry) tier() voice.Tier {
	return voice.Tier{
		ID:             voice.TierID(e.ID),
		ModelID:        e.ModelID,
		ApproxLatency:  time.Duration(e.ApproxLatencyMS) * time.Millisecond,
		CostMultiplier: e.CostMultiplier,
		Features:       e.Features,
	}
}

// Store owns the live registries and refreshes them from one yaml file.
type Store struct {
	path string
	log  *slog.Logger

	Speakers *speaker.Registry
	Jingles  *jingle.Catalog
	Tiers    *voice.Catalog
}

// Open loads the catalog file and builds the registries. A catalog without
// a tiers section gets the built-in default tier catalog.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		path:     path,
		log:      log,
		Speakers: speaker.NewRegistry(nil),
		Jingles:  jingle.NewCatalog(nil),
		Tiers:    voice.NewCatalog(voice.DefaultTiers()),
	}
	if err := s.Refresh(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh reloads the catalog file and swaps all three registries.
func (s *Store) Refresh(_ context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", s.path, err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("catalog: parse %s: %w", s.path, err)
	}

	assets := make([]jingle.Asset, len(f.Jingles))
	for i, e := range f.Jingles {
		assets[i] = e.asset()
	}

	s.Speakers.Swap(f.Speakers)
	s.Jingles.Swap(assets)
	if len(f.Tiers) > 0 {
		tiers := make([]voice.Tier, len(f.Tiers))
		for i, e := range f.Tiers {
			tiers[i] = e.tier()
		}
		s.Tiers.Swap(tiers)
	}

	s.log.Debug("catalog: refreshed",
		"speakers", len(f.Speakers), "jingles", len(assets), "tiers", len(f.Tiers))
	return nil
}

// Watch reloads the catalogs on the given interval until ctx is cancelled.
// A failed reload keeps the last good snapshot and is only logged.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.log.Warn("catalog: refresh failed, keeping previous snapshot", "err", err)
			}
		}
	}
}
