// Package jingle holds the background music catalog and the duration-fit
// selection algorithm. Selection is a pure function of the catalog snapshot,
// the required duration, and the category constraint.
package jingle

import (
	"errors"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// Selection margins around the spoken material: the bed should outlast the
// speech by the intro lead, the outro span, and a safety buffer.
const (
	IntroMargin  = 12 * time.Second
	OutroMargin  = 17 * time.Second
	BufferMargin = 5 * time.Second
)

// Asset is one catalog entry. Read-only once loaded.
type Asset struct {
	// ID is the unique asset identifier.
	ID string `yaml:"id" json:"id"`

	// FileRef is the storage path of the audio file.
	FileRef string `yaml:"file_ref" json:"file_ref"`

	// Format is the container format ("wav").
	Format string `yaml:"format" json:"format"`

	// Duration is the asset's play time.
	Duration time.Duration `yaml:"duration" json:"duration"`

	// Categories tag the musical mood ("news", "weather", "upbeat").
	Categories []string `yaml:"categories,omitempty" json:"categories,omitempty"`

	// QualityScore ranks assets; higher wins.
	QualityScore float64 `yaml:"quality_score" json:"quality_score"`
}

func (a Asset) hasAnyCategory(categories []string) bool {
	for _, want := range categories {
		for _, have := range a.Categories {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// Selection is the outcome of a catalog query.
type Selection struct {
	Asset Asset

	// TruncationRequired is set when no asset was long enough and the
	// longest available one was chosen; the mixer trims it gracefully.
	TruncationRequired bool
}

// ErrEmptyCatalog is returned when there are no assets at all.
var ErrEmptyCatalog = errors.New("jingle: empty catalog")

// ErrAssetUnavailable marks a selected asset whose audio could not be read.
// Callers re-select once without the asset, then abort on recurrence.
var ErrAssetUnavailable = errors.New("jingle: asset unavailable")

// RequiredDuration computes the bed duration needed for the given total
// spoken time.
func RequiredDuration(speechTotal time.Duration) time.Duration {
	return speechTotal + IntroMargin + OutroMargin + BufferMargin
}

// Catalog is an atomically swapped snapshot of jingle assets.
type Catalog struct {
	snap atomic.Pointer[[]Asset]
}

// NewCatalog builds a catalog over the given assets.
func NewCatalog(assets []Asset) *Catalog {
	c := &Catalog{}
	c.Swap(assets)
	return c
}

// Swap replaces the whole catalog atomically.
func (c *Catalog) Swap(assets []Asset) {
	cp := make([]Asset, len(assets))
	copy(cp, assets)
	c.snap.Store(&cp)
}

// List returns the current catalog snapshot.
func (c *Catalog) List() []Asset {
	return *c.snap.Load()
}

// Select picks the best-fit asset for the required duration. Candidates are
// filtered by category intersection (falling back to the full catalog when
// the intersection is empty), then by duration fit; among fitting assets the
// highest quality score wins, ties broken by shortest duration. When nothing
// is long enough, the longest candidate is returned with TruncationRequired
// set instead of failing the show.
func (c *Catalog) Select(required time.Duration, categories []string) (Selection, error) {
	return Select(c.List(), required, categories)
}

// SelectExcluding is Select with specific asset ids removed from the
// running, used when a previously chosen asset turned out to be unreadable.
func (c *Catalog) SelectExcluding(required time.Duration, categories []string, exclude map[string]bool) (Selection, error) {
	assets := c.List()
	kept := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if !exclude[a.ID] {
			kept = append(kept, a)
		}
	}
	return Select(kept, required, categories)
}

// Select runs the selection algorithm over an explicit asset list.
func Select(assets []Asset, required time.Duration, categories []string) (Selection, error) {
	if len(assets) == 0 {
		return Selection{}, ErrEmptyCatalog
	}

	candidates := assets
	if len(categories) > 0 {
		var filtered []Asset
		for _, a := range assets {
			if a.hasAnyCategory(categories) {
				filtered = append(filtered, a)
			}
		}
		// Empty category intersection falls back to the full catalog.
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	fitting := make([]Asset, 0, len(candidates))
	for _, a := range candidates {
		if a.Duration >= required {
			fitting = append(fitting, a)
		}
	}

	if len(fitting) == 0 {
		longest := candidates[0]
		for _, a := range candidates[1:] {
			if a.Duration > longest.Duration {
				longest = a
			}
		}
		return Selection{Asset: longest, TruncationRequired: true}, nil
	}

	sort.Slice(fitting, func(i, j int) bool {
		if fitting[i].QualityScore != fitting[j].QualityScore {
			return fitting[i].QualityScore > fitting[j].QualityScore
		}
		return fitting[i].Duration < fitting[j].Duration
	})
	return Selection{Asset: fitting[0]}, nil
}
