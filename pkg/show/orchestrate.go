package show

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/airloom/showmix/pkg/audio/envelope"
	"github.com/airloom/showmix/pkg/audio/mix"
	"github.com/airloom/showmix/pkg/audio/pcm"
	"github.com/airloom/showmix/pkg/audio/wav"
	"github.com/airloom/showmix/pkg/jingle"
	"github.com/airloom/showmix/pkg/speaker"
	"github.com/airloom/showmix/pkg/storage"
	"github.com/airloom/showmix/pkg/tts"
	"github.com/airloom/showmix/pkg/voice"
)

const (
	// DefaultWorkers is the synthesis pool size per show.
	DefaultWorkers = 4

	// MaxWorkers caps the synthesis pool size.
	MaxWorkers = 8

	// DefaultShowBudget is the wall-clock budget for one show.
	DefaultShowBudget = 3 * time.Minute
)

// Synthesizer is the slice of the TTS client the orchestrator needs.
// *tts.Client satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *tts.Request) (*tts.Response, error)
}

// MixedAudioOutput is the terminal artifact of a successful show. Created
// once, never mutated.
type MixedAudioOutput struct {
	// ShowID is the generated show identifier.
	ShowID string `json:"show_id"`

	// FileRef is the durable URL of the stored WAV artifact.
	FileRef string `json:"file_ref"`

	// TotalDuration is the play time of the mixed stream.
	TotalDuration time.Duration `json:"total_duration"`

	// SpeechDuration is the total spoken time inside the stream.
	SpeechDuration time.Duration `json:"speech_duration"`

	// PhaseBoundaries are the end offsets of the six envelope phases.
	PhaseBoundaries [envelope.NumPhases]time.Duration `json:"phase_boundaries"`

	// Loudness describes the leveled output.
	Loudness mix.LoudnessStats `json:"loudness"`

	// JingleID is the selected bed asset.
	JingleID string `json:"jingle_id"`

	// JingleTruncated reports that the bed was shorter than the show.
	JingleTruncated bool `json:"jingle_truncated"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets the synthesis pool size, clamped to [1, MaxWorkers].
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n < 1 {
			n = 1
		}
		if n > MaxWorkers {
			n = MaxWorkers
		}
		o.workers = n
	}
}

// WithShowBudget sets the wall-clock budget for one show.
func WithShowBudget(d time.Duration) Option {
	return func(o *Orchestrator) { o.showBudget = d }
}

// WithCallTimeout sets the per-synthesis-call bound.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.callTimeout = d }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithMixOptions overrides the mixing targets.
func WithMixOptions(opts mix.Options) Option {
	return func(o *Orchestrator) { o.mixOpts = opts }
}

// Orchestrator generates shows. One instance serves many concurrent shows;
// the catalogs it reads are immutable snapshots.
type Orchestrator struct {
	speakers *speaker.Registry
	tiers    *voice.Catalog
	jingles  *jingle.Catalog
	synth    Synthesizer
	store    storage.FileStore

	log         *slog.Logger
	workers     int
	callTimeout time.Duration
	showBudget  time.Duration
	mixOpts     mix.Options
}

// New creates an orchestrator over the given collaborators.
func New(speakers *speaker.Registry, tiers *voice.Catalog, jingles *jingle.Catalog,
	synth Synthesizer, store storage.FileStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		speakers:    speakers,
		tiers:       tiers,
		jingles:     jingles,
		synth:       synth,
		store:       store,
		log:         slog.Default(),
		workers:     DefaultWorkers,
		callTimeout: tts.DefaultCallTimeout,
		showBudget:  DefaultShowBudget,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// plannedSegment is a segment with its resolved voice and request params.
type plannedSegment struct {
	seg     ScriptSegment
	profile *speaker.Profile
	params  voice.Params
}

// Generate runs one show through the full state machine and returns the
// stored artifact. A failed show returns a *GenerationError and no artifact.
func (o *Orchestrator) Generate(ctx context.Context, cfg Config, segments []ScriptSegment) (*MixedAudioOutput, error) {
	showID := uuid.NewString()
	log := o.log.With("show", showID)
	log.Debug("show: state", "state", StatePending)

	ctx, cancel := context.WithTimeout(ctx, o.showBudget)
	defer cancel()

	log.Debug("show: state", "state", StateCollectingSegments)
	plan, tier, gerr := o.collect(showID, cfg, segments)
	if gerr != nil {
		return nil, gerr
	}

	log.Debug("show: state", "state", StateSynthesizing)
	clips, speechTotal, gerr := o.synthesizeAll(ctx, showID, cfg, tier, plan, log)
	if gerr != nil {
		log.Warn("show: state", "state", StateFailed, "err", gerr)
		return nil, gerr
	}

	log.Debug("show: state", "state", StateSelectingJingle)
	sel, bed, gerr := o.selectJingle(ctx, showID, cfg, speechTotal, log)
	if gerr != nil {
		log.Warn("show: state", "state", StateFailed, "err", gerr)
		return nil, gerr
	}

	log.Debug("show: state", "state", StateMixing)
	res, err := mix.Mix(clips, bed, o.mixOpts)
	if err != nil {
		return nil, o.fail(showID, ReasonInternal, "mix", -1, err)
	}

	path := "shows/" + showID + ".wav"
	if err := o.writeArtifact(ctx, path, res); err != nil {
		return nil, o.fail(showID, ReasonInternal, "storage", -1, err)
	}

	out := &MixedAudioOutput{
		ShowID:          showID,
		FileRef:         o.store.URL(path),
		TotalDuration:   res.TotalDuration,
		SpeechDuration:  res.SpeechDuration,
		PhaseBoundaries: res.PhaseBoundaries,
		Loudness:        res.Loudness,
		JingleID:        sel.Asset.ID,
		JingleTruncated: res.JingleTruncated,
	}
	log.Info("show: state", "state", StateComplete,
		"total", res.TotalDuration, "speech", res.SpeechDuration,
		"jingle", sel.Asset.ID, "truncated", res.JingleTruncated,
		"lufs", res.Loudness.IntegratedLUFS)
	return out, nil
}

// collect validates the script and resolves every segment's voice and tier
// up front, so configuration errors surface before any synthesis spend.
func (o *Orchestrator) collect(showID string, cfg Config, segments []ScriptSegment) ([]plannedSegment, voice.Tier, *GenerationError) {
	ordered, err := validateSegments(segments)
	if err != nil {
		return nil, voice.Tier{}, o.fail(showID, ReasonConfig, "script", -1, err)
	}
	if len(ordered) == 0 {
		return nil, voice.Tier{}, o.fail(showID, ReasonConfig, "script", -1, mix.ErrEmptyShow)
	}

	tier, err := o.tiers.Resolve(cfg.tier())
	if err != nil {
		return nil, voice.Tier{}, o.fail(showID, ReasonConfig, "tier", -1, err)
	}

	resolveOpts := speaker.ResolveOptions{
		ActiveCategories: cfg.ActiveCategories,
		RoleBindings:     cfg.RoleSpeakers,
		Primary:          cfg.PrimarySpeaker,
	}

	// The secondary speaker is part of the show config; an unknown name is
	// a configuration error even when no segment addresses it.
	if cfg.SecondarySpeaker != "" {
		if _, err := o.speakers.Resolve(cfg.SecondarySpeaker, speaker.ResolveOptions{}); err != nil {
			return nil, voice.Tier{}, o.fail(showID, ReasonConfig, "speaker", -1, err)
		}
	}

	plan := make([]plannedSegment, len(ordered))
	for i, seg := range ordered {
		profile, err := o.speakers.Resolve(cfg.speakerFor(seg.Speaker), resolveOpts)
		if err != nil {
			return nil, voice.Tier{}, o.fail(showID, ReasonConfig, "speaker", seg.Index, err)
		}
		if !profile.SupportsTier(tier.ID) {
			return nil, voice.Tier{}, o.fail(showID, ReasonConfig, "speaker", seg.Index,
				fmt.Errorf("speaker %q does not support tier %q", profile.Name, tier.ID))
		}
		plan[i] = plannedSegment{
			seg:     seg,
			profile: profile,
			params:  voice.AdjustParams(profile.Params, tier),
		}
	}
	return plan, tier, nil
}

// synthesizeAll runs the bounded synthesis pool. Every call writes into its
// own pre-allocated slot keyed by segment index, so completion order never
// affects clip order. Cancellation is honored between dispatches: issued
// calls drain, no new ones start.
func (o *Orchestrator) synthesizeAll(ctx context.Context, showID string, cfg Config, tier voice.Tier, plan []plannedSegment, log *slog.Logger) ([]mix.Clip, time.Duration, *GenerationError) {
	type slot struct {
		resp *tts.Response
		err  error
	}
	slots := make([]slot, len(plan))

	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	dispatched := 0
	for i := range plan {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		dispatched++
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			p := plan[i]
			callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
			defer cancel()
			slots[i].resp, slots[i].err = o.synth.Synthesize(callCtx, &tts.Request{
				Text:    p.seg.Text,
				VoiceID: p.profile.VoiceID,
				ModelID: tier.ModelID,
				Emotion: p.seg.Emotion,
				Params:  p.params,
			})
		}(i)
	}
	wg.Wait()

	if dispatched < len(plan) {
		return nil, 0, o.fail(showID, reasonFromCtx(ctx, ReasonCancelled), "tts", plan[dispatched].seg.Index, ctx.Err())
	}

	clips := make([]mix.Clip, len(plan))
	var speechTotal time.Duration
	for i, s := range slots {
		if s.err == nil {
			clips[i] = mix.Clip{Data: s.resp.Audio, Format: s.resp.Format}
			speechTotal += s.resp.Duration
			continue
		}
		if ctx.Err() != nil {
			return nil, 0, o.fail(showID, reasonFromCtx(ctx, ReasonSynthesis), "tts", plan[i].seg.Index, s.err)
		}
		if !tts.Permanent(s.err) || cfg.Filler == FillerNone {
			return nil, 0, o.fail(showID, ReasonSynthesis, "tts", plan[i].seg.Index, s.err)
		}
		clip, dur, err := o.fillerClip(ctx, cfg, plan[i].seg)
		if err != nil {
			return nil, 0, o.fail(showID, ReasonInternal, "tts", plan[i].seg.Index, err)
		}
		log.Warn("show: substituting filler for failed segment",
			"segment", plan[i].seg.Index, "filler", cfg.Filler, "err", s.err)
		clips[i] = clip
		speechTotal += dur
	}
	return clips, speechTotal, nil
}

// fillerClip builds the substitute for a permanently failed segment.
func (o *Orchestrator) fillerClip(ctx context.Context, cfg Config, seg ScriptSegment) (mix.Clip, time.Duration, error) {
	switch cfg.Filler {
	case FillerSilence:
		f := pcm.Mono24K
		return mix.Clip{Data: f.Silence(seg.EstimatedDuration), Format: f}, seg.EstimatedDuration, nil
	case FillerAsset:
		format, data, err := o.readWAV(ctx, cfg.FillerAssetRef)
		if err != nil {
			return mix.Clip{}, 0, fmt.Errorf("read filler asset %s: %w", cfg.FillerAssetRef, err)
		}
		return mix.Clip{Data: data, Format: format}, format.Duration(len(data)), nil
	default:
		return mix.Clip{}, 0, fmt.Errorf("unknown filler policy %q", cfg.Filler)
	}
}

// selectJingle picks the bed for the show and loads its audio. An
// unreadable asset triggers exactly one re-selection without it; a second
// failure aborts the show.
func (o *Orchestrator) selectJingle(ctx context.Context, showID string, cfg Config, speechTotal time.Duration, log *slog.Logger) (jingle.Selection, mix.Jingle, *GenerationError) {
	required := jingle.RequiredDuration(speechTotal)

	sel, err := o.jingles.Select(required, cfg.ActiveCategories)
	if err != nil {
		return jingle.Selection{}, mix.Jingle{}, o.fail(showID, ReasonInternal, "jingle", -1, err)
	}

	format, data, err := o.readWAV(ctx, sel.Asset.FileRef)
	if err != nil {
		log.Warn("show: selected jingle unreadable, re-selecting",
			"asset", sel.Asset.ID, "err", err)
		sel, err = o.jingles.SelectExcluding(required, cfg.ActiveCategories, map[string]bool{sel.Asset.ID: true})
		if err != nil {
			return jingle.Selection{}, mix.Jingle{}, o.fail(showID, ReasonInternal, "jingle", -1, err)
		}
		format, data, err = o.readWAV(ctx, sel.Asset.FileRef)
		if err != nil {
			return jingle.Selection{}, mix.Jingle{}, o.fail(showID, ReasonInternal, "jingle", -1,
				fmt.Errorf("%w: %s: %v", jingle.ErrAssetUnavailable, sel.Asset.ID, err))
		}
	}
	return sel, mix.Jingle{Data: data, Format: format}, nil
}

// readWAV reads and decodes a stored WAV file.
func (o *Orchestrator) readWAV(ctx context.Context, path string) (pcm.Format, []byte, error) {
	r, err := o.store.Read(ctx, path)
	if err != nil {
		return pcm.Format{}, nil, err
	}
	defer r.Close()
	return wav.Decode(r)
}

// writeArtifact stores the mixed show as a WAV file.
func (o *Orchestrator) writeArtifact(ctx context.Context, path string, res *mix.Result) error {
	w, err := o.store.Write(ctx, path)
	if err != nil {
		return err
	}
	if err := wav.Encode(w, res.Format, res.Data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (o *Orchestrator) fail(showID string, reason Reason, component string, segment int, err error) *GenerationError {
	return &GenerationError{
		Reason:    reason,
		ShowID:    showID,
		Component: component,
		Segment:   segment,
		Err:       err,
	}
}

// reasonFromCtx refines a failure reason using the context state.
func reasonFromCtx(ctx context.Context, fallback Reason) Reason {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return ReasonCancelled
	}
	return fallback
}

// Compile-time interface check.
var _ Synthesizer = (*tts.Client)(nil)
