// Package mix composes ordered speech clips and a jingle bed into one
// leveled stereo stream, following the six-phase volume envelope. Mixing is
// single-threaded: the envelope math is stateful across phases.
package mix

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/airloom/showmix/pkg/audio/envelope"
	"github.com/airloom/showmix/pkg/audio/pcm"
	"github.com/airloom/showmix/pkg/audio/resample"
)

// ErrEmptyShow is returned when there are no speech clips to mix.
var ErrEmptyShow = errors.New("mix: no speech clips")

// Default leveling targets for broadcast output.
const (
	DefaultTargetLUFS = -23.0
	DefaultPeakDBFS   = -1.0
)

// Clip is one synthesized speech clip in playback order.
type Clip struct {
	Data   []byte
	Format pcm.Format
}

// Jingle is the background music bed. A bed shorter than the show is
// trimmed, never an error; Result.JingleTruncated reports when that
// happened.
type Jingle struct {
	Data   []byte
	Format pcm.Format
}

// Options configures a mix.
type Options struct {
	// Output is the mixed stream format. Zero value means Stereo44K1.
	Output pcm.Format

	// TargetLUFS is the integrated loudness target. Zero means -23 LUFS.
	TargetLUFS float64

	// PeakDBFS is the true-peak ceiling. Zero means -1 dBFS.
	PeakDBFS float64
}

func (o Options) withDefaults() Options {
	if o.Output == (pcm.Format{}) {
		o.Output = pcm.Stereo44K1
	}
	if o.TargetLUFS == 0 {
		o.TargetLUFS = DefaultTargetLUFS
	}
	if o.PeakDBFS == 0 {
		o.PeakDBFS = DefaultPeakDBFS
	}
	return o
}

// LoudnessStats describes the leveled output.
type LoudnessStats struct {
	// PeakDBFS is the final sample peak in dBFS.
	PeakDBFS float64 `json:"peak_dbfs"`

	// IntegratedLUFS is the mean-square integrated loudness of the final
	// stream.
	IntegratedLUFS float64 `json:"integrated_lufs"`
}

// Result is the mixed show.
type Result struct {
	Data   []byte
	Format pcm.Format

	TotalDuration   time.Duration
	SpeechDuration  time.Duration
	PhaseBoundaries [envelope.NumPhases]time.Duration
	Loudness        LoudnessStats
	JingleTruncated bool
}

// Mix concatenates the clips in order with zero gap, lays the jingle
// under/around them per the envelope, and levels the result. If the jingle
// is shorter than the show, its middle is dropped so the head still covers
// the intro and the tail still covers the outro: only the background span
// loses bed coverage.
func Mix(clips []Clip, jingle Jingle, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	out := opts.Output

	if len(clips) == 0 {
		return nil, ErrEmptyShow
	}

	speech, err := concatClips(clips, out)
	if err != nil {
		return nil, err
	}
	speechDur := out.Duration(len(speech))

	tl, err := envelope.New(speechDur)
	if err != nil {
		return nil, err
	}

	bed, err := resample.Convert(jingle.Data, jingle.Format, out)
	if err != nil {
		return nil, fmt.Errorf("mix: convert jingle: %w", err)
	}

	totalFrames := out.FramesInDuration(tl.Total())
	buf := mixFrames(tl, out, speech, bed, totalFrames)

	peak, lufs := measure(buf)
	gain := levelGain(peak, lufs, opts.TargetLUFS, opts.PeakDBFS)

	data := make([]byte, totalFrames*out.BytesPerFrame())
	finalPeak := 0.0
	for i, v := range buf {
		s := float32(float64(v) * gain)
		if a := math.Abs(float64(s)); a > finalPeak {
			finalPeak = a
		}
		pcm.FromSample(data, i*2, s)
	}

	res := &Result{
		Data:            data,
		Format:          out,
		TotalDuration:   out.Duration(len(data)),
		SpeechDuration:  speechDur,
		PhaseBoundaries: tl.Boundaries(),
		JingleTruncated: out.Frames(len(bed)) < totalFrames,
		Loudness: LoudnessStats{
			PeakDBFS:       db(finalPeak),
			IntegratedLUFS: lufs + 20*math.Log10(nonZero(gain)),
		},
	}
	return res, nil
}

// concatClips converts every clip to the output format and joins them with
// zero gap, preserving order.
func concatClips(clips []Clip, out pcm.Format) ([]byte, error) {
	var speech []byte
	for i, c := range clips {
		conv, err := resample.Convert(c.Data, c.Format, out)
		if err != nil {
			return nil, fmt.Errorf("mix: convert clip %d: %w", i, err)
		}
		speech = append(speech, conv...)
	}
	return speech, nil
}

// mixFrames renders the whole show into a float32 buffer, one value per
// interleaved sample, walking the envelope phase by phase.
func mixFrames(tl envelope.Timeline, out pcm.Format, speech, bed []byte, totalFrames int) []float32 {
	ch := out.Channels
	buf := make([]float32, totalFrames*ch)

	bedFrames := out.Frames(len(bed))
	headFrames, tailFrames := bedSplit(bedFrames, totalFrames, out)

	speechStart := out.FramesInDuration(tl.SpeechStart())
	speechFrames := out.Frames(len(speech))

	frame := 0
	for _, p := range tl.Phases() {
		phaseFrames := out.FramesInDuration(p.Duration)
		for i := 0; i < phaseFrames && frame < totalFrames; i, frame = i+1, frame+1 {
			u := float64(i) / float64(phaseFrames)
			jGain := envelope.Gain(p.Curve, p.JingleFrom, p.JingleTo, u)

			for c := 0; c < ch; c++ {
				var v float32

				if bi, ok := bedIndex(frame, totalFrames, bedFrames, headFrames, tailFrames); ok {
					v += pcm.Sample(bed, (bi*ch+c)*2) * float32(jGain)
				}

				if p.SpeechGain > 0 {
					si := frame - speechStart
					if si >= 0 && si < speechFrames {
						v += pcm.Sample(speech, (si*ch+c)*2) * float32(p.SpeechGain)
					}
				}

				buf[frame*ch+c] = v
			}
		}
	}
	return buf
}

// bedSplit decides how a too-short bed is divided between the head of the
// show and its tail. The tail keeps the outro span (buildup + power +
// fadeout) so the signature ending survives; everything else goes to the
// head.
func bedSplit(bedFrames, totalFrames int, out pcm.Format) (head, tail int) {
	if bedFrames >= totalFrames {
		return totalFrames, 0
	}
	outro := out.FramesInDuration(envelope.OutroBuildupDuration + envelope.OutroPowerDuration + envelope.FadeoutDuration)
	tail = outro
	if tail > bedFrames {
		tail = bedFrames
	}
	head = bedFrames - tail
	return head, tail
}

// bedIndex maps a show frame to a bed frame, or reports no bed coverage.
// With a full-length bed this is the identity; with a trimmed bed the head
// plays from the start, the tail is aligned to the show's end, and the
// middle of the background span has no bed.
func bedIndex(frame, totalFrames, bedFrames, headFrames, tailFrames int) (int, bool) {
	if bedFrames >= totalFrames {
		return frame, frame < bedFrames
	}
	if frame < headFrames {
		return frame, true
	}
	if tailStart := totalFrames - tailFrames; frame >= tailStart {
		return bedFrames - (totalFrames - frame), true
	}
	return 0, false
}

// measure returns the pre-gain sample peak and mean-square integrated
// loudness of the mixed buffer.
func measure(buf []float32) (peak, lufs float64) {
	var sum float64
	for _, v := range buf {
		f := float64(v)
		if a := math.Abs(f); a > peak {
			peak = a
		}
		sum += f * f
	}
	if len(buf) == 0 || sum == 0 {
		return 0, math.Inf(-1)
	}
	ms := sum / float64(len(buf))
	// Mean-square loudness with the BS.1770 reference offset, without
	// K-weighting or gating.
	return peak, -0.691 + 10*math.Log10(ms)
}

// levelGain computes the linear gain that moves loudness toward target
// without letting the peak exceed the ceiling.
func levelGain(peak, lufs, targetLUFS, peakDBFS float64) float64 {
	if peak == 0 {
		return 1
	}
	gain := math.Pow(10, (targetLUFS-lufs)/20)
	ceiling := math.Pow(10, peakDBFS/20)
	if peak*gain > ceiling {
		gain = ceiling / peak
	}
	return gain
}

func db(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}

func nonZero(v float64) float64 {
	if v <= 0 {
		return 1e-12
	}
	return v
}
