// Package envelope defines the six-phase volume envelope that shapes every
// mixed show: a full-level jingle intro, a fade under the incoming speech, a
// low background bed, a buildup as speech ends, a full-level outro, and a
// final fadeout. Phase durations are fixed except the background span, which
// stretches with the spoken material.
package envelope

import (
	"errors"
	"math"
	"time"
)

// Phase identifies one span of the envelope.
type Phase int

const (
	Intro Phase = iota
	IntroFade
	Background
	OutroBuildup
	OutroPower
	Fadeout

	NumPhases = 6
)

var phaseNames = [NumPhases]string{
	"intro", "intro_fade", "background", "outro_buildup", "outro_power", "fadeout",
}

// String returns the phase name.
func (p Phase) String() string {
	if p < 0 || p >= NumPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// Curve selects the fade shape within a phase.
type Curve int

const (
	// Hold keeps the gain constant.
	Hold Curve = iota
	// Exponential decays geometrically, perceptually even for fades down.
	Exponential
	// Logarithmic rises steeply early then levels, perceptually even for
	// fades up.
	Logarithmic
	// Linear interpolates amplitude directly.
	Linear
)

// Fixed phase durations. Only the background phase varies; intro and outro
// define the show's signature sound and are never compressed.
const (
	IntroDuration        = 3 * time.Second
	IntroFadeDuration    = 10 * time.Second
	OutroBuildupDuration = 7 * time.Second
	OutroPowerDuration   = 5 * time.Second
	FadeoutDuration      = 3 * time.Second

	// BedGain is the jingle level under ongoing speech.
	BedGain = 0.06

	// BuildupGain is the level the outro buildup reaches before the jump to
	// full power.
	BuildupGain = 0.70
)

// speechSpan is the fixed speech-bearing time outside the background phase
// (intro fade + outro buildup).
const speechSpan = IntroFadeDuration + OutroBuildupDuration

// silentSpan is the fixed time with no speech (intro + outro power + fadeout).
const silentSpan = IntroDuration + OutroPowerDuration + FadeoutDuration

// Spec describes one phase: its duration, the jingle gain trajectory, and
// whether speech plays during it.
type Spec struct {
	Phase       Phase
	Duration    time.Duration
	JingleFrom  float64
	JingleTo    float64
	Curve       Curve
	SpeechGain  float64
	SpeechEnter bool
}

// ErrNegativeSpeech is returned when a timeline is requested for a negative
// speech duration.
var ErrNegativeSpeech = errors.New("envelope: negative speech duration")

// Timeline is the envelope instantiated for one show: the six phases with
// the background span resolved.
type Timeline struct {
	phases [NumPhases]Spec
}

// New builds the timeline for the given total spoken duration. Speech plays
// through the intro fade, background, and outro buildup; the background span
// stretches so the speech fits exactly. Shows shorter than the fixed
// speech-bearing phases get a zero-length background and the tail of the
// speech window stays silent.
func New(speech time.Duration) (Timeline, error) {
	if speech < 0 {
		return Timeline{}, ErrNegativeSpeech
	}
	background := speech - speechSpan
	if background < 0 {
		background = 0
	}
	return Timeline{phases: [NumPhases]Spec{
		{Intro, IntroDuration, 1.0, 1.0, Hold, 0, false},
		{IntroFade, IntroFadeDuration, 1.0, BedGain, Exponential, 1.0, true},
		{Background, background, BedGain, BedGain, Hold, 1.0, true},
		{OutroBuildup, OutroBuildupDuration, BedGain, BuildupGain, Logarithmic, 1.0, true},
		{OutroPower, OutroPowerDuration, 1.0, 1.0, Hold, 0, false},
		{Fadeout, FadeoutDuration, 1.0, 0.0, Linear, 0, false},
	}}, nil
}

// FromTotal reconstructs the timeline from a finished show's total duration.
// The inverse of New up to the ±50ms mixing tolerance.
func FromTotal(total time.Duration) (Timeline, error) {
	if total < silentSpan+speechSpan {
		return Timeline{}, errors.New("envelope: total shorter than fixed phases")
	}
	return New(total - silentSpan)
}

// Phases returns the six phase specs in playback order.
func (t Timeline) Phases() [NumPhases]Spec {
	return t.phases
}

// Total returns the duration of the whole show.
func (t Timeline) Total() time.Duration {
	var sum time.Duration
	for _, p := range t.phases {
		sum += p.Duration
	}
	return sum
}

// SpeechStart returns the offset at which the first clip begins.
func (t Timeline) SpeechStart() time.Duration {
	return IntroDuration
}

// SpeechWindow returns the duration during which speech may play.
func (t Timeline) SpeechWindow() time.Duration {
	return speechSpan + t.phases[Background].Duration
}

// Boundaries returns the end offset of each phase from show start.
func (t Timeline) Boundaries() [NumPhases]time.Duration {
	var out [NumPhases]time.Duration
	var at time.Duration
	for i, p := range t.phases {
		at += p.Duration
		out[i] = at
	}
	return out
}

// JingleGainAt returns the jingle gain at offset d from show start.
// Offsets past the end return 0.
func (t Timeline) JingleGainAt(d time.Duration) float64 {
	var start time.Duration
	for _, p := range t.phases {
		if d < start+p.Duration {
			if p.Duration == 0 {
				return p.JingleTo
			}
			u := float64(d-start) / float64(p.Duration)
			return Gain(p.Curve, p.JingleFrom, p.JingleTo, u)
		}
		start += p.Duration
	}
	return 0
}

// SpeechGainAt returns the speech gain at offset d from show start.
func (t Timeline) SpeechGainAt(d time.Duration) float64 {
	var start time.Duration
	for _, p := range t.phases {
		if d < start+p.Duration {
			return p.SpeechGain
		}
		start += p.Duration
	}
	return 0
}

// Gain evaluates a fade curve at position u in [0, 1).
func Gain(c Curve, from, to, u float64) float64 {
	switch c {
	case Hold:
		return from
	case Linear:
		return from + (to-from)*u
	case Exponential:
		// Geometric interpolation; constant ratio per unit time.
		if from <= 0 {
			from = 1e-4
		}
		if to <= 0 {
			to = 1e-4
		}
		return from * math.Pow(to/from, u)
	case Logarithmic:
		// Fast early rise, leveling toward the target.
		return from + (to-from)*math.Log10(1+9*u)
	}
	return from
}
